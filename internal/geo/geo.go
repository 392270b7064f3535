// Package geo anchors the local metric frame to the globe and checks
// positions against an optional keep-in fence.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/wroge/wgs84"

	"github.com/auslab/swarm/pkg/core"
)

// Local positions are east/north/up meters from the origin. They are mapped
// through EPSG:3857, scaled by the Mercator factor at the origin latitude,
// and back to EPSG:4326.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// maxMercatorLat is the latitude limit of EPSG:3857.
const maxMercatorLat = 85.05112878

// Georef converts local positions to WGS84.
type Georef struct {
	lon, lat, alt float64

	originX, originY float64
	scale            float64
	toGeo            func(a, b, c float64) (float64, float64, float64)
}

// NewGeoref anchors the local frame at lon/lat (degrees) and alt (meters).
func NewGeoref(lon, lat, alt float64) (*Georef, error) {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.Abs(lon) > 180 || math.Abs(lat) > maxMercatorLat {
		return nil, fmt.Errorf("%w: origin %v,%v", ErrInvalidCoordinates, lon, lat)
	}

	epsg := wgs84.EPSG()
	x, y, _ := epsg.Transform(4326, 3857)(lon, lat, 0)

	return &Georef{
		lon:     lon,
		lat:     lat,
		alt:     alt,
		originX: x,
		originY: y,
		scale:   1 / math.Cos(lat*math.Pi/180),
		toGeo:   epsg.Transform(3857, 4326),
	}, nil
}

// Origin returns the anchor point.
func (g *Georef) Origin() core.GeoPosition {
	return core.GeoPosition{Lat: g.lat, Lon: g.lon, Alt: g.alt}
}

// ToGeo maps a local position to latitude, longitude and altitude.
func (g *Georef) ToGeo(p mgl64.Vec3) (core.GeoPosition, error) {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsNaN(p[2]) {
		return core.GeoPosition{}, ErrInvalidCoordinates
	}
	lon, lat, _ := g.toGeo(g.originX+p[0]*g.scale, g.originY+p[1]*g.scale, 0)
	return core.GeoPosition{Lat: lat, Lon: lon, Alt: g.alt + p[2]}, nil
}

// ParseOrigin parses a "long,lat" or "long,lat,elev" string.
func ParseOrigin(coords string) (lon, lat, alt float64, err error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 || len(coordsSplit) > 3 {
		return 0, 0, 0, ErrInvalidCoordinates
	}
	values := make([]float64, 3)
	for i, s := range coordsSplit {
		values[i], err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, 0, 0, ErrInvalidCoordinates
		}
	}
	return values[0], values[1], values[2], nil
}
