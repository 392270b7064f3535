package geo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Fence is a keep-in area in local meters. Altitude is not considered.
type Fence struct {
	area geom.Geometry
}

// ParseFence accepts either WKT (POLYGON or MULTIPOLYGON) or a JSON ring
// "[[x1,y1],[x2,y2],...]". An open ring is closed automatically.
func ParseFence(input string) (*Fence, error) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "[") {
		wkt, err := ringToWKT(input)
		if err != nil {
			return nil, err
		}
		input = wkt
	}

	g, err := geom.UnmarshalWKT(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fence WKT: %w", err)
	}
	switch g.Type() {
	case geom.TypePolygon, geom.TypeMultiPolygon:
	default:
		return nil, fmt.Errorf("fence must be a polygon, got %s", g.Type())
	}
	if g.IsEmpty() {
		return nil, fmt.Errorf("fence polygon is empty")
	}
	return &Fence{area: g}, nil
}

// Contains reports whether p lies inside or on the fence.
func (f *Fence) Contains(p mgl64.Vec3) bool {
	pt := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p[0], Y: p[1]}})
	return geom.Intersects(f.area, pt.AsGeometry())
}

// WKT returns the fence as WKT.
func (f *Fence) WKT() string {
	return f.area.AsText()
}

func ringToWKT(input string) (string, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return "", fmt.Errorf("failed to parse fence ring JSON: %w", err)
	}
	if len(coords) < 3 {
		return "", fmt.Errorf("fence ring must have at least 3 points, got %d", len(coords))
	}
	for i, coord := range coords {
		if len(coord) < 2 {
			return "", fmt.Errorf("coordinate %d has insufficient values", i)
		}
	}
	first, last := coords[0], coords[len(coords)-1]
	if first[0] != last[0] || first[1] != last[1] {
		coords = append(coords, first)
	}

	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.FormatFloat(c[0], 'f', -1, 64) + " " + strconv.FormatFloat(c[1], 'f', -1, 64)
	}
	return "POLYGON((" + strings.Join(parts, ", ") + "))", nil
}
