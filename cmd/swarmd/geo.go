package main

import (
	"fmt"
	"log/slog"

	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/internal/geo"
	"github.com/auslab/swarm/internal/swarm"
)

// geoOptions builds the loop's projector and fence from config.
func geoOptions(cfg config.GeoConfig, logger *slog.Logger) ([]swarm.Option, error) {
	var opts []swarm.Option

	if cfg.Enabled {
		ref, err := geo.NewGeoref(cfg.OriginLon, cfg.OriginLat, cfg.OriginAlt)
		if err != nil {
			return nil, fmt.Errorf("geo origin: %w", err)
		}
		opts = append(opts, swarm.WithProjector(ref))
		logger.Info("Georeferencing enabled", "lon", cfg.OriginLon, "lat", cfg.OriginLat, "alt", cfg.OriginAlt)
	}

	if cfg.Fence != "" {
		fence, err := geo.ParseFence(cfg.Fence)
		if err != nil {
			return nil, fmt.Errorf("geo fence: %w", err)
		}
		opts = append(opts, swarm.WithFence(fence))
		logger.Info("Keep-in fence enabled", "wkt", fence.WKT())
	}

	return opts, nil
}
