package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/internal/storage"
	"github.com/auslab/swarm/internal/storage/memory"
	pgstorage "github.com/auslab/swarm/internal/storage/postgres"
	sqlitestorage "github.com/auslab/swarm/internal/storage/sqlite"
)

func createStorageBackend(storageCfg config.StorageConfig, log zerolog.Logger) (storage.Backend, error) {
	log = log.With().Str("component", "storage").Str("type", storageCfg.Type).Logger()

	switch storageCfg.Type {
	case "postgres":
		backend, err := pgstorage.New(storageCfg.Postgres, storageCfg.SQLite.Path, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Postgres backend: %w", err)
		}
		if backend.Local() {
			log.Warn().Msg("Postgres unreachable, presets are stored in SQLite")
		}
		return backend, nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		log.Info().Str("path", storageCfg.SQLite.Path).Msg("SQLite storage backend initialized")
		return backend, nil

	case "memory", "":
		log.Info().Str("outputDir", storageCfg.Memory.OutputDir).Msg("Memory storage backend initialized")
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}
