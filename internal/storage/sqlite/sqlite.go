// Package sqlitestorage implements the storage.Backend interface on SQLite,
// either on disk or in memory with periodic disk dumps via VACUUM INTO.
package sqlitestorage

import (
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/internal/database"
	gormstorage "github.com/auslab/swarm/internal/storage/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	log      zerolog.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// New opens the SQLite database described by cfg.
func New(cfg config.SQLiteConfig, log zerolog.Logger) (*Backend, error) {
	db, err := database.OpenSQLite(cfg.Path)
	if err != nil {
		return nil, err
	}

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: db, Logger: log}),
		db:       db,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Init migrates the schema and starts the dump goroutine when configured.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	} else {
		close(b.done)
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the database.
func (b *Backend) Close() error {
	close(b.stopChan)
	<-b.done
	if b.cfg.DumpPath != "" {
		if err := database.VacuumInto(b.db, b.cfg.DumpPath); err != nil {
			b.log.Error().Err(err).Msg("Final dump failed")
		}
	}
	return b.Backend.Close()
}

// dumpLoop periodically dumps the SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := database.VacuumInto(b.db, b.cfg.DumpPath); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			} else {
				b.log.Debug().Dur("duration", time.Since(start)).Msg("Dumped to disk")
			}
		}
	}
}
