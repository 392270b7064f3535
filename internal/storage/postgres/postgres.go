// Package postgres implements the storage.Backend interface on PostgreSQL,
// falling back to a local SQLite database when Postgres is unreachable.
package postgres

import (
	"github.com/rs/zerolog"

	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/internal/database"
	gormstorage "github.com/auslab/swarm/internal/storage/gorm"
)

// Backend wraps the GORM backend with the database manager's connection.
type Backend struct {
	*gormstorage.Backend
	conn *database.Conn
}

// New connects to Postgres. When the connection fails the preset store
// lives in SQLite at fallbackPath instead (in memory when empty).
func New(cfg config.PostgresConfig, fallbackPath string, log zerolog.Logger) (*Backend, error) {
	conn, err := database.Connect(cfg, fallbackPath, log)
	if err != nil {
		return nil, err
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: conn.DB, Logger: log}),
		conn:    conn,
	}, nil
}

// Local reports whether the store fell back to SQLite.
func (b *Backend) Local() bool {
	return b.conn.Fallback
}
