// Package database opens the GORM connections behind the SQL preset stores.
package database

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/auslab/swarm/internal/config"
)

// MemoryDSN opens a shared-cache in-memory SQLite database.
const MemoryDSN = "file::memory:?cache=shared"

// schemaVersion is stored in SQLite's user_version.
const schemaVersion = 1

// sqlitePragmas favor speed; presets are small and dumped with VACUUM INTO.
var sqlitePragmas = []string{
	fmt.Sprintf("PRAGMA user_version = %d", schemaVersion),
	"PRAGMA journal_mode = MEMORY",
	"PRAGMA synchronous = OFF",
	"PRAGMA cache_size = -32000",
	"PRAGMA temp_store = MEMORY",
}

// Conn is an open preset database.
type Conn struct {
	DB *gorm.DB
	// Fallback is set when Postgres was configured but SQLite is in use.
	Fallback bool
	// Path is the SQLite location, empty for Postgres or in-memory.
	Path string
}

// Dialect names the driver behind the connection.
func (c *Conn) Dialect() string {
	return c.DB.Dialector.Name()
}

// Close closes the connection pool.
func (c *Conn) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// Connect opens Postgres and verifies it with a ping. When that fails it
// opens SQLite at sqlitePath instead (in memory when empty).
func Connect(cfg config.PostgresConfig, sqlitePath string, log zerolog.Logger) (*Conn, error) {
	log.Debug().Str("host", cfg.Host).Str("port", cfg.Port).Str("database", cfg.Database).Msg("Connecting to Postgres")

	db, pgErr := OpenPostgres(cfg)
	if pgErr == nil {
		log.Info().Str("host", cfg.Host).Msg("Connected to Postgres")
		return &Conn{DB: db}, nil
	}
	log.Error().Err(pgErr).Msg("Failed to connect to Postgres, trying SQLite")

	db, err := OpenSQLite(sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("postgres unavailable and sqlite failed: %w", errors.Join(pgErr, err))
	}
	if sqlitePath == "" {
		log.Warn().Msg("Using in-memory SQLite, presets are lost on exit")
	} else {
		log.Info().Str("path", sqlitePath).Msg("Using local SQLite")
	}
	return &Conn{DB: db, Fallback: true, Path: sqlitePath}, nil
}

// PostgresDSN builds a libpq key/value connection string.
func PostgresDSN(cfg config.PostgresConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, sslMode)
}

// OpenPostgres connects and pings.
func OpenPostgres(cfg config.PostgresConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(cfg),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	return db, nil
}

// OpenSQLite opens a file path or file: URI; empty uses MemoryDSN.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = MemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

// VacuumInto writes a consistent copy of db to path, replacing any file there.
func VacuumInto(db *gorm.DB, path string) error {
	if path == "" {
		return errors.New("no dump path set")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing previous dump: %w", err)
	}

	quoted := strings.ReplaceAll(path, "'", "''")
	if err := db.Exec("VACUUM INTO 'file:" + quoted + "'").Error; err != nil {
		return fmt.Errorf("dumping database to %s: %w", path, err)
	}
	return nil
}
