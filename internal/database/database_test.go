package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auslab/swarm/internal/config"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host: "db", Port: "5432", Username: "swarm", Password: "pw", Database: "swarm",
	})
	assert.Equal(t, "host=db port=5432 user=swarm password=pw dbname=swarm sslmode=disable", dsn)

	dsn = PostgresDSN(config.PostgresConfig{Host: "db", SSLMode: "require"})
	assert.Contains(t, dsn, "sslmode=require")
}

func TestOpenSQLite_SetsSchemaVersion(t *testing.T) {
	db, err := OpenSQLite("file:schemaver?mode=memory&cache=shared")
	require.NoError(t, err)

	var version int
	require.NoError(t, db.Raw("PRAGMA user_version").Scan(&version).Error)
	assert.Equal(t, schemaVersion, version)
}

func TestVacuumInto(t *testing.T) {
	db, err := OpenSQLite("file:vacuumtest?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE probe (id INTEGER)").Error)
	require.NoError(t, db.Exec("INSERT INTO probe VALUES (7)").Error)

	path := filepath.Join(t.TempDir(), "out.db")
	require.NoError(t, VacuumInto(db, path))
	require.NoError(t, VacuumInto(db, path), "second dump replaces the first")

	copyDB, err := OpenSQLite(path)
	require.NoError(t, err)
	var id int
	require.NoError(t, copyDB.Raw("SELECT id FROM probe").Scan(&id).Error)
	assert.Equal(t, 7, id)
}

func TestVacuumInto_NoPath(t *testing.T) {
	db, err := OpenSQLite("file:nopath?mode=memory&cache=shared")
	require.NoError(t, err)
	assert.Error(t, VacuumInto(db, ""))
}

func TestConnect_FallsBackToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.db")

	// nothing listens on port 1
	conn, err := Connect(config.PostgresConfig{Host: "127.0.0.1", Port: "1", Username: "x", Database: "x"}, path, zerolog.Nop())
	require.NoError(t, err)
	defer conn.Close()

	assert.True(t, conn.Fallback)
	assert.Equal(t, path, conn.Path)
	assert.Equal(t, "sqlite", conn.Dialect())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
