package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/internal/storage"
	"github.com/auslab/swarm/pkg/core"
)

// Verify Backend implements storage.Backend at compile time
var _ storage.Backend = (*Backend)(nil)

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.db")

	b, err := New(config.SQLiteConfig{Path: path}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())

	spec := core.FormationSpec{Pattern: core.PatternV, Center: mgl64.Vec3{0, 0, 2}, Spacing: 1}
	require.NoError(t, b.SavePreset(core.Preset{Name: "vee", Spec: spec}))
	require.NoError(t, b.Close())

	reopened, err := New(config.SQLiteConfig{Path: path}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, reopened.Init())
	defer reopened.Close()

	got, err := reopened.GetPreset("vee")
	require.NoError(t, err)
	assert.Equal(t, core.PatternV, got.Spec.Pattern)
}

func TestMemoryBackendDumpsOnClose(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "dump.db")
	cfg := config.SQLiteConfig{
		Path:         "file:dumpclose?mode=memory&cache=shared",
		DumpPath:     dump,
		DumpInterval: time.Hour,
	}

	b, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.SavePreset(core.Preset{Name: "ring", Spec: core.FormationSpec{Pattern: core.PatternCircle, Radius: 1}}))
	require.NoError(t, b.Close())

	_, err = os.Stat(dump)
	require.NoError(t, err)

	fromDump, err := New(config.SQLiteConfig{Path: dump}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, fromDump.Init())
	defer fromDump.Close()

	list, err := fromDump.ListPresets()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ring", list[0].Name)
}

func TestPeriodicDump(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "periodic.db")
	cfg := config.SQLiteConfig{
		Path:         "file:periodic?mode=memory&cache=shared",
		DumpPath:     dump,
		DumpInterval: 20 * time.Millisecond,
	}

	b, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dump)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
