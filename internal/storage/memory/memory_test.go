package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/internal/storage"
	"github.com/auslab/swarm/pkg/core"
)

// Verify Backend implements storage.Backend at compile time
var _ storage.Backend = (*Backend)(nil)

func grid(spacing float64) core.FormationSpec {
	return core.FormationSpec{Pattern: core.PatternGrid, Center: mgl64.Vec3{0, 0, 1}, Spacing: spacing}
}

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NotNil(t, b)
	require.NoError(t, b.Init())

	list, err := b.ListPresets()
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, b.Close())
	assert.Empty(t, b.LastExportPath())
}

func TestSaveGetDelete(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.Init())

	require.NoError(t, b.SavePreset(core.Preset{Name: "block", Spec: grid(2)}))

	got, err := b.GetPreset("block")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Spec.Spacing)
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, b.DeletePreset("block"))
	_, err = b.GetPreset("block")
	assert.ErrorIs(t, err, storage.ErrPresetNotFound)
	assert.ErrorIs(t, b.DeletePreset("block"), storage.ErrPresetNotFound)
}

func TestSaveInvalidName(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.Error(t, b.SavePreset(core.Preset{Name: "", Spec: grid(1)}))
	assert.Error(t, b.SavePreset(core.Preset{Name: "a/b", Spec: grid(1)}))
}

func TestListSorted(t *testing.T) {
	b := New(config.MemoryConfig{})
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, b.SavePreset(core.Preset{Name: name, Spec: grid(1)}))
	}

	list, err := b.ListPresets()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestExportAndReload(t *testing.T) {
	for _, compress := range []bool{false, true} {
		dir := t.TempDir()
		cfg := config.MemoryConfig{OutputDir: dir, CompressOutput: compress}

		b := New(cfg)
		require.NoError(t, b.Init())
		require.NoError(t, b.SavePreset(core.Preset{Name: "block", Spec: grid(1.5)}))
		require.NoError(t, b.Close())

		want := filepath.Join(dir, "formation_presets.json")
		if compress {
			want += ".gz"
		}
		assert.Equal(t, want, b.LastExportPath())
		_, err := os.Stat(want)
		require.NoError(t, err)

		reloaded := New(cfg)
		require.NoError(t, reloaded.Init())
		got, err := reloaded.GetPreset("block")
		require.NoError(t, err, "compress=%v", compress)
		assert.Equal(t, 1.5, got.Spec.Spacing)
	}
}

func TestInitCorruptExport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "formation_presets.json"), []byte("{not json"), 0644))

	b := New(config.MemoryConfig{OutputDir: dir})
	assert.Error(t, b.Init())
}
