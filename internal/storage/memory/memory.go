// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/internal/storage"
	"github.com/auslab/swarm/pkg/core"
)

// Backend keeps presets in memory and, when an output directory is
// configured, loads them on Init and exports them on Close.
type Backend struct {
	cfg     config.MemoryConfig
	presets map[string]core.Preset
	mu      sync.RWMutex

	lastExportPath string
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		presets: make(map[string]core.Preset),
	}
}

// Init loads a previous export if one exists.
func (b *Backend) Init() error {
	if b.cfg.OutputDir == "" {
		return nil
	}
	presets, err := b.importJSON()
	if err != nil {
		return fmt.Errorf("loading presets: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range presets {
		b.presets[p.Name] = p
	}
	return nil
}

// Close exports the presets when an output directory is configured.
func (b *Backend) Close() error {
	if b.cfg.OutputDir == "" {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exportJSON()
}

// SavePreset stores p, replacing any preset with the same name.
func (b *Backend) SavePreset(p core.Preset) error {
	if err := storage.ValidateName(p.Name); err != nil {
		return err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.presets[p.Name] = p
	return nil
}

// GetPreset returns the preset with the given name.
func (b *Backend) GetPreset(name string) (core.Preset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.presets[name]
	if !ok {
		return core.Preset{}, fmt.Errorf("%w: %s", storage.ErrPresetNotFound, name)
	}
	return p, nil
}

// ListPresets returns every preset ordered by name.
func (b *Backend) ListPresets() ([]core.Preset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sorted(), nil
}

// DeletePreset removes the preset with the given name.
func (b *Backend) DeletePreset(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.presets[name]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrPresetNotFound, name)
	}
	delete(b.presets, name)
	return nil
}

// LastExportPath returns the file written by the most recent export.
func (b *Backend) LastExportPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// sorted must be called with b.mu held.
func (b *Backend) sorted() []core.Preset {
	out := make([]core.Preset, 0, len(b.presets))
	for _, p := range b.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
