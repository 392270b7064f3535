// Package gormstorage implements storage.Backend on any GORM dialect. The
// sqlite and postgres backends embed it and only differ in how they open
// the database.
package gormstorage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/auslab/swarm/internal/storage"
	"github.com/auslab/swarm/pkg/core"
)

// Preset is the database row for one formation preset. The full spec is
// kept as JSON; the pattern is duplicated for filtering.
type Preset struct {
	Name      string         `gorm:"primaryKey;size:64"`
	Pattern   string         `gorm:"size:16;index"`
	Spec      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName overrides the default table name.
func (Preset) TableName() string {
	return "formation_presets"
}

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger zerolog.Logger
}

// Backend stores presets through GORM.
type Backend struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New creates a GORM backend. The database must already be open.
func New(deps Dependencies) *Backend {
	return &Backend{db: deps.DB, log: deps.Logger}
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init migrates the preset table.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(&Preset{}); err != nil {
		return fmt.Errorf("failed to migrate presets: %w", err)
	}
	b.log.Info().Str("dialect", b.db.Dialector.Name()).Msg("Preset store ready")
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// SavePreset inserts p or replaces the preset with the same name.
func (b *Backend) SavePreset(p core.Preset) error {
	if err := storage.ValidateName(p.Name); err != nil {
		return err
	}
	spec, err := json.Marshal(p.Spec)
	if err != nil {
		return fmt.Errorf("encoding preset %s: %w", p.Name, err)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	row := Preset{
		Name:      p.Name,
		Pattern:   string(p.Spec.Pattern),
		Spec:      datatypes.JSON(spec),
		UpdatedAt: p.UpdatedAt,
	}
	err = b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"pattern", "spec", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving preset %s: %w", p.Name, err)
	}

	b.log.Debug().Str("preset", p.Name).Str("pattern", row.Pattern).Msg("Preset saved")
	return nil
}

// GetPreset returns the preset with the given name.
func (b *Backend) GetPreset(name string) (core.Preset, error) {
	var row Preset
	err := b.db.Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Preset{}, fmt.Errorf("%w: %s", storage.ErrPresetNotFound, name)
	}
	if err != nil {
		return core.Preset{}, fmt.Errorf("loading preset %s: %w", name, err)
	}
	return row.toCore()
}

// ListPresets returns every preset ordered by name.
func (b *Backend) ListPresets() ([]core.Preset, error) {
	var rows []Preset
	if err := b.db.Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing presets: %w", err)
	}

	out := make([]core.Preset, 0, len(rows))
	for _, row := range rows {
		p, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// DeletePreset removes the preset with the given name.
func (b *Backend) DeletePreset(name string) error {
	res := b.db.Where("name = ?", name).Delete(&Preset{})
	if res.Error != nil {
		return fmt.Errorf("deleting preset %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrPresetNotFound, name)
	}
	return nil
}

func (row Preset) toCore() (core.Preset, error) {
	var spec core.FormationSpec
	if err := json.Unmarshal(row.Spec, &spec); err != nil {
		return core.Preset{}, fmt.Errorf("decoding preset %s: %w", row.Name, err)
	}
	return core.Preset{Name: row.Name, Spec: spec, UpdatedAt: row.UpdatedAt.UTC()}, nil
}
