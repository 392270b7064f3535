// internal/storage/storage.go
package storage

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/auslab/swarm/pkg/core"
)

// ErrPresetNotFound is returned when no preset has the requested name.
var ErrPresetNotFound = errors.New("preset not found")

// Backend is the interface all preset storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Presets are keyed by name; Save replaces an existing preset.
	SavePreset(p core.Preset) error
	GetPreset(name string) (core.Preset, error)
	ListPresets() ([]core.Preset, error)
	DeletePreset(name string) error
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidateName checks that name is usable as a preset key and URL segment.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid preset name %q: use up to 64 letters, digits, '.', '_' or '-'", name)
	}
	return nil
}
