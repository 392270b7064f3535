// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/auslab/swarm/pkg/core"
)

const exportBaseName = "formation_presets.json"

// PresetExport is the root JSON structure of an export file
type PresetExport struct {
	ExportedAt time.Time     `json:"exportedAt"`
	Presets    []core.Preset `json:"presets"`
}

func (b *Backend) exportPath() string {
	name := exportBaseName
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	return filepath.Join(b.cfg.OutputDir, name)
}

// exportJSON writes every preset to the output directory. Must be called
// with b.mu held.
func (b *Backend) exportJSON() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	export := PresetExport{ExportedAt: time.Now().UTC(), Presets: b.sorted()}
	outputPath := b.exportPath()

	if err := writeExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

// importJSON reads a previous export. A missing file yields no presets.
func (b *Backend) importJSON() ([]core.Preset, error) {
	f, err := os.Open(b.exportPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if b.cfg.CompressOutput {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var export PresetExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}
	return export.Presets, nil
}

// writeExport encodes data to a temporary file next to path and renames it
// into place, gzip-compressing when compress is set.
func writeExport(path string, data PresetExport, compress bool) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".presets-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	var w io.Writer = tmp
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(tmp)
		w = gz
	}

	enc := json.NewEncoder(w)
	if !compress {
		enc.SetIndent("", "  ")
	}
	if err = enc.Encode(data); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	if gz != nil {
		if err = gz.Close(); err != nil {
			return err
		}
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
