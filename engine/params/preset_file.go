package params

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// PresetDocument is the persisted form of the user presets.
// It is written as TOML for the preset file and as YAML for import/export.
type PresetDocument struct {
	Version int                       `toml:"version" yaml:"version"`
	Startup string                    `toml:"startup,omitempty" yaml:"startup,omitempty"`
	Presets map[string]map[string]any `toml:"presets" yaml:"presets"`
}

// LoadPresetFile reads a TOML preset file. A missing file yields an empty document.
// A file written under another schema version is ignored with a log line, so stale presets
// never leak values of a different shape into the store.
//
// Parameters:
//   - path: the preset file path
//
// Returns:
//   - PresetDocument: the loaded document
//   - error: an error if the file exists but cannot be read or parsed
func LoadPresetFile(path string) (PresetDocument, error) {
	empty := PresetDocument{Version: SchemaVersion, Presets: map[string]map[string]any{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("read preset file %s: %w", path, err)
	}
	var doc PresetDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return empty, fmt.Errorf("parse preset file %s: %w", path, err)
	}
	if doc.Version != SchemaVersion {
		log.Printf("[Presets] %s has schema version %d, expected %d; using defaults", path, doc.Version, SchemaVersion)
		return empty, nil
	}
	if doc.Presets == nil {
		doc.Presets = map[string]map[string]any{}
	}
	return doc, nil
}

// SavePresetFile writes doc as TOML, creating parent directories as needed.
// The file is written to a temporary sibling and renamed so watchers never observe a partial write.
//
// Parameters:
//   - path: the preset file path
//   - doc: the document to write
//
// Returns:
//   - error: an error if encoding or writing fails
func SavePresetFile(path string, doc PresetDocument) error {
	doc.Version = SchemaVersion
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preset dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write preset file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace preset file: %w", err)
	}
	return nil
}

// ExportYAML writes doc as a YAML document.
//
// Parameters:
//   - w: the destination writer
//   - doc: the document to export
//
// Returns:
//   - error: an error if encoding fails
func ExportYAML(w io.Writer, doc PresetDocument) error {
	doc.Version = SchemaVersion
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export presets: %w", err)
	}
	return enc.Close()
}

// ImportYAML reads a YAML preset document. Documents from another schema version are rejected.
//
// Parameters:
//   - r: the source reader
//
// Returns:
//   - PresetDocument: the imported document
//   - error: an error if decoding fails or the version does not match
func ImportYAML(r io.Reader) (PresetDocument, error) {
	var doc PresetDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return PresetDocument{}, fmt.Errorf("import presets: %w", err)
	}
	if doc.Version != SchemaVersion {
		return PresetDocument{}, fmt.Errorf("import presets v%d: %w", doc.Version, ErrSchemaMismatch)
	}
	if doc.Presets == nil {
		doc.Presets = map[string]map[string]any{}
	}
	return doc, nil
}
