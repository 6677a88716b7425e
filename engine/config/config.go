// Package config loads the TOML run configuration for the kaleido executable.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/export"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName is the run configuration looked up in the working directory when no path is given.
const DefaultFileName = "kaleido.toml"

// ErrInvalidConfig wraps every validation failure reported by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Window holds the output window settings.
type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	VSync  bool   `toml:"vsync"`
}

// Renderer holds the backend selection.
type Renderer struct {
	// Software requests the fallback (CPU) GPU adapter from wgpu.
	Software bool `toml:"software"`
	// Headless runs the Go-kernel backend without a GPU.
	Headless bool `toml:"headless"`
	Workers  int  `toml:"workers"`
}

// Engine holds loop settings.
type Engine struct {
	FrameLimit float64 `toml:"frame_limit"`
	Profiling  bool    `toml:"profiling"`
}

// Presets holds preset persistence settings.
type Presets struct {
	File    string `toml:"file"`
	Startup string `toml:"startup"`
	Watch   bool   `toml:"watch"`
}

// Export holds still-frame export settings.
type Export struct {
	Directory string `toml:"directory"`
	Format    string `toml:"format"`
}

// Source holds the initial source image.
type Source struct {
	Image string `toml:"image"`
	Fit   string `toml:"fit"`
}

// Config is the complete run configuration.
type Config struct {
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
	Engine   Engine   `toml:"engine"`
	Presets  Presets  `toml:"presets"`
	Export   Export   `toml:"export"`
	Source   Source   `toml:"source"`
}

// Default returns the configuration used when no file is present.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Window: Window{
			Title:  "kaleido",
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Engine: Engine{
			FrameLimit: 0,
		},
		Presets: Presets{
			File:  "kaleido-presets.toml",
			Watch: true,
		},
		Export: Export{
			Directory: "captures",
			Format:    export.FormatPNG.String(),
		},
		Source: Source{
			Fit: common.FitCover.String(),
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file yields the defaults.
// Relative file paths inside the config resolve against the config file's directory.
//
// Parameters:
//   - path: the config file path
//
// Returns:
//   - Config: the loaded configuration
//   - error: an error if the file exists but cannot be read, parsed or validated
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	cfg.Presets.File = resolve(dir, cfg.Presets.File)
	cfg.Export.Directory = resolve(dir, cfg.Export.Directory)
	cfg.Source.Image = resolve(dir, cfg.Source.Image)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as TOML, creating parent directories as needed.
//
// Parameters:
//   - path: the config file path
//   - cfg: the configuration to write
//
// Returns:
//   - error: an error if encoding or writing fails
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks value ranges and enum names.
//
// Returns:
//   - error: ErrInvalidConfig wrapped with the first problem found, or nil
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	if c.Engine.FrameLimit < 0 {
		return fmt.Errorf("%w: negative frame limit", ErrInvalidConfig)
	}
	if c.Renderer.Workers < 0 {
		return fmt.Errorf("%w: negative worker count", ErrInvalidConfig)
	}
	if _, err := c.ExportFormat(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.FitMode(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ExportFormat parses the configured export format.
func (c Config) ExportFormat() (export.Format, error) {
	return export.ParseFormat(c.Export.Format)
}

// FitMode parses the configured source fit mode.
func (c Config) FitMode() (common.FitMode, error) {
	return common.ParseFitMode(c.Source.Fit)
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "~") {
		return p
	}
	return filepath.Join(dir, p)
}
