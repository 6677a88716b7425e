package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kaleido.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[window]
width = 800
height = 600

[engine]
frame_limit = 30.0
profiling = true

[presets]
startup = "tunnel"

[export]
format = "exr"

[source]
image = "still.png"
fit = "contain"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 600, cfg.Window.Height)
	assert.Equal(t, "kaleido", cfg.Window.Title, "unset keys keep defaults")
	assert.True(t, cfg.Window.VSync)
	assert.Equal(t, 30.0, cfg.Engine.FrameLimit)
	assert.True(t, cfg.Engine.Profiling)
	assert.Equal(t, "tunnel", cfg.Presets.Startup)
	assert.Equal(t, filepath.Join(dir, "kaleido-presets.toml"), cfg.Presets.File)
	assert.Equal(t, filepath.Join(dir, "still.png"), cfg.Source.Image)

	format, err := cfg.ExportFormat()
	require.NoError(t, err)
	assert.Equal(t, export.FormatEXR, format)
	fit, err := cfg.FitMode()
	require.NoError(t, err)
	assert.Equal(t, common.FitContain, fit)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"size":   "[window]\nwidth = 0\n",
		"format": "[export]\nformat = \"gif\"\n",
		"fit":    "[source]\nfit = \"tile\"\n",
		"limit":  "[engine]\nframe_limit = -1.0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window\nwidth = "), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kaleido.toml")
	cfg := Default()
	cfg.Window.Title = "stage"
	cfg.Renderer.Workers = 4
	cfg.Presets.File = "/abs/presets.toml"
	cfg.Export.Directory = "/abs/captures"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
