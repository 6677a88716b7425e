package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/kaleido-go/engine/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// workspace writes a config whose preset file lives next to it.
func workspace(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "kaleido.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[presets]\nfile = \"presets.toml\"\nwatch = false\n"), 0o644))
	return dir, cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPresetsImportListExport(t *testing.T) {
	dir, cfg := workspace(t)
	in := filepath.Join(dir, "in.yaml")
	require.NoError(t, os.WriteFile(in, []byte(fmt.Sprintf("version: %d\npresets:\n  warm:\n    segments: 6\n  tunnel:\n    segments: 2\n", params.SchemaVersion)), 0o644))

	out, err := execute(t, "-c", cfg, "presets", "import", in)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 presets", "built-in names are not overwritten")

	_, err = execute(t, "-c", cfg, "presets", "startup", "warm")
	require.NoError(t, err)

	out, err = execute(t, "-c", cfg, "presets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* warm")
	assert.Contains(t, out, "tunnel")
	assert.Contains(t, out, "builtin")

	exported := filepath.Join(dir, "out.yaml")
	_, err = execute(t, "-c", cfg, "presets", "export", exported)
	require.NoError(t, err)
	f, err := os.Open(exported)
	require.NoError(t, err)
	defer f.Close()
	doc, err := params.ImportYAML(f)
	require.NoError(t, err)
	assert.Equal(t, "warm", doc.Startup)
	require.Contains(t, doc.Presets, "warm")
	assert.NotContains(t, doc.Presets, "tunnel")
}

func TestPresetsStartupUnknown(t *testing.T) {
	_, cfg := workspace(t)
	_, err := execute(t, "-c", cfg, "presets", "startup", "nope")
	assert.ErrorIs(t, err, params.ErrPresetNotFound)
}

func TestRunHeadlessSavesLastFrame(t *testing.T) {
	dir, cfg := workspace(t)
	shot := filepath.Join(dir, "shot.png")
	_, err := execute(t, "-c", cfg, "run", "--headless", "--frames", "2", "--width", "8", "--height", "4", "--preset", "tunnel", "-o", shot)
	require.NoError(t, err)
	info, err := os.Stat(shot)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRunHeadlessNeedsFrames(t *testing.T) {
	_, cfg := workspace(t)
	_, err := execute(t, "-c", cfg, "run", "--headless")
	assert.Error(t, err)
}
