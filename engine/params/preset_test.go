package params

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPresetsAreValid(t *testing.T) {
	schema := DefaultSchema()
	for _, name := range BuiltinPresetNames() {
		values, err := NewPresetLibrary().Get(name)
		require.NoError(t, err, name)
		for id := range values {
			_, _, ok := schema.Lookup(id)
			assert.True(t, ok, "preset %s uses unknown id %s", name, id)
		}
	}
}

func TestApplyPresetWritesOnlyNamedValues(t *testing.T) {
	lib := NewPresetLibrary()
	s := NewStore()
	require.NoError(t, s.Set(BPM, 140))

	require.NoError(t, lib.Apply("tunnel", s))

	snap := s.Snapshot()
	assert.Equal(t, 12, snap.Int(Segments))
	assert.InDelta(t, 0.972, snap.Float(Decay), 1e-12)
	assert.InDelta(t, 140, snap.Float(BPM), 1e-12)

	assert.True(t, errors.Is(lib.Apply("missing", s), ErrPresetNotFound))
}

func TestUserPresetCRUD(t *testing.T) {
	var saved []PresetDocument
	lib := NewPresetLibrary(WithOnChange(func(doc PresetDocument) {
		saved = append(saved, doc)
	}))
	s := NewStore()
	require.NoError(t, s.Set(Decay, 0.9))

	require.NoError(t, lib.Create("mine", s.Snapshot()))
	assert.True(t, errors.Is(lib.Create("mine", s.Snapshot()), ErrPresetExists))
	assert.True(t, errors.Is(lib.Create("tunnel", s.Snapshot()), ErrBuiltinPreset))
	assert.Error(t, lib.Create("  ", s.Snapshot()))

	assert.Equal(t, append(BuiltinPresetNames(), "mine"), lib.Names())

	require.NoError(t, s.Set(Decay, 0.85))
	require.NoError(t, lib.Update("mine", s.Snapshot()))
	assert.True(t, errors.Is(lib.Update("ghost", s.Snapshot()), ErrPresetNotFound))
	assert.True(t, errors.Is(lib.Update("default", s.Snapshot()), ErrBuiltinPreset))

	values, err := lib.Get("mine")
	require.NoError(t, err)
	assert.InDelta(t, 0.85, values[Decay], 1e-12)

	require.NoError(t, lib.SetStartup("mine"))
	assert.Equal(t, "mine", lib.Startup())

	assert.True(t, errors.Is(lib.Delete("flow"), ErrBuiltinPreset))
	require.NoError(t, lib.Delete("mine"))
	assert.Equal(t, DefaultPreset, lib.Startup())
	assert.True(t, errors.Is(lib.Delete("mine"), ErrPresetNotFound))

	assert.Len(t, saved, 4)
}

func TestPresetSnapshotRoundTrip(t *testing.T) {
	lib := NewPresetLibrary()
	s := NewStore()
	require.NoError(t, s.SetMany(map[string]any{Segments: 3, EnableBloom: false, PolarTwist: -1.5}))
	want := s.Snapshot().Values()

	require.NoError(t, lib.Create("snap", s.Snapshot()))
	s.Reset()
	require.NoError(t, lib.Apply("snap", s))

	assert.Equal(t, want, s.GetAll())
}

func TestPresetFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets", "presets.toml")

	doc, err := LoadPresetFile(path)
	require.NoError(t, err)
	assert.Empty(t, doc.Presets)

	s := NewStore()
	require.NoError(t, s.SetMany(map[string]any{Segments: 6, Decay: 0.93, EnableTile: true}))
	lib := NewPresetLibrary(WithOnChange(func(doc PresetDocument) {
		require.NoError(t, SavePresetFile(path, doc))
	}))
	require.NoError(t, lib.Create("saved", s.Snapshot()))
	require.NoError(t, lib.SetStartup("saved"))

	loaded, err := LoadPresetFile(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Startup)

	reloaded := NewPresetLibrary(WithDocument(loaded))
	assert.Equal(t, "saved", reloaded.Startup())

	fresh := NewStore()
	require.NoError(t, reloaded.Apply("saved", fresh))
	assert.Equal(t, s.GetAll(), fresh.GetAll())
}

func TestPresetFileVersionMismatchIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = 99\n[presets.old]\ndecay = 0.9\n"), 0o644))

	doc, err := LoadPresetFile(path)
	require.NoError(t, err)
	assert.Empty(t, doc.Presets)
}

func TestYAMLImportExport(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetMany(map[string]any{EchoTaps: 3, EchoMix: 0.5}))
	src := NewPresetLibrary()
	require.NoError(t, src.Create("echoes", s.Snapshot()))

	var buf bytes.Buffer
	require.NoError(t, ExportYAML(&buf, src.Document()))

	doc, err := ImportYAML(&buf)
	require.NoError(t, err)

	dst := NewPresetLibrary()
	assert.Equal(t, 1, dst.Merge(doc))

	fresh := NewStore()
	require.NoError(t, dst.Apply("echoes", fresh))
	assert.Equal(t, 3, fresh.Snapshot().Int(EchoTaps))
	assert.InDelta(t, 0.5, fresh.Snapshot().Float(EchoMix), 1e-12)

	_, err = ImportYAML(bytes.NewBufferString("version: 7\npresets: {}\n"))
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestMergeSkipsBuiltinNames(t *testing.T) {
	lib := NewPresetLibrary()
	n := lib.Merge(PresetDocument{Presets: map[string]map[string]any{
		"default": {Decay: 0.9},
		"extra":   {Decay: 0.9},
	}})
	assert.Equal(t, 1, n)

	values, err := lib.Get("default")
	require.NoError(t, err)
	_, overridden := values[Decay]
	assert.False(t, overridden)
}

func TestPresetWatcherFiresOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	require.NoError(t, SavePresetFile(path, PresetDocument{}))

	var fired atomic.Int32
	w, err := NewPresetWatcher(path, func() { fired.Add(1) })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, SavePresetFile(path, PresetDocument{Startup: "tunnel"}))

	assert.Eventually(t, func() bool { return fired.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, w.Close())
}
