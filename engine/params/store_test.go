package params

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreDefaults(t *testing.T) {
	s := NewStore()
	snap := s.Snapshot()

	assert.Equal(t, SchemaVersion, snap.Version())
	assert.True(t, snap.Bool(EnableKaleido))
	assert.Equal(t, 8, snap.Int(Segments))
	assert.InDelta(t, 0.965, snap.Float(Decay), 1e-12)
	assert.False(t, snap.Bool(EnableOpticalFlow))
	assert.Equal(t, DefaultSchema().Len(), len(snap.Values()))
}

func TestCoerce(t *testing.T) {
	schema := DefaultSchema()
	segments, _, _ := schema.Lookup(Segments)
	decay, _, _ := schema.Lookup(Decay)
	kaleido, _, _ := schema.Lookup(EnableKaleido)

	tests := []struct {
		name string
		def  Def
		in   any
		want float64
	}{
		{"int rounds", segments, 7.6, 8},
		{"int clamps high", segments, 99, 24},
		{"int clamps low", segments, -3, 0},
		{"int nan falls back", segments, math.NaN(), 8},
		{"int string", segments, "12", 12},
		{"int garbage falls back", segments, "twelve", 8},
		{"float clamps", decay, 2.0, 0.999},
		{"float inf falls back", decay, math.Inf(1), 0.965},
		{"float keeps in range", decay, 0.9, 0.9},
		{"bool true", kaleido, true, 1},
		{"bool zero", kaleido, 0, 0},
		{"bool nonzero", kaleido, 3, 1},
		{"bool string false", kaleido, "false", 0},
		{"bool nil", kaleido, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coerce(tt.def, tt.in))
		})
	}
}

func TestStoreSetAndGet(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Set(Segments, 30))
	v, err := s.Get(Segments)
	require.NoError(t, err)
	assert.Equal(t, 24, v)

	err = s.Set("nope", 1)
	assert.True(t, errors.Is(err, ErrUnknownParam))

	_, err = s.Get("nope")
	assert.True(t, errors.Is(err, ErrUnknownParam))
}

func TestStoreSetManyAppliesKnownIDs(t *testing.T) {
	s := NewStore()
	before := s.Revision()

	err := s.SetMany(map[string]any{Decay: 0.9, "bogus": 1, EchoTaps: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownParam))

	snap := s.Snapshot()
	assert.InDelta(t, 0.9, snap.Float(Decay), 1e-12)
	assert.Equal(t, 1, snap.Int(EchoTaps))
	assert.Greater(t, s.Revision(), before)
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := NewStore()
	snap := s.Snapshot()

	require.NoError(t, s.Set(Decay, 0.85))

	assert.InDelta(t, 0.965, snap.Float(Decay), 1e-12)
	assert.InDelta(t, 0.85, s.Snapshot().Float(Decay), 1e-12)
}

func TestApplySnapshotIsIdentity(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetMany(map[string]any{
		Segments:   5,
		Decay:      0.91,
		RotateRate: -0.01,
		EnableTile: true,
	}))
	snap := s.Snapshot()

	other := NewStore()
	require.NoError(t, other.Apply(snap))
	assert.Equal(t, snap.Values(), other.GetAll())

	// Applying onto itself changes nothing.
	rev := s.Revision()
	require.NoError(t, s.Apply(s.Snapshot()))
	assert.Equal(t, rev, s.Revision())
	assert.Equal(t, snap.Values(), s.GetAll())
}

func TestApplyRejectsOtherSchemaVersion(t *testing.T) {
	old := NewStore(WithVersion(SchemaVersion + 1))
	s := NewStore()

	err := s.Apply(old.Snapshot())
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
	assert.Error(t, s.Apply(Snapshot{}))
}

func TestResetRestoresDefaults(t *testing.T) {
	s := NewStore(WithValues(map[string]any{Decay: 0.8, Segments: 3}))
	assert.InDelta(t, 0.8, s.Snapshot().Float(Decay), 1e-12)

	s.Reset()
	assert.Equal(t, NewStore().GetAll(), s.GetAll())
}

func TestSubscribe(t *testing.T) {
	s := NewStore()
	var got []string
	unsubscribe := s.Subscribe(func(id string, value any) {
		got = append(got, id)
	})

	require.NoError(t, s.Set(Decay, 0.9))
	require.NoError(t, s.Set(Decay, 0.9))
	assert.Equal(t, []string{Decay}, got)

	unsubscribe()
	require.NoError(t, s.Set(Decay, 0.95))
	assert.Len(t, got, 1)
}

func TestNewSchemaValidation(t *testing.T) {
	_, err := NewSchema(Def{ID: "a", Kind: KindFloat, Min: 1, Max: 0})
	assert.Error(t, err)

	_, err = NewSchema(Def{ID: "a"}, Def{ID: "a"})
	assert.Error(t, err)

	_, err = NewSchema(Def{})
	assert.Error(t, err)
}
