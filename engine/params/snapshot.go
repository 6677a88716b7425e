package params

// Snapshot is an immutable view of every parameter value at one store revision.
// It is passed by value; the backing slice is never written after construction.
// The frame pipeline reads one Snapshot at the start of a frame so every pass in that frame
// observes the same values.
type Snapshot struct {
	schema   *Schema
	version  int
	revision uint64
	values   []float64
}

// Version returns the schema version the snapshot was taken under.
func (s Snapshot) Version() int {
	return s.version
}

// Revision returns the store revision the snapshot reflects.
func (s Snapshot) Revision() uint64 {
	return s.revision
}

// Schema returns the schema the snapshot was taken under.
func (s Snapshot) Schema() *Schema {
	return s.schema
}

// IsZero reports whether the snapshot was never populated by a store.
func (s Snapshot) IsZero() bool {
	return s.schema == nil
}

func (s Snapshot) raw(id string) (float64, Def, bool) {
	if s.schema == nil {
		return 0, Def{}, false
	}
	d, i, ok := s.schema.Lookup(id)
	if !ok || i >= len(s.values) {
		return 0, Def{}, false
	}
	return s.values[i], d, true
}

// Bool returns the value of a bool parameter, or false if id is unknown.
func (s Snapshot) Bool(id string) bool {
	v, _, ok := s.raw(id)
	return ok && v != 0
}

// Int returns the value of an int parameter, or 0 if id is unknown.
func (s Snapshot) Int(id string) int {
	v, _, _ := s.raw(id)
	return int(v)
}

// Float returns the value of a numeric parameter, or 0 if id is unknown.
func (s Snapshot) Float(id string) float64 {
	v, _, _ := s.raw(id)
	return v
}

// Float32 returns the value of a numeric parameter as float32, the precision passes consume.
func (s Snapshot) Float32(id string) float32 {
	return float32(s.Float(id))
}

// Value returns the typed value (bool, int or float64) of id.
func (s Snapshot) Value(id string) (any, bool) {
	v, d, ok := s.raw(id)
	if !ok {
		return nil, false
	}
	return typed(d, v), true
}

// Values returns every parameter as a typed value map.
func (s Snapshot) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	if s.schema == nil {
		return out
	}
	for i, d := range s.schema.defs {
		out[d.ID] = typed(d, s.values[i])
	}
	return out
}
