package params

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"sync"
)

var (
	// ErrUnknownParam is returned when a parameter id is not part of the schema.
	ErrUnknownParam = errors.New("unknown parameter")
	// ErrSchemaMismatch is returned when applying a snapshot taken under another schema version.
	ErrSchemaMismatch = errors.New("snapshot schema version mismatch")
)

// store is the unexported implementation of Store.
type store struct {
	mu *sync.Mutex

	schema   *Schema
	version  int
	revision uint64
	values   []float64

	// cached is the snapshot for the current revision, rebuilt lazily after a change.
	cached *Snapshot

	subscribers map[int]func(id string, value any)
	nextSubID   int
}

// Store is the validated parameter store. Every write is coerced against the schema, so pipeline
// code never validates or clamps values itself.
//
// Stores are safe for concurrent use. Subscribers are called synchronously after the store lock
// has been released, in no particular order.
type Store interface {
	// Schema returns the schema this store validates against.
	//
	// Returns:
	//   - *Schema: the schema
	Schema() *Schema

	// Version returns the schema version tag of this store.
	//
	// Returns:
	//   - int: the schema version
	Version() int

	// Revision returns a counter that increases on every effective change.
	//
	// Returns:
	//   - uint64: the current revision
	Revision() uint64

	// Get returns the typed value (bool, int or float64) of a parameter.
	//
	// Parameters:
	//   - id: the parameter id
	//
	// Returns:
	//   - any: the typed value
	//   - error: ErrUnknownParam if id is not in the schema
	Get(id string) (any, error)

	// GetAll returns every parameter as a typed value map.
	//
	// Returns:
	//   - map[string]any: values keyed by parameter id
	GetAll() map[string]any

	// Set coerces and stores a single value.
	//
	// Parameters:
	//   - id: the parameter id
	//   - value: the incoming value, coerced per the schema
	//
	// Returns:
	//   - error: ErrUnknownParam if id is not in the schema
	Set(id string, value any) error

	// SetMany coerces and stores several values as one revision. Unknown ids are skipped and
	// reported together in the returned error; known ids are still applied.
	//
	// Parameters:
	//   - values: incoming values keyed by parameter id
	//
	// Returns:
	//   - error: an error wrapping ErrUnknownParam for every unknown id, or nil
	SetMany(values map[string]any) error

	// Reset restores every parameter to its default.
	Reset()

	// Snapshot returns an immutable view of the current values.
	//
	// Returns:
	//   - Snapshot: the snapshot
	Snapshot() Snapshot

	// Apply restores every value captured in snapshot. Apply(Snapshot()) is the identity.
	//
	// Parameters:
	//   - snapshot: a snapshot taken from a store with the same schema version
	//
	// Returns:
	//   - error: ErrSchemaMismatch if the snapshot was taken under another schema version
	Apply(snapshot Snapshot) error

	// Subscribe registers fn to be called with each changed parameter id and its new typed value.
	//
	// Parameters:
	//   - fn: the change callback
	//
	// Returns:
	//   - func(): a function that removes the subscription
	Subscribe(fn func(id string, value any)) func()
}

var _ Store = &store{}

// NewStore creates a Store populated with schema defaults.
// The default schema is used unless WithSchema is given.
//
// Parameters:
//   - options: functional options for store configuration
//
// Returns:
//   - Store: the newly created store
func NewStore(options ...StoreBuilderOption) Store {
	s := &store{
		mu:          &sync.Mutex{},
		schema:      DefaultSchema(),
		version:     SchemaVersion,
		subscribers: make(map[int]func(string, any)),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.values == nil {
		s.values = s.schema.defaults()
	}
	return s
}

func (s *store) Schema() *Schema {
	return s.schema
}

func (s *store) Version() int {
	return s.version
}

func (s *store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

func (s *store) Get(id string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, i, ok := s.schema.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("get %q: %w", id, ErrUnknownParam)
	}
	return typed(d, s.values[i]), nil
}

func (s *store) GetAll() map[string]any {
	return s.Snapshot().Values()
}

func (s *store) Set(id string, value any) error {
	d, i, ok := s.schema.Lookup(id)
	if !ok {
		return fmt.Errorf("set %q: %w", id, ErrUnknownParam)
	}
	s.mu.Lock()
	changed := s.write(i, Coerce(d, value))
	s.mu.Unlock()
	s.notify(changed)
	return nil
}

func (s *store) SetMany(values map[string]any) error {
	var errs []error
	// Deterministic order keeps notifications stable for subscribers.
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	s.mu.Lock()
	var changed []int
	for _, id := range ids {
		d, i, ok := s.schema.Lookup(id)
		if !ok {
			errs = append(errs, fmt.Errorf("set %q: %w", id, ErrUnknownParam))
			continue
		}
		changed = append(changed, s.write(i, Coerce(d, values[id]))...)
	}
	s.mu.Unlock()
	s.notify(changed)
	return errors.Join(errs...)
}

func (s *store) Reset() {
	s.mu.Lock()
	var changed []int
	for i, d := range s.schema.defs {
		changed = append(changed, s.write(i, d.Default)...)
	}
	s.mu.Unlock()
	s.notify(changed)
}

func (s *store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		s.cached = &Snapshot{
			schema:   s.schema,
			version:  s.version,
			revision: s.revision,
			values:   slices.Clone(s.values),
		}
	}
	return *s.cached
}

func (s *store) Apply(snapshot Snapshot) error {
	if snapshot.IsZero() {
		return fmt.Errorf("apply: empty snapshot")
	}
	if snapshot.version != s.version {
		log.Printf("[Params] rejected snapshot with schema version %d (store is %d)", snapshot.version, s.version)
		return fmt.Errorf("apply snapshot v%d to store v%d: %w", snapshot.version, s.version, ErrSchemaMismatch)
	}
	return s.SetMany(snapshot.Values())
}

func (s *store) Subscribe(fn func(id string, value any)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// write stores raw at index i. Must be called with the lock held.
// It returns the index in a slice when the value changed, so callers can append it directly.
func (s *store) write(i int, raw float64) []int {
	if s.values[i] == raw {
		return nil
	}
	s.values[i] = raw
	s.revision++
	s.cached = nil
	return []int{i}
}

// notify calls every subscriber for each changed index. Must be called without the lock held.
func (s *store) notify(changed []int) {
	if len(changed) == 0 {
		return
	}
	s.mu.Lock()
	subs := make([]func(string, any), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	type change struct {
		id    string
		value any
	}
	changes := make([]change, 0, len(changed))
	for _, i := range changed {
		d := s.schema.defs[i]
		changes = append(changes, change{id: d.ID, value: typed(d, s.values[i])})
	}
	s.mu.Unlock()

	for _, c := range changes {
		for _, fn := range subs {
			fn(c.id, c.value)
		}
	}
}
