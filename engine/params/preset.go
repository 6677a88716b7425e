package params

import (
	"errors"
	"fmt"
	"log"
	"maps"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrBuiltinPreset is returned when creating, updating or deleting a built-in preset name.
	ErrBuiltinPreset = errors.New("built-in preset cannot be modified")
	// ErrPresetNotFound is returned when a preset name is neither built-in nor user-defined.
	ErrPresetNotFound = errors.New("preset not found")
	// ErrPresetExists is returned when creating a user preset whose name is taken.
	ErrPresetExists = errors.New("preset already exists")
)

// DefaultPreset is the preset applied when no startup preset is configured.
const DefaultPreset = "default"

var builtinOrder = []string{"default", "tunnel", "flow", "softbloom", "replicasion"}

var builtinPresets = map[string]map[string]any{
	"default": {
		EnableKaleido: true, Segments: 8, KInner: 0.15, KOuter: 0.85,
		EnableFlowAdvect: true, AdvectStrength: 0.01, FlowMix: 0.6,
		EnableChromaFlow: true, ChromaAmt: 1.2,
	},
	"tunnel": {
		EnableKaleido: true, Segments: 12, KInner: 0.2, KOuter: 0.9,
		ZoomRate: 0.006, RotateRate: 0.003, Decay: 0.972,
		EnableBloom: true, BloomIntensity: 1.1,
	},
	"flow": {
		EnableKaleido: false, EnableFlowAdvect: true, FlowMix: 0.8,
		AdvectStrength: 0.02, CurlScale: 2.0, CurlSpeed: 1.5,
		EnableChromaFlow: true, ChromaAmt: 1.6,
	},
	"softbloom": {
		EnableBloom: true, BloomThreshold: 0.5, BloomIntensity: 1.4, BloomRadius: 1.8,
		EnableKaleido: false, EnableFlowAdvect: false,
	},
	"replicasion": {
		EnableKaleido: true, Segments: 12, KInner: 0.15, KOuter: 0.95,
		EnableTile: true, TileX: 2, TileY: 2, TileMirror: true,
		EnableFeedback: true, Decay: 0.968, ZoomRate: 0.0065, RotateRate: 0.0025,
		EnableFlowAdvect: true, AdvectStrength: 0.014, FlowMix: 0.7, CurlScale: 2.2, CurlSpeed: 1.2,
		EnableChromaFlow: true, ChromaAmt: 1.6,
		EnableBloom: true, BloomThreshold: 0.5, BloomIntensity: 1.2, BloomRadius: 1.6,
		EnablePolarFeedback: true, PolarScale: 1.3, PolarTwist: 0.35,
		EchoTaps: 2, EchoMix: 0.4, EchoAngle: 0.22,
	},
}

// BuiltinPresetNames returns the built-in preset names in display order.
func BuiltinPresetNames() []string {
	return append([]string(nil), builtinOrder...)
}

// presetLibrary is the unexported implementation of PresetLibrary.
type presetLibrary struct {
	mu *sync.Mutex

	user    map[string]map[string]any
	startup string

	// onChange is called after every mutation with a copy of the library state, used for persistence.
	onChange func(PresetDocument)
}

// PresetLibrary holds the built-in presets and the user presets, plus the startup preset name.
// Presets are partial value maps: applying one writes only the values it names.
type PresetLibrary interface {
	// Names returns the built-in names in display order followed by user names sorted.
	//
	// Returns:
	//   - []string: all preset names
	Names() []string

	// IsBuiltin reports whether name is a built-in preset.
	//
	// Parameters:
	//   - name: the preset name
	//
	// Returns:
	//   - bool: true for built-in presets
	IsBuiltin(name string) bool

	// Get returns a copy of the values of a preset. User presets shadow nothing: built-in names are
	// reserved, so a name resolves to exactly one preset.
	//
	// Parameters:
	//   - name: the preset name
	//
	// Returns:
	//   - map[string]any: the preset values
	//   - error: ErrPresetNotFound if the name is unknown
	Get(name string) (map[string]any, error)

	// Create stores a new user preset from a snapshot.
	//
	// Parameters:
	//   - name: the new preset name
	//   - snapshot: the values to store
	//
	// Returns:
	//   - error: ErrBuiltinPreset, ErrPresetExists, or an error for an empty name
	Create(name string, snapshot Snapshot) error

	// Update overwrites an existing user preset from a snapshot.
	//
	// Parameters:
	//   - name: the user preset name
	//   - snapshot: the values to store
	//
	// Returns:
	//   - error: ErrBuiltinPreset or ErrPresetNotFound
	Update(name string, snapshot Snapshot) error

	// Delete removes a user preset. Deleting the startup preset resets the startup name to default.
	//
	// Parameters:
	//   - name: the user preset name
	//
	// Returns:
	//   - error: ErrBuiltinPreset or ErrPresetNotFound
	Delete(name string) error

	// Startup returns the preset applied at launch.
	//
	// Returns:
	//   - string: the startup preset name
	Startup() string

	// SetStartup selects the preset applied at launch.
	//
	// Parameters:
	//   - name: an existing preset name
	//
	// Returns:
	//   - error: ErrPresetNotFound if the name is unknown
	SetStartup(name string) error

	// Apply writes a preset's values into store.
	//
	// Parameters:
	//   - name: the preset name
	//   - store: the parameter store to write
	//
	// Returns:
	//   - error: ErrPresetNotFound, or a store error for unknown ids in a user preset
	Apply(name string, store Store) error

	// Document returns the persistable state of the user presets.
	//
	// Returns:
	//   - PresetDocument: the document
	Document() PresetDocument

	// Load replaces the user presets and startup name with the contents of doc. Entries using built-in
	// names are dropped.
	//
	// Parameters:
	//   - doc: the document to load
	Load(doc PresetDocument)

	// Merge adds the presets of doc to the library, overwriting user presets of the same name.
	//
	// Parameters:
	//   - doc: the document to merge
	//
	// Returns:
	//   - int: the number of presets imported
	Merge(doc PresetDocument) int
}

var _ PresetLibrary = &presetLibrary{}

// NewPresetLibrary creates a library with the built-in presets and no user presets.
//
// Parameters:
//   - options: functional options for library configuration
//
// Returns:
//   - PresetLibrary: the newly created library
func NewPresetLibrary(options ...PresetLibraryBuilderOption) PresetLibrary {
	l := &presetLibrary{
		mu:      &sync.Mutex{},
		user:    make(map[string]map[string]any),
		startup: DefaultPreset,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *presetLibrary) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := BuiltinPresetNames()
	user := make([]string, 0, len(l.user))
	for name := range l.user {
		user = append(user, name)
	}
	sort.Strings(user)
	return append(names, user...)
}

func (l *presetLibrary) IsBuiltin(name string) bool {
	_, ok := builtinPresets[name]
	return ok
}

func (l *presetLibrary) Get(name string) (map[string]any, error) {
	if values, ok := builtinPresets[name]; ok {
		return maps.Clone(values), nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if values, ok := l.user[name]; ok {
		return maps.Clone(values), nil
	}
	return nil, fmt.Errorf("preset %q: %w", name, ErrPresetNotFound)
}

func (l *presetLibrary) Create(name string, snapshot Snapshot) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("preset name must not be empty")
	}
	if l.IsBuiltin(name) {
		return fmt.Errorf("create %q: %w", name, ErrBuiltinPreset)
	}
	l.mu.Lock()
	if _, exists := l.user[name]; exists {
		l.mu.Unlock()
		return fmt.Errorf("create %q: %w", name, ErrPresetExists)
	}
	l.user[name] = snapshot.Values()
	l.mu.Unlock()
	l.changed()
	return nil
}

func (l *presetLibrary) Update(name string, snapshot Snapshot) error {
	if l.IsBuiltin(name) {
		return fmt.Errorf("update %q: %w", name, ErrBuiltinPreset)
	}
	l.mu.Lock()
	if _, exists := l.user[name]; !exists {
		l.mu.Unlock()
		return fmt.Errorf("update %q: %w", name, ErrPresetNotFound)
	}
	l.user[name] = snapshot.Values()
	l.mu.Unlock()
	l.changed()
	return nil
}

func (l *presetLibrary) Delete(name string) error {
	if l.IsBuiltin(name) {
		return fmt.Errorf("delete %q: %w", name, ErrBuiltinPreset)
	}
	l.mu.Lock()
	if _, exists := l.user[name]; !exists {
		l.mu.Unlock()
		return fmt.Errorf("delete %q: %w", name, ErrPresetNotFound)
	}
	delete(l.user, name)
	if l.startup == name {
		l.startup = DefaultPreset
	}
	l.mu.Unlock()
	l.changed()
	return nil
}

func (l *presetLibrary) Startup() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startup
}

func (l *presetLibrary) SetStartup(name string) error {
	if _, err := l.Get(name); err != nil {
		return err
	}
	l.mu.Lock()
	l.startup = name
	l.mu.Unlock()
	l.changed()
	return nil
}

func (l *presetLibrary) Apply(name string, store Store) error {
	values, err := l.Get(name)
	if err != nil {
		return err
	}
	if err := store.SetMany(values); err != nil {
		return fmt.Errorf("apply preset %q: %w", name, err)
	}
	log.Printf("[Presets] applied %q", name)
	return nil
}

func (l *presetLibrary) Document() PresetDocument {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc := PresetDocument{
		Version: SchemaVersion,
		Startup: l.startup,
		Presets: make(map[string]map[string]any, len(l.user)),
	}
	for name, values := range l.user {
		doc.Presets[name] = maps.Clone(values)
	}
	return doc
}

func (l *presetLibrary) Load(doc PresetDocument) {
	l.mu.Lock()
	l.user = make(map[string]map[string]any, len(doc.Presets))
	for name, values := range doc.Presets {
		if l.IsBuiltin(name) || strings.TrimSpace(name) == "" {
			continue
		}
		l.user[name] = maps.Clone(values)
	}
	l.startup = DefaultPreset
	if doc.Startup != "" {
		if _, user := l.user[doc.Startup]; user || l.IsBuiltin(doc.Startup) {
			l.startup = doc.Startup
		}
	}
	l.mu.Unlock()
}

func (l *presetLibrary) Merge(doc PresetDocument) int {
	n := 0
	l.mu.Lock()
	for name, values := range doc.Presets {
		if l.IsBuiltin(name) || strings.TrimSpace(name) == "" {
			continue
		}
		l.user[name] = maps.Clone(values)
		n++
	}
	l.mu.Unlock()
	if n > 0 {
		l.changed()
	}
	return n
}

func (l *presetLibrary) changed() {
	if l.onChange != nil {
		l.onChange(l.Document())
	}
}
