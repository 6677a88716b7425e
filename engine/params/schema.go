package params

import "fmt"

// SchemaVersion is the version tag carried by every Snapshot and persisted preset file.
// Snapshots taken under a different schema version are rejected by Store.Apply.
const SchemaVersion = 1

// Kind is the validated type of a parameter.
type Kind int

const (
	// KindBool is a boolean toggle.
	KindBool Kind = iota
	// KindInt is an integer with an inclusive range.
	KindInt
	// KindFloat is a float with an inclusive range.
	KindFloat
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Def describes one named parameter: its kind, inclusive range and default.
// Bool parameters ignore Min and Max and store 0 or 1.
type Def struct {
	ID      string
	Group   string
	Kind    Kind
	Min     float64
	Max     float64
	Default float64
}

// Parameter ids. The frame pipeline reads these from a Snapshot once per frame.
const (
	EnableKaleido = "enableKaleido"
	Segments      = "segments"
	Rotate        = "rotate"
	Zoom          = "zoom"
	KInner        = "kInner"
	KOuter        = "kOuter"
	EnableTile    = "enableTile"
	TileX         = "tileX"
	TileY         = "tileY"
	TileMirror    = "tileMirror"

	EnableWarp       = "enableWarp"
	Warp             = "warp"
	Flow             = "flow"
	EnableColor      = "enableColor"
	ColorSpeed       = "colorSpeed"
	TexMix           = "texMix"
	EnableChromaFlow = "enableChromaFlow"
	ChromaAmt        = "chromaAmt"

	EnableFlowAdvect    = "enableFlowAdvect"
	FlowMix             = "flowMix"
	AdvectStrength      = "advectStrength"
	CurlScale           = "curlScale"
	CurlSpeed           = "curlSpeed"
	EnableOpticalFlow   = "enableOpticalFlow"
	OptFlowScale        = "optFlowScale"
	OptFlowRadius       = "optFlowRadius"
	EnablePyramidalFlow = "enablePyramidalFlow"
	PyrLargeWeight      = "pyrLargeWeight"
	FlowSmoothing       = "flowSmoothing"
	EnableAutoGain      = "enableAutoGain"

	EnableFeedback      = "enableFeedback"
	Decay               = "decay"
	ZoomRate            = "zoomRate"
	RotateRate          = "rotateRate"
	EnablePolarFeedback = "enablePolarFeedback"
	PolarScale          = "polarScale"
	PolarTwist          = "polarTwist"
	EchoTaps            = "echoTaps"
	EchoMix             = "echoMix"
	EchoAngle           = "echoAngle"

	EnableBloom    = "enableBloom"
	BloomThreshold = "bloomThreshold"
	BloomIntensity = "bloomIntensity"
	BloomRadius    = "bloomRadius"

	BPM = "bpm"
)

func boolDef(group, id string, def bool) Def {
	d := Def{ID: id, Group: group, Kind: KindBool, Min: 0, Max: 1}
	if def {
		d.Default = 1
	}
	return d
}

func intDef(group, id string, lo, hi, def int) Def {
	return Def{ID: id, Group: group, Kind: KindInt, Min: float64(lo), Max: float64(hi), Default: float64(def)}
}

func floatDef(group, id string, lo, hi, def float64) Def {
	return Def{ID: id, Group: group, Kind: KindFloat, Min: lo, Max: hi, Default: def}
}

// Schema is an ordered, immutable set of parameter definitions.
type Schema struct {
	defs  []Def
	index map[string]int
}

// NewSchema builds a Schema from the given definitions, preserving their order.
// It returns an error on duplicate ids, empty ids or inverted ranges.
//
// Parameters:
//   - defs: the parameter definitions
//
// Returns:
//   - *Schema: the schema
//   - error: an error if any definition is invalid
func NewSchema(defs ...Def) (*Schema, error) {
	s := &Schema{
		defs:  make([]Def, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("parameter definition with empty id")
		}
		if _, dup := s.index[d.ID]; dup {
			return nil, fmt.Errorf("duplicate parameter id %q", d.ID)
		}
		if d.Kind != KindBool && d.Min > d.Max {
			return nil, fmt.Errorf("parameter %q has min %v > max %v", d.ID, d.Min, d.Max)
		}
		s.index[d.ID] = len(s.defs)
		s.defs = append(s.defs, d)
	}
	return s, nil
}

// Len returns the number of parameters.
func (s *Schema) Len() int {
	return len(s.defs)
}

// Defs returns a copy of the definitions in schema order.
func (s *Schema) Defs() []Def {
	out := make([]Def, len(s.defs))
	copy(out, s.defs)
	return out
}

// Lookup returns the definition and its index for id.
func (s *Schema) Lookup(id string) (Def, int, bool) {
	i, ok := s.index[id]
	if !ok {
		return Def{}, -1, false
	}
	return s.defs[i], i, true
}

// defaults returns the default raw values in schema order.
func (s *Schema) defaults() []float64 {
	out := make([]float64, len(s.defs))
	for i, d := range s.defs {
		out[i] = d.Default
	}
	return out
}

var defaultSchema = mustSchema(
	boolDef("mandala", EnableKaleido, true),
	intDef("mandala", Segments, 0, 24, 8),
	floatDef("mandala", Rotate, 0, 6.283, 0),
	floatDef("mandala", Zoom, 0.25, 3, 1),
	floatDef("mandala", KInner, 0, 1.2, 0.15),
	floatDef("mandala", KOuter, 0, 1.5, 0.85),
	boolDef("mandala", EnableTile, false),
	floatDef("mandala", TileX, 1, 8, 2),
	floatDef("mandala", TileY, 1, 8, 2),
	boolDef("mandala", TileMirror, true),

	boolDef("warp", EnableWarp, true),
	floatDef("warp", Warp, 0, 1, 0.3),
	floatDef("warp", Flow, 0, 3, 1),
	boolDef("warp", EnableColor, true),
	floatDef("warp", ColorSpeed, 0, 3, 0.8),
	floatDef("warp", TexMix, 0, 1, 0.7),
	boolDef("warp", EnableChromaFlow, true),
	floatDef("warp", ChromaAmt, 0, 4, 1.2),

	boolDef("flow", EnableFlowAdvect, true),
	floatDef("flow", FlowMix, 0, 1, 0.6),
	floatDef("flow", AdvectStrength, 0, 6, 0.5),
	floatDef("flow", CurlScale, 0.5, 8, 2.5),
	floatDef("flow", CurlSpeed, 0, 3, 1),
	boolDef("flow", EnableOpticalFlow, false),
	floatDef("flow", OptFlowScale, 0, 20, 6),
	intDef("flow", OptFlowRadius, 1, 3, 2),
	boolDef("flow", EnablePyramidalFlow, true),
	floatDef("flow", PyrLargeWeight, 0, 1, 0.5),
	floatDef("flow", FlowSmoothing, 0, 0.99, 0.6),
	boolDef("flow", EnableAutoGain, true),

	boolDef("feedback", EnableFeedback, true),
	floatDef("feedback", Decay, 0.80, 0.999, 0.965),
	floatDef("feedback", ZoomRate, 0, 0.02, 0.004),
	floatDef("feedback", RotateRate, -0.02, 0.02, 0.002),
	boolDef("feedback", EnablePolarFeedback, true),
	floatDef("feedback", PolarScale, 0.5, 4, 1.2),
	floatDef("feedback", PolarTwist, -2, 2, 0.3),
	intDef("feedback", EchoTaps, 0, 3, 2),
	floatDef("feedback", EchoMix, 0, 1, 0.35),
	floatDef("feedback", EchoAngle, 0, 1.5707, 0.25),

	boolDef("bloom", EnableBloom, true),
	floatDef("bloom", BloomThreshold, 0, 1, 0.6),
	floatDef("bloom", BloomIntensity, 0, 3, 0.8),
	floatDef("bloom", BloomRadius, 0.5, 3, 1.2),

	floatDef("transport", BPM, 20, 300, 120),
)

// DefaultSchema returns the schema of every parameter the frame pipeline reads.
func DefaultSchema() *Schema {
	return defaultSchema
}

func mustSchema(defs ...Def) *Schema {
	s, err := NewSchema(defs...)
	if err != nil {
		panic(err)
	}
	return s
}
