package params

import (
	"math"
	"strconv"
	"strings"
)

// Coerce converts an arbitrary value into the raw stored form of d.
// Bools follow truthiness. Ints are rounded then clamped. Floats are clamped.
// Values that cannot be read as a finite number fall back to the default.
//
// Parameters:
//   - d: the parameter definition
//   - v: the incoming value (bool, any integer or float type, or a string)
//
// Returns:
//   - float64: the coerced raw value
func Coerce(d Def, v any) float64 {
	switch d.Kind {
	case KindBool:
		if truthy(v) {
			return 1
		}
		return 0
	case KindInt:
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return d.Default
		}
		return clamp(math.Round(f), d.Min, d.Max)
	default:
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return d.Default
		}
		return clamp(f, d.Min, d.Max)
	}
}

// typed converts a raw stored value back into the external representation for d.
func typed(d Def, raw float64) any {
	switch d.Kind {
	case KindBool:
		return raw != 0
	case KindInt:
		return int(raw)
	default:
		return raw
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
		return t != ""
	}
	f, ok := toFloat(v)
	return ok && f != 0 && !math.IsNaN(f)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
