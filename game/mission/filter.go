package mission

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FilterKind tags the type of a property-filter literal.
type FilterKind int

const (
	// KindInvalid marks a literal the loader could not type (never matches).
	KindInvalid FilterKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

// FilterValue is one typed property-filter literal from a mission definition.
// Booleans and strings compare by equality/substring; numbers act as
// lower-bound thresholds, so a filter of 3 accepts an observed 5.
type FilterValue struct {
	Kind  FilterKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// UnmarshalJSON types the literal: true/false, integer, float, or string.
// Nulls, arrays, and objects decode to KindInvalid instead of erroring so a
// bad filter entry disables matching without failing the whole catalog load.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		*v = FilterValue{Kind: KindInvalid}
		return nil
	}
	switch t := raw.(type) {
	case bool:
		*v = FilterValue{Kind: KindBool, Bool: t}
	case string:
		*v = FilterValue{Kind: KindString, Str: t}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			*v = FilterValue{Kind: KindInt, Int: i}
		} else if f, err := t.Float64(); err == nil {
			*v = FilterValue{Kind: KindFloat, Float: f}
		} else {
			*v = FilterValue{Kind: KindInvalid}
		}
	default:
		*v = FilterValue{Kind: KindInvalid}
	}
	return nil
}

// MarshalJSON writes the literal back in its natural JSON form, so stored
// rows round-trip through the event_properties column.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindBool:
		return json.Marshal(v.Bool)
	case KindInt:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	case KindString:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

// Compare checks an observed event value against this filter literal.
// Booleans require exact equality, strings a case-insensitive substring,
// and numbers treat the literal as a minimum threshold. Any other pairing
// is a hard mismatch.
func (v FilterValue) Compare(observed interface{}) bool {
	switch v.Kind {
	case KindBool:
		b, ok := observed.(bool)
		return ok && b == v.Bool

	case KindInt:
		i, ok := asInt(observed)
		return ok && i >= v.Int

	case KindFloat:
		f, ok := asFloat(observed)
		return ok && f >= v.Float

	case KindString:
		s, ok := observed.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(v.Str))

	default:
		return false
	}
}

// asInt accepts only integer-kind observed values; floats are rejected so an
// integer threshold never silently compares against fractional data.
func asInt(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case json.Number:
		i, err := t.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// asFloat accepts any numeric observed value for float thresholds.
func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		if i, ok := asInt(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

// NormalizeProperties converts a JSON-decoded property bag (UseNumber form)
// into the comparison types: json.Number becomes int64 when it is a clean
// integer, float64 otherwise. Other values pass through unchanged.
func NormalizeProperties(props map[string]interface{}) map[string]interface{} {
	if props == nil {
		return nil
	}
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				out[k] = i
				continue
			}
			if f, err := n.Float64(); err == nil {
				out[k] = f
				continue
			}
		}
		out[k] = v
	}
	return out
}
