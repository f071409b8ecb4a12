package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Kind tags how a feature value came to be.
type Kind uint8

const (
	// Null is a value the upstream reported as missing. It is never zero.
	Null Kind = iota
	// Present is a value derived from upstream data.
	Present
	// Imputed is a zero filled in because the key was absent for this game.
	Imputed
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Present:
		return "present"
	case Imputed:
		return "imputed"
	default:
		return "unknown"
	}
}

// Value is a tagged feature value.
type Value struct {
	Kind Kind
	Num  float64
}

// Num returns a present value.
func Num(v float64) Value { return Value{Kind: Present, Num: v} }

// NullValue returns a null value.
func NullValue() Value { return Value{Kind: Null} }

// ImputedZero returns the imputation default.
func ImputedZero() Value { return Value{Kind: Imputed} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.Kind == Null }

// Float returns the numeric value and whether it is usable as a number.
func (v Value) Float() (float64, bool) {
	if v.Kind == Null {
		return 0, false
	}
	return v.Num, true
}

// MarshalJSON writes a number or null. The imputed tag is carried by Set.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == Null {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v.Num, 'g', -1, 64)), nil
}

// UnmarshalJSON reads a number or null as Present or Null.
func (v *Value) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*v = NullValue()
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("feature value: %w", err)
	}
	*v = Num(f)
	return nil
}

// Set is the flat feature block of one game or one team-window.
type Set map[string]Value

// Keys returns the keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge copies every entry of other into s, overwriting on collision.
func (s Set) Merge(other Set) {
	for k, v := range other {
		s[k] = v
	}
}

// ImputedKeys returns the sorted keys whose value was imputed.
func (s Set) ImputedKeys() []string {
	var keys []string
	for k, v := range s {
		if v.Kind == Imputed {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// MarkImputed re-tags the given keys as imputed after a round trip through JSON.
func (s Set) MarkImputed(keys []string) {
	for _, k := range keys {
		if v, ok := s[k]; ok && v.Kind == Present {
			s[k] = Value{Kind: Imputed, Num: v.Num}
		}
	}
}
