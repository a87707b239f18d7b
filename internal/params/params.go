// Package params reads versioned simulation parameter sets.
//
// A set maps dotted keys (adherence.bias, adapt.diminishing_returns_k, ...) to a
// scalar or a small structured value. Values may be stored nested
// ({"adherence": {"bias": 2}}) or flat ({"adherence.bias": 2}); lookups accept both.
// Every consumer supplies its own documented default for a missing key.
package params

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Set is one immutable parameter set.
type Set struct {
	Ref     string         `bson:"_id" json:"ref" mapstructure:"ref"`
	Version string         `bson:"version" json:"version" mapstructure:"version"`
	Values  map[string]any `bson:"values" json:"values" mapstructure:"values"`
}

// Lookup resolves a dotted key.
func (s *Set) Lookup(key string) (any, bool) {
	if s == nil || s.Values == nil {
		return nil, false
	}
	if v, ok := s.Values[key]; ok {
		return v, true
	}
	var cur any = s.Values
	for _, part := range strings.Split(key, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Float returns the key as a float64, or def when absent or not numeric.
func (s *Set) Float(key string, def float64) float64 {
	v, ok := s.Lookup(key)
	if !ok {
		return def
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

// Int returns the key as an int, or def.
func (s *Set) Int(key string, def int) int {
	v, ok := s.Lookup(key)
	if !ok {
		return def
	}
	if f, ok := toFloat(v); ok {
		return int(f)
	}
	return def
}

// Bool returns the key as a bool, or def.
func (s *Set) Bool(key string, def bool) bool {
	v, ok := s.Lookup(key)
	if !ok {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// IntRange reads a two-element list such as events.duration.low: [1, 2].
func (s *Set) IntRange(key string, def [2]int) [2]int {
	v, ok := s.Lookup(key)
	if !ok {
		return def
	}
	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case primitive.A:
		list = t
	default:
		return def
	}
	if len(list) != 2 {
		return def
	}
	lo, ok1 := toFloat(list[0])
	hi, ok2 := toFloat(list[1])
	if !ok1 || !ok2 || hi < lo {
		return def
	}
	return [2]int{int(lo), int(hi)}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case bson.M:
		return t, true
	case primitive.D:
		return t.Map(), true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
