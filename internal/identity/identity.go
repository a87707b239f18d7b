// Package identity derives the canonical action id of a workout plan.
package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// StrippedKeys are non-semantic annotations removed at every depth before hashing.
var StrippedKeys = map[string]struct{}{
	"notes":       {},
	"coach_notes": {},
	"ui":          {},
	"debug":       {},
}

// Compute returns the hex SHA-256 of the canonical form of raw.
// Malformed input is treated as an empty document.
func Compute(raw []byte) string {
	sum := sha256.Sum256(Canonicalize(raw))
	return hex.EncodeToString(sum[:])
}

// Of marshals v to JSON and computes its identity.
func Of(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return Compute(raw), nil
}

// Canonicalize strips annotation keys and re-encodes with sorted keys and no whitespace.
func Canonicalize(raw []byte) []byte {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		doc = map[string]any{}
	}
	if _, ok := doc.(map[string]any); !ok {
		if _, isList := doc.([]any); !isList {
			doc = map[string]any{}
		}
	}
	return encode(strip(doc))
}

func strip(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if _, drop := StrippedKeys[k]; drop {
				continue
			}
			out[k] = strip(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = strip(child)
		}
		return out
	default:
		return v
	}
}

// encoding/json sorts map keys and emits no insignificant whitespace.
func encode(v any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return []byte("{}")
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
