// Package normalize reduces a RawPayload tree (and the synthetic structures
// built on top of it during module and variable resolution) to a single
// canonical shape made only of the types encoding/json itself produces:
// string, float64, bool, nil, []any, and map[string]any. It also collapses
// the HCL list-of-one wrapper around each attribute of a RawPayload-shaped
// map down to its single value (a list held in a plain map keeps its list
// shape, so Normalize leaves its own output unchanged), coerces bare
// "true"/"false" string scalars to booleans, and orders list elements so
// repeated runs over the same input are byte-for-byte comparable.
package normalize

import (
	"encoding/json"
	"sort"

	"github.com/tfload/tfload/internal/rawhcl"
)

// aliasKey is exempted from recursive normalization: a provider alias
// attribute's value is an opaque reference token, not data to reorder or
// coerce.
const aliasKey = "alias"

// Normalize walks payload and returns an equivalent map[string]any tree:
// every RawPayload/Block becomes a plain map, every attribute's
// single-element []any wrapper is unwrapped to its contained value, and
// every remaining value is round-tripped through JSON so that numeric,
// boolean, and nested values all end up in the same native shape the rest
// of the pipeline expects.
func Normalize(payload rawhcl.RawPayload) rawhcl.RawPayload {
	out := make(rawhcl.RawPayload, len(payload))
	for blockType, entries := range payload {
		normalized := make([]any, len(entries))
		for i, entry := range entries {
			normalized[i] = normalizeValue(entry)
		}
		out[blockType] = normalized
	}
	return out
}

// normalizeValue recursively normalizes one value of unknown shape,
// switching explicitly on rawhcl's named types as well as the plain
// map/slice shapes that appear after a JSON round-trip or in synthetic
// (e.g. __resolved__) data — Go's type assertions don't see through named
// map/slice types, so both must be handled.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case string:
		return normalizeString(v)
	case rawhcl.RawPayload:
		return normalizeAttributeMap(map[string][]any(v))
	case rawhcl.Block:
		return normalizeBlockMap(map[string]any(v))
	case map[string][]any:
		return normalizeAttributeMap(v)
	case map[string]any:
		return normalizeBlockMap(v)
	case []any:
		return normalizeList(v)
	default:
		return jsonRoundTrip(v)
	}
}

// normalizeString coerces the bare scalars "true"/"false" to their boolean
// equivalent; any other string, including one merely containing those
// words, passes through unchanged.
func normalizeString(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	default:
		return s
	}
}

// normalizeList recursively normalizes every element, then reorders the
// result: non-string elements keep their original relative order, followed
// by every string element sorted ascending. Block-type entry lists are
// never affected in practice since their elements are maps, not strings;
// this is the same dispatcher genuine HCL list-typed attribute values (e.g.
// tags = ["b", "a"]) go through.
func normalizeList(list []any) []any {
	normalized := make([]any, len(list))
	for i, item := range list {
		normalized[i] = normalizeValue(item)
	}

	var nonStrings []any
	var strs []string
	for _, item := range normalized {
		if s, ok := item.(string); ok {
			strs = append(strs, s)
		} else {
			nonStrings = append(nonStrings, item)
		}
	}
	sort.Strings(strs)

	out := make([]any, 0, len(normalized))
	out = append(out, nonStrings...)
	for _, s := range strs {
		out = append(out, s)
	}
	return out
}

// normalizeAttributeMap normalizes a RawPayload-shaped map: every key's
// single-element list is unwrapped to its contained (normalized) value; a
// multi-element list (a nested block-type's list of block instances)
// keeps its list shape. The "alias" attribute is copied verbatim, without
// recursing into it.
func normalizeAttributeMap(m map[string][]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, values := range m {
		if key == aliasKey {
			if len(values) == 1 {
				out[key] = values[0]
			} else {
				out[key] = values
			}
			continue
		}
		if len(values) == 1 {
			out[key] = normalizeValue(values[0])
			continue
		}
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = normalizeValue(v)
		}
		out[key] = list
	}
	return out
}

// normalizeBlockMap normalizes a Block-shaped map (one label -> nested
// value per level). The "alias" attribute is copied verbatim, without
// recursing into it. List values are normalized as lists, a one-element
// list included; no wrapper is unwrapped here.
func normalizeBlockMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, v := range m {
		if key == aliasKey {
			out[key] = v
			continue
		}
		out[key] = normalizeValue(v)
	}
	return out
}

// jsonRoundTrip forces a scalar through encoding/json so every numeric
// type collapses to float64, matching what the rest of the pipeline
// already produces for values that went through ctyToNative.
func jsonRoundTrip(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var native any
	if err := json.Unmarshal(raw, &native); err != nil {
		return v
	}
	return native
}
