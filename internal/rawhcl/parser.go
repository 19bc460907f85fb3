package rawhcl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
)

// identifierPattern matches a valid single top-level block key: it must
// start with a letter or underscore, and may continue with letters,
// digits, underscores, or hyphens. A block whose first (and only) key
// fails this pattern is treated as malformed and dropped, the same rule
// the reference parser applies before handing blocks to anything
// downstream.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// keysWithoutSingleKeyRule are block-types whose entries are allowed to
// carry more than one top-level key, or none at all: "locals" blocks are
// themselves a flat attribute map, and "terraform" blocks mix nested
// settings (backend, required_providers) that don't reduce to one name.
var keysWithoutSingleKeyRule = map[string]bool{
	"locals":    true,
	"terraform": true,
}

// Parse reads path and converts it into a RawPayload. JSON-flavoured
// files (.tf.json, .json) are decoded with encoding/json; everything
// else (.tf, .tfvars, .hcl) is parsed as native HCL2 syntax. Parse never
// fails outright on a malformed block: invalid entries are dropped by
// validateBlocks and cleanBadDefinitions, matching the reference
// parser's "quietly ignore and keep going" behavior. It returns an
// error only when the file cannot be read or decoded at all.
func Parse(path string) (RawPayload, error) {
	return parse(path, true)
}

// ParseTFVars reads a .tfvars/.tfvars.json file the same way Parse does,
// except it skips cleanBadDefinitions: a tfvars attribute value is
// frequently a multi-key map (e.g. tags = { Name = "x", Env = "prod" }),
// which cleanBadDefinitions would otherwise mistake for a malformed
// multi-label block and drop.
func ParseTFVars(path string) (RawPayload, error) {
	return parse(path, false)
}

func parse(path string, cleanDefinitions bool) (RawPayload, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rawhcl: read %s: %w", path, err)
	}

	raw = stripBOM(raw)

	var payload RawPayload

	if isJSONFile(path) {
		payload, err = parseJSON(raw, path)
	} else {
		payload, err = parseHCL(raw, path)
	}
	if err != nil {
		return nil, err
	}

	payload = validateBlocks(payload)
	if cleanDefinitions {
		payload = cleanBadDefinitions(payload)
	}

	return payload, nil
}

// isJSONFile reports whether path should be decoded as JSON rather than
// native HCL2 syntax.
func isJSONFile(path string) bool {
	return strings.HasSuffix(path, ".tf.json") || strings.HasSuffix(path, ".json")
}

// stripBOM removes a leading UTF-8 byte-order mark, if present, so
// neither the JSON decoder nor the HCL parser chokes on it.
func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}

// parseJSON decodes a .tf.json/.json file directly into a RawPayload.
// Terraform's JSON syntax is already shaped as block-type -> list (or
// single object) of block bodies, so this is a straightforward decode
// plus list-wrapping of any bare objects.
func parseJSON(raw []byte, path string) (RawPayload, error) {
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("rawhcl: decode json %s: %w", path, err)
	}

	payload := make(RawPayload, len(decoded))
	for key, value := range decoded {
		payload[key] = normalizeJSONValue(value)
	}

	return payload, nil
}

// normalizeJSONValue wraps a decoded JSON value into the []any shape
// RawPayload expects for every top-level key: a bare list is kept as
// is, anything else (object, scalar) becomes a single-element list.
func normalizeJSONValue(value any) []any {
	if list, ok := value.([]any); ok {
		return list
	}
	return []any{value}
}

// parseHCL parses a .tf/.tfvars/.hcl file with the native HCL2 syntax
// parser and converts its body generically, with no schema.
func parseHCL(raw []byte, path string) (RawPayload, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(raw, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("rawhcl: parse hcl %s: %w", path, diags)
	}

	payload, ok := convertFile(file, raw)
	if !ok {
		return nil, fmt.Errorf("rawhcl: unsupported body type in %s", path)
	}

	return payload, nil
}

// validateBlocks drops, per block-type, any entry that isn't a valid
// block: a non-map entry (a bare attribute value, as .tfvars produces)
// is always valid, an empty map is never valid, and a populated map is
// valid only if its single top-level key is a legal identifier.
func validateBlocks(payload RawPayload) RawPayload {
	out := make(RawPayload, len(payload))

	for blockType, entries := range payload {
		var kept []any
		for _, entry := range entries {
			if isValidBlock(entry) {
				kept = append(kept, entry)
			}
		}
		if len(kept) > 0 {
			out[blockType] = kept
		}
	}

	return out
}

// isValidBlock implements the same rule the reference parser applies:
// non-map values pass through untouched, an empty map is rejected, a map
// with several top-level keys passes (cleanBadDefinitions rules on those),
// and a map with a single top-level key passes only if that key matches
// identifierPattern.
func isValidBlock(entry any) bool {
	m, ok := entry.(map[string]any)
	if !ok {
		if block, ok := entry.(Block); ok {
			m = map[string]any(block)
		} else {
			return true
		}
	}

	if len(m) == 0 {
		return false
	}

	if len(m) > 1 {
		return true
	}

	for key := range m {
		return identifierPattern.MatchString(key)
	}

	return false
}

// cleanBadDefinitions drops entries, within block-types other than
// those listed in keysWithoutSingleKeyRule, that are maps with more
// than one top-level key. A well-formed block converted by wrapBlock
// always nests exactly one label per level, so a multi-key map at this
// point indicates a malformed or merged definition that should not
// propagate further.
func cleanBadDefinitions(payload RawPayload) RawPayload {
	out := make(RawPayload, len(payload))

	for blockType, entries := range payload {
		if keysWithoutSingleKeyRule[blockType] {
			out[blockType] = entries
			continue
		}

		var kept []any
		for _, entry := range entries {
			m, ok := entry.(map[string]any)
			if !ok {
				if block, isBlock := entry.(Block); isBlock {
					m = map[string]any(block)
				} else {
					kept = append(kept, entry)
					continue
				}
			}
			if len(m) <= 1 {
				kept = append(kept, entry)
			}
		}
		if len(kept) > 0 {
			out[blockType] = kept
		}
	}

	return out
}
