package modresolve

import (
	"regexp"

	"github.com/tfload/tfload/internal/rawhcl"
)

// simpleVarRefPattern matches an unresolved interpolation template or a
// bare var./local./module. reference — the shapes a module-call parameter
// can carry that this resolver cannot substitute a concrete value for yet.
var simpleVarRefPattern = regexp.MustCompile(`\$\{[^}]*\}|(?:^|[^\w.])(?:var|local|module)\.[A-Za-z_][A-Za-z0-9_-]*`)

// isAcceptableModuleParam reports whether value (recursively, for maps and
// lists) contains no unresolved variable reference. A module call whose
// parameters are not all acceptable is skipped for this pass and retried
// on a later one, once whatever it depends on has itself resolved.
func isAcceptableModuleParam(value any) bool {
	switch v := value.(type) {
	case string:
		return !simpleVarRefPattern.MatchString(v)
	case []any:
		for _, item := range v {
			if !isAcceptableModuleParam(item) {
				return false
			}
		}
		return true
	case map[string]any:
		for key, item := range v {
			if !isAcceptableModuleParam(key) || !isAcceptableModuleParam(item) {
				return false
			}
		}
		return true
	case rawhcl.RawPayload:
		for key, values := range v {
			if !isAcceptableModuleParam(key) {
				return false
			}
			for _, item := range values {
				if !isAcceptableModuleParam(item) {
					return false
				}
			}
		}
		return true
	case rawhcl.Block:
		for key, item := range v {
			if !isAcceptableModuleParam(key) || !isAcceptableModuleParam(item) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// isAcceptableModuleCall reports whether every parameter key and value in
// params is acceptable, per isAcceptableModuleParam.
func isAcceptableModuleCall(params map[string]any) bool {
	for key, value := range params {
		if !isAcceptableModuleParam(key) || !isAcceptableModuleParam(value) {
			return false
		}
	}
	return true
}
