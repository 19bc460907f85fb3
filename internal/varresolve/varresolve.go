// Package varresolve computes one directory's variable bindings by walking
// the full precedence chain the reference parser applies: variable block
// defaults, TF_VAR_ environment variables, terraform.tfvars,
// terraform.tfvars.json, *.auto.tfvars(.json) files in lexical order,
// explicit caller-supplied var-files in the order given, and finally
// module-call parameters passed down from a referencing module call. Each
// tier's values win over everything before it for the same variable name —
// note environment variables sit below the tfvars tiers, so a tfvars file
// setting the same name wins over TF_VAR_.
package varresolve

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tfload/tfload/internal/rawhcl"
)

// Binding records one variable's resolved value and where it came from:
// a defaults origin is "default@<declaring-file>", a tfvars origin is that
// file's path, an environment origin is "env:TF_VAR_<name>", and a
// caller-supplied override's origin is "manual".
type Binding struct {
	Name   string `json:"name"`
	Value  any    `json:"value"`
	Origin string `json:"origin"`
}

// Options configures one directory's variable resolution pass.
type Options struct {
	// Dir is the directory being resolved; terraform.tfvars,
	// terraform.tfvars.json, and *.auto.tfvars(.json) are read from here.
	Dir string
	// FilePayloads are this directory's already-parsed files, keyed by
	// path, used to find "variable" block defaults.
	FilePayloads map[string]rawhcl.RawPayload
	// EnvVars is the process environment (or a test double), scanned for
	// TF_VAR_ prefixed entries.
	EnvVars map[string]string
	// VarFiles is the caller's ordered list of additional var-files. Every
	// directory load is offered the full list; only entries that actually
	// live in Dir are applied, in the order they appear in the list (not
	// filesystem order), matching the reference parser's per-directory
	// membership filter.
	VarFiles []string
	// ManualOverrides are parameters passed down from a referencing
	// module call; they win over every other tier.
	ManualOverrides map[string]any
}

// Result holds the resolved variable map plus the ordered history of every
// binding applied, used later to attach synthetic tf_variable blocks for
// tfvars-sourced values.
type Result struct {
	// Variables maps each name to its winning value.
	Variables map[string]any
	// Winning maps each name to the full winning binding, value and
	// origin both, for callers that need to report where a value came from.
	Winning  map[string]Binding
	bindings []Binding
}

// Sightings returns every binding applied during Resolve, in application
// order.
func (r *Result) Sightings() []Binding { return r.bindings }

// Resolve computes one directory's variable bindings.
func Resolve(opts Options) (*Result, error) {
	vars := make(map[string]any)
	winning := make(map[string]Binding)
	var bindings []Binding

	record := func(name string, value any, origin string) {
		b := Binding{Name: name, Value: value, Origin: origin}
		vars[name] = value
		winning[name] = b
		bindings = append(bindings, b)
	}

	applyDefaults(opts.FilePayloads, record)
	applyEnv(opts.EnvVars, record)

	if payload, err := loadIfExists(filepath.Join(opts.Dir, "terraform.tfvars")); err == nil && payload != nil {
		applyTFVars(payload, filepath.Join(opts.Dir, "terraform.tfvars"), record)
	}

	if payload, err := loadIfExists(filepath.Join(opts.Dir, "terraform.tfvars.json")); err == nil && payload != nil {
		applyTFVars(payload, filepath.Join(opts.Dir, "terraform.tfvars.json"), record)
	}

	autoFiles, _ := autoVarFiles(opts.Dir)
	for _, f := range autoFiles {
		if payload, err := loadIfExists(f); err == nil && payload != nil {
			applyTFVars(payload, f, record)
		}
	}

	for _, f := range opts.VarFiles {
		if filepath.Dir(f) != opts.Dir {
			continue
		}
		if payload, err := loadIfExists(f); err == nil && payload != nil {
			applyTFVars(payload, f, record)
		}
	}

	applyManual(opts.ManualOverrides, record)

	return &Result{Variables: vars, Winning: winning, bindings: bindings}, nil
}

// applyDefaults applies tier one: every "variable" block's declared
// default, across every file in the directory, in sorted file order for
// determinism.
func applyDefaults(filePayloads map[string]rawhcl.RawPayload, record func(name string, value any, origin string)) {
	paths := make([]string, 0, len(filePayloads))
	for p := range filePayloads {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		for _, entry := range filePayloads[path]["variable"] {
			name, body, ok := unwrapEntry(entry)
			if !ok {
				continue
			}
			if def, ok := attrValue(body, "default"); ok {
				record(name, def, "default@"+path)
			}
		}
	}
}

// applyTFVars applies every attribute in a tfvars-shaped payload (a flat
// name -> single-element-list map, with no block nesting) as a binding
// whose origin is the file it came from.
func applyTFVars(payload rawhcl.RawPayload, origin string, record func(name string, value any, origin string)) {
	names := make([]string, 0, len(payload))
	for name := range payload {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := payload[name]
		if len(values) == 0 {
			continue
		}
		record(name, values[0], origin)
	}
}

// applyEnv applies every TF_VAR_ prefixed environment variable, sorted by
// key for determinism.
func applyEnv(env map[string]string, record func(name string, value any, origin string)) {
	keys := make([]string, 0, len(env))
	for k := range env {
		if strings.HasPrefix(k, "TF_VAR_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		record(strings.TrimPrefix(k, "TF_VAR_"), env[k], "env:"+k)
	}
}

// applyManual applies caller-supplied overrides (a referencing module
// call's own parameters), sorted by name for determinism.
func applyManual(overrides map[string]any, record func(name string, value any, origin string)) {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		record(k, overrides[k], "manual")
	}
}

// loadIfExists parses path as a var-definitions file when it exists.
// Every tier of tfvars file goes through ParseTFVars: a var-file
// attribute value is frequently a multi-key map, which the regular
// bad-definition cleanup would mistake for a malformed block and drop.
func loadIfExists(path string) (rawhcl.RawPayload, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	return rawhcl.ParseTFVars(path)
}

// autoVarFiles returns, sorted lexically together regardless of
// extension, every *.auto.tfvars and *.auto.tfvars.json file directly in
// dir — matching Terraform's own documented file-name ordering for this
// tier.
func autoVarFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".auto.tfvars") || strings.HasSuffix(name, ".auto.tfvars.json") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// unwrapEntry unwraps one block-list entry (a Block or plain map with
// exactly one top-level key) into its name and body.
func unwrapEntry(entry any) (string, any, bool) {
	var m map[string]any
	switch v := entry.(type) {
	case rawhcl.Block:
		m = map[string]any(v)
	case map[string]any:
		m = v
	default:
		return "", nil, false
	}
	if len(m) != 1 {
		return "", nil, false
	}
	for name, body := range m {
		return name, body, true
	}
	return "", nil, false
}

// attrValue reads one attribute's unwrapped value out of a block body,
// handling both the RawPayload convention (single-element list per key)
// and a plain map[string]any that may appear after a JSON round-trip.
func attrValue(body any, key string) (any, bool) {
	switch b := body.(type) {
	case rawhcl.RawPayload:
		if v, ok := b[key]; ok && len(v) > 0 {
			return v[0], true
		}
	case map[string]any:
		if v, ok := b[key]; ok {
			if list, ok := v.([]any); ok {
				if len(list) > 0 {
					return list[0], true
				}
				return nil, false
			}
			return v, true
		}
	}
	return nil, false
}
