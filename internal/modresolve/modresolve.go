// Package modresolve drives the iterative module-call expansion loop: for
// every "module" block in a directory's files, it fetches the referenced
// source, recursively loads its content, and rewrites the loaded content's
// definition keys to carry the calling module's instance suffix, either
// flattening every instance to a single suffix level or composing the full
// nested chain, depending on the resolver's mode.
package modresolve

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tfload/tfload/internal/moduleloader"
	"github.com/tfload/tfload/internal/rawhcl"
	"github.com/tfload/tfload/internal/store"
	"github.com/tfload/tfload/pkg/log"
)

// maxModuleLoadPasses bounds the per-directory module-load loop: once a
// pass reports every remaining module call as acceptable (nothing
// skipped), the loop stops early; otherwise it keeps retrying until this
// many passes have run, after which one forced final pass loads whatever
// is still pending with the unresolved-parameter gate disabled.
const maxModuleLoadPasses = 10

// DirLoadFunc re-enters the orchestrator's per-directory load pipeline for
// a freshly fetched module's content directory. specifiedVars become that
// directory's manual variable overrides (tier seven of variable
// precedence); nested carries the chain of module calls that led here, nil
// at the root.
type DirLoadFunc func(ctx context.Context, dir string, specifiedVars map[string]any, nested *NestedModuleData) error

// NestedModuleData threads the chain of module calls that led to loading
// one directory, so nested mode can compose a full suffix chain for
// whatever that directory itself resolves.
type NestedModuleData struct {
	File   string
	Index  int
	Parent *NestedModuleData
}

// Resolver drives the module-load loop for one directory and records the
// resulting resolved-address bookkeeping in the shared DefinitionStore.
type Resolver struct {
	store   *store.DefinitionStore
	loader  moduleloader.ModuleLoader
	dirLoad DirLoadFunc
	nested  bool
}

// New builds a Resolver. nested selects nested (composed-suffix-chain)
// addressing over the default flat (single-suffix) addressing.
func New(st *store.DefinitionStore, loader moduleloader.ModuleLoader, dirLoad DirLoadFunc, nested bool) *Resolver {
	return &Resolver{store: st, loader: loader, dirLoad: dirLoad, nested: nested}
}

// Run drives the bounded module-load loop for one directory: every pass
// honors the unresolved-parameter gate and the loop stops as soon as a
// pass skips nothing. If calls are still being skipped once the pass cap
// is exhausted, a single forced final pass loads them anyway, gate
// disabled — degrading silently rather than dropping the pending calls.
func (r *Resolver) Run(ctx context.Context, dir string, nestedData *NestedModuleData) error {
	for pass := 0; pass < maxModuleLoadPasses; pass++ {
		skipped, err := r.runPass(ctx, dir, nestedData, false)
		if err != nil {
			return err
		}
		if !skipped {
			return nil
		}
	}
	_, err := r.runPass(ctx, dir, nestedData, true)
	return err
}

func (r *Resolver) runPass(ctx context.Context, dir string, nestedData *NestedModuleData, force bool) (bool, error) {
	skippedAtLeastOne := false
	scratch := make(map[string]rawhcl.RawPayload)

	for _, file := range r.store.KeysInDir(dir) {
		payload, ok := r.store.Get(file)
		if !ok {
			continue
		}

		for index, entry := range payload["module"] {
			name, body, ok := unwrapEntry(entry)
			if !ok {
				continue
			}

			addr := store.ModuleAddress{ReferrerFile: file, Index: index, Name: name}

			var resolveAddr store.ModuleAddress
			if r.nested {
				resolveAddr = store.ModuleAddress{
					ReferrerFile: r.fileKeyWithNestedData(file, nestedData),
					Index:        index,
					Name:         name,
				}
			} else {
				if r.store.IsLoaded(addr) {
					continue
				}
				resolveAddr = addr
			}

			attrs := moduleCallAttrs(body)
			source, _ := attrs["source"].(string)
			if source == "" {
				continue
			}
			version, _ := attrs["version"].(string)
			if version == "" {
				version = "latest"
			}

			params := make(map[string]any, len(attrs))
			for k, v := range attrs {
				if k == "source" || k == "version" {
					continue
				}
				params[k] = v
			}

			if !force && !isAcceptableModuleCall(params) {
				skippedAtLeastOne = true
				continue
			}
			r.store.RegisterLoaded(addr)

			resolvedSource := resolveSource(source, file)

			fetched, err := r.loader.Load(ctx, dir, resolvedSource, version)
			if err != nil {
				log.WithField("source", resolvedSource).WithError(err).Warn("module fetch failed")
				continue
			}
			if !fetched.Loaded() {
				log.WithField("source", resolvedSource).Warn("module source did not resolve, skipping")
				continue
			}

			childNested := &NestedModuleData{File: file, Index: index, Parent: nestedData}
			if err := r.dirLoad(ctx, fetched.Path(), params, childNested); err != nil {
				return skippedAtLeastOne, err
			}

			r.rewriteKeys(resolveAddr, fetched.Path(), file, index, nestedData, scratch)
		}
	}

	if err := r.store.MergeInto(scratch); err != nil {
		return skippedAtLeastOne, err
	}
	return skippedAtLeastOne, nil
}

// rewriteKeys relocates every unsuffixed definition key under contentPath
// to a new key carrying referrerFile's instance suffix (flat mode: a
// single [referrerFile#index] suffix; nested mode: the fully composed
// chain), recording the move against resolveAddr's resolved list.
func (r *Resolver) rewriteKeys(resolveAddr store.ModuleAddress, contentPath, referrerFile string, index int, nestedData *NestedModuleData, scratch map[string]rawhcl.RawPayload) {
	for _, key := range r.store.KeysUnderDir(contentPath) {
		if strings.HasSuffix(key, "]") {
			continue
		}

		var newKey string
		if r.nested {
			newKey = r.newNestedModuleKey(key, referrerFile, index, nestedData)
			if r.store.Visited(newKey) {
				r.store.Delete(key)
				continue
			}
			r.store.MarkVisited(newKey)
		} else {
			newKey = definitionKey(key, referrerFile, index)
		}

		payload, ok := r.store.Get(key)
		if !ok {
			continue
		}
		scratch[newKey] = payload
		r.store.Delete(key)
		r.store.MarkRemovable(key)

		list := r.store.AppendResolved(resolveAddr, newKey)
		sorted := append([]string{}, list...)
		sort.Strings(sorted)
		r.store.SetResolved(resolveAddr, sorted)

		r.store.SetModuleAddressIndex(store.ReferrerModule{ReferrerFile: referrerFile, Name: resolveAddr.Name}, strconv.Itoa(index))
	}
}

// Finalize writes every tracked resolved-address list into its owning
// module block's __resolved__ field. In nested mode it first cascades
// removal through any resolved address whose own referrer key was itself
// superseded (moved under a further suffix), so a stale intermediate
// instance's children don't linger as live definitions.
func (r *Resolver) Finalize() {
	if r.nested {
		for addr, list := range r.store.ResolvedAddresses() {
			if r.store.Removable(addr.ReferrerFile) {
				for _, path := range list {
					r.removeUnusedPathRecursive(path)
				}
				r.store.DeleteResolved(addr)
			}
		}
	}

	for addr, list := range r.store.ResolvedAddresses() {
		payload, ok := r.store.Get(addr.ReferrerFile)
		if !ok {
			continue
		}
		setResolvedField(payload, addr.Index, addr.Name, list)
	}
}

func (r *Resolver) removeUnusedPathRecursive(path string) {
	r.store.Delete(path)
	for addr, list := range r.store.ResolvedAddresses() {
		if addr.ReferrerFile == path {
			for _, p := range list {
				r.removeUnusedPathRecursive(p)
			}
			r.store.DeleteResolved(addr)
		}
	}
}

const resolvedModuleEntryName = "__resolved__"

func setResolvedField(payload rawhcl.RawPayload, index int, name string, list []string) {
	calls := payload["module"]
	if index < 0 || index >= len(calls) {
		return
	}
	m, ok := blockMap(calls[index])
	if !ok {
		return
	}
	body, ok := m[name]
	if !ok {
		return
	}

	values := make([]any, len(list))
	for i, s := range list {
		values[i] = s
	}

	switch b := body.(type) {
	case rawhcl.RawPayload:
		b[resolvedModuleEntryName] = []any{values}
	case map[string]any:
		b[resolvedModuleEntryName] = []any{values}
	}
}

func blockMap(entry any) (map[string]any, bool) {
	switch v := entry.(type) {
	case rawhcl.Block:
		return map[string]any(v), true
	case map[string]any:
		return v, true
	}
	return nil, false
}

// definitionKey formats the suffix grammar shared by both addressing
// modes: <key>[<referrer>#<index>].
func definitionKey(key, referrer string, index int) string {
	return fmt.Sprintf("%s[%s#%d]", key, referrer, index)
}

// fileKeyWithNestedData composes file's full definition key given the
// chain of nested module data describing how file's own directory was
// reached, recursing outward to the root (data == nil).
func (r *Resolver) fileKeyWithNestedData(file string, data *NestedModuleData) string {
	if data == nil {
		return file
	}
	nestedStr := r.fileKeyWithNestedData(data.File, data.Parent)
	return definitionKey(file, nestedStr, data.Index)
}

// newNestedModuleKey composes the new key for a module instance's file
// given the referrer it was called from (file, index) and the nested data
// describing how that referrer's own directory was reached. When data is
// nil, file is already root-relative and the simple one-level suffix
// applies; otherwise the referrer portion itself is expanded into its own
// composed chain, and the simple one-level key is marked visited so a
// later, shallower rewrite of the same instance is skipped instead of
// duplicated.
func (r *Resolver) newNestedModuleKey(key, file string, index int, data *NestedModuleData) string {
	if data == nil {
		return definitionKey(key, file, index)
	}
	visited := definitionKey(key, file, index)
	r.store.MarkVisited(visited)
	nestedKey := r.newNestedModuleKey("", data.File, data.Index, data.Parent)
	return definitionKey(key, file+nestedKey, index)
}

var suffixPattern = regexp.MustCompile(`\[.+#.+\]`)

// stripSuffix removes every trailing suffix layer from key in one shot,
// recovering the original file path regardless of nesting depth.
func stripSuffix(key string) string {
	return suffixPattern.ReplaceAllString(key, "")
}

// resolveSource joins a relative ("./", "../") module source against its
// referrer file's directory; any other source address (registry, git,
// OCI, absolute path) is returned unchanged.
func resolveSource(source, referrerFile string) string {
	if strings.HasPrefix(source, "./") || strings.HasPrefix(source, "../") {
		base := stripSuffix(referrerFile)
		return filepath.Clean(filepath.Join(filepath.Dir(base), source))
	}
	return source
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

// moduleCallAttrs unwraps a module block's body into a flat attribute map,
// handling both the RawPayload convention (single-element list per key)
// and a plain map[string]any that may appear after a JSON round-trip.
func moduleCallAttrs(body any) map[string]any {
	out := make(map[string]any)
	switch b := body.(type) {
	case rawhcl.RawPayload:
		for k, v := range b {
			out[k] = unwrapSingle(v)
		}
	case map[string]any:
		for k, v := range b {
			if list, ok := v.([]any); ok {
				out[k] = unwrapSingle(list)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func unwrapSingle(v []any) any {
	if len(v) == 1 {
		return v[0]
	}
	return v
}
