// Package store holds the mutable state threaded through one parse run: the
// keyed table of definitions, the bookkeeping a module-call resolution pass
// needs between iterations, and a dirname memoization cache. It mirrors the
// instance state a single parser run accumulates — one store per
// loader.Orchestrator.ParseDirectory call, never shared across runs.
package store

import (
	"path/filepath"
	"sort"

	"dario.cat/mergo"

	"github.com/tfload/tfload/internal/rawhcl"
)

// ModuleAddress identifies one module call: the file it was declared in
// (its DefinitionKey at the time the call was made — flat mode always uses
// the raw, unsuffixed file; nested mode uses the fully composed key of the
// referrer once it is itself a resolved module instance), the call's index
// within that file's "module" block list, and the call's block name.
type ModuleAddress struct {
	ReferrerFile string
	Index        int
	Name         string
}

// ReferrerModule identifies a module call by referrer file and name only,
// used to remember the first index a given name was seen at.
type ReferrerModule struct {
	ReferrerFile string
	Name         string
}

// SourceVersion identifies a module source by its address string and the
// version/ref requested. It keys externalModulesSourceMap, the record of
// where a fetched source's content was placed (SetExternalModuleSource);
// the fetched-content cache itself is moduleloader.Registry.ContentCache.
type SourceVersion struct {
	Source  string
	Version string
}

// DefinitionStore holds every definition loaded during a parse run, plus
// the auxiliary maps the module resolution loop needs to track resolved
// addresses, visited keys, and keys pending removal.
type DefinitionStore struct {
	definitions map[string]rawhcl.RawPayload

	moduleToResolved         map[ModuleAddress][]string
	externalModulesSourceMap map[SourceVersion]string
	moduleAddressMap         map[ReferrerModule]string

	visitedKeys  map[string]struct{}
	keysToRemove map[string]struct{}
	loadedModules map[ModuleAddress]struct{}

	dirnameCache map[string]string
}

// New returns an empty DefinitionStore.
func New() *DefinitionStore {
	return &DefinitionStore{
		definitions:              make(map[string]rawhcl.RawPayload),
		moduleToResolved:         make(map[ModuleAddress][]string),
		externalModulesSourceMap: make(map[SourceVersion]string),
		moduleAddressMap:         make(map[ReferrerModule]string),
		visitedKeys:              make(map[string]struct{}),
		keysToRemove:             make(map[string]struct{}),
		loadedModules:            make(map[ModuleAddress]struct{}),
		dirnameCache:             make(map[string]string),
	}
}

// Get returns the payload stored under key, if any.
func (s *DefinitionStore) Get(key string) (rawhcl.RawPayload, bool) {
	p, ok := s.definitions[key]
	return p, ok
}

// Set stores payload under key, replacing whatever was there.
func (s *DefinitionStore) Set(key string, payload rawhcl.RawPayload) {
	s.definitions[key] = payload
}

// Delete removes key from the store entirely.
func (s *DefinitionStore) Delete(key string) {
	delete(s.definitions, key)
}

// Definitions returns the live definitions map. Callers that only read it
// (e.g. to build the final Result) may use it directly; callers that
// mutate entries should go through Set.
func (s *DefinitionStore) Definitions() map[string]rawhcl.RawPayload {
	return s.definitions
}

// Dirname returns filepath.Dir(path), memoized — the reference parser
// calls this on the same handful of paths thousands of times over one
// directory's resolution loop.
func (s *DefinitionStore) Dirname(path string) string {
	if d, ok := s.dirnameCache[path]; ok {
		return d
	}
	d := filepath.Dir(path)
	s.dirnameCache[path] = d
	return d
}

// KeysInDir returns, sorted, every unsuffixed (not-yet-a-module-instance)
// key whose directory is dir.
func (s *DefinitionStore) KeysInDir(dir string) []string {
	var keys []string
	for k := range s.definitions {
		if isSuffixed(k) {
			continue
		}
		if s.Dirname(k) == dir {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// KeysUnderDir returns, sorted, every key whose filepath.Dir is dir. For a
// suffixed key filepath.Dir cuts inside the suffix (the referrer path holds
// slashes), so in practice only unsuffixed keys are returned.
func (s *DefinitionStore) KeysUnderDir(dir string) []string {
	var keys []string
	for k := range s.definitions {
		if s.Dirname(k) == dir {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func isSuffixed(key string) bool {
	return len(key) > 0 && key[len(key)-1] == ']'
}

// Move relocates the payload at oldKey to newKey.
func (s *DefinitionStore) Move(oldKey, newKey string) {
	if payload, ok := s.definitions[oldKey]; ok {
		s.definitions[newKey] = payload
		delete(s.definitions, oldKey)
	}
}

// MarkRemovable records that key has been superseded (its content moved
// elsewhere) and should no longer be treated as a live definition.
func (s *DefinitionStore) MarkRemovable(key string) { s.keysToRemove[key] = struct{}{} }

// Removable reports whether key was marked by MarkRemovable.
func (s *DefinitionStore) Removable(key string) bool {
	_, ok := s.keysToRemove[key]
	return ok
}

// MarkVisited records key as having already produced a resolved module
// instance, so a later pass that would recompute the same key can skip it
// instead of duplicating work.
func (s *DefinitionStore) MarkVisited(key string) { s.visitedKeys[key] = struct{}{} }

// Visited reports whether key was marked by MarkVisited.
func (s *DefinitionStore) Visited(key string) bool {
	_, ok := s.visitedKeys[key]
	return ok
}

// RegisterLoaded records addr as having been processed by the module
// resolution loop, so flat mode's loadedModules gate can skip it on a
// later pass.
func (s *DefinitionStore) RegisterLoaded(addr ModuleAddress) { s.loadedModules[addr] = struct{}{} }

// IsLoaded reports whether addr was recorded by RegisterLoaded.
func (s *DefinitionStore) IsLoaded(addr ModuleAddress) bool {
	_, ok := s.loadedModules[addr]
	return ok
}

// AppendResolved appends key to addr's resolved list, deduplicating, and
// returns the updated (unsorted) list.
func (s *DefinitionStore) AppendResolved(addr ModuleAddress, key string) []string {
	list := s.moduleToResolved[addr]
	for _, k := range list {
		if k == key {
			return list
		}
	}
	list = append(list, key)
	s.moduleToResolved[addr] = list
	return list
}

// Resolved returns addr's resolved key list.
func (s *DefinitionStore) Resolved(addr ModuleAddress) []string { return s.moduleToResolved[addr] }

// SetResolved overwrites addr's resolved key list.
func (s *DefinitionStore) SetResolved(addr ModuleAddress, list []string) {
	s.moduleToResolved[addr] = list
}

// DeleteResolved removes addr's resolved-list entry entirely.
func (s *DefinitionStore) DeleteResolved(addr ModuleAddress) { delete(s.moduleToResolved, addr) }

// ResolvedAddresses returns the live moduleToResolved map.
func (s *DefinitionStore) ResolvedAddresses() map[ModuleAddress][]string { return s.moduleToResolved }

// SetExternalModuleSource records where a fetched module source's content
// landed, so a repeated (source, version) pair can be reused without
// fetching again.
func (s *DefinitionStore) SetExternalModuleSource(sv SourceVersion, path string) {
	s.externalModulesSourceMap[sv] = path
}

// ExternalModuleSource returns the content path recorded for sv, if any.
func (s *DefinitionStore) ExternalModuleSource(sv SourceVersion) (string, bool) {
	p, ok := s.externalModulesSourceMap[sv]
	return p, ok
}

// SetModuleAddressIndex records the first index seen for a given
// (referrer, name) pair, without overwriting an existing entry.
func (s *DefinitionStore) SetModuleAddressIndex(rm ReferrerModule, index string) {
	if _, ok := s.moduleAddressMap[rm]; !ok {
		s.moduleAddressMap[rm] = index
	}
}

// ModuleAddressMap returns the live moduleAddressMap.
func (s *DefinitionStore) ModuleAddressMap() map[ReferrerModule]string { return s.moduleAddressMap }

// MergeInto deep-merges scratch's payloads into the store: an entirely new
// key is inserted as is; an existing key is merged field by field, with
// maps merging recursively, lists concatenating, and scalar conflicts
// resolved in favor of the incoming (scratch) side — the reference
// parser's deep_merge semantics, which is the opposite of mergo's
// destination-wins default, hence WithOverride.
func (s *DefinitionStore) MergeInto(scratch map[string]rawhcl.RawPayload) error {
	for key, incoming := range scratch {
		existing, ok := s.definitions[key]
		if !ok {
			s.definitions[key] = incoming
			continue
		}
		merged, err := deepMerge(existing, incoming)
		if err != nil {
			return err
		}
		s.definitions[key] = merged
	}
	return nil
}

func deepMerge(dst, src rawhcl.RawPayload) (rawhcl.RawPayload, error) {
	out := dst.Clone()
	if err := mergo.Merge(&out, src, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return nil, err
	}
	return out, nil
}
