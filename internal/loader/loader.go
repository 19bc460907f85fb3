// Package loader ties every other package in this module into the single
// entry point a caller actually wants: point it at a directory, get back a
// fully parsed, variable-resolved, module-expanded definition store. It is
// the "Orchestrator" the rest of the packages' doc comments refer to —
// internal/store's comment about "one store per
// loader.Orchestrator.ParseDirectory call" and internal/modresolve's
// DirLoadFunc callback (dirRunner.loadModuleContent here) both describe
// the wiring done here.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tfload/tfload/internal/discovery"
	"github.com/tfload/tfload/internal/filter"
	"github.com/tfload/tfload/internal/modresolve"
	"github.com/tfload/tfload/internal/moduleloader"
	"github.com/tfload/tfload/internal/normalize"
	"github.com/tfload/tfload/internal/rawhcl"
	"github.com/tfload/tfload/internal/store"
	"github.com/tfload/tfload/internal/varresolve"
	"github.com/tfload/tfload/pkg/log"
)

// defaultExternalModulesFolderName is the external-modules folder used when
// neither ParseOptions.ExternalModulesDownloadPath nor EXTERNAL_MODULES_DIR
// names one; it matches moduleloader.NewRegistry's own default.
const defaultExternalModulesFolderName = ".external_modules"

// ParseOptions configures one ParseDirectory run. Every field mirrors a
// piece of the distilled spec's root API; EnvVars stands in for the
// process environment so a caller can snapshot it once (or substitute a
// test double) rather than have the loader reach for os.Environ() itself.
type ParseOptions struct {
	// RootDir is the directory tree to scan. Relative paths are resolved
	// against the process's working directory.
	RootDir string
	// EnvVars supplies TF_VAR_ bindings plus the TFLOAD_ENABLE_NESTED_MODULES,
	// TFLOAD_IGNORE_HIDDEN_DIRS, and EXTERNAL_MODULES_DIR toggles.
	EnvVars map[string]string
	// NestedModules selects nested (composed-suffix-chain) addressing over
	// the default flat addressing, overriding TFLOAD_ENABLE_NESTED_MODULES
	// when true.
	NestedModules bool
	// IgnoreHiddenDirs skips dot-prefixed directories during the walk,
	// overriding TFLOAD_IGNORE_HIDDEN_DIRS when true.
	IgnoreHiddenDirs bool
	// DownloadExternalModules enables fetching of git/registry/OCI module
	// sources; when false, such sources resolve as unloaded and their
	// module calls are skipped.
	DownloadExternalModules bool
	// ExternalModulesDownloadPath names the folder (under RootDir)
	// external module sources land in. Empty defers to the
	// EXTERNAL_MODULES_DIR environment variable, then a built-in default.
	ExternalModulesDownloadPath string
	// ExcludedPaths are glob patterns (matched against each directory's
	// path relative to RootDir) that prune the walk.
	ExcludedPaths []string
	// VarFiles is an ordered list of additional tfvars files; each is
	// applied only in the directory it actually lives in.
	VarFiles []string
	// ContentCache lets a caller reuse fetched module content across
	// multiple ParseDirectory calls rather than re-downloading the same
	// source every time. Nil starts with an empty cache.
	ContentCache map[moduleloader.SourceVersion]moduleloader.Content
}

// Result is the output of one ParseDirectory run.
type Result struct {
	// Definitions maps every live DefinitionKey to its normalized,
	// module-expanded RawPayload.
	Definitions map[string]rawhcl.RawPayload
	// ParsingErrors maps a file path to the error that prevented it from
	// parsing; such files simply contribute nothing to Definitions.
	ParsingErrors map[string]error
	// EvalContext maps each loaded directory to its winning variable
	// bindings (name, value, and the origin the value was taken from).
	EvalContext map[string]map[string]varresolve.Binding
	// ModuleDependencyMap maps a directory to the list of referrer chains
	// that led a module instance to be loaded there.
	ModuleDependencyMap map[string][][]string
	// DepIndexMapping maps each resolved module-call edge to the indices
	// it was called at within the referrer's module list.
	DepIndexMapping map[modresolve.Edge][]int
}

// Orchestrator drives ParseDirectory. It holds no state between calls —
// constructing one is free — so a caller needing concurrency simply
// constructs one Orchestrator per concurrent root directory rather than
// sharing one across goroutines.
type Orchestrator struct{}

// New returns an Orchestrator.
func New() *Orchestrator { return &Orchestrator{} }

// ParseDirectory walks opts.RootDir, parsing, normalizing, resolving
// variables for, and expanding every module call found in every directory
// that contains loadable Terraform files. It returns a non-nil error only
// when the root directory itself cannot be enumerated; every other fault
// (a malformed file, a failed module fetch) is captured into the returned
// Result instead.
func (o *Orchestrator) ParseDirectory(ctx context.Context, opts ParseOptions) (*Result, error) {
	rootDir, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, fmt.Errorf("loader: resolve root %s: %w", opts.RootDir, err)
	}

	nested := opts.NestedModules || truthy(opts.EnvVars["TFLOAD_ENABLE_NESTED_MODULES"])
	ignoreHidden := opts.IgnoreHiddenDirs || truthy(opts.EnvVars["TFLOAD_IGNORE_HIDDEN_DIRS"])

	externalDir := opts.ExternalModulesDownloadPath
	if externalDir == "" {
		externalDir = opts.EnvVars["EXTERNAL_MODULES_DIR"]
	}
	if externalDir == "" {
		externalDir = defaultExternalModulesFolderName
	}

	registry := moduleloader.NewRegistry(rootDir, opts.DownloadExternalModules, externalDir, opts.ContentCache)

	run := &dirRunner{
		store:       store.New(),
		loader:      registry,
		errors:      make(map[string]error),
		envVars:     opts.EnvVars,
		varFiles:    opts.VarFiles,
		visitedDirs: make(map[string]bool),
		evalCtx:     make(map[string]map[string]varresolve.Binding),
	}
	run.resolver = modresolve.New(run.store, registry, run.loadModuleContent, nested)

	var exclude discovery.ExcludeMatcher
	if len(opts.ExcludedPaths) > 0 {
		exclude = filter.NewExcluder(opts.ExcludedPaths)
	}

	dirs, err := discovery.Walk(rootDir, ignoreHidden, exclude)
	if err != nil {
		return nil, fmt.Errorf("loader: walk %s: %w", rootDir, err)
	}

	for _, d := range dirs {
		if err := run.load(ctx, d.Path, nil, nil); err != nil {
			return nil, err
		}
	}

	run.resolver.Finalize()
	modresolve.AttachSyntheticVarBlocks(run.store, run.sightings)

	depMap, depIndexes := modresolve.ComputeDependencyMap(nested, run.store.Definitions())

	return &Result{
		Definitions:         run.store.Definitions(),
		ParsingErrors:       run.errors,
		EvalContext:         run.evalCtx,
		ModuleDependencyMap: depMap,
		DepIndexMapping:     depIndexes,
	}, nil
}

// truthy parses the handful of strings Terraform-adjacent tooling accepts
// as "on" for a boolean environment toggle.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// dirRunner holds the mutable state threaded through one ParseDirectory
// call's directory loads: the shared store, the module resolver built on
// top of it, the running parsing-errors sink, and the set of directories
// already loaded, so the root walk never loads a directory a second time
// (whether the walk or a module call loaded it first).
type dirRunner struct {
	store       *store.DefinitionStore
	loader      moduleloader.ModuleLoader
	resolver    *modresolve.Resolver
	errors      map[string]error
	envVars     map[string]string
	varFiles    []string
	visitedDirs map[string]bool
	evalCtx     map[string]map[string]varresolve.Binding
	sightings   []varresolve.Binding
}

// loadModuleContent adapts dirRunner.load to modresolve.DirLoadFunc's
// signature, so the resolver can re-enter the pipeline for a freshly
// fetched module's content directory. Every module call loads its content
// directory afresh, so two calls to the same source each get their own
// instance keys; a directory already being loaded further up the same
// chain of module calls is skipped, which stops a module cycle.
func (r *dirRunner) loadModuleContent(ctx context.Context, dir string, specifiedVars map[string]any, nested *modresolve.NestedModuleData) error {
	for n := nested; n != nil; n = n.Parent {
		if filepath.Dir(n.File) == dir {
			return nil
		}
	}
	delete(r.visitedDirs, dir)
	return r.load(ctx, dir, specifiedVars, nested)
}

// load implements one directory's full scan -> normalize -> resolve-vars
// -> resolve-modules pipeline, skipping directories already visited in
// this run.
func (r *dirRunner) load(ctx context.Context, dir string, specifiedVars map[string]any, nested *modresolve.NestedModuleData) error {
	if r.visitedDirs[dir] {
		return nil
	}
	r.visitedDirs[dir] = true

	files, err := discovery.Files(dir)
	if err != nil {
		return nil
	}

	payloads := make(map[string]rawhcl.RawPayload, len(files))
	for _, f := range files {
		payload, err := rawhcl.Parse(f)
		if err != nil {
			log.WithField("file", f).WithError(err).Warn("failed to parse file")
			r.errors[f] = err
			continue
		}
		if payload == nil {
			continue
		}
		normalized := normalize.Normalize(payload)
		payloads[f] = normalized
		r.store.Set(f, normalized)
	}

	result, err := varresolve.Resolve(varresolve.Options{
		Dir:             dir,
		FilePayloads:    payloads,
		EnvVars:         r.envVars,
		VarFiles:        r.varFiles,
		ManualOverrides: specifiedVars,
	})
	if err != nil {
		return fmt.Errorf("loader: resolve variables in %s: %w", dir, err)
	}
	r.sightings = append(r.sightings, result.Sightings()...)
	if len(result.Winning) > 0 {
		r.evalCtx[dir] = result.Winning
	}

	return r.resolver.Run(ctx, dir, nested)
}
