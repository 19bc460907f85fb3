// Package moduleloader fetches a module call's source into a local
// directory so its configuration can be parsed like any other. It mirrors
// the reference parser's module_loader_registry: a source address is
// classified (local, git, OCI, or registry) and handed to the matching
// backend, with successful fetches cached by (source, version) so the same
// external module is never downloaded twice in one run.
package moduleloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// Content is the result of resolving one module source: whether it was
// loaded at all, and if so, the local directory its configuration lives
// in.
type Content interface {
	Loaded() bool
	Path() string
}

// ModuleLoader resolves a module call's (source, version) into Content,
// fetching it first if necessary.
type ModuleLoader interface {
	Load(ctx context.Context, rootDir, source, version string) (Content, error)
}

// SourceVersion identifies one module source address plus the version/ref
// requested.
type SourceVersion struct {
	Source  string
	Version string
}

type content struct {
	loaded bool
	path   string
}

func (c content) Loaded() bool { return c.loaded }
func (c content) Path() string { return c.path }

// Registry is the default ModuleLoader: it classifies a source address and
// dispatches to the local, git, OCI, or registry backend, caching
// successful fetches.
type Registry struct {
	RootDir                   string
	DownloadExternalModules   bool
	ExternalModulesFolderName string
	ContentCache              map[SourceVersion]Content

	git      *GitBackend
	oci      *OCIBackend
	registry *RegistryBackend
}

// NewRegistry builds a Registry. cache may be nil, in which case a fresh
// one is created; passing a shared cache across ParseDirectory calls lets
// a caller avoid redundant downloads across runs.
func NewRegistry(rootDir string, downloadExternalModules bool, externalModulesFolderName string, cache map[SourceVersion]Content) *Registry {
	if externalModulesFolderName == "" {
		externalModulesFolderName = ".external_modules"
	}
	if cache == nil {
		cache = make(map[SourceVersion]Content)
	}
	return &Registry{
		RootDir:                   rootDir,
		DownloadExternalModules:   downloadExternalModules,
		ExternalModulesFolderName: externalModulesFolderName,
		ContentCache:              cache,
		git:                       NewGitBackend(),
		oci:                       NewOCIBackend(),
		registry:                  NewRegistryBackend(),
	}
}

// Load resolves source/version into Content, using rootDir to resolve
// already-relativized local sources.
func (r *Registry) Load(ctx context.Context, rootDir, source, version string) (Content, error) {
	sv := SourceVersion{Source: source, Version: version}
	if c, ok := r.ContentCache[sv]; ok {
		return c, nil
	}

	c, err := r.load(ctx, rootDir, source, version)
	if err != nil {
		return nil, err
	}

	r.ContentCache[sv] = c
	return c, nil
}

func (r *Registry) load(ctx context.Context, rootDir, source, version string) (Content, error) {
	switch {
	case isLocalSource(source):
		return localContent(source), nil
	case !r.DownloadExternalModules:
		return content{loaded: false}, nil
	case strings.HasPrefix(source, "git::"), isBareGithubSource(source):
		return r.git.Fetch(ctx, source, version, r.externalDest(source, version))
	case strings.HasPrefix(source, "oci::"):
		return r.oci.Fetch(ctx, source, r.externalDest(source, version))
	default:
		return r.registry.Fetch(ctx, source, version, r.externalDest(source, version))
	}
}

// isLocalSource reports whether source is already an absolute path to an
// existing directory — by the time the resolver calls Load, relative
// "./"/"../" sources have already been joined against the referrer's
// directory.
func isLocalSource(source string) bool {
	if !filepath.IsAbs(source) {
		return false
	}
	info, err := os.Stat(source)
	return err == nil && info.IsDir()
}

func localContent(path string) Content {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return content{loaded: true, path: path}
	}
	return content{loaded: false}
}

// isBareGithubSource reports whether source is Terraform's shorthand
// "github.com/org/repo" form, with no explicit git:: or scheme prefix.
func isBareGithubSource(source string) bool {
	return strings.HasPrefix(source, "github.com/")
}

// externalDest derives a stable destination directory, under
// RootDir/ExternalModulesFolderName, for a given source+version so repeat
// resolutions of the same module reuse the same path.
func (r *Registry) externalDest(source, version string) string {
	h := sha256.Sum256([]byte(source + "@" + version))
	return filepath.Join(r.RootDir, r.ExternalModulesFolderName, hex.EncodeToString(h[:])[:16])
}

// newRetryableClient returns a go-retryablehttp client built on top of
// go-cleanhttp's pooled, proxy-aware transport, used by the registry
// backend for its HTTP calls.
func newRetryableClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.Logger = nil
	return client
}
