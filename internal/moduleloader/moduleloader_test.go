package moduleloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRegistry_LocalSourceNoFetch(t *testing.T) {
	dir := t.TempDir()
	modDir := filepath.Join(dir, "modules", "m")
	if err := os.MkdirAll(modDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r := NewRegistry(dir, true, "", nil)
	c, err := r.Load(context.Background(), dir, modDir, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !c.Loaded() || c.Path() != modDir {
		t.Fatalf("Load() = %v/%v, want loaded at %s", c.Loaded(), c.Path(), modDir)
	}
}

func TestRegistry_ExternalSourceSkippedWhenDownloadDisabled(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, false, "", nil)

	c, err := r.Load(context.Background(), dir, "terraform-aws-modules/vpc/aws", "5.0.0")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Loaded() {
		t.Fatalf("Load() loaded = true, want false when DownloadExternalModules is off")
	}
}

func TestRegistry_CachesBySourceVersion(t *testing.T) {
	dir := t.TempDir()
	modDir := filepath.Join(dir, "modules", "m")
	if err := os.MkdirAll(modDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r := NewRegistry(dir, true, "", nil)
	ctx := context.Background()

	first, err := r.Load(ctx, dir, modDir, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(r.ContentCache) != 1 {
		t.Fatalf("ContentCache size = %d, want 1 after first load", len(r.ContentCache))
	}

	second, err := r.Load(ctx, dir, modDir, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if first.Path() != second.Path() {
		t.Errorf("second Load() = %v, want cached result matching first", second.Path())
	}
}

func TestParseGitSource_ExplicitRef(t *testing.T) {
	url, ref := parseGitSource("git::https://example.com/repo.git?ref=v1.2.0")
	if url != "https://example.com/repo.git" {
		t.Errorf("url = %q, want https://example.com/repo.git", url)
	}
	if ref != "v1.2.0" {
		t.Errorf("ref = %q, want v1.2.0", ref)
	}
}

func TestParseGitSource_BareGithubShorthand(t *testing.T) {
	url, ref := parseGitSource("github.com/org/repo")
	if url != "https://github.com/org/repo.git" {
		t.Errorf("url = %q, want https://github.com/org/repo.git", url)
	}
	if ref != "" {
		t.Errorf("ref = %q, want empty", ref)
	}
}
