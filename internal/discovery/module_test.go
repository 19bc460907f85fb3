package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

type prefixExclude []string

func (p prefixExclude) Match(relPath string) bool {
	for _, prefix := range p {
		if relPath == prefix {
			return true
		}
	}
	return false
}

func TestWalker_Walk(t *testing.T) {
	tmpDir := t.TempDir()

	dirs := []string{
		"network/vpc",
		"network/subnets",
		"compute/ec2",
		"compute/ec2/userdata",
	}

	for _, d := range dirs {
		dir := filepath.Join(tmpDir, d)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create dir %s: %v", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "main.tf"), []byte("# test"), 0o644); err != nil {
			t.Fatalf("failed to write .tf file: %v", err)
		}
	}

	// Directory with no loadable files should be skipped
	emptyDir := filepath.Join(tmpDir, "docs")
	if err := os.MkdirAll(emptyDir, 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(emptyDir, "readme.md"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	// Hidden directory should be skipped entirely
	hiddenDir := filepath.Join(tmpDir, ".terraform")
	if err := os.MkdirAll(hiddenDir, 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(hiddenDir, "main.tf"), []byte("# hidden"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	found, err := Walk(tmpDir, true, nil)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if len(found) != len(dirs) {
		t.Fatalf("expected %d directories, found %d: %v", len(dirs), len(found), found)
	}

	want := map[string]bool{}
	for _, d := range dirs {
		want[filepath.FromSlash(d)] = true
	}
	for _, d := range found {
		if !want[d.RelativePath] {
			t.Errorf("unexpected directory found: %s", d.RelativePath)
		}
	}
}

func TestWalker_RespectsExclude(t *testing.T) {
	tmpDir := t.TempDir()

	for _, d := range []string{"keep", "skip"} {
		dir := filepath.Join(tmpDir, d)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "main.tf"), []byte("# test"), 0o644); err != nil {
			t.Fatalf("failed to write .tf file: %v", err)
		}
	}

	found, err := Walk(tmpDir, true, prefixExclude{"skip"})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if len(found) != 1 || found[0].RelativePath != "keep" {
		t.Errorf("expected only 'keep', got %v", found)
	}
}

func TestWalker_IncludesHiddenWhenDisabled(t *testing.T) {
	tmpDir := t.TempDir()

	hiddenDir := filepath.Join(tmpDir, ".overrides")
	if err := os.MkdirAll(hiddenDir, 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(hiddenDir, "main.tf"), []byte("# test"), 0o644); err != nil {
		t.Fatalf("failed to write .tf file: %v", err)
	}

	found, err := Walk(tmpDir, false, nil)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if len(found) != 1 || found[0].RelativePath != ".overrides" {
		t.Errorf("expected hidden directory to be included, got %v", found)
	}
}

func TestContainsLoadableFiles(t *testing.T) {
	tmpDir := t.TempDir()

	emptyDir := filepath.Join(tmpDir, "empty")
	if err := os.MkdirAll(emptyDir, 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	if containsLoadableFiles(emptyDir) {
		t.Error("expected false for empty directory")
	}

	jsonDir := filepath.Join(tmpDir, "json")
	if err := os.MkdirAll(jsonDir, 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(jsonDir, "main.tf.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if !containsLoadableFiles(jsonDir) {
		t.Error("expected true for directory with .tf.json file")
	}
}

func TestFiles(t *testing.T) {
	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "main.tf"), []byte("# a"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "variables.tf"), []byte("# b"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	files, err := Files(tmpDir)
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(files), files)
	}
}
