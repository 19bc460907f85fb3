// Package discovery walks a directory tree looking for directories that
// contain loadable Terraform configuration (.tf, .tf.json, .json, .hcl
// files), honoring hidden-directory and exclusion-pattern rules along the
// way.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Dir represents a directory discovered while walking the root tree.
type Dir struct {
	// Path is the absolute path to the directory.
	Path string
	// RelativePath is the path relative to the root directory passed to Walk.
	RelativePath string
}

// String returns the directory's relative path.
func (d Dir) String() string {
	return d.RelativePath
}

// ExcludeMatcher decides whether a relative path should be skipped during the walk.
type ExcludeMatcher interface {
	Match(relativePath string) bool
}

// Walker walks a directory tree collecting directories that contain
// loadable Terraform files, honoring hidden-directory skipping and an
// optional exclude matcher.
type Walker struct {
	// RootDir is the root directory to scan.
	RootDir string
	// IgnoreHiddenDirs skips dot-prefixed directories entirely.
	IgnoreHiddenDirs bool
	// Exclude, if set, is consulted for every directory (by its path relative
	// to RootDir); matching directories are skipped.
	Exclude ExcludeMatcher
}

// NewWalker creates a new Walker rooted at the given directory.
func NewWalker(rootDir string) *Walker {
	return &Walker{
		RootDir:          rootDir,
		IgnoreHiddenDirs: true,
	}
}

// Walk scans rootDir and returns every directory containing loadable
// Terraform files, honoring ignoreHiddenDirs and an optional exclude matcher.
func Walk(rootDir string, ignoreHiddenDirs bool, exclude ExcludeMatcher) ([]Dir, error) {
	w := &Walker{RootDir: rootDir, IgnoreHiddenDirs: ignoreHiddenDirs, Exclude: exclude}
	return w.Walk()
}

// Walk scans the directory tree and returns every directory that contains
// at least one loadable Terraform file, sorted by relative path.
func (w *Walker) Walk() ([]Dir, error) {
	var dirs []Dir

	absRoot, err := filepath.Abs(w.RootDir)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return relErr
		}

		if relPath != "." {
			if w.IgnoreHiddenDirs && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			if w.Exclude != nil && w.Exclude.Match(filepath.ToSlash(relPath)) {
				return filepath.SkipDir
			}
		}

		if containsLoadableFiles(path) {
			dirs = append(dirs, Dir{Path: path, RelativePath: relPath})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].RelativePath < dirs[j].RelativePath })

	return dirs, nil
}

// containsLoadableFiles reports whether a directory contains .tf, .tf.json,
// .json, or .hcl files.
func containsLoadableFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isLoadableFile(entry.Name()) {
			return true
		}
	}

	return false
}

func isLoadableFile(name string) bool {
	return strings.HasSuffix(name, ".tf") ||
		strings.HasSuffix(name, ".tf.json") ||
		strings.HasSuffix(name, ".json") ||
		strings.HasSuffix(name, ".hcl")
}

// Files returns the sorted list of loadable Terraform files directly inside dir.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isLoadableFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(files)

	return files, nil
}
