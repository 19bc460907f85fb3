// Package filter provides glob-based path exclusion shared by directory
// discovery and the orchestrator's excluded-paths handling.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/tfload/tfload/internal/discovery"
)

// GlobFilter filters paths based on glob patterns
type GlobFilter struct {
	// ExcludePatterns are patterns to exclude (e.g., "**/.terraform/**")
	ExcludePatterns []string
	// IncludePatterns are patterns to include (if empty, all are included)
	IncludePatterns []string
}

// NewGlobFilter creates a new filter with the given patterns
func NewGlobFilter(exclude, include []string) *GlobFilter {
	return &GlobFilter{
		ExcludePatterns: exclude,
		IncludePatterns: include,
	}
}

// Match checks if a path matches the filter criteria.
// Returns true if the path should be included.
func (f *GlobFilter) Match(path string) bool {
	// Normalize path separators for matching
	normalizedPath := filepath.ToSlash(path)

	// Check exclude patterns first
	for _, pattern := range f.ExcludePatterns {
		normalizedPattern := filepath.ToSlash(pattern)
		if matchPattern(normalizedPattern, normalizedPath) {
			return false
		}
		// Also try glob-style matching with **
		if matchGlob(normalizedPattern, normalizedPath) {
			return false
		}
	}

	// If no include patterns, include by default
	if len(f.IncludePatterns) == 0 {
		return true
	}

	// Check include patterns
	for _, pattern := range f.IncludePatterns {
		normalizedPattern := filepath.ToSlash(pattern)
		if matchPattern(normalizedPattern, normalizedPath) {
			return true
		}
		if matchGlob(normalizedPattern, normalizedPath) {
			return true
		}
	}

	return false
}

// Excluder adapts a GlobFilter to discovery.ExcludeMatcher: the walker
// skips a directory when Match reports true, the inverse of GlobFilter's
// include-oriented Match.
type Excluder struct {
	filter *GlobFilter
}

// NewExcluder builds an Excluder over the given exclude patterns.
func NewExcluder(exclude []string) Excluder {
	return Excluder{filter: NewGlobFilter(exclude, nil)}
}

// Match reports whether relativePath should be skipped.
func (e Excluder) Match(relativePath string) bool {
	return !e.filter.Match(relativePath)
}

// matchPattern wraps filepath.Match and returns false on invalid patterns
func matchPattern(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	if err != nil {
		return false // Invalid pattern treated as no match
	}
	return matched
}

// FilterDirs returns directories whose relative path matches the filter criteria
func (f *GlobFilter) FilterDirs(dirs []discovery.Dir) []discovery.Dir {
	var result []discovery.Dir

	for _, d := range dirs {
		if f.Match(filepath.ToSlash(d.RelativePath)) {
			result = append(result, d)
		}
	}

	return result
}

// matchGlob provides extended glob matching with ** support
func matchGlob(pattern, path string) bool {
	// Handle ** pattern
	if strings.Contains(pattern, "**") {
		return matchDoubleStarGlob(pattern, path)
	}

	// Fall back to standard filepath.Match
	return matchPattern(pattern, path)
}

// matchDoubleStarGlob handles ** patterns that match any number of path segments
func matchDoubleStarGlob(pattern, path string) bool {
	// Split pattern by **
	parts := strings.Split(pattern, "**")

	if len(parts) == 1 {
		// No ** in pattern
		return matchPattern(pattern, path)
	}

	// For pattern like "a/**/b", parts = ["a/", "/b"]
	// Match prefix
	prefix := parts[0]
	if prefix != "" {
		prefix = strings.TrimSuffix(prefix, "/")
		if !strings.HasPrefix(path, prefix) && !matchPrefix(prefix, path) {
			return false
		}
		// Remove matched prefix
		path = strings.TrimPrefix(path, prefix)
		path = strings.TrimPrefix(path, "/")
	}

	// Match suffix
	suffix := parts[len(parts)-1]
	if suffix != "" {
		suffix = strings.TrimPrefix(suffix, "/")
		if !strings.HasSuffix(path, suffix) && !matchSuffix(suffix, path) {
			return false
		}
	}

	// Handle middle parts if any
	if len(parts) > 2 {
		for i := 1; i < len(parts)-1; i++ {
			middle := strings.Trim(parts[i], "/")
			if middle != "" && !strings.Contains(path, middle) {
				return false
			}
		}
	}

	return true
}

// matchPrefix matches a glob prefix against a path
func matchPrefix(prefix, path string) bool {
	prefixParts := strings.Split(prefix, "/")
	pathParts := strings.Split(path, "/")

	if len(prefixParts) > len(pathParts) {
		return false
	}

	for i, pp := range prefixParts {
		if !matchPattern(pp, pathParts[i]) {
			return false
		}
	}

	return true
}

// matchSuffix matches a glob suffix against a path
func matchSuffix(suffix, path string) bool {
	suffixParts := strings.Split(suffix, "/")
	pathParts := strings.Split(path, "/")

	if len(suffixParts) > len(pathParts) {
		return false
	}

	offset := len(pathParts) - len(suffixParts)
	for i, sp := range suffixParts {
		if !matchPattern(sp, pathParts[offset+i]) {
			return false
		}
	}

	return true
}
