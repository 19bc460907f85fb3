package modresolve

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tfload/tfload/internal/rawhcl"
)

// Edge identifies one resolved module-call edge: the bare file the call
// loaded and the referrer key it was called from.
type Edge struct {
	Path     string
	Referrer string
}

// ComputeDependencyMap builds the post-expansion directory -> dependency
// chains map: for every directory that ended up with live definitions,
// the list of module-call chains (outermost to innermost referrer) that
// led a module instance to be loaded there. A directory reached with no
// module chain at all (its own root files) is recorded with an empty
// chain. The second return value maps each resolved edge to the module
// indices it was called at within the referrer's module list.
func ComputeDependencyMap(nested bool, definitions map[string]rawhcl.RawPayload) (map[string][][]string, map[Edge][]int) {
	if nested {
		return computeNestedDependencyMap(definitions)
	}
	return computeFlatDependencyMap(definitions)
}

func computeNestedDependencyMap(definitions map[string]rawhcl.RawPayload) (map[string][][]string, map[Edge][]int) {
	result := make(map[string][][]string)
	indexMapping := make(map[Edge][]int)

	for key := range definitions {
		if !strings.HasSuffix(key, "]") {
			dir := filepath.Dir(key)
			result[dir] = append(result[dir], []string{})
			continue
		}

		list, bare := nestedModulesAsList(key)
		dir := filepath.Dir(bare)
		chain := make([]string, len(list))
		for i, m := range list {
			chain[i] = m.Module
		}
		result[dir] = append(result[dir], chain)

		if len(list) > 0 {
			inner := list[len(list)-1]
			appendIndex(indexMapping, Edge{Path: bare, Referrer: inner.Module}, inner.Index)
		}
	}

	return sortAndDedup(result), indexMapping
}

func appendIndex(m map[Edge][]int, e Edge, index int) {
	for _, i := range m[e] {
		if i == index {
			return
		}
	}
	m[e] = append(m[e], index)
	sort.Ints(m[e])
}

// computeFlatDependencyMap reconstructs the dependency chain for every
// flat-mode suffixed key by peeling its single suffix and extending the
// referrer directory's own chains with the referrer file. Edges are
// resolved breadth-first: one is ready only once its referrer's directory
// has no unresolved incoming edges left, so a module reached through an
// intermediate module records the full outermost-to-innermost chain. A
// directory reached via a fresh, unsuffixed file gets an empty chain.
func computeFlatDependencyMap(definitions map[string]rawhcl.RawPayload) (map[string][][]string, map[Edge][]int) {
	result := make(map[string][][]string)
	indexMapping := make(map[Edge][]int)

	type edge struct {
		dir      string
		referrer string
	}
	var pending []edge

	for key := range definitions {
		if !strings.HasSuffix(key, "]") {
			dir := filepath.Dir(key)
			result[dir] = append(result[dir], []string{})
			continue
		}

		bare, referrer, index, ok := splitOuterSuffix(key)
		if !ok {
			continue
		}
		pending = append(pending, edge{dir: filepath.Dir(bare), referrer: referrer})
		appendIndex(indexMapping, Edge{Path: bare, Referrer: referrer}, index)
	}

	for len(pending) > 0 {
		pendingDirs := make(map[string]bool, len(pending))
		for _, e := range pending {
			pendingDirs[e.dir] = true
		}

		var deferred []edge
		progressed := false
		for _, e := range pending {
			refDir := filepath.Dir(e.referrer)
			parents, ok := result[refDir]
			if !ok || pendingDirs[refDir] {
				deferred = append(deferred, e)
				continue
			}
			for _, chain := range parents {
				extended := make([]string, len(chain), len(chain)+1)
				copy(extended, chain)
				result[e.dir] = append(result[e.dir], append(extended, e.referrer))
			}
			progressed = true
		}

		if !progressed {
			// Cyclic or orphaned referrers: fall back to one-link chains so
			// the directory still appears in the map.
			for _, e := range deferred {
				result[e.dir] = append(result[e.dir], []string{e.referrer})
			}
			break
		}
		pending = deferred
	}

	return sortAndDedup(result), indexMapping
}

func sortAndDedup(result map[string][][]string) map[string][][]string {
	for dir, chains := range result {
		sort.Slice(chains, func(i, j int) bool {
			return strings.Join(chains[i], "\x00") < strings.Join(chains[j], "\x00")
		})
		result[dir] = dedupChains(chains)
	}
	return result
}

func dedupChains(chains [][]string) [][]string {
	seen := make(map[string]struct{}, len(chains))
	out := make([][]string, 0, len(chains))
	for _, c := range chains {
		h := strings.Join(c, "\x00")
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, c)
	}
	return out
}

type modulePathIndex struct {
	Module string
	Index  int
}

// nestedModulesAsList decomposes key's full nested suffix chain into an
// ordered list of (referrer, index) pairs from outermost (nearest the
// root) to innermost, plus the fully-stripped bare file path.
func nestedModulesAsList(key string) ([]modulePathIndex, string) {
	var list []modulePathIndex
	current := key
	for {
		_, referrer, index, ok := splitOuterSuffix(current)
		if !ok {
			break
		}
		list = append(list, modulePathIndex{Module: referrer, Index: index})
		current = referrer
	}

	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}

	return list, stripSuffix(key)
}

// splitOuterSuffix peels exactly one trailing [<referrer>#<index>] layer
// from key, returning the bare key, the referrer portion (which may
// itself carry further suffixes), and the index. Bracket depth is
// balanced so a referrer that is itself a suffixed key (nested mode) does
// not confuse the split.
func splitOuterSuffix(key string) (bare, referrer string, index int, ok bool) {
	if !strings.HasSuffix(key, "]") {
		return "", "", 0, false
	}

	depth := 0
	openIdx := -1
	for i := len(key) - 1; i >= 0; i-- {
		switch key[i] {
		case ']':
			depth++
		case '[':
			depth--
			if depth == 0 {
				openIdx = i
			}
		}
		if openIdx != -1 {
			break
		}
	}
	if openIdx == -1 {
		return "", "", 0, false
	}

	inner := key[openIdx+1 : len(key)-1]

	depth = 0
	hashIdx := -1
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '#':
			if depth == 0 {
				hashIdx = i
			}
		}
	}
	if hashIdx == -1 {
		return "", "", 0, false
	}

	idx, err := strconv.Atoi(inner[hashIdx+1:])
	if err != nil {
		return "", "", 0, false
	}

	return key[:openIdx], inner[:hashIdx], idx, true
}
