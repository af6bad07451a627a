package agent

import (
	"path/filepath"
	"strings"

	"github.com/go-analyze/bulk"
)

// resolvePath implements spec §4.2: increasing-k suffix matching over the
// inventory, stopping at the first k with exactly one candidate.
func resolvePath(inv *Inventory, extensions []string, userPath string) (*FileEntry, error) {
	ext := strings.ToLower(filepath.Ext(userPath))
	allowed := false
	for _, e := range extensions {
		if strings.EqualFold(e, ext) {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, errUnsupportedExtension(strings.TrimPrefix(ext, "."))
	}

	normalized := normalizeSegments(userPath)
	if len(normalized) == 0 {
		return nil, errPathNotFound(userPath)
	}

	candidates := inv.Entries
	for k := 1; k <= len(normalized); k++ {
		want := normalized[len(normalized)-k:]
		next := bulk.SliceFilter(func(e FileEntry) bool {
			return segmentsHaveSuffix(e.Segments, want)
		}, candidates)

		switch len(next) {
		case 0:
			// no remaining candidate has this suffix: either the final
			// segment matches nothing (k == 1), or a shorter suffix matched
			// more than one entry and none of them has this longer one.
			return nil, errPathNotFound(userPath)
		case 1:
			found := next[0]
			return &found, nil
		default:
			candidates = next
		}
	}
	// input fully consumed and more than one candidate remains
	return nil, errPathAmbiguous()
}

// normalizeSegments collapses "." and ".." components and strips a leading
// absolute-root prefix, returning the remaining path segments in order.
func normalizeSegments(userPath string) []string {
	cleaned := filepath.ToSlash(filepath.Clean(userPath))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." || cleaned == "" {
		return nil
	}
	parts := strings.Split(cleaned, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		out = append(out, p)
	}
	return out
}

// segmentsHaveSuffix reports whether entrySegments ends with exactly want,
// aligned on full segment boundaries (so "hello.js" never matches
// "a/othello.js").
func segmentsHaveSuffix(entrySegments, want []string) bool {
	if len(want) > len(entrySegments) {
		return false
	}
	offset := len(entrySegments) - len(want)
	for i, w := range want {
		if entrySegments[offset+i] != w {
			return false
		}
	}
	return true
}
