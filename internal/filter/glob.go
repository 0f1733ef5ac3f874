package filter

import (
	"path"
	"strings"

	"github.com/aa-dank/slug-sweep-deduper/internal/model"
)

// globPattern is a parsed exclude pattern with its matching strategy.
type globPattern struct {
	pattern   string
	matchPath bool // true = match against directory/filename; false = filename only
}

// ExcludePatterns matches records against shell glob patterns.
// Patterns without '/' match the filename only. Patterns with '/' match the
// canonical path "directory/filename". Blank patterns and '#' comments are
// skipped, and malformed patterns never match.
func ExcludePatterns(rawPatterns []string) Predicate {
	var patterns []globPattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, globPattern{
			pattern:   strings.ToLower(raw),
			matchPath: strings.Contains(raw, "/"),
		})
	}

	return func(r model.FileRecord) bool {
		name := strings.ToLower(r.Filename)
		full := strings.ToLower(path.Join(r.Directory, r.Filename))
		for _, p := range patterns {
			subject := name
			if p.matchPath {
				subject = full
			}
			if ok, err := path.Match(p.pattern, subject); err == nil && ok {
				return true
			}
		}
		return false
	}
}
