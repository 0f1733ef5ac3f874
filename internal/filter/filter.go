// Package filter decides which discovered duplicates are never shown for review.
package filter

import (
	"fmt"
	"path"
	"strings"

	"github.com/aa-dank/slug-sweep-deduper/internal/config"
	"github.com/aa-dank/slug-sweep-deduper/internal/model"
)

// Predicate reports whether a record should be excluded. Predicates must be
// pure and must not fail.
type Predicate func(model.FileRecord) bool

// Pipeline applies predicates in order. A record is excluded as soon as any
// predicate matches.
type Pipeline struct {
	predicates []Predicate
}

// NewPipeline creates a pipeline that runs predicates in the given order.
func NewPipeline(predicates ...Predicate) *Pipeline {
	return &Pipeline{predicates: predicates}
}

// Len returns the number of predicates.
func (p *Pipeline) Len() int {
	return len(p.predicates)
}

// Excluded reports whether any predicate matches r.
func (p *Pipeline) Excluded(r model.FileRecord) bool {
	for _, pred := range p.predicates {
		if pred(r) {
			return true
		}
	}
	return false
}

// Apply returns the records no predicate excludes, in their original order.
func (p *Pipeline) Apply(records []model.FileRecord) []model.FileRecord {
	kept := make([]model.FileRecord, 0, len(records))
	for _, r := range records {
		if !p.Excluded(r) {
			kept = append(kept, r)
		}
	}
	return kept
}

// NoFilter excludes nothing.
func NoFilter(model.FileRecord) bool { return false }

// ExcludeExtensions matches filenames ending in any of exts, ignoring case.
func ExcludeExtensions(exts ...string) Predicate {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = true
	}
	return func(r model.FileRecord) bool {
		return set[strings.ToLower(path.Ext(r.Filename))]
	}
}

// ExcludeNames matches filenames equal to any of names, ignoring case.
func ExcludeNames(names ...string) Predicate {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return func(r model.FileRecord) bool {
		return set[strings.ToLower(r.Filename)]
	}
}

// ExcludeSmallerThan matches records below size bytes.
func ExcludeSmallerThan(size int64) Predicate {
	return func(r model.FileRecord) bool {
		return r.Size < size
	}
}

var (
	// ExcludeCADSupportFiles skips shape, linetype, hatch pattern and font
	// bitmap files that CAD drawings reference from many folders.
	ExcludeCADSupportFiles = ExcludeExtensions(".shx", ".lin", ".pat", ".pcx")

	// ExcludeSystemFiles skips files the OS writes into every folder.
	ExcludeSystemFiles = ExcludeNames("thumbs.db", ".ds_store", "desktop.ini")
)

// Builtin returns a named predicate.
func Builtin(name string) (Predicate, bool) {
	switch name {
	case "no_filter":
		return NoFilter, true
	case "cad_support_files":
		return ExcludeCADSupportFiles, true
	case "system_files":
		return ExcludeSystemFiles, true
	default:
		return nil, false
	}
}

// NewPipelineFromConfig builds the pipeline in a fixed order: builtins as
// listed, then glob patterns, then the minimum size.
func NewPipelineFromConfig(cfg config.FiltersConfig) (*Pipeline, error) {
	var preds []Predicate
	for _, name := range cfg.Enabled {
		pred, ok := Builtin(name)
		if !ok {
			return nil, fmt.Errorf("unknown filter: %q", name)
		}
		preds = append(preds, pred)
	}
	if len(cfg.ExcludePatterns) > 0 {
		preds = append(preds, ExcludePatterns(cfg.ExcludePatterns))
	}
	if cfg.MinSize > 0 {
		preds = append(preds, ExcludeSmallerThan(cfg.MinSize))
	}
	return NewPipeline(preds...), nil
}
