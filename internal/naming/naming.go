// Package naming derives function globs and task names from the project's
// glob, extension and entry suffix configuration.
package naming

import (
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	defaultGlobs      = []string{"**/*"}
	defaultExtensions = []string{".hcl"}
)

// Options are the raw naming settings from the project config.
type Options struct {
	// EntrySuffix, e.g. "task" or ".task", must precede the extension of
	// every entry file. Empty means no suffix is required.
	EntrySuffix string
	Globs       []string
	Extensions  []string
}

// Rules is the derived, immutable naming rule set.
type Rules struct {
	globs    []string
	suffixes []string
}

// New derives the function globs and the longest-first suffix set.
func New(opts Options) Rules {
	requiredSuffix := ""
	if opts.EntrySuffix != "" {
		requiredSuffix = "." + strings.TrimPrefix(opts.EntrySuffix, ".")
	}
	globs := opts.Globs
	if len(globs) == 0 {
		globs = defaultGlobs
	}
	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}

	var r Rules
	seen := make(map[string]struct{})
	addSuffix := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		r.suffixes = append(r.suffixes, s)
	}

	for _, glob := range globs {
		if ext := path.Ext(glob); ext != "" {
			addSuffix(requiredSuffix + ext)
			if requiredSuffix != "" {
				glob = strings.TrimSuffix(glob, ext) + requiredSuffix + ext
			}
			r.globs = append(r.globs, glob)
			continue
		}
		for _, ext := range extensions {
			ext = requiredSuffix + "." + strings.TrimPrefix(ext, ".")
			addSuffix(ext)
			r.globs = append(r.globs, glob+ext)
		}
	}

	sort.SliceStable(r.suffixes, func(i, j int) bool {
		return len(r.suffixes[i]) > len(r.suffixes[j])
	})
	return r
}

// Globs returns the function entry globs, relative to the project root.
func (r Rules) Globs() []string {
	return append([]string(nil), r.globs...)
}

// Suffixes returns the suffix set, longest first.
func (r Rules) Suffixes() []string {
	return append([]string(nil), r.suffixes...)
}

// TaskName strips the longest matching suffix from an entry point. It
// reports false when no suffix matches.
func (r Rules) TaskName(entryPoint string) (string, bool) {
	for _, s := range r.suffixes {
		if strings.HasSuffix(entryPoint, s) {
			return strings.TrimSuffix(entryPoint, s), true
		}
	}
	return "", false
}

// Match reports whether a slash-separated path relative to the project root
// is a function entry file.
func (r Rules) Match(relPath string) bool {
	for _, g := range r.globs {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
	}
	return false
}
