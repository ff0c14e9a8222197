// Package matcher resolves glob patterns against a source tree into a
// deduplicated, deterministically ordered list of files.
package matcher

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
)

// Order selects how matches are ordered
type Order int

const (
	// OrderLexical sorts by directory, then by file name
	OrderLexical Order = iota
	// OrderPattern keeps match-time order: pattern list order, then walk order
	// inside each pattern. Concatenation steps rely on it to honor the
	// declared file order.
	OrderPattern
)

// String returns the build file spelling of the order
func (o Order) String() string {
	if o == OrderPattern {
		return "pattern"
	}
	return "lexical"
}

// ParseOrder parses the build file spelling of an order policy
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "lexical":
		return OrderLexical, nil
	case "pattern":
		return OrderPattern, nil
	}
	return OrderLexical, fmt.Errorf("unknown order %q (want lexical or pattern)", s)
}

// Options controls a Match call
type Options struct {
	Order Order
	// AllowEmpty turns an empty result into a success instead of NoMatches
	AllowEmpty bool
}

// Match is a single matched file
type Match struct {
	// Path is slash-separated and relative to the matcher root
	Path string
	// Base is the static prefix of the pattern that matched, relative to root
	Base string
	// Rel is Path relative to Base
	Rel string
	// Pattern is the pattern that produced the match
	Pattern string
}

// Find resolves patterns below root. Patterns prefixed with "!" exclude
// files matched by earlier or later positive patterns.
func Find(root string, patterns []string, opts Options) ([]Match, error) {
	positive, negative, err := split(patterns)
	if err != nil {
		return nil, err
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var matches []Match

	for _, pattern := range positive {
		base := StaticBase(pattern)
		err := doublestar.GlobWalk(fsys, pattern, func(p string, d fs.DirEntry) error {
			if seen[p] || excluded(negative, p) {
				return nil
			}
			seen[p] = true
			matches = append(matches, Match{
				Path:    p,
				Base:    base,
				Rel:     relTo(base, p),
				Pattern: pattern,
			})
			return nil
		}, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to match %s: %w", pattern, err)
		}
	}

	if len(matches) == 0 && !opts.AllowEmpty {
		return nil, buildErrors.NewNoMatchesError("", patterns)
	}

	if opts.Order == OrderLexical {
		sort.SliceStable(matches, func(i, j int) bool {
			di, dj := path.Dir(matches[i].Path), path.Dir(matches[j].Path)
			if di != dj {
				return di < dj
			}
			return path.Base(matches[i].Path) < path.Base(matches[j].Path)
		})
	}

	return matches, nil
}

// MatchPath reports whether the slash-separated path p is selected by
// patterns, honoring "!" exclusions.
func MatchPath(patterns []string, p string) bool {
	p = normalize(p)
	matched := false
	for _, pattern := range patterns {
		if neg, ok := strings.CutPrefix(pattern, "!"); ok {
			if ok, _ := doublestar.Match(normalize(neg), p); ok {
				return false
			}
			continue
		}
		if ok, _ := doublestar.Match(normalize(pattern), p); ok {
			matched = true
		}
	}
	return matched
}

// StaticBase returns the directory prefix of pattern that contains no glob
// syntax. Files matched by the pattern are identified relative to it.
func StaticBase(pattern string) string {
	base, _ := doublestar.SplitPattern(normalize(strings.TrimPrefix(pattern, "!")))
	if base == "" {
		return "."
	}
	return base
}

// Validate checks pattern syntax without touching the file system.
func Validate(patterns []string) error {
	_, _, err := split(patterns)
	return err
}

func split(patterns []string) (positive, negative []string, err error) {
	for _, raw := range patterns {
		neg := strings.HasPrefix(raw, "!")
		p := normalize(strings.TrimPrefix(raw, "!"))

		if filepath.IsAbs(p) || strings.HasPrefix(p, "../") || p == ".." {
			return nil, nil, fmt.Errorf("pattern %q must stay inside the project directory", raw)
		}
		if !doublestar.ValidatePattern(p) {
			return nil, nil, fmt.Errorf("invalid pattern %q", raw)
		}

		if neg {
			negative = append(negative, p)
		} else {
			positive = append(positive, p)
		}
	}
	return positive, negative, nil
}

func excluded(negative []string, p string) bool {
	for _, n := range negative {
		if ok, _ := doublestar.Match(n, p); ok {
			return true
		}
	}
	return false
}

func normalize(p string) string {
	p = filepath.ToSlash(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

func relTo(base, p string) string {
	if base == "." || base == "" {
		return p
	}
	return strings.TrimPrefix(p, base+"/")
}
