// Package resource defines the immutable unit of content that flows through a
// pipeline.
package resource

import (
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
)

// Meta is the metadata bag carried with a resource
type Meta struct {
	// Kind is the extension without the leading dot ("css", "js")
	Kind string
	// Origin is the glob pattern that matched the source file
	Origin string
	// Source is the file the content was read from, empty for generated resources
	Source string
}

// Resource is an identified unit of content. Values are immutable; the With
// methods return modified copies.
type Resource struct {
	rel  string
	base string
	meta Meta

	load *loader
}

type loader struct {
	once sync.Once
	data []byte
	err  error
	read func() ([]byte, error)
}

func (l *loader) bytes() ([]byte, error) {
	l.once.Do(func() {
		l.data, l.err = l.read()
	})
	return l.data, l.err
}

// FromFile creates a resource whose content is read from disk on first access.
// rel is the slash-separated path relative to base.
func FromFile(rel, base, source, origin string) Resource {
	return Resource{
		rel:  path.Clean(rel),
		base: base,
		meta: Meta{Kind: kindOf(rel), Origin: origin, Source: source},
		load: &loader{read: func() ([]byte, error) {
			data, err := os.ReadFile(source)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", source, err)
			}
			return data, nil
		}},
	}
}

// New creates an in-memory resource.
func New(rel string, data []byte) Resource {
	return Resource{
		rel:  path.Clean(rel),
		meta: Meta{Kind: kindOf(rel)},
		load: fixed(data),
	}
}

func fixed(data []byte) *loader {
	l := &loader{}
	l.once.Do(func() { l.data = data })
	return l
}

// Path returns the identifier, a slash-separated path relative to the glob base.
func (r Resource) Path() string { return r.rel }

// Base returns the glob base the resource was matched under.
func (r Resource) Base() string { return r.base }

// Meta returns the metadata bag.
func (r Resource) Meta() Meta { return r.meta }

// Kind is shorthand for Meta().Kind.
func (r Resource) Kind() string { return r.meta.Kind }

// IsZero reports a resource without identity, which steps must never emit.
func (r Resource) IsZero() bool { return r.rel == "" || r.rel == "." || r.load == nil }

// Bytes returns the content. The returned slice must not be modified.
func (r Resource) Bytes() ([]byte, error) {
	if r.load == nil {
		return nil, fmt.Errorf("resource %q has no content", r.rel)
	}
	return r.load.bytes()
}

// WithPath returns a copy with a new identifier; Kind follows the new extension.
func (r Resource) WithPath(rel string) Resource {
	r.rel = path.Clean(rel)
	r.meta.Kind = kindOf(rel)
	return r
}

// WithBytes returns a copy holding new content.
func (r Resource) WithBytes(data []byte) Resource {
	r.load = fixed(data)
	return r
}

// WithMeta returns a copy with a replaced metadata bag.
func (r Resource) WithMeta(m Meta) Resource {
	r.meta = m
	return r
}

func (r Resource) String() string {
	return r.rel
}

func kindOf(p string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
}

// Paths lists the identifiers of rs in order.
func Paths(rs []Resource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.rel
	}
	return out
}
