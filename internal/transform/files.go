package transform

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/maxkimambo/assetpipe/internal/resource"
)

// Concat joins every input into one resource named by "name", keeping input
// order. "separator" defaults to a newline. No input yields no output.
func Concat(ctx context.Context, in []resource.Resource, cfg Config) ([]resource.Resource, error) {
	name, err := cfg.String("name", "")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("concat requires a name")
	}
	sep, err := cfg.String("separator", "\n")
	if err != nil {
		return nil, err
	}
	if len(in) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	for i, r := range in {
		data, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteString(sep)
		}
		buf.Write(data)
	}

	out := in[0].WithPath(name)
	meta := out.Meta()
	meta.Source = ""
	return []resource.Resource{out.WithMeta(meta).WithBytes(buf.Bytes())}, nil
}

// Rename changes resource paths. "to" replaces the whole path of a single
// resource; otherwise "dirname", "basename", "extname", "prefix" and "suffix"
// edit the parts of every path.
func Rename(ctx context.Context, in []resource.Resource, cfg Config) ([]resource.Resource, error) {
	to, err := cfg.String("to", "")
	if err != nil {
		return nil, err
	}
	if to != "" {
		if len(in) > 1 {
			return nil, fmt.Errorf("rename to %q needs a single resource, got %d", to, len(in))
		}
		out := make([]resource.Resource, 0, len(in))
		for _, r := range in {
			out = append(out, r.WithPath(to))
		}
		return out, nil
	}

	parts := make(map[string]string)
	for _, key := range []string{"dirname", "basename", "extname", "prefix", "suffix"} {
		v, err := cfg.String(key, "")
		if err != nil {
			return nil, err
		}
		parts[key] = v
	}

	out := make([]resource.Resource, 0, len(in))
	for _, r := range in {
		p := r.Path()
		dir, ext := path.Dir(p), path.Ext(p)
		stem := strings.TrimSuffix(path.Base(p), ext)

		if cfg.Has("dirname") {
			dir = parts["dirname"]
		}
		if cfg.Has("basename") {
			stem = parts["basename"]
		}
		if cfg.Has("extname") {
			ext = parts["extname"]
		}
		stem = parts["prefix"] + stem + parts["suffix"]

		renamed := path.Join(dir, stem+ext)
		if renamed == "." || renamed == "" {
			return nil, fmt.Errorf("rename of %s produced an empty path", p)
		}
		out = append(out, r.WithPath(renamed))
	}
	return out, nil
}

// Filter keeps resources whose path matches "include" (all when unset) and
// none of "exclude".
func Filter(ctx context.Context, in []resource.Resource, cfg Config) ([]resource.Resource, error) {
	include, err := cfg.Strings("include")
	if err != nil {
		return nil, err
	}
	exclude, err := cfg.Strings("exclude")
	if err != nil {
		return nil, err
	}
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}

	var out []resource.Resource
	for _, r := range in {
		if len(include) > 0 && !anyMatch(include, r.Path()) {
			continue
		}
		if anyMatch(exclude, r.Path()) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func anyMatch(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}
