package transform

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Config is the evaluated attribute set of one step declaration
type Config struct {
	attrs map[string]cty.Value
	dir   string
}

// NewConfig wraps already evaluated attribute values
func NewConfig(attrs map[string]cty.Value) Config {
	return Config{attrs: attrs}
}

// ConfigFromMap builds a Config from plain Go values (strings, bools,
// numbers, string slices and string maps).
func ConfigFromMap(m map[string]interface{}) (Config, error) {
	attrs := make(map[string]cty.Value, len(m))
	for k, v := range m {
		ty, err := gocty.ImpliedType(v)
		if err != nil {
			return Config{}, fmt.Errorf("attribute %q: %w", k, err)
		}
		val, err := gocty.ToCtyValue(v, ty)
		if err != nil {
			return Config{}, fmt.Errorf("attribute %q: %w", k, err)
		}
		attrs[k] = val
	}
	return Config{attrs: attrs}, nil
}

// WithDir returns a copy carrying the project directory
func (c Config) WithDir(dir string) Config {
	c.dir = dir
	return c
}

// Dir is the project directory the build runs in
func (c Config) Dir() string { return c.dir }

// Has reports whether key was set to a non-null value
func (c Config) Has(key string) bool {
	v, ok := c.attrs[key]
	return ok && !v.IsNull()
}

// Keys returns the attribute names sorted
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c Config) decode(key string, ty cty.Type, out interface{}) (bool, error) {
	v, ok := c.attrs[key]
	if !ok || v.IsNull() {
		return false, nil
	}
	if !v.IsWhollyKnown() {
		return false, fmt.Errorf("attribute %q is not known", key)
	}
	conv, err := convert.Convert(v, ty)
	if err != nil {
		return false, fmt.Errorf("attribute %q: %w", key, err)
	}
	if err := gocty.FromCtyValue(conv, out); err != nil {
		return false, fmt.Errorf("attribute %q: %w", key, err)
	}
	return true, nil
}

// String returns key as a string, or def when unset
func (c Config) String(key, def string) (string, error) {
	var s string
	ok, err := c.decode(key, cty.String, &s)
	if err != nil || !ok {
		return def, err
	}
	return s, nil
}

// Strings returns key as a list of strings. A single string is accepted as
// a one-element list.
func (c Config) Strings(key string) ([]string, error) {
	if v, ok := c.attrs[key]; ok && !v.IsNull() && v.Type() == cty.String {
		s, err := c.String(key, "")
		return []string{s}, err
	}
	var out []string
	if _, err := c.decode(key, cty.List(cty.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Bool returns key as a bool, or def when unset
func (c Config) Bool(key string, def bool) (bool, error) {
	var b bool
	ok, err := c.decode(key, cty.Bool, &b)
	if err != nil || !ok {
		return def, err
	}
	return b, nil
}

// Int returns key as an int, or def when unset
func (c Config) Int(key string, def int) (int, error) {
	var n int
	ok, err := c.decode(key, cty.Number, &n)
	if err != nil || !ok {
		return def, err
	}
	return n, nil
}

// StringMap returns key as a map of strings
func (c Config) StringMap(key string) (map[string]string, error) {
	var out map[string]string
	if _, err := c.decode(key, cty.Map(cty.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}
