package config

import (
	"fmt"
	"math/big"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"gopkg.in/yaml.v3"
)

// Options are the named build options, frozen once the build file is
// loaded
type Options struct {
	values map[string]cty.Value
}

// NewOptions copies values into an Options set
func NewOptions(values map[string]cty.Value) Options {
	cp := make(map[string]cty.Value, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Options{values: cp}
}

// Get returns the value of an option
func (o Options) Get(name string) (cty.Value, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Bool reports whether an option is set to true
func (o Options) Bool(name string) bool {
	v, ok := o.values[name]
	if !ok || v.IsNull() || !v.IsKnown() {
		return false
	}
	b, err := convert.Convert(v, cty.Bool)
	if err != nil || b.IsNull() {
		return false
	}
	return b.True()
}

// Names returns the option names sorted
func (o Options) Names() []string {
	names := make([]string, 0, len(o.values))
	for k := range o.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Object exposes the options to expressions as option.<name>
func (o Options) Object() cty.Value {
	if len(o.values) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(o.values)
}

// Display renders an option value for humans
func (o Options) Display(name string) string {
	v, ok := o.values[name]
	if !ok {
		return ""
	}
	return display(v)
}

func display(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	if !v.IsKnown() {
		return "(unknown)"
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Bool:
		return strconv.FormatBool(v.True())
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	}
	return v.GoString()
}

// ParseAssignment splits a name=value override. Values that read as bools
// or numbers become those types; anything else is a string.
func ParseAssignment(s string) (string, cty.Value, error) {
	name, raw, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", cty.NilVal, fmt.Errorf("invalid option %q, want name=value", s)
	}
	return name, inferValue(raw), nil
}

func inferValue(raw string) cty.Value {
	switch raw {
	case "true":
		return cty.True
	case "false":
		return cty.False
	}
	if f, _, err := big.ParseFloat(raw, 10, 512, big.ToNearestEven); err == nil && raw != "" {
		return cty.NumberVal(f)
	}
	return cty.StringVal(raw)
}

// LoadOptionsFile reads a YAML mapping of option values
func LoadOptionsFile(path string) (map[string]cty.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse options file %s: %w", path, err)
	}

	values := make(map[string]cty.Value, len(raw))
	for k, v := range raw {
		val, err := yamlToCty(v)
		if err != nil {
			return nil, fmt.Errorf("option %q in %s: %w", k, path, err)
		}
		values[k] = val
	}
	return values, nil
}

func yamlToCty(v interface{}) (cty.Value, error) {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(t), nil
	case bool:
		return cty.BoolVal(t), nil
	case int:
		return cty.NumberIntVal(int64(t)), nil
	case int64:
		return cty.NumberIntVal(t), nil
	case uint64:
		return cty.NumberUIntVal(t), nil
	case float64:
		return cty.NumberFloatVal(t), nil
	case []interface{}:
		if len(t) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(t))
		for i, e := range t {
			val, err := yamlToCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = val
		}
		return cty.TupleVal(elems), nil
	case map[string]interface{}:
		if len(t) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(t))
		for k, e := range t {
			val, err := yamlToCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = val
		}
		return cty.ObjectVal(attrs), nil
	}
	return cty.NilVal, fmt.Errorf("unsupported value of type %T", v)
}

// coerce converts an override to the type of the declared default, so
// --set prod=1 style mistakes are caught early
func coerce(name string, v cty.Value, declared cty.Value) (cty.Value, error) {
	if declared.IsNull() || !declared.Type().IsPrimitiveType() {
		return v, nil
	}
	if v.IsNull() || v.Type().Equals(declared.Type()) {
		return v, nil
	}
	out, err := convert.Convert(v, declared.Type())
	if err != nil {
		return cty.NilVal, fmt.Errorf("option %q must be a %s: %w", name, declared.Type().FriendlyName(), err)
	}
	return out, nil
}
