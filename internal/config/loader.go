package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/maxkimambo/assetpipe/internal/dag"
	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/matcher"
)

// Overrides are the option values supplied outside the build file, applied
// in field order over the declared defaults
type Overrides struct {
	// OptionsFile is a YAML mapping of option values
	OptionsFile string
	// Set holds name=value assignments
	Set []string
	// Prod is shorthand for prod=true
	Prod bool
}

// fileSchema is the first decoding pass: block structure only, bodies are
// evaluated once the options are known
type fileSchema struct {
	Options []*optionBlock `hcl:"option,block"`
	Servers []*remainBlock `hcl:"server,block"`
	Tasks   []*taskBlock   `hcl:"task,block"`
	Watches []*remainBlock `hcl:"watch,block"`
}

type optionBlock struct {
	Name        string         `hcl:"name,label"`
	Default     hcl.Expression `hcl:"default,optional"`
	Description string         `hcl:"description,optional"`
}

type taskBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type remainBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type taskBody struct {
	Description string       `hcl:"description,optional"`
	DependsOn   []string     `hcl:"depends_on,optional"`
	Mode        string       `hcl:"mode,optional"`
	Src         []string     `hcl:"src,optional"`
	Order       string       `hcl:"order,optional"`
	AllowEmpty  bool         `hcl:"allow_empty,optional"`
	Dest        string       `hcl:"dest,optional"`
	Live        bool         `hcl:"live,optional"`
	BestEffort  bool         `hcl:"best_effort,optional"`
	Clean       []string     `hcl:"clean,optional"`
	Steps       []*stepBlock `hcl:"step,block"`
}

type stepBlock struct {
	Type string   `hcl:"type,label"`
	Body hcl.Body `hcl:",remain"`
}

type watchBody struct {
	Patterns []string `hcl:"patterns"`
	Task     string   `hcl:"task"`
	Reload   *bool    `hcl:"reload,optional"`
	Deps     bool     `hcl:"deps,optional"`
}

type serverBody struct {
	Dir  string `hcl:"dir,optional"`
	Port int    `hcl:"port,optional"`
}

// Load parses and evaluates the build file at path
func Load(path string, overrides Overrides) (*BuildFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, buildErrors.NewInvalidConfigError("cannot resolve build file path", err)
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, buildErrors.NewInvalidConfigError(fmt.Sprintf("cannot read build file %s", path), err)
	}
	return Parse(abs, src, overrides)
}

// Parse evaluates build file source. filename is used for diagnostics and
// its directory becomes the project directory.
func Parse(filename string, src []byte, overrides Overrides) (*BuildFile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, buildErrors.NewInvalidConfigError("failed to parse build file", diags)
	}

	var schema fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &schema); diags.HasErrors() {
		return nil, buildErrors.NewInvalidConfigError("failed to decode build file", diags)
	}

	bf := &BuildFile{
		Path:       filename,
		ProjectDir: filepath.Dir(filename),
		Server:     ServerConfig{Port: DefaultPort},
	}

	base := baseContext()

	options, err := resolveOptions(schema.Options, base, overrides, bf)
	if err != nil {
		return nil, err
	}
	bf.Options = options

	evalCtx := base.NewChild()
	evalCtx.Variables = map[string]cty.Value{"option": options.Object()}

	seen := make(map[string]bool)
	for _, tb := range schema.Tasks {
		if seen[tb.Name] {
			return nil, buildErrors.NewDuplicateTaskError(tb.Name)
		}
		seen[tb.Name] = true

		task, err := decodeTask(tb, evalCtx)
		if err != nil {
			return nil, err
		}
		bf.Tasks = append(bf.Tasks, task)
	}

	if len(schema.Servers) > 1 {
		return nil, buildErrors.NewInvalidConfigError("only one server block is allowed", nil)
	}
	if len(schema.Servers) == 1 {
		var sb serverBody
		if diags := gohcl.DecodeBody(schema.Servers[0].Body, evalCtx, &sb); diags.HasErrors() {
			return nil, buildErrors.NewInvalidConfigError("invalid server block", diags)
		}
		if sb.Dir != "" {
			bf.Server.Dir = sb.Dir
		}
		if sb.Port != 0 {
			bf.Server.Port = sb.Port
		}
	}

	if bf.Server.Dir == "" {
		bf.Server.Dir = serveDir(bf.Tasks)
	}

	for i, wb := range schema.Watches {
		w, err := decodeWatch(wb, evalCtx, seen)
		if err != nil {
			return nil, buildErrors.NewInvalidConfigError(fmt.Sprintf("invalid watch block #%d", i+1), err)
		}
		bf.Watches = append(bf.Watches, w)
	}

	for _, t := range bf.Tasks {
		bf.warnDestInSource(t)
	}

	logger.Op.WithFields(map[string]interface{}{
		"file":    filename,
		"tasks":   len(bf.Tasks),
		"watches": len(bf.Watches),
		"options": len(options.Names()),
	}).Debug("Build file loaded")

	return bf, nil
}

// baseContext holds what every expression may use: env and functions
func baseContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}
	envVal := cty.MapValEmpty(cty.String)
	if len(env) > 0 {
		envVal = cty.MapVal(env)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envVal},
		Functions: map[string]function.Function{
			"upper":     stdlib.UpperFunc,
			"lower":     stdlib.LowerFunc,
			"join":      stdlib.JoinFunc,
			"split":     stdlib.SplitFunc,
			"concat":    stdlib.ConcatFunc,
			"format":    stdlib.FormatFunc,
			"replace":   stdlib.ReplaceFunc,
			"coalesce":  stdlib.CoalesceFunc,
			"length":    stdlib.LengthFunc,
			"trimspace": stdlib.TrimSpaceFunc,
			"contains":  stdlib.ContainsFunc,
		},
	}
}

func resolveOptions(blocks []*optionBlock, ctx *hcl.EvalContext, overrides Overrides, bf *BuildFile) (Options, error) {
	values := make(map[string]cty.Value)
	declared := make(map[string]cty.Value)

	for _, ob := range blocks {
		if _, dup := declared[ob.Name]; dup {
			return Options{}, buildErrors.NewInvalidConfigError(fmt.Sprintf("option %q declared more than once", ob.Name), nil)
		}
		v, diags := ob.Default.Value(ctx)
		if diags.HasErrors() {
			return Options{}, buildErrors.NewInvalidConfigError(fmt.Sprintf("invalid default for option %q", ob.Name), diags)
		}
		declared[ob.Name] = v
		values[ob.Name] = v
	}

	apply := func(name string, v cty.Value) error {
		decl, ok := declared[name]
		if !ok {
			bf.warn(fmt.Sprintf("option %q is not declared in the build file", name))
			values[name] = v
			return nil
		}
		out, err := coerce(name, v, decl)
		if err != nil {
			return buildErrors.NewInvalidConfigError("invalid option value", err)
		}
		values[name] = out
		return nil
	}

	if overrides.OptionsFile != "" {
		fromFile, err := LoadOptionsFile(overrides.OptionsFile)
		if err != nil {
			return Options{}, buildErrors.NewInvalidConfigError("invalid options file", err)
		}
		names := make([]string, 0, len(fromFile))
		for k := range fromFile {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if err := apply(k, fromFile[k]); err != nil {
				return Options{}, err
			}
		}
	}

	for _, s := range overrides.Set {
		name, v, err := ParseAssignment(s)
		if err != nil {
			return Options{}, buildErrors.NewInvalidConfigError("invalid --set value", err)
		}
		if err := apply(name, v); err != nil {
			return Options{}, err
		}
	}

	if overrides.Prod {
		if err := apply("prod", cty.True); err != nil {
			return Options{}, err
		}
	}

	return NewOptions(values), nil
}

func decodeTask(tb *taskBlock, ctx *hcl.EvalContext) (TaskConfig, error) {
	var body taskBody
	if diags := gohcl.DecodeBody(tb.Body, ctx, &body); diags.HasErrors() {
		return TaskConfig{}, buildErrors.NewInvalidTaskError(tb.Name, "invalid task block").WithCause(diags)
	}

	t := TaskConfig{
		Name:        tb.Name,
		Description: body.Description,
		DependsOn:   body.DependsOn,
		Sources:     body.Src,
		AllowEmpty:  body.AllowEmpty,
		Dest:        body.Dest,
		Live:        body.Live,
		Clean:       body.Clean,
		BestEffort:  body.BestEffort,
	}

	isLeaf := len(body.Src) > 0 || len(body.Clean) > 0
	mode, err := dag.ParseMode(body.Mode)
	if err != nil {
		return TaskConfig{}, buildErrors.NewInvalidTaskError(tb.Name, err.Error())
	}
	switch {
	case isLeaf && body.Mode != "" && mode != dag.ModeLeaf:
		return TaskConfig{}, buildErrors.NewInvalidTaskError(tb.Name, fmt.Sprintf("a task with src or clean cannot be a %s", mode))
	case isLeaf:
		mode = dag.ModeLeaf
	case mode == dag.ModeLeaf:
		return TaskConfig{}, buildErrors.NewInvalidTaskError(tb.Name, "a leaf task needs src or clean")
	}
	t.Mode = mode

	if !isLeaf && (body.Dest != "" || len(body.Steps) > 0) {
		return TaskConfig{}, buildErrors.NewInvalidTaskError(tb.Name, "dest and step need src")
	}

	order, err := matcher.ParseOrder(body.Order)
	if err != nil {
		return TaskConfig{}, buildErrors.NewInvalidTaskError(tb.Name, err.Error())
	}
	t.Order = order

	if len(body.Src) > 0 {
		if body.Dest == "" {
			return TaskConfig{}, buildErrors.NewInvalidTaskError(tb.Name, "src requires dest")
		}
		if err := matcher.Validate(body.Src); err != nil {
			return TaskConfig{}, buildErrors.NewInvalidTaskError(tb.Name, err.Error())
		}
	}

	for i, sb := range body.Steps {
		step, err := decodeStep(sb, ctx)
		if err != nil {
			return TaskConfig{}, buildErrors.NewInvalidTaskError(tb.Name,
				fmt.Sprintf("step %d (%s): %v", i+1, sb.Type, err))
		}
		t.Steps = append(t.Steps, step)
	}

	return t, nil
}

func decodeStep(sb *stepBlock, ctx *hcl.EvalContext) (StepConfig, error) {
	attrs, diags := sb.Body.JustAttributes()
	if diags.HasErrors() {
		return StepConfig{}, diags
	}

	step := StepConfig{Type: sb.Type, Enabled: true, Attrs: make(map[string]cty.Value, len(attrs))}
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			return StepConfig{}, diags
		}
		if name == "when" {
			enabled, err := truthy(v)
			if err != nil {
				return StepConfig{}, fmt.Errorf("when: %w", err)
			}
			step.Enabled = enabled
			continue
		}
		step.Attrs[name] = v
	}
	return step, nil
}

func truthy(v cty.Value) (bool, error) {
	if v.IsNull() {
		return false, nil
	}
	if !v.IsKnown() {
		return false, fmt.Errorf("value is not known")
	}
	b, err := convert.Convert(v, cty.Bool)
	if err != nil {
		return false, err
	}
	return b.True(), nil
}

func decodeWatch(wb *remainBlock, ctx *hcl.EvalContext, tasks map[string]bool) (WatchConfig, error) {
	var body watchBody
	if diags := gohcl.DecodeBody(wb.Body, ctx, &body); diags.HasErrors() {
		return WatchConfig{}, diags
	}
	if !tasks[body.Task] {
		return WatchConfig{}, buildErrors.NewUnknownRootError(body.Task)
	}
	if len(body.Patterns) == 0 {
		return WatchConfig{}, fmt.Errorf("patterns must not be empty")
	}
	if err := matcher.Validate(body.Patterns); err != nil {
		return WatchConfig{}, err
	}

	w := WatchConfig{Patterns: body.Patterns, Task: body.Task, Reload: true, Deps: body.Deps}
	if body.Reload != nil {
		w.Reload = *body.Reload
	}
	return w, nil
}

// serveDir picks the top directory of the first task destination so the
// dev server never exposes the project root
func serveDir(tasks []TaskConfig) string {
	for _, t := range tasks {
		if t.Dest == "" {
			continue
		}
		dest := path.Clean(filepath.ToSlash(t.Dest))
		top, _, _ := strings.Cut(dest, "/")
		if top != "." && top != ".." {
			return top
		}
	}
	return DefaultServeDir
}

// warnDestInSource flags destinations that land under a pattern's base,
// where outputs would be picked up as sources on the next run
func (b *BuildFile) warnDestInSource(t TaskConfig) {
	if t.Dest == "" {
		return
	}
	dest := path.Clean(filepath.ToSlash(t.Dest))
	for _, p := range t.Sources {
		if strings.HasPrefix(p, "!") {
			continue
		}
		base := matcher.StaticBase(p)
		if base == "." || dest == base || strings.HasPrefix(dest, base+"/") {
			b.warn(fmt.Sprintf("task %q writes to %s, which is inside the source base of %s", t.Name, t.Dest, p))
			return
		}
	}
}

func (b *BuildFile) warn(msg string) {
	b.Warnings = append(b.Warnings, msg)
	logger.User.Warnf("%s", msg)
}
