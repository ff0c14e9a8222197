// Package pipeline runs the transform steps of one task over its matched
// sources and materializes the result into the destination tree.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/matcher"
	"github.com/maxkimambo/assetpipe/internal/resource"
	"github.com/maxkimambo/assetpipe/internal/transform"
)

// Step is one declared transform of a pipeline
type Step struct {
	// Name is the step type as written in the build file
	Name      string
	Transform transform.Func
	Config    transform.Config
	// Enabled is false when the step's condition evaluated to false
	Enabled bool
}

// Pipeline describes what a task does with its sources
type Pipeline struct {
	Task    string
	Sources []string
	Match   matcher.Options
	Steps   []Step
	// Dest is the output directory relative to the project directory
	Dest string
	// Live pushes written paths to the reload hook
	Live bool
}

// Result describes a successful pipeline run
type Result struct {
	Task     string
	Matched  int
	Written  []string
	Disabled []string
	Duration time.Duration
}

// ReloadFunc receives the paths written by a live pipeline. ctx is the one
// the pipeline ran with.
type ReloadFunc func(ctx context.Context, written []string)

// Runner executes pipelines inside a project directory
type Runner struct {
	projectDir string
	reload     ReloadFunc
}

// NewRunner creates a runner. reload may be nil.
func NewRunner(projectDir string, reload ReloadFunc) *Runner {
	return &Runner{
		projectDir: projectDir,
		reload:     reload,
	}
}

// Run matches the sources of p, applies its enabled steps in order and
// writes the outcome under p.Dest. A failing step aborts the remaining steps
// of this pipeline only and is returned as a StepFailure. Cancelling ctx is
// observed between steps; a step that already started runs to completion.
func (r *Runner) Run(ctx context.Context, p *Pipeline) (*Result, error) {
	start := time.Now()
	result := &Result{Task: p.Task}

	resources, err := r.load(p)
	if err != nil {
		return nil, err
	}
	result.Matched = len(resources)

	log := logger.Op.Task(p.Task).WithField("matched", len(resources))
	log.Debug("Sources matched")

	// Steps are not interrupted halfway, so they never observe cancellation
	stepCtx := context.WithoutCancel(ctx)

	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !step.Enabled {
			result.Disabled = append(result.Disabled, step.Name)
			log.WithField("step", step.Name).Debug("Step disabled")
			continue
		}

		out, err := apply(stepCtx, step, resources, step.Config.WithDir(r.projectDir))
		if err == nil {
			err = validateOutput(out)
		}
		if err != nil {
			return nil, buildErrors.NewStepFailure(p.Task, i, step.Name, err)
		}

		log.WithFields(map[string]interface{}{
			"step": step.Name,
			"in":   len(resources),
			"out":  len(out),
		}).Debug("Step applied")
		resources = out
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	written, err := r.materialize(p, resources)
	if err != nil {
		return nil, err
	}
	result.Written = written
	result.Duration = time.Since(start)

	if p.Live && r.reload != nil && len(written) > 0 {
		r.reload(ctx, written)
	}

	return result, nil
}

func (r *Runner) load(p *Pipeline) ([]resource.Resource, error) {
	if len(p.Sources) == 0 {
		return nil, nil
	}

	matches, err := matcher.Find(r.projectDir, p.Sources, p.Match)
	if err != nil {
		if stderrors.Is(err, buildErrors.ErrNoMatches) {
			return nil, buildErrors.NewNoMatchesError(p.Task, p.Sources)
		}
		return nil, buildErrors.NewInvalidTaskError(p.Task, err.Error())
	}

	resources := make([]resource.Resource, len(matches))
	for i, m := range matches {
		source := filepath.Join(r.projectDir, filepath.FromSlash(m.Path))
		resources[i] = resource.FromFile(m.Rel, m.Base, source, m.Pattern)
	}
	return resources, nil
}

// apply runs one step and converts a panic into an error
func apply(ctx context.Context, step Step, in []resource.Resource, cfg transform.Config) (out []resource.Resource, err error) {
	if step.Transform == nil {
		return nil, fmt.Errorf("step %s has no implementation", step.Name)
	}
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	// Steps get their own slice so they cannot reorder ours
	return step.Transform(ctx, append([]resource.Resource(nil), in...), cfg)
}

// validateOutput rejects resources a step must never emit
func validateOutput(out []resource.Resource) error {
	for i, res := range out {
		if res.IsZero() {
			return fmt.Errorf("malformed output: resource %d has no path or content", i)
		}
		p := res.Path()
		if path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
			return fmt.Errorf("malformed output: %s escapes the destination", p)
		}
	}
	return nil
}
