package orchestrator

import (
	"context"
	"fmt"

	"github.com/maxkimambo/assetpipe/internal/config"
	"github.com/maxkimambo/assetpipe/internal/dag"
	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/matcher"
	"github.com/maxkimambo/assetpipe/internal/pipeline"
	"github.com/maxkimambo/assetpipe/internal/transform"
)

// TaskFactory turns task declarations into executable graph tasks
type TaskFactory struct {
	runner   *pipeline.Runner
	registry *transform.Registry
}

// NewTaskFactory creates a new task factory
func NewTaskFactory(runner *pipeline.Runner, registry *transform.Registry) *TaskFactory {
	return &TaskFactory{
		runner:   runner,
		registry: registry,
	}
}

// CreateTasks converts every declaration, keeping declaration order
func (f *TaskFactory) CreateTasks(decls []config.TaskConfig) ([]*dag.Task, error) {
	tasks := make([]*dag.Task, 0, len(decls))
	for _, tc := range decls {
		task, err := f.CreateTask(tc)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// CreateTask converts one declaration. Group tasks get no action; leaf
// tasks clean their paths first, then run their pipeline.
func (f *TaskFactory) CreateTask(tc config.TaskConfig) (*dag.Task, error) {
	task := &dag.Task{
		Name:        tc.Name,
		DependsOn:   tc.DependsOn,
		Mode:        tc.Mode,
		Description: tc.Description,
		BestEffort:  tc.BestEffort,
	}
	if tc.Mode != dag.ModeLeaf {
		return task, nil
	}

	var p *pipeline.Pipeline
	if tc.HasPipeline() {
		var err error
		if p, err = f.CreatePipeline(tc); err != nil {
			return nil, err
		}
	}

	for _, c := range tc.Clean {
		if err := f.runner.CheckInside(c); err != nil {
			return nil, buildErrors.NewInvalidTaskError(tc.Name, err.Error())
		}
	}

	clean := tc.Clean
	task.Action = func(ctx context.Context) error {
		if len(clean) > 0 {
			if _, err := f.runner.Clean(ctx, tc.Name, clean); err != nil {
				return err
			}
		}
		if p == nil {
			return nil
		}

		result, err := f.runner.Run(ctx, p)
		if err != nil {
			return err
		}
		if c := collectorFrom(ctx); c != nil {
			c.add(result.Written)
		}

		logger.User.Taskf("%s: %d matched, %d written", tc.Name, result.Matched, len(result.Written))
		logger.Op.WithFields(map[string]interface{}{
			"task":     tc.Name,
			"written":  result.Written,
			"disabled": result.Disabled,
			"duration": result.Duration.String(),
		}).Debug("Pipeline finished")
		return nil
	}
	return task, nil
}

// CreatePipeline resolves the step types of a leaf task
func (f *TaskFactory) CreatePipeline(tc config.TaskConfig) (*pipeline.Pipeline, error) {
	if err := f.runner.CheckInside(tc.Dest); err != nil {
		return nil, buildErrors.NewInvalidTaskError(tc.Name, fmt.Sprintf("dest: %v", err))
	}

	p := &pipeline.Pipeline{
		Task:    tc.Name,
		Sources: tc.Sources,
		Match: matcher.Options{
			Order:      tc.Order,
			AllowEmpty: tc.AllowEmpty,
		},
		Dest: tc.Dest,
		Live: tc.Live,
	}

	for i, sc := range tc.Steps {
		fn, ok := f.registry.Lookup(sc.Type)
		if !ok {
			return nil, buildErrors.NewInvalidTaskError(tc.Name,
				fmt.Sprintf("step %d: unknown step type %q", i+1, sc.Type)).
				WithTroubleshooting(fmt.Sprintf("Known step types: %v", f.registry.Names()))
		}
		p.Steps = append(p.Steps, pipeline.Step{
			Name:      sc.Type,
			Transform: fn,
			Config:    transform.NewConfig(sc.Attrs),
			Enabled:   sc.Enabled,
		})
	}
	return p, nil
}
