// Package orchestrator wires a loaded build file to the scheduler, the
// pipeline runner and the watch controller.
package orchestrator

import (
	"context"

	"github.com/maxkimambo/assetpipe/internal/config"
	"github.com/maxkimambo/assetpipe/internal/dag"
	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/pipeline"
	"github.com/maxkimambo/assetpipe/internal/transform"
)

// DefaultTask is run when no task is named
const DefaultTask = "default"

// Orchestrator runs the tasks of one build file
type Orchestrator struct {
	build    *config.BuildFile
	runtime  RuntimeContext
	registry *transform.Registry
	execCfg  *dag.ExecutorConfig

	runner   *pipeline.Runner
	graph    *dag.Graph
	executor *dag.Executor
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRegistry replaces the built-in step types
func WithRegistry(r *transform.Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

// WithExecutorConfig sets concurrency and failure policy
func WithExecutorConfig(cfg *dag.ExecutorConfig) Option {
	return func(o *Orchestrator) { o.execCfg = cfg }
}

// New builds and validates the task graph of build. Declaration errors
// (unknown dependencies, cycles, unknown step types) are returned here,
// before anything runs.
func New(build *config.BuildFile, rt RuntimeContext, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		build:    build,
		runtime:  rt,
		registry: transform.DefaultRegistry(),
		execCfg:  dag.DefaultExecutorConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runtime.ProjectDir == "" {
		o.runtime.ProjectDir = build.ProjectDir
	}

	o.runner = pipeline.NewRunner(o.runtime.ProjectDir, o.publish)

	tasks, err := NewTaskFactory(o.runner, o.registry).CreateTasks(build.Tasks)
	if err != nil {
		return nil, err
	}
	graph, err := dag.NewGraph(tasks)
	if err != nil {
		return nil, err
	}
	o.graph = graph
	o.executor = dag.NewExecutor(graph, o.execCfg)

	logger.Op.WithFields(map[string]interface{}{
		"tasks":       graph.Size(),
		"project_dir": o.runtime.ProjectDir,
	}).Debug("Task graph built")

	return o, nil
}

// Graph returns the validated task graph
func (o *Orchestrator) Graph() *dag.Graph { return o.graph }

// Runtime returns the runtime context the orchestrator was built with
func (o *Orchestrator) Runtime() RuntimeContext { return o.runtime }

// Plan computes the execution plan of root
func (o *Orchestrator) Plan(root string) (*dag.ExecutionPlan, error) {
	return dag.Plan(o.graph, root)
}

// Run executes root and everything it depends on. The result is returned
// even when the run failed; its Error is the returned error.
func (o *Orchestrator) Run(ctx context.Context, root string) (*dag.ExecutionResult, error) {
	plan, err := o.Plan(root)
	if err != nil {
		return nil, err
	}
	logger.User.Startingf("Running %s: %d tasks in %d stages", root, plan.Size(), len(plan.Stages))
	return o.executor.Execute(ctx, plan)
}

// RunTask executes a single task, with its dependencies when withDeps is
// set, and returns the paths the run wrote. A group task always runs its
// members.
func (o *Orchestrator) RunTask(ctx context.Context, name string, withDeps bool) ([]string, error) {
	var (
		plan *dag.ExecutionPlan
		err  error
	)
	if withDeps {
		plan, err = dag.Plan(o.graph, name)
	} else {
		plan, err = dag.PlanSingle(o.graph, name)
	}
	if err != nil {
		return nil, err
	}

	ctx, collector := withCollector(ctx)
	_, err = o.executor.Execute(ctx, plan)
	return collector.written(), err
}

// Visualize describes the plan of root, with the outcome of result when
// it is not nil
func (o *Orchestrator) Visualize(root string, result *dag.ExecutionResult) (*dag.PlanVisualization, error) {
	plan, err := o.Plan(root)
	if err != nil {
		return nil, err
	}
	return dag.NewPlanVisualization(o.graph, plan, result), nil
}

// publish forwards writes of live pipelines. Inside a watch-triggered run
// the writes are already collected for the run's single reload.
func (o *Orchestrator) publish(ctx context.Context, written []string) {
	if collectorFrom(ctx) != nil || o.runtime.Reloader == nil {
		return
	}
	o.runtime.Reloader.Reload(written)
}
