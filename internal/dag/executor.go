package dag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/progress"
)

// ExecutorConfig contains configuration for the executor
type ExecutorConfig struct {
	// MaxParallelTasks bounds concurrent tasks inside a stage; 0 means no limit
	MaxParallelTasks int

	// KeepGoing treats every task as best-effort: failures skip their
	// dependents but never halt independent tasks
	KeepGoing bool
}

// DefaultExecutorConfig returns a default configuration
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{}
}

// ExecutionResult contains the results of one plan execution
type ExecutionResult struct {
	Root string

	// Success is true when every planned task completed
	Success bool

	// Tasks maps task names to their results
	Tasks map[string]*TaskResult

	// Failures lists task failures in stage, then declaration order
	Failures []error

	// Halted is set when a fatal failure stopped further stages
	Halted bool

	ExecutionTime time.Duration

	// Error is the first failure, or the cancellation cause
	Error error
}

// Count returns how many tasks ended with status
func (r *ExecutionResult) Count(status NodeStatus) int {
	n := 0
	for _, t := range r.Tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

// Executor runs execution plans against a graph. It holds no per-run
// state, so one executor can serve concurrent runs.
type Executor struct {
	graph  *Graph
	config *ExecutorConfig
}

// NewExecutor creates a new executor
func NewExecutor(graph *Graph, config *ExecutorConfig) *Executor {
	if config == nil {
		config = DefaultExecutorConfig()
	}
	return &Executor{
		graph:  graph,
		config: config,
	}
}

// execution is the state of a single Execute call
type execution struct {
	mu      sync.Mutex
	results map[string]*TaskResult
}

func (x *execution) set(name string, fn func(r *TaskResult)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	fn(x.results[name])
}

func (x *execution) status(name string) NodeStatus {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.results[name].Status
}

func (x *execution) count(status NodeStatus) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := 0
	for _, r := range x.results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Execute runs plan stage by stage. Tasks of a stage run concurrently; a task
// starts only when all of its dependencies in the plan completed. A failure
// of a task that is neither best-effort nor run with KeepGoing lets the
// running stage finish and then stops the run. Cancelling ctx stops further
// stages from being launched.
func (e *Executor) Execute(ctx context.Context, plan *ExecutionPlan) (*ExecutionResult, error) {
	start := time.Now()
	x := &execution{results: make(map[string]*TaskResult, plan.Size())}
	for i, s := range plan.Stages {
		for _, name := range s {
			x.results[name] = &TaskResult{Name: name, Stage: i, Status: StatusPending}
		}
	}

	logger.Op.WithFields(map[string]interface{}{
		"root":   plan.Root,
		"stages": len(plan.Stages),
		"tasks":  plan.Size(),
	}).Debug("Executing plan")

	reporter := progress.NewReporter()
	halted := false
	var stopReason error

	for i, stage := range plan.Stages {
		if halted || ctx.Err() != nil {
			if stopReason == nil {
				stopReason = ctx.Err()
			}
			e.cancelRemaining(x, plan.Stages[i:], stopReason)
			break
		}

		g := &errgroup.Group{}
		if e.config.MaxParallelTasks > 0 {
			g.SetLimit(e.config.MaxParallelTasks)
		}

		for _, name := range stage {
			if blocker := e.unmetDependency(x, plan, name); blocker != "" {
				reason := fmt.Errorf("dependency %s did not complete", blocker)
				x.set(name, func(r *TaskResult) {
					r.Status = StatusSkipped
					r.Error = reason
				})
				logger.Op.Task(name).WithField("dependency", blocker).Warn("Skipping task")
				continue
			}

			name := name
			g.Go(func() error {
				e.runTask(ctx, x, name)
				return nil
			})
		}
		_ = g.Wait()

		for _, name := range stage {
			if x.status(name) != StatusFailed {
				continue
			}
			t, _ := e.graph.Task(name)
			if !t.BestEffort && !e.config.KeepGoing {
				halted = true
				stopReason = fmt.Errorf("run halted after %s failed", name)
			}
		}

		logger.Op.Debug(reporter.Report(progress.Info{
			Root:           plan.Root,
			Stage:          i,
			TotalStages:    len(plan.Stages),
			TotalTasks:     plan.Size(),
			CompletedTasks: x.count(StatusCompleted),
			FailedTasks:    x.count(StatusFailed),
			SkippedTasks:   x.count(StatusSkipped),
			ElapsedTime:    reporter.Elapsed(),
			StageTasks:     stage,
		}))
	}

	result := e.buildResult(x, plan, start)
	result.Halted = halted
	if result.Error == nil && !result.Success {
		result.Error = stopReason
		if result.Error == nil {
			result.Error = errors.New("execution did not complete")
		}
	}

	e.logFinalProgress(result)
	return result, result.Error
}

// unmetDependency returns the first dependency of name that did not
// complete, or "" when the task may start.
func (e *Executor) unmetDependency(x *execution, plan *ExecutionPlan, name string) string {
	for _, d := range plan.deps[name] {
		if x.status(d) != StatusCompleted {
			return d
		}
	}
	return ""
}

func (e *Executor) runTask(ctx context.Context, x *execution, name string) {
	task, _ := e.graph.Task(name)

	started := time.Now()
	x.set(name, func(r *TaskResult) {
		r.Status = StatusRunning
		r.StartTime = &started
	})

	if task.Mode == ModeLeaf {
		logger.User.Taskf("Starting %s", name)
	}

	err := invoke(ctx, task)

	ended := time.Now()
	x.set(name, func(r *TaskResult) {
		r.EndTime = &ended
		r.Duration = ended.Sub(started)
		r.Error = err
		if err != nil {
			r.Status = StatusFailed
		} else {
			r.Status = StatusCompleted
		}
	})

	if err != nil {
		logger.User.Error(buildErrors.Summary(err))
		if task.BestEffort || e.config.KeepGoing {
			logger.Op.Task(name).Warn("Continuing after best-effort failure")
		}
		return
	}
	if task.Mode == ModeLeaf {
		logger.User.Successf("Finished %s in %v", name, ended.Sub(started).Round(time.Millisecond))
	}
}

// invoke runs the task action and converts panics into errors
func invoke(ctx context.Context, task *Task) (err error) {
	if task.Action == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	return task.Action(ctx)
}

func (e *Executor) cancelRemaining(x *execution, stages [][]string, reason error) {
	for _, s := range stages {
		for _, name := range s {
			x.set(name, func(r *TaskResult) {
				if r.Status == StatusPending {
					r.Status = StatusCancelled
					r.Error = reason
				}
			})
		}
	}
}

func (e *Executor) buildResult(x *execution, plan *ExecutionPlan, start time.Time) *ExecutionResult {
	x.mu.Lock()
	defer x.mu.Unlock()

	result := &ExecutionResult{
		Root:          plan.Root,
		Tasks:         make(map[string]*TaskResult, len(x.results)),
		ExecutionTime: time.Since(start),
		Success:       true,
	}

	for _, stage := range plan.Stages {
		for _, name := range stage {
			r := *x.results[name]
			result.Tasks[name] = &r

			if r.Status != StatusCompleted {
				result.Success = false
			}
			if r.Status == StatusFailed {
				result.Failures = append(result.Failures, r.Error)
			}
		}
	}

	if len(result.Failures) > 0 {
		result.Error = result.Failures[0]
	}
	return result
}

// logFinalProgress logs the final execution summary
func (e *Executor) logFinalProgress(result *ExecutionResult) {
	completed := result.Count(StatusCompleted)
	failed := result.Count(StatusFailed)
	elapsed := result.ExecutionTime.Round(time.Millisecond)

	if result.Success {
		logger.User.Successf("%s: %d/%d tasks completed in %v", result.Root, completed, len(result.Tasks), elapsed)
		return
	}
	logger.User.Errorf("%s: %d completed, %d failed, %d skipped, %d cancelled in %v",
		result.Root, completed, failed, result.Count(StatusSkipped), result.Count(StatusCancelled), elapsed)
}
