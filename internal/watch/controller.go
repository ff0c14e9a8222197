// Package watch re-runs tasks when their source files change.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/matcher"
)

// DefaultDebounce absorbs bursts of notifications from a single save
const DefaultDebounce = 100 * time.Millisecond

// State of a binding
type State int

const (
	// StateIdle waits for a change
	StateIdle State = iota
	// StatePending has seen a change and waits for the debounce delay
	StatePending
	// StateRunning executes the bound task
	StateRunning
)

// String returns a string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Binding ties source patterns to the task they rebuild
type Binding struct {
	Patterns []string
	Task     string
	// Reload fires the reload hook after every successful run
	Reload bool
	// WithDependencies runs the task's whole plan instead of the task alone
	WithDependencies bool
}

// RunFunc executes the task of a binding and returns the paths it wrote
type RunFunc func(ctx context.Context, b Binding) ([]string, error)

// ReloadFunc receives the paths a successful run wrote, or the changed
// sources when the run reported none
type ReloadFunc func(paths []string)

// Option configures a Controller
type Option func(*Controller)

// WithDebounce overrides DefaultDebounce
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithReload sets the hook fired after successful runs of reloading bindings
func WithReload(fn ReloadFunc) Option {
	return func(c *Controller) { c.reload = fn }
}

type binding struct {
	Binding
	state   State
	timer   *time.Timer
	dirty   bool
	changed []string
}

// Controller drives one state machine per binding. At most one run per
// binding is in flight; changes arriving during a run are folded into a
// single follow-up run.
type Controller struct {
	mu       sync.Mutex
	bindings []*binding
	run      RunFunc
	reload   ReloadFunc
	debounce time.Duration
	closed   bool
	wg       sync.WaitGroup

	// runs outlive Close; only the process context stops them
	ctx context.Context
}

// NewController validates the bindings and creates a controller. Runs
// receive ctx.
func NewController(ctx context.Context, bindings []Binding, run RunFunc, opts ...Option) (*Controller, error) {
	if run == nil {
		return nil, fmt.Errorf("watch controller needs a run function")
	}

	c := &Controller{
		run:      run,
		debounce: DefaultDebounce,
		ctx:      ctx,
	}
	for _, opt := range opts {
		opt(c)
	}

	for i, b := range bindings {
		if b.Task == "" {
			return nil, buildErrors.NewInvalidConfigError(fmt.Sprintf("watch %d has no task", i), nil)
		}
		if len(b.Patterns) == 0 {
			return nil, buildErrors.NewInvalidConfigError(fmt.Sprintf("watch for %s has no patterns", b.Task), nil)
		}
		if err := matcher.Validate(b.Patterns); err != nil {
			return nil, buildErrors.NewInvalidConfigError(fmt.Sprintf("watch for %s", b.Task), err)
		}
		c.bindings = append(c.bindings, &binding{Binding: b})
	}
	return c, nil
}

// Notify delivers a change. It returns how many bindings the path matched.
func (c *Controller) Notify(ev Event) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}

	matched := 0
	for _, b := range c.bindings {
		if !matcher.MatchPath(b.Patterns, ev.Path) {
			continue
		}
		matched++
		b.changed = appendUnique(b.changed, ev.Path)

		switch b.state {
		case StateIdle:
			b.state = StatePending
			c.wg.Add(1)
			b.timer = time.AfterFunc(c.debounce, func() { c.fire(b) })
			logger.Op.WithFields(map[string]interface{}{
				"task": b.Task,
				"path": ev.Path,
				"kind": ev.Kind.String(),
			}).Debug("Change detected")
		case StatePending:
			// absorbed by the pending run
		case StateRunning:
			b.dirty = true
		}
	}
	return matched
}

// Run feeds events into the controller until ctx is done or events closes
func (c *Controller) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.Notify(ev)
		}
	}
}

// State returns the state of the first binding for task
func (c *Controller) State(task string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.bindings {
		if b.Task == task {
			return b.state
		}
	}
	return StateIdle
}

// Close stops accepting changes, disarms pending triggers and waits for
// in-flight runs to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	for _, b := range c.bindings {
		if b.state == StatePending && b.timer != nil && b.timer.Stop() {
			b.state = StateIdle
			b.changed = nil
			c.wg.Done()
		}
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// fire runs the binding once, then again for as long as changes arrived
// during the previous run.
func (c *Controller) fire(b *binding) {
	defer c.wg.Done()

	c.mu.Lock()
	b.state = StateRunning
	b.timer = nil
	changed := b.changed
	b.changed = nil
	c.mu.Unlock()

	for {
		logger.User.Watchf("%s changed, running %s", describe(changed), b.Task)
		written, err := c.run(c.ctx, b.Binding)
		if err != nil {
			logger.User.Error(buildErrors.Summary(err))
		} else if b.Reload && c.reload != nil {
			logger.User.Reloadf("Reloading after %s", b.Task)
			if len(written) == 0 {
				written = changed
			}
			c.reload(written)
		}

		c.mu.Lock()
		if b.dirty && !c.closed && c.ctx.Err() == nil {
			b.dirty = false
			changed = b.changed
			b.changed = nil
			c.mu.Unlock()
			continue
		}
		b.state = StateIdle
		b.dirty = false
		b.changed = nil
		c.mu.Unlock()
		return
	}
}

func describe(changed []string) string {
	switch len(changed) {
	case 0:
		return "sources"
	case 1:
		return changed[0]
	default:
		return fmt.Sprintf("%s and %d more", changed[0], len(changed)-1)
	}
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
