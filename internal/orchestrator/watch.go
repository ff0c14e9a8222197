package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/watch"
)

// Bindings converts the watch blocks of the build file
func (o *Orchestrator) Bindings() []watch.Binding {
	bindings := make([]watch.Binding, 0, len(o.build.Watches))
	for _, w := range o.build.Watches {
		bindings = append(bindings, watch.Binding{
			Patterns:         w.Patterns,
			Task:             w.Task,
			Reload:           w.Reload,
			WithDependencies: w.Deps,
		})
	}
	return bindings
}

// WatchPatterns returns the patterns of every binding
func (o *Orchestrator) WatchPatterns() []string {
	var patterns []string
	for _, w := range o.build.Watches {
		patterns = append(patterns, w.Patterns...)
	}
	return patterns
}

// Watch feeds events to a watch controller built from the build file's
// bindings until ctx is done or events is closed. Failed runs are logged and
// the controller keeps watching. On return no new runs start and in-flight
// runs have finished.
func (o *Orchestrator) Watch(ctx context.Context, events <-chan watch.Event, debounce time.Duration) error {
	bindings := o.Bindings()
	if len(bindings) == 0 {
		logger.User.Warn("No watch blocks declared; nothing to watch")
		return nil
	}

	if debounce <= 0 {
		debounce = watch.DefaultDebounce
	}
	opts := []watch.Option{watch.WithDebounce(debounce)}
	if o.runtime.Reloader != nil {
		opts = append(opts, watch.WithReload(o.runtime.Reloader.Reload))
	}

	// in-flight runs finish even after ctx is cancelled
	ctrl, err := watch.NewController(context.WithoutCancel(ctx), bindings, o.runBinding, opts...)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	for _, b := range bindings {
		logger.User.Watchf("Watching %v for %s", b.Patterns, b.Task)
	}

	err = ctrl.Run(ctx, events)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (o *Orchestrator) runBinding(ctx context.Context, b watch.Binding) ([]string, error) {
	return o.RunTask(ctx, b.Task, b.WithDependencies)
}
