package orchestrator

import (
	"context"
	"sync"

	"github.com/maxkimambo/assetpipe/internal/config"
)

// Reloader receives "resource set changed" notifications
type Reloader interface {
	Reload(paths []string)
}

// RuntimeContext is the state shared by every component of a run. It is
// passed explicitly; nothing reads it from package globals.
type RuntimeContext struct {
	// ProjectDir anchors source patterns, destinations and clean paths
	ProjectDir string
	Options    config.Options
	// Reloader may be nil when nobody listens
	Reloader Reloader
}

// writeCollector gathers the paths written during one watch-triggered run
// so they reach the reloader as a single notification
type writeCollector struct {
	mu    sync.Mutex
	paths []string
	seen  map[string]bool
}

type collectorKey struct{}

func withCollector(ctx context.Context) (context.Context, *writeCollector) {
	c := &writeCollector{seen: make(map[string]bool)}
	return context.WithValue(ctx, collectorKey{}, c), c
}

func collectorFrom(ctx context.Context) *writeCollector {
	c, _ := ctx.Value(collectorKey{}).(*writeCollector)
	return c
}

func (c *writeCollector) add(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths {
		if !c.seen[p] {
			c.seen[p] = true
			c.paths = append(c.paths, p)
		}
	}
}

func (c *writeCollector) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}
