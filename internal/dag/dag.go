package dag

import (
	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
)

// Graph is the validated, immutable dependency graph of a set of tasks
type Graph struct {
	order      []string
	index      map[string]int
	tasks      map[string]*Task
	deps       map[string][]string // task -> tasks it depends on
	dependents map[string][]string // task -> tasks that depend on it
}

// NewGraph validates the declarations and builds the graph. Tasks are kept
// in the given order, which is the tie-break order of every later query.
func NewGraph(tasks []*Task) (*Graph, error) {
	g := &Graph{
		index:      make(map[string]int, len(tasks)),
		tasks:      make(map[string]*Task, len(tasks)),
		deps:       make(map[string][]string, len(tasks)),
		dependents: make(map[string][]string, len(tasks)),
	}

	for _, t := range tasks {
		if t == nil || t.Name == "" {
			return nil, buildErrors.NewInvalidTaskError("", "task name cannot be empty")
		}
		if _, exists := g.tasks[t.Name]; exists {
			return nil, buildErrors.NewDuplicateTaskError(t.Name)
		}
		if err := validateTask(t); err != nil {
			return nil, err
		}

		g.index[t.Name] = len(g.order)
		g.order = append(g.order, t.Name)
		g.tasks[t.Name] = t
	}

	for _, name := range g.order {
		seen := make(map[string]bool)
		for _, dep := range g.tasks[name].DependsOn {
			if _, exists := g.tasks[dep]; !exists {
				return nil, buildErrors.NewUnknownDependencyError(name, dep)
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			g.deps[name] = append(g.deps[name], dep)
			g.dependents[dep] = append(g.dependents[dep], name)
		}
	}

	// Serial chains add ordering edges between their members, so they take
	// part in cycle detection.
	if cycle := g.findCycle(g.edgesWithChains(g.order)); cycle != nil {
		return nil, buildErrors.NewCyclicDependencyError(cycle)
	}

	return g, nil
}

func validateTask(t *Task) error {
	switch t.Mode {
	case ModeLeaf:
		if t.Action == nil {
			return buildErrors.NewInvalidTaskError(t.Name, "leaf task has no action")
		}
	case ModeParallel, ModeSerial:
		if t.Action != nil {
			return buildErrors.NewInvalidTaskError(t.Name, t.Mode.String()+" task cannot carry an action")
		}
	default:
		return buildErrors.NewInvalidTaskError(t.Name, "unknown mode")
	}
	return nil
}

// Task returns the declaration for name
func (g *Graph) Task(name string) (*Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// Has reports whether name is declared
func (g *Graph) Has(name string) bool {
	_, ok := g.tasks[name]
	return ok
}

// Names returns all task names in declaration order
func (g *Graph) Names() []string {
	return append([]string(nil), g.order...)
}

// Size returns the number of tasks in the graph
func (g *Graph) Size() int {
	return len(g.order)
}

// Dependencies returns the direct dependencies of name in declared order
func (g *Graph) Dependencies(name string) []string {
	return append([]string(nil), g.deps[name]...)
}

// Dependents returns the tasks that directly depend on name, in declaration order
func (g *Graph) Dependents(name string) []string {
	return append([]string(nil), g.dependents[name]...)
}

// edgesWithChains returns the dependency edges of the given tasks plus the
// ordering edges of every serial chain among them. For a serial task with
// dependencies [d1 .. dn], d(i+1) depends on d(i), and so does every task
// d(i+1) pulls in that is not already needed by d1 .. d(i). Only the entry
// points of that set get an explicit edge; the rest follow transitively.
func (g *Graph) edgesWithChains(names []string) map[string][]string {
	in := make(map[string]bool, len(names))
	for _, n := range names {
		in[n] = true
	}

	edges := make(map[string][]string, len(names))
	add := func(from, to string) {
		for _, existing := range edges[from] {
			if existing == to {
				return
			}
		}
		edges[from] = append(edges[from], to)
	}

	for _, n := range names {
		for _, d := range g.deps[n] {
			add(n, d)
		}
	}
	for _, n := range names {
		t := g.tasks[n]
		if t.Mode != ModeSerial {
			continue
		}
		chain := g.deps[n]
		before := make(map[string]bool)
		for i := 0; i < len(chain); i++ {
			reach := g.closure(chain[i])
			if i > 0 && in[chain[i]] && in[chain[i-1]] {
				add(chain[i], chain[i-1])

				fresh := make(map[string]bool, len(reach))
				for _, r := range reach {
					if !before[r] {
						fresh[r] = true
					}
				}
				for _, r := range reach {
					if r == chain[i] || !fresh[r] || !in[r] || !g.isEntry(r, fresh) {
						continue
					}
					add(r, chain[i-1])
				}
			}
			for _, r := range reach {
				before[r] = true
			}
		}
	}
	return edges
}

// isEntry reports whether none of n's dependencies are inside set
func (g *Graph) isEntry(n string, set map[string]bool) bool {
	for _, d := range g.deps[n] {
		if set[d] {
			return false
		}
	}
	return true
}

// findCycle performs a DFS in declaration order and returns the first cycle
// found as a closed path, e.g. [a b c a].
func (g *Graph) findCycle(edges map[string][]string) []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.order))
	var stack []string

	var visit func(n string) []string
	visit = func(n string) []string {
		state[n] = onStack
		stack = append(stack, n)

		for _, d := range edges[n] {
			switch state[d] {
			case onStack:
				// Back edge found; slice the stack from d
				for i, s := range stack {
					if s == d {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, d)
					}
				}
			case unvisited:
				if c := visit(d); c != nil {
					return c
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[n] = done
		return nil
	}

	for _, n := range g.order {
		if state[n] == unvisited {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}
