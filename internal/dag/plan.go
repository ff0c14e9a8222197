package dag

import (
	"sort"

	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
)

// ExecutionPlan is the ordered list of stages computed for one root task.
// Every task in stage k depends only on tasks in stages < k.
type ExecutionPlan struct {
	Root   string
	Stages [][]string

	// effective dependencies inside the plan, serial chain edges included
	deps  map[string][]string
	stage map[string]int
}

// Tasks returns every task of the plan in execution order
func (p *ExecutionPlan) Tasks() []string {
	var out []string
	for _, s := range p.Stages {
		out = append(out, s...)
	}
	return out
}

// Size returns the number of tasks in the plan
func (p *ExecutionPlan) Size() int {
	n := 0
	for _, s := range p.Stages {
		n += len(s)
	}
	return n
}

// StageOf returns the stage index of name, or -1 when it is not planned
func (p *ExecutionPlan) StageOf(name string) int {
	if s, ok := p.stage[name]; ok {
		return s
	}
	return -1
}

// DependenciesOf returns the dependencies name waits for within the plan
func (p *ExecutionPlan) DependenciesOf(name string) []string {
	return append([]string(nil), p.deps[name]...)
}

// Plan computes the stages needed to run root. Only the transitive
// dependency closure of root is planned. Each task is placed in the
// earliest stage its dependencies allow, and tasks inside a stage follow
// declaration order.
func Plan(g *Graph, root string) (*ExecutionPlan, error) {
	if !g.Has(root) {
		return nil, buildErrors.NewUnknownRootError(root)
	}

	closure := g.closure(root)
	edges := g.edgesWithChains(closure)

	stage := make(map[string]int, len(closure))
	var level func(n string) int
	level = func(n string) int {
		if s, ok := stage[n]; ok {
			return s
		}
		s := 0
		for _, d := range edges[n] {
			if l := level(d) + 1; l > s {
				s = l
			}
		}
		stage[n] = s
		return s
	}

	maxStage := 0
	for _, n := range closure {
		if s := level(n); s > maxStage {
			maxStage = s
		}
	}

	stages := make([][]string, maxStage+1)
	for _, n := range closure {
		stages[stage[n]] = append(stages[stage[n]], n)
	}
	for _, s := range stages {
		sort.Slice(s, func(i, j int) bool { return g.index[s[i]] < g.index[s[j]] })
	}

	return &ExecutionPlan{
		Root:   root,
		Stages: stages,
		deps:   edges,
		stage:  stage,
	}, nil
}

// PlanSingle returns a one-stage plan that runs name without its
// dependencies. Watch bindings use it to rebuild a single task. A group
// task has no work of its own, so it gets the full plan of its members.
func PlanSingle(g *Graph, name string) (*ExecutionPlan, error) {
	t, ok := g.Task(name)
	if !ok {
		return nil, buildErrors.NewUnknownRootError(name)
	}
	if t.Mode != ModeLeaf {
		return Plan(g, name)
	}
	return &ExecutionPlan{
		Root:   name,
		Stages: [][]string{{name}},
		deps:   map[string][]string{},
		stage:  map[string]int{name: 0},
	}, nil
}

// closure returns root and everything it transitively depends on, in
// declaration order.
func (g *Graph) closure(root string) []string {
	in := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, d := range g.deps[n] {
			if !in[d] {
				in[d] = true
				queue = append(queue, d)
			}
		}
	}

	out := make([]string, 0, len(in))
	for _, n := range g.order {
		if in[n] {
			out = append(out, n)
		}
	}
	return out
}
