package dag

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
)

func noop(ctx context.Context) error { return nil }

func leaf(name string, deps ...string) *Task {
	return &Task{Name: name, DependsOn: deps, Mode: ModeLeaf, Action: noop}
}

func group(name string, mode Mode, deps ...string) *Task {
	return &Task{Name: name, DependsOn: deps, Mode: mode}
}

// scenarioGraph is clean <- {compile, bundle} <- serve
func scenarioGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph([]*Task{
		leaf("clean"),
		leaf("compile", "clean"),
		leaf("bundle", "clean"),
		leaf("serve", "compile", "bundle"),
	})
	require.NoError(t, err)
	return g
}

func TestNewGraph(t *testing.T) {
	g := scenarioGraph(t)

	assert.Equal(t, 4, g.Size())
	assert.Equal(t, []string{"clean", "compile", "bundle", "serve"}, g.Names())
	assert.Equal(t, []string{"compile", "bundle"}, g.Dependencies("serve"))
	assert.Equal(t, []string{"compile", "bundle"}, g.Dependents("clean"))
	assert.Empty(t, g.Dependencies("clean"))
	assert.True(t, g.Has("bundle"))
	assert.False(t, g.Has("missing"))

	task, ok := g.Task("serve")
	require.True(t, ok)
	assert.Equal(t, ModeLeaf, task.Mode)
}

func TestNewGraph_DuplicateDependenciesCollapsed(t *testing.T) {
	g, err := NewGraph([]*Task{leaf("a"), leaf("b", "a", "a")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.Dependencies("b"))
	assert.Equal(t, []string{"b"}, g.Dependents("a"))
}

func TestNewGraph_UnknownDependency(t *testing.T) {
	_, err := NewGraph([]*Task{leaf("a", "ghost")})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, buildErrors.ErrUnknownDependency))

	be, ok := buildErrors.AsBuildError(err)
	require.True(t, ok)
	assert.Equal(t, "a", be.Task)
	assert.Equal(t, "ghost", be.Context["dependency"])
}

func TestNewGraph_Cycle(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*Task
		cycle []string
	}{
		{
			name:  "self loop",
			tasks: []*Task{leaf("a", "a")},
			cycle: []string{"a", "a"},
		},
		{
			name:  "three tasks",
			tasks: []*Task{leaf("a", "c"), leaf("b", "a"), leaf("c", "b")},
			cycle: []string{"a", "c", "b", "a"},
		},
		{
			name: "serial chain against declared dependency",
			// second must run after first, but first depends on second
			tasks: []*Task{
				leaf("first", "second"),
				leaf("second"),
				group("all", ModeSerial, "first", "second"),
			},
			cycle: []string{"first", "second", "first"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGraph(tt.tasks)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.True(t, stderrors.Is(err, buildErrors.ErrCyclicDependency))

			be, ok := buildErrors.AsBuildError(err)
			require.True(t, ok)
			if diff := cmp.Diff(tt.cycle, be.Context["cycle"]); diff != "" {
				t.Errorf("cycle mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewGraph_InvalidDeclarations(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*Task
		want  error
	}{
		{"empty name", []*Task{{Mode: ModeLeaf, Action: noop}}, buildErrors.ErrInvalidTask},
		{"nil task", []*Task{nil}, buildErrors.ErrInvalidTask},
		{"duplicate", []*Task{leaf("a"), leaf("a")}, buildErrors.ErrDuplicateTask},
		{"leaf without action", []*Task{{Name: "a", Mode: ModeLeaf}}, buildErrors.ErrInvalidTask},
		{"group with action", []*Task{{Name: "a", Mode: ModeParallel, Action: noop}}, buildErrors.ErrInvalidTask},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.tasks)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":             ModeParallel,
		"parallel":     ModeParallel,
		"serial":       ModeSerial,
		"serial-chain": ModeSerial,
		"leaf":         ModeLeaf,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("sideways")
	assert.Error(t, err)
}

func TestPlan_Scenario(t *testing.T) {
	g := scenarioGraph(t)

	plan, err := Plan(g, "serve")
	require.NoError(t, err)

	want := [][]string{{"clean"}, {"compile", "bundle"}, {"serve"}}
	if diff := cmp.Diff(want, plan.Stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, plan.Size())
	assert.Equal(t, 1, plan.StageOf("bundle"))
	assert.Equal(t, -1, plan.StageOf("ghost"))
}

func TestPlan_OnlyClosureOfRoot(t *testing.T) {
	g := scenarioGraph(t)

	plan, err := Plan(g, "compile")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"clean"}, {"compile"}}, plan.Stages)
}

func TestPlan_EarliestStage(t *testing.T) {
	// d only depends on a, so it belongs in stage 1 next to b even though
	// c sits deeper in the graph
	g, err := NewGraph([]*Task{
		leaf("a"),
		leaf("b", "a"),
		leaf("c", "b"),
		leaf("d", "a"),
		group("root", ModeParallel, "c", "d"),
	})
	require.NoError(t, err)

	plan, err := Plan(g, "root")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "d"}, {"c"}, {"root"}}, plan.Stages)

	for _, name := range plan.Tasks() {
		s := plan.StageOf(name)
		for _, dep := range plan.DependenciesOf(name) {
			assert.Less(t, plan.StageOf(dep), s, "%s must come after %s", name, dep)
		}
	}
}

func TestPlan_DeclarationOrderTieBreak(t *testing.T) {
	g, err := NewGraph([]*Task{
		leaf("zeta"),
		leaf("alpha"),
		leaf("mid"),
		group("all", ModeParallel, "mid", "alpha", "zeta"),
	})
	require.NoError(t, err)

	plan, err := Plan(g, "all")
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, plan.Stages[0])
}

func TestPlan_SerialChain(t *testing.T) {
	g, err := NewGraph([]*Task{
		leaf("clean"),
		leaf("styles"),
		leaf("scripts"),
		group("assets", ModeParallel, "styles", "scripts"),
		group("default", ModeSerial, "clean", "assets"),
	})
	require.NoError(t, err)

	plan, err := Plan(g, "default")
	require.NoError(t, err)

	// assets and its own dependencies wait for clean
	assert.Equal(t, [][]string{{"clean"}, {"styles", "scripts"}, {"assets"}, {"default"}}, plan.Stages)
	assert.Equal(t, []string{"clean"}, plan.DependenciesOf("styles"))
}

func TestPlan_SerialChainLeaves(t *testing.T) {
	g, err := NewGraph([]*Task{
		leaf("one"),
		leaf("two"),
		leaf("three"),
		group("seq", ModeSerial, "three", "one", "two"),
	})
	require.NoError(t, err)

	plan, err := Plan(g, "seq")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"three"}, {"one"}, {"two"}, {"seq"}}, plan.Stages)
}

func TestPlan_SerialChainOutsideClosure(t *testing.T) {
	g, err := NewGraph([]*Task{
		leaf("one"),
		leaf("two"),
		group("seq", ModeSerial, "one", "two"),
	})
	require.NoError(t, err)

	// planning "two" alone does not pull in the chain ordering
	plan, err := Plan(g, "two")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"two"}}, plan.Stages)
}

func TestPlan_UnknownRoot(t *testing.T) {
	g := scenarioGraph(t)

	plan, err := Plan(g, "deploy")
	assert.Nil(t, plan)
	assert.True(t, stderrors.Is(err, buildErrors.ErrUnknownRoot))

	_, err = PlanSingle(g, "deploy")
	assert.True(t, stderrors.Is(err, buildErrors.ErrUnknownRoot))
}

func TestPlanSingle(t *testing.T) {
	g := scenarioGraph(t)

	plan, err := PlanSingle(g, "serve")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"serve"}}, plan.Stages)
	assert.Empty(t, plan.DependenciesOf("serve"))
}

func TestPlanSingle_GroupRunsMembers(t *testing.T) {
	g, err := NewGraph([]*Task{
		leaf("clean"),
		leaf("js", "clean"),
		leaf("css"),
		group("assets", ModeParallel, "js", "css"),
	})
	require.NoError(t, err)

	plan, err := PlanSingle(g, "assets")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"clean", "css"}, {"js"}, {"assets"}}, plan.Stages)
}
