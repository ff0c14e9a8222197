package dag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanVisualization_GeneratePlanInfo(t *testing.T) {
	g := scenarioGraph(t)
	plan, err := Plan(g, "serve")
	require.NoError(t, err)

	info := NewPlanVisualization(g, plan, nil).GeneratePlanInfo()

	assert.Equal(t, "serve", info.Root)
	assert.Len(t, info.Nodes, 4)
	assert.Equal(t, 4, info.Stats.TotalNodes)
	assert.Equal(t, 4, info.Stats.PendingNodes)
	assert.Empty(t, info.Stats.TotalDuration)
	assert.Contains(t, info.Edges, EdgeInfo{From: "clean", To: "compile"})
	assert.Contains(t, info.Edges, EdgeInfo{From: "bundle", To: "serve"})
	assert.Len(t, info.Edges, 4)

	assert.Equal(t, "clean", info.Nodes[0].ID)
	assert.Equal(t, "leaf-action", info.Nodes[0].Mode)
	assert.Equal(t, 2, info.Nodes[3].Stage)
}

func TestPlanVisualization_WithResult(t *testing.T) {
	g, err := NewGraph([]*Task{
		leaf("ok"),
		{Name: "bad", Mode: ModeLeaf, Action: func(context.Context) error { return fmt.Errorf("exploded") }},
		leaf("after", "bad"),
		group("all", ModeParallel, "ok", "after"),
	})
	require.NoError(t, err)
	plan, err := Plan(g, "all")
	require.NoError(t, err)

	result, _ := NewExecutor(g, &ExecutorConfig{KeepGoing: true}).Execute(context.Background(), plan)

	viz := NewPlanVisualization(g, plan, result)
	info := viz.GeneratePlanInfo()
	assert.Equal(t, 1, info.Stats.CompletedNodes)
	assert.Equal(t, 1, info.Stats.FailedNodes)
	assert.Equal(t, 2, info.Stats.SkippedNodes)
	assert.NotEmpty(t, info.Stats.TotalDuration)

	summary := viz.GenerateTextSummary()
	assert.Contains(t, summary, "Plan for all: 4 tasks in 3 stages")
	assert.Contains(t, summary, "bad (leaf-action) [failed]")
	assert.Contains(t, summary, "Error: exploded")
	assert.Contains(t, summary, "Skipped: 2")
}

func TestPlanVisualization_JSON(t *testing.T) {
	g := scenarioGraph(t)
	plan, err := Plan(g, "serve")
	require.NoError(t, err)

	data, err := NewPlanVisualization(g, plan, nil).JSON()
	require.NoError(t, err)

	var decoded struct {
		Root   string     `json:"root"`
		Stages [][]string `json:"stages"`
		Nodes  []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, [][]string{{"clean"}, {"compile", "bundle"}, {"serve"}}, decoded.Stages)
	assert.Equal(t, "pending", decoded.Nodes[0].Status)
}

func TestPlanVisualization_DOT(t *testing.T) {
	g := scenarioGraph(t)
	plan, err := Plan(g, "serve")
	require.NoError(t, err)

	dot := NewPlanVisualization(g, plan, nil).GenerateDOTGraph()

	assert.True(t, strings.HasPrefix(dot, "digraph BuildPlan {"))
	assert.Contains(t, dot, "subgraph cluster_stage_0")
	assert.Contains(t, dot, "subgraph cluster_stage_2")
	assert.Contains(t, dot, `"compile" -> "serve";`)
	assert.True(t, strings.HasSuffix(dot, "}\n"))
}

func TestPlanVisualization_Export(t *testing.T) {
	g := scenarioGraph(t)
	plan, err := Plan(g, "serve")
	require.NoError(t, err)
	viz := NewPlanVisualization(g, plan, nil)

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "plan.json")
	dotPath := filepath.Join(dir, "plan.dot")

	require.NoError(t, viz.ExportToJSON(jsonPath))
	require.NoError(t, viz.ExportToDOT(dotPath))

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"root": "serve"`)

	data, err = os.ReadFile(dotPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph BuildPlan")
}
