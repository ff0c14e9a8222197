package dag

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// PlanVisualization renders an execution plan, optionally annotated with
// the outcome of a run
type PlanVisualization struct {
	graph  *Graph
	plan   *ExecutionPlan
	result *ExecutionResult
}

// NewPlanVisualization creates a new visualization helper. result may be nil.
func NewPlanVisualization(graph *Graph, plan *ExecutionPlan, result *ExecutionResult) *PlanVisualization {
	return &PlanVisualization{
		graph:  graph,
		plan:   plan,
		result: result,
	}
}

// NodeInfo contains information about a planned task
type NodeInfo struct {
	ID          string     `json:"id"`
	Mode        string     `json:"mode"`
	Stage       int        `json:"stage"`
	Description string     `json:"description,omitempty"`
	BestEffort  bool       `json:"bestEffort,omitempty"`
	Status      NodeStatus `json:"status"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// EdgeInfo points from a dependency to the task waiting on it
type EdgeInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PlanInfo contains the full plan structure for visualization
type PlanInfo struct {
	Root   string     `json:"root"`
	Stages [][]string `json:"stages"`
	Nodes  []NodeInfo `json:"nodes"`
	Edges  []EdgeInfo `json:"edges"`
	Stats  PlanStats  `json:"stats"`
}

// PlanStats contains counts per status
type PlanStats struct {
	TotalNodes     int    `json:"totalNodes"`
	CompletedNodes int    `json:"completedNodes"`
	FailedNodes    int    `json:"failedNodes"`
	SkippedNodes   int    `json:"skippedNodes"`
	CancelledNodes int    `json:"cancelledNodes"`
	PendingNodes   int    `json:"pendingNodes"`
	TotalDuration  string `json:"totalDuration,omitempty"`
}

// GeneratePlanInfo builds the serialisable representation of the plan
func (v *PlanVisualization) GeneratePlanInfo() *PlanInfo {
	info := &PlanInfo{
		Root:   v.plan.Root,
		Stages: v.plan.Stages,
		Nodes:  make([]NodeInfo, 0, v.plan.Size()),
		Edges:  []EdgeInfo{},
	}

	for _, id := range v.plan.Tasks() {
		task, _ := v.graph.Task(id)
		node := NodeInfo{
			ID:          id,
			Mode:        task.Mode.String(),
			Stage:       v.plan.StageOf(id),
			Description: task.Description,
			BestEffort:  task.BestEffort,
			Status:      StatusPending,
		}

		if v.result != nil {
			if r, ok := v.result.Tasks[id]; ok {
				node.Status = r.Status
				node.StartTime = r.StartTime
				node.EndTime = r.EndTime
				if r.StartTime != nil && r.EndTime != nil {
					node.Duration = r.Duration.Round(time.Millisecond).String()
				}
				if r.Error != nil {
					node.Error = r.Error.Error()
				}
			}
		}

		switch node.Status {
		case StatusCompleted:
			info.Stats.CompletedNodes++
		case StatusFailed:
			info.Stats.FailedNodes++
		case StatusSkipped:
			info.Stats.SkippedNodes++
		case StatusCancelled:
			info.Stats.CancelledNodes++
		case StatusPending:
			info.Stats.PendingNodes++
		}
		info.Nodes = append(info.Nodes, node)

		for _, dep := range v.plan.DependenciesOf(id) {
			info.Edges = append(info.Edges, EdgeInfo{From: dep, To: id})
		}
	}

	info.Stats.TotalNodes = len(info.Nodes)
	if v.result != nil {
		info.Stats.TotalDuration = v.result.ExecutionTime.Round(time.Millisecond).String()
	}
	return info
}

// JSON returns the indented JSON form of the plan
func (v *PlanVisualization) JSON() ([]byte, error) {
	return json.MarshalIndent(v.GeneratePlanInfo(), "", "  ")
}

// ExportToJSON exports the plan to a JSON file
func (v *PlanVisualization) ExportToJSON(filename string) error {
	data, err := v.JSON()
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// GenerateDOTGraph creates a DOT format graph for Graphviz with one cluster per stage
func (v *PlanVisualization) GenerateDOTGraph() string {
	info := v.GeneratePlanInfo()

	var sb strings.Builder
	sb.WriteString("digraph BuildPlan {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=filled];\n")
	sb.WriteString(fmt.Sprintf("  label=\"Build plan for %s\";\n", info.Root))
	sb.WriteString("  labelloc=\"t\";\n\n")

	byID := make(map[string]NodeInfo, len(info.Nodes))
	for _, n := range info.Nodes {
		byID[n.ID] = n
	}

	for i, stage := range info.Stages {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_stage_%d {\n", i))
		sb.WriteString(fmt.Sprintf("    label=\"stage %d\";\n", i))
		sb.WriteString("    style=dashed;\n")
		for _, id := range stage {
			node := byID[id]
			label := fmt.Sprintf("%s\\n%s", node.ID, node.Mode)
			if node.Duration != "" {
				label += fmt.Sprintf("\\n%s", node.Duration)
			}
			if node.Error != "" {
				errorMsg := node.Error
				if len(errorMsg) > 50 {
					errorMsg = errorMsg[:47] + "..."
				}
				label += fmt.Sprintf("\\nError: %s", strings.ReplaceAll(errorMsg, "\"", "'"))
			}
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"%s\"];\n", node.ID, label, statusColor(node.Status)))
		}
		sb.WriteString("  }\n")
	}

	sb.WriteString("\n")
	for _, edge := range info.Edges {
		sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", edge.From, edge.To))
	}
	sb.WriteString("}\n")

	return sb.String()
}

func statusColor(s NodeStatus) string {
	switch s {
	case StatusRunning:
		return "lightblue"
	case StatusCompleted:
		return "lightgreen"
	case StatusFailed:
		return "salmon"
	case StatusSkipped:
		return "khaki"
	case StatusCancelled:
		return "orange"
	default:
		return "lightgrey"
	}
}

// ExportToDOT exports the plan to a DOT file
func (v *PlanVisualization) ExportToDOT(filename string) error {
	return os.WriteFile(filename, []byte(v.GenerateDOTGraph()), 0644)
}

// GenerateTextSummary creates a human-readable listing of the stages
func (v *PlanVisualization) GenerateTextSummary() string {
	info := v.GeneratePlanInfo()

	byID := make(map[string]NodeInfo, len(info.Nodes))
	for _, n := range info.Nodes {
		byID[n.ID] = n
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Plan for %s: %d tasks in %d stages\n", info.Root, info.Stats.TotalNodes, len(info.Stages)))

	for i, stage := range info.Stages {
		sb.WriteString(fmt.Sprintf("\nStage %d:\n", i))
		for _, id := range stage {
			node := byID[id]
			sb.WriteString(fmt.Sprintf("  - %s (%s)", node.ID, node.Mode))
			if v.result != nil {
				sb.WriteString(fmt.Sprintf(" [%s]", node.Status))
			}
			if node.Duration != "" {
				sb.WriteString(fmt.Sprintf(" - %s", node.Duration))
			}
			if node.Description != "" {
				sb.WriteString(fmt.Sprintf(": %s", node.Description))
			}
			if node.Error != "" {
				sb.WriteString(fmt.Sprintf(" - Error: %s", node.Error))
			}
			sb.WriteString("\n")
		}
	}

	if v.result != nil {
		sb.WriteString(fmt.Sprintf("\nCompleted: %d  Failed: %d  Skipped: %d  Cancelled: %d  Duration: %s\n",
			info.Stats.CompletedNodes, info.Stats.FailedNodes, info.Stats.SkippedNodes,
			info.Stats.CancelledNodes, info.Stats.TotalDuration))
	}

	return sb.String()
}
