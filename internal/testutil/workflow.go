package testutil

import (
	"context"
	"io"
	"log/slog"

	"github.com/vk/loomgrid/internal/ctxlog"
	"github.com/vk/loomgrid/internal/workflow"
)

// QuietContext returns a context carrying a logger that discards output,
// so tests exercise logging paths without noisy output.
func QuietContext() context.Context {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

// InputNode builds an input node with a literal value.
func InputNode(id, value string) workflow.Node {
	return workflow.Node{ID: id, Kind: workflow.KindInput, Input: &workflow.InputConfig{Value: value}}
}

// AgentNode builds an agent node with a task description.
func AgentNode(id, task string) workflow.Node {
	return workflow.Node{ID: id, Kind: workflow.KindAgent, Agent: &workflow.AgentConfig{Task: task}}
}

// SkillNode builds a skill node.
func SkillNode(id, skill string) workflow.Node {
	return workflow.Node{ID: id, Kind: workflow.KindSkill, Skill: &workflow.SkillConfig{Skill: skill}}
}

// ToolNode builds an external-tool node.
func ToolNode(id, integration string) workflow.Node {
	return workflow.Node{ID: id, Kind: workflow.KindTool, Tool: &workflow.ToolConfig{Integration: integration}}
}

// OutputNode builds an output node rendering markdown.
func OutputNode(id string) workflow.Node {
	return workflow.Node{ID: id, Kind: workflow.KindOutput, Output: &workflow.OutputConfig{Format: "markdown"}}
}

// Linear builds a workflow chaining the given nodes with one edge between
// each consecutive pair.
func Linear(id string, nodes ...workflow.Node) *workflow.Workflow {
	w := &workflow.Workflow{ID: id, Name: id, Nodes: nodes}
	for i := 1; i < len(nodes); i++ {
		w.Edges = append(w.Edges, workflow.Edge{From: nodes[i-1].ID, To: nodes[i].ID})
	}
	return w
}
