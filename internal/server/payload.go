package server

import (
	"encoding/json"
	"fmt"

	"github.com/vk/loomgrid/internal/workflow"
)

// RunRequest is the wire shape of a "run:submit" message. Both the server
// and the submission client speak this model.
type RunRequest struct {
	RunID     string            `json:"runId"`
	Workflow  WorkflowPayload   `json:"workflow"`
	Overrides map[string]string `json:"overrides,omitempty"`
	OutDir    string            `json:"outDir,omitempty"`
}

type WorkflowPayload struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Nodes []NodePayload `json:"nodes"`
	Edges []EdgePayload `json:"edges"`
}

// NodePayload carries the superset of all kind-specific attributes;
// translation picks the ones matching the declared kind.
type NodePayload struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`

	Value string `json:"value,omitempty"`

	Role   string   `json:"role,omitempty"`
	System string   `json:"system,omitempty"`
	Task   string   `json:"task,omitempty"`
	Tools  []string `json:"tools,omitempty"`
	Tier   string   `json:"tier,omitempty"`

	Skill        string `json:"skill,omitempty"`
	Instructions string `json:"instructions,omitempty"`

	Integration string            `json:"integration,omitempty"`
	Settings    map[string]string `json:"settings,omitempty"`

	Format string `json:"format,omitempty"`
}

type EdgePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PayloadFromWorkflow flattens the workflow model into its wire shape for
// submission over the socket.
func PayloadFromWorkflow(w *workflow.Workflow) WorkflowPayload {
	p := WorkflowPayload{ID: w.ID, Name: w.Name}
	for _, n := range w.Nodes {
		np := NodePayload{ID: n.ID, Kind: string(n.Kind), Name: n.Name}
		switch {
		case n.Input != nil:
			np.Value = n.Input.Value
		case n.Agent != nil:
			np.Role = n.Agent.Role
			np.System = n.Agent.System
			np.Task = n.Agent.Task
			np.Tools = n.Agent.Tools
			np.Tier = n.Agent.Tier
		case n.Skill != nil:
			np.Skill = n.Skill.Skill
			np.Instructions = n.Skill.Instructions
		case n.Tool != nil:
			np.Integration = n.Tool.Integration
			np.Settings = n.Tool.Settings
		case n.Output != nil:
			np.Format = n.Output.Format
		}
		p.Nodes = append(p.Nodes, np)
	}
	for _, e := range w.Edges {
		p.Edges = append(p.Edges, EdgePayload{From: e.From, To: e.To})
	}
	return p
}

// decodeRequest converts a raw socket.io argument into a RunRequest. The
// socket parser hands arguments over as generic maps, so the value takes
// one round trip through json to land in the typed struct.
func decodeRequest(arg any) (*RunRequest, error) {
	raw, err := json.Marshal(arg)
	if err != nil {
		return nil, fmt.Errorf("unreadable run request: %w", err)
	}
	var req RunRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("malformed run request: %w", err)
	}
	return &req, nil
}

// translate turns the wire payload into the validated workflow model.
func translate(p WorkflowPayload) (*workflow.Workflow, error) {
	w := &workflow.Workflow{ID: p.ID, Name: p.Name}
	if w.Name == "" {
		w.Name = w.ID
	}

	for _, np := range p.Nodes {
		node, err := translateNode(np)
		if err != nil {
			return nil, err
		}
		w.Nodes = append(w.Nodes, node)
	}
	for _, ep := range p.Edges {
		w.Edges = append(w.Edges, workflow.Edge{From: ep.From, To: ep.To})
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func translateNode(np NodePayload) (workflow.Node, error) {
	kind := workflow.Kind(np.Kind)
	node := workflow.Node{ID: np.ID, Kind: kind, Name: np.Name}

	switch kind {
	case workflow.KindInput:
		node.Input = &workflow.InputConfig{Value: np.Value}
	case workflow.KindAgent:
		node.Agent = &workflow.AgentConfig{
			Role:   np.Role,
			System: np.System,
			Task:   np.Task,
			Tools:  np.Tools,
			Tier:   np.Tier,
		}
	case workflow.KindSkill:
		node.Skill = &workflow.SkillConfig{
			Skill:        np.Skill,
			Instructions: np.Instructions,
		}
	case workflow.KindTool:
		node.Tool = &workflow.ToolConfig{
			Integration: np.Integration,
			Settings:    np.Settings,
		}
	case workflow.KindOutput:
		node.Output = &workflow.OutputConfig{Format: np.Format}
	default:
		return workflow.Node{}, fmt.Errorf("node %s: %w: %q", np.ID, workflow.ErrBadKind, np.Kind)
	}
	return node, nil
}
