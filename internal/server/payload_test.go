package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/loomgrid/internal/workflow"
)

func TestDecodeRequest(t *testing.T) {
	// Socket arguments arrive as generic maps after wire parsing.
	arg := map[string]any{
		"runId": "run-7",
		"workflow": map[string]any{
			"id": "brief",
			"nodes": []any{
				map[string]any{"id": "i1", "kind": "input", "value": "hello"},
				map[string]any{"id": "o1", "kind": "output", "format": "markdown"},
			},
			"edges": []any{
				map[string]any{"from": "i1", "to": "o1"},
			},
		},
		"overrides": map[string]any{"i1": "replaced"},
	}

	req, err := decodeRequest(arg)
	require.NoError(t, err)
	assert.Equal(t, "run-7", req.RunID)
	assert.Equal(t, "brief", req.Workflow.ID)
	assert.Len(t, req.Workflow.Nodes, 2)
	assert.Equal(t, map[string]string{"i1": "replaced"}, req.Overrides)
}

func TestDecodeRequestRejectsWrongShape(t *testing.T) {
	_, err := decodeRequest(map[string]any{"workflow": "not an object"})
	assert.Error(t, err)
}

func TestTranslateBuildsEveryKind(t *testing.T) {
	p := WorkflowPayload{
		ID: "all-kinds",
		Nodes: []NodePayload{
			{ID: "i1", Kind: "input", Value: "seed"},
			{ID: "a1", Kind: "agent", Role: "an editor", Task: "tighten the text", Tier: "fast", Tools: []string{"search"}},
			{ID: "s1", Kind: "skill", Skill: "slide-outline"},
			{ID: "t1", Kind: "external-tool", Integration: "github", Settings: map[string]string{"repo": "acme/site"}},
			{ID: "o1", Kind: "output", Format: "markdown"},
		},
		Edges: []EdgePayload{
			{From: "i1", To: "a1"},
			{From: "a1", To: "s1"},
			{From: "a1", To: "t1"},
			{From: "s1", To: "o1"},
			{From: "t1", To: "o1"},
		},
	}

	w, err := translate(p)
	require.NoError(t, err)
	assert.Equal(t, "all-kinds", w.ID)
	assert.Equal(t, "all-kinds", w.Name)
	require.Len(t, w.Nodes, 5)

	agent := w.Node("a1")
	require.NotNil(t, agent.Agent)
	assert.Equal(t, "an editor", agent.Agent.Role)
	assert.Equal(t, []string{"search"}, agent.Agent.Tools)

	tool := w.Node("t1")
	require.NotNil(t, tool.Tool)
	assert.Equal(t, "github", tool.Tool.Integration)
	assert.Equal(t, map[string]string{"repo": "acme/site"}, tool.Tool.Settings)
}

func TestTranslateRejectsBadGraphs(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		_, err := translate(WorkflowPayload{
			ID:    "w",
			Nodes: []NodePayload{{ID: "x", Kind: "quantum"}},
		})
		assert.ErrorIs(t, err, workflow.ErrBadKind)
	})

	t.Run("edge to unknown node", func(t *testing.T) {
		_, err := translate(WorkflowPayload{
			ID:    "w",
			Nodes: []NodePayload{{ID: "i1", Kind: "input"}},
			Edges: []EdgePayload{{From: "i1", To: "ghost"}},
		})
		assert.ErrorIs(t, err, workflow.ErrUnknownNode)
	})

	t.Run("cycle", func(t *testing.T) {
		_, err := translate(WorkflowPayload{
			ID: "w",
			Nodes: []NodePayload{
				{ID: "a", Kind: "input"},
				{ID: "b", Kind: "input"},
			},
			Edges: []EdgePayload{
				{From: "a", To: "b"},
				{From: "b", To: "a"},
			},
		})
		assert.ErrorIs(t, err, workflow.ErrCycle)
	})
}

func TestRunIDFromArg(t *testing.T) {
	assert.Equal(t, "r1", runIDFromArg([]any{"r1"}))
	assert.Equal(t, "r2", runIDFromArg([]any{map[string]any{"runId": "r2"}}))
	assert.Empty(t, runIDFromArg(nil))
	assert.Empty(t, runIDFromArg([]any{42}))
}

func TestPayloadFromWorkflowRoundTrips(t *testing.T) {
	w := &workflow.Workflow{
		ID:   "round",
		Name: "round",
		Nodes: []workflow.Node{
			{ID: "i1", Kind: workflow.KindInput, Input: &workflow.InputConfig{Value: "seed"}},
			{ID: "a1", Kind: workflow.KindAgent, Agent: &workflow.AgentConfig{Role: "a critic", Task: "review", Tier: "powerful"}},
			{ID: "o1", Kind: workflow.KindOutput, Output: &workflow.OutputConfig{Format: "markdown"}},
		},
		Edges: []workflow.Edge{
			{From: "i1", To: "a1"},
			{From: "a1", To: "o1"},
		},
	}

	back, err := translate(PayloadFromWorkflow(w))
	require.NoError(t, err)
	assert.Equal(t, w, back)
}
