package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/loomgrid/internal/completion"
	"github.com/vk/loomgrid/internal/ctxlog"
	"github.com/vk/loomgrid/internal/result"
	"github.com/vk/loomgrid/internal/workflow"
)

const defaultAgentSystem = "You are a capable assistant executing one step of a larger workflow. " +
	"Use the provided context to complete your task, and reply with the task output only."

// agentStrategy turns an agent node into a single completion exchange: a
// role-derived or explicit system preamble, plus a user message built from
// the upstream results and the node's own task.
type agentStrategy struct {
	client completion.Client
}

func (s *agentStrategy) Execute(ctx context.Context, env *RunEnv, node *workflow.Node) result.Entry {
	cfg := node.Agent
	if cfg == nil {
		return failed(node, "agent node %s has no agent configuration", node.ID)
	}

	system := cfg.System
	if system == "" {
		if cfg.Role != "" {
			system = fmt.Sprintf("You are acting as %s, executing one step of a larger workflow. "+
				"Use the provided context to complete your task, and reply with the task output only.", cfg.Role)
		} else {
			system = defaultAgentSystem
		}
	}
	if len(cfg.Tools) > 0 {
		system += "\n\nYou have access to the following tools: " + strings.Join(cfg.Tools, ", ") + "."
	}

	var parts []string
	if up := env.Results.Upstream(env.Workflow, node.ID); up != "" {
		parts = append(parts, up)
	}
	if cfg.Task != "" {
		parts = append(parts, cfg.Task)
	}
	message := strings.Join(parts, result.Separator)
	if message == "" {
		return failed(node, "agent node %s has neither upstream context nor a task", node.ID)
	}

	callCtx, cancel := env.callCtx(ctx)
	defer cancel()

	ctxlog.FromContext(ctx).Debug("Agent calling completion service.", "nodeID", node.ID, "tier", cfg.Tier)
	text, err := s.client.Complete(callCtx, completion.Request{
		System:  system,
		Message: message,
		Tier:    completion.ParseTier(cfg.Tier),
	})
	if err != nil {
		// Delivered verbatim; the observer sees the service's own words.
		return failed(node, "%s", err.Error())
	}
	return succeeded(node, text)
}
