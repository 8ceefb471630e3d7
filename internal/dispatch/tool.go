package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/loomgrid/internal/completion"
	"github.com/vk/loomgrid/internal/result"
	"github.com/vk/loomgrid/internal/workflow"
)

// toolStrategy handles external-tool nodes. It does not call the named
// integration: it builds a descriptive prompt and asks the completion
// service to simulate the interaction. Callers needing real integration
// calls replace this strategy via Registry.Register.
type toolStrategy struct {
	client completion.Client
}

func (s *toolStrategy) Execute(ctx context.Context, env *RunEnv, node *workflow.Node) result.Entry {
	cfg := node.Tool
	if cfg == nil || cfg.Integration == "" {
		return failed(node, "external-tool node %s does not name an integration", node.ID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Simulate one invocation of the %q integration", cfg.Integration)
	if len(cfg.Settings) > 0 {
		b.WriteString(", configured with:\n")
		keys := make([]string, 0, len(cfg.Settings))
		for k := range cfg.Settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, cfg.Settings[k])
		}
	} else {
		b.WriteString(" with its default configuration.\n")
	}
	if up := env.Results.Upstream(env.Workflow, node.ID); up != "" {
		b.WriteString("\nInput passed to the integration:\n")
		b.WriteString(up)
	}
	b.WriteString("\nDescribe the realistic outcome of this invocation, including the data it would return.")

	callCtx, cancel := env.callCtx(ctx)
	defer cancel()

	text, err := s.client.Complete(callCtx, completion.Request{
		System: "You simulate external tool integrations for a workflow engine. " +
			"Respond with a plausible, concrete result of the described invocation.",
		Message: b.String(),
		Tier:    completion.TierFast,
	})
	if err != nil {
		return failed(node, "%s", err.Error())
	}
	return succeeded(node, text)
}
