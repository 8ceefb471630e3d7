package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vk/loomgrid/internal/ctxlog"
	"github.com/vk/loomgrid/internal/result"
	"github.com/vk/loomgrid/internal/workflow"
)

// outputStrategy assembles the run's final report: the concatenated
// upstream results plus a manifest of every artifact produced anywhere in
// the run, written to the output directory. It performs no completion
// call and always reports success; a summary that cannot be written is
// still returned in memory so a disk problem never fails the run.
type outputStrategy struct{}

func (outputStrategy) Execute(ctx context.Context, env *RunEnv, node *workflow.Node) result.Entry {
	combined := env.Results.Upstream(env.Workflow, node.ID)

	format := "markdown"
	if node.Output != nil && node.Output.Format != "" {
		format = node.Output.Format
	}

	summary := renderSummary(env, node, combined)
	path, err := writeArtifact(env.OutDir, node.ID+"-summary.md", summary)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to write summary artifact, returning in-memory result.", "nodeID", node.ID, "error", err)
		return succeeded(node, combined)
	}
	return succeeded(node, combined, result.Artifact{
		Path: path,
		Type: format,
		Name: fmt.Sprintf("Workflow summary (%s)", node.ID),
	})
}

// renderSummary produces the human-readable report persisted by an output
// node.
func renderSummary(env *RunEnv, node *workflow.Node, combined string) string {
	var b strings.Builder
	title := env.Workflow.Name
	if title == "" {
		title = env.Workflow.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Generated %s\n\n", time.Now().UTC().Format(time.RFC3339))

	if combined != "" {
		b.WriteString("## Results\n\n")
		b.WriteString(combined)
		b.WriteString("\n\n")
	} else {
		b.WriteString("## Results\n\nNo upstream node produced output.\n\n")
	}

	if failures := env.Results.Failed(); len(failures) > 0 {
		b.WriteString("## Failures\n\n")
		for _, e := range failures {
			fmt.Fprintf(&b, "- %s: %s\n", e.NodeID, e.Err)
		}
		b.WriteString("\n")
	}

	if artifacts := env.Results.Artifacts(); len(artifacts) > 0 {
		b.WriteString("## Artifacts\n\n")
		for _, a := range artifacts {
			fmt.Fprintf(&b, "- %s (%s): %s\n", a.Name, a.Type, a.Path)
		}
	}
	return b.String()
}
