package dispatch

import (
	"context"

	"github.com/vk/loomgrid/internal/result"
	"github.com/vk/loomgrid/internal/workflow"
)

// inputStrategy resolves an input node's value: runtime override first,
// then the configured literal, then empty string. It never fails.
type inputStrategy struct{}

func (inputStrategy) Execute(_ context.Context, env *RunEnv, node *workflow.Node) result.Entry {
	if v, ok := env.Overrides[node.ID]; ok {
		return succeeded(node, v)
	}
	if node.Input != nil {
		return succeeded(node, node.Input.Value)
	}
	return succeeded(node, "")
}
