// Package dispatch maps a node's kind to its execution strategy and
// produces exactly one result entry per node.
//
// Strategies never return Go errors to the coordinator: anything that goes
// wrong while executing a node becomes a failed entry, so one node's
// failure stays that node's problem. Kind-specific payload validation also
// lives here, not in the graph model.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/loomgrid/internal/completion"
	"github.com/vk/loomgrid/internal/result"
	"github.com/vk/loomgrid/internal/workflow"
)

// RunEnv is the per-run environment a strategy executes against. It is
// assembled by the coordinator and shared by all nodes of one run.
type RunEnv struct {
	Workflow *workflow.Workflow
	Results  *result.Store
	// Overrides maps input-node id to a runtime-supplied value that wins
	// over the node's literal default.
	Overrides map[string]string
	// OutDir receives artifacts produced by skill and output nodes.
	OutDir string
	// CallTimeout bounds each completion-service call; 0 means unbounded.
	CallTimeout time.Duration
}

// callCtx derives the context a completion call runs under.
func (env *RunEnv) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if env.CallTimeout > 0 {
		return context.WithTimeout(ctx, env.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// Strategy executes one node against the run environment. The returned
// entry's NodeID must match the node's.
type Strategy interface {
	Execute(ctx context.Context, env *RunEnv, node *workflow.Node) result.Entry
}

// Registry maps node kinds to strategies.
type Registry struct {
	strategies map[workflow.Kind]Strategy
}

// NewRegistry wires the five built-in strategies around one completion
// client.
func NewRegistry(client completion.Client) *Registry {
	r := &Registry{strategies: make(map[workflow.Kind]Strategy)}
	r.Register(workflow.KindInput, &inputStrategy{})
	r.Register(workflow.KindAgent, &agentStrategy{client: client})
	r.Register(workflow.KindSkill, &skillStrategy{client: client})
	r.Register(workflow.KindTool, &toolStrategy{client: client})
	r.Register(workflow.KindOutput, &outputStrategy{})
	return r
}

// Register installs or replaces the strategy for a kind.
func (r *Registry) Register(kind workflow.Kind, s Strategy) {
	r.strategies[kind] = s
}

// Dispatch runs the node through its kind's strategy. An unregistered
// kind yields a failed entry rather than a panic; validation should have
// caught it earlier.
func (r *Registry) Dispatch(ctx context.Context, env *RunEnv, node *workflow.Node) result.Entry {
	s, ok := r.strategies[node.Kind]
	if !ok {
		return failed(node, "no strategy registered for kind %q", string(node.Kind))
	}
	return s.Execute(ctx, env, node)
}

// ok builds a successful entry.
func succeeded(node *workflow.Node, output string, artifacts ...result.Artifact) result.Entry {
	return result.Entry{NodeID: node.ID, OK: true, Output: output, Artifacts: artifacts}
}

// failed builds a failed entry with a formatted reason.
func failed(node *workflow.Node, format string, args ...any) result.Entry {
	return result.Entry{NodeID: node.ID, Err: fmt.Sprintf(format, args...)}
}
