// Package engine drives one workflow run: it validates and orders the
// graph, walks the order dispatching each node, records outcomes, and
// emits progress events.
//
// Two walk modes share the same semantics. The default is a sequential
// walk of the precomputed topological order. With Options.Workers > 1 the
// engine switches to a live variant of Kahn's algorithm: every node whose
// in-degree reaches zero is fed to a bounded worker pool, so independent
// branches execute concurrently while dependency order still holds.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vk/loomgrid/internal/ctxlog"
	"github.com/vk/loomgrid/internal/dispatch"
	"github.com/vk/loomgrid/internal/event"
	"github.com/vk/loomgrid/internal/result"
	"github.com/vk/loomgrid/internal/workflow"
)

// Options are the per-run knobs.
type Options struct {
	// RunID identifies the run to observers; generated when empty.
	RunID string
	// OutDir receives artifacts. Empty means the current directory.
	OutDir string
	// Overrides supply runtime values for input nodes by node id.
	Overrides map[string]string
	// Workers > 1 enables the pooled executor.
	Workers int
	// FailFast stops dispatching after the first node failure. The default
	// is to continue: downstream nodes simply receive less upstream text.
	FailFast bool
	// CallTimeout bounds each completion-service call; 0 means unbounded.
	CallTimeout time.Duration
}

// Engine executes workflows. One Engine may serve many runs; all per-run
// state lives in the run's own store and environment.
type Engine struct {
	registry *dispatch.Registry
	sink     event.Sink
}

// New builds an engine around a dispatcher and an event sink.
func New(registry *dispatch.Registry, sink event.Sink) *Engine {
	return &Engine{registry: registry, sink: sink}
}

// Run executes the workflow once and returns the run's result store.
//
// Validation errors (malformed graph, cycle) abort before any node
// executes and return a nil store. Node failures never abort the run
// unless FailFast is set; the terminal event always fires and callers
// determine overall success by scanning the store.
func (e *Engine) Run(ctx context.Context, w *workflow.Workflow, opts Options) (*result.Store, error) {
	logger := ctxlog.FromContext(ctx)
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With("runID", runID, "workflowID", w.ID)
	ctx = ctxlog.WithLogger(ctx, logger)

	if err := w.Validate(); err != nil {
		e.emit(ctx, event.Event{Type: event.RunError, RunID: runID, WorkflowID: w.ID, Err: err.Error()})
		return nil, err
	}
	order, err := w.Order()
	if err != nil {
		e.emit(ctx, event.Event{Type: event.RunError, RunID: runID, WorkflowID: w.ID, Err: err.Error()})
		return nil, err
	}

	env := &dispatch.RunEnv{
		Workflow:    w,
		Results:     result.NewStore(),
		Overrides:   opts.Overrides,
		OutDir:      opts.OutDir,
		CallTimeout: opts.CallTimeout,
	}

	e.emit(ctx, event.Event{Type: event.RunStarted, RunID: runID, WorkflowID: w.ID})
	e.emit(ctx, event.Event{Type: event.RunLog, RunID: runID, WorkflowID: w.ID,
		Message: fmt.Sprintf("🚀 Starting workflow run: %d nodes, %d edges.", len(w.Nodes), len(w.Edges))})

	if opts.Workers > 1 {
		e.runPooled(ctx, w, env, runID, opts)
	} else {
		e.runSequential(ctx, w, order, env, runID, opts)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Warn("Run canceled before all nodes were dispatched.", "recorded", len(env.Results.Entries()))
		e.emit(ctx, event.Event{Type: event.RunError, RunID: runID, WorkflowID: w.ID, Err: ctxErr.Error()})
		return env.Results, nil
	}

	failed := len(env.Results.Failed())
	e.emit(ctx, event.Event{Type: event.RunLog, RunID: runID, WorkflowID: w.ID,
		Message: fmt.Sprintf("🏁 Run finished: %d nodes executed, %d failed.", len(env.Results.Entries()), failed)})
	e.emit(ctx, event.Event{Type: event.RunCompleted, RunID: runID, WorkflowID: w.ID})
	return env.Results, nil
}

// runSequential walks the precomputed order one node at a time.
func (e *Engine) runSequential(ctx context.Context, w *workflow.Workflow, order []string, env *dispatch.RunEnv, runID string, opts Options) {
	for _, id := range order {
		if ctx.Err() != nil {
			return
		}
		if !e.executeNode(ctx, w.Node(id), env, runID) && opts.FailFast {
			return
		}
	}
}

// runPooled is the live ready-queue scheduler: nodes enter the queue the
// moment their last producer finishes, and a fixed pool of workers drains
// it. Failed producers still release their dependents, matching the
// continue-on-failure policy of the sequential walk.
func (e *Engine) runPooled(ctx context.Context, w *workflow.Workflow, env *dispatch.RunEnv, runID string, opts Options) {
	indeg := make(map[string]*atomic.Int32, len(w.Nodes))
	for _, n := range w.Nodes {
		indeg[n.ID] = &atomic.Int32{}
	}
	for _, edge := range w.Edges {
		indeg[edge.To].Add(1)
	}

	ready := make(chan string, len(w.Nodes))
	for _, id := range w.Roots() {
		ready <- id
	}

	// The internal cancel implements fail-fast without leaking into the
	// caller's context.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(len(w.Nodes))

	worker := func(workerID int) {
		logger := ctxlog.FromContext(runCtx)
		for id := range ready {
			// After cancellation the queue still drains so every node
			// releases its dependents and the wait group reaches zero,
			// but nothing more is dispatched.
			if runCtx.Err() == nil {
				logger.Debug("Worker picked up node.", "workerID", workerID, "nodeID", id)
				if !e.executeNode(runCtx, w.Node(id), env, runID) && opts.FailFast {
					cancel()
				}
			}
			for _, succ := range w.Successors(id) {
				if indeg[succ].Add(-1) == 0 {
					ready <- succ
				}
			}
			wg.Done()
		}
	}
	for i := 0; i < opts.Workers; i++ {
		go worker(i)
	}

	wg.Wait()
	close(ready)
}

// executeNode dispatches one node, records its entry, and emits its
// status transitions. It reports whether the node succeeded.
func (e *Engine) executeNode(ctx context.Context, node *workflow.Node, env *dispatch.RunEnv, runID string) bool {
	logger := ctxlog.FromContext(ctx)
	e.emit(ctx, event.Event{Type: event.RunLog, RunID: runID, NodeID: node.ID,
		Message: fmt.Sprintf("▶️ Starting node %s (%s).", node.ID, string(node.Kind))})
	e.emit(ctx, event.Event{Type: event.NodeStatus, RunID: runID, NodeID: node.ID, Status: event.StatusRunning, Progress: 0})

	entry := e.registry.Dispatch(ctx, env, node)
	if err := env.Results.Put(entry); err != nil {
		logger.Error("Result store rejected entry.", "nodeID", node.ID, "error", err)
	}

	if !entry.OK {
		logger.Error("Node failed.", "nodeID", node.ID, "error", entry.Err)
		e.emit(ctx, event.Event{Type: event.NodeStatus, RunID: runID, NodeID: node.ID, Status: event.StatusError, Err: entry.Err})
		return false
	}

	e.emit(ctx, event.Event{Type: event.RunLog, RunID: runID, NodeID: node.ID,
		Message: fmt.Sprintf("✅ Finished node %s.", node.ID)})
	e.emit(ctx, event.Event{Type: event.NodeStatus, RunID: runID, NodeID: node.ID, Status: event.StatusCompleted, Progress: 100, Result: entry.Output})
	return true
}

func (e *Engine) emit(ctx context.Context, ev event.Event) {
	ev.At = time.Now().UTC()
	e.sink.Emit(ctx, ev)
}
