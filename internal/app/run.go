package app

import (
	"context"
	"fmt"

	"github.com/vk/loomgrid/internal/ctxlog"
	"github.com/vk/loomgrid/internal/engine"
	"github.com/vk/loomgrid/internal/hclconf"
	"github.com/vk/loomgrid/internal/server"
)

// Run executes the main application logic. In server mode it blocks until
// the context is cancelled; otherwise it loads the workflow, runs it once
// and reports the outcome.
func (a *App) Run(ctx context.Context) error {
	ctx = a.context(ctx)
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer(ctx)
	defer a.closeHealthCheckServer(ctx)

	if a.config.ServePort > 0 {
		srv := server.New(a.registry, server.Options{
			Port:        a.config.ServePort,
			OutDir:      a.config.OutDir,
			Workers:     a.config.Workers,
			FailFast:    a.config.FailFast,
			CallTimeout: a.config.CallTimeout,
		})
		return srv.Run(ctx)
	}

	return a.runWorkflow(ctx)
}

// runWorkflow loads the configured workflow and drives a single run.
func (a *App) runWorkflow(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	def, err := hclconf.NewLoader().Load(ctx, a.config.WorkflowPath)
	if err != nil {
		return fmt.Errorf("failed to load workflow: %w", err)
	}
	logger.Debug("Workflow loaded.", "workflowID", def.Workflow.ID, "nodes", len(def.Workflow.Nodes))

	outDir := a.config.OutDir
	if outDir == "" {
		outDir = def.OutDir
	}

	store, err := a.engine.Run(ctx, def.Workflow, engine.Options{
		OutDir:      outDir,
		Overrides:   a.config.Overrides,
		Workers:     a.config.Workers,
		FailFast:    a.config.FailFast,
		CallTimeout: a.config.CallTimeout,
	})
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	if failed := store.Failed(); len(failed) > 0 {
		ids := make([]string, len(failed))
		for i, entry := range failed {
			ids[i] = entry.NodeID
		}
		logger.Warn("⚠️ Run completed with failures.", "failedNodes", ids)
		return fmt.Errorf("run completed with %d failed node(s)", len(failed))
	}

	logger.Debug("App.Run method finished.")
	return nil
}
