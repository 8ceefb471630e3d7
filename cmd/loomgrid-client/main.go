// Command loomgrid-client submits a local workflow file to a running
// loomgrid socket server and streams the run's events until it finishes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/loomgrid/internal/ctxlog"
	"github.com/vk/loomgrid/internal/event"
	"github.com/vk/loomgrid/internal/hclconf"
	"github.com/vk/loomgrid/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := flag.NewFlagSet("loomgrid-client", flag.ContinueOnError)
	serverFlag := flagSet.String("server", "http://localhost:8080", "Base URL of the loomgrid socket server.")
	runIDFlag := flagSet.String("run-id", "", "Run id to request. Generated by the server when empty.")
	timeoutFlag := flagSet.Duration("timeout", 10*time.Minute, "Give up if the run has not finished after this long.")
	verboseFlag := flagSet.Bool("v", false, "Enable debug logging.")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("usage: loomgrid-client [options] WORKFLOW_PATH")
	}

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeoutFlag)
	defer cancel()

	def, err := hclconf.NewLoader().Load(ctx, flagSet.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to load workflow: %w", err)
	}

	req := server.RunRequest{
		RunID:    *runIDFlag,
		Workflow: server.PayloadFromWorkflow(def.Workflow),
		OutDir:   def.OutDir,
	}

	return submit(ctx, logger, *serverFlag, req)
}

// outcome carries the terminal state back from the event handlers.
type outcome struct {
	failed bool
	reason string
}

// submit connects to the server, emits the run request and drains events
// until the run reaches a terminal state.
func submit(ctx context.Context, logger *slog.Logger, serverURL string, req server.RunRequest) error {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("failed to parse server URL: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket("/", opts)
	defer io.Disconnect()

	done := make(chan outcome, 1)
	finish := func(o outcome) {
		select {
		case done <- o:
		default:
		}
	}

	io.On(types.EventName("connect"), func(...any) {
		logger.Info("Connected, submitting run.", "server", baseURL, "workflowID", req.Workflow.ID)
		io.Emit("run:submit", req)
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		finish(outcome{failed: true, reason: fmt.Sprintf("connection failed: %v", errs[0])})
	})

	io.On(types.EventName("run:accepted"), func(args ...any) {
		logger.Info("Run accepted.", "reply", args[0])
	})

	io.On(types.EventName("run:rejected"), func(args ...any) {
		finish(outcome{failed: true, reason: fmt.Sprintf("run rejected: %v", args[0])})
	})

	io.On(types.EventName("run:event"), func(args ...any) {
		e, err := decodeEvent(args)
		if err != nil {
			logger.Warn("Skipping undecodable event.", "error", err)
			return
		}
		printEvent(logger, e)
		switch e.Type {
		case event.RunCompleted:
			finish(outcome{})
		case event.RunError:
			finish(outcome{failed: true, reason: e.Err})
		}
	})

	io.Connect()

	select {
	case <-ctx.Done():
		return fmt.Errorf("gave up waiting for the run: %w", ctx.Err())
	case o := <-done:
		if o.failed {
			return fmt.Errorf("%s", o.reason)
		}
		logger.Info("Run finished.")
		return nil
	}
}

// decodeEvent rebuilds the typed event from the generic wire value.
func decodeEvent(args []any) (event.Event, error) {
	var e event.Event
	if len(args) == 0 {
		return e, fmt.Errorf("empty event")
	}
	raw, err := json.Marshal(args[0])
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, err
	}
	return e, nil
}

func printEvent(logger *slog.Logger, e event.Event) {
	switch e.Type {
	case event.NodeStatus:
		if e.Status == event.StatusError {
			logger.Error("Node failed.", "nodeID", e.NodeID, "error", e.Err)
			return
		}
		logger.Info("Node status.", "nodeID", e.NodeID, "status", string(e.Status), "progress", e.Progress)
		if e.Result != "" {
			fmt.Println(strings.TrimRight(e.Result, "\n"))
		}
	case event.RunError:
		logger.Error("Run failed.", "error", e.Err)
	case event.RunLog:
		logger.Info(e.Message)
	default:
		logger.Info("Run event.", "type", string(e.Type))
	}
}
