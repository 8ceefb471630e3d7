// Package server exposes the engine over socket.io. Clients submit a
// workflow with "run:submit", receive streamed "run:event" messages for
// the run they own, and may abort with "run:cancel".
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zishang520/socket.io/v2/socket"

	"github.com/vk/loomgrid/internal/ctxlog"
	"github.com/vk/loomgrid/internal/dispatch"
	"github.com/vk/loomgrid/internal/engine"
	"github.com/vk/loomgrid/internal/event"
)

// Options configure the socket server and the defaults it applies to
// every submitted run.
type Options struct {
	Port        int
	OutDir      string
	Workers     int
	FailFast    bool
	CallTimeout time.Duration
}

// Server accepts workflow submissions over socket.io and streams run
// events back to the submitting client.
type Server struct {
	engine *engine.Engine
	opts   Options

	mu   sync.Mutex
	runs map[string]*runState
}

// runState tracks one in-flight run and the client that owns it. Events
// route through a buffered sink so a slow socket never stalls the engine;
// a dedicated goroutine drains the sink into the client.
type runState struct {
	client *socket.Socket
	cancel context.CancelFunc
	sink   *event.ChanSink
}

// New builds a server around the shared strategy registry. The server
// routes each run's events to the client that submitted it, alongside
// the regular log output.
func New(registry *dispatch.Registry, opts Options) *Server {
	s := &Server{
		opts: opts,
		runs: make(map[string]*runState),
	}
	s.engine = engine.New(registry, event.MultiSink{event.LogSink{}, s})
	return s
}

// Emit implements event.Sink by queueing the event for the client that
// submitted the run. Events for unknown runs are dropped.
func (s *Server) Emit(ctx context.Context, e event.Event) {
	s.mu.Lock()
	state, ok := s.runs[e.RunID]
	s.mu.Unlock()
	if !ok {
		return
	}
	state.sink.Emit(ctx, e)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	io := socket.NewServer(nil, nil)
	io.On("connection", func(clients ...any) {
		s.handleConnection(ctx, clients[0].(*socket.Socket))
	})

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", io.ServeHandler(nil))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	addr := fmt.Sprintf(":%d", s.opts.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🔌 Socket server listening.", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("socket server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("🔌 Socket server shutting down.")
	s.cancelAll()
	io.Close(nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// handleConnection wires the per-client message handlers.
func (s *Server) handleConnection(ctx context.Context, client *socket.Socket) {
	logger := ctxlog.FromContext(ctx).With("clientID", client.Id())
	logger.Info("Client connected.")

	client.On("run:submit", func(args ...any) {
		if len(args) == 0 {
			client.Emit("run:rejected", map[string]any{"error": "empty run request"})
			return
		}
		req, err := decodeRequest(args[0])
		if err != nil {
			client.Emit("run:rejected", map[string]any{"error": err.Error()})
			return
		}
		w, err := translate(req.Workflow)
		if err != nil {
			client.Emit("run:rejected", map[string]any{"error": err.Error()})
			return
		}

		runID := req.RunID
		if runID == "" {
			runID = uuid.NewString()
		}

		runCtx, cancel := context.WithCancel(ctx)
		sink := event.NewChanSink(0)
		s.mu.Lock()
		if _, exists := s.runs[runID]; exists {
			s.mu.Unlock()
			cancel()
			client.Emit("run:rejected", map[string]any{"error": fmt.Sprintf("run %s is already in flight", runID)})
			return
		}
		s.runs[runID] = &runState{client: client, cancel: cancel, sink: sink}
		s.mu.Unlock()

		go func() {
			for e := range sink.Events() {
				client.Emit("run:event", e)
			}
		}()

		client.Emit("run:accepted", map[string]any{"runId": runID})
		logger.Info("▶️ Run accepted.", "runID", runID, "workflowID", w.ID)

		outDir := req.OutDir
		if outDir == "" {
			outDir = s.opts.OutDir
		}

		go func() {
			defer s.release(runID)
			_, err := s.engine.Run(runCtx, w, engine.Options{
				RunID:       runID,
				OutDir:      outDir,
				Overrides:   req.Overrides,
				Workers:     s.opts.Workers,
				FailFast:    s.opts.FailFast,
				CallTimeout: s.opts.CallTimeout,
			})
			if err != nil {
				logger.Warn("Run rejected by engine.", "runID", runID, "error", err)
			}
		}()
	})

	client.On("run:cancel", func(args ...any) {
		runID := runIDFromArg(args)
		if runID == "" {
			return
		}
		s.mu.Lock()
		state, ok := s.runs[runID]
		owned := ok && state.client == client
		s.mu.Unlock()
		if !owned {
			return
		}
		logger.Info("Run cancel requested.", "runID", runID)
		state.cancel()
	})

	client.On("disconnect", func(...any) {
		logger.Info("Client disconnected.")
		s.cancelOwnedBy(client)
	})
}

// release drops the run's routing entry, closes its sink so the drain
// goroutine exits, and releases its cancel func.
func (s *Server) release(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.runs[runID]; ok {
		state.cancel()
		state.sink.Close()
		delete(s.runs, runID)
	}
}

func (s *Server) cancelOwnedBy(client *socket.Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, state := range s.runs {
		if state.client == client {
			state.cancel()
		}
	}
}

func (s *Server) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, state := range s.runs {
		state.cancel()
	}
}

// runIDFromArg accepts either a bare string or {"runId": "..."}.
func runIDFromArg(args []any) string {
	if len(args) == 0 {
		return ""
	}
	switch v := args[0].(type) {
	case string:
		return v
	case map[string]any:
		if id, ok := v["runId"].(string); ok {
			return id
		}
	}
	return ""
}
