package event

import (
	"context"
	"sync"

	"github.com/vk/loomgrid/internal/ctxlog"
)

// Sink receives events as a run progresses. Implementations must not
// block: a slow or disconnected observer must never stall the engine.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// LogSink writes every event to the context logger.
type LogSink struct{}

// Emit implements Sink.
func (LogSink) Emit(ctx context.Context, e Event) {
	logger := ctxlog.FromContext(ctx).With("runID", e.RunID, "event", string(e.Type))
	switch e.Type {
	case NodeStatus:
		if e.Status == StatusError {
			logger.Error("Node failed.", "nodeID", e.NodeID, "error", e.Err)
			return
		}
		logger.Info("Node status changed.", "nodeID", e.NodeID, "status", string(e.Status), "progress", e.Progress)
	case RunError:
		logger.Error("Run failed.", "error", e.Err)
	case RunLog:
		if e.NodeID != "" {
			logger.Info(e.Message, "nodeID", e.NodeID)
			return
		}
		logger.Info(e.Message)
	default:
		logger.Info("Run event.")
	}
}

// ChanSink buffers events on a channel for an observer to drain. When the
// buffer is full new events are dropped so the run never blocks on a
// disconnected observer.
type ChanSink struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewChanSink returns a sink buffering up to size events.
func NewChanSink(size int) *ChanSink {
	if size <= 0 {
		size = 256
	}
	return &ChanSink{ch: make(chan Event, size)}
}

// Emit implements Sink. It never blocks.
func (s *ChanSink) Emit(_ context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
	}
}

// Events returns the channel observers drain.
func (s *ChanSink) Events() <-chan Event {
	return s.ch
}

// Close stops the sink; later Emit calls are ignored and the channel is
// closed so range loops terminate.
func (s *ChanSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}
