package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/loomgrid/internal/event"
)

func TestEmitRoutesToRunSink(t *testing.T) {
	s := &Server{runs: make(map[string]*runState)}
	sink := event.NewChanSink(4)
	s.runs["r1"] = &runState{sink: sink}

	s.Emit(context.Background(), event.Event{Type: event.RunLog, RunID: "r1", Message: "hello"})

	select {
	case e := <-sink.Events():
		assert.Equal(t, event.RunLog, e.Type)
		assert.Equal(t, "hello", e.Message)
	default:
		t.Fatal("event was not routed to the run's sink")
	}
}

func TestEmitDropsUnknownRun(t *testing.T) {
	s := &Server{runs: make(map[string]*runState)}

	// Must not panic or block when no run owns the id.
	s.Emit(context.Background(), event.Event{Type: event.RunLog, RunID: "ghost"})
}

func TestReleaseClosesSink(t *testing.T) {
	s := &Server{runs: make(map[string]*runState)}
	sink := event.NewChanSink(1)
	canceled := false
	s.runs["r1"] = &runState{sink: sink, cancel: func() { canceled = true }}

	s.release("r1")

	require.True(t, canceled)
	_, open := <-sink.Events()
	assert.False(t, open, "sink channel should be closed after release")
	assert.Empty(t, s.runs)
}
