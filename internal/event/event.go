// Package event defines the progress events a run emits and the sinks
// that deliver them to observers.
package event

import "time"

// Type discriminates the event variants on the wire.
type Type string

const (
	RunStarted   Type = "run:started"
	NodeStatus   Type = "node:status"
	RunLog       Type = "run:log"
	RunCompleted Type = "run:completed"
	RunError     Type = "run:error"
)

// Status is the observer-facing node state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Event is one observable step of a run. Fields beyond Type/RunID are
// populated per variant: NodeStatus carries the node fields, RunLog
// carries Message, RunError carries Err.
type Event struct {
	Type       Type      `json:"type"`
	RunID      string    `json:"runId"`
	WorkflowID string    `json:"workflowId,omitempty"`
	NodeID     string    `json:"nodeId,omitempty"`
	Status     Status    `json:"status,omitempty"`
	Progress   int       `json:"progress,omitempty"`
	Result     string    `json:"result,omitempty"`
	Err        string    `json:"error,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}
