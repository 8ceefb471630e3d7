// Package result holds the run-scoped table of node outcomes.
//
// A Store lives exactly as long as one run. Entries are written once by
// the dispatcher and never mutated afterwards; absence of an entry means
// the node has not been reached yet. The store is safe for concurrent use
// because the pooled executor writes entries from worker goroutines.
package result

import (
	"fmt"
	"strings"
	"sync"

	"github.com/vk/loomgrid/internal/workflow"
)

// Separator joins upstream results when a node has several incoming edges.
const Separator = "\n\n---\n\n"

// Artifact describes a file produced as a side effect of node execution.
type Artifact struct {
	// Path is the absolute location of the file on disk.
	Path string
	// Type is a logical tag such as "markdown" or "image".
	Type string
	// Name is the human-readable display name.
	Name string
}

// Entry is the recorded outcome of one node's execution.
type Entry struct {
	NodeID    string
	OK        bool
	Output    string
	Artifacts []Artifact
	Err       string
}

// Store maps node id to its Entry, append-only, for the duration of a run.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewStore returns an empty store. A fresh store must be created per run;
// sharing one across runs leaks stale results into the concatenation rule.
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Put records the entry for its node. Writing a second entry for the same
// node is a dispatcher bug and returns an error instead of overwriting.
func (s *Store) Put(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.NodeID]; ok {
		return fmt.Errorf("result for node %s already recorded", e.NodeID)
	}
	s.entries[e.NodeID] = e
	s.order = append(s.order, e.NodeID)
	return nil
}

// Get returns the entry for the node and whether one exists.
func (s *Store) Get(nodeID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[nodeID]
	return e, ok
}

// Entries returns all recorded entries in the order they were written.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

// Failed returns the entries of all failed nodes in write order.
func (s *Store) Failed() []Entry {
	var failed []Entry
	for _, e := range s.Entries() {
		if !e.OK {
			failed = append(failed, e)
		}
	}
	return failed
}

// Artifacts returns every artifact produced anywhere in the run, in write
// order. The output node uses this to assemble its manifest.
func (s *Store) Artifacts() []Artifact {
	var all []Artifact
	for _, e := range s.Entries() {
		all = append(all, e.Artifacts...)
	}
	return all
}

// Upstream applies the edge-consumption rule for a node: the textual
// results of all its upstream producers, in edge-list order, joined by
// Separator. A failed, absent, or empty upstream contributes nothing.
func (s *Store) Upstream(w *workflow.Workflow, nodeID string) string {
	var parts []string
	for _, e := range w.Incoming(nodeID) {
		entry, ok := s.Get(e.From)
		if !ok || !entry.OK || entry.Output == "" {
			continue
		}
		parts = append(parts, entry.Output)
	}
	return strings.Join(parts, Separator)
}
