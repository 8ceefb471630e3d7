package workflow

import (
	"errors"
	"fmt"
)

// Validation sentinels. Callers match with errors.Is; the wrapped message
// carries the offending ids.
var (
	ErrDuplicateNode = errors.New("duplicate node id")
	ErrUnknownNode   = errors.New("edge references unknown node")
	ErrSelfLoop      = errors.New("self-referential edge not allowed")
	ErrBadKind       = errors.New("unknown node kind")
	ErrCycle         = errors.New("workflow contains a cycle")
)

// Validate checks the structural integrity of the workflow: unique node
// ids, known kinds, and edges whose endpoints both exist and differ. It
// does not check for cycles; Order does, since cycle detection falls out
// of the topological sort.
func (w *Workflow) Validate() error {
	seen := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node with empty id: %w", ErrUnknownNode)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		seen[n.ID] = true
		if !n.Kind.Valid() {
			return fmt.Errorf("%w: node %s has kind %q", ErrBadKind, n.ID, n.Kind)
		}
	}
	for _, e := range w.Edges {
		if e.From == e.To {
			return fmt.Errorf("%w: %s -> %s", ErrSelfLoop, e.From, e.To)
		}
		if !seen[e.From] {
			return fmt.Errorf("%w: %s (source of %s -> %s)", ErrUnknownNode, e.From, e.From, e.To)
		}
		if !seen[e.To] {
			return fmt.Errorf("%w: %s (target of %s -> %s)", ErrUnknownNode, e.To, e.From, e.To)
		}
	}
	return nil
}
