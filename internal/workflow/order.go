package workflow

import (
	"fmt"
	"strings"
)

// Order computes a topological order of the workflow's nodes using Kahn's
// algorithm. Ties are broken by original node-list position: of two nodes
// whose in-degree reaches zero, the one appearing earlier in Nodes is
// emitted first. Running Order twice on the same workflow therefore yields
// the same sequence.
//
// If fewer nodes come out than went in, the remainder forms at least one
// cycle and ErrCycle is returned with the ids still stuck in it.
func (w *Workflow) Order() ([]string, error) {
	pos := make(map[string]int, len(w.Nodes))
	indeg := make(map[string]int, len(w.Nodes))
	for i, n := range w.Nodes {
		pos[n.ID] = i
		indeg[n.ID] = 0
	}
	for _, e := range w.Edges {
		indeg[e.To]++
	}

	// Seed with zero in-degree nodes in node-list order, then keep the
	// queue sorted by original position as successors become ready.
	var queue []string
	for _, n := range w.Nodes {
		if indeg[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	insert := func(id string) {
		i := len(queue)
		for i > 0 && pos[queue[i-1]] > pos[id] {
			i--
		}
		queue = append(queue, "")
		copy(queue[i+1:], queue[i:])
		queue[i] = id
	}

	order := make([]string, 0, len(w.Nodes))
	emitted := make(map[string]bool, len(w.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		emitted[id] = true
		for _, succ := range w.Successors(id) {
			indeg[succ]--
			if indeg[succ] == 0 {
				insert(succ)
			}
		}
	}

	if len(order) < len(w.Nodes) {
		var stuck []string
		for _, n := range w.Nodes {
			if !emitted[n.ID] {
				stuck = append(stuck, n.ID)
			}
		}
		return nil, fmt.Errorf("%w: unresolved nodes %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}
