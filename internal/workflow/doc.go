// Package workflow holds the immutable node/edge model of a run and the
// ordering logic that turns it into an executable sequence.
//
// A Workflow is constructed once from user input and never mutated
// afterwards. Validation happens up front: an edge referencing a node id
// that does not exist, a self-loop, or a duplicate node id rejects the
// whole workflow before any node executes. Cycles are caught by Order,
// which implements Kahn's algorithm with a deterministic tie-break (nodes
// that become ready at the same time are emitted in their original
// node-list order).
package workflow
