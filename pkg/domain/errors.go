package domain

import (
	"errors"
	"fmt"
)

// ErrNodeNotFound is returned when a node id cannot be resolved.
var ErrNodeNotFound = errors.New("node not found")

// ErrEdgeNotFound is returned when an edge id cannot be resolved.
var ErrEdgeNotFound = errors.New("edge not found")

// ErrInvalidConnection is returned when an edge references a missing endpoint.
var ErrInvalidConnection = errors.New("invalid connection")

// ErrCancelled is returned for node invocations terminated by user cancellation.
var ErrCancelled = errors.New("execution cancelled")

// ErrUpstreamFailed marks a node that was skipped because a dependency errored.
var ErrUpstreamFailed = errors.New("upstream node failed")

// ErrRunInProgress is returned when a workflow run is requested while
// another run is still active.
var ErrRunInProgress = errors.New("a run is already in progress")

// ErrWorkflowNotFound is returned when a snapshot store has no entry
// for the requested workflow id.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrGroupParent is returned when an operation would give a group node a
// parent. Groups sit at a single nesting depth; this is a hard rule,
// independent of geometry.
var ErrGroupParent = errors.New("group nodes cannot have a parent")

// ErrDuplicateID is returned when inserting a node or edge whose id is
// already present in the graph.
var ErrDuplicateID = errors.New("duplicate id")

// CorruptAncestryError indicates a parent chain longer than the total node
// count, which can only happen if the containment invariants were violated.
// It is fatal for the offending node: callers log it and force-detach the
// node to absolute positioning.
type CorruptAncestryError struct {
	NodeID string
}

func (e *CorruptAncestryError) Error() string {
	return fmt.Sprintf("corrupt ancestry chain detected at node %s", e.NodeID)
}
