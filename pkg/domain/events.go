package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeStatusChanged EventType = "node_status_changed"
	EventGraphMutated      EventType = "graph_mutated"
	EventRunCompleted      EventType = "run_completed"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// NodeStatusEvent is emitted when the scheduler transitions a node.
type NodeStatusEvent struct {
	EventBase
	NodeID string          `json:"node_id"`
	Kind   Kind            `json:"kind"`
	Status ExecutionStatus `json:"status"`
	Reason string          `json:"reason,omitempty"`
}

// MutationEvent is emitted after every applied graph command,
// including undo and redo.
type MutationEvent struct {
	EventBase
	Command string   `json:"command"`
	NodeIDs []string `json:"node_ids,omitempty"`
}

// RunEvent is emitted when a workflow run reaches a terminal state.
type RunEvent struct {
	EventBase
	Executed  int  `json:"executed"`
	Failed    int  `json:"failed"`
	Cancelled bool `json:"cancelled"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks are invoked synchronously from the mutating goroutine; hosts that
// need to do slow work should hand the event off to their own channel.
type LifecycleHooks struct {
	OnNodeStatusChange func(context.Context, *NodeStatusEvent)
	OnGraphMutate      func(context.Context, *MutationEvent)
	OnRunComplete      func(context.Context, *RunEvent)
}
