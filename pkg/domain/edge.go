package domain

// Edge is a directed connection from a source node to a target node.
// Handles identify sub-ports on either end; they are opaque to the engine
// and reserved for multi-port node types.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// SelfLoop reports whether the edge connects a node to itself.
// Self-loops are representable but contribute no ordering constraint,
// and the scheduler rejects them as degenerate cycles.
func (e *Edge) SelfLoop() bool {
	return e.Source == e.Target
}
