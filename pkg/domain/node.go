package domain

// Kind identifies the behavior of a node on the canvas.
//
// Structural kinds (group, connector, sticky) never execute: the scheduler
// marks them bypassed. Every other kind is executable and is dispatched
// through the host-registered Runner for that kind.
type Kind string

// Structural kinds.
const (
	KindGroup     Kind = "group"
	KindConnector Kind = "connector"
	KindSticky    Kind = "sticky"
)

// Executable kinds shipped with the canvas. The set is open: hosts may
// register runners for additional kinds.
const (
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindText     Kind = "text"
	KindSocial   Kind = "social"
	KindChat     Kind = "chat"
	KindGenerate Kind = "generate"
)

// ExecutableKinds returns the built-in executable kinds.
func ExecutableKinds() []Kind {
	return []Kind{
		KindVideo, KindAudio, KindDocument, KindText,
		KindSocial, KindChat, KindGenerate,
	}
}

// Structural reports whether nodes of this kind are skipped by the scheduler.
func (k Kind) Structural() bool {
	switch k {
	case KindGroup, KindConnector, KindSticky:
		return true
	}
	return false
}

// Node is an atomic unit in the workflow graph.
//
// Position is absolute when ParentID is empty, otherwise relative to the
// parent group's origin. ParentID is a non-owning reference resolved by id
// lookup; a group node never has a parent (groups do not nest).
type Node struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"type"`
	Position Position        `json:"position"`
	Size     Size            `json:"size"`
	ParentID string          `json:"parentId,omitempty"`
	ZIndex   int             `json:"zIndex,omitempty"`
	Data     map[string]any  `json:"data,omitempty"`
	Status   ExecutionStatus `json:"executionStatus,omitempty"`
}

// Clone returns a copy of the node with its own Data map.
// Payload values are copied one level deep; the engine treats them as opaque
// and never mutates nested values.
func (n *Node) Clone() *Node {
	c := *n
	if n.Data != nil {
		c.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			c.Data[k] = v
		}
	}
	return &c
}

// Rect returns the node's bounding rectangle, assuming Position is absolute.
// Callers holding a parented node must convert the position first.
func (n *Node) Rect() Rect {
	return NewRect(n.Position, n.Size)
}
