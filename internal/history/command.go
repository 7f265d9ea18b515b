// Package history implements the undo/redo command log over graph mutations.
// Commands are small value objects that apply themselves against the model
// and return their exact inverse, which is what makes delete (and every
// cascade it triggers) perfectly invertible.
package history

import (
	"github.com/latticehq/lattice/internal/model"
	"github.com/latticehq/lattice/pkg/domain"
)

// Command mutates the graph and returns the command that undoes it.
// A nil inverse together with a nil error is an invariant violation;
// the stack panics on it rather than corrupting the log.
type Command interface {
	Name() string
	Apply(g *model.Graph) (Command, error)
}

// AddNode inserts a fully-formed node. The node id is fixed at command
// construction so redo reproduces the same graph.
type AddNode struct {
	Node domain.Node
}

func (c *AddNode) Name() string { return "add-node" }

func (c *AddNode) Apply(g *model.Graph) (Command, error) {
	if err := g.InsertNode(c.Node.Clone()); err != nil {
		return nil, err
	}
	return &DeleteNode{ID: c.Node.ID}, nil
}

// DeleteNode removes a node with its full cascade. The inverse restores the
// snapshot captured at delete time.
type DeleteNode struct {
	ID string
}

func (c *DeleteNode) Name() string { return "delete-node" }

func (c *DeleteNode) Apply(g *model.Graph) (Command, error) {
	rem, err := g.DeleteNode(c.ID)
	if err != nil {
		return nil, err
	}
	return &restoreNode{Removed: rem}, nil
}

// restoreNode is the inverse of DeleteNode. It is not constructible by
// callers: only a delete can capture the state it needs.
type restoreNode struct {
	Removed *model.Removed
}

func (c *restoreNode) Name() string { return "restore-node" }

func (c *restoreNode) Apply(g *model.Graph) (Command, error) {
	if err := g.RestoreNode(c.Removed); err != nil {
		return nil, err
	}
	return &DeleteNode{ID: c.Removed.Node.ID}, nil
}

// MoveNode sets a node's position in its current coordinate frame.
type MoveNode struct {
	ID string
	To domain.Position
}

func (c *MoveNode) Name() string { return "move-node" }

func (c *MoveNode) Apply(g *model.Graph) (Command, error) {
	old, err := g.Move(c.ID, c.To)
	if err != nil {
		return nil, err
	}
	return &MoveNode{ID: c.ID, To: old}, nil
}

// ResizeNode sets a node's size.
type ResizeNode struct {
	ID string
	To domain.Size
}

func (c *ResizeNode) Name() string { return "resize-node" }

func (c *ResizeNode) Apply(g *model.Graph) (Command, error) {
	old, err := g.Resize(c.ID, c.To)
	if err != nil {
		return nil, err
	}
	return &ResizeNode{ID: c.ID, To: old}, nil
}

// SetData replaces a node's payload wholesale. Callers that patch single
// keys merge against the current payload before constructing the command.
type SetData struct {
	ID   string
	Data map[string]any
}

func (c *SetData) Name() string { return "set-data" }

func (c *SetData) Apply(g *model.Graph) (Command, error) {
	old, err := g.SetData(c.ID, c.Data)
	if err != nil {
		return nil, err
	}
	return &SetData{ID: c.ID, Data: old}, nil
}

// SetZIndex changes a node's stacking order.
type SetZIndex struct {
	ID string
	To int
}

func (c *SetZIndex) Name() string { return "set-zindex" }

func (c *SetZIndex) Apply(g *model.Graph) (Command, error) {
	old, err := g.SetZIndex(c.ID, c.To)
	if err != nil {
		return nil, err
	}
	return &SetZIndex{ID: c.ID, To: old}, nil
}

// Reparent moves a node into (or out of) a group, with the position already
// converted to the new coordinate frame.
type Reparent struct {
	ID       string
	ParentID string
	Position domain.Position
}

func (c *Reparent) Name() string { return "reparent" }

func (c *Reparent) Apply(g *model.Graph) (Command, error) {
	oldParent, oldPos, err := g.SetParent(c.ID, c.ParentID, c.Position)
	if err != nil {
		return nil, err
	}
	return &Reparent{ID: c.ID, ParentID: oldParent, Position: oldPos}, nil
}

// Connect creates an edge. When Edge.ID is empty a fresh id is generated on
// first apply and pinned so redo recreates the identical edge.
type Connect struct {
	Edge domain.Edge
}

func (c *Connect) Name() string { return "connect" }

func (c *Connect) Apply(g *model.Graph) (Command, error) {
	if c.Edge.ID == "" {
		e, err := g.Connect(c.Edge.Source, c.Edge.Target, c.Edge.SourceHandle, c.Edge.TargetHandle)
		if err != nil {
			return nil, err
		}
		c.Edge = *e
	} else if err := g.InsertEdge(c.Edge); err != nil {
		return nil, err
	}
	return &Disconnect{ID: c.Edge.ID}, nil
}

// Disconnect removes an edge; its inverse reinserts the edge at the exact
// slice position it occupied.
type Disconnect struct {
	ID string
}

func (c *Disconnect) Name() string { return "disconnect" }

func (c *Disconnect) Apply(g *model.Graph) (Command, error) {
	e, idx, err := g.Disconnect(c.ID)
	if err != nil {
		return nil, err
	}
	return &restoreEdge{Edge: e, Index: idx}, nil
}

type restoreEdge struct {
	Edge  domain.Edge
	Index int
}

func (c *restoreEdge) Name() string { return "restore-edge" }

func (c *restoreEdge) Apply(g *model.Graph) (Command, error) {
	if err := g.RestoreEdge(c.Edge, c.Index); err != nil {
		return nil, err
	}
	return &Disconnect{ID: c.Edge.ID}, nil
}

// Composite applies a sequence of commands as one undoable unit. Paste,
// duplicate, align and distribute are composites. On a partial failure the
// already-applied prefix is rolled back before the error is returned.
type Composite struct {
	Label    string
	Commands []Command
}

func (c *Composite) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return "composite"
}

func (c *Composite) Apply(g *model.Graph) (Command, error) {
	inverses := make([]Command, 0, len(c.Commands))
	for _, cmd := range c.Commands {
		inv, err := cmd.Apply(g)
		if err != nil {
			// Roll back what was applied so the failure is atomic from
			// the caller's perspective.
			for i := len(inverses) - 1; i >= 0; i-- {
				if _, rbErr := inverses[i].Apply(g); rbErr != nil {
					panic("history: rollback failed: " + rbErr.Error())
				}
			}
			return nil, err
		}
		inverses = append(inverses, inv)
	}
	// Reverse so undo unwinds in the opposite order.
	rev := make([]Command, 0, len(inverses))
	for i := len(inverses) - 1; i >= 0; i-- {
		rev = append(rev, inverses[i])
	}
	return &Composite{Label: c.Label, Commands: rev}, nil
}
