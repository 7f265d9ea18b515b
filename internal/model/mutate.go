package model

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/latticehq/lattice/internal/geometry"
	"github.com/latticehq/lattice/pkg/domain"
)

// unlocked adapts a Graph to geometry.Resolver without taking the lock.
// It is only used from methods that already hold g.mu.
type unlocked struct{ g *Graph }

func (u unlocked) Node(id string) (*domain.Node, bool) {
	n, ok := u.g.nodes[id]
	return n, ok
}

func (u unlocked) NodeCount() int { return len(u.g.nodes) }

// DetachedChild records a child that was detached when its group was deleted,
// so the inverse command can re-attach it with the original relative position.
type DetachedChild struct {
	ID          string
	RelativePos domain.Position
}

// Removed is the full capture of a DeleteNode cascade. It carries everything
// needed to invert the delete exactly, including the original positions of
// the node and its edges in their insertion-ordered slices.
type Removed struct {
	Node           domain.Node
	NodeIndex      int
	SelectionIndex int // slot in the selection, -1 when the node was not selected
	Edges          []domain.Edge
	EdgeIndex      []int
	Detached       []DetachedChild
}

// InsertNode adds a fully-formed node to the graph. It fails on duplicate
// ids, on groups carrying a parent, and on parent references that do not
// resolve to an existing group.
func (g *Graph) InsertNode(n *domain.Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.insertNodeAt(n, len(g.order))
}

func (g *Graph) insertNodeAt(n *domain.Node, index int) error {
	if n.ID == "" {
		return fmt.Errorf("node has no id")
	}
	if _, dup := g.nodes[n.ID]; dup {
		return fmt.Errorf("%w: node %s", domain.ErrDuplicateID, n.ID)
	}
	if n.ParentID != "" {
		if n.Kind == domain.KindGroup {
			return fmt.Errorf("%w: %s", domain.ErrGroupParent, n.ID)
		}
		parent, ok := g.nodes[n.ParentID]
		if !ok {
			return fmt.Errorf("%w: parent %s", domain.ErrNodeNotFound, n.ParentID)
		}
		if parent.Kind != domain.KindGroup {
			return fmt.Errorf("parent %s is not a group", n.ParentID)
		}
	}
	if n.Status == "" {
		n.Status = domain.StatusIdle
	}
	g.nodes[n.ID] = n.Clone()
	if index < 0 || index > len(g.order) {
		index = len(g.order)
	}
	g.order = append(g.order[:index], append([]string{n.ID}, g.order[index:]...)...)
	return nil
}

// Move sets a node's position (in its current coordinate frame) and returns
// the previous position.
func (g *Graph) Move(id string, pos domain.Position) (domain.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return domain.Position{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	old := n.Position
	n.Position = pos
	return old, nil
}

// Resize sets a node's size and returns the previous size.
func (g *Graph) Resize(id string, size domain.Size) (domain.Size, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return domain.Size{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	old := n.Size
	n.Size = size
	return old, nil
}

// SetZIndex sets a node's stacking order and returns the previous value.
func (g *Graph) SetZIndex(id string, z int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	old := n.ZIndex
	n.ZIndex = z
	return old, nil
}

// SetData replaces a node's payload and returns the previous payload.
func (g *Graph) SetData(id string, data map[string]any) (map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	old := n.Data
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}
	n.Data = copied
	return old, nil
}

// SetParent reparents a node, storing the given position in the new
// coordinate frame, and returns the previous parent id and position.
// An empty parentID detaches the node. The move is refused when it would
// nest groups or create a containment cycle.
func (g *Graph) SetParent(id, parentID string, pos domain.Position) (string, domain.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return "", domain.Position{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	if parentID != "" {
		if n.Kind == domain.KindGroup {
			return "", domain.Position{}, fmt.Errorf("%w: %s", domain.ErrGroupParent, id)
		}
		parent, ok := g.nodes[parentID]
		if !ok {
			return "", domain.Position{}, fmt.Errorf("%w: parent %s", domain.ErrNodeNotFound, parentID)
		}
		if parent.Kind != domain.KindGroup {
			return "", domain.Position{}, fmt.Errorf("parent %s is not a group", parentID)
		}
		if geometry.IsAncestor(parent, id, unlocked{g}) {
			return "", domain.Position{}, fmt.Errorf("reparenting %s under %s would create a cycle", id, parentID)
		}
	}
	oldParent, oldPos := n.ParentID, n.Position
	n.ParentID = parentID
	n.Position = pos
	return oldParent, oldPos, nil
}

// ForceDetach clears a node's parent without converting coordinates. It is
// the safe fallback after a corrupt ancestry chain: the relative position is
// kept as-is and reinterpreted as absolute.
func (g *Graph) ForceDetach(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	g.logger.Error("force-detaching node with corrupt ancestry", "node_id", id, "parent_id", n.ParentID)
	n.ParentID = ""
}

// DeleteNode removes a node, detaches its children to absolute coordinates
// and drops every edge touching it. The returned capture inverts the whole
// cascade.
func (g *Graph) DeleteNode(id string) (*Removed, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}

	rem := &Removed{Node: *n.Clone(), NodeIndex: g.indexOf(id)}

	// Detach children first so their absolute positions are computed while
	// the group still exists.
	for _, childID := range g.order {
		child := g.nodes[childID]
		if child.ParentID != id {
			continue
		}
		abs, err := geometry.ToAbsolute(child, unlocked{g})
		if err != nil {
			g.logger.Error("corrupt ancestry during delete cascade", "node_id", childID, "err", err)
			abs = child.Position
		}
		rem.Detached = append(rem.Detached, DetachedChild{ID: childID, RelativePos: child.Position})
		child.ParentID = ""
		child.Position = abs
	}

	// Drop touching edges, remembering their slice positions.
	kept := g.edges[:0:0]
	for i, e := range g.edges {
		if e.Source == id || e.Target == id {
			rem.Edges = append(rem.Edges, e)
			rem.EdgeIndex = append(rem.EdgeIndex, i)
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept

	delete(g.nodes, id)
	g.order = append(g.order[:rem.NodeIndex], g.order[rem.NodeIndex+1:]...)
	rem.SelectionIndex = g.removeFromSelection(id)
	return rem, nil
}

// RestoreNode inverts a DeleteNode capture: the node returns to its original
// insertion position, children are re-attached with their original relative
// positions, and edges are reinserted where they were.
func (g *Graph) RestoreNode(rem *Removed) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	node := rem.Node
	if err := g.insertNodeAt(node.Clone(), rem.NodeIndex); err != nil {
		return err
	}
	for _, d := range rem.Detached {
		child, ok := g.nodes[d.ID]
		if !ok {
			return fmt.Errorf("%w: detached child %s", domain.ErrNodeNotFound, d.ID)
		}
		child.ParentID = node.ID
		child.Position = d.RelativePos
	}
	for i, e := range rem.Edges {
		idx := rem.EdgeIndex[i]
		if idx < 0 || idx > len(g.edges) {
			idx = len(g.edges)
		}
		g.edges = append(g.edges[:idx], append([]domain.Edge{e}, g.edges[idx:]...)...)
	}
	if idx := rem.SelectionIndex; idx >= 0 {
		if idx > len(g.selected) {
			idx = len(g.selected)
		}
		g.selected = append(g.selected[:idx], append([]string{node.ID}, g.selected[idx:]...)...)
	}
	return nil
}

// Connect creates a directed edge between two existing nodes. It rejects
// only missing endpoints: self-loops and group endpoints are representable,
// since groups are addressable in the dependency graph.
func (g *Graph) Connect(source, target, sourceHandle, targetHandle string) (*domain.Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[source]; !ok {
		return nil, fmt.Errorf("%w: source %s", domain.ErrInvalidConnection, source)
	}
	if _, ok := g.nodes[target]; !ok {
		return nil, fmt.Errorf("%w: target %s", domain.ErrInvalidConnection, target)
	}
	e := domain.Edge{
		ID:           uuid.NewString(),
		Source:       source,
		Target:       target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}
	g.edges = append(g.edges, e)
	return &e, nil
}

// InsertEdge adds a pre-built edge, validating its endpoints. Used by paste
// and by command inversion.
func (g *Graph) InsertEdge(e domain.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.insertEdgeAt(e, len(g.edges))
}

func (g *Graph) insertEdgeAt(e domain.Edge, index int) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	for i := range g.edges {
		if g.edges[i].ID == e.ID {
			return fmt.Errorf("%w: edge %s", domain.ErrDuplicateID, e.ID)
		}
	}
	if _, ok := g.nodes[e.Source]; !ok {
		return fmt.Errorf("%w: source %s", domain.ErrInvalidConnection, e.Source)
	}
	if _, ok := g.nodes[e.Target]; !ok {
		return fmt.Errorf("%w: target %s", domain.ErrInvalidConnection, e.Target)
	}
	if index < 0 || index > len(g.edges) {
		index = len(g.edges)
	}
	g.edges = append(g.edges[:index], append([]domain.Edge{e}, g.edges[index:]...)...)
	return nil
}

// Disconnect removes an edge, returning it with its slice index so the
// removal can be inverted exactly.
func (g *Graph) Disconnect(edgeID string) (domain.Edge, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, e := range g.edges {
		if e.ID == edgeID {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			return e, i, nil
		}
	}
	return domain.Edge{}, 0, fmt.Errorf("%w: %s", domain.ErrEdgeNotFound, edgeID)
}

// RestoreEdge reinserts a previously disconnected edge at its old position.
func (g *Graph) RestoreEdge(e domain.Edge, index int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.insertEdgeAt(e, index)
}

// SetViewport stores the pan/zoom state.
func (g *Graph) SetViewport(v domain.Viewport) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.viewport = v
}

// SetSelection replaces the selected node set. Unknown ids are dropped.
func (g *Graph) SetSelection(ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selected = g.selected[:0]
	for _, id := range ids {
		if _, ok := g.nodes[id]; ok {
			g.selected = append(g.selected, id)
		}
	}
}

// SetStatus transitions a node's execution status and returns its kind.
func (g *Graph) SetStatus(id string, status domain.ExecutionStatus) (domain.Kind, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	n.Status = status
	return n.Kind, nil
}

// ResetStatuses returns every node to idle. Called at the start of a
// workflow run.
func (g *Graph) ResetStatuses() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range g.nodes {
		n.Status = domain.StatusIdle
	}
}

// AbsolutePosition resolves a node's absolute position, applying the corrupt
// ancestry fallback: on a broken chain the node is force-detached and its raw
// position reinterpreted as absolute.
func (g *Graph) AbsolutePosition(id string) (domain.Position, error) {
	g.mu.Lock()
	n, ok := g.nodes[id]
	if !ok {
		g.mu.Unlock()
		return domain.Position{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	pos, err := geometry.ToAbsolute(n, unlocked{g})
	g.mu.Unlock()
	if err != nil {
		g.logger.Error("corrupt ancestry detected", "node_id", id, "err", err)
		g.ForceDetach(id)
		return pos, err
	}
	return pos, nil
}

func (g *Graph) indexOf(id string) int {
	for i, nid := range g.order {
		if nid == id {
			return i
		}
	}
	return -1
}

// removeFromSelection drops id from the selection and returns the slot it
// occupied, or -1 when it was not selected.
func (g *Graph) removeFromSelection(id string) int {
	for i, sid := range g.selected {
		if sid == id {
			g.selected = append(g.selected[:i], g.selected[i+1:]...)
			return i
		}
	}
	return -1
}
