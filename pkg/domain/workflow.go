package domain

// Workflow is the aggregate snapshot of a canvas: nodes in insertion order
// (not topological order), edges, viewport and selection. It contains only
// plain data resolved by id, never engine-internal pointers, so it can be
// persisted by any backend.
type Workflow struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name,omitempty"`
	Nodes           []Node   `json:"nodes"`
	Edges           []Edge   `json:"edges"`
	Viewport        Viewport `json:"viewport"`
	SelectedNodeIDs []string `json:"selectedNodeIds,omitempty"`
}

// Node returns the snapshot node with the given id, or nil.
func (w *Workflow) Node(id string) *Node {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the snapshot.
func (w *Workflow) Clone() *Workflow {
	c := &Workflow{
		ID:       w.ID,
		Name:     w.Name,
		Viewport: w.Viewport,
		Nodes:    make([]Node, 0, len(w.Nodes)),
		Edges:    append([]Edge(nil), w.Edges...),
	}
	for i := range w.Nodes {
		c.Nodes = append(c.Nodes, *w.Nodes[i].Clone())
	}
	if w.SelectedNodeIDs != nil {
		c.SelectedNodeIDs = append([]string(nil), w.SelectedNodeIDs...)
	}
	return c
}
