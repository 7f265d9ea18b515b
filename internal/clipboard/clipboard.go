// Package clipboard implements copy, paste and duplicate over node
// subgraphs, with id remapping and position offsetting.
package clipboard

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/latticehq/lattice/internal/history"
	"github.com/latticehq/lattice/internal/model"
	"github.com/latticehq/lattice/pkg/domain"
)

// PasteOffset is the fixed delta applied to pasted nodes when no target
// position is given, so the paste lands visibly beside the original.
var PasteOffset = domain.Position{X: 40, Y: 40}

// Entry is a frozen snapshot of a node subgraph: the selected nodes plus
// every edge whose endpoints are both in the selection. Edges crossing the
// selection boundary are dropped, not rewritten. Positions of nodes whose
// parent is outside the selection are stored absolute with the parent link
// cleared; children of selected groups keep their relative positions.
type Entry struct {
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

// Copy snapshots the given nodes and their internal edges. Children of a
// selected group come along implicitly, keeping their relative positions.
func Copy(g *model.Graph, nodeIDs []string) (*Entry, error) {
	selected := make(map[string]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		selected[id] = struct{}{}
	}
	requested := len(selected)
	found := 0
	for _, n := range g.Nodes() {
		if _, ok := selected[n.ID]; ok {
			found++
			continue
		}
		if n.ParentID != "" {
			if _, ok := selected[n.ParentID]; ok {
				selected[n.ID] = struct{}{}
			}
		}
	}
	if found != requested {
		return nil, fmt.Errorf("%w: selection contains unknown nodes", domain.ErrNodeNotFound)
	}

	entry := &Entry{}
	// Walk insertion order so the snapshot is deterministic.
	for _, n := range g.Nodes() {
		if _, ok := selected[n.ID]; !ok {
			continue
		}
		c := *n.Clone()
		if c.ParentID != "" {
			if _, in := selected[c.ParentID]; !in {
				abs, err := g.AbsolutePosition(c.ID)
				if err == nil {
					c.Position = abs
				}
				c.ParentID = ""
			}
		}
		c.Status = domain.StatusIdle
		entry.Nodes = append(entry.Nodes, c)
	}

	for _, e := range g.Edges() {
		_, srcIn := selected[e.Source]
		_, tgtIn := selected[e.Target]
		if srcIn && tgtIn {
			entry.Edges = append(entry.Edges, e)
		}
	}
	return entry, nil
}

// Paste materializes an entry as a single undoable composite command.
// Every id is remapped to a fresh one; internal edges are re-created against
// the new ids. When target is nil the subgraph shifts by PasteOffset,
// otherwise its bounding-box center lands on the target position.
//
// The new node ids are returned in the entry's node order.
func Paste(entry *Entry, target *domain.Position) (history.Command, []string) {
	remap := make(map[string]string, len(entry.Nodes))
	for _, n := range entry.Nodes {
		remap[n.ID] = uuid.NewString()
	}

	delta := pasteDelta(entry, target)

	cmds := make([]history.Command, 0, len(entry.Nodes)+len(entry.Edges))
	newIDs := make([]string, 0, len(entry.Nodes))
	for _, n := range entry.Nodes {
		c := *n.Clone()
		c.ID = remap[n.ID]
		newIDs = append(newIDs, c.ID)
		if n.ParentID != "" {
			// Internal parent: keep the relative frame, the group itself
			// moves by the delta.
			c.ParentID = remap[n.ParentID]
		} else {
			c.Position = c.Position.Add(delta)
		}
		cmds = append(cmds, &history.AddNode{Node: c})
	}
	for _, e := range entry.Edges {
		cmds = append(cmds, &history.Connect{Edge: domain.Edge{
			ID:           uuid.NewString(),
			Source:       remap[e.Source],
			Target:       remap[e.Target],
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		}})
	}
	return &history.Composite{Label: "paste", Commands: cmds}, newIDs
}

// Duplicate is Copy plus Paste with the fixed offset, packaged as one
// undoable command.
func Duplicate(g *model.Graph, nodeID string) (history.Command, []string, error) {
	entry, err := Copy(g, []string{nodeID})
	if err != nil {
		return nil, nil, err
	}
	cmd, ids := Paste(entry, nil)
	return &history.Composite{Label: "duplicate", Commands: []history.Command{cmd}}, ids, nil
}

// pasteDelta computes the translation for top-level pasted nodes.
func pasteDelta(entry *Entry, target *domain.Position) domain.Position {
	if target == nil {
		return PasteOffset
	}
	bounds, ok := boundingBox(entry)
	if !ok {
		return PasteOffset
	}
	center := bounds.Center()
	return target.Sub(center)
}

// boundingBox covers the entry's top-level nodes (children follow their
// group and do not widen the box beyond it in any way that matters for
// centering).
func boundingBox(entry *Entry) (domain.Rect, bool) {
	first := true
	var minX, minY, maxX, maxY float64
	for _, n := range entry.Nodes {
		if n.ParentID != "" {
			continue
		}
		r := n.Rect()
		if first {
			minX, minY, maxX, maxY = r.X, r.Y, r.X+r.Width, r.Y+r.Height
			first = false
			continue
		}
		minX = min(minX, r.X)
		minY = min(minY, r.Y)
		maxX = max(maxX, r.X+r.Width)
		maxY = max(maxY, r.Y+r.Height)
	}
	if first {
		return domain.Rect{}, false
	}
	return domain.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
