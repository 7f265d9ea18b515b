// Package geometry provides the pure coordinate transforms between
// absolute canvas space and parent-relative space. It holds no state;
// callers pass a resolver over the current graph.
package geometry

import (
	"github.com/latticehq/lattice/pkg/domain"
)

// Resolver looks up nodes by id. The graph model implements it.
type Resolver interface {
	// Node returns the node with the given id, or false.
	Node(id string) (*domain.Node, bool)
	// NodeCount returns the total number of nodes, used to bound
	// ancestry walks against accidental cycles.
	NodeCount() int
}

// ToAbsolute converts a node's position to absolute canvas coordinates by
// walking the parent chain and summing relative offsets.
//
// The walk is bounded by the total node count. Exceeding that bound means the
// containment invariants were violated; a *domain.CorruptAncestryError is
// returned and the caller is expected to force-detach the node.
func ToAbsolute(n *domain.Node, r Resolver) (domain.Position, error) {
	pos := n.Position
	steps := 0
	for cur := n; cur.ParentID != ""; {
		steps++
		if steps > r.NodeCount() {
			return n.Position, &domain.CorruptAncestryError{NodeID: n.ID}
		}
		parent, ok := r.Node(cur.ParentID)
		if !ok {
			// Dangling parent reference: treat the accumulated offset
			// as absolute rather than failing the caller.
			return pos, nil
		}
		pos = pos.Add(parent.Position)
		cur = parent
	}
	return pos, nil
}

// ToRelative converts an absolute position into the coordinate frame of the
// given parent. The parent's own position must be absolute, which holds for
// groups since they are never nested.
func ToRelative(abs domain.Position, parent *domain.Node) domain.Position {
	return abs.Sub(parent.Position)
}

// AbsoluteRect returns the node's bounding rectangle in absolute coordinates.
func AbsoluteRect(n *domain.Node, r Resolver) (domain.Rect, error) {
	abs, err := ToAbsolute(n, r)
	if err != nil {
		return domain.Rect{}, err
	}
	return domain.NewRect(abs, n.Size), nil
}

// IsAncestor reports whether candidate is n itself or an ancestor of n in the
// containment chain. The walk is bounded the same way as ToAbsolute; a corrupt
// chain conservatively reports true so the caller refuses the reparent.
func IsAncestor(n *domain.Node, candidateID string, r Resolver) bool {
	steps := 0
	for cur := n; ; {
		if cur.ID == candidateID {
			return true
		}
		if cur.ParentID == "" {
			return false
		}
		steps++
		if steps > r.NodeCount() {
			return true
		}
		parent, ok := r.Node(cur.ParentID)
		if !ok {
			return false
		}
		cur = parent
	}
}
