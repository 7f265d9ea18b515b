// Package containment decides group membership from geometry: given a
// node's absolute bounding rectangle at drag-end, which group (if any)
// should it become a child of.
package containment

import (
	"sort"

	"github.com/latticehq/lattice/internal/geometry"
	"github.com/latticehq/lattice/internal/model"
	"github.com/latticehq/lattice/pkg/domain"
)

// Config holds the overlap thresholds. The values are UX-tuned product
// constants, preserved as configuration rather than re-derived.
type Config struct {
	// LargeNodeArea is the area cutoff (in px²) above which a node uses
	// the relaxed overlap requirement: big nodes need less relative
	// overlap to feel caught by a group.
	LargeNodeArea float64
	// LargeOverlap is the required intersection/nodeArea ratio for nodes
	// larger than LargeNodeArea.
	LargeOverlap float64
	// SmallOverlap is the ratio required for everything else.
	SmallOverlap float64
}

// DefaultConfig returns the canvas defaults.
func DefaultConfig() Config {
	return Config{
		LargeNodeArea: 40000,
		LargeOverlap:  0.3,
		SmallOverlap:  0.5,
	}
}

// Decision is the outcome of a containment resolution.
type Decision struct {
	NodeID string
	// ParentID is the resolved parent group, or empty for detached.
	ParentID string
	// Position is the node position in the resolved coordinate frame.
	Position domain.Position
	// Changed is false when the resolved parent equals the current one,
	// in which case Position is unspecified and callers do nothing.
	Changed bool
}

// Engine performs containment resolution against a graph.
type Engine struct {
	cfg Config
}

// New creates an engine with the given thresholds. Zero-valued fields fall
// back to the defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.LargeNodeArea <= 0 {
		cfg.LargeNodeArea = def.LargeNodeArea
	}
	if cfg.LargeOverlap <= 0 {
		cfg.LargeOverlap = def.LargeOverlap
	}
	if cfg.SmallOverlap <= 0 {
		cfg.SmallOverlap = def.SmallOverlap
	}
	return &Engine{cfg: cfg}
}

type candidate struct {
	group   *domain.Node
	overlap float64
}

// Resolve computes the containment decision for a node at drag-end.
//
// Group nodes are never eligible to become children of another group, so a
// dragged group always resolves to detached. For everything else the engine
// scores every group by intersection ratio against the dragged rectangle and
// picks the best candidate by z-index, then absolute overlap.
func (e *Engine) Resolve(g *model.Graph, nodeID string) (*Decision, error) {
	node, err := g.GetNode(nodeID)
	if err != nil {
		return nil, err
	}

	abs, _ := g.AbsolutePosition(nodeID)
	rect := domain.NewRect(abs, node.Size)
	area := rect.Area()

	required := e.cfg.SmallOverlap
	if area > e.cfg.LargeNodeArea {
		required = e.cfg.LargeOverlap
	}

	var candidates []candidate
	if node.Kind != domain.KindGroup && area > 0 {
		for _, other := range g.Nodes() {
			if other.Kind != domain.KindGroup || other.ID == nodeID {
				continue
			}
			// Mirror the ancestry walk to keep containment acyclic: a
			// group below the dragged node can never capture it.
			if geometry.IsAncestor(other, nodeID, g) {
				continue
			}
			overlap := rect.IntersectionArea(other.Rect())
			if overlap/area >= required {
				candidates = append(candidates, candidate{group: other, overlap: overlap})
			}
		}
	}

	if len(candidates) == 0 {
		if node.ParentID == "" {
			return &Decision{NodeID: nodeID, Changed: false}, nil
		}
		// Detach: the node keeps its absolute spot on the canvas.
		return &Decision{NodeID: nodeID, ParentID: "", Position: abs, Changed: true}, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].group.ZIndex != candidates[j].group.ZIndex {
			return candidates[i].group.ZIndex > candidates[j].group.ZIndex
		}
		return candidates[i].overlap > candidates[j].overlap
	})
	target := candidates[0].group

	if target.ID == node.ParentID {
		return &Decision{NodeID: nodeID, Changed: false}, nil
	}
	return &Decision{
		NodeID:   nodeID,
		ParentID: target.ID,
		Position: geometry.ToRelative(abs, target),
		Changed:  true,
	}, nil
}
