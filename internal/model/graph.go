// Package model implements the canonical in-memory workflow graph: an arena
// of nodes keyed by id, the edge list, viewport and selection. All mutating
// calls are synchronous and atomic behind a single lock, which is what keeps
// the history stack consistent.
package model

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/latticehq/lattice/internal/logging"
	"github.com/latticehq/lattice/pkg/domain"
)

// Graph owns every node and edge of a workflow. Parent references and edge
// endpoints are resolved by id lookup against the arena, never by pointer.
type Graph struct {
	mu sync.Mutex

	nodes map[string]*domain.Node
	order []string // node ids in insertion order
	edges []domain.Edge

	viewport domain.Viewport
	selected []string

	logger *slog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the structured logger used for invariant violations.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// NewGraph creates an empty graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		nodes:  make(map[string]*domain.Node),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewNode builds a fresh node with a generated id, the default size for its
// kind and an idle status. It does not insert the node into any graph.
func NewNode(kind domain.Kind, pos domain.Position, data map[string]any) *domain.Node {
	return &domain.Node{
		ID:       uuid.NewString(),
		Kind:     kind,
		Position: pos,
		Size:     DefaultSize(kind),
		Data:     data,
		Status:   domain.StatusIdle,
	}
}

// DefaultSize returns the canvas default extent for a node kind.
func DefaultSize(kind domain.Kind) domain.Size {
	switch kind {
	case domain.KindGroup:
		return domain.Size{Width: 480, Height: 360}
	case domain.KindSticky:
		return domain.Size{Width: 200, Height: 200}
	case domain.KindConnector:
		return domain.Size{Width: 40, Height: 40}
	default:
		return domain.Size{Width: 320, Height: 180}
	}
}

// GetNode returns a copy of the node, or domain.ErrNodeNotFound.
func (g *Graph) GetNode(id string) (*domain.Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return n.Clone(), nil
}

// Node implements geometry.Resolver. It returns a copy.
func (g *Graph) Node(id string) (*domain.Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// NodeCount implements geometry.Resolver.
func (g *Graph) NodeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []*domain.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*domain.Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].Clone())
	}
	return out
}

// Edges returns copies of all edges in insertion order.
func (g *Graph) Edges() []domain.Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Edge(nil), g.edges...)
}

// GetEdge returns a copy of the edge, or domain.ErrEdgeNotFound.
func (g *Graph) GetEdge(id string) (*domain.Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.edges {
		if g.edges[i].ID == id {
			e := g.edges[i]
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrEdgeNotFound, id)
}

// GetChildren returns copies of the direct children of the given group,
// in insertion order.
func (g *Graph) GetChildren(groupID string) []*domain.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*domain.Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.ParentID == groupID {
			out = append(out, n.Clone())
		}
	}
	return out
}

// Viewport returns the current pan/zoom state.
func (g *Graph) Viewport() domain.Viewport {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.viewport
}

// Selection returns the currently selected node ids.
func (g *Graph) Selection() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.selected...)
}

// Snapshot produces a full workflow snapshot: nodes in insertion order,
// edges, viewport and selection, all copied.
func (g *Graph) Snapshot() *domain.Workflow {
	g.mu.Lock()
	defer g.mu.Unlock()
	wf := &domain.Workflow{
		Nodes:    make([]domain.Node, 0, len(g.order)),
		Edges:    append([]domain.Edge(nil), g.edges...),
		Viewport: g.viewport,
	}
	if wf.Edges == nil {
		wf.Edges = []domain.Edge{}
	}
	for _, id := range g.order {
		wf.Nodes = append(wf.Nodes, *g.nodes[id].Clone())
	}
	if len(g.selected) > 0 {
		wf.SelectedNodeIDs = append([]string(nil), g.selected...)
	}
	return wf
}

// Load replaces the graph contents with the given snapshot after validating
// its invariants: unique ids, edge endpoints that exist, parent references
// that point at group nodes, and no group with a parent.
func (g *Graph) Load(wf *domain.Workflow) error {
	nodes := make(map[string]*domain.Node, len(wf.Nodes))
	order := make([]string, 0, len(wf.Nodes))
	for i := range wf.Nodes {
		n := wf.Nodes[i]
		if n.ID == "" {
			return fmt.Errorf("node %d has no id", i)
		}
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("%w: node %s", domain.ErrDuplicateID, n.ID)
		}
		if n.Kind == domain.KindGroup && n.ParentID != "" {
			return fmt.Errorf("%w: %s", domain.ErrGroupParent, n.ID)
		}
		if n.Status == "" {
			n.Status = domain.StatusIdle
		}
		nodes[n.ID] = n.Clone()
		order = append(order, n.ID)
	}
	for _, n := range nodes {
		if n.ParentID == "" {
			continue
		}
		parent, ok := nodes[n.ParentID]
		if !ok {
			return fmt.Errorf("node %s references missing parent %s", n.ID, n.ParentID)
		}
		if parent.Kind != domain.KindGroup {
			return fmt.Errorf("node %s has non-group parent %s", n.ID, n.ParentID)
		}
	}
	edges := make([]domain.Edge, 0, len(wf.Edges))
	seen := make(map[string]struct{}, len(wf.Edges))
	for _, e := range wf.Edges {
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: edge %s", domain.ErrDuplicateID, e.ID)
		}
		seen[e.ID] = struct{}{}
		if _, ok := nodes[e.Source]; !ok {
			return fmt.Errorf("%w: edge %s source %s", domain.ErrInvalidConnection, e.ID, e.Source)
		}
		if _, ok := nodes[e.Target]; !ok {
			return fmt.Errorf("%w: edge %s target %s", domain.ErrInvalidConnection, e.ID, e.Target)
		}
		edges = append(edges, e)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = nodes
	g.order = order
	g.edges = edges
	g.viewport = wf.Viewport
	g.selected = append([]string(nil), wf.SelectedNodeIDs...)
	return nil
}
