package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/latticehq/lattice/pkg/domain"
)

// planNode is the per-run bookkeeping for one node: its remaining upstream
// count, downstream links and eventual outcome. Status here mirrors what is
// written to the graph, kept locally so workers never re-read the model.
type planNode struct {
	node *domain.Node

	deps       atomic.Int32
	dependents []*planNode
	upstream   []*planNode // direct upstream, edge insertion order

	mu     sync.Mutex
	status domain.ExecutionStatus
	output any
	err    error
}

func (p *planNode) setOutcome(status domain.ExecutionStatus, output any, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	p.output = output
	p.err = err
}

func (p *planNode) outcome() (domain.ExecutionStatus, any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.output, p.err
}

// plan is a runnable subset of the graph with dependency links resolved.
type plan struct {
	nodes map[string]*planNode
	order []string // node ids in graph insertion order
	// cyclic holds ids that can never become eligible because they sit on
	// a dependency cycle. They are excluded from the worker pool and
	// failed up front.
	cyclic []string
}

// buildPlan links the selected nodes through the given edges. Self-loops
// contribute no ordering constraint. Edges touching nodes outside the
// selection are ignored; the caller decides how outside dependencies are
// satisfied.
func buildPlan(nodes []*domain.Node, edges []domain.Edge) *plan {
	p := &plan{nodes: make(map[string]*planNode, len(nodes))}
	for _, n := range nodes {
		p.nodes[n.ID] = &planNode{node: n, status: domain.StatusIdle}
		p.order = append(p.order, n.ID)
	}

	type link struct{ src, tgt string }
	seen := make(map[link]struct{})
	for _, e := range edges {
		if e.SelfLoop() {
			continue
		}
		src, okS := p.nodes[e.Source]
		tgt, okT := p.nodes[e.Target]
		if !okS || !okT {
			continue
		}
		// Parallel edges between the same pair count once.
		l := link{e.Source, e.Target}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		src.dependents = append(src.dependents, tgt)
		tgt.upstream = append(tgt.upstream, src)
		tgt.deps.Add(1)
	}

	p.findCycles()
	return p
}

// findCycles runs Kahn's elimination over a scratch copy of the dependency
// counts. Whatever cannot be eliminated sits on a cycle.
func (p *plan) findCycles() {
	remaining := make(map[string]int, len(p.nodes))
	queue := make([]*planNode, 0, len(p.nodes))
	for id, pn := range p.nodes {
		d := int(pn.deps.Load())
		remaining[id] = d
		if d == 0 {
			queue = append(queue, pn)
		}
	}
	processed := 0
	for len(queue) > 0 {
		pn := queue[0]
		queue = queue[1:]
		processed++
		for _, dep := range pn.dependents {
			remaining[dep.node.ID]--
			if remaining[dep.node.ID] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if processed == len(p.nodes) {
		return
	}
	for _, id := range p.order {
		if remaining[id] > 0 {
			p.cyclic = append(p.cyclic, id)
		}
	}
}

// roots returns the nodes that are eligible immediately.
func (p *plan) roots() []*planNode {
	var out []*planNode
	for _, id := range p.order {
		pn := p.nodes[id]
		if pn.deps.Load() == 0 {
			out = append(out, pn)
		}
	}
	return out
}

// upstreamClosure returns the ids of every transitive upstream producer of
// the given node, following incoming edges. Self-loops are skipped; the walk
// is bounded by the node count.
func upstreamClosure(id string, edges []domain.Edge) map[string]struct{} {
	incoming := make(map[string][]string)
	for _, e := range edges {
		if e.SelfLoop() {
			continue
		}
		incoming[e.Target] = append(incoming[e.Target], e.Source)
	}
	closure := make(map[string]struct{})
	stack := append([]string(nil), incoming[id]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := closure[cur]; seen || cur == id {
			continue
		}
		closure[cur] = struct{}{}
		stack = append(stack, incoming[cur]...)
	}
	return closure
}
