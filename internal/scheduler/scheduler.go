// Package scheduler executes workflow graphs in dependency order over a
// bounded worker pool. Structural nodes are bypassed without invoking a
// runner; a failed node poisons its downstream cone, which is marked failed
// without ever running.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/latticehq/lattice/internal/infrastructure/metrics"
	"github.com/latticehq/lattice/internal/logging"
	"github.com/latticehq/lattice/internal/model"
	"github.com/latticehq/lattice/pkg/domain"
	"github.com/latticehq/lattice/pkg/ports"
)

// DefaultWorkers bounds runner concurrency when no explicit pool size is set.
const DefaultWorkers = 4

// ReasonUpstreamFailed and friends annotate error statuses in events and
// results so callers can tell a runner failure from a propagated one.
const (
	ReasonUpstreamFailed = "upstream_failed"
	ReasonCancelled      = "cancelled"
	ReasonCycle          = "dependency_cycle"
	ReasonNoRunner       = "no_runner"
)

// NodeResult is the per-node outcome of a run.
type NodeResult struct {
	NodeID string
	Status domain.ExecutionStatus
	Output any
	Err    error
	Reason string
}

// Result summarises a whole run.
type Result struct {
	Executed  int
	Failed    int
	Cancelled bool
	Duration  time.Duration
	Nodes     map[string]NodeResult
}

// Scheduler runs the executable nodes of a graph. At most one run may be in
// flight at a time; successful outputs are cached between runs so a single
// node can be re-run against previously computed upstream values.
type Scheduler struct {
	graph    *model.Graph
	registry *ports.RunnerRegistry
	workers  int
	logger   *slog.Logger
	hooks    domain.LifecycleHooks

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	outputs map[string]any
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the worker pool size. Values below one are ignored.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHooks installs lifecycle callbacks fired on status transitions and
// run completion. Callbacks run synchronously on scheduler goroutines.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(s *Scheduler) { s.hooks = h }
}

// New creates a scheduler over the given graph and runner registry.
func New(g *model.Graph, registry *ports.RunnerRegistry, opts ...Option) *Scheduler {
	s := &Scheduler{
		graph:    g,
		registry: registry,
		workers:  DefaultWorkers,
		logger:   logging.NewNop(),
		outputs:  make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Running reports whether a run is currently in flight.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Cancel aborts the in-flight run, if any. Nodes that already started
// finish as cancelled; nodes that never started keep their idle status.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// RunWorkflow executes every node of the graph in dependency order. All
// statuses are reset to idle first and the output cache is cleared.
// Returns domain.ErrRunInProgress if another run is active.
func (s *Scheduler) RunWorkflow(ctx context.Context) (*Result, error) {
	runCtx, err := s.begin(ctx, true)
	if err != nil {
		return nil, err
	}
	defer s.end()

	s.graph.ResetStatuses()
	p := buildPlan(s.graph.Nodes(), s.graph.Edges())
	return s.execute(runCtx, p), nil
}

// RunNode executes a single node. With force set, the node runs immediately
// against whatever upstream outputs are cached from earlier runs. Without
// force, any upstream producer that has not yet succeeded is executed first.
func (s *Scheduler) RunNode(ctx context.Context, id string, force bool) (*Result, error) {
	target, err := s.graph.GetNode(id)
	if err != nil {
		return nil, fmt.Errorf("run node %s: %w", id, err)
	}

	runCtx, err := s.begin(ctx, false)
	if err != nil {
		return nil, err
	}
	defer s.end()

	edges := s.graph.Edges()
	selected := []*domain.Node{target}
	if !force {
		closure := upstreamClosure(id, edges)
		for _, n := range s.graph.Nodes() {
			if _, in := closure[n.ID]; !in {
				continue
			}
			// Finished producers feed from the cache instead of
			// re-running.
			if n.Status == domain.StatusSuccess || n.Status == domain.StatusBypassed {
				if _, cached := s.cachedOutput(n.ID); cached || n.Status == domain.StatusBypassed {
					continue
				}
			}
			selected = append(selected, n)
		}
	}
	for _, n := range selected {
		s.graph.SetStatus(n.ID, domain.StatusIdle)
		n.Status = domain.StatusIdle
	}
	p := buildPlan(selected, edges)
	return s.execute(runCtx, p), nil
}

func (s *Scheduler) begin(ctx context.Context, clearCache bool) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, domain.ErrRunInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	if clearCache {
		s.outputs = make(map[string]any)
	}
	return runCtx, nil
}

func (s *Scheduler) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.cancel = nil
}

func (s *Scheduler) cachedOutput(id string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outputs[id]
	return out, ok
}

func (s *Scheduler) storeOutput(id string, out any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[id] = out
}

func (s *Scheduler) execute(ctx context.Context, p *plan) *Result {
	started := time.Now()

	// Cyclic nodes can never be scheduled; fail them before the pool
	// starts so their dependents see a failed upstream.
	for _, id := range p.cyclic {
		pn := p.nodes[id]
		pn.setOutcome(domain.StatusError, nil, fmt.Errorf("node %s: %s", id, ReasonCycle))
		s.transition(ctx, pn, domain.StatusError, ReasonCycle)
		s.logger.Warn("node on dependency cycle", "node_id", id)
	}

	runnable := len(p.nodes) - len(p.cyclic)
	ready := make(chan *planNode, len(p.nodes))
	var wg sync.WaitGroup
	wg.Add(runnable)

	cyclic := make(map[string]struct{}, len(p.cyclic))
	for _, id := range p.cyclic {
		cyclic[id] = struct{}{}
	}
	for _, pn := range p.roots() {
		if _, bad := cyclic[pn.node.ID]; bad {
			continue
		}
		ready <- pn
	}

	workers := s.workers
	if workers > runnable {
		workers = runnable
	}
	for i := 0; i < workers; i++ {
		go func() {
			for pn := range ready {
				s.runOne(ctx, pn)
				for _, dep := range pn.dependents {
					if dep.deps.Add(-1) == 0 {
						ready <- dep
					}
				}
				wg.Done()
			}
		}()
	}
	wg.Wait()
	close(ready)

	res := s.collect(ctx, p, time.Since(started))
	metrics.ObserveRunDuration(res.Duration.Seconds())
	if s.hooks.OnRunComplete != nil {
		s.hooks.OnRunComplete(ctx, &domain.RunEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRunCompleted},
			Executed:  res.Executed,
			Failed:    res.Failed,
			Cancelled: res.Cancelled,
		})
	}
	return res
}

// runOne drives a single node to a terminal state. It never blocks on other
// plan nodes: by the time it is called every upstream node is terminal.
func (s *Scheduler) runOne(ctx context.Context, pn *planNode) {
	id := pn.node.ID

	if ctx.Err() != nil {
		// Never started: stays idle.
		return
	}

	if pn.node.Kind.Structural() {
		pn.setOutcome(domain.StatusBypassed, nil, nil)
		s.transition(ctx, pn, domain.StatusBypassed, "")
		return
	}

	if failed := s.firstFailedUpstream(pn); failed != "" {
		err := fmt.Errorf("node %s: upstream %s failed: %w", id, failed, domain.ErrUpstreamFailed)
		pn.setOutcome(domain.StatusError, nil, err)
		s.transition(ctx, pn, domain.StatusError, ReasonUpstreamFailed)
		return
	}

	runner, err := s.registry.Resolve(pn.node.Kind)
	if err != nil {
		pn.setOutcome(domain.StatusError, nil, fmt.Errorf("node %s: %w", id, err))
		s.transition(ctx, pn, domain.StatusError, ReasonNoRunner)
		return
	}

	s.transition(ctx, pn, domain.StatusRunning, "")
	s.logger.Debug("node started", "node_id", id, "kind", pn.node.Kind)

	metrics.WorkerStarted()
	out, err := runner.Run(ctx, s.nodeContext(pn))
	metrics.WorkerDone()

	if ctx.Err() != nil {
		// The run was cancelled while this node executed; discard
		// whatever the runner produced.
		err = domain.ErrCancelled
	}
	if err != nil {
		reason := ""
		if errors.Is(err, domain.ErrCancelled) || errors.Is(err, context.Canceled) {
			reason = ReasonCancelled
		}
		pn.setOutcome(domain.StatusError, nil, fmt.Errorf("node %s: %w", id, err))
		s.transition(ctx, pn, domain.StatusError, reason)
		s.logger.Warn("node failed", "node_id", id, "error", err)
		return
	}

	pn.setOutcome(domain.StatusSuccess, out, nil)
	s.storeOutput(id, out)
	s.transition(ctx, pn, domain.StatusSuccess, "")
	s.logger.Debug("node finished", "node_id", id)
}

// firstFailedUpstream returns the id of the first in-plan upstream node that
// ended in error, or "" when every upstream dependency is satisfied.
// Upstream nodes outside the plan satisfied from the cache are not checked;
// the plan builder only excludes nodes that already succeeded.
func (s *Scheduler) firstFailedUpstream(pn *planNode) string {
	for _, up := range pn.upstream {
		if status, _, _ := up.outcome(); status == domain.StatusError {
			return up.node.ID
		}
	}
	return ""
}

// nodeContext assembles the runner input: the node's own data plus the
// outputs of its successful direct upstream neighbours in edge order.
// Failed or bypassed producers contribute nothing.
func (s *Scheduler) nodeContext(pn *planNode) ports.NodeContext {
	var upstream []ports.UpstreamOutput
	seen := make(map[string]struct{})
	for _, e := range s.graph.Edges() {
		if e.Target != pn.node.ID || e.SelfLoop() {
			continue
		}
		if _, dup := seen[e.Source]; dup {
			continue
		}
		seen[e.Source] = struct{}{}
		src, err := s.graph.GetNode(e.Source)
		if err != nil {
			continue
		}
		out, cached := s.cachedOutput(e.Source)
		if !cached {
			continue
		}
		upstream = append(upstream, ports.UpstreamOutput{
			NodeID: e.Source,
			Kind:   src.Kind,
			Output: out,
		})
	}
	return ports.NodeContext{
		NodeID:   pn.node.ID,
		Kind:     pn.node.Kind,
		Data:     pn.node.Data,
		Upstream: upstream,
	}
}

// transition writes the status to the graph and fires hooks and metrics.
func (s *Scheduler) transition(ctx context.Context, pn *planNode, status domain.ExecutionStatus, reason string) {
	s.graph.SetStatus(pn.node.ID, status)
	if status.Terminal() {
		metrics.NodeExecuted(string(status))
	}
	if s.hooks.OnNodeStatusChange != nil {
		s.hooks.OnNodeStatusChange(ctx, &domain.NodeStatusEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeStatusChanged},
			NodeID:    pn.node.ID,
			Kind:      pn.node.Kind,
			Status:    status,
			Reason:    reason,
		})
	}
}

func (s *Scheduler) collect(ctx context.Context, p *plan, elapsed time.Duration) *Result {
	res := &Result{
		Duration:  elapsed,
		Cancelled: ctx.Err() != nil,
		Nodes:     make(map[string]NodeResult, len(p.nodes)),
	}
	for _, id := range p.order {
		pn := p.nodes[id]
		status, out, err := pn.outcome()
		nr := NodeResult{NodeID: id, Status: status, Output: out, Err: err}
		switch status {
		case domain.StatusSuccess:
			res.Executed++
		case domain.StatusError:
			res.Failed++
			switch {
			case errors.Is(err, domain.ErrUpstreamFailed):
				nr.Reason = ReasonUpstreamFailed
			case errors.Is(err, domain.ErrCancelled):
				nr.Reason = ReasonCancelled
			}
		}
		res.Nodes[id] = nr
	}
	return res
}
