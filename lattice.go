// Package lattice is a headless workflow-canvas engine: a graph of nodes,
// edges and nested groups with undo/redo history, clipboard semantics,
// geometric group containment and a dependency-ordered execution scheduler.
// The Engine is the high-level entry point; hosts drive it with commands and
// observe it through snapshots and lifecycle hooks.
package lattice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/latticehq/lattice/internal/clipboard"
	"github.com/latticehq/lattice/internal/containment"
	"github.com/latticehq/lattice/internal/history"
	"github.com/latticehq/lattice/internal/infrastructure/metrics"
	"github.com/latticehq/lattice/internal/layout"
	"github.com/latticehq/lattice/internal/logging"
	"github.com/latticehq/lattice/internal/model"
	"github.com/latticehq/lattice/internal/presentation/graph"
	"github.com/latticehq/lattice/internal/scheduler"
	"github.com/latticehq/lattice/pkg/domain"
	"github.com/latticehq/lattice/pkg/ports"
)

// Engine owns one workflow graph and everything attached to it: history,
// clipboard, containment and the scheduler. All command methods are safe for
// concurrent use; each one is atomic and lands as a single history entry.
type Engine struct {
	mu sync.Mutex

	graph       *model.Graph
	history     *history.Stack
	containment *containment.Engine
	registry    *ports.RunnerRegistry
	scheduler   *scheduler.Scheduler
	store       ports.SnapshotStore
	buffer      *clipboard.Entry

	hooks  domain.LifecycleHooks
	logger *slog.Logger

	workers      int
	historyDepth int
	containCfg   containment.Config
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkers bounds runner concurrency during workflow execution.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithHistoryDepth bounds the undo log.
func WithHistoryDepth(depth int) Option {
	return func(e *Engine) { e.historyDepth = depth }
}

// WithContainmentConfig overrides the group containment thresholds.
func WithContainmentConfig(cfg containment.Config) Option {
	return func(e *Engine) { e.containCfg = cfg }
}

// WithSnapshotStore attaches a persistence backend for Save and Open.
func WithSnapshotStore(store ports.SnapshotStore) Option {
	return func(e *Engine) { e.store = store }
}

// New initializes an Engine with an empty graph.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:       logging.NewNop(),
		workers:      scheduler.DefaultWorkers,
		historyDepth: history.DefaultDepth,
		containCfg:   containment.DefaultConfig(),
		registry:     ports.NewRunnerRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.graph = model.NewGraph(model.WithLogger(e.logger))
	e.history = history.NewStack(e.historyDepth)
	e.containment = containment.New(e.containCfg)
	e.scheduler = scheduler.New(e.graph, e.registry,
		scheduler.WithWorkers(e.workers),
		scheduler.WithLogger(e.logger),
		scheduler.WithHooks(e.hooks),
	)
	return e
}

// RegisterRunner installs the runner invoked for nodes of the given kind.
func (e *Engine) RegisterRunner(kind domain.Kind, runner ports.Runner) {
	e.registry.Register(kind, runner)
}

// do applies a command through the history stack and fires mutation hooks.
func (e *Engine) do(cmd history.Command, nodeIDs ...string) error {
	if err := e.history.Do(e.graph, cmd); err != nil {
		return err
	}
	e.afterMutation(cmd.Name(), nodeIDs)
	return nil
}

func (e *Engine) afterMutation(command string, nodeIDs []string) {
	metrics.CommandApplied(command)
	e.logger.Debug("command applied", "command", command)
	if e.hooks.OnGraphMutate != nil {
		e.hooks.OnGraphMutate(context.Background(), &domain.MutationEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventGraphMutated},
			Command:   command,
			NodeIDs:   nodeIDs,
		})
	}
}

// AddNode creates a node of the given kind at a position and inserts it.
// The returned node carries the generated id and the default size for its
// kind.
func (e *Engine) AddNode(kind domain.Kind, pos domain.Position, data map[string]any) (*domain.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := model.NewNode(kind, pos, data)
	if err := e.do(&history.AddNode{Node: *n}, n.ID); err != nil {
		return nil, err
	}
	return n, nil
}

// UpdateNode merges a patch into the node's payload. A nil patch value
// removes the key. The full before/after payloads land in history, so undo
// restores the exact prior state.
func (e *Engine) UpdateNode(id string, patch map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.graph.GetNode(id)
	if err != nil {
		return err
	}
	merged := make(map[string]any, len(n.Data)+len(patch))
	for k, v := range n.Data {
		merged[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return e.do(&history.SetData{ID: id, Data: merged}, id)
}

// MoveNode sets a node's position in its current coordinate frame.
func (e *Engine) MoveNode(id string, pos domain.Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.do(&history.MoveNode{ID: id, To: pos}, id)
}

// ResizeNode sets a node's size.
func (e *Engine) ResizeNode(id string, size domain.Size) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.do(&history.ResizeNode{ID: id, To: size}, id)
}

// SetZIndex changes a node's stacking order.
func (e *Engine) SetZIndex(id string, z int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.do(&history.SetZIndex{ID: id, To: z}, id)
}

// DeleteNode removes a node, its incident edges and, for groups, detaches
// children back to absolute coordinates. One history entry undoes it all.
func (e *Engine) DeleteNode(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.do(&history.DeleteNode{ID: id}, id)
}

// Connect creates an edge between two nodes.
func (e *Engine) Connect(source, target, sourceHandle, targetHandle string) (*domain.Edge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cmd := &history.Connect{Edge: domain.Edge{
		Source:       source,
		Target:       target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}}
	if err := e.do(cmd, source, target); err != nil {
		return nil, err
	}
	edge := cmd.Edge
	return &edge, nil
}

// Disconnect removes an edge by id.
func (e *Engine) Disconnect(edgeID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.do(&history.Disconnect{ID: edgeID})
}

// EndDrag finishes a node drag: the node lands at pos (in its current
// parent's frame) and group containment is resolved from the resulting
// geometry. Move and reparent undo together as one entry.
func (e *Engine) EndDrag(id string, pos domain.Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Tentatively place the node so containment sees the drop geometry,
	// then rewind; the real mutation goes through history below.
	old, err := e.graph.Move(id, pos)
	if err != nil {
		return err
	}
	decision, derr := e.containment.Resolve(e.graph, id)
	if _, err := e.graph.Move(id, old); err != nil {
		return err
	}
	if derr != nil {
		return derr
	}

	cmds := []history.Command{&history.MoveNode{ID: id, To: pos}}
	if decision.Changed {
		cmds = append(cmds, &history.Reparent{
			ID:       id,
			ParentID: decision.ParentID,
			Position: decision.Position,
		})
	}
	if len(cmds) == 1 {
		return e.do(cmds[0], id)
	}
	return e.do(&history.Composite{Label: "drag", Commands: cmds}, id)
}

// Undo reverts the most recent command. It reports false when the undo
// stack is empty.
func (e *Engine) Undo() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	applied, err := e.history.Undo(e.graph)
	if err != nil {
		return false, err
	}
	if applied {
		e.afterMutation("undo", nil)
	}
	return applied, nil
}

// Redo re-applies the most recently undone command. It reports false when
// the redo stack is empty.
func (e *Engine) Redo() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	applied, err := e.history.Redo(e.graph)
	if err != nil {
		return false, err
	}
	if applied {
		e.afterMutation("redo", nil)
	}
	return applied, nil
}

// CanUndo reports whether an undoable command exists.
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanUndo()
}

// CanRedo reports whether a redoable command exists.
func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanRedo()
}

// Copy captures the given nodes (descending into groups) into the engine's
// clipboard buffer. Edges fully inside the selection come along; boundary
// edges do not. Copy itself is not undoable.
func (e *Engine) Copy(nodeIDs []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, err := clipboard.Copy(e.graph, nodeIDs)
	if err != nil {
		return err
	}
	e.buffer = entry
	return nil
}

// Paste materializes the clipboard buffer with fresh ids, centered on
// target when given, offset from the originals otherwise. Returns the new
// node ids. Pasting an empty buffer is a no-op.
func (e *Engine) Paste(target *domain.Position) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buffer == nil || len(e.buffer.Nodes) == 0 {
		return nil, nil
	}
	cmd, ids := clipboard.Paste(e.buffer, target)
	if err := e.do(cmd, ids...); err != nil {
		return nil, err
	}
	return ids, nil
}

// Duplicate copies and pastes a single node (with its subtree) in one
// step, without touching the clipboard buffer.
func (e *Engine) Duplicate(nodeID string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cmd, ids, err := clipboard.Duplicate(e.graph, nodeID)
	if err != nil {
		return nil, err
	}
	if err := e.do(cmd, ids...); err != nil {
		return nil, err
	}
	return ids, nil
}

// Align lines up the given nodes against the first one.
func (e *Engine) Align(nodeIDs []string, mode layout.AlignMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cmd, err := layout.Align(e.graph, nodeIDs, mode)
	if err != nil {
		return err
	}
	return e.do(cmd, nodeIDs...)
}

// Distribute spaces the given nodes evenly along an axis.
func (e *Engine) Distribute(nodeIDs []string, axis layout.Axis) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cmd, err := layout.Distribute(e.graph, nodeIDs, axis)
	if err != nil {
		return err
	}
	return e.do(cmd, nodeIDs...)
}

// SelectNodes replaces the current selection. Selection is ephemeral UI
// state and never enters history.
func (e *Engine) SelectNodes(nodeIDs []string) {
	e.graph.SetSelection(nodeIDs)
}

// SetViewport stores the camera state. Like selection, it is not undoable.
func (e *Engine) SetViewport(v domain.Viewport) {
	e.graph.SetViewport(v)
}

// Node returns a copy of the node with the given id.
func (e *Engine) Node(id string) (*domain.Node, error) {
	return e.graph.GetNode(id)
}

// Nodes returns copies of all nodes in insertion order.
func (e *Engine) Nodes() []*domain.Node {
	return e.graph.Nodes()
}

// Edges returns all edges in insertion order.
func (e *Engine) Edges() []domain.Edge {
	return e.graph.Edges()
}

// Children returns copies of a group's direct children.
func (e *Engine) Children(groupID string) []*domain.Node {
	return e.graph.GetChildren(groupID)
}

// Snapshot returns a deep copy of the entire workflow state.
func (e *Engine) Snapshot() *domain.Workflow {
	return e.graph.Snapshot()
}

// LoadSnapshot replaces the graph with the given workflow and clears
// history; undo cannot cross a load boundary.
func (e *Engine) LoadSnapshot(wf *domain.Workflow) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.graph.Load(wf); err != nil {
		return err
	}
	e.history.Clear()
	e.afterMutation("load", nil)
	return nil
}

// Save persists the current snapshot under the given id.
func (e *Engine) Save(ctx context.Context, id string) error {
	if e.store == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	wf := e.graph.Snapshot()
	wf.ID = id
	return e.store.Save(ctx, id, wf)
}

// Open loads a stored snapshot and replaces the current graph.
func (e *Engine) Open(ctx context.Context, id string) error {
	if e.store == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	wf, err := e.store.Load(ctx, id)
	if err != nil {
		return err
	}
	return e.LoadSnapshot(wf)
}

// ListWorkflows returns the ids of all stored snapshots.
func (e *Engine) ListWorkflows(ctx context.Context) ([]string, error) {
	if e.store == nil {
		return nil, fmt.Errorf("no snapshot store configured")
	}
	return e.store.List(ctx)
}

// RunWorkflow executes the whole graph in dependency order.
func (e *Engine) RunWorkflow(ctx context.Context) (*scheduler.Result, error) {
	return e.scheduler.RunWorkflow(ctx)
}

// RunNode executes one node. Without force, unfinished upstream producers
// run first; with force, the node runs alone against cached upstream
// outputs.
func (e *Engine) RunNode(ctx context.Context, id string, force bool) (*scheduler.Result, error) {
	return e.scheduler.RunNode(ctx, id, force)
}

// CancelExecution aborts the in-flight run, if any.
func (e *Engine) CancelExecution() {
	e.scheduler.Cancel()
}

// Running reports whether a run is in flight.
func (e *Engine) Running() bool {
	return e.scheduler.Running()
}

// ExportMermaid renders the current graph as a Mermaid flowchart, with
// execution statuses as style classes.
func (e *Engine) ExportMermaid() string {
	wf := e.graph.Snapshot()
	overlay := &graph.StatusOverlay{Statuses: make(map[string]domain.ExecutionStatus, len(wf.Nodes))}
	for _, n := range wf.Nodes {
		overlay.Statuses[n.ID] = n.Status
	}
	return graph.GenerateMermaid(wf, overlay)
}
