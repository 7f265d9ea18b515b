package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/internal/model"
	"github.com/latticehq/lattice/internal/scheduler"
	"github.com/latticehq/lattice/pkg/domain"
	"github.com/latticehq/lattice/pkg/ports"
)

// recorder tracks which nodes a runner was invoked for, in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) runner(out func(nc ports.NodeContext) (any, error)) ports.Runner {
	return ports.RunnerFunc(func(ctx context.Context, nc ports.NodeContext) (any, error) {
		r.mu.Lock()
		r.calls = append(r.calls, nc.NodeID)
		r.mu.Unlock()
		if out == nil {
			return nc.NodeID + "-out", nil
		}
		return out(nc)
	})
}

func (r *recorder) invoked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func chain(t *testing.T, ids ...string) *model.Graph {
	t.Helper()
	g := model.NewGraph()
	for _, id := range ids {
		require.NoError(t, g.InsertNode(&domain.Node{ID: id, Kind: domain.KindText}))
	}
	for i := 1; i < len(ids); i++ {
		_, err := g.Connect(ids[i-1], ids[i], "", "")
		require.NoError(t, err)
	}
	return g
}

func status(t *testing.T, g *model.Graph, id string) domain.ExecutionStatus {
	t.Helper()
	n, err := g.GetNode(id)
	require.NoError(t, err)
	return n.Status
}

func TestRunWorkflow_DependencyOrder(t *testing.T) {
	g := chain(t, "a", "b", "c")
	rec := &recorder{}
	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, rec.runner(nil))

	s := scheduler.New(g, reg)
	res, err := s.RunWorkflow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, rec.invoked())
	assert.Equal(t, 3, res.Executed)
	assert.Zero(t, res.Failed)
	assert.False(t, res.Cancelled)
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, domain.StatusSuccess, status(t, g, id))
		assert.Equal(t, id+"-out", res.Nodes[id].Output)
	}
}

func TestRunWorkflow_UpstreamOutputsDelivered(t *testing.T) {
	g := chain(t, "a", "b")
	rec := &recorder{}
	var got []ports.UpstreamOutput
	var mu sync.Mutex
	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, rec.runner(func(nc ports.NodeContext) (any, error) {
		if nc.NodeID == "b" {
			mu.Lock()
			got = nc.Upstream
			mu.Unlock()
		}
		return nc.NodeID + "-out", nil
	}))

	_, err := scheduler.New(g, reg).RunWorkflow(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].NodeID)
	assert.Equal(t, domain.KindText, got[0].Kind)
	assert.Equal(t, "a-out", got[0].Output)
}

func TestRunWorkflow_FailurePoisonsDownstream(t *testing.T) {
	g := chain(t, "a", "b", "c")
	boom := errors.New("boom")
	rec := &recorder{}
	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, rec.runner(func(nc ports.NodeContext) (any, error) {
		if nc.NodeID == "a" {
			return nil, boom
		}
		return nc.NodeID + "-out", nil
	}))

	res, err := scheduler.New(g, reg).RunWorkflow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, rec.invoked(), "poisoned nodes are never invoked")
	assert.Equal(t, 3, res.Failed)
	assert.Zero(t, res.Executed)
	assert.ErrorIs(t, res.Nodes["a"].Err, boom)
	for _, id := range []string{"b", "c"} {
		assert.Equal(t, domain.StatusError, status(t, g, id))
		assert.ErrorIs(t, res.Nodes[id].Err, domain.ErrUpstreamFailed)
		assert.Equal(t, scheduler.ReasonUpstreamFailed, res.Nodes[id].Reason)
	}
}

func TestRunWorkflow_StructuralBypassed(t *testing.T) {
	g := model.NewGraph()
	require.NoError(t, g.InsertNode(&domain.Node{ID: "note", Kind: domain.KindSticky}))
	require.NoError(t, g.InsertNode(&domain.Node{ID: "a", Kind: domain.KindText}))
	require.NoError(t, g.InsertNode(&domain.Node{ID: "hub", Kind: domain.KindConnector}))
	require.NoError(t, g.InsertNode(&domain.Node{ID: "b", Kind: domain.KindText}))
	_, err := g.Connect("a", "hub", "", "")
	require.NoError(t, err)
	_, err = g.Connect("hub", "b", "", "")
	require.NoError(t, err)

	rec := &recorder{}
	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, rec.runner(nil))

	res, err := scheduler.New(g, reg).RunWorkflow(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, rec.invoked())
	assert.Equal(t, 2, res.Executed)
	assert.Equal(t, domain.StatusBypassed, status(t, g, "note"))
	assert.Equal(t, domain.StatusBypassed, status(t, g, "hub"))
	assert.Equal(t, domain.StatusSuccess, status(t, g, "b"))
}

func TestRunWorkflow_CycleFailsItsCone(t *testing.T) {
	g := model.NewGraph()
	for _, id := range []string{"a", "b", "down", "solo"} {
		require.NoError(t, g.InsertNode(&domain.Node{ID: id, Kind: domain.KindText}))
	}
	_, err := g.Connect("a", "b", "", "")
	require.NoError(t, err)
	_, err = g.Connect("b", "a", "", "")
	require.NoError(t, err)
	_, err = g.Connect("b", "down", "", "")
	require.NoError(t, err)

	rec := &recorder{}
	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, rec.runner(nil))

	res, err := scheduler.New(g, reg).RunWorkflow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"solo"}, rec.invoked())
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, 3, res.Failed)
	for _, id := range []string{"a", "b", "down"} {
		assert.Equal(t, domain.StatusError, status(t, g, id))
	}
	assert.Equal(t, domain.StatusSuccess, status(t, g, "solo"))
}

func TestRunWorkflow_SelfLoopIsNoConstraint(t *testing.T) {
	g := model.NewGraph()
	require.NoError(t, g.InsertNode(&domain.Node{ID: "a", Kind: domain.KindText}))
	_, err := g.Connect("a", "a", "", "")
	require.NoError(t, err)

	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, ports.Passthrough())

	res, err := scheduler.New(g, reg).RunWorkflow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Executed)
	assert.Zero(t, res.Failed)
}

func TestRunWorkflow_NoRunner(t *testing.T) {
	g := chain(t, "a")
	res, err := scheduler.New(g, ports.NewRunnerRegistry()).RunWorkflow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.ErrorContains(t, res.Nodes["a"].Err, "no runner registered")
	assert.Equal(t, domain.StatusError, status(t, g, "a"))
}

func TestRunWorkflow_Cancel(t *testing.T) {
	g := chain(t, "a", "b")
	started := make(chan struct{})
	var mu sync.Mutex
	var calls []string
	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, ports.RunnerFunc(func(ctx context.Context, nc ports.NodeContext) (any, error) {
		mu.Lock()
		calls = append(calls, nc.NodeID)
		mu.Unlock()
		if nc.NodeID == "a" {
			close(started)
			<-ctx.Done()
		}
		return nc.NodeID + "-out", nil
	}))

	s := scheduler.New(g, reg)
	done := make(chan *scheduler.Result, 1)
	go func() {
		res, err := s.RunWorkflow(context.Background())
		require.NoError(t, err)
		done <- res
	}()

	<-started
	assert.True(t, s.Running())
	s.Cancel()

	select {
	case res := <-done:
		assert.True(t, res.Cancelled)
		// The started node is discarded even though its runner returned a
		// value; the never-started one keeps its idle status.
		assert.Equal(t, domain.StatusError, status(t, g, "a"))
		assert.ErrorIs(t, res.Nodes["a"].Err, domain.ErrCancelled)
		assert.Equal(t, scheduler.ReasonCancelled, res.Nodes["a"].Reason)
		assert.Equal(t, domain.StatusIdle, status(t, g, "b"))
		mu.Lock()
		assert.Equal(t, []string{"a"}, calls)
		mu.Unlock()
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	assert.False(t, s.Running())
}

func TestRunWorkflow_SingleFlight(t *testing.T) {
	g := chain(t, "a")
	started := make(chan struct{})
	release := make(chan struct{})
	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, ports.RunnerFunc(func(ctx context.Context, nc ports.NodeContext) (any, error) {
		close(started)
		<-release
		return nil, nil
	}))

	s := scheduler.New(g, reg)
	go s.RunWorkflow(context.Background())
	<-started

	_, err := s.RunWorkflow(context.Background())
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	close(release)
}

func TestRunNode_Force(t *testing.T) {
	g := chain(t, "a", "b")
	rec := &recorder{}
	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, rec.runner(nil))
	s := scheduler.New(g, reg)

	// Force ignores the never-run upstream entirely.
	res, err := s.RunNode(context.Background(), "b", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, rec.invoked())
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, domain.StatusIdle, status(t, g, "a"))
	assert.Equal(t, domain.StatusSuccess, status(t, g, "b"))
}

func TestRunNode_RunsUnfinishedUpstream(t *testing.T) {
	g := chain(t, "a", "b", "c")
	rec := &recorder{}
	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, rec.runner(nil))
	s := scheduler.New(g, reg)

	res, err := s.RunNode(context.Background(), "b", false)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, rec.invoked())
	assert.Equal(t, 2, res.Executed)
	assert.Equal(t, domain.StatusIdle, status(t, g, "c"), "downstream is untouched")
}

func TestRunNode_ReusesCachedUpstream(t *testing.T) {
	g := chain(t, "a", "b")
	rec := &recorder{}
	var seen []ports.UpstreamOutput
	var mu sync.Mutex
	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, rec.runner(func(nc ports.NodeContext) (any, error) {
		if nc.NodeID == "b" {
			mu.Lock()
			seen = nc.Upstream
			mu.Unlock()
		}
		return nc.NodeID + "-out", nil
	}))
	s := scheduler.New(g, reg)

	_, err := s.RunWorkflow(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, rec.invoked())

	_, err = s.RunNode(context.Background(), "b", false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "b"}, rec.invoked(), "finished upstream feeds from the cache")
	require.Len(t, seen, 1)
	assert.Equal(t, "a-out", seen[0].Output)
}

func TestRunNode_Unknown(t *testing.T) {
	g := chain(t, "a")
	_, err := scheduler.New(g, ports.NewRunnerRegistry()).RunNode(context.Background(), "nope", false)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestHooksFire(t *testing.T) {
	g := chain(t, "a")
	reg := ports.NewRunnerRegistry()
	reg.Register(domain.KindText, ports.Passthrough())

	var mu sync.Mutex
	var statuses []domain.ExecutionStatus
	var runDone int
	s := scheduler.New(g, reg, scheduler.WithHooks(domain.LifecycleHooks{
		OnNodeStatusChange: func(ctx context.Context, e *domain.NodeStatusEvent) {
			mu.Lock()
			statuses = append(statuses, e.Status)
			mu.Unlock()
		},
		OnRunComplete: func(ctx context.Context, e *domain.RunEvent) {
			mu.Lock()
			runDone++
			mu.Unlock()
		},
	}))

	_, err := s.RunWorkflow(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.ExecutionStatus{domain.StatusRunning, domain.StatusSuccess}, statuses)
	assert.Equal(t, 1, runDone)
}
