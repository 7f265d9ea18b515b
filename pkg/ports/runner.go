package ports

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/latticehq/lattice/pkg/domain"
)

// NodeContext is everything a node invocation receives: its own payload and
// the ordered outputs of its direct upstream neighbors. Deeper aggregation
// (walking the full ancestor closure) is the runner's own business.
type NodeContext struct {
	NodeID   string
	Kind     domain.Kind
	Data     map[string]any
	Upstream []UpstreamOutput
}

// UpstreamOutput is one successful direct-upstream result, in edge
// insertion order.
type UpstreamOutput struct {
	NodeID string
	Kind   domain.Kind
	Output any
}

// Runner is the single capability every executable node kind implements.
// Implementations must observe ctx cancellation and return promptly; the
// scheduler never kills a runner, it only stops waiting for it.
type Runner interface {
	Run(ctx context.Context, nc NodeContext) (any, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, nc NodeContext) (any, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, nc NodeContext) (any, error) {
	return f(ctx, nc)
}

// RunnerRegistry maps node kinds to host-provided runners. Structural kinds
// never resolve: the scheduler bypasses them without consulting the
// registry.
type RunnerRegistry struct {
	mu      sync.RWMutex
	runners map[domain.Kind]Runner
}

// NewRunnerRegistry creates an empty registry.
func NewRunnerRegistry() *RunnerRegistry {
	return &RunnerRegistry{runners: make(map[domain.Kind]Runner)}
}

// Register adds a runner for a kind. An existing runner is overwritten.
func (r *RunnerRegistry) Register(kind domain.Kind, runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[kind] = runner
}

// Resolve returns the runner for a kind.
func (r *RunnerRegistry) Resolve(kind domain.Kind) (Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[kind]
	if !ok {
		return nil, fmt.Errorf("no runner registered for kind %q", kind)
	}
	return runner, nil
}

// DecodeData unmarshals a node's loosely typed Data payload into a typed
// runner configuration. Fields map by the "mapstructure" tag, string
// durations and weakly typed scalars are converted where possible.
func DecodeData(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("failed to decode node data: %w", err)
	}
	return nil
}

// Passthrough returns a runner that echoes the node's payload as its output.
// Useful for dry-running a workflow graph without any external collaborators.
func Passthrough() Runner {
	return RunnerFunc(func(ctx context.Context, nc NodeContext) (any, error) {
		return nc.Data, nil
	})
}
