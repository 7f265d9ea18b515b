package ports

import (
	"context"

	"github.com/latticehq/lattice/pkg/domain"
)

// SnapshotStore persists workflow snapshots by workflow id. Snapshots are
// plain structured data, so any backend (filesystem, Redis, SQL) can
// implement the interface.
type SnapshotStore interface {
	// Save persists the snapshot under the given workflow id.
	Save(ctx context.Context, workflowID string, wf *domain.Workflow) error

	// Load retrieves a snapshot.
	// Returns domain.ErrWorkflowNotFound if the id is unknown.
	Load(ctx context.Context, workflowID string) (*domain.Workflow, error)

	// Delete removes a snapshot. Deleting an unknown id is not an error.
	Delete(ctx context.Context, workflowID string) error

	// List returns the stored workflow ids.
	List(ctx context.Context) ([]string, error)
}
