package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/domain"
)

// RunSnapshotStoreContract runs a suite of tests that every SnapshotStore
// implementation must pass. Adapter test files call it with a live store.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	workflowID := "contract-test-" + time.Now().Format("20060102150405")

	sample := &domain.Workflow{
		Nodes: []domain.Node{
			{ID: "a", Kind: domain.KindText, Position: domain.Position{X: 10, Y: 20}, Size: domain.Size{Width: 320, Height: 180}, Status: domain.StatusIdle},
			{ID: "g", Kind: domain.KindGroup, Position: domain.Position{X: 400, Y: 0}, Size: domain.Size{Width: 480, Height: 360}, Status: domain.StatusIdle},
		},
		Edges:    []domain.Edge{{ID: "e1", Source: "a", Target: "g"}},
		Viewport: domain.Viewport{X: -50, Y: 30, Zoom: 1.5},
	}

	t.Run("Save and Load", func(t *testing.T) {
		err := store.Save(ctx, workflowID, sample)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, workflowID)
		require.NoError(t, err, "Load should not return error")
		assert.Len(t, loaded.Nodes, 2)
		assert.Equal(t, "a", loaded.Nodes[0].ID)
		assert.Equal(t, domain.KindGroup, loaded.Nodes[1].Kind)
		assert.Equal(t, sample.Edges, loaded.Edges)
		assert.Equal(t, sample.Viewport, loaded.Viewport)
		assert.InDelta(t, 10, loaded.Nodes[0].Position.X, 1e-9)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+workflowID)
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, workflowID, sample))

		require.NoError(t, store.Delete(ctx, workflowID))

		_, err := store.Load(ctx, workflowID)
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound, "Load after Delete should return ErrWorkflowNotFound")
	})

	t.Run("Delete Non-Existent", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "non-existent-"+workflowID))
	})

	t.Run("List", func(t *testing.T) {
		id1 := workflowID + "-1"
		id2 := workflowID + "-2"
		require.NoError(t, store.Save(ctx, id1, sample))
		require.NoError(t, store.Save(ctx, id2, sample))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
