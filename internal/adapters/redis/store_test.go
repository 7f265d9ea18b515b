package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/internal/adapters/redis"
	"github.com/latticehq/lattice/pkg/domain"
	"github.com/latticehq/lattice/pkg/ports"
	"github.com/latticehq/lattice/pkg/serialization"
)

func newTestStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewFromClient(client, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestStore_Contract(t *testing.T) {
	store, _ := newTestStore(t)
	ports.RunSnapshotStoreContract(t, store)
}

func TestStore_ContractJSON(t *testing.T) {
	ser := serialization.NewSerializer(serialization.NewJSONCodec(), serialization.CompressionGzip)
	store, _ := newTestStore(t, redis.WithSerializer(ser))
	ports.RunSnapshotStoreContract(t, store)
}

func TestStore_KeyPrefix(t *testing.T) {
	store, mr := newTestStore(t, redis.WithPrefix("canvas:"))
	require.NoError(t, store.Save(context.Background(), "wf", &domain.Workflow{}))
	assert.True(t, mr.Exists("canvas:wf"))
	assert.True(t, mr.Exists("canvas:index"))
}

func TestStore_TTLExpiry(t *testing.T) {
	store, mr := newTestStore(t, redis.WithTTL(time.Minute))
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "wf", &domain.Workflow{Name: "short-lived"}))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"wf"}, ids)

	mr.FastForward(2 * time.Minute)

	_, err = store.Load(ctx, "wf")
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
}

func TestStore_ListOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"beta", "alpha", "gamma"} {
		require.NoError(t, store.Save(ctx, id, &domain.Workflow{}))
	}

	ids, err := store.List(ctx)
	require.NoError(t, err)
	// Same score for every entry, so ZRANGE falls back to lexical order.
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, ids)
}
