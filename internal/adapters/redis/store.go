// Package redis persists workflow snapshots in Redis, with an index set for
// listing and an optional TTL per snapshot.
package redis

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/latticehq/lattice/pkg/domain"
	"github.com/latticehq/lattice/pkg/serialization"
)

// Store implements ports.SnapshotStore using Redis.
type Store struct {
	client     *backend.Client
	prefix     string
	ttl        time.Duration
	serializer *serialization.Serializer
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for snapshots. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix for snapshots.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithSerializer replaces the default MessagePack+zstd serializer.
func WithSerializer(ser *serialization.Serializer) Option {
	return func(s *Store) { s.serializer = ser }
}

// New creates a Redis store connected to the given address.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client:     client,
		prefix:     "lattice:workflow:",
		serializer: serialization.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(id string) string { return s.prefix + id }

func (s *Store) indexKey() string { return s.prefix + "index" }

// Save persists the snapshot and adds it to the index in one pipeline.
func (s *Store) Save(ctx context.Context, id string, wf *domain.Workflow) error {
	if id == "" {
		return fmt.Errorf("workflow id cannot be empty")
	}
	data, err := s.serializer.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	// Index score is the expiry time so List can prune lazily. Snapshots
	// without a TTL get a far-future score.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(id), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the snapshot for the given id.
func (s *Store) Load(ctx context.Context, id string) (*domain.Workflow, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	var wf domain.Workflow
	if err := s.serializer.Unmarshal(val, &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &wf, nil
}

// Delete removes the snapshot and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns indexed snapshot ids, pruning expired entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired snapshots: %w", err)
	}
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return ids, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
