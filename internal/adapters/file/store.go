// Package file persists workflow snapshots on the local filesystem, one file
// per workflow under a configured directory.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/latticehq/lattice/pkg/domain"
	"github.com/latticehq/lattice/pkg/serialization"
)

// Store implements ports.SnapshotStore using the local filesystem.
type Store struct {
	basePath   string
	serializer *serialization.Serializer
	ext        string
}

// Option configures a Store.
type Option func(*Store)

// WithSerializer replaces the default JSON serializer. The file extension
// follows the codec name.
func WithSerializer(s *serialization.Serializer, ext string) Option {
	return func(st *Store) {
		st.serializer = s
		st.ext = ext
	}
}

// New creates a Store rooted at basePath.
// If basePath is empty, it defaults to ".lattice/workflows".
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = filepath.Join(".lattice", "workflows")
	}
	s := &Store{
		basePath:   basePath,
		serializer: serialization.NewSerializer(serialization.NewJSONCodec(), serialization.CompressionNone),
		ext:        ".json",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(id string) string {
	return filepath.Join(s.basePath, id+s.ext)
}

// Save persists the snapshot atomically: write to a temp file in the same
// directory, fsync, close, then rename over the destination.
func (s *Store) Save(ctx context.Context, id string, wf *domain.Workflow) error {
	if id == "" {
		return fmt.Errorf("workflow id cannot be empty")
	}
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure workflow directory: %w", err)
	}

	data, err := s.serializer.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	// Temp file lives in the same directory so the rename stays on one
	// filesystem.
	tmp, err := os.CreateTemp(s.basePath, "tmp-"+id+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// os.Rename cannot replace an existing file on Windows, so clear the
	// destination first. The delete+rename window is acceptable for local
	// snapshot files; a partial write is not.
	if _, err := os.Stat(s.path(id)); err == nil {
		if err := os.Remove(s.path(id)); err != nil {
			return fmt.Errorf("failed to remove existing snapshot: %w", err)
		}
	}
	if err := os.Rename(tmpPath, s.path(id)); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the snapshot for the given id.
func (s *Store) Load(ctx context.Context, id string) (*domain.Workflow, error) {
	if id == "" {
		return nil, fmt.Errorf("workflow id cannot be empty")
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	var wf domain.Workflow
	if err := s.serializer.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &wf, nil
}

// Delete removes the snapshot file. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("workflow id cannot be empty")
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}
	return nil
}

// List returns the ids of every stored snapshot.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, s.ext) || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, s.ext))
	}
	return ids, nil
}
