package geometry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/internal/geometry"
	"github.com/latticehq/lattice/pkg/domain"
)

// mapResolver is a minimal Resolver over a fixed node set.
type mapResolver map[string]*domain.Node

func (m mapResolver) Node(id string) (*domain.Node, bool) {
	n, ok := m[id]
	return n, ok
}

func (m mapResolver) NodeCount() int { return len(m) }

func TestToAbsolute(t *testing.T) {
	group := &domain.Node{ID: "g", Kind: domain.KindGroup, Position: domain.Position{X: 100, Y: 200}}
	child := &domain.Node{ID: "c", Kind: domain.KindText, ParentID: "g", Position: domain.Position{X: 10, Y: 20}}
	r := mapResolver{"g": group, "c": child}

	t.Run("Top Level", func(t *testing.T) {
		abs, err := geometry.ToAbsolute(group, r)
		require.NoError(t, err)
		assert.Equal(t, domain.Position{X: 100, Y: 200}, abs)
	})

	t.Run("Nested", func(t *testing.T) {
		abs, err := geometry.ToAbsolute(child, r)
		require.NoError(t, err)
		assert.Equal(t, domain.Position{X: 110, Y: 220}, abs)
	})

	t.Run("Dangling Parent", func(t *testing.T) {
		orphan := &domain.Node{ID: "o", ParentID: "gone", Position: domain.Position{X: 5, Y: 5}}
		abs, err := geometry.ToAbsolute(orphan, mapResolver{"o": orphan})
		require.NoError(t, err)
		assert.Equal(t, domain.Position{X: 5, Y: 5}, abs)
	})

	t.Run("Cyclic Chain", func(t *testing.T) {
		a := &domain.Node{ID: "a", ParentID: "b"}
		b := &domain.Node{ID: "b", ParentID: "a"}
		_, err := geometry.ToAbsolute(a, mapResolver{"a": a, "b": b})
		var corrupt *domain.CorruptAncestryError
		require.ErrorAs(t, err, &corrupt)
		assert.Equal(t, "a", corrupt.NodeID)
	})
}

func TestToRelative(t *testing.T) {
	parent := &domain.Node{ID: "g", Position: domain.Position{X: 100, Y: 100}}
	rel := geometry.ToRelative(domain.Position{X: 150, Y: 130}, parent)
	assert.Equal(t, domain.Position{X: 50, Y: 30}, rel)
}

func TestTransformRoundTrip(t *testing.T) {
	group := &domain.Node{ID: "g", Kind: domain.KindGroup, Position: domain.Position{X: 100, Y: 200}}
	child := &domain.Node{ID: "c", Kind: domain.KindText, ParentID: "g", Position: domain.Position{X: 10, Y: 20}}
	r := mapResolver{"g": group, "c": child}

	abs, err := geometry.ToAbsolute(child, r)
	require.NoError(t, err)

	// Re-parenting through relative space and back lands on the same
	// absolute position.
	child.Position = geometry.ToRelative(abs, group)
	again, err := geometry.ToAbsolute(child, r)
	require.NoError(t, err)
	assert.Equal(t, abs, again)
}

func TestIsAncestor(t *testing.T) {
	group := &domain.Node{ID: "g", Kind: domain.KindGroup}
	child := &domain.Node{ID: "c", ParentID: "g"}
	r := mapResolver{"g": group, "c": child}

	assert.True(t, geometry.IsAncestor(child, "c", r), "a node is its own ancestor")
	assert.True(t, geometry.IsAncestor(child, "g", r))
	assert.False(t, geometry.IsAncestor(group, "c", r))

	t.Run("Corrupt Chain Is Conservative", func(t *testing.T) {
		a := &domain.Node{ID: "a", ParentID: "b"}
		b := &domain.Node{ID: "b", ParentID: "a"}
		assert.True(t, geometry.IsAncestor(a, "x", mapResolver{"a": a, "b": b}))
	})
}

func TestAbsoluteRect(t *testing.T) {
	group := &domain.Node{ID: "g", Kind: domain.KindGroup, Position: domain.Position{X: 100, Y: 200}}
	child := &domain.Node{
		ID: "c", ParentID: "g",
		Position: domain.Position{X: 10, Y: 20},
		Size:     domain.Size{Width: 50, Height: 60},
	}
	r := mapResolver{"g": group, "c": child}

	rect, err := geometry.AbsoluteRect(child, r)
	require.NoError(t, err)
	assert.Equal(t, domain.Rect{X: 110, Y: 220, Width: 50, Height: 60}, rect)
}
