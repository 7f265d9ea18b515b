package containment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/internal/containment"
	"github.com/latticehq/lattice/internal/model"
	"github.com/latticehq/lattice/pkg/domain"
)

func setup(t *testing.T, nodes ...*domain.Node) *model.Graph {
	t.Helper()
	g := model.NewGraph()
	for _, n := range nodes {
		require.NoError(t, g.InsertNode(n))
	}
	return g
}

func group(id string, x, y, w, h float64) *domain.Node {
	return &domain.Node{ID: id, Kind: domain.KindGroup, Position: domain.Position{X: x, Y: y}, Size: domain.Size{Width: w, Height: h}}
}

func smallNode(id string, x, y float64) *domain.Node {
	// 100x100 = 10,000 px², well under the large-node cutoff.
	return &domain.Node{ID: id, Kind: domain.KindText, Position: domain.Position{X: x, Y: y}, Size: domain.Size{Width: 100, Height: 100}}
}

func largeNode(id string, x, y float64) *domain.Node {
	// 300x300 = 90,000 px², over the cutoff.
	return &domain.Node{ID: id, Kind: domain.KindText, Position: domain.Position{X: x, Y: y}, Size: domain.Size{Width: 300, Height: 300}}
}

func TestResolve_SmallNodeThreshold(t *testing.T) {
	e := containment.New(containment.DefaultConfig())

	t.Run("Exactly Half Overlap Captures", func(t *testing.T) {
		// Node 100x100 at x=-50 against group [0,500): overlap 50x100 = 0.5.
		g := setup(t, group("g", 0, 0, 500, 500), smallNode("n", -50, 0))
		d, err := e.Resolve(g, "n")
		require.NoError(t, err)
		assert.True(t, d.Changed)
		assert.Equal(t, "g", d.ParentID)
		assert.Equal(t, domain.Position{X: -50, Y: 0}, d.Position)
	})

	t.Run("Under Half Stays Out", func(t *testing.T) {
		g := setup(t, group("g", 0, 0, 500, 500), smallNode("n", -51, 0))
		d, err := e.Resolve(g, "n")
		require.NoError(t, err)
		assert.False(t, d.Changed)
	})
}

func TestResolve_LargeNodeThreshold(t *testing.T) {
	e := containment.New(containment.DefaultConfig())

	t.Run("Thirty Percent Captures", func(t *testing.T) {
		// 300x300 node with 90x300 inside the group: ratio 0.3.
		g := setup(t, group("g", 0, 0, 500, 500), largeNode("n", -210, 0))
		d, err := e.Resolve(g, "n")
		require.NoError(t, err)
		assert.True(t, d.Changed)
		assert.Equal(t, "g", d.ParentID)
	})

	t.Run("Under Thirty Percent Stays Out", func(t *testing.T) {
		g := setup(t, group("g", 0, 0, 500, 500), largeNode("n", -215, 0))
		d, err := e.Resolve(g, "n")
		require.NoError(t, err)
		assert.False(t, d.Changed)
	})
}

func TestResolve_ZIndexTieBreak(t *testing.T) {
	e := containment.New(containment.DefaultConfig())
	below := group("below", 0, 0, 500, 500)
	above := group("above", 0, 0, 500, 500)
	above.ZIndex = 5
	g := setup(t, below, above, smallNode("n", 100, 100))

	d, err := e.Resolve(g, "n")
	require.NoError(t, err)
	assert.True(t, d.Changed)
	assert.Equal(t, "above", d.ParentID, "highest z-index wins when both qualify")
}

func TestResolve_OverlapTieBreak(t *testing.T) {
	e := containment.New(containment.DefaultConfig())
	left := group("left", 0, 0, 200, 200)
	right := group("right", 40, 0, 500, 500)
	g := setup(t, left, right, smallNode("n", 60, 0))

	// Same z-index: overlap with right (100x100) beats left (140... capped
	// at node width) — node [60,160) vs left [0,200) overlap 100, vs right
	// [40,540) overlap 100. Shift node so overlaps differ.
	_, err := g.Move("n", domain.Position{X: 120, Y: 0})
	require.NoError(t, err)

	// Node [120,220): left overlap 80x100, right overlap 100x100.
	d, err := e.Resolve(g, "n")
	require.NoError(t, err)
	assert.True(t, d.Changed)
	assert.Equal(t, "right", d.ParentID)
}

func TestResolve_DetachWhenDraggedOut(t *testing.T) {
	e := containment.New(containment.DefaultConfig())
	g := setup(t, group("g", 0, 0, 500, 500))
	require.NoError(t, g.InsertNode(&domain.Node{
		ID: "n", Kind: domain.KindText, ParentID: "g",
		Position: domain.Position{X: 900, Y: 900},
		Size:     domain.Size{Width: 100, Height: 100},
	}))

	d, err := e.Resolve(g, "n")
	require.NoError(t, err)
	assert.True(t, d.Changed)
	assert.Empty(t, d.ParentID)
	assert.Equal(t, domain.Position{X: 900, Y: 900}, d.Position, "detached node keeps its absolute spot")
}

func TestResolve_SameParentNoChange(t *testing.T) {
	e := containment.New(containment.DefaultConfig())
	g := setup(t, group("g", 0, 0, 500, 500))
	require.NoError(t, g.InsertNode(&domain.Node{
		ID: "n", Kind: domain.KindText, ParentID: "g",
		Position: domain.Position{X: 100, Y: 100},
		Size:     domain.Size{Width: 100, Height: 100},
	}))

	d, err := e.Resolve(g, "n")
	require.NoError(t, err)
	assert.False(t, d.Changed)
}

func TestResolve_DraggedGroupNeverCaptured(t *testing.T) {
	e := containment.New(containment.DefaultConfig())
	g := setup(t,
		group("big", 0, 0, 1000, 1000),
		group("dragged", 100, 100, 200, 200),
	)

	d, err := e.Resolve(g, "dragged")
	require.NoError(t, err)
	assert.False(t, d.Changed, "groups do not nest")
}

func TestResolve_ZeroSizeNode(t *testing.T) {
	e := containment.New(containment.DefaultConfig())
	g := setup(t, group("g", 0, 0, 500, 500), &domain.Node{
		ID: "n", Kind: domain.KindConnector, Position: domain.Position{X: 100, Y: 100},
	})

	d, err := e.Resolve(g, "n")
	require.NoError(t, err)
	assert.False(t, d.Changed, "zero-area nodes never qualify")
}

func TestNew_ZeroConfigFallsBack(t *testing.T) {
	e := containment.New(containment.Config{})
	g := setup(t, group("g", 0, 0, 500, 500), smallNode("n", -50, 0))
	d, err := e.Resolve(g, "n")
	require.NoError(t, err)
	assert.True(t, d.Changed, "zero-valued config must inherit the defaults")
}
