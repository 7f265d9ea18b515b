package clipboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/internal/clipboard"
	"github.com/latticehq/lattice/internal/history"
	"github.com/latticehq/lattice/internal/model"
	"github.com/latticehq/lattice/pkg/domain"
)

func buildGraph(t *testing.T) *model.Graph {
	t.Helper()
	g := model.NewGraph()
	require.NoError(t, g.InsertNode(&domain.Node{
		ID: "a", Kind: domain.KindText,
		Position: domain.Position{X: 0, Y: 0},
		Size:     domain.Size{Width: 100, Height: 100},
	}))
	require.NoError(t, g.InsertNode(&domain.Node{
		ID: "b", Kind: domain.KindGenerate,
		Position: domain.Position{X: 200, Y: 0},
		Size:     domain.Size{Width: 100, Height: 100},
	}))
	require.NoError(t, g.InsertNode(&domain.Node{
		ID: "c", Kind: domain.KindChat,
		Position: domain.Position{X: 400, Y: 0},
		Size:     domain.Size{Width: 100, Height: 100},
	}))
	require.NoError(t, g.InsertEdge(domain.Edge{ID: "e-ab", Source: "a", Target: "b"}))
	require.NoError(t, g.InsertEdge(domain.Edge{ID: "e-bc", Source: "b", Target: "c"}))
	return g
}

func apply(t *testing.T, g *model.Graph, cmd history.Command) {
	t.Helper()
	_, err := cmd.Apply(g)
	require.NoError(t, err)
}

func TestCopy_DropsBoundaryEdges(t *testing.T) {
	g := buildGraph(t)

	entry, err := clipboard.Copy(g, []string{"a", "b"})
	require.NoError(t, err)

	require.Len(t, entry.Nodes, 2)
	require.Len(t, entry.Edges, 1, "edge into c crosses the selection boundary")
	assert.Equal(t, "e-ab", entry.Edges[0].ID)
}

func TestCopy_UnknownNode(t *testing.T) {
	g := buildGraph(t)

	_, err := clipboard.Copy(g, []string{"a", "ghost"})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestCopy_GroupBringsChildren(t *testing.T) {
	g := model.NewGraph()
	require.NoError(t, g.InsertNode(&domain.Node{
		ID: "grp", Kind: domain.KindGroup,
		Position: domain.Position{X: 100, Y: 100},
		Size:     domain.Size{Width: 400, Height: 300},
	}))
	require.NoError(t, g.InsertNode(&domain.Node{
		ID: "child", Kind: domain.KindText, ParentID: "grp",
		Position: domain.Position{X: 20, Y: 20},
		Size:     domain.Size{Width: 100, Height: 100},
	}))

	entry, err := clipboard.Copy(g, []string{"grp"})
	require.NoError(t, err)

	require.Len(t, entry.Nodes, 2)
	byID := map[string]domain.Node{}
	for _, n := range entry.Nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, "grp", byID["child"].ParentID, "children keep their relative frame")
	assert.Equal(t, domain.Position{X: 20, Y: 20}, byID["child"].Position)
}

func TestCopy_ExternalParentGoesAbsolute(t *testing.T) {
	g := model.NewGraph()
	require.NoError(t, g.InsertNode(&domain.Node{
		ID: "grp", Kind: domain.KindGroup,
		Position: domain.Position{X: 100, Y: 100},
		Size:     domain.Size{Width: 400, Height: 300},
	}))
	require.NoError(t, g.InsertNode(&domain.Node{
		ID: "child", Kind: domain.KindText, ParentID: "grp",
		Position: domain.Position{X: 20, Y: 20},
		Size:     domain.Size{Width: 100, Height: 100},
	}))

	entry, err := clipboard.Copy(g, []string{"child"})
	require.NoError(t, err)

	require.Len(t, entry.Nodes, 1)
	assert.Empty(t, entry.Nodes[0].ParentID)
	assert.Equal(t, domain.Position{X: 120, Y: 120}, entry.Nodes[0].Position)
}

func TestCopy_ResetsStatus(t *testing.T) {
	g := buildGraph(t)
	_, err := g.SetStatus("a", domain.StatusSuccess)
	require.NoError(t, err)

	entry, err := clipboard.Copy(g, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, entry.Nodes[0].Status)
}

func TestPaste_RemapsAndOffsets(t *testing.T) {
	g := buildGraph(t)
	entry, err := clipboard.Copy(g, []string{"a", "b"})
	require.NoError(t, err)

	cmd, newIDs := clipboard.Paste(entry, nil)
	require.Len(t, newIDs, 2)
	apply(t, g, cmd)

	for _, id := range newIDs {
		assert.NotContains(t, []string{"a", "b"}, id)
	}

	n0, err := g.GetNode(newIDs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: 40, Y: 40}, n0.Position)

	// Internal edge arrives rewired against the new ids.
	var pasted *domain.Edge
	for _, e := range g.Edges() {
		if e.Source == newIDs[0] {
			cp := e
			pasted = &cp
		}
	}
	require.NotNil(t, pasted)
	assert.Equal(t, newIDs[1], pasted.Target)

	// Originals untouched.
	a, err := g.GetNode("a")
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: 0, Y: 0}, a.Position)
}

func TestPaste_TargetCentersSelection(t *testing.T) {
	g := buildGraph(t)
	entry, err := clipboard.Copy(g, []string{"a", "b"})
	require.NoError(t, err)

	// Bounding box spans [0,300)x[0,100), center (150, 50).
	cmd, newIDs := clipboard.Paste(entry, &domain.Position{X: 500, Y: 500})
	apply(t, g, cmd)

	n0, err := g.GetNode(newIDs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: 350, Y: 450}, n0.Position)
	n1, err := g.GetNode(newIDs[1])
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: 550, Y: 450}, n1.Position)
}

func TestPaste_GroupChildrenKeepRelativeFrame(t *testing.T) {
	g := model.NewGraph()
	require.NoError(t, g.InsertNode(&domain.Node{
		ID: "grp", Kind: domain.KindGroup,
		Position: domain.Position{X: 100, Y: 100},
		Size:     domain.Size{Width: 400, Height: 300},
	}))
	require.NoError(t, g.InsertNode(&domain.Node{
		ID: "child", Kind: domain.KindText, ParentID: "grp",
		Position: domain.Position{X: 20, Y: 20},
		Size:     domain.Size{Width: 100, Height: 100},
	}))

	entry, err := clipboard.Copy(g, []string{"grp"})
	require.NoError(t, err)
	cmd, newIDs := clipboard.Paste(entry, nil)
	apply(t, g, cmd)

	byOld := map[string]string{}
	for i, n := range entry.Nodes {
		byOld[n.ID] = newIDs[i]
	}
	grp, err := g.GetNode(byOld["grp"])
	require.NoError(t, err)
	child, err := g.GetNode(byOld["child"])
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: 140, Y: 140}, grp.Position)
	assert.Equal(t, grp.ID, child.ParentID)
	assert.Equal(t, domain.Position{X: 20, Y: 20}, child.Position, "children keep relative positions, only the group shifts")
}

func TestPaste_UndoRemovesEverything(t *testing.T) {
	g := buildGraph(t)
	before := g.Snapshot()

	stack := history.NewStack(history.DefaultDepth)
	entry, err := clipboard.Copy(g, []string{"a", "b"})
	require.NoError(t, err)
	cmd, _ := clipboard.Paste(entry, nil)
	require.NoError(t, stack.Do(g, cmd))

	applied, err := stack.Undo(g)
	require.NoError(t, err)
	require.True(t, applied)

	after := g.Snapshot()
	assert.Equal(t, before.Nodes, after.Nodes)
	assert.Equal(t, before.Edges, after.Edges)
}

func TestDuplicate(t *testing.T) {
	g := buildGraph(t)

	cmd, ids, err := clipboard.Duplicate(g, "a")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	apply(t, g, cmd)

	dup, err := g.GetNode(ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.KindText, dup.Kind)
	assert.Equal(t, domain.Position{X: 40, Y: 40}, dup.Position)
	assert.Len(t, g.Nodes(), 4)
}

func TestDuplicate_UnknownNode(t *testing.T) {
	g := buildGraph(t)
	_, _, err := clipboard.Duplicate(g, "nope")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}
