// Package layout provides the align and distribute commands over a node
// selection. All math happens in absolute canvas coordinates; results are
// converted back into each node's own frame before the moves are issued.
package layout

import (
	"fmt"
	"sort"

	"github.com/latticehq/lattice/internal/history"
	"github.com/latticehq/lattice/internal/model"
	"github.com/latticehq/lattice/pkg/domain"
)

// AlignMode selects the shared edge or axis nodes are aligned to.
type AlignMode string

const (
	AlignLeft    AlignMode = "left"
	AlignRight   AlignMode = "right"
	AlignTop     AlignMode = "top"
	AlignBottom  AlignMode = "bottom"
	AlignCenterX AlignMode = "center-x"
	AlignCenterY AlignMode = "center-y"
)

// Axis selects the direction for distribution.
type Axis string

const (
	Horizontal Axis = "horizontal"
	Vertical   Axis = "vertical"
)

type placed struct {
	node *domain.Node
	rect domain.Rect
}

// Align produces one undoable composite that lines the selection up on the
// given edge or center line. At least two nodes are required.
func Align(g *model.Graph, ids []string, mode AlignMode) (history.Command, error) {
	items, err := resolve(g, ids)
	if err != nil {
		return nil, err
	}
	if len(items) < 2 {
		return nil, fmt.Errorf("align needs at least 2 nodes, got %d", len(items))
	}

	// The first selected node anchors the alignment.
	anchor := items[0].rect
	cmds := make([]history.Command, 0, len(items)-1)
	for _, it := range items[1:] {
		target := it.rect
		switch mode {
		case AlignLeft:
			target.X = anchor.X
		case AlignRight:
			target.X = anchor.X + anchor.Width - target.Width
		case AlignTop:
			target.Y = anchor.Y
		case AlignBottom:
			target.Y = anchor.Y + anchor.Height - target.Height
		case AlignCenterX:
			target.X = anchor.X + anchor.Width/2 - target.Width/2
		case AlignCenterY:
			target.Y = anchor.Y + anchor.Height/2 - target.Height/2
		default:
			return nil, fmt.Errorf("unknown align mode %q", mode)
		}
		if cmd := moveTo(g, it, target); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return &history.Composite{Label: "align-" + string(mode), Commands: cmds}, nil
}

// Distribute produces one undoable composite that spaces the selection with
// even gaps along the axis. The outermost nodes stay put; at least three
// nodes are required.
func Distribute(g *model.Graph, ids []string, axis Axis) (history.Command, error) {
	items, err := resolve(g, ids)
	if err != nil {
		return nil, err
	}
	if len(items) < 3 {
		return nil, fmt.Errorf("distribute needs at least 3 nodes, got %d", len(items))
	}

	switch axis {
	case Horizontal:
		sort.SliceStable(items, func(i, j int) bool { return items[i].rect.X < items[j].rect.X })
	case Vertical:
		sort.SliceStable(items, func(i, j int) bool { return items[i].rect.Y < items[j].rect.Y })
	default:
		return nil, fmt.Errorf("unknown distribute axis %q", axis)
	}

	first, last := items[0], items[len(items)-1]
	var span, occupied float64
	if axis == Horizontal {
		span = (last.rect.X + last.rect.Width) - first.rect.X
	} else {
		span = (last.rect.Y + last.rect.Height) - first.rect.Y
	}
	for _, it := range items {
		if axis == Horizontal {
			occupied += it.rect.Width
		} else {
			occupied += it.rect.Height
		}
	}
	gap := (span - occupied) / float64(len(items)-1)

	cmds := make([]history.Command, 0, len(items)-2)
	var cursor float64
	if axis == Horizontal {
		cursor = first.rect.X + first.rect.Width + gap
	} else {
		cursor = first.rect.Y + first.rect.Height + gap
	}
	for _, it := range items[1 : len(items)-1] {
		target := it.rect
		if axis == Horizontal {
			target.X = cursor
			cursor += target.Width + gap
		} else {
			target.Y = cursor
			cursor += target.Height + gap
		}
		if cmd := moveTo(g, it, target); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return &history.Composite{Label: "distribute-" + string(axis), Commands: cmds}, nil
}

func resolve(g *model.Graph, ids []string) ([]placed, error) {
	items := make([]placed, 0, len(ids))
	for _, id := range ids {
		n, err := g.GetNode(id)
		if err != nil {
			return nil, err
		}
		abs, err := g.AbsolutePosition(id)
		if err != nil {
			// Force-detached by the fallback; its raw position is now
			// absolute.
			abs = n.Position
		}
		items = append(items, placed{node: n, rect: domain.NewRect(abs, n.Size)})
	}
	return items, nil
}

// moveTo converts the absolute target back into the node's frame and emits
// the move, or nil when the node is already in place.
func moveTo(g *model.Graph, it placed, target domain.Rect) history.Command {
	newAbs := domain.Position{X: target.X, Y: target.Y}
	pos := newAbs
	if it.node.ParentID != "" {
		if parent, err := g.GetNode(it.node.ParentID); err == nil {
			pos = newAbs.Sub(parent.Position)
		}
	}
	if pos == it.node.Position {
		return nil
	}
	return &history.MoveNode{ID: it.node.ID, To: pos}
}
