package domain

// Position is a point on the canvas.
// It is absolute when the owning node has no parent, and relative to the
// parent group's origin otherwise.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the position translated by the given offset.
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns the position translated by the negated offset.
func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y}
}

// Size is the rendered extent of a node.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns Width * Height.
func (s Size) Area() float64 {
	return s.Width * s.Height
}

// Rect is an axis-aligned rectangle in absolute canvas coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect builds a Rect from a position and a size.
func NewRect(p Position, s Size) Rect {
	return Rect{X: p.X, Y: p.Y, Width: s.Width, Height: s.Height}
}

// Area returns Width * Height.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Position {
	return Position{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// IntersectionArea returns the overlapping area between r and o,
// or 0 if the rectangles do not intersect.
func (r Rect) IntersectionArea(o Rect) float64 {
	w := min(r.X+r.Width, o.X+o.Width) - max(r.X, o.X)
	h := min(r.Y+r.Height, o.Y+o.Height) - max(r.Y, o.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Viewport is the pan/zoom state of the canvas.
// The engine stores it for serialization but never interprets it.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}
