package state

import "math"

// Rect is an axis-aligned area on the canvas.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 && r.Height <= 0
}

// Overlaps reports whether r and o share any area.
func (r Rect) Overlaps(o Rect) bool {
	return !(r.X+r.Width < o.X || o.X+o.Width < r.X ||
		r.Y+r.Height < o.Y || o.Y+o.Height < r.Y)
}

// Union returns the smallest rect covering both. An empty rect is the identity.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.Width, o.X+o.Width)
	maxY := math.Max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Bounds approximates the area an object covers, ignoring rotation.
func (o *SceneObject) Bounds() Rect {
	switch o.Kind {
	case KindCircle:
		return Rect{X: o.Left, Y: o.Top, Width: 2 * o.Radius * o.scaleX(), Height: 2 * o.Radius * o.scaleY()}
	case KindEllipse:
		return Rect{X: o.Left, Y: o.Top, Width: 2 * o.RX * o.scaleX(), Height: 2 * o.RY * o.scaleY()}
	case KindPath, KindLine, KindPolygon:
		if len(o.Points) > 0 {
			return pointBounds(o.Points)
		}
	case KindGroup:
		var r Rect
		for _, child := range o.Objects {
			r = r.Union(child.Bounds())
		}
		return r
	}
	return Rect{X: o.Left, Y: o.Top, Width: o.Width * o.scaleX(), Height: o.Height * o.scaleY()}
}

func (o *SceneObject) scaleX() float64 {
	if o.ScaleX == 0 {
		return 1
	}
	return o.ScaleX
}

func (o *SceneObject) scaleY() float64 {
	if o.ScaleY == 0 {
		return 1
	}
	return o.ScaleY
}

func pointBounds(points []Point) Rect {
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// BoundsOf covers every object in objs.
func BoundsOf(objs []*SceneObject) Rect {
	var r Rect
	for _, obj := range objs {
		r = r.Union(obj.Bounds())
	}
	return r
}
