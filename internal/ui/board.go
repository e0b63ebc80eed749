package ui

import (
	"image/color"
	"math"
	"sync"

	"ConceptCanvas/internal/state"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/gogpu/gg"
	"go.uber.org/zap"
)

// Board draws a state.Canvas and turns pointer gestures into canvas operations.
// Remote changes arriving through the canvas repaint it.
type Board struct {
	widget.BaseWidget

	canvas *state.Canvas
	logger *zap.Logger

	mu          sync.Mutex
	tool        Tool
	color       string
	strokeWidth float64
	panX, panY  float32

	// in-progress gesture, canvas coordinates
	drawing bool
	anchor  state.Point
	points  []state.Point
}

var (
	_ fyne.Widget       = (*Board)(nil)
	_ fyne.Draggable    = (*Board)(nil)
	_ fyne.Tappable     = (*Board)(nil)
	_ fyne.Scrollable   = (*Board)(nil)
	_ desktop.Hoverable = (*Board)(nil)
)

func NewBoard(c *state.Canvas, logger *zap.Logger) *Board {
	b := &Board{
		canvas:      c,
		logger:      logger.Named("board"),
		tool:        ToolPen,
		color:       "#000000",
		strokeWidth: 3,
	}
	b.ExtendBaseWidget(b)
	// Changes are published inside a canvas turn; repaint outside it.
	c.Subscribe(func(state.Change) {
		go fyne.Do(b.Refresh)
	})
	return b
}

func (b *Board) Canvas() *state.Canvas { return b.canvas }

func (b *Board) SetTool(t Tool) {
	b.mu.Lock()
	b.tool = t
	b.mu.Unlock()
}

func (b *Board) Tool() Tool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tool
}

// SetColor sets the pen colour as #rrggbb.
func (b *Board) SetColor(hex string) {
	b.mu.Lock()
	b.color = hex
	b.mu.Unlock()
}

func (b *Board) SetStrokeWidth(w float64) {
	b.mu.Lock()
	b.strokeWidth = w
	b.mu.Unlock()
}

// toCanvas maps a widget position to canvas coordinates.
func (b *Board) toCanvas(pos fyne.Position) state.Point {
	return state.Point{X: float64(pos.X - b.panX), Y: float64(pos.Y - b.panY)}
}

func (b *Board) Dragged(e *fyne.DragEvent) {
	b.mu.Lock()
	if b.tool == ToolPan {
		b.panX += e.Dragged.DX
		b.panY += e.Dragged.DY
		b.mu.Unlock()
		b.Refresh()
		return
	}
	if b.tool == ToolEraser {
		b.mu.Unlock()
		return
	}

	pt := b.toCanvas(e.Position)
	if !b.drawing {
		start := b.toCanvas(e.Position.Subtract(e.Dragged))
		b.drawing = true
		b.anchor = start
		b.points = []state.Point{start}
	}
	b.points = append(b.points, pt)
	b.mu.Unlock()
	b.Refresh()
}

// DragEnd commits the gesture as a new object on the active layer.
func (b *Board) DragEnd() {
	b.mu.Lock()
	if !b.drawing {
		b.mu.Unlock()
		return
	}
	obj := b.gestureObject()
	b.drawing = false
	b.points = nil
	b.mu.Unlock()

	if obj != nil {
		created := b.canvas.Create(obj.Kind, obj)
		b.logger.Debug("Object drawn", zap.String("id", created.ID), zap.String("kind", string(created.Kind)))
	}
	b.Refresh()
}

// gestureObject builds the object the current gesture describes, or nil when
// the gesture is too small to keep. Callers hold b.mu.
func (b *Board) gestureObject() *state.SceneObject {
	if len(b.points) < 2 {
		return nil
	}
	last := b.points[len(b.points)-1]
	left, top := math.Min(b.anchor.X, last.X), math.Min(b.anchor.Y, last.Y)
	w, h := math.Abs(last.X-b.anchor.X), math.Abs(last.Y-b.anchor.Y)

	switch b.tool {
	case ToolPen:
		obj := state.NewObject(state.KindPath)
		obj.Points = append([]state.Point(nil), b.points...)
		obj.Stroke = b.color
		obj.StrokeWidth = b.strokeWidth
		bounds := obj.Bounds()
		obj.Left, obj.Top = bounds.X, bounds.Y
		obj.Width, obj.Height = bounds.Width, bounds.Height
		return obj
	case ToolRect:
		if w == 0 || h == 0 {
			return nil
		}
		obj := state.NewObject(state.KindRect)
		obj.Left, obj.Top, obj.Width, obj.Height = left, top, w, h
		obj.Fill = b.color
		return obj
	case ToolCircle:
		r := math.Min(w, h) / 2
		if r == 0 {
			return nil
		}
		obj := state.NewObject(state.KindCircle)
		obj.Left, obj.Top, obj.Radius = left, top, r
		obj.Fill = b.color
		return obj
	}
	return nil
}

// Tapped erases the topmost editable object under the pointer.
func (b *Board) Tapped(e *fyne.PointEvent) {
	if b.Tool() != ToolEraser {
		return
	}
	b.mu.Lock()
	pt := b.toCanvas(e.Position)
	b.mu.Unlock()

	if obj := hit(b.canvas.Objects(), pt); obj != nil {
		b.canvas.Remove(obj.ID)
	}
}

func hit(objs []*state.SceneObject, pt state.Point) *state.SceneObject {
	for i := len(objs) - 1; i >= 0; i-- {
		obj := objs[i]
		if !obj.Visible || !obj.Evented {
			continue
		}
		r := obj.Bounds()
		if pt.X >= r.X && pt.X <= r.X+r.Width && pt.Y >= r.Y && pt.Y <= r.Y+r.Height {
			return obj
		}
	}
	return nil
}

func (b *Board) Scrolled(e *fyne.ScrollEvent) {
	b.mu.Lock()
	b.panX += e.Scrolled.DX
	b.panY += e.Scrolled.DY
	b.mu.Unlock()
	b.Refresh()
}

func (b *Board) MouseIn(*desktop.MouseEvent)    {}
func (b *Board) MouseMoved(*desktop.MouseEvent) {}
func (b *Board) MouseOut()                      {}

func (b *Board) CreateRenderer() fyne.WidgetRenderer {
	r := &boardRenderer{board: b, background: canvas.NewRectangle(color.White)}
	r.Refresh()
	return r
}

type boardRenderer struct {
	board      *Board
	background *canvas.Rectangle

	mu      sync.Mutex
	objects []fyne.CanvasObject
}

func (r *boardRenderer) Objects() []fyne.CanvasObject {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.objects
}

func (r *boardRenderer) Destroy()           {}
func (r *boardRenderer) MinSize() fyne.Size { return fyne.NewSize(300, 300) }

func (r *boardRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)
}

// Refresh rebuilds the drawing from the canvas, then overlays the gesture in progress.
func (r *boardRenderer) Refresh() {
	b := r.board
	b.mu.Lock()
	dx, dy := b.panX, b.panY
	var preview *state.SceneObject
	if b.drawing {
		preview = b.gestureObject()
	}
	b.mu.Unlock()

	objects := []fyne.CanvasObject{r.background}
	for _, obj := range b.canvas.Objects() {
		objects = appendShape(objects, obj, dx, dy)
	}
	if preview != nil {
		preview.Opacity = 0.5
		objects = appendShape(objects, preview, dx, dy)
	}
	r.mu.Lock()
	r.objects = objects
	r.mu.Unlock()
	canvas.Refresh(b)
}

// appendShape converts obj into fyne primitives offset by the pan.
func appendShape(out []fyne.CanvasObject, obj *state.SceneObject, dx, dy float32) []fyne.CanvasObject {
	if !obj.Visible {
		return out
	}
	pos := func(x, y float64) fyne.Position { return fyne.NewPos(float32(x)+dx, float32(y)+dy) }
	bounds := obj.Bounds()

	switch obj.Kind {
	case state.KindGroup:
		for _, child := range obj.Objects {
			out = appendShape(out, child, dx, dy)
		}
	case state.KindRect, state.KindImage:
		rect := canvas.NewRectangle(toColor(obj.Fill, obj.Opacity))
		rect.StrokeColor = toColor(obj.Stroke, obj.Opacity)
		rect.StrokeWidth = float32(obj.StrokeWidth)
		rect.Move(pos(bounds.X, bounds.Y))
		rect.Resize(fyne.NewSize(float32(bounds.Width), float32(bounds.Height)))
		out = append(out, rect)
	case state.KindCircle, state.KindEllipse:
		circle := canvas.NewCircle(toColor(obj.Fill, obj.Opacity))
		circle.StrokeColor = toColor(obj.Stroke, obj.Opacity)
		circle.StrokeWidth = float32(obj.StrokeWidth)
		circle.Move(pos(bounds.X, bounds.Y))
		circle.Resize(fyne.NewSize(float32(bounds.Width), float32(bounds.Height)))
		out = append(out, circle)
	case state.KindPath, state.KindLine, state.KindPolygon:
		stroke := obj.Stroke
		if stroke == "" {
			stroke = obj.Fill
		}
		c := toColor(stroke, obj.Opacity)
		pts := obj.Points
		if obj.Kind == state.KindPolygon && len(pts) > 2 {
			pts = append(pts, pts[0])
		}
		for i := 1; i < len(pts); i++ {
			line := canvas.NewLine(c)
			line.StrokeWidth = float32(math.Max(obj.StrokeWidth, 1))
			line.Position1 = pos(pts[i-1].X, pts[i-1].Y)
			line.Position2 = pos(pts[i].X, pts[i].Y)
			out = append(out, line)
		}
	case state.KindText:
		text := canvas.NewText(obj.Text, toColor(obj.Fill, obj.Opacity))
		if obj.FontSize > 0 {
			text.TextSize = float32(obj.FontSize)
		}
		text.Move(pos(obj.Left, obj.Top))
		out = append(out, text)
	}
	return out
}

// toColor converts a hex colour to a fyne colour at the given opacity. Empty
// and transparent colours are fully transparent.
func toColor(hex string, opacity float64) color.Color {
	if hex == "" || hex == "transparent" {
		return color.Transparent
	}
	c := gg.Hex(hex)
	a := c.A * math.Max(0, math.Min(1, opacity))
	return color.NRGBA{
		R: uint8(c.R*255 + 0.5),
		G: uint8(c.G*255 + 0.5),
		B: uint8(c.B*255 + 0.5),
		A: uint8(a*255 + 0.5),
	}
}
