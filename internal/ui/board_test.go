package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	"ConceptCanvas/internal/state"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBoard(t *testing.T) (*Board, *state.Canvas) {
	t.Helper()
	test.NewApp()
	c := state.NewCanvas(zap.NewNop(), state.Options{})
	b := NewBoard(c, zap.NewNop())
	b.Resize(fyne.NewSize(400, 300))
	return b, c
}

func drag(b *Board, from, to fyne.Position) {
	mid := fyne.NewPos((from.X+to.X)/2, (from.Y+to.Y)/2)
	b.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: mid}, Dragged: fyne.NewDelta(mid.X-from.X, mid.Y-from.Y)})
	b.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: to}, Dragged: fyne.NewDelta(to.X-mid.X, to.Y-mid.Y)})
	b.DragEnd()
}

func TestPenDrawsPath(t *testing.T) {
	b, c := newTestBoard(t)
	b.SetColor("#e53935")
	b.SetStrokeWidth(5)

	drag(b, fyne.NewPos(10, 10), fyne.NewPos(50, 30))

	objs := c.Objects()
	require.Len(t, objs, 1)
	assert.Equal(t, state.KindPath, objs[0].Kind)
	assert.Len(t, objs[0].Points, 3)
	assert.Equal(t, "#e53935", objs[0].Stroke)
	assert.Equal(t, 5.0, objs[0].StrokeWidth)
	assert.True(t, c.CanUndo())
}

func TestShapeTools(t *testing.T) {
	b, c := newTestBoard(t)

	b.SetTool(ToolRect)
	drag(b, fyne.NewPos(60, 40), fyne.NewPos(20, 10))
	b.SetTool(ToolCircle)
	drag(b, fyne.NewPos(100, 100), fyne.NewPos(140, 120))

	objs := c.Objects()
	require.Len(t, objs, 2)
	assert.Equal(t, state.KindRect, objs[0].Kind)
	assert.Equal(t, 20.0, objs[0].Left)
	assert.Equal(t, 10.0, objs[0].Top)
	assert.Equal(t, 40.0, objs[0].Width)
	assert.Equal(t, 30.0, objs[0].Height)

	assert.Equal(t, state.KindCircle, objs[1].Kind)
	assert.Equal(t, 10.0, objs[1].Radius)
}

func TestEraserRemovesTopmostObject(t *testing.T) {
	b, c := newTestBoard(t)
	b.SetTool(ToolRect)
	drag(b, fyne.NewPos(0, 0), fyne.NewPos(100, 100))
	drag(b, fyne.NewPos(20, 20), fyne.NewPos(60, 60))
	bottom := c.Objects()[0]

	b.SetTool(ToolEraser)
	b.Tapped(&fyne.PointEvent{Position: fyne.NewPos(40, 40)})

	objs := c.Objects()
	require.Len(t, objs, 1)
	assert.Equal(t, bottom.ID, objs[0].ID)

	// nothing under the pointer
	b.Tapped(&fyne.PointEvent{Position: fyne.NewPos(300, 250)})
	assert.Equal(t, 1, c.Len())
}

func TestPanOffsetsNewDrawing(t *testing.T) {
	b, c := newTestBoard(t)
	b.SetTool(ToolPan)
	b.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(30, 30)}, Dragged: fyne.NewDelta(30, 30)})
	b.DragEnd()
	assert.Zero(t, c.Len(), "panning draws nothing")

	b.SetTool(ToolRect)
	drag(b, fyne.NewPos(40, 40), fyne.NewPos(80, 80))
	obj := c.Objects()[0]
	assert.Equal(t, 10.0, obj.Left)
	assert.Equal(t, 10.0, obj.Top)
}

func TestRendererFollowsCanvas(t *testing.T) {
	b, c := newTestBoard(t)
	r := test.WidgetRenderer(b)
	assert.Len(t, r.Objects(), 1, "background only")

	rect := state.NewObject(state.KindRect)
	rect.Width, rect.Height, rect.Fill = 10, 10, "#000000"
	c.Create(state.KindRect, rect)

	hidden := c.AddLayer()
	c.Create(state.KindRect, rect)
	require.NoError(t, c.SetLayerVisibility(hidden.ID, false))

	r.Refresh()
	assert.Len(t, r.Objects(), 2)
}

func TestLayerPanelSync(t *testing.T) {
	test.NewApp()
	c := state.NewCanvas(zap.NewNop(), state.Options{})
	p := NewLayerPanel(c)
	assert.Equal(t, []string{"Base Layer"}, p.list.Options)

	added := c.AddLayer()
	p.Sync()
	assert.Equal(t, added.Name, p.list.Selected)
	assert.Len(t, p.list.Options, 2)
	assert.Equal(t, added.Name, p.list.Options[0], "top layer is listed first")

	p.blend.SetSelected(string(state.BlendScreen))
	assert.Equal(t, state.BlendScreen, c.ActiveLayer().BlendMode)

	p.visible.SetChecked(false)
	assert.False(t, c.ActiveLayer().Visible)
}

func TestToolString(t *testing.T) {
	assert.Equal(t, "eraser", ToolEraser.String())
	assert.Equal(t, "tool(42)", Tool(42).String())
}

func TestReconnectActionRunsOnlyWhenPressed(t *testing.T) {
	calls := make(chan struct{}, 2)
	action := NewReconnectAction(context.Background(), func(context.Context) error {
		calls <- struct{}{}
		return errors.New("relay down")
	}, zap.NewNop())

	select {
	case <-calls:
		t.Fatal("reconnect ran without being pressed")
	case <-time.After(100 * time.Millisecond):
	}

	action.OnActivated()
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect did not run")
	}
	// a failed attempt is not retried
	assert.Never(t, func() bool { return len(calls) > 0 }, 200*time.Millisecond, 10*time.Millisecond)
}
