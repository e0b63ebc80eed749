package ui

import (
	"context"
	"image/color"
	"strconv"

	"ConceptCanvas/internal/state"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
)

type Tool int

const (
	ToolPen Tool = iota
	ToolRect
	ToolCircle
	ToolEraser
	ToolPan
)

func (t Tool) String() string {
	switch t {
	case ToolPen:
		return "pen"
	case ToolRect:
		return "rect"
	case ToolCircle:
		return "circle"
	case ToolEraser:
		return "eraser"
	case ToolPan:
		return "pan"
	}
	return "tool(" + strconv.Itoa(int(t)) + ")"
}

var palette = []string{"#000000", "#e53935", "#43a047", "#1e88e5", "#fdd835"}

// colorSwatch is a tappable square of one palette colour.
type colorSwatch struct {
	widget.BaseWidget
	hex      string
	OnTapped func(hex string)
}

func newColorSwatch(hex string, tapped func(string)) *colorSwatch {
	s := &colorSwatch{hex: hex, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(toColor(s.hex, 1))
	rect.SetMinSize(fyne.NewSize(28, 28))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.hex)
	}
}

// NewToolbar builds the drawing tools row: tools, history, palette and stroke size.
func NewToolbar(board *Board, extra ...widget.ToolbarItem) fyne.CanvasObject {
	c := board.Canvas()
	items := []widget.ToolbarItem{
		widget.NewToolbarAction(theme.DocumentCreateIcon(), func() { board.SetTool(ToolPen) }),
		widget.NewToolbarAction(theme.CheckButtonIcon(), func() { board.SetTool(ToolRect) }),
		widget.NewToolbarAction(theme.RadioButtonIcon(), func() { board.SetTool(ToolCircle) }),
		widget.NewToolbarAction(theme.ContentRemoveIcon(), func() { board.SetTool(ToolEraser) }),
		widget.NewToolbarAction(theme.ViewFullScreenIcon(), func() { board.SetTool(ToolPan) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), func() { c.Undo() }),
		widget.NewToolbarAction(theme.ContentRedoIcon(), func() { c.Redo() }),
		widget.NewToolbarAction(theme.DeleteIcon(), func() { c.Clear() }),
	}
	if len(extra) > 0 {
		items = append(items, widget.NewToolbarSeparator())
		items = append(items, extra...)
	}
	tb := widget.NewToolbar(items...)

	swatches := container.NewHBox()
	for _, hex := range palette {
		swatches.Add(newColorSwatch(hex, board.SetColor))
	}

	strokeSlider := widget.NewSlider(1, 50)
	strokeSlider.SetValue(3)
	strokeSlider.OnChanged = board.SetStrokeWidth
	sliderContainer := container.New(layout.NewGridWrapLayout(fyne.NewSize(150, 35)), strokeSlider)

	return container.NewHBox(
		tb,
		widget.NewSeparator(),
		swatches,
		widget.NewSeparator(),
		widget.NewLabel("Size:"),
		sliderContainer,
		layout.NewSpacer(),
	)
}

// NewReconnectAction retries the relay connection when pressed. Nothing else
// reconnects a dropped session.
func NewReconnectAction(ctx context.Context, reconnect func(context.Context) error, logger *zap.Logger) *widget.ToolbarAction {
	return widget.NewToolbarAction(theme.ViewRefreshIcon(), func() {
		go func() {
			if err := reconnect(ctx); err != nil {
				logger.Info("Reconnect failed", zap.Error(err))
				return
			}
			logger.Info("Reconnected to relay")
		}()
	})
}

// LayerPanel lists the canvas layers top to bottom and edits the active one.
type LayerPanel struct {
	canvas  *state.Canvas
	list    *widget.Select
	visible *widget.Check
	locked  *widget.Check
	opacity *widget.Slider
	blend   *widget.Select
	layers  []state.Layer

	// set while the controls are being synced from the model
	syncing bool
}

func NewLayerPanel(c *state.Canvas) *LayerPanel {
	p := &LayerPanel{canvas: c}

	p.list = widget.NewSelect(nil, func(name string) {
		if p.syncing {
			return
		}
		for _, l := range p.layers {
			if l.Name == name {
				c.SetActiveLayer(l.ID)
				break
			}
		}
		p.Sync()
	})
	p.visible = widget.NewCheck("Visible", func(on bool) {
		if !p.syncing {
			c.SetLayerVisibility(c.ActiveLayer().ID, on)
		}
	})
	p.locked = widget.NewCheck("Locked", func(on bool) {
		if !p.syncing {
			c.SetLayerLocked(c.ActiveLayer().ID, on)
		}
	})
	p.opacity = widget.NewSlider(0, 1)
	p.opacity.Step = 0.05
	p.opacity.OnChanged = func(v float64) {
		if !p.syncing {
			c.SetLayerOpacity(c.ActiveLayer().ID, v)
		}
	}
	modes := make([]string, len(state.BlendModes))
	for i, m := range state.BlendModes {
		modes[i] = string(m)
	}
	p.blend = widget.NewSelect(modes, func(s string) {
		if p.syncing {
			return
		}
		if mode, err := state.ParseBlendMode(s); err == nil {
			c.SetLayerBlendMode(c.ActiveLayer().ID, mode)
		}
	})
	p.Sync()
	return p
}

// Sync reloads the controls from the canvas.
func (p *LayerPanel) Sync() {
	p.syncing = true
	defer func() { p.syncing = false }()

	p.layers = p.canvas.Layers()
	names := make([]string, 0, len(p.layers))
	for i := len(p.layers) - 1; i >= 0; i-- {
		names = append(names, p.layers[i].Name)
	}
	active := p.canvas.ActiveLayer()

	p.list.SetOptions(names)
	p.list.SetSelected(active.Name)
	p.visible.SetChecked(active.Visible)
	p.locked.SetChecked(active.Locked)
	p.opacity.SetValue(active.Opacity)
	p.blend.SetSelected(string(active.BlendMode))
}

func (p *LayerPanel) Content() fyne.CanvasObject {
	c := p.canvas
	buttons := container.NewHBox(
		widget.NewButtonWithIcon("", theme.ContentAddIcon(), func() {
			c.AddLayer()
			p.Sync()
		}),
		widget.NewButtonWithIcon("", theme.ContentRemoveIcon(), func() {
			c.RemoveLayer(c.ActiveLayer().ID)
			p.Sync()
		}),
		widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() {
			c.MoveLayerUp(c.ActiveLayer().ID)
			p.Sync()
		}),
		widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() {
			c.MoveLayerDown(c.ActiveLayer().ID)
			p.Sync()
		}),
	)
	return container.NewVBox(
		widget.NewLabelWithStyle("Layers", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		p.list,
		buttons,
		p.visible,
		p.locked,
		widget.NewLabel("Opacity"),
		p.opacity,
		widget.NewLabel("Blend"),
		p.blend,
	)
}
