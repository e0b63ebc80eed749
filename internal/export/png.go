package export

import (
	"errors"
	"fmt"
	"io"
	"os"

	"ConceptCanvas/internal/state"

	"github.com/gogpu/gg"
)

// PNGOptions sizes the raster. Zero dimensions fit the document.
type PNGOptions struct {
	Width      int
	Height     int
	Background string
}

// Only these modes have a compositor in gg; the rest paint as normal.
var rasterBlendModes = map[state.BlendMode]gg.BlendMode{
	state.BlendNormal:   gg.BlendNormal,
	state.BlendMultiply: gg.BlendMultiply,
	state.BlendScreen:   gg.BlendScreen,
	state.BlendOverlay:  gg.BlendOverlay,
}

// WritePNG rasterizes doc. Each visible layer is drawn into its own surface and
// composited with the layer's blend mode and opacity. Text and images are not
// rasterized.
func WritePNG(w io.Writer, doc state.Document, opts PNGOptions) error {
	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		fw, fh := extent(doc)
		width, height = int(fw), int(fh)
	}
	background := opts.Background
	if background == "" {
		background = "#ffffff"
	}

	dc := gg.NewContext(width, height)
	defer dc.Close()
	dc.ClearWithColor(parseColor(background))

	var errs []error
	for _, ps := range passes(doc) {
		mode, ok := rasterBlendModes[ps.layer.BlendMode]
		if !ok {
			mode = gg.BlendNormal
		}
		dc.PushLayer(mode, ps.layer.Opacity)
		for _, obj := range ps.objects {
			errs = append(errs, drawRaster(dc, obj))
		}
		dc.PopLayer()
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	return dc.EncodePNG(w)
}

func SavePNG(path string, doc state.Document, opts PNGOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, doc, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func drawRaster(dc *gg.Context, obj *state.SceneObject) error {
	if obj.Kind == state.KindGroup {
		var errs []error
		for _, child := range obj.Objects {
			if child.Visible {
				errs = append(errs, drawRaster(dc, child))
			}
		}
		return errors.Join(errs...)
	}

	alpha := objectAlpha(obj)
	sx, sy := obj.ScaleX, obj.ScaleY

	switch obj.Kind {
	case state.KindRect:
		dc.DrawRectangle(obj.Left, obj.Top, scaled(obj.Width, sx), scaled(obj.Height, sy))
	case state.KindCircle:
		rx, ry := scaled(obj.Radius, sx), scaled(obj.Radius, sy)
		x, y := center(obj, rx, ry)
		dc.DrawEllipse(x, y, rx, ry)
	case state.KindEllipse:
		rx, ry := scaled(obj.RX, sx), scaled(obj.RY, sy)
		x, y := center(obj, rx, ry)
		dc.DrawEllipse(x, y, rx, ry)
	case state.KindPolygon:
		if len(obj.Points) < 3 {
			return nil
		}
		tracePoints(dc, obj.Points)
		dc.ClosePath()
	case state.KindPath, state.KindLine:
		return strokeRaster(dc, obj, alpha)
	default:
		return nil
	}
	return paintRaster(dc, obj, alpha)
}

// paintRaster fills then strokes the current path.
func paintRaster(dc *gg.Context, obj *state.SceneObject, alpha float64) error {
	var err error
	if painted(obj.Fill) {
		setColor(dc, obj.Fill, alpha)
		if painted(obj.Stroke) {
			err = dc.FillPreserve()
		} else {
			return dc.Fill()
		}
	}
	if painted(obj.Stroke) {
		setColor(dc, obj.Stroke, alpha)
		dc.SetLineWidth(strokeWidth(obj))
		return errors.Join(err, dc.Stroke())
	}
	dc.ClearPath()
	return err
}

func strokeRaster(dc *gg.Context, obj *state.SceneObject, alpha float64) error {
	color := obj.Stroke
	if !painted(color) {
		color = obj.Fill
	}
	if !painted(color) {
		return nil
	}
	pts := obj.Points
	if len(pts) < 2 && obj.Kind == state.KindLine {
		pts = []state.Point{
			{X: obj.Left, Y: obj.Top},
			{X: obj.Left + obj.Width, Y: obj.Top + obj.Height},
		}
	}
	if len(pts) < 2 {
		return nil
	}
	tracePoints(dc, pts)
	setColor(dc, color, alpha)
	dc.SetLineWidth(strokeWidth(obj))
	return dc.Stroke()
}

func tracePoints(dc *gg.Context, pts []state.Point) {
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, pt := range pts[1:] {
		dc.LineTo(pt.X, pt.Y)
	}
}

func setColor(dc *gg.Context, hex string, alpha float64) {
	c := parseColor(hex)
	dc.SetRGBA(c.R, c.G, c.B, c.A*alpha)
}
