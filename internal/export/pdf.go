package export

import (
	"fmt"
	"io"
	"os"

	"ConceptCanvas/internal/state"

	"github.com/jung-kurt/gofpdf"
)

var pdfBlendModes = map[state.BlendMode]string{
	state.BlendNormal:        "Normal",
	state.BlendMultiply:      "Multiply",
	state.BlendScreen:        "Screen",
	state.BlendOverlay:       "Overlay",
	state.BlendDarken:        "Darken",
	state.BlendLighten:       "Lighten",
	state.BlendColorDodge:    "ColorDodge",
	state.BlendColorBurn:     "ColorBurn",
	state.BlendHardLight:     "HardLight",
	state.BlendSoftLight:     "SoftLight",
	state.BlendDifference:    "Difference",
	state.BlendExclusion:     "Exclusion",
	state.BlendHSLHue:        "Hue",
	state.BlendHSLSaturation: "Saturation",
	state.BlendHSLLuminosity: "Luminosity",
}

// WritePDF draws doc onto a single page sized to fit it, one canvas pixel per point.
func WritePDF(w io.Writer, doc state.Document) error {
	width, height := extent(doc)
	p := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: width, Ht: height},
	})
	p.SetTitle("ConceptCanvas board", true)
	p.SetAutoPageBreak(false, 0)
	p.AddPage()

	for _, ps := range passes(doc) {
		mode, ok := pdfBlendModes[ps.layer.BlendMode]
		if !ok {
			mode = "Normal"
		}
		for _, obj := range ps.objects {
			drawPDF(p, obj, mode)
		}
	}
	p.SetAlpha(1, "Normal")

	if err := p.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return p.Output(w)
}

// SavePDF writes doc as a PDF file at path.
func SavePDF(path string, doc state.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePDF(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func drawPDF(p *gofpdf.Fpdf, obj *state.SceneObject, mode string) {
	if obj.Kind == state.KindGroup {
		for _, child := range obj.Objects {
			if child.Visible {
				drawPDF(p, child, mode)
			}
		}
		return
	}

	p.SetAlpha(obj.Opacity, mode)
	style := pdfStyle(p, obj)
	sx, sy := obj.ScaleX, obj.ScaleY

	switch obj.Kind {
	case state.KindRect, state.KindImage:
		if style != "" {
			p.Rect(obj.Left, obj.Top, scaled(obj.Width, sx), scaled(obj.Height, sy), style)
		}
	case state.KindCircle:
		rx, ry := scaled(obj.Radius, sx), scaled(obj.Radius, sy)
		x, y := center(obj, rx, ry)
		if style != "" {
			p.Ellipse(x, y, rx, ry, 0, style)
		}
	case state.KindEllipse:
		rx, ry := scaled(obj.RX, sx), scaled(obj.RY, sy)
		x, y := center(obj, rx, ry)
		if style != "" {
			p.Ellipse(x, y, rx, ry, 0, style)
		}
	case state.KindPolygon:
		if len(obj.Points) > 2 && style != "" {
			pts := make([]gofpdf.PointType, len(obj.Points))
			for i, pt := range obj.Points {
				pts[i] = gofpdf.PointType{X: pt.X, Y: pt.Y}
			}
			p.Polygon(pts, style)
		}
	case state.KindPath, state.KindLine:
		pdfPolyline(p, obj)
	case state.KindText:
		pdfText(p, obj)
	}
}

// pdfStyle sets the fill and draw colours for obj and returns the gofpdf
// style string, or "" when nothing would be painted.
func pdfStyle(p *gofpdf.Fpdf, obj *state.SceneObject) string {
	style := ""
	if painted(obj.Fill) {
		r, g, b := rgb255(obj.Fill)
		p.SetFillColor(r, g, b)
		style += "F"
	}
	if painted(obj.Stroke) {
		r, g, b := rgb255(obj.Stroke)
		p.SetDrawColor(r, g, b)
		p.SetLineWidth(strokeWidth(obj))
		style += "D"
	}
	return style
}

func pdfPolyline(p *gofpdf.Fpdf, obj *state.SceneObject) {
	color := obj.Stroke
	if !painted(color) {
		color = obj.Fill
	}
	if !painted(color) {
		return
	}
	r, g, b := rgb255(color)
	p.SetDrawColor(r, g, b)
	p.SetLineWidth(strokeWidth(obj))
	p.SetLineCapStyle("round")

	pts := obj.Points
	if len(pts) < 2 && obj.Kind == state.KindLine {
		pts = []state.Point{
			{X: obj.Left, Y: obj.Top},
			{X: obj.Left + obj.Width, Y: obj.Top + obj.Height},
		}
	}
	for i := 1; i < len(pts); i++ {
		p.Line(pts[i-1].X, pts[i-1].Y, pts[i].X, pts[i].Y)
	}
}

func pdfText(p *gofpdf.Fpdf, obj *state.SceneObject) {
	if obj.Text == "" {
		return
	}
	size := obj.FontSize
	if size <= 0 {
		size = 16
	}
	color := obj.Fill
	if !painted(color) {
		color = "#000000"
	}
	r, g, b := rgb255(color)
	p.SetTextColor(r, g, b)
	p.SetFont("Helvetica", "", size*scaledOr1(obj.ScaleY))
	// gofpdf places text on its baseline
	p.Text(obj.Left, obj.Top+size, obj.Text)
}

func rgb255(s string) (r, g, b int) {
	c := parseColor(s)
	return int(c.R*255 + 0.5), int(c.G*255 + 0.5), int(c.B*255 + 0.5)
}

func scaledOr1(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}
