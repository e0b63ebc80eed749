// Package export flattens a saved canvas document into PDF or PNG.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"ConceptCanvas/internal/state"

	"github.com/gogpu/gg"
)

const (
	margin      = 20.0
	minExtent   = 100.0
	transparent = "transparent"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Write renders doc in the format named by ext, ".pdf" or ".png".
func Write(w io.Writer, ext string, doc state.Document) error {
	switch strings.ToLower(ext) {
	case ".pdf":
		return WritePDF(w, doc)
	case ".png":
		return WritePNG(w, doc, PNGOptions{})
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Save writes doc to path in the format its extension names.
func Save(path string, doc state.Document) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return SavePDF(path, doc)
	case ".png":
		return SavePNG(path, doc, PNGOptions{})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// pass is one layer's worth of drawing, bottom to top.
type pass struct {
	layer   state.Layer
	objects []*state.SceneObject
}

// passes groups doc's objects by layer in stacking order. Hidden layers and
// hidden objects are left out; objects naming an unknown layer paint with the
// bottom layer.
func passes(doc state.Document) []pass {
	if len(doc.Layers) == 0 {
		return []pass{{layer: state.Layer{Visible: true, Opacity: 1, BlendMode: state.BlendNormal}, objects: visible(doc.Objects)}}
	}

	index := make(map[string]int, len(doc.Layers))
	out := make([]pass, len(doc.Layers))
	for i, l := range doc.Layers {
		index[l.ID] = i
		out[i].layer = l
	}
	for _, obj := range doc.Objects {
		if !obj.Visible {
			continue
		}
		i, ok := index[obj.LayerID]
		if !ok {
			i = 0
		}
		out[i].objects = append(out[i].objects, obj)
	}

	kept := out[:0]
	for _, p := range out {
		if p.layer.Visible && len(p.objects) > 0 {
			kept = append(kept, p)
		}
	}
	return kept
}

func visible(objs []*state.SceneObject) []*state.SceneObject {
	var out []*state.SceneObject
	for _, obj := range objs {
		if obj.Visible {
			out = append(out, obj)
		}
	}
	return out
}

// extent is the page size needed to show every object of doc.
func extent(doc state.Document) (width, height float64) {
	width, height = minExtent, minExtent
	for _, obj := range doc.Objects {
		b := obj.Bounds()
		width = math.Max(width, b.X+b.Width+margin)
		height = math.Max(height, b.Y+b.Height+margin)
	}
	return math.Ceil(width), math.Ceil(height)
}

// objectAlpha is the object's own opacity before its layer is applied.
func objectAlpha(obj *state.SceneObject) float64 {
	if obj.BaseOpacity != nil {
		return *obj.BaseOpacity
	}
	return obj.Opacity
}

func painted(color string) bool {
	return color != "" && color != transparent
}

// parseColor reads #rgb, #rrggbb and their alpha forms. Anything else is black.
func parseColor(s string) gg.RGBA {
	return gg.Hex(s)
}

func strokeWidth(obj *state.SceneObject) float64 {
	if obj.StrokeWidth > 0 {
		return obj.StrokeWidth
	}
	return 1
}

// center returns the centre of a circle or ellipse positioned by its top-left corner.
func center(obj *state.SceneObject, rx, ry float64) (x, y float64) {
	return obj.Left + rx, obj.Top + ry
}

func scaled(v, s float64) float64 {
	if s == 0 {
		return v
	}
	return v * s
}
