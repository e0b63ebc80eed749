package state

import "fmt"

// BlendMode is the compositing function applied when a layer is flattened onto
// the layers beneath it. The layer model only records it.
type BlendMode string

const (
	BlendNormal        BlendMode = "normal"
	BlendMultiply      BlendMode = "multiply"
	BlendScreen        BlendMode = "screen"
	BlendOverlay       BlendMode = "overlay"
	BlendDarken        BlendMode = "darken"
	BlendLighten       BlendMode = "lighten"
	BlendColorDodge    BlendMode = "color-dodge"
	BlendColorBurn     BlendMode = "color-burn"
	BlendHardLight     BlendMode = "hard-light"
	BlendSoftLight     BlendMode = "soft-light"
	BlendDifference    BlendMode = "difference"
	BlendExclusion     BlendMode = "exclusion"
	BlendHSLHue        BlendMode = "hsl-hue"
	BlendHSLSaturation BlendMode = "hsl-saturation"
	BlendHSLLuminosity BlendMode = "hsl-luminosity"
)

// BlendModes lists every supported mode in menu order.
var BlendModes = []BlendMode{
	BlendNormal,
	BlendMultiply,
	BlendScreen,
	BlendOverlay,
	BlendDarken,
	BlendLighten,
	BlendColorDodge,
	BlendColorBurn,
	BlendHardLight,
	BlendSoftLight,
	BlendDifference,
	BlendExclusion,
	BlendHSLHue,
	BlendHSLSaturation,
	BlendHSLLuminosity,
}

// Valid reports whether m is one of the supported blend modes.
func (m BlendMode) Valid() bool {
	for _, mode := range BlendModes {
		if m == mode {
			return true
		}
	}
	return false
}

// ParseBlendMode validates a blend mode name.
func ParseBlendMode(s string) (BlendMode, error) {
	m := BlendMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBlendMode, s)
	}
	return m, nil
}

// LayerType separates paint layers from fixed background/foreground plates.
type LayerType string

const (
	LayerPaint      LayerType = "paint"
	LayerBackground LayerType = "background"
	LayerForeground LayerType = "foreground"
)

// Valid reports whether t is a known layer type.
func (t LayerType) Valid() bool {
	switch t {
	case LayerPaint, LayerBackground, LayerForeground:
		return true
	}
	return false
}
