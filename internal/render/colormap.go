package render

import (
	"image/color"
	"math"
)

// ColorTheme represents a predefined color scheme for amplitude
// visualization:
// - ClassicTheme: Traditional spectrum display (blue to red)
// - GrayscaleTheme: Monochrome visualization
// - ThermalTheme: Heat map visualization
// - MarineTheme: Water-depth inspired colors
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white

	colorMapSize = 256
)

// ColorMapper maps amplitudes onto a fixed lookup table spanning the given
// bounds. The table is computed once at construction; build a new mapper
// when the bounds change.
type ColorMapper struct {
	colors      [colorMapSize]color.Color
	themeName   ColorTheme
	min         float64
	ampPerIndex float64
}

// NewColorMapper creates a color mapper for the theme over the given bounds.
func NewColorMapper(theme ColorTheme, bounds AmplitudeBounds) *ColorMapper {
	shade := themeShader(theme)
	cm := &ColorMapper{
		themeName:   theme,
		min:         bounds.Min,
		ampPerIndex: (bounds.Max - bounds.Min) / float64(colorMapSize-1),
	}
	for i := range cm.colors {
		cm.colors[i] = shade(float64(i) / float64(colorMapSize-1))
	}
	return cm
}

// GetColor returns a color for the given amplitude value. Amplitudes outside
// the bounds clamp to the table ends; NaN (a coverage gap) maps to the
// lowest color.
func (cm *ColorMapper) GetColor(amplitude float64) color.Color {
	if math.IsNaN(amplitude) {
		return cm.colors[0]
	}

	index := int((amplitude - cm.min) / cm.ampPerIndex)
	if index < 0 {
		index = 0
	}
	if index >= colorMapSize {
		index = colorMapSize - 1
	}
	return cm.colors[index]
}

// ThemeName returns the current color theme name
func (cm *ColorMapper) ThemeName() ColorTheme {
	return cm.themeName
}

// HSV represents a color in HSV (Hue, Saturation, Value) color space
type HSV struct {
	H float64 // Hue angle in degrees [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value/Brightness [0-1]
}

// RGB converts HSV to RGB color space efficiently
func (hsv HSV) RGB() color.Color {
	// Fast path for grayscale
	if hsv.S <= 0.0 {
		v := uint8(hsv.V * 255)
		return color.RGBA{R: v, G: v, B: v, A: 255}
	}

	h := hsv.H
	if h >= 360 {
		h -= 360
	}
	h /= 60

	i := int(h)
	f := h - float64(i)

	v := uint8(hsv.V * 255)
	p := uint8((hsv.V * (1 - hsv.S)) * 255)
	q := uint8((hsv.V * (1 - (hsv.S * f))) * 255)
	t := uint8((hsv.V * (1 - (hsv.S * (1 - f)))) * 255)

	switch i {
	case 0:
		return color.RGBA{R: v, G: t, B: p, A: 255}
	case 1:
		return color.RGBA{R: q, G: v, B: p, A: 255}
	case 2:
		return color.RGBA{R: p, G: v, B: t, A: 255}
	case 3:
		return color.RGBA{R: p, G: q, B: v, A: 255}
	case 4:
		return color.RGBA{R: t, G: p, B: v, A: 255}
	default: // case 5:
		return color.RGBA{R: v, G: p, B: q, A: 255}
	}
}

// themeShader returns the normalized-amplitude-to-color function for a
// theme. The argument is in [0, 1].
func themeShader(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case GrayscaleTheme:
		return func(a float64) color.Color {
			v := uint8(math.Pow(a, 0.7) * 255)
			return color.RGBA{R: v, G: v, B: v, A: 255}
		}

	case ThermalTheme:
		return func(a float64) color.Color {
			if a < 0.33 {
				return color.RGBA{
					R: uint8((a * 3) * 255),
					A: 255,
				}
			}
			if a < 0.66 {
				return color.RGBA{
					R: 255,
					G: uint8(((a - 0.33) * 3) * 255),
					A: 255,
				}
			}
			return color.RGBA{
				R: 255,
				G: 255,
				B: uint8(((a - 0.66) * 3) * 255),
				A: 255,
			}
		}

	case MarineTheme:
		return func(a float64) color.Color {
			return HSV{
				H: 240 - (a * 60),
				S: 1.0 - (a * 0.8),
				V: 0.3 + (math.Pow(a, 0.6) * 0.7),
			}.RGB()
		}

	default: // ClassicTheme
		return func(a float64) color.Color {
			return HSV{
				H: 240 - (a * 240),
				S: 0.9 + (a * 0.1),
				V: math.Pow(a, 0.7),
			}.RGB()
		}
	}
}
