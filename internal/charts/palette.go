package charts

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	steelBlue   = hexColor("#4682B4")
	specialGrey = hexColor("#999999")
	missingGrey = hexColor("#d9d9d9")
	hatchGrey   = hexColor("#a6a6a6")
	fallback    = hexColor("#999999")
	trendBlack  = hexColor("#222222")
	cellBorder  = color.White
	labelDark   = hexColor("#222222")
	labelLight  = color.White

	// red, yellow, green ends of the completeness scale
	divergingLow  = hexColor("#d73027")
	divergingMid  = hexColor("#ffffbf")
	divergingHigh = hexColor("#1a9850")

	sequentialLow  = hexColor("#f7fbff")
	sequentialHigh = hexColor("#08519c")
	heatLow        = hexColor("#ffffb2")
	heatHigh       = hexColor("#bd0026")
)

// hexColor parses a #rrggbb palette entry. Palette entries are constants,
// so a bad entry falls back to black.
func hexColor(hex string) colorful.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}
	}
	return c
}

// paletteColor looks a label up in a fixed palette
func paletteColor(palette map[string]string, label string) color.Color {
	if hex, ok := palette[label]; ok {
		return hexColor(hex)
	}
	return fallback
}

// Diverging maps a percentage to red below mid, yellow at mid and green at
// 100. The anchor is fixed so that equal values get equal colours across
// runs.
func Diverging(pct, mid float64) color.Color {
	pct = clamp(pct, 0, 100)
	if mid <= 0 {
		return divergingMid.BlendLab(divergingHigh, pct/100).Clamped()
	}
	if mid >= 100 {
		return divergingLow.BlendLab(divergingMid, pct/100).Clamped()
	}
	if pct <= mid {
		return divergingLow.BlendLab(divergingMid, pct/mid).Clamped()
	}
	return divergingMid.BlendLab(divergingHigh, (pct-mid)/(100-mid)).Clamped()
}

// sequential maps n in [0, max] onto a two-colour ramp
func sequential(low, high colorful.Color, n, max int) color.Color {
	if max <= 0 {
		return low
	}
	return low.BlendLab(high, clamp(float64(n)/float64(max), 0, 1)).Clamped()
}

// textColor picks a label colour readable on background
func textColor(background color.Color) color.Color {
	c, ok := colorful.MakeColor(background)
	if !ok {
		return labelDark
	}
	l, _, _ := c.Lab()
	if l < 0.55 {
		return labelLight
	}
	return labelDark
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
