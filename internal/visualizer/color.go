package visualizer

import (
	"image/color"
	"math"
	"strconv"
)

// HSL is a fill colour. H is in degrees and wraps; S and L are percentages.
type HSL struct {
	H float64
	S float64
	L float64
}

// String renders the colour in CSS notation.
func (c HSL) String() string {
	return "hsl(" + strconv.FormatFloat(c.H, 'f', -1, 64) + ", " +
		strconv.FormatFloat(c.S, 'f', -1, 64) + "%, " +
		strconv.FormatFloat(c.L, 'f', -1, 64) + "%)"
}

// RGBA converts to an opaque 8-bit colour.
func (c HSL) RGBA() color.RGBA {
	r, g, b := hslToRGB(c.H, c.S/100, c.L/100)
	return color.RGBA{
		R: uint8(math.Round(clamp01(r) * 255)),
		G: uint8(math.Round(clamp01(g) * 255)),
		B: uint8(math.Round(clamp01(b) * 255)),
		A: 255,
	}
}

func hslToRGB(h, s, l float64) (float64, float64, float64) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	s = clamp01(s)
	l = clamp01(l)
	if s == 0 {
		return l, l, l
	}

	chroma := (1 - math.Abs(2*l-1)) * s
	hp := h / 60
	x := chroma * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch int(hp) % 6 {
	case 0:
		r, g, b = chroma, x, 0
	case 1:
		r, g, b = x, chroma, 0
	case 2:
		r, g, b = 0, chroma, x
	case 3:
		r, g, b = 0, x, chroma
	case 4:
		r, g, b = x, 0, chroma
	default:
		r, g, b = chroma, 0, x
	}
	m := l - chroma/2
	return r + m, g + m, b + m
}

var precomputedANSI [256]string

func init() {
	for i := range precomputedANSI {
		precomputedANSI[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
	}
}

func fgCode(index int) string {
	return precomputedANSI[clampInt(index, 0, len(precomputedANSI)-1)]
}

func bgCode(index int) string {
	return "\x1b[48;5;" + strconv.Itoa(clampInt(index, 0, 255)) + "m"
}

// rgbToANSI maps a colour onto the xterm 256-colour cube, using the grey
// ramp for neutral tones.
func rgbToANSI(c color.RGBA) int {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		if r < 0.02 {
			return 16
		}
		gray := clampInt(int(math.Round(r*23)), 0, 23)
		return 232 + gray
	}

	ri := clampInt(int(r*5+0.5), 0, 5)
	gi := clampInt(int(g*5+0.5), 0, 5)
	bi := clampInt(int(b*5+0.5), 0, 5)
	return 16 + 36*ri + 6*gi + bi
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
