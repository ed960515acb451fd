package visualizer

import (
	"fmt"
	"image"
	"io"
	"strings"

	"golang.org/x/image/draw"
)

const (
	resetANSI   = "\x1b[0m"
	defaultBG   = "\x1b[49m"
	upperHalf   = '▀'
	lowerHalf   = '▄'
	fullBlock   = '█'
	cursorHome  = "\x1b[H"
	clearScreen = "\x1b[2J"
)

// Terminal presents a PixelCanvas as half-block characters, two canvas rows
// per text row.
type Terminal struct {
	out     io.Writer
	useANSI bool
	cols    int
	rows    int
	scaled  *image.RGBA
}

func NewTerminal(out io.Writer, cols, rows int, useANSI bool) *Terminal {
	t := &Terminal{out: out, useANSI: useANSI}
	t.Resize(cols, rows)
	return t
}

// Resize sets the text grid the canvas is fitted to.
func (t *Terminal) Resize(cols, rows int) {
	t.cols = max(cols, 1)
	t.rows = max(rows, 1)
	t.scaled = image.NewRGBA(image.Rect(0, 0, t.cols, t.rows*2))
}

func (t *Terminal) Size() (cols, rows int) { return t.cols, t.rows }

// Enter switches to the alternate screen and hides the cursor.
func (t *Terminal) Enter() {
	fmt.Fprint(t.out, "\x1b[?1049h", clearScreen, cursorHome, "\x1b[?25l")
}

// Exit restores the cursor and the main screen.
func (t *Terminal) Exit() {
	fmt.Fprint(t.out, "\x1b[?25h", "\x1b[?1049l", resetANSI)
}

// Lines scales the canvas onto the text grid and encodes one string per row.
func (t *Terminal) Lines(c *PixelCanvas) []string {
	c.View(func(img *image.RGBA) {
		draw.NearestNeighbor.Scale(t.scaled, t.scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
	})

	lines := make([]string, t.rows)
	var builder strings.Builder
	for row := 0; row < t.rows; row++ {
		builder.Reset()
		builder.Grow(t.cols * 12)
		lastFG, lastBG := -1, -1
		for x := 0; x < t.cols; x++ {
			top := t.scaled.RGBAAt(x, row*2)
			bottom := t.scaled.RGBAAt(x, row*2+1)
			topLit := lit(top)
			bottomLit := lit(bottom)

			if !t.useANSI {
				builder.WriteRune(plainCell(topLit, bottomLit))
				continue
			}

			fg, bg := -1, -1
			glyph := ' '
			switch {
			case topLit && bottomLit:
				fg, bg, glyph = rgbToANSI(top), rgbToANSI(bottom), upperHalf
			case topLit:
				fg, glyph = rgbToANSI(top), upperHalf
			case bottomLit:
				fg, glyph = rgbToANSI(bottom), lowerHalf
			}
			if fg >= 0 && fg != lastFG {
				builder.WriteString(fgCode(fg))
				lastFG = fg
			}
			if bg != lastBG {
				if bg < 0 {
					builder.WriteString(defaultBG)
				} else {
					builder.WriteString(bgCode(bg))
				}
				lastBG = bg
			}
			builder.WriteRune(glyph)
		}
		if t.useANSI {
			builder.WriteString(resetANSI)
		}
		lines[row] = builder.String()
	}
	return lines
}

// Present redraws the grid in place followed by an optional status line.
func (t *Terminal) Present(c *PixelCanvas, status string) error {
	var b strings.Builder
	b.WriteString(cursorHome)
	for _, line := range t.Lines(c) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if status != "" {
		b.WriteString(StatusBar(status, t.cols))
	}
	_, err := io.WriteString(t.out, b.String())
	return err
}

// StatusBar pads or truncates text to exactly width columns.
func StatusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) >= width {
		return string(runes[:width])
	}
	return text + strings.Repeat(" ", width-len(runes))
}

func lit(c interface{ RGBA() (r, g, b, a uint32) }) bool {
	r, g, b, a := c.RGBA()
	return a != 0 && (r|g|b) != 0
}

func plainCell(top, bottom bool) rune {
	switch {
	case top && bottom:
		return fullBlock
	case top:
		return upperHalf
	case bottom:
		return lowerHalf
	default:
		return ' '
	}
}
