package visualizer

// Bar is one spectrum column in canvas pixels.
type Bar struct {
	X, Y          float64
	Width, Height float64
	Fill          HSL
}

// Bars lays out one bar per bin across a width×height canvas. A full-scale
// bin reaches half the canvas height; the hue follows the bar height.
func Bars(bins []uint8, width, height int) []Bar {
	if len(bins) == 0 || width <= 0 || height <= 0 {
		return nil
	}
	w := float64(width)
	h := float64(height)
	barWidth := w / float64(len(bins))

	bars := make([]Bar, len(bins))
	for i, v := range bins {
		y := float64(v) / 255 * (h / 2)
		bars[i] = Bar{
			X:      barWidth * float64(i),
			Y:      h - y,
			Width:  barWidth,
			Height: y,
			Fill:   HSL{H: y / h * 400, S: 100, L: 50},
		}
	}
	return bars
}

// Draw clears the canvas and paints the spectrum.
func Draw(c Canvas, bins []uint8) {
	width, height := c.Size()
	c.ClearRect(0, 0, float64(width), float64(height))
	for _, b := range Bars(bins, width, height) {
		c.FillRect(b.X, b.Y, b.Width, b.Height, b.Fill)
	}
}
