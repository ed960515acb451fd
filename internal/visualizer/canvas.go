package visualizer

import (
	"image"
	"image/color"
	"math"
	"sync"
)

// Canvas is the 2D surface the spectrum is drawn on. Coordinates are in
// backing-buffer pixels with the origin at the top left.
type Canvas interface {
	Size() (width, height int)
	ClearRect(x, y, w, h float64)
	FillRect(x, y, w, h float64, fill HSL)
}

// BackingSize returns the pixel buffer size for a surface displayed at
// width×height logical units on a display with the given pixel ratio.
func BackingSize(width, height int, ratio float64) (int, int) {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		ratio = 1
	}
	return int(float64(width) * ratio), int(float64(height) * ratio)
}

// PixelCanvas is a Canvas backed by an RGBA image. Presenters read it with
// Lock/Image while the draw loop is between frames.
type PixelCanvas struct {
	mu  sync.Mutex
	img *image.RGBA
}

func NewPixelCanvas(width, height int) *PixelCanvas {
	return &PixelCanvas{img: image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))}
}

// Resize reallocates the backing buffer; its contents are cleared.
func (c *PixelCanvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img = image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))
}

func (c *PixelCanvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

func (c *PixelCanvas) ClearRect(x, y, w, h float64) {
	c.fill(x, y, w, h, color.RGBA{})
}

func (c *PixelCanvas) FillRect(x, y, w, h float64, fill HSL) {
	c.fill(x, y, w, h, fill.RGBA())
}

// At returns the pixel at x, y.
func (c *PixelCanvas) At(x, y int) color.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img.RGBAAt(x, y)
}

// View runs fn with the backing image held still.
func (c *PixelCanvas) View(fn func(img *image.RGBA)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.img)
}

// fill covers every pixel whose centre lies inside the rectangle.
func (c *PixelCanvas) fill(x, y, w, h float64, col color.RGBA) {
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rect := image.Rect(
		int(math.Ceil(x-0.5)), int(math.Ceil(y-0.5)),
		int(math.Ceil(x+w-0.5)), int(math.Ceil(y+h-0.5)),
	).Intersect(c.img.Bounds())
	for py := rect.Min.Y; py < rect.Max.Y; py++ {
		for px := rect.Min.X; px < rect.Max.X; px++ {
			c.img.SetRGBA(px, py, col)
		}
	}
}
