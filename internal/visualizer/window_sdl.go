//go:build sdl

package visualizer

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
)

// Window presents a PixelCanvas in a desktop window.
type Window struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	width    int
	height   int
	title    string
}

// OpenWindow creates a window of width×height logical units whose texture
// matches the canvas backing size.
func OpenWindow(title string, width, height, backingWidth, backingHeight int) (*Window, error) {
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("sdl init: %w", err)
	}
	w := &Window{title: title}
	window, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_ALLOW_HIGHDPI,
	)
	if err != nil {
		return nil, err
	}
	w.window = window
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	w.renderer = renderer
	_ = renderer.SetLogicalSize(int32(backingWidth), int32(backingHeight))
	if err := w.ensureTexture(backingWidth, backingHeight); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Window) ensureTexture(width, height int) error {
	if w.texture != nil && w.width == width && w.height == height {
		return nil
	}
	if w.texture != nil {
		w.texture.Destroy()
		w.texture = nil
	}
	tex, err := w.renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(width), int32(height),
	)
	if err != nil {
		return err
	}
	w.texture = tex
	w.width = width
	w.height = height
	return nil
}

// Present uploads the canvas and drains window events. Closing the window
// yields ErrWindowClosed.
func (w *Window) Present(c *PixelCanvas, status string) error {
	if status != "" && status != w.title {
		w.window.SetTitle(status)
		w.title = status
	}
	var err error
	c.View(func(img *image.RGBA) {
		b := img.Bounds()
		if b.Empty() {
			return
		}
		if err = w.ensureTexture(b.Dx(), b.Dy()); err != nil {
			return
		}
		err = w.texture.Update(nil, unsafe.Pointer(&img.Pix[0]), img.Stride)
	})
	if err != nil {
		return err
	}
	if err := w.renderer.Clear(); err != nil {
		return err
	}
	if err := w.renderer.Copy(w.texture, nil, nil); err != nil {
		return err
	}
	w.renderer.Present()
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if _, ok := event.(*sdl.QuitEvent); ok {
			return ErrWindowClosed
		}
	}
	return nil
}

func (w *Window) Close() error {
	if w.texture != nil {
		w.texture.Destroy()
		w.texture = nil
	}
	if w.renderer != nil {
		w.renderer.Destroy()
		w.renderer = nil
	}
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}

func SupportsWindow() bool { return true }
