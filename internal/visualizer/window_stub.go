//go:build !sdl

package visualizer

import "errors"

// Window is unavailable without the sdl build tag.
type Window struct{}

func OpenWindow(title string, width, height, backingWidth, backingHeight int) (*Window, error) {
	return nil, errors.New("window backend not enabled; rebuild with -tags sdl")
}

func (w *Window) Present(c *PixelCanvas, status string) error { return ErrWindowClosed }

func (w *Window) Close() error { return nil }

func SupportsWindow() bool { return false }
