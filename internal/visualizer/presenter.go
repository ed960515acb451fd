package visualizer

import "errors"

// ErrWindowClosed is returned by a presenter whose window the user closed.
var ErrWindowClosed = errors.New("visualizer: window closed")

// Presenter shows a finished canvas frame somewhere visible.
type Presenter interface {
	Present(c *PixelCanvas, status string) error
}

var (
	_ Presenter = (*Terminal)(nil)
	_ Presenter = (*Window)(nil)
)
