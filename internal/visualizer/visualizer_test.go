package visualizer

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func ramp(n int) []uint8 {
	bins := make([]uint8, n)
	for i := range bins {
		bins[i] = uint8(i * 255 / (n - 1))
	}
	return bins
}

func TestBarsLayout(t *testing.T) {
	bins := ramp(256)
	bars := Bars(bins, 512, 200)
	if len(bars) != 256 {
		t.Fatalf("bars=%d want 256", len(bars))
	}
	for i, b := range bars {
		if b.Width != 2 {
			t.Fatalf("bar %d width=%f want 2", i, b.Width)
		}
		if b.X != float64(i)*2 {
			t.Fatalf("bar %d x=%f", i, b.X)
		}
		if b.Y+b.Height != 200 {
			t.Fatalf("bar %d does not sit on the bottom edge", i)
		}
		if i > 0 && b.Height < bars[i-1].Height {
			t.Fatalf("bar %d shorter than bar %d for rising input", i, i-1)
		}
	}
	if got := bars[255].Height; got != 100 {
		t.Fatalf("full-scale bar height=%f want half the canvas", got)
	}
	if bars[0].Height != 0 {
		t.Fatalf("silent bar height=%f want 0", bars[0].Height)
	}
}

func TestBarHue(t *testing.T) {
	bars := Bars([]uint8{0, 51, 255}, 300, 100)
	want := []float64{0, 0.2 * 50 / 100 * 400, 200}
	for i, b := range bars {
		if math.Abs(b.Fill.H-want[i]) > 1e-9 {
			t.Fatalf("bar %d hue=%f want %f", i, b.Fill.H, want[i])
		}
		if b.Fill.S != 100 || b.Fill.L != 50 {
			t.Fatalf("bar %d fill=%s", i, b.Fill)
		}
	}
}

func TestBarsEmpty(t *testing.T) {
	if Bars(nil, 100, 100) != nil {
		t.Fatalf("expected no bars without bins")
	}
	if Bars([]uint8{1}, 0, 100) != nil {
		t.Fatalf("expected no bars on a zero-width canvas")
	}
}

func TestBackingSize(t *testing.T) {
	cases := []struct {
		w, h   int
		ratio  float64
		bw, bh int
	}{
		{640, 480, 1, 640, 480},
		{640, 480, 2, 1280, 960},
		{300, 150, 1.5, 450, 225},
		{300, 150, 0, 300, 150},
		{300, 150, math.NaN(), 300, 150},
	}
	for _, c := range cases {
		bw, bh := BackingSize(c.w, c.h, c.ratio)
		if bw != c.bw || bh != c.bh {
			t.Fatalf("BackingSize(%d,%d,%v)=%d,%d want %d,%d", c.w, c.h, c.ratio, bw, bh, c.bw, c.bh)
		}
	}
}

func TestHSL(t *testing.T) {
	if got := (HSL{H: 120, S: 100, L: 50}).String(); got != "hsl(120, 100%, 50%)" {
		t.Fatalf("String=%q", got)
	}
	cases := []struct {
		c    HSL
		want color.RGBA
	}{
		{HSL{0, 100, 50}, color.RGBA{255, 0, 0, 255}},
		{HSL{120, 100, 50}, color.RGBA{0, 255, 0, 255}},
		{HSL{240, 100, 50}, color.RGBA{0, 0, 255, 255}},
		{HSL{360, 100, 50}, color.RGBA{255, 0, 0, 255}},
		{HSL{480, 100, 50}, color.RGBA{0, 255, 0, 255}},
		{HSL{0, 0, 100}, color.RGBA{255, 255, 255, 255}},
	}
	for _, c := range cases {
		if got := c.c.RGBA(); got != c.want {
			t.Fatalf("%s RGBA=%v want %v", c.c, got, c.want)
		}
	}
}

func TestPixelCanvasDrawAndClear(t *testing.T) {
	c := NewPixelCanvas(4, 4)
	Draw(c, []uint8{255, 0})
	// left bar: full scale, height 2 of 4, covering rows 2..3 of columns 0..1
	if got := c.At(0, 3); got.A != 255 {
		t.Fatalf("pixel (0,3)=%v want painted", got)
	}
	if got := c.At(0, 1); got.A != 0 {
		t.Fatalf("pixel (0,1)=%v want clear above the bar", got)
	}
	if got := c.At(3, 3); got.A != 0 {
		t.Fatalf("pixel (3,3)=%v want clear for a silent bin", got)
	}

	Draw(c, []uint8{0, 0})
	if got := c.At(0, 3); got.A != 0 {
		t.Fatalf("previous frame not cleared: %v", got)
	}
}

func TestPixelCanvasResize(t *testing.T) {
	c := NewPixelCanvas(2, 2)
	c.Resize(8, 3)
	if w, h := c.Size(); w != 8 || h != 3 {
		t.Fatalf("size=%dx%d want 8x3", w, h)
	}
}

func TestLoopStartStop(t *testing.T) {
	var frames atomic.Int32
	loop := &Loop{Interval: time.Millisecond, Frame: func(context.Context) error {
		frames.Add(1)
		return nil
	}}
	if loop.Running() {
		t.Fatalf("loop running before Start")
	}

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := loop.Start(context.Background()); !errors.Is(err, ErrLoopStarted) {
		t.Fatalf("second Start err=%v want ErrLoopStarted", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for frames.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if frames.Load() < 3 {
		t.Fatalf("loop did not tick")
	}
	loop.Stop()
	loop.Stop()
	if loop.Running() {
		t.Fatalf("loop still running after Stop")
	}
	after := frames.Load()
	time.Sleep(10 * time.Millisecond)
	if frames.Load() != after {
		t.Fatalf("frames drawn after Stop")
	}
	if got := loop.Frames(); got != uint64(after) {
		t.Fatalf("Frames=%d want %d", got, after)
	}
	if err := loop.Start(context.Background()); !errors.Is(err, ErrLoopStopped) {
		t.Fatalf("Start after Stop err=%v want ErrLoopStopped", err)
	}
}

func TestLoopStoppedBeforeStartNeverRuns(t *testing.T) {
	var frames atomic.Int32
	loop := &Loop{Interval: time.Millisecond, Frame: func(context.Context) error {
		frames.Add(1)
		return nil
	}}
	loop.Stop()
	if err := loop.Start(context.Background()); !errors.Is(err, ErrLoopStopped) {
		t.Fatalf("Start err=%v want ErrLoopStopped", err)
	}
	time.Sleep(10 * time.Millisecond)
	if loop.Running() || frames.Load() != 0 || loop.Frames() != 0 {
		t.Fatalf("stopped loop ran %d frames", frames.Load())
	}
}

func TestLoopEndsOnFrameError(t *testing.T) {
	boom := errors.New("boom")
	loop := &Loop{Interval: time.Millisecond, Frame: func(context.Context) error { return boom }}
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not exit")
	}
	if !errors.Is(loop.Err(), boom) {
		t.Fatalf("Err=%v want boom", loop.Err())
	}
}

func TestLoopEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := &Loop{Interval: time.Millisecond, Frame: func(context.Context) error { return nil }}
	_ = loop.Start(ctx)
	cancel()
	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("loop ignored cancellation")
	}
}

func TestTerminalLines(t *testing.T) {
	c := NewPixelCanvas(8, 8)
	Draw(c, []uint8{255, 255, 0, 0})

	term := NewTerminal(&bytes.Buffer{}, 4, 2, false)
	lines := term.Lines(c)
	if len(lines) != 2 {
		t.Fatalf("lines=%d want 2", len(lines))
	}
	// bars fill the bottom half: the first text row is blank, the second is solid
	if lines[0] != "    " {
		t.Fatalf("top row=%q", lines[0])
	}
	if lines[1] != "██  " {
		t.Fatalf("bottom row=%q", lines[1])
	}
}

func TestTerminalPresentANSI(t *testing.T) {
	c := NewPixelCanvas(8, 8)
	Draw(c, []uint8{255, 0})
	var buf bytes.Buffer
	term := NewTerminal(&buf, 8, 2, true)
	if err := term.Present(c, "ready"); err != nil {
		t.Fatalf("Present: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, cursorHome) {
		t.Fatalf("frame does not start at home")
	}
	if !strings.Contains(out, "\x1b[38;5;") || !strings.Contains(out, string(upperHalf)) {
		t.Fatalf("no coloured half blocks in %q", out)
	}
	if !strings.HasSuffix(out, "ready   ") {
		t.Fatalf("status line missing: %q", out)
	}
}

func TestStatusBar(t *testing.T) {
	if got := StatusBar("abc", 5); got != "abc  " {
		t.Fatalf("pad=%q", got)
	}
	if got := StatusBar("abcdef", 3); got != "abc" {
		t.Fatalf("truncate=%q", got)
	}
}
