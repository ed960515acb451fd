package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/guidoenr/ampsim/internal/amp"
	"github.com/guidoenr/ampsim/internal/audio"
	"github.com/guidoenr/ampsim/internal/controls"
	"github.com/guidoenr/ampsim/internal/graph"
	"github.com/guidoenr/ampsim/internal/visualizer"
)

// DeniedMessage is shown once when capture access is refused.
const DeniedMessage = "Microphone access was denied. Microphone access is needed to use AMP Controls."

// Config configures the application runtime.
type Config struct {
	DeviceName       string
	OutputDeviceName string
	SampleRate       float64
	BlockSize        int
	Latency          time.Duration
	TargetFPS        float64
	// Width and Height are the terminal size in cells, or the window size in
	// points when UseWindow is set.
	Width           int
	Height          int
	PixelRatio      float64
	DisableAudio    bool
	DisableKeyboard bool
	ShowStatusBar   bool
	UseANSI         bool
	UseWindow       bool
	ProfilePath     string
	Log             *log.Logger
	Stdout          io.Writer

	// Capture, Output, Notifier and Presenter replace the devices picked
	// from the flags above.
	Capture   Capturer
	Output    graph.Device
	Notifier  Notifier
	Presenter visualizer.Presenter
}

// Stream is an opened capture source.
type Stream interface {
	graph.SourceStream
	Close() error
}

// Capturer opens the input for the given constraints.
type Capturer func(cons audio.Constraints) (Stream, error)

// App ties together capture, the amp graph, the control panel and the
// spectrum display.
type App struct {
	cfg       Config
	log       *log.Logger
	panel     *controls.Panel
	audioCtx  *graph.Context
	canvas    *visualizer.PixelCanvas
	terminal  *visualizer.Terminal
	window    *visualizer.Window
	presenter visualizer.Presenter
	loop      *visualizer.Loop
	profiler  *profiler
	capture   Capturer
	notifiers []Notifier
	spectrum  []func([]uint8)

	mounted     bool
	inputEvents chan inputEvent
	setupDone   chan struct{}

	mu     sync.Mutex
	rig    *amp.Rig
	stream Stream
	label  string
	bins   []uint8
	closed bool
}

// New builds the panel, the audio context on its output device and the
// display. Capture is not requested until Run.
func New(cfg Config) (*App, error) {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 60
	}
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stderr, "[ampsim] ", 0)
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	if cfg.Height <= 0 {
		cfg.Height = 24
	}
	if cfg.PixelRatio <= 0 {
		cfg.PixelRatio = 1
	}

	out := cfg.Output
	if out == nil {
		if cfg.DisableAudio {
			out = audio.NewNullOutput(audio.NullConfig{SampleRate: cfg.SampleRate, BlockSize: cfg.BlockSize})
		} else {
			dev, err := audio.NewOutput(audio.OutputConfig{
				DeviceName: cfg.OutputDeviceName,
				SampleRate: cfg.SampleRate,
				BlockSize:  cfg.BlockSize,
			})
			if err != nil {
				return nil, fmt.Errorf("audio output: %w", err)
			}
			out = dev
		}
	}
	audioCtx, err := graph.NewContext(out)
	if err != nil {
		_ = out.Close()
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		log:       cfg.Log,
		panel:     controls.NewPanel(controls.Defaults()...),
		audioCtx:  audioCtx,
		canvas:    visualizer.NewPixelCanvas(0, 0),
		presenter: cfg.Presenter,
		capture:   cfg.Capture,
		profiler:  newProfiler(cfg.ProfilePath, cfg.Log),
		setupDone: make(chan struct{}),
	}
	if a.capture == nil {
		a.capture = defaultCapturer(cfg.DisableAudio)
	}
	if cfg.Notifier != nil {
		a.notifiers = append(a.notifiers, cfg.Notifier)
	} else {
		a.notifiers = append(a.notifiers, writerNotifier{w: cfg.Stdout, log: cfg.Log})
	}
	a.loop = &visualizer.Loop{
		Interval: time.Duration(float64(time.Second) / cfg.TargetFPS),
		Frame:    a.frame,
	}
	a.panel.OnState(func(s controls.State) {
		a.log.Printf("controls %s", s)
	})
	return a, nil
}

// Panel exposes the controls to other surfaces such as the web remote.
func (a *App) Panel() *controls.Panel { return a.panel }

// AudioContext is the graph context the amp is built on.
func (a *App) AudioContext() *graph.Context { return a.audioCtx }

// AddNotifier registers another surface for user-visible notices. Call
// before Run.
func (a *App) AddNotifier(n Notifier) { a.notifiers = append(a.notifiers, n) }

// OnSpectrum registers fn to receive every drawn spectrum frame. Call
// before Run.
func (a *App) OnSpectrum(fn func(bins []uint8)) { a.spectrum = append(a.spectrum, fn) }

// SetupDone is closed once the capture request has been answered and the
// graph built or abandoned.
func (a *App) SetupDone() <-chan struct{} { return a.setupDone }

// Run mounts the amp and blocks until ctx is cancelled or the user quits.
func (a *App) Run(ctx context.Context) error {
	if err := a.mount(ctx); err != nil {
		return err
	}
	defer a.unmount()

	setupDone := a.setupDone
	var loopDone <-chan struct{}
	for {
		if loopDone == nil {
			loopDone = a.loop.Done()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-loopDone:
			err := a.loop.Err()
			if errors.Is(err, visualizer.ErrWindowClosed) {
				return nil
			}
			return err
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			if evt.kind == inputQuit {
				return nil
			}
			a.handleInput(evt)
		case <-setupDone:
			// the loop only exists once setup has finished
			setupDone = nil
		}
	}
}

func (a *App) mount(ctx context.Context) error {
	if a.mounted {
		return errors.New("app: already mounted")
	}
	a.mounted = true

	if err := a.sizeCanvas(); err != nil {
		return err
	}
	if a.terminal != nil {
		a.terminal.Enter()
	}
	if !a.cfg.DisableKeyboard {
		a.startInputListener(ctx)
	}
	if err := a.panel.Begin(); err != nil {
		return err
	}

	go a.setup(ctx)
	return nil
}

// sizeCanvas sizes the backing buffer once from the client size and the
// pixel ratio. Later resizes are not followed.
func (a *App) sizeCanvas() error {
	width, height := a.cfg.Width, a.cfg.Height
	if a.presenter == nil {
		if a.cfg.UseWindow {
			bw, bh := visualizer.BackingSize(width, height, a.cfg.PixelRatio)
			window, err := visualizer.OpenWindow("ampsim", width, height, bw, bh)
			if err != nil {
				return fmt.Errorf("window: %w", err)
			}
			a.window = window
			a.presenter = window
		} else {
			rows := height
			if a.cfg.ShowStatusBar && rows > 1 {
				rows--
			}
			a.terminal = visualizer.NewTerminal(a.cfg.Stdout, width, rows, a.cfg.UseANSI)
			a.presenter = a.terminal
			// two canvas rows per text row
			height = rows * 2
		}
	}
	bw, bh := visualizer.BackingSize(width, height, a.cfg.PixelRatio)
	a.canvas.Resize(bw, bh)
	a.log.Printf("canvas %dx%d (ratio %.2f)", bw, bh, a.cfg.PixelRatio)
	return nil
}

// setup requests capture and builds the amp. It runs to completion even if
// the app is torn down first.
func (a *App) setup(ctx context.Context) {
	defer close(a.setupDone)

	cons := audio.DefaultConstraints()
	cons.DeviceName = a.cfg.DeviceName
	cons.SampleRate = a.audioCtx.SampleRate()
	cons.Latency = a.cfg.Latency

	stream, err := a.capture(cons)
	if err != nil {
		if audio.IsDenied(err) {
			a.deny(err)
			return
		}
		a.log.Printf("capture failed: %v", err)
		return
	}
	a.log.Printf("capture started%s @ %.0f Hz", labelSuffix(stream), a.audioCtx.SampleRate())
	if capture, ok := stream.(*audio.Capture); ok {
		a.log.Printf("input latency %v", capture.Latency())
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		_ = stream.Close()
		return
	}
	a.stream = stream
	a.label = streamLabel(stream)
	a.mu.Unlock()

	rig, err := amp.Build(a.audioCtx, stream, amp.SeedFrom(a.panel))
	if err != nil {
		a.log.Printf("build amp: %v", err)
		return
	}
	if err := a.panel.Bind(a.audioCtx, rig.Targets()); err != nil {
		a.log.Printf("bind controls: %v", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.rig = rig
	a.bins = make([]uint8, rig.Analyser.FrequencyBinCount())
	if err := a.loop.Start(ctx); err != nil {
		a.log.Printf("visualizer: %v", err)
	}
}

func (a *App) deny(err error) {
	a.log.Printf("capture denied: %v", err)
	if derr := a.panel.Deny(); derr != nil {
		a.log.Printf("deny: %v", derr)
	}
	for _, n := range a.notifiers {
		n.Notify(DeniedMessage)
	}
}

func (a *App) frame(ctx context.Context) error {
	a.mu.Lock()
	rig, bins := a.rig, a.bins
	a.mu.Unlock()
	if rig == nil {
		return nil
	}

	a.profiler.beginFrame()
	n := rig.Analyser.ByteFrequencyData(bins)
	a.profiler.markSection("analyse")

	visualizer.Draw(a.canvas, bins[:n])
	for _, fn := range a.spectrum {
		fn(bins[:n])
	}
	a.profiler.markSection("draw")

	status := ""
	if a.cfg.ShowStatusBar {
		status = a.status()
	}
	if a.presenter != nil {
		if err := a.presenter.Present(a.canvas, status); err != nil {
			return err
		}
	}
	a.profiler.markSection("present")
	a.profiler.endFrame()
	return nil
}

func (a *App) status() string {
	var b strings.Builder
	for i, c := range a.panel.Snapshot() {
		if i > 0 {
			b.WriteString(" | ")
		}
		spec, _ := a.panel.Spec(c.Name)
		fmt.Fprintf(&b, "%s %s", strings.ToLower(c.Label), spec.Format(c.Value))
	}
	a.mu.Lock()
	label, stream := a.label, a.stream
	a.mu.Unlock()
	if label != "" {
		fmt.Fprintf(&b, " | in=%s", label)
	}
	if capture, ok := stream.(*audio.Capture); ok {
		if dropped := capture.Dropped(); dropped > 0 {
			fmt.Fprintf(&b, " | dropped=%d", dropped)
		}
	}
	return b.String()
}

func (a *App) handleInput(evt inputEvent) {
	var err error
	switch evt.kind {
	case inputNudge:
		err = a.panel.Nudge(evt.control, evt.steps)
	case inputReset:
		err = a.panel.Reset(evt.control)
	case inputResetAll:
		err = a.panel.ResetAll()
	}
	if err != nil {
		if errors.Is(err, controls.ErrNotReady) {
			return
		}
		a.log.Printf("input: %v", err)
	}
}

// unmount stops the visualizer then releases the audio context and the
// capture stream.
func (a *App) unmount() {
	a.loop.Stop()
	if a.terminal != nil {
		a.terminal.Exit()
	}
	if err := a.Close(); err != nil {
		a.log.Printf("teardown: %v", err)
	}
}

// Close releases every held resource. It is safe to call more than once.
func (a *App) Close() error {
	a.loop.Stop()

	a.mu.Lock()
	a.closed = true
	stream := a.stream
	a.stream = nil
	a.mu.Unlock()

	var errs []error
	if err := a.audioCtx.Close(); err != nil {
		errs = append(errs, fmt.Errorf("audio context: %w", err))
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("capture: %w", err))
		}
	}
	if a.window != nil {
		_ = a.window.Close()
		a.window = nil
	}
	if err := a.profiler.Close(); err != nil {
		errs = append(errs, fmt.Errorf("profiler: %w", err))
	}
	return errors.Join(errs...)
}

func defaultCapturer(synthetic bool) Capturer {
	if synthetic {
		return func(cons audio.Constraints) (Stream, error) {
			return audio.NewSynth(cons.SampleRate), nil
		}
	}
	return func(cons audio.Constraints) (Stream, error) {
		capture, err := audio.NewCapture(cons)
		if err != nil {
			return nil, err
		}
		return capture, nil
	}
}

func streamLabel(s Stream) string {
	switch v := s.(type) {
	case *audio.Capture:
		if info := v.Device(); info != nil {
			return info.Name
		}
	case *audio.Synth:
		return "synth"
	}
	return ""
}

func labelSuffix(s Stream) string {
	if label := streamLabel(s); label != "" {
		return fmt.Sprintf(" on %q", label)
	}
	return ""
}
