package graph

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrContextClosed = errors.New("graph: context closed")
	ErrGraphFrozen   = errors.New("graph: chain already connected")
	ErrForeignNode   = errors.New("graph: node belongs to another context")
)

// RenderFunc fills one interleaved output block.
type RenderFunc func(out []float32)

// Device is the output side of a Context. It calls the installed RenderFunc
// from its own real-time goroutine or callback thread.
type Device interface {
	SampleRate() float64
	Channels() int
	Start(render RenderFunc) error
	Stop() error
	Close() error
}

// SourceStream is a live mono input feeding a Source node. Read returns the
// number of samples written into dst.
type SourceStream interface {
	Read(dst []float32) int
}

// State is the lifecycle state of a Context.
type State int

const (
	Suspended State = iota
	Running
	Closed
)

func (s State) String() string {
	switch s {
	case Suspended:
		return "suspended"
	case Running:
		return "running"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Context owns an output device, the audio clock and every node created on
// it. The node chain is connected once and never changes afterwards.
type Context struct {
	device     Device
	sampleRate float64
	channels   int

	life  sync.Mutex
	state atomic.Int32

	frames atomic.Uint64

	mu      sync.Mutex
	chain   []Node
	created int
	dest    *Destination
	block   []float64
}

// NewContext wraps dev in a suspended Context.
func NewContext(dev Device) (*Context, error) {
	if dev == nil {
		return nil, errors.New("graph: nil device")
	}
	rate := dev.SampleRate()
	if rate <= 0 || !finite(rate) {
		return nil, fmt.Errorf("graph: invalid device sample rate %v", rate)
	}
	channels := dev.Channels()
	if channels <= 0 {
		channels = 1
	}
	c := &Context{
		device:     dev,
		sampleRate: rate,
		channels:   channels,
	}
	c.dest = &Destination{node: node{ctx: c}}
	c.state.Store(int32(Suspended))
	return c, nil
}

func (c *Context) SampleRate() float64 { return c.sampleRate }

func (c *Context) State() State { return State(c.state.Load()) }

// CurrentTime is the number of rendered frames in seconds. It does not
// advance while the context is suspended.
func (c *Context) CurrentTime() float64 {
	return float64(c.frames.Load()) / c.sampleRate
}

// Destination is the terminal node that feeds the device.
func (c *Context) Destination() *Destination { return c.dest }

// NodeCount reports how many processing nodes were created on the context.
func (c *Context) NodeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

// Resume starts the device. Resuming a running context is a no-op.
func (c *Context) Resume() error {
	c.life.Lock()
	defer c.life.Unlock()

	switch c.State() {
	case Closed:
		return ErrContextClosed
	case Running:
		return nil
	}
	if err := c.device.Start(c.render); err != nil {
		return fmt.Errorf("graph: resume: %w", err)
	}
	c.state.Store(int32(Running))
	return nil
}

// Suspend stops the device and freezes the clock.
func (c *Context) Suspend() error {
	c.life.Lock()
	defer c.life.Unlock()

	switch c.State() {
	case Closed:
		return ErrContextClosed
	case Suspended:
		return nil
	}
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("graph: suspend: %w", err)
	}
	c.state.Store(int32(Suspended))
	return nil
}

// Close stops and releases the device. It is safe to call more than once.
func (c *Context) Close() error {
	c.life.Lock()
	defer c.life.Unlock()

	state := c.State()
	if state == Closed {
		return nil
	}
	c.state.Store(int32(Closed))
	var errs []error
	if state == Running {
		if err := c.device.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop device: %w", err))
		}
	}
	if err := c.device.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close device: %w", err))
	}
	return errors.Join(errs...)
}

// Connect wires nodes into the single linear chain of the context. The
// first node must be a *Source and the last the context's Destination.
func (c *Context) Connect(nodes ...Node) error {
	if c.State() == Closed {
		return ErrContextClosed
	}
	if len(nodes) < 2 {
		return errors.New("graph: chain needs a source and the destination")
	}
	if _, ok := nodes[0].(*Source); !ok {
		return fmt.Errorf("graph: chain must start with a source, got %T", nodes[0])
	}
	if nodes[len(nodes)-1] != Node(c.dest) {
		return errors.New("graph: chain must end at the destination")
	}

	seen := make(map[Node]bool, len(nodes))
	for i, n := range nodes {
		if n == nil {
			return fmt.Errorf("graph: nil node at position %d", i)
		}
		if n.Context() != c {
			return ErrForeignNode
		}
		if seen[n] {
			return fmt.Errorf("graph: node %T connected twice", n)
		}
		seen[n] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chain != nil {
		return ErrGraphFrozen
	}
	c.chain = append([]Node(nil), nodes...)
	return nil
}

// Connected reports whether the chain has been wired.
func (c *Context) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chain != nil
}

func (c *Context) register() error {
	if c.State() == Closed {
		return ErrContextClosed
	}
	c.mu.Lock()
	c.created++
	c.mu.Unlock()
	return nil
}

func (c *Context) render(out []float32) {
	if c.State() != Running {
		// a late callback from a stopping device renders silence
		for i := range out {
			out[i] = 0
		}
		return
	}
	frames := len(out) / c.channels
	t0 := c.CurrentTime()

	c.mu.Lock()
	if cap(c.block) < frames {
		c.block = make([]float64, frames)
	}
	buf := c.block[:frames]
	for i := range buf {
		buf[i] = 0
	}
	for _, n := range c.chain {
		n.process(buf, t0)
	}
	for i, v := range buf {
		s := float32(v)
		base := i * c.channels
		for ch := 0; ch < c.channels; ch++ {
			out[base+ch] = s
		}
	}
	c.mu.Unlock()

	for i := frames * c.channels; i < len(out); i++ {
		out[i] = 0
	}
	c.frames.Add(uint64(frames))
}
