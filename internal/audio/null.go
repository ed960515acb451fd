package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/guidoenr/ampsim/internal/graph"
)

// NullConfig configures a NullOutput.
type NullConfig struct {
	SampleRate float64
	Channels   int
	BlockSize  int
	// Manual disables the internal clock; blocks render only through Pump.
	Manual bool
}

// NullOutput is a graph.Device that renders in real time and discards the
// result. It stands in for a sound card under --no-audio and in tests.
type NullOutput struct {
	cfg NullConfig

	mu       sync.Mutex
	render   graph.RenderFunc
	buf      []float32
	stop     chan struct{}
	done     chan struct{}
	closed   bool
	rendered uint64
}

func NewNullOutput(cfg NullConfig) *NullOutput {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48_000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 256
	}
	return &NullOutput{
		cfg: cfg,
		buf: make([]float32, cfg.BlockSize*cfg.Channels),
	}
}

func (n *NullOutput) SampleRate() float64 { return n.cfg.SampleRate }

func (n *NullOutput) Channels() int { return n.cfg.Channels }

func (n *NullOutput) Start(render graph.RenderFunc) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errors.New("null output closed")
	}
	n.render = render
	if n.cfg.Manual || n.stop != nil {
		return nil
	}

	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	interval := time.Duration(float64(n.cfg.BlockSize) / n.cfg.SampleRate * float64(time.Second))
	go n.run(interval, n.stop, n.done)
	return nil
}

func (n *NullOutput) run(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.Pump(1)
		}
	}
}

// Pump renders blocks synchronously and returns the last block.
func (n *NullOutput) Pump(blocks int) []float32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.render == nil {
		return nil
	}
	for i := 0; i < blocks; i++ {
		n.render(n.buf)
		n.rendered++
	}
	return n.buf
}

// Rendered reports how many blocks have been rendered.
func (n *NullOutput) Rendered() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rendered
}

func (n *NullOutput) Stop() error {
	n.mu.Lock()
	stop, done := n.stop, n.done
	n.stop, n.done = nil, nil
	n.render = nil
	n.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (n *NullOutput) Close() error {
	err := n.Stop()
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return err
}
