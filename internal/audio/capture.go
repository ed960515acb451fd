package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Constraints describe the requested input. The three processing switches
// must stay off: an instrument signal is captured raw. Latency is a hint and
// the stream never asks for less than the device's low-latency default.
type Constraints struct {
	DeviceName       string
	SampleRate       float64
	Channels         int
	Latency          time.Duration
	EchoCancellation bool
	AutoGainControl  bool
	NoiseSuppression bool
	// Capacity is the FIFO size in mono samples.
	Capacity int
}

// DefaultConstraints returns a raw, lowest-latency request.
func DefaultConstraints() Constraints {
	return Constraints{
		Channels:         2,
		Latency:          0,
		EchoCancellation: false,
		AutoGainControl:  false,
		NoiseSuppression: false,
	}
}

func (c Constraints) validate() error {
	switch {
	case c.EchoCancellation:
		return fmt.Errorf("%w: echo cancellation", ErrUnsupportedConstraint)
	case c.AutoGainControl:
		return fmt.Errorf("%w: automatic gain control", ErrUnsupportedConstraint)
	case c.NoiseSuppression:
		return fmt.Errorf("%w: noise suppression", ErrUnsupportedConstraint)
	case c.Latency < 0:
		return fmt.Errorf("%w: negative latency %v", ErrUnsupportedConstraint, c.Latency)
	}
	return nil
}

const defaultCapacity = 8192

// Capture is a live PortAudio input stream mixed to mono and queued in a
// bounded FIFO for the audio graph to drain.
type Capture struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	latency    time.Duration
	device     *portaudio.DeviceInfo

	fifo *fifo
}

// NewCapture opens and starts an input stream. A refusal from the host is
// returned as a *DeniedError.
func NewCapture(cons Constraints) (*Capture, error) {
	if err := cons.validate(); err != nil {
		return nil, err
	}
	if cons.Channels <= 0 {
		cons.Channels = 1
	}
	if cons.Capacity <= 0 {
		cons.Capacity = defaultCapacity
	}

	device, err := findInputDevice(cons.DeviceName)
	if err != nil {
		return nil, err
	}
	channels := min(cons.Channels, device.MaxInputChannels)
	latency := max(cons.Latency, device.DefaultLowInputLatency)
	sampleRate := cons.SampleRate
	if sampleRate <= 0 {
		sampleRate = device.DefaultSampleRate
	}

	capture := &Capture{
		sampleRate: sampleRate,
		channels:   channels,
		latency:    latency,
		device:     device,
		fifo:       newFIFO(cons.Capacity),
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  latency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}, capture.process)
	if err != nil {
		return nil, classifyStreamError("open input stream", err)
	}
	capture.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, classifyStreamError("start input stream", err)
	}
	return capture, nil
}

// Close stops and closes the underlying PortAudio stream.
func (c *Capture) Close() error {
	if c.stream == nil {
		return nil
	}
	if err := c.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
		return err
	}
	err := c.stream.Close()
	c.stream = nil
	return err
}

func (c *Capture) SampleRate() float64 { return c.sampleRate }

// Latency is the input latency actually requested from the device.
func (c *Capture) Latency() time.Duration { return c.latency }

func (c *Capture) Device() *portaudio.DeviceInfo { return c.device }

// Read drains up to len(dst) queued samples.
func (c *Capture) Read(dst []float32) int {
	return c.fifo.read(dst)
}

// Dropped counts samples discarded because the reader fell behind.
func (c *Capture) Dropped() uint64 {
	return c.fifo.droppedCount()
}

func (c *Capture) process(in []float32) {
	if c.channels <= 1 {
		c.fifo.write(in)
		return
	}
	frames := len(in) / c.channels
	mono := c.fifo.scratch(frames)
	for i := range mono {
		sum := float32(0)
		base := i * c.channels
		for ch := 0; ch < c.channels; ch++ {
			sum += in[base+ch]
		}
		mono[i] = sum / float32(c.channels)
	}
	c.fifo.write(mono)
}

// fifo is a bounded single-producer single-consumer sample queue. When full
// the oldest samples are overwritten so the output stays close to live.
type fifo struct {
	mu      sync.Mutex
	buf     []float32
	head    int
	size    int
	dropped uint64
	mix     []float32
}

func newFIFO(capacity int) *fifo {
	return &fifo{buf: make([]float32, capacity)}
}

// scratch returns a reusable mixing buffer; only the writer calls it.
func (f *fifo) scratch(n int) []float32 {
	if cap(f.mix) < n {
		f.mix = make([]float32, n)
	}
	return f.mix[:n]
}

func (f *fifo) write(in []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	capacity := len(f.buf)
	if len(in) >= capacity {
		f.dropped += uint64(f.size + len(in) - capacity)
		copy(f.buf, in[len(in)-capacity:])
		f.head = 0
		f.size = capacity
		return
	}
	if overflow := f.size + len(in) - capacity; overflow > 0 {
		f.head = (f.head + overflow) % capacity
		f.size -= overflow
		f.dropped += uint64(overflow)
	}
	tail := (f.head + f.size) % capacity
	n := copy(f.buf[tail:], in)
	copy(f.buf, in[n:])
	f.size += len(in)
}

func (f *fifo) read(dst []float32) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := min(len(dst), f.size)
	first := copy(dst[:n], f.buf[f.head:])
	copy(dst[first:n], f.buf)
	f.head = (f.head + n) % len(f.buf)
	f.size -= n
	return n
}

func (f *fifo) droppedCount() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}
