package audio

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/guidoenr/ampsim/internal/graph"
)

// OutputConfig selects the playback device for the audio graph.
type OutputConfig struct {
	DeviceName string
	SampleRate float64
	Channels   int
	// BlockSize is the frames per callback; zero lets PortAudio choose.
	BlockSize int
}

// Output is a PortAudio playback stream driving a graph.Context.
type Output struct {
	stream     *portaudio.Stream
	device     *portaudio.DeviceInfo
	sampleRate float64
	channels   int

	render atomic.Pointer[graph.RenderFunc]
}

// NewOutput opens, but does not start, a playback stream.
func NewOutput(cfg OutputConfig) (*Output, error) {
	device, err := findOutputDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}
	channels := cfg.Channels
	if channels <= 0 || channels > device.MaxOutputChannels {
		channels = min(2, device.MaxOutputChannels)
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = device.DefaultSampleRate
	}
	framesPerBuffer := cfg.BlockSize
	if framesPerBuffer < 64 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}

	o := &Output{
		device:     device,
		sampleRate: sampleRate,
		channels:   channels,
	}
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowOutputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, o.process)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	o.stream = stream
	return o, nil
}

func (o *Output) SampleRate() float64 { return o.sampleRate }

func (o *Output) Channels() int { return o.channels }

func (o *Output) Device() *portaudio.DeviceInfo { return o.device }

// Start installs render and starts the stream.
func (o *Output) Start(render graph.RenderFunc) error {
	if o.stream == nil {
		return errors.New("output stream closed")
	}
	o.render.Store(&render)
	if err := o.stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	return nil
}

func (o *Output) Stop() error {
	if o.stream == nil {
		return nil
	}
	if err := o.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
		return fmt.Errorf("stop output stream: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	if o.stream == nil {
		return nil
	}
	err := o.stream.Close()
	o.stream = nil
	return err
}

func (o *Output) process(out []float32) {
	render := o.render.Load()
	if render == nil {
		for i := range out {
			out[i] = 0
		}
		return
	}
	(*render)(out)
}
