package graph

import (
	"fmt"
	"math"
)

// Node is one stage of a Context's chain.
type Node interface {
	Context() *Context
	process(buf []float64, t0 float64)
}

type node struct {
	ctx *Context
}

func (n node) Context() *Context { return n.ctx }

// Source pulls samples from a live stream into the chain.
type Source struct {
	node
	stream  SourceStream
	scratch []float32
}

// CreateSource wraps stream as the head of a chain.
func (c *Context) CreateSource(stream SourceStream) (*Source, error) {
	if stream == nil {
		return nil, fmt.Errorf("graph: nil source stream")
	}
	if err := c.register(); err != nil {
		return nil, err
	}
	return &Source{node: node{ctx: c}, stream: stream}, nil
}

func (s *Source) process(buf []float64, _ float64) {
	if cap(s.scratch) < len(buf) {
		s.scratch = make([]float32, len(buf))
	}
	in := s.scratch[:len(buf)]
	n := s.stream.Read(in)
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		buf[i] = float64(in[i])
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

// Gain scales the signal by an a-rate parameter.
type Gain struct {
	node
	gain    *Param
	scratch []float64
}

// CreateGain returns a gain node seeded with value.
func (c *Context) CreateGain(value float64) (*Gain, error) {
	if !finite(value) {
		return nil, fmt.Errorf("%w: gain %v", ErrInvalidParam, value)
	}
	if err := c.register(); err != nil {
		return nil, err
	}
	return &Gain{
		node: node{ctx: c},
		gain: newParam(value, -math.MaxFloat32, math.MaxFloat32),
	}, nil
}

func (g *Gain) Gain() *Param { return g.gain }

func (g *Gain) process(buf []float64, t0 float64) {
	if cap(g.scratch) < len(buf) {
		g.scratch = make([]float64, len(buf))
	}
	levels := g.scratch[:len(buf)]
	g.gain.fill(levels, t0, 1/g.ctx.sampleRate)
	for i := range buf {
		buf[i] *= levels[i]
	}
}

// Destination hands the chain output to the device.
type Destination struct {
	node
}

func (d *Destination) process([]float64, float64) {}
