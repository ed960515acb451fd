package graph

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// FilterKind selects the biquad response of a Band.
type FilterKind int

const (
	LowShelf FilterKind = iota
	Peaking
	HighShelf
)

func (k FilterKind) String() string {
	switch k {
	case LowShelf:
		return "lowshelf"
	case Peaking:
		return "peaking"
	case HighShelf:
		return "highshelf"
	default:
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
}

// Band describes one equalizer band. Frequency is the corner frequency for
// shelves and the centre frequency for peaking bands.
type Band struct {
	Kind      FilterKind
	Frequency float64
	Q         float64
}

// Coefficients designs the band for the given gain in dB.
func (b Band) Coefficients(gainDB, sampleRate float64) biquad.Coefficients {
	switch b.Kind {
	case LowShelf:
		return design.LowShelf(b.Frequency, gainDB, b.Q, sampleRate)
	case HighShelf:
		return design.HighShelf(b.Frequency, gainDB, b.Q, sampleRate)
	default:
		return design.Peak(b.Frequency, gainDB, b.Q, sampleRate)
	}
}

const maxBandGainDB = 40

// Biquad is an equalizer band whose gain (dB) is a k-rate parameter.
type Biquad struct {
	node
	band    Band
	gain    *Param
	section *biquad.Section

	designed     bool
	designedGain float64
}

// CreateBiquad returns an equalizer node for band, seeded with gainDB.
func (c *Context) CreateBiquad(band Band, gainDB float64) (*Biquad, error) {
	if band.Frequency <= 0 || band.Frequency >= c.sampleRate/2 {
		return nil, fmt.Errorf("graph: %s frequency %.1f Hz outside (0, %.1f)", band.Kind, band.Frequency, c.sampleRate/2)
	}
	if band.Q <= 0 || !finite(band.Q) {
		return nil, fmt.Errorf("graph: %s Q must be positive, got %v", band.Kind, band.Q)
	}
	if !finite(gainDB) {
		return nil, fmt.Errorf("%w: gain %v dB", ErrInvalidParam, gainDB)
	}
	if err := c.register(); err != nil {
		return nil, err
	}
	b := &Biquad{
		node: node{ctx: c},
		band: band,
		gain: newParam(gainDB, -maxBandGainDB, maxBandGainDB),
	}
	b.section = biquad.NewSection(band.Coefficients(b.gain.Value(), c.sampleRate))
	b.designed = true
	b.designedGain = b.gain.Value()
	return b, nil
}

func (b *Biquad) Band() Band { return b.band }

// Gain is the band gain in dB.
func (b *Biquad) Gain() *Param { return b.gain }

// ResponseDB returns the magnitude response at freq for the current gain.
func (b *Biquad) ResponseDB(freq float64) float64 {
	c := b.band.Coefficients(b.gain.Value(), b.ctx.sampleRate)
	return c.MagnitudeDB(freq, b.ctx.sampleRate)
}

func (b *Biquad) process(buf []float64, t0 float64) {
	g := b.gain.sample(t0)
	if !b.designed || math.Abs(g-b.designedGain) > 1e-6 {
		b.section.Coefficients = b.band.Coefficients(g, b.ctx.sampleRate)
		b.designed = true
		b.designedGain = g
	}
	b.section.ProcessBlock(buf)
}
