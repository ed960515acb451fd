// Package amp builds the amplifier's processing chain: a three-band
// equalizer feeding a volume stage and a spectrum tap.
package amp

import (
	"fmt"
	"math"

	"github.com/guidoenr/ampsim/internal/controls"
	"github.com/guidoenr/ampsim/internal/graph"
)

// AnalyserFFTSize is the spectrum tap's FFT size.
const AnalyserFFTSize = 256

// Equalizer bands in chain order. Shelves use Q = 1/√2, a shelf slope of 1.
var (
	BassBand   = graph.Band{Kind: graph.LowShelf, Frequency: 500, Q: math.Sqrt2 / 2}
	MidBand    = graph.Band{Kind: graph.Peaking, Frequency: 1500, Q: math.Sqrt2 / 2}
	TrebleBand = graph.Band{Kind: graph.HighShelf, Frequency: 3000, Q: math.Sqrt2 / 2}
)

// Seed carries the control values the nodes start from.
type Seed struct {
	Volume float64
	Bass   float64
	Mid    float64
	Treble float64
}

// SeedFrom reads the current values of the panel's controls.
func SeedFrom(p *controls.Panel) Seed {
	return Seed{
		Volume: p.Value(controls.Volume),
		Bass:   p.Value(controls.Bass),
		Mid:    p.Value(controls.Mid),
		Treble: p.Value(controls.Treble),
	}
}

// Rig is the connected chain.
type Rig struct {
	Context  *graph.Context
	Source   *graph.Source
	Bass     *graph.Biquad
	Mid      *graph.Biquad
	Treble   *graph.Biquad
	Volume   *graph.Gain
	Analyser *graph.Analyser
}

// Build resumes ctx if needed, creates every node seeded from seed and
// connects source → bass → mid → treble → volume → analyser → destination.
// A context carries exactly one rig.
func Build(ctx *graph.Context, in graph.SourceStream, seed Seed) (*Rig, error) {
	if ctx.State() == graph.Suspended {
		if err := ctx.Resume(); err != nil {
			return nil, err
		}
	}

	source, err := ctx.CreateSource(in)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	bass, err := ctx.CreateBiquad(BassBand, seed.Bass)
	if err != nil {
		return nil, fmt.Errorf("bass: %w", err)
	}
	mid, err := ctx.CreateBiquad(MidBand, seed.Mid)
	if err != nil {
		return nil, fmt.Errorf("mid: %w", err)
	}
	treble, err := ctx.CreateBiquad(TrebleBand, seed.Treble)
	if err != nil {
		return nil, fmt.Errorf("treble: %w", err)
	}
	volume, err := ctx.CreateGain(seed.Volume)
	if err != nil {
		return nil, fmt.Errorf("volume: %w", err)
	}
	analyser, err := ctx.CreateAnalyser(AnalyserFFTSize)
	if err != nil {
		return nil, fmt.Errorf("analyser: %w", err)
	}

	if err := ctx.Connect(source, bass, mid, treble, volume, analyser, ctx.Destination()); err != nil {
		return nil, err
	}

	return &Rig{
		Context:  ctx,
		Source:   source,
		Bass:     bass,
		Mid:      mid,
		Treble:   treble,
		Volume:   volume,
		Analyser: analyser,
	}, nil
}

// Targets maps control names onto the parameters they drive.
func (r *Rig) Targets() map[string]controls.Target {
	return map[string]controls.Target{
		controls.Volume: r.Volume.Gain(),
		controls.Bass:   r.Bass.Gain(),
		controls.Mid:    r.Mid.Gain(),
		controls.Treble: r.Treble.Gain(),
	}
}
