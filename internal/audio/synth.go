package audio

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// open-string frequencies of a standard-tuned guitar, low E to high E
var openStrings = [6]float64{82.41, 110.00, 146.83, 196.00, 246.94, 329.63}

// Synth is a stand-in input that strums plucked strings (Karplus-Strong).
// It lets the amp run under --no-audio and in tests without a device.
type Synth struct {
	mu         sync.Mutex
	rng        *rand.Rand
	sampleRate float64
	strings    [6]pluck
	clock      int
	nextStrum  int
	level      float64
}

type pluck struct {
	line []float64
	pos  int
}

// NewSynth returns a synthetic guitar at the given sample rate.
func NewSynth(sampleRate float64) *Synth {
	if sampleRate <= 0 {
		sampleRate = 48_000
	}
	s := &Synth{
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sampleRate: sampleRate,
		level:      0.25,
	}
	for i, freq := range openStrings {
		s.strings[i].line = make([]float64, int(math.Round(sampleRate/freq)))
	}
	return s
}

// Read produces len(dst) samples; a synthetic stream never underruns.
func (s *Synth) Read(dst []float32) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range dst {
		if s.clock >= s.nextStrum {
			s.strum()
		}
		sum := 0.0
		for k := range s.strings {
			sum += s.strings[k].step()
		}
		dst[i] = float32(clampSample(sum * s.level))
		s.clock++
	}
	return len(dst)
}

// Close satisfies the capture stream contract.
func (s *Synth) Close() error { return nil }

func (s *Synth) strum() {
	// excite a random subset of strings; the low E always rings
	for k := range s.strings {
		if k == 0 || s.rng.Float64() < 0.7 {
			s.strings[k].excite(s.rng, 0.4+s.rng.Float64()*0.6)
		}
	}
	gap := 0.6 + s.rng.Float64()*1.4
	s.nextStrum = s.clock + int(gap*s.sampleRate)
}

func (p *pluck) excite(rng *rand.Rand, amp float64) {
	for i := range p.line {
		p.line[i] = (rng.Float64()*2 - 1) * amp
	}
	p.pos = 0
}

func (p *pluck) step() float64 {
	n := len(p.line)
	if n < 2 {
		return 0
	}
	next := (p.pos + 1) % n
	out := p.line[p.pos]
	p.line[p.pos] = 0.996 * 0.5 * (out + p.line[next])
	p.pos = next
	return out
}

func clampSample(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
