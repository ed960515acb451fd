package graph

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/spectrum"
	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/mjibson/go-dsp/fft"
)

const (
	minFFTSize = 32
	maxFFTSize = 32768

	smoothingTimeConstant = 0.8
	minDecibels           = -100.0
	maxDecibels           = -30.0
)

// Analyser is a pass-through tap exposing the magnitude spectrum of the
// most recent FFTSize samples.
type Analyser struct {
	node
	fftSize int

	mu       sync.Mutex
	ring     []float64
	pos      int
	window   []float64
	frame    []float64
	smoothed []float64
}

// CreateAnalyser returns an analyser with the given FFT size, which must be
// a power of two between 32 and 32768.
func (c *Context) CreateAnalyser(fftSize int) (*Analyser, error) {
	if fftSize < minFFTSize || fftSize > maxFFTSize || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("graph: fft size %d must be a power of two in [%d, %d]", fftSize, minFFTSize, maxFFTSize)
	}
	win, err := window.Blackman(fftSize)
	if err != nil {
		return nil, fmt.Errorf("graph: analyser window: %w", err)
	}
	if err := c.register(); err != nil {
		return nil, err
	}
	return &Analyser{
		node:     node{ctx: c},
		fftSize:  fftSize,
		ring:     make([]float64, fftSize),
		window:   win,
		frame:    make([]float64, fftSize),
		smoothed: make([]float64, fftSize/2),
	}, nil
}

func (a *Analyser) FFTSize() int { return a.fftSize }

// FrequencyBinCount is half the FFT size.
func (a *Analyser) FrequencyBinCount() int { return a.fftSize / 2 }

func (a *Analyser) process(buf []float64, _ float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, v := range buf {
		a.ring[a.pos] = v
		a.pos++
		if a.pos == len(a.ring) {
			a.pos = 0
		}
	}
}

// ByteFrequencyData writes the current spectrum into dst as 0..255 values
// spanning -100..-30 dB and returns the number of bins written. Each call
// advances the smoothing state.
func (a *Analyser) ByteFrequencyData(dst []uint8) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := copy(a.frame, a.ring[a.pos:])
	copy(a.frame[n:], a.ring[:a.pos])
	for i := range a.frame {
		a.frame[i] *= a.window[i]
	}

	bins := a.fftSize / 2
	mags := spectrum.Magnitude(fft.FFTReal(a.frame)[:bins])
	scale := 1 / float64(a.fftSize)
	for k, m := range mags {
		a.smoothed[k] = smoothingTimeConstant*a.smoothed[k] + (1-smoothingTimeConstant)*m*scale
	}

	count := min(len(dst), bins)
	rangeScale := 255 / (maxDecibels - minDecibels)
	for k := 0; k < count; k++ {
		v := a.smoothed[k]
		if v <= 0 {
			dst[k] = 0
			continue
		}
		db := 20 * math.Log10(v)
		dst[k] = uint8(clampFloat(rangeScale*(db-minDecibels), 0, 255))
	}
	return count
}
