package graph

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var ErrInvalidParam = errors.New("graph: invalid parameter value")

// Param is an automatable node parameter. Automation is written from the
// control goroutine and evaluated from the render callback.
type Param struct {
	mu       sync.Mutex
	value    float64
	min, max float64

	// pending exponential approach, see SetTargetAtTime
	pending  bool
	anchored bool
	from     float64
	target   float64
	start    float64
	tau      float64
}

func newParam(value, min, max float64) *Param {
	return &Param{value: clampFloat(value, min, max), min: min, max: max}
}

// Value returns the most recently evaluated value.
func (p *Param) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// SetValue jumps to v immediately and cancels any pending ramp.
func (p *Param) SetValue(v float64) error {
	if !finite(v) {
		return fmt.Errorf("%w: %v", ErrInvalidParam, v)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = clampFloat(v, p.min, p.max)
	p.pending = false
	return nil
}

// SetTargetAtTime starts an exponential approach toward target beginning at
// startTime (context seconds) with the given time constant. A later call
// replaces the running approach, continuing from the value reached so far.
func (p *Param) SetTargetAtTime(target, startTime, timeConstant float64) error {
	if !finite(target) || !finite(startTime) || !finite(timeConstant) || timeConstant < 0 {
		return fmt.Errorf("%w: target=%v start=%v tau=%v", ErrInvalidParam, target, startTime, timeConstant)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = true
	p.anchored = false
	p.target = clampFloat(target, p.min, p.max)
	p.start = startTime
	p.tau = timeConstant
	return nil
}

// sample evaluates the parameter once at time t (k-rate).
func (p *Param) sample(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueAt(t)
}

// fill evaluates the parameter per sample (a-rate).
func (p *Param) fill(dst []float64, t0, dt float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range dst {
		dst[i] = p.valueAt(t0 + float64(i)*dt)
	}
}

func (p *Param) valueAt(t float64) float64 {
	if !p.pending || t < p.start {
		return p.value
	}
	if !p.anchored {
		p.from = p.value
		p.anchored = true
	}
	if p.tau == 0 {
		p.value = p.target
		p.pending = false
		return p.value
	}
	p.value = p.target + (p.from-p.target)*math.Exp(-(t-p.start)/p.tau)
	if math.Abs(p.value-p.target) < 1e-9 {
		p.value = p.target
		p.pending = false
	}
	return p.value
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
