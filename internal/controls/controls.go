package controls

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Control names.
const (
	Volume = "volume"
	Bass   = "bass"
	Mid    = "mid"
	Treble = "treble"
)

// TimeConstant is the smoothing applied to every parameter change, in seconds.
const TimeConstant = 0.01

var (
	ErrNotReady       = errors.New("controls: audio graph not ready")
	ErrUnknownControl = errors.New("controls: unknown control")
	ErrInvalidValue   = errors.New("controls: invalid value")
)

// Spec declares a range control.
type Spec struct {
	Name    string
	Label   string
	Min     float64
	Max     float64
	Step    float64
	Default float64
	// Integer controls parse their input by truncating to a whole number.
	Integer bool
}

// Defaults returns the amp's four controls in display order.
func Defaults() []Spec {
	return []Spec{
		{Name: Volume, Label: "Volume", Min: 0, Max: 1, Step: 0.01, Default: 0.5},
		{Name: Bass, Label: "Bass", Min: -10, Max: 10, Step: 1, Default: 0, Integer: true},
		{Name: Mid, Label: "Mid", Min: -10, Max: 10, Step: 1, Default: 0, Integer: true},
		{Name: Treble, Label: "Treble", Min: -10, Max: 10, Step: 1, Default: 0, Integer: true},
	}
}

// Parse converts raw input to a value of this control, clamped to its
// range and snapped to its step.
func (s Spec) Parse(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, s.Name, raw)
	}
	if s.Integer {
		v = math.Trunc(v)
	}
	return s.normalize(v), nil
}

func (s Spec) normalize(v float64) float64 {
	if v < s.Min {
		v = s.Min
	}
	if v > s.Max {
		v = s.Max
	}
	if s.Step > 0 {
		steps := math.Round((v - s.Min) / s.Step)
		v = math.Min(s.Max, s.Min+steps*s.Step)
		// drop float noise from fractional steps such as 0.01
		v = math.Round(v*1e9) / 1e9
	}
	return v
}

// Format renders v the way the control displays it.
func (s Spec) Format(v float64) string {
	if s.Integer {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Target is a graph parameter a control drives.
type Target interface {
	SetTargetAtTime(target, startTime, timeConstant float64) error
}

// Clock supplies the audio timeline position used as ramp start.
type Clock interface {
	CurrentTime() float64
}

type control struct {
	spec   Spec
	value  float64
	target Target
}

// State is the panel lifecycle.
type State int

const (
	Uninitialized State = iota
	Requesting
	Ready
	Denied
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Requesting:
		return "requesting"
	case Ready:
		return "ready"
	case Denied:
		return "denied"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
