package controls

import (
	"fmt"
	"sync"
)

// Panel holds the range controls and gates them on the audio graph. Inputs
// are accepted only once Bind has attached every control to its graph
// parameter; before that the controls are disabled and inert.
type Panel struct {
	mu       sync.Mutex
	state    State
	order    []string
	controls map[string]*control
	clock    Clock
	watchers []func(State)
}

// NewPanel builds a panel from specs, holding each at its default.
func NewPanel(specs ...Spec) *Panel {
	p := &Panel{controls: make(map[string]*control, len(specs))}
	for _, s := range specs {
		p.order = append(p.order, s.Name)
		p.controls[s.Name] = &control{spec: s, value: s.normalize(s.Default)}
	}
	return p
}

func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Ready reports whether the controls are enabled.
func (p *Panel) Ready() bool { return p.State() == Ready }

// OnState registers fn to run after every state transition.
func (p *Panel) OnState(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchers = append(p.watchers, fn)
}

// Begin marks the capture request as in flight.
func (p *Panel) Begin() error {
	return p.transition(Uninitialized, Requesting)
}

// Deny records a refused capture request. The panel stays disabled for the
// rest of the session.
func (p *Panel) Deny() error {
	return p.transition(Requesting, Denied)
}

// Bind attaches controls to their graph parameters and enables the panel.
// Every control needs a target.
func (p *Panel) Bind(clock Clock, targets map[string]Target) error {
	if clock == nil {
		return fmt.Errorf("controls: nil clock")
	}
	p.mu.Lock()
	if p.state != Requesting {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("controls: cannot bind in state %s", state)
	}
	for _, name := range p.order {
		if targets[name] == nil {
			p.mu.Unlock()
			return fmt.Errorf("controls: no target for %q", name)
		}
	}
	for _, name := range p.order {
		p.controls[name].target = targets[name]
	}
	p.clock = clock
	p.state = Ready
	watchers := append([]func(State){}, p.watchers...)
	p.mu.Unlock()

	for _, fn := range watchers {
		fn(Ready)
	}
	return nil
}

func (p *Panel) transition(from, to State) error {
	p.mu.Lock()
	if p.state != from {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("controls: cannot move from %s to %s", state, to)
	}
	p.state = to
	watchers := append([]func(State){}, p.watchers...)
	p.mu.Unlock()

	for _, fn := range watchers {
		fn(to)
	}
	return nil
}

// Input applies raw slider input to a control and ramps its parameter
// toward the parsed value. Outside Ready it returns ErrNotReady and changes
// nothing.
func (p *Panel) Input(name, raw string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.controls[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
	if p.state != Ready {
		return ErrNotReady
	}
	v, err := c.spec.Parse(raw)
	if err != nil {
		return err
	}
	if err := c.target.SetTargetAtTime(v, p.clock.CurrentTime(), TimeConstant); err != nil {
		return fmt.Errorf("controls: %s: %w", name, err)
	}
	c.value = v
	return nil
}

// Set is Input for an already numeric value.
func (p *Panel) Set(name string, v float64) error {
	spec, ok := p.Spec(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
	return p.Input(name, spec.Format(spec.normalize(v)))
}

// Nudge moves a control by whole steps through the Input path.
func (p *Panel) Nudge(name string, steps int) error {
	spec, ok := p.Spec(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
	return p.Set(name, p.Value(name)+float64(steps)*spec.Step)
}

// Reset restores a control's default and dispatches it exactly like user
// input.
func (p *Panel) Reset(name string) error {
	spec, ok := p.Spec(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
	if !p.Ready() {
		return ErrNotReady
	}
	return p.Input(name, spec.Format(spec.Default))
}

// ResetAll resets every control in display order.
func (p *Panel) ResetAll() error {
	if !p.Ready() {
		return ErrNotReady
	}
	for _, name := range p.Names() {
		if err := p.Reset(name); err != nil {
			return err
		}
	}
	return nil
}

// Value is the control's current value, its default before Ready.
func (p *Panel) Value(name string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.controls[name]; ok {
		return c.value
	}
	return 0
}

func (p *Panel) Spec(name string) (Spec, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.controls[name]
	if !ok {
		return Spec{}, false
	}
	return c.spec, true
}

// Names lists controls in display order.
func (p *Panel) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// ControlState is a read-only view of one control.
type ControlState struct {
	Name    string  `json:"name"`
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Default float64 `json:"default"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Enabled bool    `json:"enabled"`
}

// Snapshot returns every control in display order.
func (p *Panel) Snapshot() []ControlState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ControlState, 0, len(p.order))
	for _, name := range p.order {
		c := p.controls[name]
		out = append(out, ControlState{
			Name:    name,
			Label:   c.spec.Label,
			Value:   c.value,
			Default: c.spec.Default,
			Min:     c.spec.Min,
			Max:     c.spec.Max,
			Step:    c.spec.Step,
			Enabled: p.state == Ready,
		})
	}
	return out
}
