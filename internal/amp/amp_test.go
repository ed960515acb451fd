package amp

import (
	"errors"
	"math"
	"testing"

	"github.com/guidoenr/ampsim/internal/audio"
	"github.com/guidoenr/ampsim/internal/controls"
	"github.com/guidoenr/ampsim/internal/graph"
)

type dcStream struct{ v float32 }

func (s dcStream) Read(dst []float32) int {
	for i := range dst {
		dst[i] = s.v
	}
	return len(dst)
}

func newRig(t *testing.T, seed Seed) (*Rig, *audio.NullOutput) {
	t.Helper()
	out := audio.NewNullOutput(audio.NullConfig{SampleRate: 48000, BlockSize: 128, Manual: true})
	ctx, err := graph.NewContext(out)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	rig, err := Build(ctx, dcStream{0.5}, seed)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return rig, out
}

func TestBuildResumesAndSeeds(t *testing.T) {
	rig, _ := newRig(t, Seed{Volume: 0.7, Bass: 3, Mid: -2, Treble: 5})
	if rig.Context.State() != graph.Running {
		t.Fatalf("context state=%s want running", rig.Context.State())
	}
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"volume", rig.Volume.Gain().Value(), 0.7},
		{"bass", rig.Bass.Gain().Value(), 3},
		{"mid", rig.Mid.Gain().Value(), -2},
		{"treble", rig.Treble.Gain().Value(), 5},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Fatalf("%s seed=%f want %f", c.name, c.got, c.want)
		}
	}
	if rig.Analyser.FFTSize() != AnalyserFFTSize {
		t.Fatalf("fft size=%d want %d", rig.Analyser.FFTSize(), AnalyserFFTSize)
	}
}

func TestBandLayout(t *testing.T) {
	rig, _ := newRig(t, Seed{Volume: 0.5})
	cases := []struct {
		band graph.Band
		kind graph.FilterKind
		freq float64
	}{
		{rig.Bass.Band(), graph.LowShelf, 500},
		{rig.Mid.Band(), graph.Peaking, 1500},
		{rig.Treble.Band(), graph.HighShelf, 3000},
	}
	for _, c := range cases {
		if c.band.Kind != c.kind || c.band.Frequency != c.freq {
			t.Fatalf("band=%+v want %s @ %.0f Hz", c.band, c.kind, c.freq)
		}
	}
	if math.Abs(rig.Mid.Band().Q-1/math.Sqrt2) > 1e-12 {
		t.Fatalf("mid Q=%f want 1/sqrt2", rig.Mid.Band().Q)
	}
}

func TestBuildIsOneShot(t *testing.T) {
	rig, _ := newRig(t, Seed{Volume: 0.5})
	if _, err := Build(rig.Context, dcStream{0}, Seed{}); !errors.Is(err, graph.ErrGraphFrozen) {
		t.Fatalf("second Build err=%v want ErrGraphFrozen", err)
	}
}

func TestSignalFlowsToOutput(t *testing.T) {
	_, out := newRig(t, Seed{Volume: 0.5})
	block := out.Pump(4)
	// flat EQ at DC, 0.5 in × 0.5 volume
	if got := block[len(block)-1]; math.Abs(float64(got)-0.25) > 1e-3 {
		t.Fatalf("output=%f want 0.25", got)
	}
}

func TestVolumeApproachesTargetSmoothly(t *testing.T) {
	rig, out := newRig(t, Seed{Volume: 0.5})
	panel := controls.NewPanel(controls.Defaults()...)
	_ = panel.Begin()
	if err := panel.Bind(rig.Context, rig.Targets()); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := panel.Input(controls.Volume, "0.9"); err != nil {
		t.Fatalf("Input: %v", err)
	}

	out.Pump(1) // 128 frames, about a quarter of the time constant
	first := rig.Volume.Gain().Value()
	if first <= 0.5 || math.Abs(first-0.9) < 0.05 {
		t.Fatalf("after one block gain=%f, want a partial move toward 0.9", first)
	}

	out.Pump(38) // 0.1 s more, ten time constants
	if got := rig.Volume.Gain().Value(); math.Abs(got-0.9) > 1e-3 {
		t.Fatalf("gain=%f want ~0.9", got)
	}
}

func TestResetRampsBandBackToFlat(t *testing.T) {
	rig, out := newRig(t, Seed{Volume: 0.5})
	panel := controls.NewPanel(controls.Defaults()...)
	_ = panel.Begin()
	_ = panel.Bind(rig.Context, rig.Targets())

	_ = panel.Input(controls.Bass, "8")
	out.Pump(40)
	if got := rig.Bass.Gain().Value(); math.Abs(got-8) > 0.01 {
		t.Fatalf("bass=%f want ~8", got)
	}
	if err := panel.Reset(controls.Bass); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	out.Pump(40)
	if got := rig.Bass.Gain().Value(); math.Abs(got) > 0.01 {
		t.Fatalf("bass=%f want ~0 after reset", got)
	}
}
