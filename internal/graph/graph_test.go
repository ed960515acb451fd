package graph

import (
	"errors"
	"math"
	"testing"
)

type fakeDevice struct {
	rate     float64
	channels int
	render   RenderFunc
	starts   int
	stops    int
	closed   bool
}

func (d *fakeDevice) SampleRate() float64 { return d.rate }
func (d *fakeDevice) Channels() int       { return d.channels }
func (d *fakeDevice) Start(r RenderFunc) error {
	d.render = r
	d.starts++
	return nil
}
func (d *fakeDevice) Stop() error  { d.stops++; return nil }
func (d *fakeDevice) Close() error { d.closed = true; return nil }

func (d *fakeDevice) pump(frames int) []float32 {
	out := make([]float32, frames*d.channels)
	d.render(out)
	return out
}

type constStream struct{ v float32 }

func (s constStream) Read(dst []float32) int {
	for i := range dst {
		dst[i] = s.v
	}
	return len(dst)
}

type sineStream struct {
	freq, rate, amp float64
	n               int
}

func (s *sineStream) Read(dst []float32) int {
	for i := range dst {
		dst[i] = float32(s.amp * math.Sin(2*math.Pi*s.freq*float64(s.n)/s.rate))
		s.n++
	}
	return len(dst)
}

func newTestContext(t *testing.T) (*Context, *fakeDevice) {
	t.Helper()
	dev := &fakeDevice{rate: 48000, channels: 2}
	ctx, err := NewContext(dev)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return ctx, dev
}

func TestContextLifecycle(t *testing.T) {
	ctx, dev := newTestContext(t)
	if ctx.State() != Suspended {
		t.Fatalf("new context state=%s want suspended", ctx.State())
	}
	if err := ctx.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := ctx.Resume(); err != nil {
		t.Fatalf("second Resume: %v", err)
	}
	if dev.starts != 1 {
		t.Fatalf("device started %d times, want 1", dev.starts)
	}

	dev.pump(480)
	before := ctx.CurrentTime()
	if err := ctx.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if ctx.State() != Suspended || dev.stops != 1 {
		t.Fatalf("after Suspend state=%s stops=%d", ctx.State(), dev.stops)
	}
	if out := dev.pump(480); out[0] != 0 || ctx.CurrentTime() != before {
		t.Fatalf("suspended render advanced the clock to %f (was %f)", ctx.CurrentTime(), before)
	}
	if err := ctx.Suspend(); err != nil {
		t.Fatalf("second Suspend: %v", err)
	}
	if dev.stops != 1 {
		t.Fatalf("second Suspend stopped the device again")
	}
	if err := ctx.Resume(); err != nil {
		t.Fatalf("Resume after Suspend: %v", err)
	}
	if dev.starts != 2 {
		t.Fatalf("device started %d times, want 2", dev.starts)
	}

	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ctx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !dev.closed || dev.stops != 2 {
		t.Fatalf("device closed=%v stops=%d", dev.closed, dev.stops)
	}
	if err := ctx.Resume(); !errors.Is(err, ErrContextClosed) {
		t.Fatalf("Resume after close err=%v want ErrContextClosed", err)
	}
	if err := ctx.Suspend(); !errors.Is(err, ErrContextClosed) {
		t.Fatalf("Suspend after close err=%v want ErrContextClosed", err)
	}
	if _, err := ctx.CreateGain(1); !errors.Is(err, ErrContextClosed) {
		t.Fatalf("CreateGain after close err=%v want ErrContextClosed", err)
	}
}

func TestClockAdvancesWithRenderedFrames(t *testing.T) {
	ctx, dev := newTestContext(t)
	if err := ctx.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	dev.pump(480)
	if got := ctx.CurrentTime(); math.Abs(got-0.01) > 1e-12 {
		t.Fatalf("CurrentTime=%f want 0.01", got)
	}
}

func TestConnectRules(t *testing.T) {
	ctx, _ := newTestContext(t)
	src, _ := ctx.CreateSource(constStream{1})
	gain, _ := ctx.CreateGain(1)

	if err := ctx.Connect(gain, ctx.Destination()); err == nil {
		t.Fatalf("expected error for chain not starting at a source")
	}
	if err := ctx.Connect(src, gain); err == nil {
		t.Fatalf("expected error for chain not ending at destination")
	}

	other, _ := newTestContext(t)
	foreign, _ := other.CreateGain(1)
	if err := ctx.Connect(src, foreign, ctx.Destination()); !errors.Is(err, ErrForeignNode) {
		t.Fatalf("err=%v want ErrForeignNode", err)
	}

	if err := ctx.Connect(src, gain, ctx.Destination()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := ctx.Connect(src, gain, ctx.Destination()); !errors.Is(err, ErrGraphFrozen) {
		t.Fatalf("second Connect err=%v want ErrGraphFrozen", err)
	}
	if !ctx.Connected() {
		t.Fatalf("expected context to report connected chain")
	}
}

func TestRenderRunsChainAndFansOutChannels(t *testing.T) {
	ctx, dev := newTestContext(t)
	src, _ := ctx.CreateSource(constStream{0.5})
	gain, _ := ctx.CreateGain(0.5)
	if err := ctx.Connect(src, gain, ctx.Destination()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := ctx.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	out := dev.pump(64)
	for i, v := range out {
		if math.Abs(float64(v)-0.25) > 1e-6 {
			t.Fatalf("out[%d]=%f want 0.25", i, v)
		}
	}
}

func TestSetTargetAtTimeApproachesExponentially(t *testing.T) {
	p := newParam(0.5, 0, 1)
	if err := p.SetTargetAtTime(1, 0, 0.01); err != nil {
		t.Fatalf("SetTargetAtTime: %v", err)
	}
	if got := p.sample(0); got != 0.5 {
		t.Fatalf("value at start=%f want 0.5", got)
	}
	want := 1 + (0.5-1)*math.Exp(-1)
	if got := p.sample(0.01); math.Abs(got-want) > 1e-9 {
		t.Fatalf("value after one tau=%f want %f", got, want)
	}
	if got := p.sample(0.2); math.Abs(got-1) > 1e-6 {
		t.Fatalf("value after 20 tau=%f want ~1", got)
	}
}

func TestSetTargetAtTimeWaitsForStart(t *testing.T) {
	p := newParam(0, -10, 10)
	_ = p.SetTargetAtTime(5, 1, 0.01)
	if got := p.sample(0.5); got != 0 {
		t.Fatalf("value before start=%f want 0", got)
	}
}

func TestSetTargetAtTimeZeroConstantJumps(t *testing.T) {
	p := newParam(0, -10, 10)
	_ = p.SetTargetAtTime(3, 0, 0)
	if got := p.sample(0); got != 3 {
		t.Fatalf("value=%f want 3", got)
	}
}

func TestSetTargetAtTimeRejectsInvalid(t *testing.T) {
	p := newParam(0, -10, 10)
	cases := []struct {
		target, start, tau float64
	}{
		{math.NaN(), 0, 0.01},
		{1, math.Inf(1), 0.01},
		{1, 0, -0.01},
	}
	for _, tc := range cases {
		if err := p.SetTargetAtTime(tc.target, tc.start, tc.tau); !errors.Is(err, ErrInvalidParam) {
			t.Fatalf("SetTargetAtTime(%v,%v,%v) err=%v want ErrInvalidParam", tc.target, tc.start, tc.tau, err)
		}
	}
}

func TestParamClampsToRange(t *testing.T) {
	p := newParam(0, -40, 40)
	_ = p.SetValue(100)
	if got := p.Value(); got != 40 {
		t.Fatalf("value=%f want 40", got)
	}
}

func TestFlatBandIsTransparent(t *testing.T) {
	ctx, _ := newTestContext(t)
	for _, band := range []Band{
		{Kind: LowShelf, Frequency: 500, Q: math.Sqrt2 / 2},
		{Kind: Peaking, Frequency: 1500, Q: math.Sqrt2 / 2},
		{Kind: HighShelf, Frequency: 3000, Q: math.Sqrt2 / 2},
	} {
		bq, err := ctx.CreateBiquad(band, 0)
		if err != nil {
			t.Fatalf("CreateBiquad(%s): %v", band.Kind, err)
		}
		buf := []float64{1, 0.5, -0.25, 0, 0.75}
		want := append([]float64(nil), buf...)
		bq.process(buf, 0)
		for i := range buf {
			if math.Abs(buf[i]-want[i]) > 1e-9 {
				t.Fatalf("%s at 0 dB changed sample %d: %f want %f", band.Kind, i, buf[i], want[i])
			}
		}
	}
}

func TestBandGainShapesResponse(t *testing.T) {
	ctx, _ := newTestContext(t)
	bass, _ := ctx.CreateBiquad(Band{Kind: LowShelf, Frequency: 500, Q: math.Sqrt2 / 2}, 10)
	treble, _ := ctx.CreateBiquad(Band{Kind: HighShelf, Frequency: 3000, Q: math.Sqrt2 / 2}, -10)

	if got := bass.ResponseDB(50); got < 9 {
		t.Fatalf("low shelf +10 dB at 50 Hz gave %.2f dB", got)
	}
	if got := bass.ResponseDB(15000); math.Abs(got) > 0.5 {
		t.Fatalf("low shelf should be flat at 15 kHz, got %.2f dB", got)
	}
	if got := treble.ResponseDB(15000); got > -9 {
		t.Fatalf("high shelf -10 dB at 15 kHz gave %.2f dB", got)
	}
}

func TestCreateBiquadValidatesBand(t *testing.T) {
	ctx, _ := newTestContext(t)
	if _, err := ctx.CreateBiquad(Band{Kind: Peaking, Frequency: 30000, Q: 1}, 0); err == nil {
		t.Fatalf("expected error for frequency above Nyquist")
	}
	if _, err := ctx.CreateBiquad(Band{Kind: Peaking, Frequency: 1000, Q: 0}, 0); err == nil {
		t.Fatalf("expected error for zero Q")
	}
}

func TestAnalyserFFTSizeValidation(t *testing.T) {
	ctx, _ := newTestContext(t)
	for _, size := range []int{0, 16, 100, 65536} {
		if _, err := ctx.CreateAnalyser(size); err == nil {
			t.Fatalf("CreateAnalyser(%d) expected error", size)
		}
	}
	a, err := ctx.CreateAnalyser(256)
	if err != nil {
		t.Fatalf("CreateAnalyser(256): %v", err)
	}
	if a.FrequencyBinCount() != 128 {
		t.Fatalf("FrequencyBinCount=%d want 128", a.FrequencyBinCount())
	}
}

func TestAnalyserSilenceIsZero(t *testing.T) {
	ctx, _ := newTestContext(t)
	a, _ := ctx.CreateAnalyser(256)
	a.process(make([]float64, 256), 0)
	bins := make([]uint8, 256)
	if n := a.ByteFrequencyData(bins); n != 128 {
		t.Fatalf("bins written=%d want 128", n)
	}
	for i, v := range bins {
		if v != 0 {
			t.Fatalf("bin %d=%d want 0 for silence", i, v)
		}
	}
}

func TestAnalyserPeaksAtToneBin(t *testing.T) {
	ctx, _ := newTestContext(t)
	a, _ := ctx.CreateAnalyser(256)
	// bin 16 of a 256-point FFT at 48 kHz
	tone := &sineStream{freq: 16 * 48000.0 / 256, rate: 48000, amp: 0.05}
	in := make([]float32, 256)
	buf := make([]float64, 256)
	bins := make([]uint8, 128)
	for round := 0; round < 20; round++ {
		tone.Read(in)
		for i, v := range in {
			buf[i] = float64(v)
		}
		a.process(buf, 0)
		a.ByteFrequencyData(bins)
	}
	peak := 0
	for i := range bins {
		if bins[i] > bins[peak] {
			peak = i
		}
	}
	if peak != 16 {
		t.Fatalf("peak bin=%d want 16 (bins=%v)", peak, bins[:24])
	}
	if bins[16] < 180 {
		t.Fatalf("peak magnitude=%d, expected a loud tone", bins[16])
	}
}
