package voice

import (
	"math"
	"testing"
)

type stubOsc struct {
	level float32
	freq  float32
	shape float32
	pw    float32
}

func (o *stubOsc) SetFrequency(hz float32)  { o.freq = hz }
func (o *stubOsc) SetShape(shape float32)   { o.shape = shape }
func (o *stubOsc) SetPulseWidth(pw float32) { o.pw = pw }
func (o *stubOsc) GetSamples(buf []float32) {
	for i := range buf {
		buf[i] = o.level
	}
}

type stubFilter struct {
	cutoff, q float32
	calls     int
}

func (f *stubFilter) SetLowPass(cutoff, q float32) { f.cutoff, f.q = cutoff, q; f.calls++ }
func (f *stubFilter) Process(buf []float32)        {}

// stubEnv is fully open while gated and silent otherwise.
type stubEnv struct {
	open    bool
	gates   int
	attack  float32
	release float32
}

func (e *stubEnv) SetAttack(s float32)  { e.attack = s }
func (e *stubEnv) SetDecay(float32)     {}
func (e *stubEnv) SetSustain(float32)   {}
func (e *stubEnv) SetRelease(s float32) { e.release = s }
func (e *stubEnv) Gate(state bool, delay int) {
	e.open = state
	e.gates++
}
func (e *stubEnv) Attenuate(buf []float32) {
	if e.open {
		return
	}
	for i := range buf {
		buf[i] = 0
	}
}

func newStubVoice() (*Voice, *stubOsc, *stubFilter, *stubEnv) {
	o := &stubOsc{level: 0.5}
	f := &stubFilter{}
	e := &stubEnv{}
	return New(o, f, e), o, f, e
}

func TestSetGateLandsAtOffset(t *testing.T) {
	const blockSize = 32
	for k := 0; k < blockSize; k++ {
		v, _, _, _ := newStubVoice()
		v.SetGate(true, k)
		buf := make([]float32, blockSize)
		v.GetSamples(buf)
		for i, s := range buf {
			if i < k && s != 0 {
				t.Fatalf("offset %d: sample %d = %f before gate", k, i, s)
			}
			if i >= k && s == 0 {
				t.Fatalf("offset %d: sample %d silent after gate", k, i)
			}
		}
	}
}

func TestSetGateOnAndOffWithinOneBlock(t *testing.T) {
	v, _, _, env := newStubVoice()
	// Scheduled out of order on purpose.
	v.SetGate(false, 10)
	v.SetGate(true, 3)
	buf := make([]float32, 16)
	v.GetSamples(buf)
	for i, s := range buf {
		inside := i >= 3 && i < 10
		if inside && s == 0 {
			t.Fatalf("sample %d silent inside note", i)
		}
		if !inside && s != 0 {
			t.Fatalf("sample %d = %f outside note", i, s)
		}
	}
	if env.gates != 2 {
		t.Fatalf("envelope saw %d gates, want 2", env.gates)
	}

	// Consumed: the next block has no pending gates.
	v.GetSamples(buf)
	if env.gates != 2 {
		t.Fatalf("gates replayed on next block")
	}
}

func TestGateIsNotAppliedBeforeRender(t *testing.T) {
	v, _, _, env := newStubVoice()
	v.SetGate(true, 0)
	if env.gates != 0 || env.open {
		t.Fatalf("gate must wait for the next render")
	}
	v.GetSamples(make([]float32, 8))
	if !env.open {
		t.Fatalf("gate not applied during render")
	}
}

func TestGetSamplesAppliesSquaredResonanceCompensation(t *testing.T) {
	v, osc, flt, _ := newStubVoice()
	v.SetGain(0.5)
	v.SetGate(true, 0)
	buf := make([]float32, 4)
	v.GetSamples(buf)

	q := v.q.Get()
	if flt.q != q || flt.cutoff != v.fc.Get() {
		t.Fatalf("filter got cutoff=%f q=%f, want %f %f", flt.cutoff, flt.q, v.fc.Get(), q)
	}
	comp := 0.8 - q*0.2
	want := osc.level * 0.5 * comp * comp
	for i, s := range buf {
		if math.Abs(float64(s-want)) > 1e-7 {
			t.Fatalf("sample %d = %f, want %f", i, s, want)
		}
	}
}

func TestSetFilterIsSmoothed(t *testing.T) {
	v, _, flt, _ := newStubVoice()
	v.SetFilter(0.5, 1)
	v.GetSamples(make([]float32, 4))
	if flt.cutoff <= 0.25 || flt.cutoff >= 0.5 {
		t.Fatalf("cutoff %f should move part way from 0.25 toward 0.5", flt.cutoff)
	}
	for i := 0; i < 300; i++ {
		v.SetFilter(0.5, 1)
	}
	v.GetSamples(make([]float32, 4))
	if math.Abs(float64(flt.cutoff-0.5)) > 1e-4 || math.Abs(float64(flt.q-1)) > 1e-4 {
		t.Fatalf("smoothed values did not settle: cutoff=%f q=%f", flt.cutoff, flt.q)
	}
}

func TestSetWaveshapeMapping(t *testing.T) {
	for _, tc := range []struct {
		in        float32
		shape, pw float32
	}{
		{0, 0, 0.5},
		{0.5, 0.5, 0.5},
		{1, 1, 0.5},
		{1.5, 1, 0.745},
		{2, 1, 0.99},
	} {
		v, osc, _, _ := newStubVoice()
		v.SetWaveshape(tc.in)
		if osc.shape != tc.shape || math.Abs(float64(osc.pw-tc.pw)) > 1e-6 {
			t.Errorf("shape %v: got shape=%v pw=%v, want %v %v", tc.in, osc.shape, osc.pw, tc.shape, tc.pw)
		}
	}
}

func TestSetEnvelopeForwardsTimes(t *testing.T) {
	v, _, _, env := newStubVoice()
	v.SetEnvelope(0.3, 0.7)
	if env.attack != 0.3 || env.release != 0.7 {
		t.Fatalf("attack=%v release=%v", env.attack, env.release)
	}
}

func TestSynthVoiceBoundaryParametersStayFinite(t *testing.T) {
	for _, p := range []float32{0, 1} {
		v := NewSynth(48000)
		v.SetWaveshape(p * 2)
		v.SetFilter(p*0.5, p*3+0.75)
		v.SetEnvelope(p, p)
		v.SetFrequency(440)
		v.SetGain(0.25)
		v.SetGate(true, 0)
		buf := make([]float32, 256)
		var energy float64
		for block := 0; block < 8; block++ {
			v.GetSamples(buf)
			for i, s := range buf {
				if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
					t.Fatalf("param %v block %d sample %d not finite", p, block, i)
				}
				energy += math.Abs(float64(s))
			}
		}
		if energy == 0 {
			t.Fatalf("param %v: expected audible output", p)
		}
	}
}
