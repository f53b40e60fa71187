package oscillator

import "github.com/chewxy/math32"

// PolyBLEP is a band-limited saw/pulse oscillator. Shape 0 is a saw, shape 1
// a pulse at the configured width; values in between crossfade the two.
type PolyBLEP struct {
	sampleRate float32
	freq       float32
	inc        float32
	phase      float32
	shape      float32
	pw         float32
}

func New(sampleRate float32) *PolyBLEP {
	o := &PolyBLEP{sampleRate: sampleRate, pw: 0.5}
	o.SetFrequency(440)
	return o
}

func (o *PolyBLEP) SetFrequency(hz float32) {
	if hz < 0 || math32.IsNaN(hz) {
		hz = 0
	}
	o.freq = hz
	o.inc = 0
	if o.sampleRate > 0 {
		o.inc = hz / o.sampleRate
	}
	// Above Nyquist the residual window would overlap itself.
	if o.inc > 0.5 {
		o.inc = 0.5
	}
}

func (o *PolyBLEP) Frequency() float32 { return o.freq }

func (o *PolyBLEP) SetShape(shape float32) {
	o.shape = clamp(shape, 0, 1)
}

func (o *PolyBLEP) SetPulseWidth(pw float32) {
	o.pw = clamp(pw, 0.01, 0.99)
}

// Reset zeros the phase.
func (o *PolyBLEP) Reset() {
	o.phase = 0
}

// GetSamples fills buf with the next len(buf) samples.
func (o *PolyBLEP) GetSamples(buf []float32) {
	dt := o.inc
	for i := range buf {
		t := o.phase
		saw := 2*t - 1 - polyBLEP(t, dt)
		pulse := float32(-1)
		if t < o.pw {
			pulse = 1
		}
		pulse += polyBLEP(t, dt)
		pulse -= polyBLEP(math32.Mod(t-o.pw+1, 1), dt)
		buf[i] = saw + (pulse-saw)*o.shape
		o.phase += dt
		if o.phase >= 1 {
			o.phase -= 1
		}
	}
}

// polyBLEP is the two-sample residual that smooths a unit step at phase 0.
// t is the phase in [0,1), dt the per-sample phase increment.
func polyBLEP(t, dt float32) float32 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
