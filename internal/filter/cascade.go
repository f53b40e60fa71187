// Package filter provides the per-voice low-pass stage.
package filter

import "github.com/chewxy/math32"

const (
	minCutoff    = 0.0005
	maxCutoff    = 0.49
	minResonance = 0.1
)

type biquad struct {
	b0, b1, b2 float32
	a1, a2     float32
	x1, x2     float32
	y1, y2     float32
}

func (b *biquad) process(buf []float32) {
	x1, x2, y1, y2 := b.x1, b.x2, b.y1, b.y2
	for i, x0 := range buf {
		y0 := b.b0*x0 + b.b1*x1 + b.b2*x2 - b.a1*y1 - b.a2*y2
		x2, x1 = x1, x0
		y2, y1 = y1, y0
		buf[i] = y0
	}
	b.x1, b.x2, b.y1, b.y2 = x1, x2, y1, y2
}

// Cascade is a chain of identical biquad low-pass sections. Four stages give
// an 8-pole, 48 dB/octave slope.
type Cascade struct {
	stages    []biquad
	cutoff    float32
	resonance float32
	designed  bool
}

func NewCascade(stages int) *Cascade {
	if stages < 1 {
		stages = 1
	}
	return &Cascade{stages: make([]biquad, stages)}
}

// SetLowPass sets cutoff as a fraction of the sample rate and resonance as Q.
// Coefficients are only recomputed when either value changes.
func (c *Cascade) SetLowPass(cutoff, resonance float32) {
	if c.designed && cutoff == c.cutoff && resonance == c.resonance {
		return
	}
	c.cutoff, c.resonance, c.designed = cutoff, resonance, true

	fc := cutoff
	if !(fc >= minCutoff) {
		fc = minCutoff
	}
	if fc > maxCutoff {
		fc = maxCutoff
	}
	q := resonance
	if !(q >= minResonance) {
		q = minResonance
	}

	w := 2 * math32.Pi * fc
	sin, cos := math32.Sin(w), math32.Cos(w)
	alpha := sin / (2 * q)
	inv := 1 / (1 + alpha)
	b1 := (1 - cos) * inv
	b0 := b1 / 2
	a1 := -2 * cos * inv
	a2 := (1 - alpha) * inv
	for i := range c.stages {
		s := &c.stages[i]
		s.b0, s.b1, s.b2 = b0, b1, b0
		s.a1, s.a2 = a1, a2
	}
}

// Process filters buf in place through every stage.
func (c *Cascade) Process(buf []float32) {
	for i := range c.stages {
		c.stages[i].process(buf)
	}
}

// Reset clears the delay lines but keeps the coefficients.
func (c *Cascade) Reset() {
	for i := range c.stages {
		s := &c.stages[i]
		s.x1, s.x2, s.y1, s.y2 = 0, 0, 0, 0
	}
}

func (c *Cascade) Stages() int { return len(c.stages) }
