// Package voice implements the synthesis voice and the fixed-size voice pool
// that maps note events onto voices.
package voice

import (
	"github.com/cbegin/polyvoice-go/internal/envelope"
	"github.com/cbegin/polyvoice-go/internal/filter"
	"github.com/cbegin/polyvoice-go/internal/oscillator"
	"github.com/cbegin/polyvoice-go/internal/smooth"
)

type Oscillator interface {
	SetFrequency(hz float32)
	SetShape(shape float32)
	SetPulseWidth(pw float32)
	GetSamples(buf []float32)
}

type Filter interface {
	SetLowPass(cutoff, resonance float32)
	Process(buf []float32)
}

type Envelope interface {
	SetAttack(seconds float32)
	SetDecay(seconds float32)
	SetSustain(level float32)
	SetRelease(seconds float32)
	Gate(state bool, delay int)
	Attenuate(buf []float32)
}

// maxPendingGates bounds the gate transitions one voice can hold for a block.
const maxPendingGates = 8

type gateEvent struct {
	state  bool
	offset int
}

// Voice renders one note: oscillator into filter into envelope.
type Voice struct {
	osc  Oscillator
	flt  Filter
	env  Envelope
	fc   smooth.Float
	q    smooth.Float
	gain float32

	gates  [maxPendingGates]gateEvent
	ngates int
}

func New(osc Oscillator, flt Filter, env Envelope) *Voice {
	v := &Voice{
		osc:  osc,
		flt:  flt,
		env:  env,
		fc:   smooth.New(0.9, 0.25),
		q:    smooth.New(0.9, 0.77),
		gain: 1,
	}
	env.SetSustain(1)
	env.SetDecay(0)
	env.SetRelease(0)
	return v
}

// NewSynth builds a voice from the stock polyBLEP oscillator, a 4-stage
// (8-pole) low-pass cascade and a linear ADSR.
func NewSynth(sampleRate float32) *Voice {
	return New(oscillator.New(sampleRate), filter.NewCascade(4), envelope.New(sampleRate))
}

func (v *Voice) SetFrequency(hz float32) {
	v.osc.SetFrequency(hz)
}

func (v *Voice) SetFilter(cutoff, resonance float32) {
	v.fc.Set(cutoff)
	v.q.Set(resonance)
}

// SetWaveshape maps 0..1 from saw to square and 1..2 from square to a 99%
// pulse.
func (v *Voice) SetWaveshape(shape float32) {
	pw := float32(0.5)
	if shape > 1 {
		pw += 0.49 * (shape - 1)
		shape = 1
	}
	v.osc.SetShape(shape)
	v.osc.SetPulseWidth(pw)
}

func (v *Voice) SetEnvelope(attack, release float32) {
	v.env.SetAttack(attack)
	v.env.SetRelease(release)
}

func (v *Voice) SetGain(gain float32) {
	v.gain = gain
}

func (v *Voice) Gain() float32 { return v.gain }

// SetGate schedules a gate transition offset samples into the next
// GetSamples call. Events are kept ordered by offset; when the queue is full
// the latest-offset event is replaced.
func (v *Voice) SetGate(state bool, offset int) {
	if offset < 0 {
		offset = 0
	}
	n := v.ngates
	if n == maxPendingGates {
		n--
	}
	i := n
	for i > 0 && v.gates[i-1].offset > offset {
		v.gates[i] = v.gates[i-1]
		i--
	}
	v.gates[i] = gateEvent{state: state, offset: offset}
	v.ngates = n + 1
}

// GetSamples renders one block into buf.
func (v *Voice) GetSamples(buf []float32) {
	q := v.q.Get()
	v.flt.SetLowPass(v.fc.Get(), q)
	v.osc.GetSamples(buf)
	v.flt.Process(buf)
	comp := 0.8 - q*0.2
	scale := v.gain * comp * comp
	for i := range buf {
		buf[i] *= scale
	}

	pos := 0
	for i := 0; i < v.ngates; i++ {
		g := v.gates[i]
		at := g.offset
		if at > len(buf) {
			at = len(buf)
		}
		if at > pos {
			v.env.Attenuate(buf[pos:at])
			pos = at
		}
		v.env.Gate(g.state, 0)
	}
	v.ngates = 0
	v.env.Attenuate(buf[pos:])
}
