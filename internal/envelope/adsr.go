// Package envelope provides the per-voice amplitude envelope.
package envelope

// Stage is the current envelope segment.
type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
)

func (s Stage) String() string {
	switch s {
	case StageAttack:
		return "attack"
	case StageDecay:
		return "decay"
	case StageSustain:
		return "sustain"
	case StageRelease:
		return "release"
	default:
		return "idle"
	}
}

// ADSR is a linear attack/decay/sustain/release envelope. Segment times are
// in seconds; a time of zero makes the segment complete in one sample.
type ADSR struct {
	sampleRate float32
	attackInc  float32
	decayInc   float32
	releaseInc float32
	sustain    float32
	level      float32
	stage      Stage

	pending      bool
	pendingState bool
	pendingDelay int
}

func New(sampleRate float32) *ADSR {
	e := &ADSR{sampleRate: sampleRate, sustain: 1}
	e.SetAttack(0.01)
	e.SetDecay(0.1)
	e.SetRelease(0.3)
	return e
}

func (e *ADSR) SetAttack(seconds float32)  { e.attackInc = e.increment(seconds) }
func (e *ADSR) SetDecay(seconds float32)   { e.decayInc = e.increment(seconds) }
func (e *ADSR) SetRelease(seconds float32) { e.releaseInc = e.increment(seconds) }

func (e *ADSR) SetSustain(level float32) {
	if !(level >= 0) {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	e.sustain = level
}

func (e *ADSR) increment(seconds float32) float32 {
	samples := seconds * e.sampleRate
	if !(samples > 1) {
		return 1
	}
	return 1 / samples
}

// Gate opens (attack) or closes (release) the envelope delay samples into the
// next Attenuate call. A delay longer than that block carries over. A second
// Gate before the first has landed replaces it.
func (e *ADSR) Gate(state bool, delay int) {
	if delay <= 0 {
		e.pending = false
		e.apply(state)
		return
	}
	e.pending = true
	e.pendingState = state
	e.pendingDelay = delay
}

func (e *ADSR) apply(state bool) {
	if state {
		e.stage = StageAttack
		return
	}
	if e.stage != StageIdle {
		e.stage = StageRelease
	}
}

// Attenuate multiplies buf by the envelope, advancing it one step per sample.
func (e *ADSR) Attenuate(buf []float32) {
	for i := range buf {
		if e.pending {
			if e.pendingDelay == 0 {
				e.pending = false
				e.apply(e.pendingState)
			} else {
				e.pendingDelay--
			}
		}
		buf[i] *= e.next()
	}
}

func (e *ADSR) next() float32 {
	switch e.stage {
	case StageAttack:
		e.level += e.attackInc
		if e.level >= 1 {
			e.level = 1
			e.stage = StageDecay
		}
	case StageDecay:
		e.level -= e.decayInc
		if e.level <= e.sustain {
			e.level = e.sustain
			e.stage = StageSustain
		}
	case StageSustain:
		e.level = e.sustain
	case StageRelease:
		e.level -= e.releaseInc
		if e.level <= 0 {
			e.level = 0
			e.stage = StageIdle
		}
	default:
		e.level = 0
	}
	return e.level
}

func (e *ADSR) Level() float32 { return e.level }
func (e *ADSR) Stage() Stage   { return e.stage }

// Reset silences the envelope and drops any pending gate.
func (e *ADSR) Reset() {
	e.level = 0
	e.stage = StageIdle
	e.pending = false
}
