package voice

import (
	"errors"

	"github.com/chewxy/math32"
)

// EmptyNote marks a slot that holds no note.
const EmptyNote = -1

// baseNote is the note that sounds at ReferencePitch/32.
const baseNote = 9

type PoolConfig struct {
	Voices         int
	BlockSize      int
	ReferencePitch float32 // pitch of note 69, usually 440
	MaxVelocity    int
}

// Pool owns a fixed set of voices and assigns notes to them. Every slice is
// sized at construction; nothing is allocated afterwards.
type Pool struct {
	voices     []*Voice
	notes      []int
	allocation []uint64
	allocated  uint64
	scratch    []float32
	ratios     [12]float32
	refPitch   float32
	velScale   float32
}

// NewPool builds a pool of cfg.Voices voices using newVoice for each slot.
func NewPool(cfg PoolConfig, newVoice func(slot int) *Voice) (*Pool, error) {
	if cfg.Voices <= 0 {
		return nil, errors.New("voice count must be positive")
	}
	if cfg.BlockSize <= 0 {
		return nil, errors.New("block size must be positive")
	}
	if !(cfg.ReferencePitch > 0) {
		return nil, errors.New("reference pitch must be positive")
	}
	if cfg.MaxVelocity <= 0 {
		return nil, errors.New("max velocity must be positive")
	}
	headroom := cfg.Voices / 2
	if headroom < 1 {
		headroom = 1
	}
	p := &Pool{
		voices:     make([]*Voice, cfg.Voices),
		notes:      make([]int, cfg.Voices),
		allocation: make([]uint64, cfg.Voices),
		scratch:    make([]float32, cfg.BlockSize),
		refPitch:   cfg.ReferencePitch,
		velScale:   1 / (float32(cfg.MaxVelocity) * float32(headroom)),
	}
	for i := range p.ratios {
		p.ratios[i] = math32.Pow(2, float32(i)/12)
	}
	for i := range p.voices {
		p.voices[i] = newVoice(i)
		p.notes[i] = EmptyNote
	}
	return p, nil
}

// Frequency returns the equal-tempered pitch of note: note 9 sounds at
// ReferencePitch/32 and every 12 notes double it.
func (p *Pool) Frequency(note int) float32 {
	n := note - baseNote
	octave := n / 12
	semi := n % 12
	if semi < 0 {
		semi += 12
		octave--
	}
	f := p.refPitch / 32 * p.ratios[semi]
	for ; octave > 0; octave-- {
		f *= 2
	}
	for ; octave < 0; octave++ {
		f *= 0.5
	}
	return f
}

func (p *Pool) take(slot, note, velocity, offset int) {
	p.allocated++
	p.notes[slot] = note
	p.allocation[slot] = p.allocated
	v := p.voices[slot]
	v.SetFrequency(p.Frequency(note))
	v.SetGain(float32(velocity) * p.velScale)
	v.SetGate(true, offset)
}

func (p *Pool) release(slot, offset int) {
	p.notes[slot] = EmptyNote
	p.allocation[slot] = 0
	p.voices[slot].SetGate(false, offset)
}

// NoteOn starts note on the slot already playing it, or else on the lowest
// free slot. When every slot holds a different note, the least recently
// allocated slot is stolen.
func (p *Pool) NoteOn(note, velocity, offset int) {
	slot := -1
	for i, n := range p.notes {
		if n == note {
			slot = i
			break
		}
		if n == EmptyNote && slot < 0 {
			slot = i
		}
	}
	if slot >= 0 {
		p.take(slot, note, velocity, offset)
		return
	}
	oldest := 0
	for i := 1; i < len(p.allocation); i++ {
		if p.allocation[i] < p.allocation[oldest] {
			oldest = i
		}
	}
	p.take(oldest, note, velocity, offset)
}

// NoteOff releases every slot holding note. Unknown notes are ignored.
func (p *Pool) NoteOff(note, offset int) {
	for i, n := range p.notes {
		if n == note {
			p.release(i, offset)
		}
	}
}

// AllNotesOff releases every slot and restarts allocation ordering.
func (p *Pool) AllNotesOff() {
	for i := range p.voices {
		p.release(i, 0)
	}
	p.allocated = 0
}

// AllNotesOn opens every voice at a fixed low gain without touching note
// tracking. Used as a test tone.
func (p *Pool) AllNotesOn() {
	gain := 0.6 / float32(len(p.voices))
	for _, v := range p.voices {
		v.SetGain(gain)
		v.SetGate(true, 0)
	}
}

// SetParameters applies the shared timbre to every voice.
func (p *Pool) SetParameters(shape, cutoff, resonance, attack, release float32) {
	for _, v := range p.voices {
		v.SetWaveshape(shape)
		v.SetFilter(cutoff, resonance)
		v.SetEnvelope(attack, release)
	}
}

// GetSamples renders and sums every voice into buf. len(buf) must not exceed
// the configured block size.
func (p *Pool) GetSamples(buf []float32) {
	p.voices[0].GetSamples(buf)
	scratch := p.scratch[:len(buf)]
	for _, v := range p.voices[1:] {
		v.GetSamples(scratch)
		for i, s := range scratch {
			buf[i] += s
		}
	}
}

func (p *Pool) Len() int              { return len(p.voices) }
func (p *Pool) Voice(slot int) *Voice { return p.voices[slot] }
func (p *Pool) Note(slot int) int     { return p.notes[slot] }
func (p *Pool) Counter() uint64       { return p.allocated }

func (p *Pool) AllocationOrder(slot int) uint64 { return p.allocation[slot] }

// ActiveVoiceCount returns the number of slots holding a note.
func (p *Pool) ActiveVoiceCount() int {
	n := 0
	for _, note := range p.notes {
		if note != EmptyNote {
			n++
		}
	}
	return n
}
