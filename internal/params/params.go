// Package params stores the patch's control parameters. Values are written
// from control goroutines and read once per block on the audio goroutine.
package params

import (
	"math"
	"strings"
	"sync/atomic"
)

type ID int

const (
	Waveshape ID = iota
	Cutoff
	Resonance
	Envelope
	Count
)

var names = [Count]string{"Waveshape", "Fc", "Resonance", "Envelope"}

var defaults = [Count]float32{
	Waveshape: 0,
	Cutoff:    0.5,
	Resonance: 0,
	Envelope:  0.3,
}

func (id ID) String() string {
	if id < 0 || id >= Count {
		return "unknown"
	}
	return names[id]
}

// Lookup resolves a parameter by its registered name, ignoring case.
// "cutoff" is accepted as an alias for "Fc".
func Lookup(name string) (ID, bool) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "cutoff") {
		return Cutoff, true
	}
	for id, n := range names {
		if strings.EqualFold(n, name) {
			return ID(id), true
		}
	}
	return 0, false
}

// Bank holds one normalized value per parameter.
type Bank struct {
	values [Count]atomic.Uint32 // float32 bit patterns
}

func NewBank() *Bank {
	b := &Bank{}
	for id, v := range defaults {
		b.Set(ID(id), v)
	}
	return b
}

// Set stores v clamped to [0,1]. NaN is stored as 0.
func (b *Bank) Set(id ID, v float32) {
	if id < 0 || id >= Count {
		return
	}
	if !(v >= 0) {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	b.values[id].Store(math.Float32bits(v))
}

func (b *Bank) Value(id ID) float32 {
	if id < 0 || id >= Count {
		return 0
	}
	return math.Float32frombits(b.values[id].Load())
}
