package params

import (
	"math"
	"sync"
	"testing"
)

func TestBankClampsValues(t *testing.T) {
	b := NewBank()
	for _, tc := range []struct {
		in, want float32
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{3, 1},
		{float32(math.NaN()), 0},
	} {
		b.Set(Resonance, tc.in)
		if got := b.Value(Resonance); got != tc.want {
			t.Errorf("Set(%v) stored %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBankDefaults(t *testing.T) {
	b := NewBank()
	if got := b.Value(Cutoff); got != 0.5 {
		t.Fatalf("default cutoff = %v, want 0.5", got)
	}
	if got := b.Value(ID(99)); got != 0 {
		t.Fatalf("unknown id = %v, want 0", got)
	}
}

func TestLookup(t *testing.T) {
	for _, tc := range []struct {
		name string
		want ID
		ok   bool
	}{
		{"Waveshape", Waveshape, true},
		{"fc", Cutoff, true},
		{"cutoff", Cutoff, true},
		{" RESONANCE ", Resonance, true},
		{"envelope", Envelope, true},
		{"volume", 0, false},
	} {
		got, ok := Lookup(tc.name)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("Lookup(%q) = %v,%v want %v,%v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
	if Cutoff.String() != "Fc" {
		t.Fatalf("Cutoff name = %q", Cutoff.String())
	}
}

func TestBankConcurrentAccess(t *testing.T) {
	b := NewBank()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				b.Set(Envelope, float32(j%100)/100)
				_ = b.Value(Envelope)
			}
		}(i)
	}
	wg.Wait()
	if v := b.Value(Envelope); v < 0 || v > 1 {
		t.Fatalf("value out of range: %v", v)
	}
}
