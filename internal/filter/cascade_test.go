package filter

import (
	"math"
	"testing"
)

func sine(freq, sampleRate float64, n int) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sampleRate))
	}
	return buf
}

func peak(buf []float32) float64 {
	var m float64
	for _, s := range buf {
		if a := math.Abs(float64(s)); a > m {
			m = a
		}
	}
	return m
}

func TestCascadePassesLowAttenuatesHigh(t *testing.T) {
	const sr = 48000.0
	low := NewCascade(4)
	low.SetLowPass(0.05, 0.707) // 2.4 kHz
	lowSig := sine(200, sr, 8192)
	low.Process(lowSig)

	high := NewCascade(4)
	high.SetLowPass(0.05, 0.707)
	highSig := sine(12000, sr, 8192)
	high.Process(highSig)

	if p := peak(lowSig[4096:]); p < 0.8 {
		t.Fatalf("passband peak %f, want ~1", p)
	}
	if p := peak(highSig[4096:]); p > 0.01 {
		t.Fatalf("stopband peak %f, want heavy attenuation", p)
	}
}

func TestCascadeBoundaryValuesStayFinite(t *testing.T) {
	for _, tc := range []struct {
		cutoff, q float32
	}{
		{0, 0}, {0, 1}, {1, 0}, {1, 1}, {0.5, 3.75}, {0.25, 0.75},
	} {
		c := NewCascade(4)
		c.SetLowPass(tc.cutoff, tc.q)
		buf := sine(1000, 48000, 2048)
		c.Process(buf)
		for i, s := range buf {
			if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
				t.Fatalf("cutoff=%v q=%v: sample %d not finite", tc.cutoff, tc.q, i)
			}
		}
	}
}

func TestCascadeResetClearsState(t *testing.T) {
	c := NewCascade(2)
	c.SetLowPass(0.1, 1)
	c.Process(sine(1000, 48000, 512))
	c.Reset()
	buf := make([]float32, 16)
	c.Process(buf)
	for i, s := range buf {
		if s != 0 {
			t.Fatalf("sample %d = %f after reset with silent input", i, s)
		}
	}
}

func TestNewCascadeMinimumOneStage(t *testing.T) {
	if got := NewCascade(0).Stages(); got != 1 {
		t.Fatalf("stages = %d, want 1", got)
	}
}
