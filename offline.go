package polyvoice

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cbegin/polyvoice-go/internal/controller"
	"github.com/cbegin/polyvoice-go/internal/event"
)

// Render plays tl through a fresh controller and returns interleaved stereo
// samples covering every event plus tail.
func Render(tl *event.Timeline, cfg controller.Config, src controller.ParameterSource, tail time.Duration) ([]float32, error) {
	if tl == nil {
		return nil, errors.New("nil timeline")
	}
	ctrl, err := controller.New(cfg, src)
	if err != nil {
		return nil, err
	}
	if tail < 0 {
		tail = 0
	}
	frames := tl.End() + int64(tail.Seconds()*float64(cfg.SampleRate))
	if tl.Len() > 0 {
		frames++
	}
	bs := ctrl.BlockSize()
	left := make([]float32, bs)
	right := make([]float32, bs)
	out := make([]float32, frames*2)

	tl.Rewind()
	for pos := int64(0); pos < frames; pos += int64(bs) {
		tl.Schedule(ctrl.Queue(), pos)
		ctrl.ProcessBlock(left, right)
		n := min(int64(bs), frames-pos)
		dst := out[pos*2:]
		for i := int64(0); i < n; i++ {
			dst[i*2] = left[i]
			dst[i*2+1] = right[i]
		}
	}
	return out, nil
}

// RenderSMF reads a Standard MIDI File and renders it like Render.
func RenderSMF(r io.Reader, cfg controller.Config, src controller.ParameterSource, tail time.Duration) ([]float32, error) {
	tl, err := event.LoadSMF(r, cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	return Render(tl, cfg, src, tail)
}

// WriteWAV encodes interleaved stereo samples as 16-bit PCM. Samples outside
// [-1,1] are clipped.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if len(samples)%2 != 0 {
		return fmt.Errorf("odd sample count %d for stereo data", len(samples))
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		switch {
		case s != s:
			s = 0
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		data[i] = int(math.Round(float64(s) * math.MaxInt16))
	}
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish wav: %w", err)
	}
	return nil
}

// Peak returns the largest absolute sample value.
func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
