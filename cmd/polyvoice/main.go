package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cbegin/polyvoice-go"
	"github.com/cbegin/polyvoice-go/internal/controller"
	"github.com/cbegin/polyvoice-go/internal/event"
	"github.com/cbegin/polyvoice-go/internal/params"
)

var logger = slog.Default()

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		blockSize  = flag.Int("block-size", 256, "samples per processing block")
		voices     = flag.Int("voices", 8, "polyphony")
		midiPath   = flag.String("file", "", "path to a Standard MIDI File (default: built-in demo)")
		outPath    = flag.String("out", "", "write a 16-bit WAV file instead of playing live")
		waveshape  = flag.Float64("waveshape", 0, "waveshape 0..1 (saw, square, narrow pulse)")
		cutoff     = flag.Float64("cutoff", 0.5, "filter cutoff 0..1")
		resonance  = flag.Float64("resonance", 0, "filter resonance 0..1")
		envelope   = flag.Float64("envelope", 0.3, "envelope shape 0..1")
		tail       = flag.Duration("tail", time.Second, "render time after the last event")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()
	initLogger(*debug)

	tl, err := loadTimeline(*midiPath, *sampleRate)
	if err != nil {
		fatal(err)
	}
	settings := map[params.ID]float64{
		params.Waveshape: *waveshape,
		params.Cutoff:    *cutoff,
		params.Resonance: *resonance,
		params.Envelope:  *envelope,
	}
	logger.Info("polyvoice starting",
		"sample_rate", *sampleRate,
		"block_size", *blockSize,
		"voices", *voices,
		"events", tl.Len(),
		"length", time.Duration(tl.End())*time.Second/time.Duration(*sampleRate),
	)

	if *outPath != "" {
		if err := renderToFile(*outPath, tl, settings, *sampleRate, *blockSize, *voices, *tail); err != nil {
			fatal(err)
		}
		return
	}

	pl, err := polyvoice.NewPlayer(*sampleRate,
		polyvoice.WithBlockSize(*blockSize),
		polyvoice.WithVoices(*voices),
		polyvoice.WithLogger(logger),
	)
	if err != nil {
		fatal(err)
	}
	for id, v := range settings {
		pl.SetParameter(id, float32(v))
	}
	if err := pl.PlayTimeline(tl, *tail); err != nil {
		fatal(err)
	}
	pl.Wait()
	if err := pl.Stop(); err != nil {
		fatal(err)
	}
	fmt.Println("playback completed")
}

func loadTimeline(path string, sampleRate int) (*event.Timeline, error) {
	if strings.TrimSpace(path) == "" {
		return demoTimeline(sampleRate), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return event.LoadSMF(f, sampleRate)
}

func renderToFile(path string, tl *event.Timeline, settings map[params.ID]float64, sampleRate, blockSize, voices int, tail time.Duration) error {
	cfg := controller.DefaultConfig()
	cfg.SampleRate = sampleRate
	cfg.BlockSize = blockSize
	cfg.Voices = voices
	cfg.Logger = logger
	bank := params.NewBank()
	for id, v := range settings {
		bank.Set(id, float32(v))
	}
	start := time.Now()
	samples, err := polyvoice.Render(tl, cfg, bank, tail)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := polyvoice.WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("wrote wav",
		"path", path,
		"frames", len(samples)/2,
		"peak", polyvoice.Peak(samples),
		"elapsed", time.Since(start),
	)
	return nil
}

// demoTimeline plays a four-chord progression, one chord per second, with a
// short arpeggio on top.
func demoTimeline(sampleRate int) *event.Timeline {
	chords := [][]int{
		{57, 60, 64},
		{53, 57, 60},
		{48, 52, 55},
		{55, 59, 62},
	}
	sec := int64(sampleRate)
	var evs []event.Timed
	for i, chord := range chords {
		on := int64(i) * sec
		off := on + sec*9/10
		for _, n := range chord {
			evs = append(evs,
				event.Timed{Frame: on, Event: event.NoteOn(n, 96, 0)},
				event.Timed{Frame: off, Event: event.NoteOff(n, 0)},
			)
		}
		for j, n := range chord {
			top := n + 12
			at := on + int64(j)*sec/4
			evs = append(evs,
				event.Timed{Frame: at, Event: event.NoteOn(top, 72, 0)},
				event.Timed{Frame: at + sec/5, Event: event.NoteOff(top, 0)},
			)
		}
	}
	return event.NewTimeline(evs)
}

func fatal(err error) {
	logger.Error("polyvoice failed", "err", err)
	os.Exit(1)
}
