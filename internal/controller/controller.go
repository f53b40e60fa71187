// Package controller runs one processing cycle of the polyphonic patch: it
// applies the block's note events, maps the control parameters onto the voice
// pool and renders the mix to both output channels.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cbegin/polyvoice-go/internal/event"
	"github.com/cbegin/polyvoice-go/internal/params"
	"github.com/cbegin/polyvoice-go/internal/voice"
)

var ErrInvalidConfig = errors.New("invalid controller config")

// ParameterSource supplies normalized [0,1] control values.
type ParameterSource interface {
	Value(id params.ID) float32
}

type Config struct {
	SampleRate     int
	BlockSize      int
	Voices         int
	ReferencePitch float32
	MaxVelocity    int
	// EventCapacity bounds the note events accepted per block.
	EventCapacity int
	// NewVoice builds the voice for each slot. Nil uses voice.NewSynth.
	NewVoice func(sampleRate float32) *voice.Voice
	Logger   *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		SampleRate:     48000,
		BlockSize:      256,
		Voices:         8,
		ReferencePitch: 440,
		MaxVelocity:    127,
		EventCapacity:  128,
	}
}

type Controller struct {
	cfg    Config
	pool   *voice.Pool
	params ParameterSource
	queue  *event.Queue
	log    *slog.Logger
	handle func(event.Event)
}

func New(cfg Config, src ParameterSource) (*Controller, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, cfg.SampleRate)
	}
	if cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: block size %d", ErrInvalidConfig, cfg.BlockSize)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil parameter source", ErrInvalidConfig)
	}
	if cfg.EventCapacity <= 0 {
		cfg.EventCapacity = DefaultConfig().EventCapacity
	}
	newVoice := cfg.NewVoice
	if newVoice == nil {
		newVoice = voice.NewSynth
	}
	sr := float32(cfg.SampleRate)
	pool, err := voice.NewPool(voice.PoolConfig{
		Voices:         cfg.Voices,
		BlockSize:      cfg.BlockSize,
		ReferencePitch: cfg.ReferencePitch,
		MaxVelocity:    cfg.MaxVelocity,
	}, func(int) *voice.Voice { return newVoice(sr) })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Controller{
		cfg:    cfg,
		pool:   pool,
		params: src,
		queue:  event.NewQueue(cfg.EventCapacity, cfg.BlockSize),
		log:    log,
	}
	c.handle = c.HandleEvent
	return c, nil
}

// Enqueue stores ev for the next ProcessBlock. It reports false when the
// block's event capacity is exhausted.
func (c *Controller) Enqueue(ev event.Event) bool {
	if !c.queue.Push(ev) {
		c.log.Warn("event dropped, queue full", "event", ev.String())
		return false
	}
	return true
}

// HandleEvent applies ev to the pool right away. Its offset refers to the
// next rendered block.
func (c *Controller) HandleEvent(ev event.Event) {
	switch ev.Kind {
	case event.KindNoteOn:
		if ev.Velocity <= 0 {
			c.pool.NoteOff(ev.Note, ev.Offset)
			return
		}
		c.pool.NoteOn(ev.Note, ev.Velocity, ev.Offset)
	case event.KindNoteOff:
		c.pool.NoteOff(ev.Note, ev.Offset)
	case event.KindButton:
		if ev.Velocity > 0 {
			c.pool.AllNotesOn()
		} else {
			c.pool.AllNotesOff()
		}
	case event.KindAllNotesOff:
		c.pool.AllNotesOff()
	}
	if c.log.Enabled(context.Background(), slog.LevelDebug) {
		c.log.Debug("midi note", "kind", ev.Kind.String(), "note", ev.Note, "velocity", ev.Velocity, "offset", ev.Offset)
	}
}

// ProcessBlock applies every queued event, pushes the current parameters to
// all voices and renders the mix into left, copying it to right. Both slices
// must be BlockSize long or shorter.
func (c *Controller) ProcessBlock(left, right []float32) {
	c.queue.Drain(c.handle)

	shape := c.params.Value(params.Waveshape) * 2
	cutoff := c.params.Value(params.Cutoff) * 0.5
	q := c.params.Value(params.Resonance)*3 + 0.75
	attack, release := MapEnvelope(c.params.Value(params.Envelope) * 4)

	c.pool.SetParameters(shape, cutoff, q, attack, release)
	c.pool.GetSamples(left)
	copy(right, left)
}

// MapEnvelope turns a single 0..4 control into attack and release times:
// 0..1 shortens a long attack with no release, 1..2 grows the release from
// nothing, 2..3 grows the attack back with a full release, and 3 and above
// holds both at full length.
func MapEnvelope(df float32) (attack, release float32) {
	switch {
	case !(df >= 1):
		if !(df >= 0) {
			df = 0
		}
		return 1 - df, 0
	case df < 2:
		return 0, df - 1
	case df < 3:
		return df - 2, 1
	default:
		return 1, 1
	}
}

func (c *Controller) Pool() *voice.Pool { return c.pool }
func (c *Controller) Config() Config    { return c.cfg }
func (c *Controller) BlockSize() int    { return c.cfg.BlockSize }

// Pending returns the number of events waiting for the next block.
func (c *Controller) Pending() int { return c.queue.Len() }

// Dropped returns the number of events rejected because a block's queue was
// full.
func (c *Controller) Dropped() int { return c.queue.Dropped() }

// Queue exposes the per-block queue so schedulers can feed it directly.
func (c *Controller) Queue() *event.Queue { return c.queue }
