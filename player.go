package polyvoice

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/gomidi/midi/v2"

	intaudio "github.com/cbegin/polyvoice-go/internal/audio"
	"github.com/cbegin/polyvoice-go/internal/controller"
	"github.com/cbegin/polyvoice-go/internal/event"
	"github.com/cbegin/polyvoice-go/internal/params"
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	ctrl      controller.Config
	sampleTap func(left, right []float32)
}

func defaultPlayerConfig(sampleRate int) playerConfig {
	cfg := controller.DefaultConfig()
	cfg.SampleRate = sampleRate
	return playerConfig{ctrl: cfg}
}

func WithVoices(n int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.ctrl.Voices = n
	}
}

func WithBlockSize(n int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.ctrl.BlockSize = n
	}
}

// WithReferencePitch sets the pitch of note 69 in Hz.
func WithReferencePitch(hz float32) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.ctrl.ReferencePitch = hz
	}
}

func WithLogger(log *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.ctrl.Logger = log
	}
}

// WithSampleTap installs a callback invoked with each rendered block.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func(left, right []float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// Player plays the polyphonic patch live. Note and parameter calls are safe
// from any goroutine; they take effect at the start of the next block.
type Player struct {
	mu         sync.Mutex
	sampleRate int
	params     *params.Bank
	engine     *engine
	audio      *intaudio.Player
	log        *slog.Logger
	done       *doneSignal
}

// doneSignal is closed once, by whichever of timeline end, replacement or
// Stop comes first.
type doneSignal struct {
	once sync.Once
	ch   chan struct{}
}

func newDoneSignal() *doneSignal { return &doneSignal{ch: make(chan struct{})} }

func (d *doneSignal) fire() {
	if d != nil {
		d.once.Do(func() { close(d.ch) })
	}
}

// engine is the audio-thread side of a Player.
type engine struct {
	ctrl *controller.Controller
	tap  func(left, right []float32)

	mu        sync.Mutex
	inbox     []event.Event
	spare     []event.Event
	score     *event.Timeline
	scoreDone *doneSignal
	tail      int64

	playing     *event.Timeline
	playingDone *doneSignal
	position    int64
	stopAt      int64
	rendered    atomic.Int64
	active   atomic.Int32
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	cfg := defaultPlayerConfig(sampleRate)
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ctrl.Logger == nil {
		cfg.ctrl.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	bank := params.NewBank()
	ctrl, err := controller.New(cfg.ctrl, bank)
	if err != nil {
		return nil, err
	}
	p := &Player{
		sampleRate: sampleRate,
		params:     bank,
		log:        cfg.ctrl.Logger,
	}
	p.engine = &engine{
		ctrl:  ctrl,
		tap:   cfg.sampleTap,
		inbox: make([]event.Event, 0, cfg.ctrl.EventCapacity),
		spare: make([]event.Event, 0, cfg.ctrl.EventCapacity),
	}
	return p, nil
}

func (e *engine) BlockSize() int { return e.ctrl.BlockSize() }

func (e *engine) post(ev event.Event) {
	e.mu.Lock()
	e.inbox = append(e.inbox, ev)
	e.mu.Unlock()
}

// ProcessBlock moves posted events and the scheduled timeline into the
// controller's queue, then renders one block.
func (e *engine) ProcessBlock(left, right []float32) {
	e.mu.Lock()
	posted := e.inbox
	e.inbox, e.spare = e.spare[:0], posted
	if e.score != nil {
		e.playing, e.score = e.score, nil
		e.playingDone, e.scoreDone = e.scoreDone, nil
		e.playing.Rewind()
		e.position = 0
		e.stopAt = e.playing.End() + e.tail
	}
	e.mu.Unlock()

	for _, ev := range posted {
		e.ctrl.Enqueue(ev)
	}
	if tl := e.playing; tl != nil {
		tl.Schedule(e.ctrl.Queue(), e.position)
	}

	e.ctrl.ProcessBlock(left, right)
	n := int64(len(left))
	e.rendered.Add(n)
	e.active.Store(int32(e.ctrl.Pool().ActiveVoiceCount()))
	if e.tap != nil {
		e.tap(left, right)
	}

	if e.playing != nil {
		e.position += n
		if e.playing.Done() && e.position >= e.stopAt {
			e.playing = nil
			e.playingDone.fire()
		}
	}
}

// Start opens the audio device and begins streaming. Calling Start on a
// running player does nothing.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		return nil
	}
	backend, err := intaudio.NewPlayer(p.sampleRate, p.engine)
	if err != nil {
		return err
	}
	p.audio = backend
	p.audio.Play()
	p.log.Info("audio started", "sample_rate", p.sampleRate, "block_size", p.engine.BlockSize(), "voices", p.engine.ctrl.Pool().Len())
	return nil
}

func (p *Player) Stop() error {
	p.mu.Lock()
	if p.audio == nil {
		p.mu.Unlock()
		return nil
	}
	err := p.audio.Stop()
	p.audio = nil
	p.done.fire()
	p.done = nil
	p.mu.Unlock()
	p.log.Info("audio stopped")
	return err
}

func (p *Player) NoteOn(note, velocity int) { p.engine.post(event.NoteOn(note, velocity, 0)) }
func (p *Player) NoteOff(note int)          { p.engine.post(event.NoteOff(note, 0)) }

// AllNotesOn presses the push button: every voice sounds at a fixed low gain.
func (p *Player) AllNotesOn() { p.engine.post(event.Button(true, 0)) }

// AllNotesOff releases every voice.
func (p *Player) AllNotesOff() { p.engine.post(event.AllNotesOff(0)) }

// HandleMIDI posts a live MIDI message. It reports false for messages the
// patch does not respond to.
func (p *Player) HandleMIDI(msg midi.Message) bool {
	ev, ok := event.FromMIDI(msg, 0)
	if ok {
		p.engine.post(ev)
	}
	return ok
}

func (p *Player) SetParameter(id params.ID, v float32) { p.params.Set(id, v) }
func (p *Player) Parameter(id params.ID) float32       { return p.params.Value(id) }

// SetParameterByName sets a parameter by its registered name.
func (p *Player) SetParameterByName(name string, v float32) error {
	id, ok := params.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	p.params.Set(id, v)
	return nil
}

// PlayTimeline schedules tl from the next block, replacing any timeline
// already playing. Wait returns once the last event plus tail has been
// rendered.
func (p *Player) PlayTimeline(tl *event.Timeline, tail time.Duration) error {
	if tl == nil {
		return errors.New("nil timeline")
	}
	p.schedule(tl, tail)
	return p.Start()
}

func (p *Player) schedule(tl *event.Timeline, tail time.Duration) {
	p.mu.Lock()
	// Signal any existing Wait() that the previous playback was replaced
	p.done.fire()
	done := newDoneSignal()
	p.done = done
	p.mu.Unlock()

	e := p.engine
	e.mu.Lock()
	e.score = tl
	e.scoreDone = done
	e.tail = int64(tail.Seconds() * float64(p.sampleRate))
	e.mu.Unlock()
}

// Wait blocks until the current timeline ends or the player is stopped.
// Wait returns immediately if no timeline is playing.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done.ch
	}
}

// RenderedFrames returns the number of frames produced since the player was
// created.
func (p *Player) RenderedFrames() int64 { return p.engine.rendered.Load() }

// PlaybackPosition returns the current output position of the audio driver in
// frames. Returns 0 if not playing.
func (p *Player) PlaybackPosition() int64 {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	return int64(a.Position().Seconds() * float64(p.sampleRate))
}

// ActiveVoices returns the number of voices holding a note after the last
// rendered block.
func (p *Player) ActiveVoices() int { return int(p.engine.active.Load()) }

func (p *Player) SampleRate() int { return p.sampleRate }
