package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// BlockSource renders audio in fixed-size stereo blocks.
type BlockSource interface {
	BlockSize() int
	ProcessBlock(left, right []float32)
}

// FinishingSource is a BlockSource that can signal when playback has ended.
// Once Finished returns true, the stream returns io.EOF instead of rendering
// another block.
type FinishingSource interface {
	BlockSource
	Finished() bool
}

// StreamReader adapts a BlockSource to an io.Reader of interleaved float32
// little-endian stereo frames. Reads of any length are served from the
// current block, rendering a new one whenever it is used up.
type StreamReader struct {
	mu     sync.Mutex
	source BlockSource
	left   []float32
	right  []float32
	pos    int
}

func NewStreamReader(source BlockSource) *StreamReader {
	n := source.BlockSize()
	return &StreamReader{
		source: source,
		left:   make([]float32, n),
		right:  make([]float32, n),
		pos:    n,
	}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	n := 0
	for f := 0; f < frames; f++ {
		if r.pos == len(r.left) {
			if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
				return n, io.EOF
			}
			r.source.ProcessBlock(r.left, r.right)
			r.pos = 0
		}
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(r.left[r.pos]))
		binary.LittleEndian.PutUint32(p[n+4:], math.Float32bits(r.right[r.pos]))
		r.pos++
		n += 8
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }

type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// NewPlayer opens a stream from source on the process-wide audio context.
// Every player must use the same sample rate.
func NewPlayer(sampleRate int, source BlockSource) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fmt.Errorf("open audio player: %w", err)
	}
	// Four blocks of driver buffering.
	pl.SetBufferSize(time.Duration(source.BlockSize()) * 4 * time.Second / time.Duration(sampleRate))
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()           { p.player.Play() }
func (p *Player) Pause()          { p.player.Pause() }
func (p *Player) IsPlaying() bool { return p.player.IsPlaying() }

// Position returns what the listener currently hears.
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
