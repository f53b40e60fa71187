package event

import (
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Timed is an event at an absolute frame position. Its Offset is ignored
// until it is scheduled into a block.
type Timed struct {
	Frame int64
	Event Event
}

// Timeline is a frame-ordered event list that is fed into per-block queues.
type Timeline struct {
	events []Timed
	pos    int
}

// NewTimeline sorts events by frame, keeping the given order for ties.
func NewTimeline(events []Timed) *Timeline {
	evs := append([]Timed(nil), events...)
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Frame < evs[j].Frame })
	return &Timeline{events: evs}
}

// LoadSMF reads a Standard MIDI File and converts its note and all-notes-off
// messages from every track into a timeline at sampleRate.
func LoadSMF(r io.Reader, sampleRate int) (*Timeline, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	var evs []Timed
	rd := smf.ReadTracksFrom(r).Do(func(te smf.TrackEvent) {
		ev, ok := FromMIDI(midi.Message(te.Message), 0)
		if !ok {
			return
		}
		frame := te.AbsMicroSeconds * int64(sampleRate) / 1_000_000
		evs = append(evs, Timed{Frame: frame, Event: ev})
	})
	if err := rd.Error(); err != nil {
		return nil, fmt.Errorf("read midi file: %w", err)
	}
	return NewTimeline(evs), nil
}

// Schedule pushes every event in [blockStart, blockStart+q.BlockSize()) into
// q with its offset inside the block. Events before blockStart that were
// skipped land at offset 0.
func (t *Timeline) Schedule(q *Queue, blockStart int64) {
	end := blockStart + int64(q.BlockSize())
	for t.pos < len(t.events) && t.events[t.pos].Frame < end {
		te := t.events[t.pos]
		ev := te.Event
		ev.Offset = int(te.Frame - blockStart)
		q.Push(ev)
		t.pos++
	}
}

// Done reports whether every event has been scheduled.
func (t *Timeline) Done() bool { return t.pos >= len(t.events) }

// End returns the frame of the last event.
func (t *Timeline) End() int64 {
	if len(t.events) == 0 {
		return 0
	}
	return t.events[len(t.events)-1].Frame
}

func (t *Timeline) Len() int { return len(t.events) }

// Rewind restarts scheduling from the first event.
func (t *Timeline) Rewind() { t.pos = 0 }
