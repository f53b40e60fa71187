package event

import (
	"bytes"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestFromMIDI(t *testing.T) {
	for _, tc := range []struct {
		name string
		msg  midi.Message
		want Event
		ok   bool
	}{
		{"note on", midi.NoteOn(0, 60, 100), NoteOn(60, 100, 7), true},
		{"note on zero velocity", midi.NoteOn(3, 61, 0), NoteOff(61, 7), true},
		{"note off", midi.NoteOff(1, 62), NoteOff(62, 7), true},
		{"all notes off", midi.ControlChange(0, 123, 0), AllNotesOff(7), true},
		{"all sound off", midi.ControlChange(0, 120, 0), AllNotesOff(7), true},
		{"mod wheel", midi.ControlChange(0, 1, 64), Event{}, false},
		{"program change", midi.ProgramChange(0, 5), Event{}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FromMIDI(tc.msg, 7)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestQueueSortsByOffsetStably(t *testing.T) {
	q := NewQueue(8, 64)
	q.Push(NoteOn(1, 100, 30))
	q.Push(NoteOn(2, 100, 5))
	q.Push(NoteOff(3, 30))
	q.Push(NoteOn(4, 100, 0))
	var got []int
	q.Drain(func(ev Event) { got = append(got, ev.Note) })
	want := []int{4, 2, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drain order = %v, want %v", got, want)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty after drain")
	}
}

func TestQueueClampsOffsets(t *testing.T) {
	q := NewQueue(4, 16)
	q.Push(NoteOn(1, 1, -3))
	q.Push(NoteOn(2, 1, 16))
	q.Push(NoteOn(3, 1, 99))
	var offsets []int
	q.Drain(func(ev Event) { offsets = append(offsets, ev.Offset) })
	if offsets[0] != 0 || offsets[1] != 15 || offsets[2] != 15 {
		t.Fatalf("offsets = %v, want [0 15 15]", offsets)
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(2, 16)
	if !q.Push(NoteOn(1, 1, 0)) || !q.Push(NoteOn(2, 1, 0)) {
		t.Fatalf("pushes within capacity failed")
	}
	if q.Push(NoteOn(3, 1, 0)) {
		t.Fatalf("push beyond capacity accepted")
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", q.Dropped())
	}
}

func TestQueuePushDoesNotAllocate(t *testing.T) {
	q := NewQueue(16, 64)
	drain := func(Event) {}
	allocs := testing.AllocsPerRun(100, func() {
		for i := 0; i < 16; i++ {
			q.Push(NoteOn(i, 100, 63-i))
		}
		q.Drain(drain)
	})
	if allocs != 0 {
		t.Fatalf("queue allocated %v times", allocs)
	}
}

func TestTimelineScheduleSplitsBlocks(t *testing.T) {
	tl := NewTimeline([]Timed{
		{Frame: 70, Event: NoteOff(60, 0)},
		{Frame: 3, Event: NoteOn(60, 100, 0)},
		{Frame: 64, Event: NoteOn(62, 100, 0)},
	})
	q := NewQueue(8, 64)
	tl.Schedule(q, 0)
	var first []Event
	q.Drain(func(ev Event) { first = append(first, ev) })
	if len(first) != 1 || first[0].Note != 60 || first[0].Offset != 3 {
		t.Fatalf("first block = %v", first)
	}
	tl.Schedule(q, 64)
	var second []Event
	q.Drain(func(ev Event) { second = append(second, ev) })
	if len(second) != 2 || second[0].Offset != 0 || second[1].Offset != 6 || second[1].Kind != KindNoteOff {
		t.Fatalf("second block = %v", second)
	}
	if !tl.Done() || tl.End() != 70 {
		t.Fatalf("done=%v end=%d", tl.Done(), tl.End())
	}
	tl.Rewind()
	if tl.Done() {
		t.Fatalf("rewind did not restart timeline")
	}
}

func TestLoadSMF(t *testing.T) {
	var tr smf.Track
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(480, midi.NoteOff(0, 60))
	tr.Add(0, midi.ControlChange(0, 1, 10))
	tr.Add(480, midi.NoteOn(0, 64, 90))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	if err := s.Add(tr); err != nil {
		t.Fatalf("add track: %v", err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}

	tl, err := LoadSMF(&buf, 48000)
	if err != nil {
		t.Fatalf("load smf: %v", err)
	}
	if tl.Len() != 3 {
		t.Fatalf("timeline has %d events, want 3", tl.Len())
	}
	// 480 ticks at the default 120 bpm is half a second.
	want := []Timed{
		{Frame: 0, Event: NoteOn(60, 100, 0)},
		{Frame: 24000, Event: NoteOff(60, 0)},
		{Frame: 48000, Event: NoteOn(64, 90, 0)},
	}
	for i, w := range want {
		if tl.events[i] != w {
			t.Fatalf("event %d = %+v, want %+v", i, tl.events[i], w)
		}
	}
}

func TestLoadSMFRejectsGarbage(t *testing.T) {
	if _, err := LoadSMF(bytes.NewReader([]byte("not a midi file")), 48000); err == nil {
		t.Fatalf("expected error for invalid file")
	}
	if _, err := LoadSMF(bytes.NewReader(nil), 0); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}
