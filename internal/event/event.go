// Package event carries note and button events to the audio goroutine with
// their sample offset inside the block they belong to.
package event

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

type Kind int

const (
	KindNoteOn Kind = iota
	KindNoteOff
	// KindButton is the push button; Velocity > 0 means pressed.
	KindButton
	KindAllNotesOff
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "note-on"
	case KindNoteOff:
		return "note-off"
	case KindButton:
		return "button"
	case KindAllNotesOff:
		return "all-notes-off"
	default:
		return "unknown"
	}
}

// MIDI controllers that silence every voice.
const (
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

type Event struct {
	Kind     Kind
	Note     int
	Velocity int
	Offset   int
}

func NoteOn(note, velocity, offset int) Event {
	return Event{Kind: KindNoteOn, Note: note, Velocity: velocity, Offset: offset}
}

func NoteOff(note, offset int) Event {
	return Event{Kind: KindNoteOff, Note: note, Offset: offset}
}

func Button(pressed bool, offset int) Event {
	ev := Event{Kind: KindButton, Offset: offset}
	if pressed {
		ev.Velocity = 1
	}
	return ev
}

func AllNotesOff(offset int) Event {
	return Event{Kind: KindAllNotesOff, Offset: offset}
}

func (e Event) String() string {
	return fmt.Sprintf("%s{note:%d vel:%d offset:%d}", e.Kind, e.Note, e.Velocity, e.Offset)
}

// FromMIDI converts a MIDI message into an event. Note-on with velocity 0 is a
// note-off. Messages the synth does not act on report false.
func FromMIDI(msg midi.Message, offset int) (Event, bool) {
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return NoteOn(int(key), int(vel), offset), true
	case msg.GetNoteEnd(&ch, &key):
		return NoteOff(int(key), offset), true
	case msg.GetControlChange(&ch, &cc, &val):
		if cc == ccAllNotesOff || cc == ccAllSoundOff {
			return AllNotesOff(offset), true
		}
	}
	return Event{}, false
}
