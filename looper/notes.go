package looper

import (
	"go-looper/measure"
	"go-looper/midi"
)

// Note is a note-on/note-off pair found in a sample, used for display
type Note struct {
	Start    measure.Quant
	End      measure.Quant
	Key      uint8
	Channel  uint8
	Velocity uint8
}

type openNote struct {
	open bool
	note Note
}

// noteTable tracks the open note for every (channel, key)
type noteTable [midi.NumChannels][midi.NumKeys]openNote

// EventsToNotes pairs note-ons with the following note-off on the same
// channel and key. A second note-on closes the open note and starts a new
// one; a note-off with nothing open is ignored; notes still open at the end
// are dropped.
func EventsToNotes(buffer []measure.QuantEvent) []Note {
	var table noteTable
	var result []Note

	for _, event := range buffer {
		msg := event.Message
		if msg.Channel >= midi.NumChannels || msg.Key >= midi.NumKeys {
			continue
		}
		slot := &table[msg.Channel][msg.Key]

		switch msg.Type {
		case midi.NoteOn:
			if slot.open {
				closed := slot.note
				closed.End = event.Quant
				result = append(result, closed)
			}
			slot.open = true
			slot.note = Note{
				Start:    event.Quant,
				Key:      msg.Key,
				Channel:  msg.Channel,
				Velocity: msg.Velocity,
			}
		case midi.NoteOff:
			if slot.open {
				closed := slot.note
				closed.End = event.Quant
				result = append(result, closed)
				slot.open = false
			}
		}
	}

	return result
}
