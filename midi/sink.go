package midi

import (
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"
)

// Sink receives the messages the looper plays.
type Sink interface {
	Feed(msg Message) error

	// CloseOpenedNotes sends a note-off for every note still sounding
	CloseOpenedNotes()
}

// NoteTracker is a Sink that forwards to a MIDI output and remembers which
// notes are currently sounding so they can be released on stop/rewind.
type NoteTracker struct {
	mu    sync.Mutex
	send  func(gomidi.Message) error
	notes [NumChannels][NumKeys]bool
	log   *zap.Logger
}

// NewNoteTracker wraps a sender such as the one returned by gomidi.SendTo.
// A nil send drops everything, which is what you get with no output port.
func NewNoteTracker(send func(gomidi.Message) error, log *zap.Logger) *NoteTracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &NoteTracker{send: send, log: log}
}

// SetSender swaps the output (e.g. after a hot-plug). Sounding notes are
// released on the old output first.
func (t *NoteTracker) SetSender(send func(gomidi.Message) error) {
	t.CloseOpenedNotes()

	t.mu.Lock()
	t.send = send
	t.mu.Unlock()
}

func (t *NoteTracker) Feed(msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.Channel < NumChannels && msg.Key < NumKeys {
		switch msg.Type {
		case NoteOn:
			t.notes[msg.Channel][msg.Key] = true
		case NoteOff:
			t.notes[msg.Channel][msg.Key] = false
		}
	}

	if t.send == nil {
		return nil
	}
	return t.send(msg.Gomidi())
}

func (t *NoteTracker) CloseOpenedNotes() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for ch := 0; ch < NumChannels; ch++ {
		for key := 0; key < NumKeys; key++ {
			if !t.notes[ch][key] {
				continue
			}
			t.notes[ch][key] = false
			if t.send == nil {
				continue
			}
			if err := t.send(gomidi.NoteOff(uint8(ch), uint8(key))); err != nil {
				t.log.Warn("release note", zap.Int("channel", ch), zap.Int("key", key), zap.Error(err))
			}
		}
	}
}

// Sounding reports whether the tracker thinks a note is held
func (t *NoteTracker) Sounding(channel, key uint8) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if channel >= NumChannels || key >= NumKeys {
		return false
	}
	return t.notes[channel][key]
}
