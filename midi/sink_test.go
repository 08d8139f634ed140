package midi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	gomidi "gitlab.com/gomidi/midi/v2"
)

type wire struct {
	sent []gomidi.Message
	err  error
}

func (w *wire) send(msg gomidi.Message) error {
	w.sent = append(w.sent, msg)
	return w.err
}

func TestNoteTrackerForwardsAndTracks(t *testing.T) {
	w := &wire{}
	tr := NewNoteTracker(w.send, nil)

	assert.NoError(t, tr.Feed(NewNoteOn(0, 60, 100)))
	assert.NoError(t, tr.Feed(NewNoteOn(1, 64, 90)))
	assert.NoError(t, tr.Feed(NewControlChange(0, 7, 100)))
	assert.NoError(t, tr.Feed(NewNoteOff(1, 64, 0)))

	assert.True(t, tr.Sounding(0, 60))
	assert.False(t, tr.Sounding(1, 64))
	assert.False(t, tr.Sounding(16, 0))
	assert.Len(t, w.sent, 4)

	w.sent = nil
	tr.CloseOpenedNotes()
	assert.Equal(t, []gomidi.Message{gomidi.NoteOff(0, 60)}, w.sent)
	assert.False(t, tr.Sounding(0, 60))

	// nothing left to release
	w.sent = nil
	tr.CloseOpenedNotes()
	assert.Empty(t, w.sent)
}

func TestNoteTrackerSendError(t *testing.T) {
	w := &wire{err: errors.New("port gone")}
	tr := NewNoteTracker(w.send, nil)

	assert.EqualError(t, tr.Feed(NewNoteOn(0, 60, 100)), "port gone")
	// still tracked so a later release is attempted
	assert.True(t, tr.Sounding(0, 60))
}

func TestNoteTrackerNilSender(t *testing.T) {
	tr := NewNoteTracker(nil, nil)
	assert.NoError(t, tr.Feed(NewNoteOn(0, 60, 100)))
	assert.True(t, tr.Sounding(0, 60))
	tr.CloseOpenedNotes()
	assert.False(t, tr.Sounding(0, 60))
}

func TestNoteTrackerSetSenderReleasesOnOldOutput(t *testing.T) {
	old, next := &wire{}, &wire{}
	tr := NewNoteTracker(old.send, nil)
	assert.NoError(t, tr.Feed(NewNoteOn(5, 40, 100)))

	tr.SetSender(next.send)
	assert.Equal(t, []gomidi.Message{gomidi.NoteOn(5, 40, 100), gomidi.NoteOff(5, 40)}, old.sent)

	assert.NoError(t, tr.Feed(NewNoteOn(5, 41, 100)))
	assert.Len(t, next.sent, 1)
}
