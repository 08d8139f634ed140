package looper

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-looper/midi"
)

type timedMessage struct {
	tick uint64
	msg  midi.Message
}

func readPerformance(t *testing.T, data []byte) (*smf.SMF, []timedMessage) {
	t.Helper()
	file, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, file.Tracks, 2)

	var out []timedMessage
	var tick uint64
	for _, ev := range file.Tracks[1] {
		tick += uint64(ev.Delta)
		if msg, ok := midi.FromGomidi(gomidi.Message(ev.Message)); ok {
			out = append(out, timedMessage{tick: tick, msg: msg})
		}
	}
	return file, out
}

func TestExportSMF(t *testing.T) {
	l := withTake(t, &recordingSink{})

	var buf bytes.Buffer
	require.NoError(t, ExportSMF(&buf, l.Composition()))

	file, events := readPerformance(t, buf.Bytes())
	assert.Equal(t, smf.MetricTicks(TicksPerQuarter), file.TimeFormat)

	var bpm float64
	found := false
	for _, ev := range file.Tracks[0] {
		if ev.Message.GetMetaTempo(&bpm) {
			found = true
		}
	}
	require.True(t, found)
	assert.InDelta(t, 120, bpm, 0.01)

	// two metronome passes plus one pass of the three-event take
	require.Len(t, events, 19)

	// 240 ticks per quant; the take is shifted by one measure
	assert.Contains(t, events, timedMessage{tick: 0, msg: clickAccent})
	assert.Contains(t, events, timedMessage{tick: 3840, msg: clickAccent})
	assert.Contains(t, events, timedMessage{tick: 3840, msg: midi.NewNoteOn(0, 60, 100)})
	assert.Contains(t, events, timedMessage{tick: 5760, msg: midi.NewControlChange(0, 7, 64)})
	assert.Contains(t, events, timedMessage{tick: 960, msg: midi.NewNoteOff(0, 60, 0)})

	for i := 1; i < len(events); i++ {
		assert.LessOrEqual(t, events[i-1].tick, events[i].tick)
	}
	assert.Less(t, events[len(events)-1].tick, uint64(2*3840))
}

func TestExportSMFKeepsReplayOrderAtTies(t *testing.T) {
	l := withTake(t, &recordingSink{})

	var buf bytes.Buffer
	require.NoError(t, ExportSMF(&buf, l.Composition()))
	_, events := readPerformance(t, buf.Bytes())

	var at3840 []midi.Message
	for _, ev := range events {
		if ev.tick == 3840 {
			at3840 = append(at3840, ev.msg)
		}
	}
	assert.Equal(t, []midi.Message{clickAccent, clickOff, midi.NewNoteOn(0, 60, 100)}, at3840)
}

func TestExportSMFRejectsInvalid(t *testing.T) {
	var buf bytes.Buffer
	err := ExportSMF(&buf, CompositionData{})
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}
