package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-looper/looper"
	"go-looper/measure"
	"go-looper/midi"
	"go-looper/theme"
)

func TestLoopPositionInvertsLocalQuant(t *testing.T) {
	m := measure.Default()
	events := []midi.AbsEvent{
		{Message: midi.NewNoteOn(0, 60, 100), Timestamp: 0},
		{Message: midi.NewNoteOff(0, 60, 0), Timestamp: 3000},
	}
	for shift := uint32(0); shift < 3; shift++ {
		s := looper.NewSample(events, m, shift)
		v := looper.SampleView{AmountOfMeasures: s.AmountOfMeasures(), MeasureShift: s.MeasureShift()}
		for local := measure.Quant(0); local < s.QuantLength(); local++ {
			pos := loopPosition(local, v, m.QuantsPerMeasure())
			require.Equal(t, local, s.LocalQuant(pos), "shift %d local %d", shift, local)
		}
	}
}

func TestRollColumns(t *testing.T) {
	assert.Equal(t, 16, rollColumns(16, 80))
	assert.Equal(t, 40, rollColumns(96, 40))
	assert.Equal(t, 0, rollColumns(0, 80))
	assert.Equal(t, 0, rollColumns(16, -3))
}

func TestMetronomeLane(t *testing.T) {
	th := theme.New(theme.Default())
	snap := looper.New(midi.NewNoteTracker(nil, nil)).Snapshot()

	r := newRoll(th, snap, 80)
	require.Equal(t, 16, r.cols)
	lane := r.lane(snap.Samples[0])

	starts := 0
	for c, cell := range lane {
		if cell.Rune == th.Symbols.NoteStart {
			starts++
			assert.Zero(t, c%4, "click at column %d", c)
		}
	}
	assert.Equal(t, 4, starts)
	assert.True(t, lane[0].Bold, "accent and cursor")

	ruler := r.ruler()
	assert.Equal(t, th.Symbols.Playhead, ruler[0].Rune)
}

func TestShiftedTakeLane(t *testing.T) {
	th := theme.New(theme.Default())
	m := measure.Default()

	// two measure take whose first measure plays second
	take := looper.NewSample([]midi.AbsEvent{
		{Message: midi.NewNoteOn(1, 60, 90), Timestamp: 0},
		{Message: midi.NewNoteOff(1, 60, 0), Timestamp: 500},
		{Message: midi.NewControlChange(1, 7, 100), Timestamp: 1000},
		{Message: midi.NewNoteOn(1, 62, 90), Timestamp: 2500},
		{Message: midi.NewNoteOff(1, 62, 0), Timestamp: 3000},
	}, m, 1)
	require.Equal(t, uint32(2), take.AmountOfMeasures())

	snap := looper.Snapshot{
		Measure:          m,
		AmountOfMeasures: 2,
		TimeCursor:       2000,
		Samples: []looper.SampleView{{
			Buffer:           take.Buffer(),
			AmountOfMeasures: take.AmountOfMeasures(),
			MeasureShift:     take.MeasureShift(),
			Notes:            take.Notes(),
		}},
	}
	r := newRoll(th, snap, 80)
	require.Equal(t, 32, r.cols)
	assert.Equal(t, 16, r.cursor)

	lane := r.lane(snap.Samples[0])
	// local 0 plays at 16, local 20 at 4
	assert.Equal(t, th.Symbols.NoteStart, lane[16].Rune)
	assert.Equal(t, th.Symbols.NoteHold, lane[17].Rune)
	assert.Equal(t, th.Symbols.NoteHold, lane[19].Rune)
	assert.Equal(t, th.Symbols.Event, lane[24].Rune)
	assert.Equal(t, th.Symbols.NoteStart, lane[4].Rune)
	assert.Equal(t, th.Symbols.Bar, lane[0].Rune)
	assert.True(t, lane[16].Bold, "cursor column")
}

func TestRenderRollEmptyLoop(t *testing.T) {
	assert.Empty(t, renderRoll(theme.New(theme.Default()), looper.Snapshot{}, 80))
}
