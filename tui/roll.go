package tui

import (
	"fmt"

	"go-looper/looper"
	"go-looper/measure"
	"go-looper/midi"
	"go-looper/theme"
	"go-looper/widgets"
)

const defaultRollWidth = 64

// rollColumns is how many cells a lane gets: one per quant when it fits
func rollColumns(loop measure.Quant, available int) int {
	if loop == 0 || available <= 0 {
		return 0
	}
	return min(int(loop), available)
}

// loopPosition is where a sample-local quant first plays in the loop
func loopPosition(local measure.Quant, v looper.SampleView, qpm measure.Quant) measure.Quant {
	length := uint64(v.AmountOfMeasures) * uint64(qpm)
	if length == 0 {
		return 0
	}
	shift := uint64(v.MeasureShift%v.AmountOfMeasures) * uint64(qpm)
	return measure.Quant((uint64(local)%length + length - shift) % length)
}

type roll struct {
	theme  *theme.Theme
	snap   looper.Snapshot
	loop   uint64
	cols   int
	bars   []bool
	cursor int
}

func newRoll(th *theme.Theme, snap looper.Snapshot, available int) *roll {
	loop := snap.LoopQuants()
	r := &roll{
		theme: th,
		snap:  snap,
		loop:  uint64(loop),
		cols:  rollColumns(loop, available),
	}
	r.bars = make([]bool, r.cols)
	if r.cols == 0 {
		return r
	}
	qpm := uint64(snap.Measure.QuantsPerMeasure())
	for q := uint64(0); qpm > 0 && q < r.loop; q += qpm {
		r.bars[r.column(q)] = true
	}
	r.cursor = r.column(uint64(snap.CurrentQuant()))
	return r
}

func (r *roll) column(q uint64) int {
	from, _ := widgets.Columns(q%r.loop, q%r.loop, r.loop, r.cols)
	return from
}

func (r *roll) rgb(role float64) [3]uint8 {
	return [3]uint8(r.theme.RGB(role))
}

// lane draws one sample over every repeat in the loop
func (r *roll) lane(v looper.SampleView) []widgets.Cell {
	cells := make([]widgets.Cell, r.cols)
	for c := range cells {
		cells[c] = widgets.Cell{Rune: r.theme.Symbols.Rest, Color: r.rgb(theme.RoleMuted)}
		if r.bars[c] {
			cells[c].Rune = r.theme.Symbols.Bar
		}
	}

	qpm := r.snap.Measure.QuantsPerMeasure()
	length := uint64(v.AmountOfMeasures) * uint64(qpm)
	if length == 0 || r.cols == 0 {
		return cells
	}

	// non-note events first so notes draw over them
	for _, event := range v.Buffer {
		if event.Message.Type != midi.CC {
			continue
		}
		first := uint64(loopPosition(event.Quant, v, qpm))
		for q := first; q < r.loop; q += length {
			c := r.column(q)
			if cells[c].Rune == r.theme.Symbols.Rest || cells[c].Rune == r.theme.Symbols.Bar {
				cells[c] = widgets.Cell{Rune: r.theme.Symbols.Event, Color: [3]uint8(r.theme.ChannelRGB(event.Message.Channel))}
			}
		}
	}

	for _, note := range v.Notes {
		color := [3]uint8(r.theme.ChannelRGB(note.Channel))
		bold := note.Velocity >= 100
		span := uint64(0)
		if note.End > note.Start {
			span = uint64(note.End - note.Start)
		}
		first := uint64(loopPosition(note.Start, v, qpm))
		for start := first; start < r.loop; start += length {
			for q := start + 1; q < start+span; q++ {
				c := r.column(q)
				if cells[c].Rune != r.theme.Symbols.NoteStart {
					cells[c] = widgets.Cell{Rune: r.theme.Symbols.NoteHold, Color: color, Bold: bold}
				}
			}
			cells[r.column(start)] = widgets.Cell{Rune: r.theme.Symbols.NoteStart, Color: color, Bold: bold}
		}
	}

	if r.cursor < len(cells) {
		cells[r.cursor].Bold = true
		if cells[r.cursor].Rune == r.theme.Symbols.Rest || cells[r.cursor].Rune == r.theme.Symbols.Bar {
			cells[r.cursor].Color = r.rgb(theme.RoleCursor)
		}
	}
	return cells
}

// ruler marks the playhead above the lanes
func (r *roll) ruler() []widgets.Cell {
	cells := make([]widgets.Cell, r.cols)
	for c := range cells {
		cells[c] = widgets.Cell{Rune: ' '}
		if r.bars[c] {
			cells[c] = widgets.Cell{Rune: r.theme.Symbols.Bar, Color: r.rgb(theme.RoleSurface)}
		}
	}
	if r.cursor < len(cells) {
		cells[r.cursor] = widgets.Cell{Rune: r.theme.Symbols.Playhead, Color: r.rgb(theme.RoleAccent), Bold: true}
	}
	return cells
}

func laneLabel(i int, v looper.SampleView) string {
	if i == 0 {
		return "met"
	}
	return fmt.Sprintf("%d:%dm", i, v.AmountOfMeasures)
}

// renderRoll draws the ruler and one lane per sample
func renderRoll(th *theme.Theme, snap looper.Snapshot, width int) string {
	labels := []string{""}
	for i, v := range snap.Samples {
		labels = append(labels, laneLabel(i, v))
	}
	labelWidth := 0
	for _, l := range labels {
		labelWidth = max(labelWidth, len(l))
	}

	available := defaultRollWidth
	if width > 0 {
		available = width - labelWidth - 3
	}
	r := newRoll(th, snap, available)
	if r.cols == 0 {
		return ""
	}

	lanes := [][]widgets.Cell{r.ruler()}
	for _, v := range snap.Samples {
		lanes = append(lanes, r.lane(v))
	}
	return widgets.RenderLanes(labels, lanes, [3]uint8(th.RGB(theme.RoleFG)))
}
