package looper

import "go-looper/measure"

// Snapshot is a read-only copy of what a renderer needs. Sample buffers and
// notes are shared with the live samples, which never change them.
type Snapshot struct {
	State            State
	NextState        State
	Pending          bool
	TimeCursor       uint32
	Measure          measure.Measure
	AmountOfMeasures uint32
	RecordedEvents   int
	Samples          []SampleView
}

// SampleView is one sample as seen by a renderer
type SampleView struct {
	Buffer           []measure.QuantEvent
	AmountOfMeasures uint32
	MeasureShift     uint32
	Notes            []Note
}

func (l *Looper) Snapshot() Snapshot {
	s := Snapshot{
		State:            l.state,
		NextState:        l.nextState,
		Pending:          l.pending,
		TimeCursor:       l.timeCursor,
		Measure:          l.measure,
		AmountOfMeasures: l.amountOfMeasures,
		RecordedEvents:   len(l.recordBuffer),
		Samples:          make([]SampleView, 0, len(l.composition)),
	}
	for _, sample := range l.composition {
		s.Samples = append(s.Samples, SampleView{
			Buffer:           sample.Buffer(),
			AmountOfMeasures: sample.AmountOfMeasures(),
			MeasureShift:     sample.MeasureShift(),
			Notes:            sample.Notes(),
		})
	}
	return s
}

// CurrentMeasure is the index of the measure the cursor is in
func (s Snapshot) CurrentMeasure() uint32 {
	return s.Measure.TimestampToMeasure(s.TimeCursor)
}

// CurrentQuant is the loop position of the cursor in quants
func (s Snapshot) CurrentQuant() measure.Quant {
	return s.Measure.TimestampToQuant(s.TimeCursor)
}

// LoopQuants is the loop length in quants
func (s Snapshot) LoopQuants() measure.Quant {
	return measure.Quant(s.AmountOfMeasures) * s.Measure.QuantsPerMeasure()
}

// Progress is how far through the loop the cursor is, 0 to 1
func (s Snapshot) Progress() float64 {
	loop := float64(s.AmountOfMeasures) * float64(s.Measure.MeasureSizeMillis())
	if loop == 0 {
		return 0
	}
	return float64(s.TimeCursor) / loop
}
