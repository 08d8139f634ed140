package looper

import (
	"fmt"

	"go.uber.org/multierr"

	"go-looper/measure"
	"go-looper/midi"
)

// Sample is one recorded take, snapped to the grid. It is never modified
// after construction; the slices it hands out are shared and must be
// treated as read-only.
type Sample struct {
	buffer           []measure.QuantEvent
	amountOfMeasures uint32
	measureShift     uint32
	quantsPerMeasure measure.Quant
	notes            []Note
}

// NewSample quantizes the events against the measure. measureShift is the
// number of measures the sample's phase zero is offset by in the loop.
func NewSample(events []midi.AbsEvent, m measure.Measure, measureShift uint32) *Sample {
	buffer := m.QuantizeBuffer(events)
	return &Sample{
		buffer:           buffer,
		amountOfMeasures: m.AmountOfMeasuresInBuffer(events),
		measureShift:     measureShift,
		quantsPerMeasure: m.QuantsPerMeasure(),
		notes:            EventsToNotes(buffer),
	}
}

// QuantLength is the sample length in quants
func (s *Sample) QuantLength() measure.Quant {
	return measure.Quant(s.amountOfMeasures) * s.quantsPerMeasure
}

// LocalQuant maps a loop position to a position inside the sample
func (s *Sample) LocalQuant(current measure.Quant) measure.Quant {
	length := uint64(s.QuantLength())
	if length == 0 {
		return 0
	}
	shift := uint64(s.measureShift%s.amountOfMeasures) * uint64(s.quantsPerMeasure)
	return measure.Quant((uint64(current)%length + shift) % length)
}

// ReplayQuant feeds every event stored at the given loop position to the
// sink, in recording order. A failing Feed does not stop the rest.
func (s *Sample) ReplayQuant(current measure.Quant, sink midi.Sink) error {
	local := s.LocalQuant(current)

	var err error
	for _, event := range s.buffer {
		if event.Quant == local {
			err = multierr.Append(err, sink.Feed(event.Message))
		}
	}
	return err
}

func (s *Sample) Buffer() []measure.QuantEvent {
	return s.buffer
}

func (s *Sample) AmountOfMeasures() uint32 {
	return s.amountOfMeasures
}

func (s *Sample) MeasureShift() uint32 {
	return s.measureShift
}

func (s *Sample) QuantsPerMeasure() measure.Quant {
	return s.quantsPerMeasure
}

// Notes returns the note spans for display
func (s *Sample) Notes() []Note {
	return s.notes
}

// Data returns the persisted form
func (s *Sample) Data() SampleData {
	buffer := make([]measure.QuantEvent, len(s.buffer))
	copy(buffer, s.buffer)
	return SampleData{
		AmountOfMeasures: s.amountOfMeasures,
		Buffer:           buffer,
		MeasureShift:     s.measureShift,
		QuantsPerMeasure: uint32(s.quantsPerMeasure),
	}
}

// sampleFromData rebuilds a sample and checks it fits the measure
func sampleFromData(d SampleData, m measure.Measure) (*Sample, error) {
	if d.AmountOfMeasures == 0 {
		return nil, fmt.Errorf("%w: amount_of_measures must be > 0", ErrInvalidComposition)
	}
	qpm := m.QuantsPerMeasure()
	if measure.Quant(d.QuantsPerMeasure) != qpm {
		return nil, fmt.Errorf("%w: quants_per_measure %d does not match measure (%d)",
			ErrInvalidComposition, d.QuantsPerMeasure, qpm)
	}

	s := &Sample{
		amountOfMeasures: d.AmountOfMeasures,
		measureShift:     d.MeasureShift,
		quantsPerMeasure: qpm,
	}
	length := s.QuantLength()
	for i, event := range d.Buffer {
		if event.Quant >= length {
			return nil, fmt.Errorf("%w: event %d at quant %d outside sample of %d quants",
				ErrInvalidComposition, i, event.Quant, length)
		}
	}
	s.buffer = make([]measure.QuantEvent, len(d.Buffer))
	copy(s.buffer, d.Buffer)
	s.notes = EventsToNotes(s.buffer)
	return s, nil
}
