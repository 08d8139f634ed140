package measure

import (
	"errors"
	"fmt"
	"math"

	"go-looper/midi"
)

// Defaults used for a fresh session
const (
	DefaultTempoBPM        uint32 = 120
	DefaultMeasureSizeBPM  uint32 = 4
	DefaultQuantationLevel uint32 = 2
)

// MaxQuantsPerMeasure bounds the quantization depth
const MaxQuantsPerMeasure = 1 << 16

// ErrInvalidMeasure is returned for a zero tempo or a zero measure size
var ErrInvalidMeasure = errors.New("invalid measure")

// Measure converts between milliseconds, quants and measure indices for a
// tempo, a time signature (beats per measure) and a quantization depth.
// Every derived size is integer-truncated.
type Measure struct {
	TempoBPM        uint32 `json:"tempo_bpm"`
	MeasureSizeBPM  uint32 `json:"measure_size_bpm"`
	QuantationLevel uint32 `json:"quantation_level"`
}

// Default returns the 120bpm 4/4 measure quantized to sixteenths
func Default() Measure {
	return Measure{
		TempoBPM:        DefaultTempoBPM,
		MeasureSizeBPM:  DefaultMeasureSizeBPM,
		QuantationLevel: DefaultQuantationLevel,
	}
}

// Validate rejects measures the converters cannot work with
func (m Measure) Validate() error {
	if m.TempoBPM == 0 {
		return fmt.Errorf("%w: tempo_bpm must be > 0", ErrInvalidMeasure)
	}
	if m.MeasureSizeBPM == 0 {
		return fmt.Errorf("%w: measure_size_bpm must be > 0", ErrInvalidMeasure)
	}
	if m.TempoBPM > 60000 {
		return fmt.Errorf("%w: tempo_bpm %d is above one beat per millisecond", ErrInvalidMeasure, m.TempoBPM)
	}
	measureSize := uint64(60000/m.TempoBPM) * uint64(m.MeasureSizeBPM)
	if measureSize > math.MaxUint32 {
		return fmt.Errorf("%w: a %d beat measure at %dbpm does not fit in uint32 milliseconds", ErrInvalidMeasure, m.MeasureSizeBPM, m.TempoBPM)
	}
	qpm := uint64(1)
	for i := uint32(0); i < m.QuantationLevel; i++ {
		qpm *= uint64(m.MeasureSizeBPM)
		if qpm > MaxQuantsPerMeasure {
			return fmt.Errorf("%w: %d^%d quants per measure is too fine", ErrInvalidMeasure, m.MeasureSizeBPM, m.QuantationLevel)
		}
	}
	return nil
}

// WithTempo returns a copy with a different tempo
func (m Measure) WithTempo(tempoBPM uint32) Measure {
	m.TempoBPM = tempoBPM
	return m
}

func (m Measure) BeatSizeMillis() uint32 {
	return 60000 / m.TempoBPM
}

func (m Measure) MeasureSizeMillis() uint32 {
	return m.BeatSizeMillis() * m.MeasureSizeBPM
}

// QuantsPerMeasure is measure_size_bpm ^ quantation_level
func (m Measure) QuantsPerMeasure() Quant {
	result := Quant(1)
	for i := uint32(0); i < m.QuantationLevel; i++ {
		result *= Quant(m.MeasureSizeBPM)
	}
	return result
}

// QuantSizeMillis never returns 0, even when truncation would
func (m Measure) QuantSizeMillis() uint32 {
	size := m.MeasureSizeMillis() / uint32(m.QuantsPerMeasure())
	if size < 1 {
		return 1
	}
	return size
}

// SnapTimestampToQuant rounds to the nearest quant, halves going up
func (m Measure) SnapTimestampToQuant(timestamp uint32) Quant {
	size := m.QuantSizeMillis()
	return Quant((timestamp + size/2) / size)
}

// TimestampToQuant returns the quant the timestamp falls in
func (m Measure) TimestampToQuant(timestamp uint32) Quant {
	return Quant(timestamp / m.QuantSizeMillis())
}

// QuantToTimestamp returns the start of the quant in milliseconds
func (m Measure) QuantToTimestamp(q Quant) uint32 {
	return uint32(q) * m.QuantSizeMillis()
}

// TimestampToMeasure returns the index of the measure the timestamp falls in
func (m Measure) TimestampToMeasure(timestamp uint32) uint32 {
	return timestamp / m.MeasureSizeMillis()
}

// AmountOfMeasuresInBuffer is the number of whole measures the events span,
// rounded up, and at least 1.
func (m Measure) AmountOfMeasuresInBuffer(buffer []midi.AbsEvent) uint32 {
	n := len(buffer)
	if n == 0 {
		return 1
	}

	first, last := buffer[0].Timestamp, buffer[0].Timestamp
	for _, event := range buffer[1:] {
		first = min(first, event.Timestamp)
		last = max(last, event.Timestamp)
	}
	if last == first {
		return 1
	}

	size := uint64(m.MeasureSizeMillis())
	amount := uint32((uint64(last-first) + size - 1) / size)
	if amount < 1 {
		return 1
	}
	return amount
}

// QuantEvent is a message snapped to the grid
type QuantEvent struct {
	Message midi.Message `json:"message"`
	Quant   Quant        `json:"quant"`
}

// QuantizeBuffer snaps every event to the grid and wraps it into the
// buffer's own length so all quants are buffer-local.
func (m Measure) QuantizeBuffer(buffer []midi.AbsEvent) []QuantEvent {
	length := Quant(m.AmountOfMeasuresInBuffer(buffer)) * m.QuantsPerMeasure()

	result := make([]QuantEvent, 0, len(buffer))
	for _, event := range buffer {
		result = append(result, QuantEvent{
			Message: event.Message,
			Quant:   m.SnapTimestampToQuant(event.Timestamp) % length,
		})
	}
	return result
}

// ScaleTimeCursor maps a cursor inside a loop of n measures at this tempo
// to the same musical position at the new measure's tempo.
func (m Measure) ScaleTimeCursor(newMeasure Measure, n, cursor uint32) uint32 {
	s0 := uint64(n) * uint64(m.MeasureSizeMillis())
	s1 := uint64(n) * uint64(newMeasure.MeasureSizeMillis())
	if s0 == 0 {
		return 0
	}
	return uint32(uint64(cursor) * s1 / s0)
}

func (m Measure) String() string {
	return fmt.Sprintf("%dbpm %d/4 q%d", m.TempoBPM, m.MeasureSizeBPM, m.QuantationLevel)
}
