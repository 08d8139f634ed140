package looper

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"go-looper/measure"
)

var (
	// ErrPunchOutPending is returned by save/load while a take waits for the bar line
	ErrPunchOutPending = errors.New("punch-out pending")
	// ErrInvalidComposition is returned when persisted data does not make sense
	ErrInvalidComposition = errors.New("invalid composition")
)

// SampleData is the persisted form of a Sample
type SampleData struct {
	AmountOfMeasures uint32               `json:"amount_of_measures"`
	Buffer           []measure.QuantEvent `json:"buffer"`
	MeasureShift     uint32               `json:"measure_shift"`
	QuantsPerMeasure uint32               `json:"quants_per_measure"`
}

// CompositionData is the persisted form of the whole loop
type CompositionData struct {
	Measure measure.Measure `json:"measure"`
	Samples []SampleData    `json:"samples"`
}

// Composition returns the persisted form of the current loop
func (l *Looper) Composition() CompositionData {
	c := CompositionData{
		Measure: l.measure,
		Samples: make([]SampleData, 0, len(l.composition)),
	}
	for _, sample := range l.composition {
		c.Samples = append(c.Samples, sample.Data())
	}
	return c
}

// Encode writes the composition as indented JSON
func (c CompositionData) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode composition: %w", err)
	}
	return nil
}

// DecodeComposition reads and validates a composition
func DecodeComposition(r io.Reader) (CompositionData, error) {
	var c CompositionData
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return CompositionData{}, fmt.Errorf("decode composition: %w", err)
	}
	if _, err := c.samples(); err != nil {
		return CompositionData{}, err
	}
	return c, nil
}

// samples rebuilds live samples from the data
func (c CompositionData) samples() ([]*Sample, error) {
	if err := c.Measure.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidComposition, err)
	}

	result := make([]*Sample, 0, len(c.Samples))
	for i, d := range c.Samples {
		s, err := sampleFromData(d, c.Measure)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		result = append(result, s)
	}
	return result, nil
}

// SaveTo writes the current composition
func (l *Looper) SaveTo(w io.Writer) error {
	if l.pending {
		return ErrPunchOutPending
	}
	return l.Composition().Encode(w)
}

// LoadFrom replaces the composition with a persisted one. On error the
// looper is left as it was.
func (l *Looper) LoadFrom(r io.Reader) error {
	if l.pending {
		return ErrPunchOutPending
	}

	c, err := DecodeComposition(r)
	if err != nil {
		return err
	}
	return l.LoadComposition(c)
}

// LoadComposition replaces the composition with c and rewinds to the
// start of the loop.
func (l *Looper) LoadComposition(c CompositionData) error {
	if l.pending {
		return ErrPunchOutPending
	}

	samples, err := c.samples()
	if err != nil {
		return err
	}

	l.sink.CloseOpenedNotes()

	l.measure = c.Measure
	if len(samples) == 0 {
		samples = append(samples, l.makeMetronome())
	}
	l.composition = samples
	l.state = Looping
	l.recordBuffer = l.recordBuffer[:0]
	l.recomputeLength()
	l.timeCursor = 0
	l.revision++

	l.log.Debug("loaded composition",
		zap.Stringer("measure", l.measure),
		zap.Int("samples", len(l.composition)),
		zap.Uint32("measures", l.amountOfMeasures))
	return nil
}

// SaveFile writes the composition to path
func (l *Looper) SaveFile(path string) error {
	if l.pending {
		return ErrPunchOutPending
	}

	return WriteCompositionFile(path, l.Composition())
}

// WriteCompositionFile writes c to path, creating its directory
func WriteCompositionFile(path string, c CompositionData) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode composition: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFile reads a composition from path
func (l *Looper) LoadFile(path string) error {
	if l.pending {
		return ErrPunchOutPending
	}

	c, err := ReadCompositionFile(path)
	if err != nil {
		return err
	}
	return l.LoadComposition(c)
}

// ReadCompositionFile decodes and validates the composition at path
func ReadCompositionFile(path string) (CompositionData, error) {
	f, err := os.Open(path)
	if err != nil {
		return CompositionData{}, err
	}
	defer f.Close()

	return DecodeComposition(f)
}

// DisplayPath makes a path absolute for messages, falling back to the
// path as given.
func DisplayPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
