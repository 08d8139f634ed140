package looper

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"go-looper/measure"
	"go-looper/midi"
)

// State of the looper
type State int

const (
	Looping State = iota
	Recording
	Pause
)

func (s State) String() string {
	switch s {
	case Looping:
		return "looping"
	case Recording:
		return "recording"
	case Pause:
		return "pause"
	}
	return "unknown"
}

// Controls is the reserved control protocol on the MIDI input. A note-on
// of RecordKey on Channel toggles recording; a control change of
// TempoController on any channel sets the tempo to value+TempoOffset.
// Neither is recorded nor passed through.
type Controls struct {
	Enabled         bool
	Channel         uint8
	RecordKey       uint8
	TempoController uint8
	TempoOffset     uint32
}

// DefaultControls matches a pad on channel 10 and the first knob
func DefaultControls() Controls {
	return Controls{
		Enabled:         true,
		Channel:         9,
		RecordKey:       51,
		TempoController: 21,
		TempoOffset:     90,
	}
}

// Metronome describes the click sample that always sits in slot 0
type Metronome struct {
	Channel        uint8
	Key            uint8
	Velocity       uint8
	AccentVelocity uint8
}

func DefaultMetronome() Metronome {
	return Metronome{
		Channel:        9,
		Key:            62,
		Velocity:       60,
		AccentVelocity: 100,
	}
}

// Option configures a Looper
type Option func(*Looper)

// WithMeasure sets the initial measure. Invalid measures are ignored.
func WithMeasure(m measure.Measure) Option {
	return func(l *Looper) {
		if m.Validate() == nil {
			l.measure = m
		}
	}
}

func WithControls(c Controls) Option {
	return func(l *Looper) { l.controls = c }
}

func WithMetronome(m Metronome) Option {
	return func(l *Looper) { l.metronome = m }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Looper) {
		if log != nil {
			l.log = log
		}
	}
}

// Looper records takes and replays them as phase-locked layers. It is not
// safe for concurrent use: one goroutine drives Update and feeds events.
type Looper struct {
	state     State
	nextState State
	pending   bool // nextState applies at the next measure bar

	composition  []*Sample // slot 0 is the metronome
	recordBuffer []midi.AbsEvent

	sink midi.Sink

	timeCursor       uint32
	amountOfMeasures uint32
	revision         uint64 // bumped on every change worth saving

	measure   measure.Measure
	controls  Controls
	metronome Metronome
	log       *zap.Logger
}

// New creates a looper that plays into sink
func New(sink midi.Sink, opts ...Option) *Looper {
	l := &Looper{
		sink:             sink,
		measure:          measure.Default(),
		controls:         DefaultControls(),
		metronome:        DefaultMetronome(),
		amountOfMeasures: 1,
		log:              zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.Reset()
	return l
}

// Reset drops every take and starts over with just the metronome
func (l *Looper) Reset() {
	l.state = Looping
	l.pending = false
	l.composition = []*Sample{l.makeMetronome()}
	l.recordBuffer = l.recordBuffer[:0]
	l.amountOfMeasures = 1
	l.timeCursor = 0
	l.revision++

	l.sink.CloseOpenedNotes()
	l.log.Debug("reset", zap.Stringer("measure", l.measure))
}

// ToggleRecording punches in immediately, or queues a punch-out for the
// next measure bar.
func (l *Looper) ToggleRecording() {
	switch l.state {
	case Recording:
		l.nextState = Looping
		l.pending = true
	case Looping:
		l.state = Recording
		l.recordBuffer = l.recordBuffer[:0]
	}
}

func (l *Looper) TogglePause() {
	switch l.state {
	case Looping:
		l.state = Pause
		l.sink.CloseOpenedNotes()
	case Pause:
		l.state = Looping
	}
}

// UndoLastRecording throws away the take in progress, or else the most
// recent sample. The metronome is never removed.
func (l *Looper) UndoLastRecording() {
	if l.state == Recording {
		l.recordBuffer = l.recordBuffer[:0]
		return
	}
	if len(l.composition) <= 1 {
		return
	}

	l.composition[len(l.composition)-1] = nil
	l.composition = l.composition[:len(l.composition)-1]
	l.recomputeLength()
	l.revision++
	l.sink.CloseOpenedNotes()
	l.log.Debug("undo", zap.Int("samples", len(l.composition)), zap.Uint32("measures", l.amountOfMeasures))
}

// OnMeasureBar applies a pending transition. Committing a punch-out turns
// the record buffer into a new sample whose first measure starts at the
// next bar.
func (l *Looper) OnMeasureBar() {
	if !l.pending {
		return
	}
	l.pending = false
	l.state = l.nextState

	if l.state != Looping {
		return
	}

	currentMeasure := l.measure.TimestampToMeasure(l.timeCursor)
	l.normalizeRecordBuffer()

	sampleMeasures := l.measure.AmountOfMeasuresInBuffer(l.recordBuffer)
	l.amountOfMeasures = measure.LCM(l.amountOfMeasures, sampleMeasures)

	shift := (l.amountOfMeasures - (currentMeasure+1)%l.amountOfMeasures) % l.amountOfMeasures
	sample := NewSample(l.recordBuffer, l.measure, shift)
	l.composition = append(l.composition, sample)
	l.recordBuffer = l.recordBuffer[:0]
	l.revision++

	l.log.Debug("punch out",
		zap.Int("events", len(sample.Buffer())),
		zap.Uint32("sampleMeasures", sampleMeasures),
		zap.Uint32("shift", shift),
		zap.Uint32("loopMeasures", l.amountOfMeasures))
}

// Update advances the loop by deltaTime milliseconds and plays whatever
// is due. Sink errors are collected and returned; playback carries on.
func (l *Looper) Update(deltaTime uint32) error {
	if l.state == Pause {
		return nil
	}

	current := l.timeCursor
	next := uint64(current) + uint64(deltaTime)
	loopMillis := uint64(l.amountOfMeasures) * uint64(l.measure.MeasureSizeMillis())
	if next >= loopMillis*2 {
		// whole loops elapsed; keep the phase and replay less than two loops
		next = loopMillis + next%loopMillis
	}

	quantSize := uint64(l.measure.QuantSizeMillis())
	measureSize := uint64(l.measure.MeasureSizeMillis())
	currentBar, nextBar := uint64(current)/measureSize, next/measureSize
	currentQuant, nextQuant := measure.Quant(uint64(current)/quantSize), measure.Quant(next/quantSize)

	if currentBar < nextBar {
		l.OnMeasureBar()
	}

	var err error
	measure.Span(currentQuant, nextQuant, func(q measure.Quant) {
		for _, sample := range l.composition {
			err = multierr.Append(err, sample.ReplayQuant(q, l.sink))
		}
	})

	loopMillis = uint64(l.amountOfMeasures) * measureSize
	l.timeCursor = uint32(next % loopMillis)

	return err
}

// OnMidiEvent handles live input: control messages are acted on, everything
// else is recorded (while recording) and passed through to the sink.
func (l *Looper) OnMidiEvent(event midi.AbsEvent) error {
	if l.handleControl(event.Message) {
		return nil
	}

	if l.state == Recording {
		l.recordBuffer = append(l.recordBuffer, event)
	}

	return l.sink.Feed(event.Message)
}

func (l *Looper) handleControl(msg midi.Message) bool {
	c := l.controls
	if !c.Enabled {
		return false
	}

	switch {
	case msg.IsNoteOn() && msg.Channel == c.Channel && msg.Key == c.RecordKey:
		l.ToggleRecording()
		return true
	case msg.IsNoteOff() && msg.Channel == c.Channel && msg.Key == c.RecordKey:
		return true
	case msg.IsCC() && msg.Number() == c.TempoController:
		bpm := uint32(msg.Value()) + c.TempoOffset
		if err := l.UpdateTempoBPM(bpm); err != nil {
			l.log.Warn("tempo control", zap.Uint32("bpm", bpm), zap.Error(err))
		}
		return true
	}
	return false
}

// UpdateTempoBPM changes the tempo and rescales the cursor so the loop
// keeps its musical position. Samples are untouched; quants do not depend
// on tempo.
func (l *Looper) UpdateTempoBPM(tempoBPM uint32) error {
	newMeasure := l.measure.WithTempo(tempoBPM)
	if err := newMeasure.Validate(); err != nil {
		return err
	}

	loopMillis := uint64(l.amountOfMeasures) * uint64(l.measure.MeasureSizeMillis())
	cursor := uint32(uint64(l.timeCursor) % loopMillis)
	l.timeCursor = l.measure.ScaleTimeCursor(newMeasure, l.amountOfMeasures, cursor)
	l.measure = newMeasure
	l.revision++
	return nil
}

// recomputeLength sets the loop length to the LCM of every sample
func (l *Looper) recomputeLength() {
	l.amountOfMeasures = 1
	for _, sample := range l.composition {
		l.amountOfMeasures = measure.LCM(l.amountOfMeasures, sample.AmountOfMeasures())
	}

	loopMillis := uint64(l.amountOfMeasures) * uint64(l.measure.MeasureSizeMillis())
	l.timeCursor = uint32(uint64(l.timeCursor) % loopMillis)
}

func (l *Looper) makeMetronome() *Sample {
	beatSize := l.measure.BeatSizeMillis()
	met := l.metronome

	buffer := make([]midi.AbsEvent, 0, 2*l.measure.MeasureSizeBPM)
	for i := uint32(0); i < l.measure.MeasureSizeBPM; i++ {
		velocity := met.Velocity
		if i == 0 {
			velocity = met.AccentVelocity
		}
		buffer = append(buffer,
			midi.AbsEvent{Message: midi.NewNoteOn(met.Channel, met.Key, velocity), Timestamp: i * beatSize},
			midi.AbsEvent{Message: midi.NewNoteOff(met.Channel, met.Key, 0), Timestamp: i*beatSize + 1},
		)
	}

	return NewSample(buffer, l.measure, 0)
}

func (l *Looper) normalizeRecordBuffer() {
	if len(l.recordBuffer) == 0 {
		return
	}
	t0 := l.recordBuffer[0].Timestamp
	for _, event := range l.recordBuffer[1:] {
		t0 = min(t0, event.Timestamp)
	}
	for i := range l.recordBuffer {
		l.recordBuffer[i].Timestamp -= t0
	}
}

// Accessors for renderers

func (l *Looper) State() State {
	return l.state
}

// NextState returns the pending transition, if any
func (l *Looper) NextState() (State, bool) {
	return l.nextState, l.pending
}

func (l *Looper) TimeCursor() uint32 {
	return l.timeCursor
}

// AmountOfMeasures is the loop length in measures
func (l *Looper) AmountOfMeasures() uint32 {
	return l.amountOfMeasures
}

func (l *Looper) Measure() measure.Measure {
	return l.measure
}

// Samples returns the composition; slot 0 is the metronome
func (l *Looper) Samples() []*Sample {
	out := make([]*Sample, len(l.composition))
	copy(out, l.composition)
	return out
}

// Revision changes whenever the composition or tempo does
func (l *Looper) Revision() uint64 {
	return l.revision
}

// RecordedEvents is the size of the take in progress
func (l *Looper) RecordedEvents() int {
	return len(l.recordBuffer)
}
