package looper

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"gitlab.com/gomidi/midi/v2/smf"

	"go-looper/measure"
)

// TicksPerQuarter is the SMF resolution used for export
const TicksPerQuarter = 960

type exportEvent struct {
	tick uint64
	msg  []byte
}

// ExportSMF writes one full cycle of the composition as a Standard MIDI
// File: a tempo track followed by a single performance track. Events land
// in the same order ReplayQuant would play them.
func ExportSMF(w io.Writer, c CompositionData) error {
	samples, err := c.samples()
	if err != nil {
		return err
	}

	m := c.Measure
	qpm := uint64(m.QuantsPerMeasure())
	measureTicks := uint64(TicksPerQuarter) * uint64(m.MeasureSizeBPM)

	cycle := uint32(1)
	for _, s := range samples {
		cycle = measure.LCM(cycle, s.AmountOfMeasures())
	}
	loopQuants := uint64(cycle) * qpm
	loopTicks := uint64(cycle) * measureTicks

	var events []exportEvent
	for _, s := range samples {
		length := uint64(s.QuantLength())
		shift := uint64(s.measureShift%s.amountOfMeasures) * qpm
		for _, ev := range s.buffer {
			// loop positions q where (q + shift) % length == ev.Quant
			first := (uint64(ev.Quant) + length - shift%length) % length
			for q := first; q < loopQuants; q += length {
				events = append(events, exportEvent{
					tick: q * measureTicks / qpm,
					msg:  ev.Message.Gomidi(),
				})
			}
		}
	}
	// stable: ties keep sample order, then buffer order
	slices.SortStableFunc(events, func(a, b exportEvent) int {
		return cmp.Compare(a.tick, b.tick)
	})

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(uint8(m.MeasureSizeBPM), 4))
	tempo.Add(0, smf.MetaTempo(float64(m.TempoBPM)))
	tempo.Close(uint32(loopTicks))
	if err := file.Add(tempo); err != nil {
		return fmt.Errorf("add tempo track: %w", err)
	}

	var track smf.Track
	var last uint64
	for _, ev := range events {
		track.Add(uint32(ev.tick-last), ev.msg)
		last = ev.tick
	}
	track.Close(uint32(loopTicks - last))
	if err := file.Add(track); err != nil {
		return fmt.Errorf("add performance track: %w", err)
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}
