package midi

import (
	"fmt"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Input listens on a MIDI input port and queues parsed events for the
// looper. The driver callback never blocks: events are dropped when the
// queue is full.
type Input struct {
	id       string
	inPort   drivers.In
	stopFunc func()

	events  chan AbsEvent
	dropped atomic.Uint64
}

const inputQueueSize = 1024

// OpenInput starts listening on the given port
func OpenInput(id string, inPort drivers.In) (*Input, error) {
	in := &Input{
		id:     id,
		inPort: inPort,
		events: make(chan AbsEvent, inputQueueSize),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, in.receive)
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", id, err)
		}
		in.stopFunc = stop
	}

	return in, nil
}

func (in *Input) receive(msg gomidi.Message, timestampms int32) {
	m, ok := FromGomidi(msg)
	if !ok {
		return
	}
	if timestampms < 0 {
		timestampms = 0
	}
	in.push(AbsEvent{Message: m, Timestamp: uint32(timestampms)})
}

func (in *Input) push(ev AbsEvent) {
	select {
	case in.events <- ev:
	default:
		in.dropped.Add(1)
	}
}

func (in *Input) ID() string {
	return in.id
}

// Events exposes the queue for consumers that want to select on it
func (in *Input) Events() <-chan AbsEvent {
	return in.events
}

// Drain appends every queued event to buf without blocking
func (in *Input) Drain(buf []AbsEvent) []AbsEvent {
	for {
		select {
		case ev := <-in.events:
			buf = append(buf, ev)
		default:
			return buf
		}
	}
}

// Dropped returns how many events were lost to a full queue
func (in *Input) Dropped() uint64 {
	return in.dropped.Load()
}

// Close stops the driver callback. The queue is left open so a concurrent
// Drain never reads from a closed channel.
func (in *Input) Close() error {
	if in.stopFunc != nil {
		in.stopFunc()
		in.stopFunc = nil
	}
	return nil
}
