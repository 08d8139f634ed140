package midi

import (
	"encoding/json"
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// Channel and key ranges
const (
	NumChannels = 16
	NumKeys     = 128
)

// Message is a channel voice message the looper knows how to record and replay.
// For CC messages Key holds the controller number and Velocity the value.
type Message struct {
	Type     uint8 // NoteOn, NoteOff, CC
	Channel  uint8 // 0-15
	Key      uint8
	Velocity uint8
}

// AbsEvent is a message stamped with an absolute time in milliseconds
type AbsEvent struct {
	Message   Message
	Timestamp uint32
}

// NewNoteOn builds a note-on message
func NewNoteOn(channel, key, velocity uint8) Message {
	return Message{Type: NoteOn, Channel: channel, Key: key, Velocity: velocity}
}

// NewNoteOff builds a note-off message
func NewNoteOff(channel, key, velocity uint8) Message {
	return Message{Type: NoteOff, Channel: channel, Key: key, Velocity: velocity}
}

// NewControlChange builds a control change message
func NewControlChange(channel, number, value uint8) Message {
	return Message{Type: CC, Channel: channel, Key: number, Velocity: value}
}

func (m Message) IsNoteOn() bool  { return m.Type == NoteOn }
func (m Message) IsNoteOff() bool { return m.Type == NoteOff }
func (m Message) IsCC() bool      { return m.Type == CC }

// Number returns the controller number of a CC message
func (m Message) Number() uint8 { return m.Key }

// Value returns the controller value of a CC message
func (m Message) Value() uint8 { return m.Velocity }

func (m Message) String() string {
	switch m.Type {
	case NoteOn:
		return fmt.Sprintf("NoteOn{ch=%d key=%d vel=%d}", m.Channel, m.Key, m.Velocity)
	case NoteOff:
		return fmt.Sprintf("NoteOff{ch=%d key=%d vel=%d}", m.Channel, m.Key, m.Velocity)
	case CC:
		return fmt.Sprintf("ControlChange{ch=%d num=%d val=%d}", m.Channel, m.Key, m.Velocity)
	}
	return fmt.Sprintf("Unknown{type=%#x}", m.Type)
}

// FromGomidi converts a wire message. Anything other than note on/off and
// control change is reported as not ok.
func FromGomidi(msg gomidi.Message) (Message, bool) {
	var channel, a, b uint8
	switch {
	case msg.GetNoteOn(&channel, &a, &b):
		return NewNoteOn(channel, a, b), true
	case msg.GetNoteOff(&channel, &a, &b):
		return NewNoteOff(channel, a, b), true
	case msg.GetControlChange(&channel, &a, &b):
		return NewControlChange(channel, a, b), true
	}
	return Message{}, false
}

// Gomidi converts to a wire message
func (m Message) Gomidi() gomidi.Message {
	switch m.Type {
	case NoteOn:
		return gomidi.NoteOn(m.Channel, m.Key, m.Velocity)
	case NoteOff:
		return gomidi.NoteOffVelocity(m.Channel, m.Key, m.Velocity)
	default:
		return gomidi.ControlChange(m.Channel, m.Key, m.Velocity)
	}
}

// Persisted form is externally tagged:
//
//	{"NoteOn":{"channel":0,"key":60,"velocity":100}}
//	{"ControlChange":{"channel":0,"number":21,"value":64}}
type noteFields struct {
	Channel  uint8 `json:"channel"`
	Key      uint8 `json:"key"`
	Velocity uint8 `json:"velocity"`
}

type ccFields struct {
	Channel uint8 `json:"channel"`
	Number  uint8 `json:"number"`
	Value   uint8 `json:"value"`
}

type taggedMessage struct {
	NoteOn        *noteFields `json:"NoteOn,omitempty"`
	NoteOff       *noteFields `json:"NoteOff,omitempty"`
	ControlChange *ccFields   `json:"ControlChange,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	var t taggedMessage
	switch m.Type {
	case NoteOn:
		t.NoteOn = &noteFields{m.Channel, m.Key, m.Velocity}
	case NoteOff:
		t.NoteOff = &noteFields{m.Channel, m.Key, m.Velocity}
	case CC:
		t.ControlChange = &ccFields{m.Channel, m.Key, m.Velocity}
	default:
		return nil, fmt.Errorf("marshal midi message: unknown type %#x", m.Type)
	}
	return json.Marshal(t)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var t taggedMessage
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}

	var set int
	if t.NoteOn != nil {
		*m = NewNoteOn(t.NoteOn.Channel, t.NoteOn.Key, t.NoteOn.Velocity)
		set++
	}
	if t.NoteOff != nil {
		*m = NewNoteOff(t.NoteOff.Channel, t.NoteOff.Key, t.NoteOff.Velocity)
		set++
	}
	if t.ControlChange != nil {
		*m = NewControlChange(t.ControlChange.Channel, t.ControlChange.Number, t.ControlChange.Value)
		set++
	}
	if set != 1 {
		return fmt.Errorf("unmarshal midi message: expected exactly one of NoteOn, NoteOff, ControlChange in %s", data)
	}
	if m.Channel >= NumChannels || m.Key >= NumKeys || m.Velocity >= 128 {
		return fmt.Errorf("unmarshal midi message: data out of range in %s", data)
	}
	return nil
}
