package midi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestFromGomidi(t *testing.T) {
	tests := []struct {
		name string
		wire gomidi.Message
		want Message
		ok   bool
	}{
		{"note on", gomidi.NoteOn(2, 60, 100), NewNoteOn(2, 60, 100), true},
		{"note off", gomidi.NoteOffVelocity(2, 60, 30), NewNoteOff(2, 60, 30), true},
		{"control change", gomidi.ControlChange(9, 21, 64), NewControlChange(9, 21, 64), true},
		{"pitch bend", gomidi.Pitchbend(0, 100), Message{}, false},
		{"program change", gomidi.ProgramChange(0, 5), Message{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromGomidi(tt.wire)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			if ok {
				assert.Equal(t, tt.wire, got.Gomidi())
			}
		})
	}
}

func TestMessageAccessors(t *testing.T) {
	cc := NewControlChange(0, 7, 99)
	assert.True(t, cc.IsCC())
	assert.False(t, cc.IsNoteOn())
	assert.Equal(t, uint8(7), cc.Number())
	assert.Equal(t, uint8(99), cc.Value())
	assert.Equal(t, "ControlChange{ch=0 num=7 val=99}", cc.String())
	assert.Equal(t, "NoteOn{ch=9 key=62 vel=60}", NewNoteOn(9, 62, 60).String())
}

func TestMessageJSON(t *testing.T) {
	data, err := json.Marshal(NewNoteOn(0, 60, 100))
	require.NoError(t, err)
	assert.JSONEq(t, `{"NoteOn":{"channel":0,"key":60,"velocity":100}}`, string(data))

	data, err = json.Marshal(NewControlChange(1, 21, 64))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ControlChange":{"channel":1,"number":21,"value":64}}`, string(data))

	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"NoteOff":{"channel":3,"key":10,"velocity":0}}`), &m))
	assert.Equal(t, NewNoteOff(3, 10, 0), m)

	_, err = json.Marshal(Message{Type: 0xE0})
	assert.Error(t, err)
}

func TestMessageJSONRejects(t *testing.T) {
	bad := []string{
		`{}`,
		`{"NoteOn":{"channel":0,"key":60,"velocity":1},"NoteOff":{"channel":0,"key":60,"velocity":0}}`,
		`{"NoteOn":{"channel":16,"key":60,"velocity":1}}`,
		`{"NoteOn":{"channel":0,"key":128,"velocity":1}}`,
		`{"ControlChange":{"channel":0,"number":7,"value":200}}`,
		`{"PitchBend":{"channel":0}}`,
		`[1,2]`,
	}
	for _, in := range bad {
		var m Message
		assert.Error(t, json.Unmarshal([]byte(in), &m), in)
	}
}
