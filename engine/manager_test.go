package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-looper/history"
	"go-looper/looper"
	"go-looper/midi"
)

// wire records what reaches the output port
type wire struct {
	mu   sync.Mutex
	msgs []gomidi.Message
}

func (w *wire) send(msg gomidi.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msg)
	return nil
}

func (w *wire) has(want gomidi.Message) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, msg := range w.msgs {
		if bytes.Equal(msg, want) {
			return true
		}
	}
	return false
}

func (w *wire) clear() {
	w.mu.Lock()
	w.msgs = nil
	w.mu.Unlock()
}

// source is a scripted EventSource
type source struct {
	events []midi.AbsEvent
}

func (s *source) Drain(buf []midi.AbsEvent) []midi.AbsEvent {
	buf = append(buf, s.events...)
	s.events = nil
	return buf
}

func newManager(t *testing.T, opts Options) (*Manager, *wire) {
	t.Helper()
	w := &wire{}
	if opts.StateFile == "" {
		opts.StateFile = filepath.Join(t.TempDir(), "state.json")
	}
	return New(midi.NewNoteTracker(w.send, nil), opts), w
}

func drainStatus(m *Manager) []Status {
	var out []Status
	for {
		select {
		case s := <-m.status:
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestTickPlaysMetronome(t *testing.T) {
	m, w := newManager(t, Options{})

	m.tick(500)
	assert.True(t, w.has(gomidi.NoteOn(9, 62, 60)))
	assert.False(t, w.has(gomidi.NoteOn(9, 62, 100)))

	m.tick(1500)
	assert.True(t, w.has(gomidi.NoteOn(9, 62, 100)))
}

func TestInputIsRecordedAndCommitted(t *testing.T) {
	m, w := newManager(t, Options{})
	src := &source{}
	m.SetInput(src)

	m.Send(Command{Type: CmdToggleRecording})
	m.tick(0)
	require.Equal(t, looper.Recording, m.looper.State())

	src.events = []midi.AbsEvent{
		{Message: midi.NewNoteOn(0, 60, 100), Timestamp: 10},
		{Message: midi.NewNoteOff(0, 60, 0), Timestamp: 900},
	}
	m.tick(0)
	assert.True(t, w.has(gomidi.NoteOn(0, 60, 100)), "live pass-through")

	m.Send(Command{Type: CmdToggleRecording})
	m.tick(0)
	assert.Equal(t, looper.Recording, m.looper.State())

	m.tick(2000)
	assert.Equal(t, looper.Looping, m.looper.State())
	require.Len(t, m.looper.Samples(), 2)
	assert.Len(t, m.looper.Samples()[1].Buffer(), 2)
}

func TestRecordControlFromInput(t *testing.T) {
	m, w := newManager(t, Options{})
	src := &source{events: []midi.AbsEvent{{Message: midi.NewNoteOn(9, 51, 127)}}}
	m.SetInput(src)

	m.tick(0)
	assert.Equal(t, looper.Recording, m.looper.State())
	assert.False(t, w.has(gomidi.NoteOn(9, 51, 127)))
}

func TestCommands(t *testing.T) {
	m, _ := newManager(t, Options{})

	m.Send(Command{Type: CmdTogglePause})
	m.tick(0)
	assert.Equal(t, looper.Pause, m.looper.State())

	m.Send(Command{Type: CmdTogglePause})
	m.Send(Command{Type: CmdSetTempo, Tempo: 100})
	m.tick(0)
	assert.Equal(t, looper.Looping, m.looper.State())
	assert.Equal(t, uint32(100), m.looper.Measure().TempoBPM)

	m.Send(Command{Type: CmdSetTempo, Tempo: 0})
	m.tick(0)
	assert.Equal(t, uint32(100), m.looper.Measure().TempoBPM)
	st := drainStatus(m)
	require.NotEmpty(t, st)
	assert.Error(t, st[len(st)-1].Err)

	m.Send(Command{Type: CmdToggleRecording})
	m.Send(Command{Type: CmdUndo})
	m.Send(Command{Type: CmdReset})
	m.tick(100)
	assert.Equal(t, looper.Looping, m.looper.State())
	assert.Equal(t, uint32(100), m.looper.TimeCursor())
}

func TestSaveWaitsForPunchOut(t *testing.T) {
	m, _ := newManager(t, Options{})

	m.Send(Command{Type: CmdToggleRecording})
	m.tick(0)
	m.Send(Command{Type: CmdToggleRecording})
	m.Send(Command{Type: CmdSave})
	m.tick(500)
	assert.NoFileExists(t, m.opts.StateFile)
	assert.True(t, m.saveQueued)

	m.tick(1500)
	assert.FileExists(t, m.opts.StateFile)
	assert.False(t, m.saveQueued)

	st := drainStatus(m)
	require.Len(t, st, 1)
	assert.NoError(t, st[0].Err)
	assert.Equal(t, "saved "+looper.DisplayPath(m.opts.StateFile), st[0].Text)

	c, err := looper.ReadCompositionFile(m.opts.StateFile)
	require.NoError(t, err)
	assert.Len(t, c.Samples, 2)
}

func TestSaveLoadThroughStateFile(t *testing.T) {
	m, _ := newManager(t, Options{})
	m.Send(Command{Type: CmdSetTempo, Tempo: 133})
	m.Send(Command{Type: CmdSave})
	m.tick(0)

	other, _ := newManager(t, Options{StateFile: m.opts.StateFile})
	other.Send(Command{Type: CmdLoad})
	other.tick(0)
	assert.Equal(t, uint32(133), other.looper.Measure().TempoBPM)
}

func TestLoadFailureIsReportedWithAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	m, _ := newManager(t, Options{StateFile: path})
	m.tick(700)
	m.Send(Command{Type: CmdLoad})
	m.tick(0)

	st := drainStatus(m)
	require.Len(t, st, 1)
	assert.Error(t, st[0].Err)
	assert.Contains(t, st[0].Text, looper.DisplayPath(path))
	assert.Equal(t, uint32(700), m.looper.TimeCursor(), "playback carries on")
}

func TestLoadInitial(t *testing.T) {
	m, _ := newManager(t, Options{})
	assert.NoError(t, m.LoadInitial(), "missing state file")
	assert.Empty(t, drainStatus(m))

	require.NoError(t, os.WriteFile(m.opts.StateFile, []byte(`{"measure":{"tempo_bpm":0}}`), 0644))
	assert.ErrorIs(t, m.LoadInitial(), looper.ErrInvalidComposition)
	st := drainStatus(m)
	require.Len(t, st, 1)
	assert.Error(t, st[0].Err)

	saved, _ := newManager(t, Options{StateFile: m.opts.StateFile})
	saved.Send(Command{Type: CmdSetTempo, Tempo: 111})
	saved.Send(Command{Type: CmdSave})
	saved.tick(0)

	require.NoError(t, m.LoadInitial())
	assert.Equal(t, uint32(111), m.looper.Measure().TempoBPM)
}

func TestSaveArchivesAndPrunesHistory(t *testing.T) {
	dir := t.TempDir()
	m, _ := newManager(t, Options{HistoryDir: dir, HistoryLimit: 2})

	for i := 0; i < 3; i++ {
		m.Send(Command{Type: CmdSave})
		m.tick(0)
	}

	entries, err := history.List(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	m.Send(Command{Type: CmdSetTempo, Tempo: 90})
	m.Send(Command{Type: CmdLoadHistory})
	m.tick(0)
	assert.Equal(t, uint32(120), m.looper.Measure().TempoBPM)
}

func TestExport(t *testing.T) {
	m, _ := newManager(t, Options{})
	path := filepath.Join(t.TempDir(), "loop.mid")

	m.Send(Command{Type: CmdExport, Path: path})
	m.tick(0)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "MThd"))

	st := drainStatus(m)
	require.Len(t, st, 1)
	assert.Equal(t, "exported "+looper.DisplayPath(path), st[0].Text)
}

func TestAutosave(t *testing.T) {
	m, _ := newManager(t, Options{Autosave: true, AutosaveDelay: 5 * time.Millisecond})

	m.tick(0)
	assert.NoFileExists(t, m.opts.StateFile, "nothing changed yet")

	m.Send(Command{Type: CmdSetTempo, Tempo: 150})
	m.tick(0)

	require.Eventually(t, func() bool {
		m.tick(0)
		_, err := os.Stat(m.opts.StateFile)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	c, err := looper.ReadCompositionFile(m.opts.StateFile)
	require.NoError(t, err)
	assert.Equal(t, uint32(150), c.Measure.TempoBPM)
}

func TestPublishIsThrottledAndKeepsLatest(t *testing.T) {
	m, _ := newManager(t, Options{})
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	m.tick(100)
	m.tick(100) // same instant, not published
	snap := <-m.Updates()
	assert.Equal(t, uint32(100), snap.TimeCursor)

	clock = clock.Add(50 * time.Millisecond)
	m.tick(100)
	clock = clock.Add(50 * time.Millisecond)
	m.tick(100)

	snap = <-m.Updates()
	assert.Equal(t, uint32(400), snap.TimeCursor, "stale snapshot replaced")
	select {
	case <-m.Updates():
		t.Fatal("only one snapshot is buffered")
	default:
	}
}

func TestHandleDeviceEvent(t *testing.T) {
	m, old := newManager(t, Options{})
	replacement := &wire{}

	m.HandleDeviceEvent(midi.DeviceEvent{Type: midi.OutputConnected, Name: "synth", Sender: replacement.send})
	m.tick(500)
	assert.True(t, replacement.has(gomidi.NoteOn(9, 62, 60)))
	assert.False(t, old.has(gomidi.NoteOn(9, 62, 60)))

	m.HandleDeviceEvent(midi.DeviceEvent{Type: midi.OutputDisconnected, Name: "synth"})
	replacement.clear()
	m.tick(500)
	assert.False(t, replacement.has(gomidi.NoteOn(9, 62, 60)))

	src := &source{events: []midi.AbsEvent{{Message: midi.NewNoteOn(9, 51, 127)}}}
	m.SetInput(src)
	m.HandleDeviceEvent(midi.DeviceEvent{Type: midi.InputDisconnected, Name: "keys"})
	m.tick(0)
	assert.Equal(t, looper.Looping, m.looper.State(), "disconnected input is not read")

	st := drainStatus(m)
	require.Len(t, st, 3)
	assert.Equal(t, "output connected: synth", st[0].Text)
}

func TestTakeSurvivesInputReconnect(t *testing.T) {
	m, _ := newManager(t, Options{})
	m.Send(Command{Type: CmdToggleRecording})
	m.tick(0)

	first := &source{events: []midi.AbsEvent{{Message: midi.NewNoteOn(0, 60, 100), Timestamp: 5000}}}
	m.SetInput(first)
	m.tick(100)

	// the reopened port counts from zero again
	second := &source{events: []midi.AbsEvent{{Message: midi.NewNoteOff(0, 60, 0), Timestamp: 100}}}
	m.SetInput(second)
	m.tick(900)

	m.Send(Command{Type: CmdToggleRecording})
	m.tick(0)
	m.tick(2000)

	require.Equal(t, looper.Looping, m.looper.State())
	require.Len(t, m.looper.Samples(), 2)
	assert.Equal(t, uint32(1), m.looper.Samples()[1].AmountOfMeasures())
	assert.Equal(t, uint32(1), m.looper.AmountOfMeasures())
}

func TestDeviceEventAfterRunReturns(t *testing.T) {
	m, _ := newManager(t, Options{LoopSleep: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()
	<-done

	assert.NotPanics(t, func() {
		m.HandleDeviceEvent(midi.DeviceEvent{Type: midi.InputDisconnected, Name: "keys"})
	})
	_, open := <-m.Status()
	assert.False(t, open)
}

func TestRunStopsOnCancel(t *testing.T) {
	m, w := newManager(t, Options{LoopSleep: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return w.has(gomidi.NoteOn(9, 62, 100)) || w.has(gomidi.NoteOn(9, 62, 60)) },
		5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	for range m.Updates() {
	}
	_, open := <-m.Status()
	assert.False(t, open)
}

func TestSendNeverBlocks(t *testing.T) {
	m, _ := newManager(t, Options{})
	for i := 0; i < cap(m.commands); i++ {
		require.True(t, m.Send(Command{Type: CmdUndo}))
	}
	assert.False(t, m.Send(Command{Type: CmdUndo}))
}
