package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bep/debounce"
	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"

	"go-looper/history"
	"go-looper/looper"
	"go-looper/midi"
)

// UI refresh rate for published snapshots
const uiFPS = 30

// EventSource is where live MIDI comes from; *midi.Input is one. The
// engine restamps drained events with its own clock, so port timestamps
// only need to be ordered within one Drain.
type EventSource interface {
	Drain(buf []midi.AbsEvent) []midi.AbsEvent
}

// Options configures a Manager
type Options struct {
	StateFile     string
	HistoryDir    string // empty disables archiving
	HistoryLimit  int
	LoopSleep     time.Duration
	Autosave      bool
	AutosaveDelay time.Duration
	LooperOptions []looper.Option
	Logger        *zap.Logger
}

// Manager runs the real-time loop. It owns the looper: every looper call
// happens on the goroutine running Run (or tick in tests). Other goroutines
// talk to it through Send, SetInput and SetOutput.
type Manager struct {
	looper  *looper.Looper
	tracker *midi.NoteTracker
	opts    Options
	log     *zap.Logger

	inputMu sync.Mutex
	input   EventSource

	commands chan Command
	updates  chan looper.Snapshot

	statusMu sync.Mutex
	status   chan Status
	stopped  bool

	autosave     func(f func())
	lastRevision uint64
	saveQueued   bool
	lastPublish  time.Time
	eventBuf     []midi.AbsEvent
	clock        uint32 // ms since start, survives input swaps

	now func() time.Time
}

// New creates a manager playing into tracker
func New(tracker *midi.NoteTracker, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.LoopSleep <= 0 {
		opts.LoopSleep = 3 * time.Millisecond
	}
	if opts.StateFile == "" {
		opts.StateFile = "state.json"
	}

	lopts := append([]looper.Option{looper.WithLogger(opts.Logger.Named("looper"))}, opts.LooperOptions...)

	m := &Manager{
		looper:   looper.New(tracker, lopts...),
		tracker:  tracker,
		opts:     opts,
		log:      opts.Logger.Named("engine"),
		commands: make(chan Command, 64),
		updates:  make(chan looper.Snapshot, 1),
		status:   make(chan Status, 16),
		now:      time.Now,
	}
	m.lastRevision = m.looper.Revision()
	if opts.Autosave && opts.AutosaveDelay > 0 {
		m.autosave = debounce.New(opts.AutosaveDelay)
	}
	return m
}

// Send queues a command for the next tick. It never blocks; a full queue
// drops the command.
func (m *Manager) Send(cmd Command) bool {
	select {
	case m.commands <- cmd:
		return true
	default:
		m.log.Warn("command queue full", zap.Stringer("command", cmd.Type))
		return false
	}
}

// Updates delivers snapshots for rendering, at most uiFPS per second. Only
// the latest snapshot is kept. The channel is closed when Run returns.
func (m *Manager) Updates() <-chan looper.Snapshot {
	return m.updates
}

// Status delivers user-facing messages. It is closed when Run returns.
func (m *Manager) Status() <-chan Status {
	return m.status
}

// SetInput swaps the live input; nil disconnects it
func (m *Manager) SetInput(src EventSource) {
	m.inputMu.Lock()
	m.input = src
	m.inputMu.Unlock()
}

// SetOutput swaps the output port sender; nil mutes playback
func (m *Manager) SetOutput(send func(gomidi.Message) error) {
	m.tracker.SetSender(send)
}

// HandleDeviceEvent wires hot-plugged ports into the loop
func (m *Manager) HandleDeviceEvent(ev midi.DeviceEvent) {
	switch ev.Type {
	case midi.InputConnected:
		if ev.Input != nil {
			m.SetInput(ev.Input)
		}
	case midi.InputDisconnected:
		m.SetInput(nil)
	case midi.OutputConnected:
		m.SetOutput(ev.Sender)
	case midi.OutputDisconnected:
		m.SetOutput(nil)
	}
	m.report(Status{Text: fmt.Sprintf("%s: %s", ev.Type, ev.Name)})
}

// LoadInitial loads the state file if it exists. A missing file is not an
// error; a corrupt one is reported and the looper starts empty.
func (m *Manager) LoadInitial() error {
	err := m.looper.LoadFile(m.opts.StateFile)
	switch {
	case err == nil:
		m.lastRevision = m.looper.Revision()
		m.report(Status{Text: "loaded " + looper.DisplayPath(m.opts.StateFile)})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		m.report(Status{Text: "could not load " + looper.DisplayPath(m.opts.StateFile), Err: err})
		return err
	}
}

// Run drives the loop until ctx is done. Sounding notes are released on
// the way out.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.LoopSleep)
	defer ticker.Stop()
	defer m.shutdown()

	last := m.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := m.now()
			elapsed := now.Sub(last)
			if elapsed < 0 {
				elapsed = 0
			}
			delta := elapsed.Milliseconds()
			// carry the sub-millisecond remainder into the next tick
			last = last.Add(time.Duration(delta) * time.Millisecond)
			m.tick(uint32(delta))
		}
	}
}

func (m *Manager) shutdown() {
	m.tracker.CloseOpenedNotes()
	close(m.updates)

	m.statusMu.Lock()
	m.stopped = true
	close(m.status)
	m.statusMu.Unlock()
	m.log.Debug("engine stopped")
}

// tick is one pass of the loop: input, commands, playback, publish
func (m *Manager) tick(delta uint32) {
	m.clock += delta
	m.drainInput()
	m.drainCommands()

	if err := m.looper.Update(delta); err != nil {
		m.logSinkError(err)
	}

	if m.saveQueued {
		if _, pending := m.looper.NextState(); !pending {
			m.saveQueued = false
			m.save()
		}
	}

	if rev := m.looper.Revision(); rev != m.lastRevision {
		m.lastRevision = rev
		m.scheduleAutosave()
	}

	m.publish()
}

func (m *Manager) drainInput() {
	m.inputMu.Lock()
	src := m.input
	m.inputMu.Unlock()
	if src == nil {
		return
	}

	m.eventBuf = src.Drain(m.eventBuf[:0])
	for _, ev := range m.eventBuf {
		// a reopened port restarts its own clock
		ev.Timestamp = m.clock
		if err := m.looper.OnMidiEvent(ev); err != nil {
			m.logSinkError(err)
		}
	}
}

func (m *Manager) drainCommands() {
	for {
		select {
		case cmd := <-m.commands:
			m.handle(cmd)
		default:
			return
		}
	}
}

func (m *Manager) handle(cmd Command) {
	m.log.Debug("command", zap.Stringer("command", cmd.Type))

	switch cmd.Type {
	case CmdToggleRecording:
		m.looper.ToggleRecording()
	case CmdTogglePause:
		m.looper.TogglePause()
	case CmdUndo:
		m.looper.UndoLastRecording()
	case CmdReset:
		m.looper.Reset()
	case CmdSetTempo:
		if err := m.looper.UpdateTempoBPM(cmd.Tempo); err != nil {
			m.report(Status{Text: fmt.Sprintf("tempo %d rejected", cmd.Tempo), Err: err})
		}
	case CmdSave:
		if _, pending := m.looper.NextState(); pending {
			m.saveQueued = true
			return
		}
		m.save()
	case CmdLoad:
		m.load()
	case CmdLoadHistory:
		m.loadHistory(cmd.Ref)
	case CmdExport:
		m.export(cmd.Path)
	}
}

func (m *Manager) save() {
	path := m.opts.StateFile
	if err := m.looper.SaveFile(path); err != nil {
		m.report(Status{Text: "could not save " + looper.DisplayPath(path), Err: err})
		return
	}
	m.report(Status{Text: "saved " + looper.DisplayPath(path)})

	if m.opts.HistoryDir == "" {
		return
	}
	archived, err := history.Archive(m.opts.HistoryDir, m.looper.Composition(), "")
	if err != nil {
		m.report(Status{Text: "could not archive to " + looper.DisplayPath(m.opts.HistoryDir), Err: err})
		return
	}
	m.log.Debug("archived", zap.String("path", archived))

	if removed, err := history.Prune(m.opts.HistoryDir, m.opts.HistoryLimit); err != nil {
		m.log.Warn("prune history", zap.Error(err))
	} else if removed > 0 {
		m.log.Debug("pruned history", zap.Int("removed", removed))
	}
}

func (m *Manager) load() {
	path := m.opts.StateFile
	if err := m.looper.LoadFile(path); err != nil {
		m.report(Status{Text: "could not load " + looper.DisplayPath(path), Err: err})
		return
	}
	m.report(Status{Text: "loaded " + looper.DisplayPath(path)})
}

func (m *Manager) loadHistory(ref string) {
	c, path, err := history.Load(m.opts.HistoryDir, ref)
	if err == nil {
		err = m.looper.LoadComposition(c)
	}
	if err != nil {
		m.report(Status{Text: "could not load from history", Err: err})
		return
	}
	m.report(Status{Text: "loaded " + looper.DisplayPath(path)})
}

func (m *Manager) export(path string) {
	f, err := os.Create(path)
	if err == nil {
		err = looper.ExportSMF(f, m.looper.Composition())
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		m.report(Status{Text: "could not export " + looper.DisplayPath(path), Err: err})
		return
	}
	m.report(Status{Text: "exported " + looper.DisplayPath(path)})
}

func (m *Manager) scheduleAutosave() {
	if m.autosave == nil {
		return
	}
	m.autosave(func() {
		m.Send(Command{Type: CmdSave})
	})
}

// publish sends the latest snapshot, replacing one the UI has not taken yet
func (m *Manager) publish() {
	now := m.now()
	if now.Sub(m.lastPublish) < time.Second/uiFPS {
		return
	}
	m.lastPublish = now

	snap := m.looper.Snapshot()
	select {
	case m.updates <- snap:
		return
	default:
	}
	select {
	case <-m.updates:
	default:
	}
	select {
	case m.updates <- snap:
	default:
	}
}

func (m *Manager) report(s Status) {
	if s.Time.IsZero() {
		s.Time = m.now()
	}
	if s.Err != nil {
		m.log.Warn(s.Text, zap.Error(s.Err))
	} else {
		m.log.Info(s.Text)
	}

	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	if m.stopped {
		return
	}
	select {
	case m.status <- s:
	default:
	}
}

// logSinkError thins out output failures; at 3 ms per tick a dead port
// would otherwise flood the log.
func (m *Manager) logSinkError(err error) {
	if everySinkError() {
		m.log.Warn("midi output", zap.Error(err))
	}
}
