package engine

import (
	"time"

	"go-looper/debug"
)

// CommandType identifies a user command
type CommandType int

const (
	CmdToggleRecording CommandType = iota
	CmdTogglePause
	CmdUndo
	CmdReset
	CmdSetTempo
	CmdSave
	CmdLoad
	CmdLoadHistory
	CmdExport
)

func (c CommandType) String() string {
	switch c {
	case CmdToggleRecording:
		return "toggle-recording"
	case CmdTogglePause:
		return "toggle-pause"
	case CmdUndo:
		return "undo"
	case CmdReset:
		return "reset"
	case CmdSetTempo:
		return "set-tempo"
	case CmdSave:
		return "save"
	case CmdLoad:
		return "load"
	case CmdLoadHistory:
		return "load-history"
	case CmdExport:
		return "export"
	}
	return "unknown"
}

// Command is a request from the UI to the loop
type Command struct {
	Type  CommandType
	Tempo uint32 // CmdSetTempo
	Path  string // CmdExport target
	Ref   string // CmdLoadHistory: file name, save name or "" for newest
}

// Status is a message for the user. Err is set when something failed;
// the loop keeps running either way.
type Status struct {
	Time time.Time
	Text string
	Err  error
}

func (s Status) String() string {
	if s.Err != nil {
		return s.Text + ": " + s.Err.Error()
	}
	return s.Text
}

const sinkErrorLogEvery = 500

func everySinkError() bool {
	return debug.Every(sinkErrorLogEvery, "engine.sink")
}
