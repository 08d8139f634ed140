package tui

import (
	"go-looper/engine"
	"go-looper/widgets"
)

const tempoStep = 5

type keyAction struct {
	keys    []string
	binding widgets.KeyBinding
	command engine.CommandType
}

var transportKeys = []keyAction{
	{[]string{" ", "space"}, widgets.KeyBinding{Key: "space", Short: "rec", Desc: "start / stop recording (stop lands on the next bar)"}, engine.CmdToggleRecording},
	{[]string{"p"}, widgets.KeyBinding{Key: "p", Short: "pause", Desc: "pause / resume"}, engine.CmdTogglePause},
	{[]string{"u"}, widgets.KeyBinding{Key: "u", Short: "undo", Desc: "drop the last take, or the take in progress"}, engine.CmdUndo},
	{[]string{"r", "z"}, widgets.KeyBinding{Key: "r", Short: "reset", Desc: "back to just the metronome"}, engine.CmdReset},
}

var fileKeys = []keyAction{
	{[]string{"s"}, widgets.KeyBinding{Key: "s", Short: "save", Desc: "save to the state file and archive a copy"}, engine.CmdSave},
	{[]string{"l"}, widgets.KeyBinding{Key: "l", Short: "load", Desc: "reload the state file"}, engine.CmdLoad},
	{[]string{"h"}, widgets.KeyBinding{Key: "h", Short: "last", Desc: "load the newest archived save"}, engine.CmdLoadHistory},
	{[]string{"e"}, widgets.KeyBinding{Key: "e", Short: "export", Desc: "write the loop as a MIDI file"}, engine.CmdExport},
}

// bindings that are not a plain command
var extraKeys = []widgets.KeyBinding{
	{Key: "+/-", Short: "tempo", Desc: "tempo up / down"},
	{Key: "?", Short: "help", Desc: "show / hide this help"},
	{Key: "q", Short: "quit", Desc: "quit"},
}

func lookupKey(key string) (engine.CommandType, bool) {
	for _, group := range [][]keyAction{transportKeys, fileKeys} {
		for _, a := range group {
			for _, k := range a.keys {
				if k == key {
					return a.command, true
				}
			}
		}
	}
	return 0, false
}

func bindings(actions []keyAction) []widgets.KeyBinding {
	out := make([]widgets.KeyBinding, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.binding)
	}
	return out
}

func keyLine() string {
	all := append(bindings(transportKeys), bindings(fileKeys)...)
	return widgets.RenderKeyLine(append(all, extraKeys...))
}

func keyHelp() string {
	return widgets.RenderKeyHelp([]widgets.KeySection{
		{Title: "Transport", Keys: bindings(transportKeys)},
		{Title: "Files", Keys: bindings(fileKeys)},
		{Title: "Other", Keys: extraKeys},
	})
}
