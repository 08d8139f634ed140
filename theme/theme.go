package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Roll lanes
	NoteStart rune // ▌ a note begins in this cell
	NoteHold  rune // ▬ a note is held through this cell
	Event     rune // • a control change or a note too short to draw
	Rest      rune // · nothing
	Bar       rune // ┊ empty cell on a bar line
	Playhead  rune // ▼ cursor column in the ruler

	// Transport
	Record rune // ● recording
	Loop   rune // ▶ looping
	Pause  rune // ‖ paused
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			NoteStart: '▌',
			NoteHold:  '▬',
			Event:     '•',
			Rest:      '·',
			Bar:       '┊',
			Playhead:  '▼',

			Record: '●',
			Loop:   '▶',
			Pause:  '‖',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0 // deep purple
	RoleSurface = 0.1 // dark purple
	RoleMuted   = 0.2 // purple-magenta
	RoleFG      = 0.4 // pink-purple (readable)
	RoleAccent  = 0.5 // vivid magenta
	RoleCursor  = 0.6 // rose pink
	RoleActive  = 0.7 // soft red
	RoleWarning = 0.8 // orange
	RoleSuccess = 1.0 // bright yellow
)

// Style helpers

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// ChannelRGB gives each MIDI channel its own color from the readable
// upper part of the palette.
func (t *Theme) ChannelRGB(channel uint8) RGB {
	return t.Palette.Lookup(RoleFG + (1-RoleFG)*float64(channel%16)/15)
}

// RGB returns raw RGB for any normalized value
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
