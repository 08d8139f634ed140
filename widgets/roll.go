package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Cell is one character of a lane
type Cell struct {
	Rune  rune
	Color [3]uint8
	Bold  bool
}

// RenderCell renders a single colored cell
func RenderCell(c Cell) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(c.Color)))
	if c.Bold {
		style = style.Bold(true)
	}
	return style.Render(string(c.Rune))
}

// RenderLane renders a row of cells with no spacing
func RenderLane(cells []Cell) string {
	var out strings.Builder
	for _, c := range cells {
		out.WriteString(RenderCell(c))
	}
	return out.String()
}

// RenderLanes renders labelled lanes, one per line, labels padded to the
// widest one.
func RenderLanes(labels []string, lanes [][]Cell, labelColor [3]uint8) string {
	width := 0
	for _, l := range labels {
		width = max(width, lipgloss.Width(l))
	}
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(rgbToHex(labelColor))).
		Width(width + 1)

	lines := make([]string, 0, len(lanes))
	for i, lane := range lanes {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		lines = append(lines, labelStyle.Render(label)+RenderLane(lane))
	}
	return strings.Join(lines, "\n")
}

// Columns maps a span [start, end) of length units onto width columns.
// The returned range is non-empty whenever width and length are.
func Columns(start, end, length uint64, width int) (from, to int) {
	if length == 0 || width <= 0 {
		return 0, 0
	}
	w := uint64(width)
	from = int(start * w / length)
	to = int((end*w + length - 1) / length)
	if to <= from {
		to = from + 1
	}
	return min(from, width-1), min(to, width)
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderCell(Cell{Rune: '■', Color: color}), name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderKeyLine formats key bindings on one line: "space:rec  p:pause"
func RenderKeyLine(keys []KeyBinding) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.Key+":"+k.Short)
	}
	return strings.Join(parts, "  ")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key   string
	Short string
	Desc  string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
