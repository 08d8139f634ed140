package theme

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

//go:embed palettes/*.gpl
var builtin embed.FS

// DefaultPalette is the builtin palette used when none is configured
const DefaultPalette = "plasma"

type RGB [3]uint8

type Palette struct {
	Name   string
	Colors []RGB
}

// ParseGPL reads a GIMP palette
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "Name:") {
			p.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			continue
		}

		// Skip headers and comments
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "GIMP") || strings.HasPrefix(line, "Columns") {
			continue
		}

		// first 3 fields are R G B, the rest is a label
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		var c RGB
		ok := true
		for i := range c {
			v, err := strconv.ParseUint(fields[i], 10, 8)
			if err != nil {
				ok = false
				break
			}
			c[i] = uint8(v)
		}
		if ok {
			p.Colors = append(p.Colors, c)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("no colors found in palette %q", p.Name)
	}
	return p, nil
}

// LoadGPL reads a palette file from disk
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Builtin loads one of the embedded palettes by name
func Builtin(name string) (*Palette, error) {
	f, err := builtin.Open("palettes/" + name + ".gpl")
	if err != nil {
		return nil, fmt.Errorf("no builtin palette %q", name)
	}
	defer f.Close()
	return ParseGPL(f)
}

// Load resolves a palette setting: empty means the default, a builtin
// name is used as is, anything else is read as a file path.
func Load(nameOrPath string) (*Palette, error) {
	if nameOrPath == "" {
		nameOrPath = DefaultPalette
	}
	if p, err := Builtin(nameOrPath); err == nil {
		return p, nil
	}
	return LoadGPL(nameOrPath)
}

// Default returns the builtin default palette
func Default() *Palette {
	p, err := Builtin(DefaultPalette)
	if err != nil {
		panic(fmt.Sprintf("builtin palette %s: %v", DefaultPalette, err))
	}
	return p
}

// Lookup returns interpolated color for normalized value 0-1
func (p *Palette) Lookup(norm float64) RGB {
	if norm <= 0 {
		return p.Colors[0]
	}
	if norm >= 1 {
		return p.Colors[len(p.Colors)-1]
	}

	// Find the two colors to interpolate between
	pos := norm * float64(len(p.Colors)-1)
	i := int(pos)
	frac := pos - float64(i)

	c0 := p.Colors[i]
	c1 := p.Colors[i+1]

	return RGB{
		lerp(c0[0], c1[0], frac),
		lerp(c0[1], c1[1], frac),
		lerp(c0[2], c1[2], frac),
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}
