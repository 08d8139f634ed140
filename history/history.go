package history

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go-looper/looper"
)

// TimestampLayout prefixes every archived file name
const TimestampLayout = "2006-01-02_15-04-05"

// Entry is one archived composition
type Entry struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

var now = time.Now

// Dir returns ~/.config/go-looper/history
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-looper", "history"), nil
}

// List returns the archived compositions in dir, newest first
func List(dir string) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}

	result := []Entry{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if e, ok := parseFilename(entry.Name()); ok {
			result = append(result, e)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Filename > result[j].Filename
		}
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

// parseFilename accepts 2024-01-15_14-30-00.json and
// 2024-01-15_14-30-00_name.json
func parseFilename(filename string) (Entry, bool) {
	if !strings.HasSuffix(filename, ".json") {
		return Entry{}, false
	}
	base := strings.TrimSuffix(filename, ".json")
	if len(base) < len(TimestampLayout) {
		return Entry{}, false
	}

	ts, err := time.ParseInLocation(TimestampLayout, base[:len(TimestampLayout)], time.Local)
	if err != nil {
		return Entry{}, false
	}

	name := ""
	rest := base[len(TimestampLayout):]
	if len(rest) > 1 && rest[0] == '_' {
		name = rest[1:]
	} else if rest != "" {
		return Entry{}, false
	}

	return Entry{Filename: filename, Name: name, Timestamp: ts}, true
}

// Archive writes a timestamped copy of the composition into dir and
// returns its path. Two archives within the same second get a numbered
// name instead of overwriting each other.
func Archive(dir string, c looper.CompositionData, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return "", err
	}

	stamp := now().Format(TimestampLayout)
	name = sanitizeFilename(name)
	for i := 0; ; i++ {
		label := name
		if i > 0 {
			label = strings.TrimPrefix(fmt.Sprintf("%s-%d", name, i), "-")
		}
		filename := stamp + ".json"
		if label != "" {
			filename = stamp + "_" + label + ".json"
		}

		path := filepath.Join(dir, filename)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(buf.Bytes()); err != nil {
			f.Close()
			return "", err
		}
		return path, f.Close()
	}
}

// Resolve finds an archived file. An empty ref means the newest; otherwise
// ref may be a file name, a save name or a timestamp prefix.
func Resolve(dir, ref string) (string, error) {
	entries, err := List(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no saves found in %s", dir)
	}
	if ref == "" {
		return filepath.Join(dir, entries[0].Filename), nil
	}

	for _, e := range entries {
		if e.Filename == ref || e.Name == ref {
			return filepath.Join(dir, e.Filename), nil
		}
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Filename, ref) {
			return filepath.Join(dir, e.Filename), nil
		}
	}
	return "", fmt.Errorf("no save matching %q in %s", ref, dir)
}

// Load reads and validates an archived composition
func Load(dir, ref string) (looper.CompositionData, string, error) {
	path, err := Resolve(dir, ref)
	if err != nil {
		return looper.CompositionData{}, "", err
	}
	c, err := looper.ReadCompositionFile(path)
	if err != nil {
		return looper.CompositionData{}, path, fmt.Errorf("load %s: %w", path, err)
	}
	return c, path, nil
}

// Prune keeps the newest limit archives and deletes the rest. A limit of
// zero keeps everything.
func Prune(dir string, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	entries, err := List(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries[min(limit, len(entries)):] {
		if err := os.Remove(filepath.Join(dir, e.Filename)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Rename changes the name part of an archived file, keeping its timestamp
func Rename(dir, filename, newName string) (string, error) {
	e, ok := parseFilename(filename)
	if !ok {
		return "", fmt.Errorf("invalid save filename %q", filename)
	}

	stamp := e.Timestamp.Format(TimestampLayout)
	newFilename := stamp + ".json"
	if safe := sanitizeFilename(newName); safe != "" {
		newFilename = stamp + "_" + safe + ".json"
	}

	if err := os.Rename(filepath.Join(dir, filename), filepath.Join(dir, newFilename)); err != nil {
		return "", err
	}
	return newFilename, nil
}

// Delete removes one archived file
func Delete(dir, filename string) error {
	if _, ok := parseFilename(filename); !ok {
		return fmt.Errorf("invalid save filename %q", filename)
	}
	return os.Remove(filepath.Join(dir, filename))
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	r := strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	)
	return r.Replace(strings.TrimSpace(name))
}
