package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu       sync.Mutex
	file     *os.File
	logger   = zap.NewNop()
	session  = uuid.NewString()
	counters = make(map[string]uint64)
)

// DefaultPath is ~/.config/go-looper/debug.log
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-looper", "debug.log"), nil
}

// Enable starts logging to path, truncating it. An empty path means
// DefaultPath. The TUI owns the terminal, so logs only ever go to a file.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		return nil
	}

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(f), zap.DebugLevel)

	file = f
	logger = zap.New(core, zap.AddCaller()).With(zap.String("session", session))
	logger.Info("debug logging started", zap.String("path", path))
	return nil
}

// Disable stops logging and closes the file
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file == nil {
		return
	}
	_ = logger.Sync()
	file.Close()
	file = nil
	logger = zap.NewNop()
}

// L returns the current logger. It is a no-op logger until Enable.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Named returns a child logger for one part of the program
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Session is the id attached to every line of this run
func Session() string {
	return session
}

// Log writes a printf-style debug line under category
func Log(category, format string, args ...any) {
	Named(category).Sugar().Debugf(format, args...)
}

// Every reports true on the first call for key and then on every nth.
// Use it to thin out logging on hot paths.
func Every(n int, key string) bool {
	if n <= 1 {
		return true
	}
	mu.Lock()
	defer mu.Unlock()
	counters[key]++
	c := counters[key]
	return c == 1 || c%uint64(n) == 0
}

// LogEvery logs only every n calls with the same category and format
func LogEvery(n int, category, format string, args ...any) {
	if Every(n, category+format) {
		Log(category, format+" (every %d)", append(args, n)...)
	}
}
