package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	file     *os.File
	mu       sync.Mutex
	counters = make(map[string]int)
)

func init() {
	// The TUI owns the terminal; stay silent until Enable or Console is called
	log.Logger = zerolog.Nop()
}

// DefaultPath returns ~/.config/go-metronome/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-metronome", "debug.log")
}

// Enable starts debug logging to path (truncated), or DefaultPath if empty
func Enable(path string, level zerolog.Level) error {
	mu.Lock()
	defer mu.Unlock()

	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}

	closeLocked()
	file = f
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.New(f).Level(level).With().Timestamp().Logger()
	log.Info().Str("path", path).Msg("debug logging started")
	return nil
}

// Console logs human-readable lines to w (stderr for command-line tools)
func Console(w io.Writer, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}).
		Level(level).With().Timestamp().Logger()
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	log.Logger = zerolog.Nop()
}

func closeLocked() {
	if file != nil {
		file.Close()
		file = nil
	}
}

// Log writes a categorised debug message
func Log(category, format string, args ...any) {
	log.Debug().Str("cat", category).Msgf(format, args...)
}

// Every reports true on every nth call for key (use for high-frequency events)
func Every(n int, key string) bool {
	if n <= 1 {
		return true
	}
	mu.Lock()
	defer mu.Unlock()
	counters[key]++
	return counters[key]%n == 0
}
