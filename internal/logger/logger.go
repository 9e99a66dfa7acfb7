// Package logger provides levelled logging for docrag.
// Debug, Info and Section lines are only written in verbose mode; warnings
// and errors are always written. Output goes to stderr unless Init is given a
// file path, which the TUI uses to keep the terminal clean.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	logFile *os.File
	std     = log.New(os.Stderr, "", log.LstdFlags)
)

// Init configures verbosity and redirects output to path when it is non-empty.
// A previously opened log file is closed.
func Init(path string, v bool) error {
	mu.Lock()
	defer mu.Unlock()

	verbose = v
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	if path == "" {
		std.SetOutput(os.Stderr)
		return nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	std.SetOutput(f)
	return nil
}

// Close releases the log file opened by Init, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(os.Stderr)
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// SetVerbose enables or disables debug and info output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the writer for all log lines. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

// SetFlags forwards to log.Logger.SetFlags; tests use 0 for stable output.
func SetFlags(flags int) {
	mu.Lock()
	defer mu.Unlock()
	std.SetFlags(flags)
}

func write(always bool, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !always && !verbose {
		return
	}
	std.Print(prefix + fmt.Sprintf(format, args...))
}

func Debug(format string, args ...any) { write(false, "[DEBUG] ", format, args...) }

func Info(format string, args ...any) { write(false, "[INFO] ", format, args...) }

func Warn(format string, args ...any) { write(true, "[WARN] ", format, args...) }

func Error(format string, args ...any) { write(true, "[ERROR] ", format, args...) }

// Section prints a section header in verbose mode.
func Section(name string) { write(false, "", "=== %s ===", name) }
