// Package logging provides component-scoped structured loggers.
//
// All loggers created in one process share a run id and write to a single
// file under ~/.medisimple/logs/<run-id>-medisimple.log. When the directory or
// file cannot be used, output falls back to stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Options configures process-wide logging. Call Setup once at startup; New
// works without it and logs at info level to the default file.
type Options struct {
	// Level is a zerolog level name such as debug, info, warn or error.
	// Empty means info.
	Level string

	// Dir overrides the log directory.
	Dir string

	// Console additionally writes human-readable output to stderr.
	Console bool
}

var (
	mu      sync.Mutex
	runID   string
	writer  io.Writer
	file    *os.File
	logPath string
	level   = zerolog.InfoLevel
	setup   bool
)

// Setup configures the shared writer and level. It returns the path of the
// log file, or an error alongside a working stderr fallback.
func Setup(opts Options) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return "", err
	}
	level = lvl

	closeFileLocked()
	path, w, openErr := openLogFile(opts.Dir)
	if openErr != nil {
		w = os.Stderr
	}
	if opts.Console && openErr == nil {
		w = zerolog.MultiLevelWriter(w, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	writer = w
	logPath = path
	setup = true
	return path, openErr
}

// New returns a logger tagged with the component name and the run id.
func New(component string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if !setup {
		path, w, err := openLogFile("")
		if err != nil {
			w = os.Stderr
		}
		writer = w
		logPath = path
		setup = true
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Str("run_id", getRunID()).
		Str("component", component).
		Logger()
}

// RunID returns the id shared by all loggers of this process.
func RunID() string {
	mu.Lock()
	defer mu.Unlock()
	return getRunID()
}

// LogPath returns the active log file path, or "" when logging to stderr.
func LogPath() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

// Close closes the log file. Safe to call multiple times.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	err := closeFileLocked()
	setup = false
	return err
}

func getRunID() string {
	if runID == "" {
		runID = uuid.New().String()
	}
	return runID
}

func closeFileLocked() error {
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

func openLogFile(dir string) (string, io.Writer, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", nil, errors.Wrap(err, "failed to get home directory")
		}
		dir = filepath.Join(home, ".medisimple", "logs")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", nil, errors.Wrap(err, "failed to create log directory")
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-medisimple.log", getRunID()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to open log file")
	}
	file = f
	return path, f, nil
}

// ParseLevel maps a configured level name onto a zerolog level. Empty means
// info and "warning" is accepted for warn.
func ParseLevel(s string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		name = "warn"
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel, errors.Wrapf(err, "unknown log level %q", s)
	}
	return lvl, nil
}
