package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunLogger records one publishing run: structured console output plus an
// optional plain-text per-run file for post-mortem inspection. All methods
// are safe on a nil receiver so callers can pass loggers through optionally.
type RunLogger struct {
	runID     string
	console   zerolog.Logger
	logFile   *os.File
	mutex     sync.Mutex
	startTime time.Time
}

// StartRunLogging creates a RunLogger with a fresh run id. When dir is
// non-empty a run_<id>_<timestamp>.log file is created underneath it.
func StartRunLogging(dir string, verbose bool) (*RunLogger, error) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	console := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	l := &RunLogger{
		runID:     uuid.NewString()[:8],
		console:   console,
		startTime: time.Now(),
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		name := fmt.Sprintf("run_%s_%s.log", l.runID, time.Now().Format("20060102_150405"))
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		l.logFile = f
		l.writeFile("=== run %s started at %s ===", l.runID, l.startTime.Format(time.RFC3339))
	}

	return l, nil
}

// RunID returns the short identifier for this run.
func (l *RunLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Log records an informational message.
func (l *RunLogger) Log(format string, args ...interface{}) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.console.Info().Str("run_id", l.runID).Msg(msg)
	l.writeFile("%s", msg)
}

// Debugf records a debug-level message (console only at verbose level).
func (l *RunLogger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.console.Debug().Str("run_id", l.runID).Msg(msg)
	l.writeFile("DEBUG: %s", msg)
}

// Warnf records a non-fatal problem.
func (l *RunLogger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.console.Warn().Str("run_id", l.runID).Msg(msg)
	l.writeFile("WARNING: %s", msg)
}

// Errorf records an error that will abort the run.
func (l *RunLogger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.console.Error().Str("run_id", l.runID).Msg(msg)
	l.writeFile("ERROR: %s", msg)
}

// LogSection writes a visual section marker into the run file.
func (l *RunLogger) LogSection(name string) {
	if l == nil {
		return
	}
	l.console.Info().Str("run_id", l.runID).Msg(name)
	l.writeFile("")
	l.writeFile("===== %s =====", name)
}

// Close writes the run footer and releases the log file.
func (l *RunLogger) Close() {
	if l == nil || l.logFile == nil {
		return
	}
	l.writeFile("=== run %s finished after %v ===", l.runID, time.Since(l.startTime).Round(time.Millisecond))

	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.logFile.Close()
	l.logFile = nil
}

func (l *RunLogger) writeFile(format string, args ...interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.logFile == nil {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.logFile, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
}
