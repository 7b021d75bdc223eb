package util

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/mitchellh/colorstring"
)

// Level represents the severity of a log message, matching the ordinal
// values of the verbosity setting (config key verbosity, env
// CRATE_VERBOSITY).
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "INFO"
	}
}

func (l Level) color() string {
	switch l {
	case LevelError:
		return "[red]"
	case LevelWarn:
		return "[yellow]"
	case LevelInfo:
		return "[cyan]"
	case LevelDebug:
		return "[dim]"
	default:
		return ""
	}
}

// Logger is the process-wide structured logger. It mirrors every line to
// stderr and, when configured with a log file, to that file as well — all
// multi-writer access to the log file is serialized through an advisory
// lock on a sibling ".lock" file, per spec §6.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	lockFile *os.File
	level    Level
	colors   bool
}

// NewLogger opens (creating if necessary) the log file at path, appending,
// and prepares the sibling lock file used to serialize writes across
// processes. path may be empty, in which case only stderr is written.
func NewLogger(path string, level Level, colors bool) (*Logger, error) {
	l := &Logger{level: level, colors: colors}
	if path == "" {
		return l, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.file = f

	lockPath := path + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open log lock file: %w", err)
	}
	l.lockFile = lf

	return l, nil
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var err error
	if l.lockFile != nil {
		err = l.lockFile.Close()
	}
	if l.file != nil {
		if cerr := l.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// SetLevel changes the minimum level written by subsequent calls.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// worker identifies the caller for the "[thread-or-worker-id]" field; use
// "-" for the main goroutine.
func (l *Logger) log(worker string, level Level, format string, args ...interface{}) {
	if level > l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	plain := fmt.Sprintf("[%s] [%s] [%s] %s", ts, worker, level.String(), msg)

	l.mu.Lock()
	defer l.mu.Unlock()

	stderrLine := plain
	if l.colors {
		stderrLine = colorstring.Color(fmt.Sprintf("[%s] [%s] %s%s[reset] %s", ts, worker, level.color(), level.String(), msg))
	}
	fmt.Fprintln(os.Stderr, stderrLine)

	if l.file == nil {
		return
	}
	if l.lockFile != nil {
		syscall.Flock(int(l.lockFile.Fd()), syscall.LOCK_EX)
		defer syscall.Flock(int(l.lockFile.Fd()), syscall.LOCK_UN)
	}
	fmt.Fprintln(l.file, plain)
}

func (l *Logger) Debug(worker, format string, args ...interface{}) { l.log(worker, LevelDebug, format, args...) }
func (l *Logger) Info(worker, format string, args ...interface{})  { l.log(worker, LevelInfo, format, args...) }
func (l *Logger) Warn(worker, format string, args ...interface{})  { l.log(worker, LevelWarn, format, args...) }
func (l *Logger) Error(worker, format string, args ...interface{}) { l.log(worker, LevelError, format, args...) }

// Nop returns a logger that writes nothing, useful for tests.
func Nop() *Logger {
	return &Logger{level: LevelError - 1}
}
