// Package report implements the run's two observability surfaces: a
// JSONL event log for offline analysis and a machine-readable PROGRESS
// stream for callers driving crate from another process (spec §6).
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType is the album-lifecycle stage an Event describes.
type EventType string

const (
	EventDiscovered      EventType = "discovered"
	EventEnriched        EventType = "enriched"
	EventMoved           EventType = "moved"
	EventSkipped         EventType = "skipped"
	EventNeedsReview     EventType = "needs_review"
	EventDuplicateGroup  EventType = "duplicate_grouped"
	EventDuplicateResolve EventType = "duplicate_resolved"
	EventError           EventType = "error"
)

// EventLevel is an Event's severity.
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event is one line of the JSONL event log.
type Event struct {
	Timestamp  time.Time `json:"ts"`
	Level      EventLevel `json:"level"`
	Event      EventType  `json:"event"`
	AlbumPath  string     `json:"album_path,omitempty"`
	NewPath    string     `json:"new_path,omitempty"`
	Provider   string     `json:"provider,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	BytesMoved int64      `json:"bytes_moved,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// EventLogger writes Events to a timestamped JSONL file under an output
// directory, filtering anything below minLevel.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates the output directory if needed and opens a new
// events-<timestamp>.jsonl file inside it.
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}

	filename := fmt.Sprintf("events-%s.jsonl", time.Now().Format("20060102-150405"))
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes event, silently dropping it if below minLevel or if l is
// nil (the NullLogger case).
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}
	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

// LogDiscovered records an album directory entering the pipeline.
func (l *EventLogger) LogDiscovered(albumPath string) error {
	return l.Log(&Event{Level: LevelDebug, Event: EventDiscovered, AlbumPath: albumPath})
}

// LogSkipped records an album the pipeline declined to process (no
// recognized audio, or incremental scan found it unchanged).
func (l *EventLogger) LogSkipped(albumPath, reason string) error {
	return l.Log(&Event{Level: LevelInfo, Event: EventSkipped, AlbumPath: albumPath, Reason: reason})
}

// LogNeedsReview records an album whose artist could not be resolved
// through any fallback.
func (l *EventLogger) LogNeedsReview(albumPath, reason string) error {
	return l.Log(&Event{Level: LevelWarning, Event: EventNeedsReview, AlbumPath: albumPath, Reason: reason})
}

// LogEnriched records a successful external metadata lookup.
func (l *EventLogger) LogEnriched(albumPath, provider string, confidence float64) error {
	return l.Log(&Event{Level: LevelInfo, Event: EventEnriched, AlbumPath: albumPath, Provider: provider, Confidence: confidence})
}

// LogMoved records a committed move.
func (l *EventLogger) LogMoved(albumPath, newPath string, bytesMoved int64) error {
	return l.Log(&Event{Level: LevelInfo, Event: EventMoved, AlbumPath: albumPath, NewPath: newPath, BytesMoved: bytesMoved})
}

// LogDuplicateGrouped records a duplicate group's formation during a
// duplicate scan, naming the keeper.
func (l *EventLogger) LogDuplicateGrouped(keeperPath string, memberCount int) error {
	return l.Log(&Event{Level: LevelInfo, Event: EventDuplicateGroup, AlbumPath: keeperPath, Reason: fmt.Sprintf("%d members", memberCount)})
}

// LogDuplicateResolved records a single duplicate's quarantine move.
func (l *EventLogger) LogDuplicateResolved(albumPath, destPath, reason string) error {
	return l.Log(&Event{Level: LevelInfo, Event: EventDuplicateResolve, AlbumPath: albumPath, NewPath: destPath, Reason: reason})
}

// LogError records a failure against albumPath at the given lifecycle
// stage.
func (l *EventLogger) LogError(event EventType, albumPath string, err error) error {
	return l.Log(&Event{Level: LevelError, Event: event, AlbumPath: albumPath, Error: err.Error()})
}

// Close flushes and closes the underlying file.
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Path returns the event log's file path, or "" for a nil/null logger.
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a logger that discards everything, for dry runs or
// tests that don't care about the event trail.
func NullLogger() *EventLogger {
	return nil
}
