package report

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNewEventLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	if logger.path == "" {
		t.Error("EventLogger path is empty")
	}
	if _, err := os.Stat(logger.path); os.IsNotExist(err) {
		t.Errorf("Event log file was not created at %s", logger.path)
	}

	filename := filepath.Base(logger.path)
	if len(filename) < len("events-20060102-150405.jsonl") {
		t.Errorf("Event log filename format incorrect: %s", filename)
	}
}

func TestEventLoggerLog(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	event := &Event{
		Timestamp: time.Now(),
		Level:     LevelInfo,
		Event:     EventMoved,
		AlbumPath: "/music/Artist/Album",
		NewPath:   "/sorted/Lossless/Artist/Artist - Album",
	}
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	logger.Close()

	content, err := os.ReadFile(logger.path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var decoded Event
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("decode JSONL: %v", err)
	}
	if decoded.AlbumPath != "/music/Artist/Album" {
		t.Errorf("AlbumPath = %q", decoded.AlbumPath)
	}
	if decoded.NewPath != "/sorted/Lossless/Artist/Artist - Album" {
		t.Errorf("NewPath = %q", decoded.NewPath)
	}
}

func TestEventLoggerConvenienceMethods(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogDiscovered("/music/a")
	logger.LogSkipped("/music/b", "no recognized audio file")
	logger.LogNeedsReview("/music/c", "artist could not be determined")
	logger.LogEnriched("/music/d", "primary", 0.9)
	logger.LogMoved("/music/e", "/sorted/e", 1024)
	logger.LogDuplicateGrouped("/sorted/keeper", 3)
	logger.LogDuplicateResolved("/music/f", "/duplicates/f", "lower_quality")
	logger.LogError(EventMoved, "/music/g", os.ErrNotExist)
	logger.Close()

	file, err := os.Open(logger.path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	count := 0
	for scanner.Scan() {
		count++
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line %d not valid JSON: %v", count, err)
		}
	}
	if count != 8 {
		t.Errorf("logged %d lines, want 8", count)
	}
}

func TestEventLoggerConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				logger.LogDiscovered("/music/concurrent")
			}
		}()
	}
	wg.Wait()
	logger.Close()

	file, err := os.Open(logger.path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineCount := 0
	for scanner.Scan() {
		lineCount++
	}
	if want := numGoroutines * eventsPerGoroutine; lineCount != want {
		t.Errorf("lineCount = %d, want %d", lineCount, want)
	}
}

func TestEventLoggerNullLogger(t *testing.T) {
	logger := NullLogger()

	if err := logger.Log(&Event{Level: LevelInfo, Event: EventMoved}); err != nil {
		t.Errorf("NullLogger.Log returned %v", err)
	}
	if err := logger.LogDiscovered("/music/a"); err != nil {
		t.Errorf("NullLogger.LogDiscovered returned %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NullLogger.Close returned %v", err)
	}
	if path := logger.Path(); path != "" {
		t.Errorf("NullLogger.Path() = %q, want empty", path)
	}
}

func TestEventLoggerAutoTimestamp(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	if err := logger.Log(&Event{Level: LevelInfo, Event: EventMoved}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	logger.Close()

	content, _ := os.ReadFile(logger.path)
	var decoded Event
	json.Unmarshal(content, &decoded)

	if decoded.Timestamp.IsZero() {
		t.Error("timestamp not auto-set")
	}
	if time.Since(decoded.Timestamp) > 5*time.Second {
		t.Errorf("timestamp too old: %v", decoded.Timestamp)
	}
}

func TestEventLoggerLevelFiltering(t *testing.T) {
	testCases := []struct {
		name          string
		minLevel      EventLevel
		levels        []EventLevel
		expectedCount int
	}{
		{"debug logs all", LevelDebug, []EventLevel{LevelDebug, LevelInfo, LevelWarning, LevelError}, 4},
		{"info skips debug", LevelInfo, []EventLevel{LevelDebug, LevelInfo, LevelWarning, LevelError}, 3},
		{"warning skips debug and info", LevelWarning, []EventLevel{LevelDebug, LevelInfo, LevelWarning, LevelError}, 2},
		{"error only logs errors", LevelError, []EventLevel{LevelDebug, LevelInfo, LevelWarning, LevelError}, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			logger, err := NewEventLogger(tmpDir, tc.minLevel)
			if err != nil {
				t.Fatalf("NewEventLogger failed: %v", err)
			}
			for _, lvl := range tc.levels {
				logger.Log(&Event{Level: lvl, Event: EventMoved})
			}
			logger.Close()

			file, err := os.Open(logger.path)
			if err != nil {
				t.Fatalf("open log file: %v", err)
			}
			defer file.Close()

			scanner := bufio.NewScanner(file)
			lineCount := 0
			for scanner.Scan() {
				lineCount++
			}
			if lineCount != tc.expectedCount {
				t.Errorf("lineCount = %d, want %d", lineCount, tc.expectedCount)
			}
		})
	}
}
