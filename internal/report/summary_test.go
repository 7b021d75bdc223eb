package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/halvard/crate/internal/store"
)

func openTestStores(t *testing.T) (*store.StateStore, *store.MetadataStore, *store.DuplicatesStore) {
	t.Helper()
	tmpDir := t.TempDir()

	state, err := store.OpenState(filepath.Join(tmpDir, "state.db"))
	if err != nil {
		t.Fatalf("OpenState: %v", err)
	}
	t.Cleanup(func() { state.Close() })

	meta, err := store.OpenMetadata(filepath.Join(tmpDir, "metadata.db"))
	if err != nil {
		t.Fatalf("OpenMetadata: %v", err)
	}
	t.Cleanup(func() { meta.Close() })

	dup, err := store.OpenDuplicates(filepath.Join(tmpDir, "duplicates.db"))
	if err != nil {
		t.Fatalf("OpenDuplicates: %v", err)
	}
	t.Cleanup(func() { dup.Close() })

	return state, meta, dup
}

func TestGenerateSummaryReportEmpty(t *testing.T) {
	state, meta, dup := openTestStores(t)

	report, err := GenerateSummaryReport(state, meta, dup, "")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}

	if report.OK != 0 || report.Skipped != 0 || report.NeedsReview != 0 || report.Failed != 0 {
		t.Errorf("expected all-zero counts on empty stores, got %+v", report)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("expected GeneratedAt to be set")
	}
}

func TestGenerateSummaryReportWithData(t *testing.T) {
	state, meta, dup := openTestStores(t)

	for i := 0; i < 3; i++ {
		dir := "/music/album" + string(rune('a'+i))
		entry := store.DirEntry{Path: dir, ContentHash: "hash", Status: store.StatusOK}
		if err := state.UpsertDirEntry(entry); err != nil {
			t.Fatalf("UpsertDirEntry: %v", err)
		}
	}
	if err := state.UpsertDirEntry(store.DirEntry{Path: "/music/bad", ContentHash: "hash2", Status: store.StatusFailed}); err != nil {
		t.Fatalf("UpsertDirEntry: %v", err)
	}

	report, err := GenerateSummaryReport(state, meta, dup, "test-events.jsonl")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}

	if report.OK != 3 {
		t.Errorf("expected OK=3, got %d", report.OK)
	}
	if report.Failed != 1 {
		t.Errorf("expected Failed=1, got %d", report.Failed)
	}
	if report.EventLogPath != "test-events.jsonl" {
		t.Errorf("EventLogPath = %q", report.EventLogPath)
	}
}

func insertTestAlbum(t *testing.T, meta *store.MetadataStore, sourcePath string, totalBytes int64, status string) {
	t.Helper()
	row := store.AlbumRow{
		SourcePath:   sourcePath,
		Artist:       "Artist",
		AlbumTitle:   "Album",
		TrackCount:   1,
		TotalBytes:   totalBytes,
		Quality:      "lossy",
		OriginalPath: sourcePath,
		Status:       status,
	}
	if err := meta.UpsertAlbum(meta.DB(), row); err != nil {
		t.Fatalf("UpsertAlbum: %v", err)
	}
}

func TestSumMovedBytes(t *testing.T) {
	_, meta, _ := openTestStores(t)

	insertTestAlbum(t, meta, "/music/a", 1000, store.StatusOK)
	insertTestAlbum(t, meta, "/music/b", 2000, store.StatusOK)
	insertTestAlbum(t, meta, "/music/c", 5000, store.StatusFailed)

	total := sumMovedBytes(meta)
	if total != 3000 {
		t.Errorf("sumMovedBytes = %d, want 3000", total)
	}
}

func TestGatherDuplicateGroups(t *testing.T) {
	_, _, dup := openTestStores(t)

	fp1 := store.FingerprintRow{AlbumPath: "/music/keeper", QualityScore: 90, TotalSize: 5000000}
	fp2 := store.FingerprintRow{AlbumPath: "/music/loser", QualityScore: 50, TotalSize: 3000000}
	keeperID, err := dup.UpsertFingerprint(fp1)
	if err != nil {
		t.Fatalf("UpsertFingerprint: %v", err)
	}
	loserID, err := dup.UpsertFingerprint(fp2)
	if err != nil {
		t.Fatalf("UpsertFingerprint: %v", err)
	}

	_, err = dup.InsertGroup(store.GroupRow{
		GroupHash:      "grouphash1",
		AlbumCount:     2,
		TotalSize:      8000000,
		DuplicateScore: 0.95,
		BestQualityID:  keeperID,
	}, []store.MemberRow{
		{FingerprintID: keeperID, IsRecommendedKeep: true},
		{FingerprintID: loserID, IsMarkedForDeletion: true},
	})
	if err != nil {
		t.Fatalf("InsertGroup: %v", err)
	}

	groups := gatherDuplicateGroups(dup, 10)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if g.GroupHash != "grouphash1" {
		t.Errorf("GroupHash = %q", g.GroupHash)
	}
	if g.KeeperPath != "/music/keeper" {
		t.Errorf("KeeperPath = %q", g.KeeperPath)
	}
	if len(g.MemberPaths) != 1 || g.MemberPaths[0] != "/music/loser" {
		t.Errorf("MemberPaths = %v", g.MemberPaths)
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestGatherTopErrors(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger: %v", err)
	}
	logger.LogError(EventMoved, "/music/a", errString("failed to read tags"))
	logger.LogError(EventMoved, "/music/b", errString("failed to read tags"))
	logger.LogError(EventMoved, "/music/c", errString("failed to read tags"))
	logger.LogError(EventMoved, "/music/d", errString("file not found"))
	logger.LogError(EventMoved, "/music/e", errString("file not found"))
	logPath := logger.Path()
	logger.Close()

	topErrors := gatherTopErrors(logPath, 10)
	if len(topErrors) != 2 {
		t.Fatalf("expected 2 unique errors, got %d", len(topErrors))
	}
	if topErrors[0].Error != "failed to read tags" || topErrors[0].Count != 3 {
		t.Errorf("top error = %+v", topErrors[0])
	}
}

func TestGatherTopErrorsMissingFile(t *testing.T) {
	if errs := gatherTopErrors("", 10); errs != nil {
		t.Errorf("expected nil for empty path, got %v", errs)
	}
	if errs := gatherTopErrors("/nonexistent/path.jsonl", 10); errs != nil {
		t.Errorf("expected nil for missing file, got %v", errs)
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "reports", "summary.md")

	report := &SummaryReport{
		GeneratedAt:          time.Now(),
		OK:                   80,
		Skipped:              15,
		NeedsReview:          3,
		Failed:               2,
		MovesCommitted:       80,
		MovesFailed:          2,
		BytesWritten:         1024 * 1024 * 500,
		FingerprintsRecorded: 80,
		EventLogPath:         "/test/events.jsonl",
		DuplicateGroups: []DuplicateGroupSummary{
			{
				GroupHash:      "hash1",
				AlbumCount:     2,
				TotalSize:      60 * 1024 * 1024,
				DuplicateScore: 0.92,
				KeeperPath:     "/sorted/Lossless/Artist/Artist - Album",
				MemberPaths:    []string{"/duplicates/Artist/Album (mp3)"},
			},
		},
		TopErrors: []ErrorSummary{
			{Error: "failed to read tags", Count: 3},
			{Error: "file not found", Count: 2},
		},
	}

	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		t.Fatalf("report file not created at %s", outputPath)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	contentStr := string(content)

	if !strings.Contains(contentStr, "# crate run summary") {
		t.Error("missing main header")
	}
	if !strings.Contains(contentStr, "## 📊 Overview") {
		t.Error("missing Overview section")
	}
	if !strings.Contains(contentStr, "## ⚡ Execution") {
		t.Error("missing Execution section")
	}
	if !strings.Contains(contentStr, "## 🔍 Duplicate Groups") {
		t.Error("missing Duplicate Groups section")
	}
	if !strings.Contains(contentStr, "## ⚠️ Top Errors") {
		t.Error("missing Top Errors section")
	}
	if !strings.Contains(contentStr, "524 MB") {
		t.Error("missing bytes written")
	}
	if !strings.Contains(contentStr, "Artist - Album") {
		t.Error("missing keeper path")
	}
	if !strings.Contains(contentStr, "failed to read tags") {
		t.Error("missing error message")
	}
}

func TestWriteMarkdownReportEmptyData(t *testing.T) {
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "summary.md")

	report := &SummaryReport{GeneratedAt: time.Now()}

	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed on empty data: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	contentStr := string(content)

	lines := strings.Split(contentStr, "\n")
	headerCount := 0
	tableCount := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			headerCount++
		}
		if strings.Contains(line, "|") {
			tableCount++
		}
	}
	if headerCount < 2 {
		t.Errorf("expected at least 2 headers, got %d", headerCount)
	}
	if tableCount < 3 {
		t.Errorf("expected at least 3 table rows, got %d", tableCount)
	}
	if !strings.Contains(contentStr, "Generated by crate") {
		t.Error("missing footer")
	}
}

func TestTruncatePath(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		maxLen int
	}{
		{"short path no truncation", "/music/song.mp3", 50},
		{"long path truncate middle", "/very/long/path/to/some/music/collection/artist/album/song.mp3", 30},
		{"exactly at limit", "/music/test.mp3", 15},
		{"very long path", "/extremely/long/path/that/needs/significant/truncation/to/fit/within/limits/file.mp3", 40},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := truncatePath(tc.path, tc.maxLen)

			if len(tc.path) > tc.maxLen && !strings.Contains(result, "...") {
				t.Error("expected truncated path to contain '...'")
			}
			if len(tc.path) <= tc.maxLen && result != tc.path {
				t.Errorf("short path should not be truncated: expected %q, got %q", tc.path, result)
			}
		})
	}
}
