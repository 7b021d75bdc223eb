package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/halvard/crate/internal/store"
)

// SummaryReport is the end-of-run report assembled from the three
// stores plus the JSONL event log (spec §7's final summary, extended
// with the per-run detail a human operator reviewing the run wants).
type SummaryReport struct {
	GeneratedAt time.Time
	Duration    time.Duration

	// Album outcome counts (state store, spec §7).
	OK          int
	Skipped     int
	NeedsReview int
	Failed      int

	// Move executor stats (metadata store).
	MovesCommitted int
	MovesFailed    int
	BytesWritten   int64

	// Duplicate engine stats (duplicates store).
	FingerprintsRecorded int
	DuplicateGroups       []DuplicateGroupSummary

	TopErrors []ErrorSummary

	// Metadata
	SourcePath      string
	DestinationPath string
	Mode            string
	EventLogPath    string
}

// ErrorSummary is one distinct error message and how often it occurred.
type ErrorSummary struct {
	Error string
	Count int
}

// DuplicateGroupSummary is one duplicate_groups row with its member
// paths, for the markdown report's detail section.
type DuplicateGroupSummary struct {
	GroupHash      string
	AlbumCount     int
	TotalSize      int64
	DuplicateScore float64
	KeeperPath     string
	MemberPaths    []string
}

// GenerateSummaryReport assembles a report from the three stores' current
// state plus eventLogPath's JSONL contents.
func GenerateSummaryReport(state *store.StateStore, meta *store.MetadataStore, dupStore *store.DuplicatesStore, eventLogPath string) (*SummaryReport, error) {
	r := &SummaryReport{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
	}

	counts, err := state.CountByStatus()
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	r.OK = counts[store.StatusOK]
	r.Skipped = counts[store.StatusSkipped]
	r.NeedsReview = counts[store.StatusNeedsReview]
	r.Failed = counts[store.StatusFailed]

	committed, _ := meta.CountMoveOperationsByStatus(store.MoveStatusCommitted)
	failed, _ := meta.CountMoveOperationsByStatus(store.MoveStatusFailed)
	r.MovesCommitted = committed
	r.MovesFailed = failed
	r.BytesWritten = sumMovedBytes(meta)

	fingerprints, _ := dupStore.AllFingerprints()
	r.FingerprintsRecorded = len(fingerprints)
	r.DuplicateGroups = gatherDuplicateGroups(dupStore, 20)

	r.TopErrors = gatherTopErrors(eventLogPath, 10)

	return r, nil
}

// sumMovedBytes has no dedicated aggregate query in store, so it is
// computed here from the one value the summary actually needs; adding a
// single-purpose SUM query to MetadataStore for a report-only figure
// would be more machinery than the figure is worth.
func sumMovedBytes(meta *store.MetadataStore) int64 {
	var total int64
	rows, err := meta.DB().Query(`SELECT COALESCE(total_bytes, 0) FROM albums WHERE status = ?`, store.StatusOK)
	if err != nil {
		return 0
	}
	defer rows.Close()
	for rows.Next() {
		var n int64
		if rows.Scan(&n) == nil {
			total += n
		}
	}
	return total
}

func gatherDuplicateGroups(dupStore *store.DuplicatesStore, limit int) []DuplicateGroupSummary {
	rows, err := dupStore.DB().Query(`
		SELECT g.group_hash, g.album_count, g.total_size, g.duplicate_score,
		       COALESCE((SELECT f.album_path FROM audio_fingerprints f WHERE f.id = g.best_quality_id), '')
		FROM duplicate_groups g
		ORDER BY g.album_count DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var groups []DuplicateGroupSummary
	for rows.Next() {
		var g DuplicateGroupSummary
		if err := rows.Scan(&g.GroupHash, &g.AlbumCount, &g.TotalSize, &g.DuplicateScore, &g.KeeperPath); err != nil {
			continue
		}
		g.MemberPaths = memberPaths(dupStore, g.GroupHash, g.KeeperPath)
		groups = append(groups, g)
	}
	return groups
}

func memberPaths(dupStore *store.DuplicatesStore, groupHash, keeperPath string) []string {
	rows, err := dupStore.DB().Query(`
		SELECT f.album_path FROM duplicate_members m
		JOIN duplicate_groups g ON g.id = m.group_id
		JOIN audio_fingerprints f ON f.id = m.fingerprint_id
		WHERE g.group_hash = ? AND f.album_path != ?
	`, groupHash, keeperPath)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if rows.Scan(&p) == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

// gatherTopErrors reads the JSONL event log (there is no dedicated error
// table; the log is the system of record for per-album failure reasons)
// and tallies distinct error messages.
func gatherTopErrors(eventLogPath string, limit int) []ErrorSummary {
	if eventLogPath == "" {
		return nil
	}
	f, err := os.Open(eventLogPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	counts := map[string]int{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if json.Unmarshal(scanner.Bytes(), &e) != nil || e.Error == "" {
			continue
		}
		counts[e.Error]++
	}

	errs := make([]ErrorSummary, 0, len(counts))
	for msg, n := range counts {
		errs = append(errs, ErrorSummary{Error: msg, Count: n})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Count > errs[j].Count })
	if len(errs) > limit {
		errs = errs[:limit]
	}
	return errs
}

// WriteMarkdownReport renders r to outputPath.
func WriteMarkdownReport(r *SummaryReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	var md strings.Builder

	md.WriteString("# crate run summary\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05")))
	if r.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event log:** `%s`\n\n", r.EventLogPath))
	}
	md.WriteString("---\n\n")

	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Outcome | Count |\n|---------|-------|\n")
	md.WriteString(fmt.Sprintf("| Moved | %d |\n", r.OK))
	md.WriteString(fmt.Sprintf("| Skipped | %d |\n", r.Skipped))
	md.WriteString(fmt.Sprintf("| Needs review | %d |\n", r.NeedsReview))
	md.WriteString(fmt.Sprintf("| Failed | %d |\n\n", r.Failed))

	md.WriteString("## ⚡ Execution\n\n")
	md.WriteString("| Metric | Value |\n|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Moves committed | %d |\n", r.MovesCommitted))
	if r.MovesFailed > 0 {
		md.WriteString(fmt.Sprintf("| Moves failed | %d |\n", r.MovesFailed))
	}
	md.WriteString(fmt.Sprintf("| Bytes written | %s |\n", humanize.Bytes(uint64(r.BytesWritten))))
	if r.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Duration | %s |\n", r.Duration.Round(time.Second)))
	}
	md.WriteString("\n")

	if len(r.DuplicateGroups) > 0 {
		md.WriteString(fmt.Sprintf("## 🔍 Duplicate Groups (top %d)\n\n", len(r.DuplicateGroups)))
		for i, g := range r.DuplicateGroups {
			md.WriteString(fmt.Sprintf("### %d. %d albums, score %.2f\n\n", i+1, g.AlbumCount, g.DuplicateScore))
			md.WriteString(fmt.Sprintf("**✅ Keeper:** `%s`\n\n", truncatePath(g.KeeperPath, 80)))
			if len(g.MemberPaths) > 0 {
				md.WriteString("**❌ Quarantined:**\n\n")
				for _, p := range g.MemberPaths {
					md.WriteString(fmt.Sprintf("- `%s`\n", truncatePath(p, 80)))
				}
				md.WriteString("\n")
			}
		}
	}

	if len(r.TopErrors) > 0 {
		md.WriteString("## ⚠️ Top Errors\n\n")
		md.WriteString("| Count | Error |\n|-------|-------|\n")
		for _, e := range r.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", e.Count, e.Error))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n*Generated by crate*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
