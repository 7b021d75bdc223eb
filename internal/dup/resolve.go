package dup

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/halvard/crate/internal/store"
	"github.com/halvard/crate/internal/util"
	"github.com/halvard/crate/internal/xerr"
)

// Bucket is one of the quarantine subdirectories under DUPLICATES_DIR
// (spec §4.7 resolution).
type Bucket string

const (
	BucketLowerQuality     Bucket = "lower_quality"
	BucketSceneReleases    Bucket = "scene_releases"
	BucketFormatPreference Bucket = "format_preference"
	BucketOther            Bucket = "other"
)

// sceneTagRe matches common scene-release naming conventions (trailing
// release-group tag, PROPER/REPACK/RETAIL markers) that mark a copy as
// a scene rip rather than a simple lower-quality transcode.
var sceneTagRe = regexp.MustCompile(`(?i)\b(proper|repack|retail|read\.?nfo)\b|-[A-Z0-9]{2,6}$`)

// ClassifyReason decides why member is not the keeper, matching the
// teacher's layered-checks style: format mismatch first (it's the most
// actionable signal), then scene-release naming, then plain quality
// deficit, falling back to "other" when none apply cleanly.
func ClassifyReason(keeper, member store.FingerprintRow) (Bucket, string) {
	if member.Format != "" && keeper.Format != "" && !strings.EqualFold(member.Format, keeper.Format) {
		return BucketFormatPreference, fmt.Sprintf("format %s preferred over %s", keeper.Format, member.Format)
	}
	if sceneTagRe.MatchString(filepath.Base(member.AlbumPath)) {
		return BucketSceneReleases, "scene-release naming convention detected"
	}
	if member.QualityScore < keeper.QualityScore {
		return BucketLowerQuality, fmt.Sprintf("quality score %.1f below keeper's %.1f", member.QualityScore, keeper.QualityScore)
	}
	return BucketOther, "duplicate of a higher-ranked copy"
}

// PlannedMove is one non-keeper album's planned quarantine move.
type PlannedMove struct {
	Member  store.FingerprintRow
	Keeper  store.FingerprintRow
	Bucket  Bucket
	Reason  string
	Score   float64
	DestDir string
}

// Plan builds the quarantine moves for every non-keeper member of a
// group, rooted under duplicatesDir.
func Plan(group Group, duplicatesDir string) []PlannedMove {
	var moves []PlannedMove
	for _, m := range group.Members {
		if m.ID == group.Keeper.ID {
			continue
		}
		bucket, reason := ClassifyReason(group.Keeper, m)
		dest := filepath.Join(duplicatesDir, string(bucket), filepath.Base(m.AlbumPath))
		moves = append(moves, PlannedMove{
			Member:  m,
			Keeper:  group.Keeper,
			Bucket:  bucket,
			Reason:  reason,
			Score:   group.Scores[m.ID],
			DestDir: dest,
		})
	}
	return moves
}

// Resolver executes planned quarantine moves: relocate the duplicate's
// directory tree and write an explanatory sidecar beside it. It never
// deletes; quarantine only relocates (spec glossary: "Quarantine").
type Resolver struct {
	log         *util.Logger
	retryConfig *util.RetryConfig
	dryRun      bool
}

// NewResolver builds a Resolver. log may be nil, in which case nothing is
// logged.
func NewResolver(log *util.Logger, dryRun bool) *Resolver {
	if log == nil {
		log = util.Nop()
	}
	return &Resolver{log: log, retryConfig: util.DefaultRetryConfig(), dryRun: dryRun}
}

// Resolve executes one planned move: renames the source directory into
// its bucket under DUPLICATES_DIR and writes a .duplicate_info.txt
// sidecar describing the keeper, reason, and scores.
func (r *Resolver) Resolve(move PlannedMove) error {
	if r.dryRun {
		r.log.Info("-", "dry-run: would quarantine %s to %s (%s)", move.Member.AlbumPath, move.DestDir, move.Reason)
		return nil
	}

	if _, err := os.Stat(move.DestDir); err == nil {
		return fmt.Errorf("quarantine destination exists %s: %w", move.DestDir, xerr.DuplicateResolutionConflict)
	}

	if err := util.RetryableMkdirAll(filepath.Dir(move.DestDir), 0o755, r.retryConfig); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}
	if err := util.RetryableRename(move.Member.AlbumPath, move.DestDir, r.retryConfig); err != nil {
		return fmt.Errorf("quarantine move %s: %w", move.Member.AlbumPath, err)
	}

	if err := writeSidecar(move); err != nil {
		r.log.Warn("-", "quarantine sidecar for %s: %v", move.DestDir, err)
	}

	r.log.Info("-", "quarantined %s -> %s (%s, score %.2f)", move.Member.AlbumPath, move.DestDir, move.Bucket, move.Score)
	return nil
}

// writeSidecar writes the human-readable .duplicate_info.txt spec §4.7
// requires beside the quarantined album, using humanize for the size
// fields a human reviewing the quarantine directory reads; the duration
// uses time.Duration's own formatting.
func writeSidecar(move PlannedMove) error {
	path := filepath.Join(move.DestDir, ".duplicate_info.txt")
	var b strings.Builder
	fmt.Fprintf(&b, "keeper: %s\n", move.Keeper.AlbumPath)
	fmt.Fprintf(&b, "reason: %s\n", move.Reason)
	fmt.Fprintf(&b, "bucket: %s\n", move.Bucket)
	fmt.Fprintf(&b, "duplicate_score: %.3f\n", move.Score)
	fmt.Fprintf(&b, "keeper_quality_score: %.1f\n", move.Keeper.QualityScore)
	fmt.Fprintf(&b, "member_quality_score: %.1f\n", move.Member.QualityScore)
	fmt.Fprintf(&b, "keeper_size: %s\n", humanize.Bytes(uint64(move.Keeper.TotalSize)))
	fmt.Fprintf(&b, "member_size: %s\n", humanize.Bytes(uint64(move.Member.TotalSize)))
	fmt.Fprintf(&b, "member_duration: %s\n", (time.Duration(move.Member.DurationMs) * time.Millisecond).String())
	fmt.Fprintf(&b, "quarantined_at: %s\n", time.Now().UTC().Format(time.RFC3339))
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// BuildGroupRow summarizes group into the DB row shape, with the
// duplicate_score taken as the mean pairwise score of non-keeper
// members against the keeper.
func BuildGroupRow(group Group, groupHash string) (store.GroupRow, []store.MemberRow) {
	var totalSize int64
	var scoreSum float64
	members := make([]store.MemberRow, 0, len(group.Members))
	for _, m := range group.Members {
		totalSize += m.TotalSize
		if m.ID != group.Keeper.ID {
			scoreSum += group.Scores[m.ID]
		}
		members = append(members, store.MemberRow{
			FingerprintID:     m.ID,
			IsRecommendedKeep: m.ID == group.Keeper.ID,
		})
	}
	avgScore := 0.0
	if n := len(group.Members) - 1; n > 0 {
		avgScore = scoreSum / float64(n)
	}
	return store.GroupRow{
		GroupHash:      groupHash,
		AlbumCount:     len(group.Members),
		TotalSize:      totalSize,
		BestQualityID:  group.Keeper.ID,
		DuplicateScore: avgScore,
	}, members
}
