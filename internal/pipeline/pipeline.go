// Package pipeline drives a single run end to end: discover album
// directories under the source root, skip the ones the incremental scan
// already knows are unchanged, and push the rest through extraction,
// enrichment, organization, and the atomic move executor, one worker per
// album with no nested parallelism inside an album (spec §4.1, §4.8,
// §5).
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/halvard/crate/internal/album"
	"github.com/halvard/crate/internal/config"
	"github.com/halvard/crate/internal/dup"
	"github.com/halvard/crate/internal/enrich"
	"github.com/halvard/crate/internal/extract"
	"github.com/halvard/crate/internal/move"
	"github.com/halvard/crate/internal/organize"
	"github.com/halvard/crate/internal/report"
	"github.com/halvard/crate/internal/store"
	"github.com/halvard/crate/internal/util"
	"github.com/halvard/crate/internal/worker"
	"github.com/halvard/crate/internal/xerr"
)

// Deps are the already-constructed collaborators a Driver wires
// together. None are owned by the Driver: callers open/close the stores
// and loggers. Organize is built by New itself, not supplied here: its
// hybrid-mode release counts must share the same counter Driver updates
// after every commit (see releases.go), so callers cannot construct a
// compatible *organize.Engine ahead of time.
type Deps struct {
	Cfg    *config.Config
	State  *store.StateStore
	Meta   *store.MetadataStore
	Dup    *store.DuplicatesStore
	Log    *util.Logger
	Enrich *enrich.Manager // nil disables enrichment entirely
	Mover  *move.Mover
	Locks  *worker.Locks
	Events *report.EventLogger
	Progress *report.ProgressEmitter // nil disables PROGRESS lines
}

// Summary reports what a single Run accomplished.
type Summary struct {
	Total       int
	OK          int
	Skipped     int
	NeedsReview int
	Failed      int
	BytesMoved  int64
	Duration    time.Duration
}

// Driver owns the run's transient state: the release counter organize
// mode selection reads from, and the organization engine built around it.
type Driver struct {
	deps     Deps
	releases *releaseCounter
	organize *organize.Engine
}

// New builds a Driver from deps, constructing the organization engine
// around a release counter the Driver keeps updated as albums commit.
func New(deps Deps) (*Driver, error) {
	releases := newReleaseCounter(deps.Meta)
	engine, err := organize.New(deps.Cfg, organize.ReleaseCounts{
		ArtistReleases: releases.ArtistReleases,
		LabelReleases:  releases.LabelReleases,
	})
	if err != nil {
		return nil, fmt.Errorf("build organize engine: %w", err)
	}
	return &Driver{
		deps:     deps,
		releases: releases,
		organize: engine,
	}, nil
}

// Run discovers, filters, and processes every album under cfg.SourceDir,
// honoring cooperative cancellation: once ctx is done, no new album
// starts, in-flight albums finish, and the run's checkpoint is written
// before returning.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	cfg := d.deps.Cfg

	all, err := DiscoverAlbumDirs(ctx, cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("discover album directories: %w", err)
	}

	var todo []string
	for _, dir := range all {
		skip, err := d.deps.State.ShouldSkip(dir, cfg.Incremental)
		if err != nil {
			if d.deps.Log != nil {
				d.deps.Log.Warn("-", "ShouldSkip(%s): %v", dir, err)
			}
			todo = append(todo, dir)
			continue
		}
		if skip {
			continue
		}
		todo = append(todo, dir)
	}

	summary := &Summary{Total: len(todo)}

	threshold := cfg.LargeCollectionThreshold
	if threshold <= 0 {
		threshold = worker.StreamingThreshold
	}

	if len(todo) > threshold {
		err = d.runStreaming(ctx, todo, summary)
	} else {
		err = d.runBatch(ctx, todo, summary, 0)
	}

	if ctx.Err() != nil {
		done := summary.OK + summary.Skipped + summary.NeedsReview + summary.Failed
		if werr := d.deps.State.WriteCheckpoint(store.Checkpoint{
			Position:  done,
			Processed: done,
			Total:     len(todo),
		}); werr != nil && d.deps.Log != nil {
			d.deps.Log.Warn("-", "write checkpoint: %v", werr)
		}
	}

	summary.Duration = time.Since(start)
	d.cleanupEmptySources(cfg.SourceDir)
	return summary, err
}

// runStreaming processes todo in bounded batches, writing a checkpoint
// after each one (spec §4.8's streaming mode for large collections).
func (d *Driver) runStreaming(ctx context.Context, todo []string, summary *Summary) error {
	cfg := d.deps.Cfg
	size := cfg.BatchSizeOverride
	if size <= 0 {
		memMB := cfg.MemoryLimitMB
		if memMB <= 0 {
			memMB = 2048 // no memory_limit_mb configured; assume a modest default
		}
		size = worker.BatchSize(memMB, runtime.NumCPU(), len(todo), false)
	}

	processed := 0
	for start := 0; start < len(todo); start += size {
		if ctx.Err() != nil {
			break
		}
		end := start + size
		if end > len(todo) {
			end = len(todo)
		}
		if err := d.runBatch(ctx, todo[start:end], summary, processed); err != nil {
			return err
		}
		processed += end - start
		if err := d.deps.State.WriteCheckpoint(store.Checkpoint{
			Position:  end,
			Processed: processed,
			Total:     len(todo),
		}); err != nil && d.deps.Log != nil {
			d.deps.Log.Warn("-", "write checkpoint: %v", err)
		}
	}
	return nil
}

// runBatch pushes items through a worker pool and folds results into
// summary. offset lets runStreaming report a running "processed" count
// on PROGRESS lines across batches.
func (d *Driver) runBatch(ctx context.Context, items []string, summary *Summary, offset int) error {
	pool := worker.New[string](d.deps.Cfg.WorkerCount)

	in := make(chan string, len(items))
	for _, item := range items {
		in <- item
	}
	close(in)

	total := summary.Total
	processed := offset
	results := pool.Run(ctx, in, func(ctx context.Context, dir string) error {
		return d.processAlbum(ctx, dir, summary)
	})

	for res := range results {
		processed++
		status := classifyErr(res.Err)
		switch status {
		case store.StatusOK:
			summary.OK++
		case store.StatusSkipped:
			summary.Skipped++
		case store.StatusNeedsReview:
			summary.NeedsReview++
		default:
			summary.Failed++
		}
		if d.deps.Progress != nil {
			d.deps.Progress.Emit(report.EventType(status), res.Item, processed, total)
		}
	}
	return nil
}

// classifyErr maps a processAlbum error (or nil) to a terminal status.
// processAlbum reports the skipped/needs-review outcomes as errors
// wrapping the sentinels below, so the worker pool's Result.Err still
// carries the reason into logs; any other error is a failure.
func classifyErr(err error) string {
	switch {
	case err == nil:
		return store.StatusOK
	case xerr.Is(err, xerr.NoAudio):
		return store.StatusSkipped
	case xerr.Is(err, xerr.ArtistInvalid):
		return store.StatusNeedsReview
	default:
		return store.StatusFailed
	}
}

// processAlbum runs one album through extract -> enrich -> organize ->
// move -> record, in that strict order (spec §4.8: "a single worker
// processes one album's full pipeline before picking up the next").
func (d *Driver) processAlbum(ctx context.Context, dir string, summary *Summary) error {
	log := d.deps.Log

	contentHash, hashErr := store.ContentHash(dir)

	a, err := extract.Directory(ctx, log, dir)
	if err != nil {
		d.recordOutcome(dir, contentHash, hashErr, store.StatusSkipped, nil, summary)
		if d.deps.Events != nil {
			d.deps.Events.LogSkipped(dir, err.Error())
		}
		return err
	}

	if a.NeedsReview {
		d.persistAlbum(a, store.StatusNeedsReview)
		d.recordOutcome(dir, contentHash, hashErr, store.StatusNeedsReview, nil, summary)
		if d.deps.Events != nil {
			d.deps.Events.LogNeedsReview(dir, "artist could not be determined")
		}
		return fmt.Errorf("%s: %w", dir, xerr.ArtistInvalid)
	}

	d.enrichAlbum(ctx, a)

	a.Fingerprint = dup.Fingerprint(a)
	a.MetadataHash = dup.MetadataHash(a)
	a.Quality = album.DeriveQuality(a.Tracks)

	d.deps.Locks.DB.Lock()
	_, fperr := d.deps.Dup.UpsertFingerprint(store.FingerprintRow{
		AlbumPath:    dir,
		Fingerprint:  a.Fingerprint,
		MetadataHash: a.MetadataHash,
		DurationMs:   totalDurationMs(a),
		FileCount:    a.TrackCount,
		TotalSize:    a.TotalBytes,
		QualityScore: dup.QualityScore(a),
		Format:       dominantFormat(a),
		AvgBitrate:   a.AvgBitrateKbps,
	})
	d.deps.Locks.DB.Unlock()
	if fperr != nil && log != nil {
		log.Warn("-", "upsert fingerprint for %s: %v", dir, fperr)
	}

	a.NewPath = d.organize.BuildPath(d.deps.Cfg.DestinationDir, a)

	result, err := d.deps.Mover.Move(ctx, a)
	if err != nil {
		d.persistAlbum(a, store.StatusFailed)
		d.recordOutcome(dir, contentHash, hashErr, store.StatusFailed, nil, summary)
		if d.deps.Events != nil {
			d.deps.Events.LogError(report.EventMoved, dir, err)
		}
		return err
	}

	a.ProcessedAt = time.Now().UTC()
	d.persistAlbum(a, store.StatusOK)
	d.releases.record(a.Artist, a.Label)
	d.recordOutcome(dir, contentHash, hashErr, store.StatusOK, &result.BytesMoved, summary)

	if d.deps.Events != nil {
		d.deps.Events.LogMoved(dir, a.NewPath, result.BytesMoved)
	}
	return nil
}

func (d *Driver) enrichAlbum(ctx context.Context, a *album.Album) {
	if d.deps.Enrich == nil {
		a.EnrichmentSource = album.EnrichmentNone
		return
	}

	d.deps.Locks.Enrichment.Lock()
	res, err := d.deps.Enrich.Lookup(ctx, enrich.Query{Artist: a.Artist, Album: a.AlbumTitle, Year: a.Year})
	d.deps.Locks.Enrichment.Unlock()

	if err != nil {
		a.EnrichmentSource = album.EnrichmentNone
		return
	}

	a.Confidence = res.Confidence
	if res.Release.Label != "" {
		a.Label = res.Release.Label
	}
	if res.Release.Genre != "" {
		a.Genre = res.Release.Genre
	}
	if res.Release.Year != "" {
		a.Year = res.Release.Year
	}
	switch res.Provider {
	case "primary":
		a.EnrichmentSource = album.EnrichmentPrimary
	default:
		a.EnrichmentSource = album.EnrichmentSecondary
	}

	if d.deps.Events != nil {
		d.deps.Events.LogEnriched(a.SourcePath, res.Provider, res.Confidence)
	}
}

func (d *Driver) persistAlbum(a *album.Album, status string) {
	d.deps.Locks.DB.Lock()
	defer d.deps.Locks.DB.Unlock()
	if err := d.deps.Meta.UpsertAlbumFromRecord(d.deps.Meta.DB(), a, status); err != nil && d.deps.Log != nil {
		d.deps.Log.Warn("-", "persist album %s: %v", a.SourcePath, err)
	}
}

func (d *Driver) recordOutcome(dir, contentHash string, hashErr error, status string, bytesMoved *int64, summary *Summary) {
	if hashErr != nil {
		// Directory vanished or became unreadable mid-run; record the
		// failure without a content hash so the next incremental pass
		// retries it rather than silently treating it as unchanged.
		contentHash = ""
	}
	d.deps.Locks.DB.Lock()
	defer d.deps.Locks.DB.Unlock()
	if err := d.deps.State.UpsertDirEntry(store.DirEntry{
		Path:        dir,
		ContentHash: contentHash,
		Status:      status,
	}); err != nil && d.deps.Log != nil {
		d.deps.Log.Warn("-", "record outcome for %s: %v", dir, err)
	}
	if bytesMoved != nil {
		summary.BytesMoved += *bytesMoved
	}
}

func totalDurationMs(a *album.Album) int64 {
	var total int64
	for _, t := range a.Tracks {
		total += t.DurationMs
	}
	return total
}

func dominantFormat(a *album.Album) string {
	counts := map[string]int{}
	for _, t := range a.Tracks {
		counts[t.Format]++
	}
	best, bestN := "", -1
	for f, n := range counts {
		if n > bestN {
			best, bestN = f, n
		}
	}
	return best
}

// cleanupEmptySources removes now-empty directories left behind under
// root after albums have been moved out of them (spec §4.5 supplement:
// a source tree's intermediate directories — e.g. an artist folder whose
// last album subfolder just moved — are pruned rather than left as
// litter). Only empty directories are removed; anything containing a
// leftover file is left alone.
func (d *Driver) cleanupEmptySources(root string) {
	CleanupEmptySources(root)
}

// CleanupEmptySources is the standalone form of the same pass, exported
// so the "cleanup empty" command can run it outside of a process run.
// It returns the number of directories removed.
func CleanupEmptySources(root string) int {
	total := 0
	for {
		removed := false
		_ = filepath.WalkDir(root, func(path string, e os.DirEntry, err error) error {
			if err != nil || !e.IsDir() || path == root {
				return nil
			}
			entries, rerr := os.ReadDir(path)
			if rerr != nil || len(entries) != 0 {
				return nil
			}
			if rerr := os.Remove(path); rerr == nil {
				removed = true
				total++
			}
			return nil
		})
		if !removed {
			return total
		}
	}
}
