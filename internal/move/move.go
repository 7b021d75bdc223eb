// Package move implements the atomic directory-move executor (spec §4.5):
// an album directory is copied to a temp sibling of its destination,
// optionally renaming audio files in an all-or-nothing pass, verified by
// size and mtime, then atomically renamed into place.
package move

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/halvard/crate/internal/album"
	"github.com/halvard/crate/internal/store"
	"github.com/halvard/crate/internal/util"
	"github.com/halvard/crate/internal/xerr"
)

// Mover executes album directory moves against a single metadata store.
type Mover struct {
	meta        *store.MetadataStore
	log         *util.Logger
	dryRun      bool
	renameFiles bool
	retryConfig *util.RetryConfig
}

// Config configures a Mover.
type Config struct {
	Meta        *store.MetadataStore
	Log         *util.Logger
	DryRun      bool
	RenameFiles bool // spec §4.5 rename_audio_files_on_move
	RetryConfig *util.RetryConfig
}

// New builds a Mover. A nil RetryConfig falls back to util.DefaultRetryConfig,
// tuned per-call by Move's NAS auto-detection.
func New(cfg Config) *Mover {
	return &Mover{
		meta:        cfg.Meta,
		log:         cfg.Log,
		dryRun:      cfg.DryRun,
		renameFiles: cfg.RenameFiles,
		retryConfig: cfg.RetryConfig,
	}
}

// Result reports the outcome of a single directory move.
type Result struct {
	OperationID string
	Dest        string
	BytesMoved  int64
	FilesMoved  int
}

// Move executes the full move contract for a, whose SourcePath and NewPath
// must already be populated (NewPath typically built by internal/organize).
// It sets a.MoveOpID once the checks pass, before the move itself, and
// returns a Result on success.
func (m *Mover) Move(ctx context.Context, a *album.Album) (*Result, error) {
	if a.NewPath == "" {
		return nil, fmt.Errorf("move: album %s has no destination path", a.SourcePath)
	}
	if _, err := os.Stat(a.SourcePath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", xerr.SourceVanished, a.SourcePath, err)
	}
	if _, err := os.Stat(a.NewPath); err == nil {
		return nil, fmt.Errorf("%w: %s", xerr.DestExists, a.NewPath)
	}

	opID := uuid.NewString()
	a.MoveOpID = opID

	retryCfg := m.retryConfig
	if retryCfg == nil {
		if util.IsNetworkPath(a.SourcePath) || util.IsNetworkPath(filepath.Dir(a.NewPath)) {
			retryCfg = util.NASRetryConfig()
		} else {
			retryCfg = util.DefaultRetryConfig()
		}
	}

	now := time.Now().UTC()
	op := store.MoveOperation{
		ID:        opID,
		Source:    a.SourcePath,
		Destination: a.NewPath,
		Status:    store.MoveStatusInProgress,
		StartedAt: now,
	}

	if m.meta != nil {
		if err := m.meta.InsertMoveOperation(m.meta.DB(), op); err != nil {
			return nil, fmt.Errorf("move: record start: %w", err)
		}
	}

	if m.dryRun {
		if m.log != nil {
			m.log.Info("-", "DRY-RUN: would move %s -> %s", a.SourcePath, a.NewPath)
		}
		m.complete(op, store.MoveStatusCommitted, "")
		return &Result{OperationID: opID, Dest: a.NewPath}, nil
	}

	result, err := m.execute(ctx, a, retryCfg)
	if err != nil {
		m.complete(op, store.MoveStatusFailed, err.Error())
		return nil, err
	}

	m.complete(op, store.MoveStatusCommitted, "")
	if m.log != nil {
		m.log.Info("-", "moved %s -> %s (%d files, %s)", a.SourcePath, a.NewPath, result.FilesMoved, humanize.Bytes(uint64(result.BytesMoved)))
	}
	return result, nil
}

func (m *Mover) complete(op store.MoveOperation, status, errMsg string) {
	if m.meta == nil {
		return
	}
	done := time.Now().UTC()
	op.Status = status
	op.Error = errMsg
	op.CompletedAt = &done
	if err := m.meta.UpdateMoveOperationStatus(m.meta.DB(), op.ID, status, errMsg, &done); err != nil && m.log != nil {
		m.log.Warn("-", "failed to update move_operation %s: %v", op.ID, err)
	}
}

// execute does the real work: copy to a temp sibling, verify, rename.
func (m *Mover) execute(ctx context.Context, a *album.Album, retryCfg *util.RetryConfig) (*Result, error) {
	destDir := filepath.Dir(a.NewPath)
	if err := util.RetryableMkdirAll(destDir, 0o755, retryCfg); err != nil {
		return nil, fmt.Errorf("%w: create dest parent: %v", xerr.CopyFailed, err)
	}

	tempDest := a.NewPath + ".tmp." + a.MoveOpID

	renameEligible := m.renameFiles && allTracksRenameable(a)

	var bytesMoved int64
	var filesMoved int

	walkErr := filepath.Walk(a.SourcePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, err := filepath.Rel(a.SourcePath, path)
		if err != nil {
			return err
		}

		destName := rel
		if info.Mode().IsRegular() && renameEligible {
			destName = m.renamedFileName(a, rel)
		}
		destPath := filepath.Join(tempDest, destName)

		if info.IsDir() {
			return util.RetryableMkdirAll(destPath, info.Mode().Perm()|0o700, retryCfg)
		}

		n, err := copyFilePreserving(path, destPath, info, retryCfg)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", xerr.CopyFailed, rel, err)
		}
		bytesMoved += n
		filesMoved++
		return nil
	})
	if walkErr != nil {
		os.RemoveAll(tempDest)
		return nil, walkErr
	}

	if err := verifyTree(a.SourcePath, tempDest, renameEligible); err != nil {
		os.RemoveAll(tempDest)
		return nil, fmt.Errorf("%w: %v", xerr.VerifyFailed, err)
	}

	if err := util.RetryableRename(tempDest, a.NewPath, retryCfg); err != nil {
		os.RemoveAll(tempDest)
		return nil, fmt.Errorf("%w: %v", xerr.RenameFailed, err)
	}

	if err := os.RemoveAll(a.SourcePath); err != nil && m.log != nil {
		m.log.Warn("-", "failed to remove source directory %s after move: %v", a.SourcePath, err)
	}

	return &Result{Dest: a.NewPath, BytesMoved: bytesMoved, FilesMoved: filesMoved}, nil
}

// allTracksRenameable reports whether every track in a carries the four
// fields the rename template needs (track number, title, album title,
// artist). The rename pass is all-or-nothing per album (Open Question 4):
// if any track fails the check, no track in the directory is renamed and
// every file keeps its source name.
func allTracksRenameable(a *album.Album) bool {
	if a.AlbumTitle == "" || a.Artist == "" || len(a.Tracks) == 0 {
		return false
	}
	for _, t := range a.Tracks {
		if t.TrackNumber == 0 || t.Title == "" {
			return false
		}
	}
	return true
}

// renamedFileName applies the "NN - {title} - {album} - {artist}.{ext}"
// rename template. Only called once allTracksRenameable has confirmed every
// track in the album qualifies.
func (m *Mover) renamedFileName(a *album.Album, rel string) string {
	ext := filepath.Ext(rel)
	if !album.IsRecognized(strings.TrimPrefix(ext, ".")) {
		return rel
	}
	for _, t := range a.Tracks {
		if filepath.Base(t.FilePath) == filepath.Base(rel) {
			name := fmt.Sprintf("%02d - %s - %s - %s%s", t.TrackNumber, t.Title, a.AlbumTitle, a.Artist, ext)
			return filepath.Join(filepath.Dir(rel), sanitizeFileName(name))
		}
	}
	return rel
}

func sanitizeFileName(s string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	return replacer.Replace(s)
}

func copyFilePreserving(src, dest string, info os.FileInfo, cfg *util.RetryConfig) (int64, error) {
	srcFile, err := util.RetryableOpen(src, cfg)
	if err != nil {
		return 0, err
	}
	defer srcFile.Close()

	destFile, err := util.RetryableCreate(dest, cfg)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(destFile, srcFile)
	if cerr := destFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}

	if err := os.Chmod(dest, info.Mode().Perm()); err != nil {
		return n, err
	}
	if err := os.Chtimes(dest, info.ModTime(), info.ModTime()); err != nil {
		return n, err
	}
	return n, nil
}

// verifyTree checks that every file under src has a counterpart under
// dest with the same size and, to the second, the same mtime (spec
// §4.5's size+mtime verification). When renamed is set, file names
// legitimately differ, so only file counts and total size are compared
// instead of a path-for-path match.
func verifyTree(src, dest string, renamed bool) error {
	srcFiles, srcBytes, err := inventory(src)
	if err != nil {
		return err
	}
	destFiles, destBytes, err := inventory(dest)
	if err != nil {
		return err
	}

	if len(srcFiles) != len(destFiles) {
		return fmt.Errorf("file count mismatch: src=%d dest=%d", len(srcFiles), len(destFiles))
	}
	if srcBytes != destBytes {
		return fmt.Errorf("byte count mismatch: src=%d dest=%d", srcBytes, destBytes)
	}

	if renamed {
		return nil
	}

	for rel, size := range srcFiles {
		destSize, ok := destFiles[rel]
		if !ok {
			return fmt.Errorf("missing in dest: %s", rel)
		}
		if destSize != size {
			return fmt.Errorf("size mismatch for %s: src=%d dest=%d", rel, size, destSize)
		}
		srcInfo, err := os.Lstat(filepath.Join(src, rel))
		if err != nil {
			return err
		}
		destInfo, err := os.Lstat(filepath.Join(dest, rel))
		if err != nil {
			return err
		}
		if srcInfo.ModTime().Unix() != destInfo.ModTime().Unix() {
			return fmt.Errorf("mtime mismatch for %s: src=%s dest=%s", rel, srcInfo.ModTime(), destInfo.ModTime())
		}
	}
	return nil
}

func inventory(root string) (map[string]int64, int64, error) {
	files := map[string]int64{}
	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[rel] = info.Size()
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return files, total, nil
}
