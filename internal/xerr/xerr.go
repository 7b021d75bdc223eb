// Package xerr defines the error-kind taxonomy shared across the pipeline.
//
// Kinds are not Go types: every error returned by a component wraps one of
// these sentinels with fmt.Errorf("...: %w", Kind...) so callers classify
// with errors.Is while still getting a contextual message.
package xerr

import "errors"

// Kind is a sentinel error identifying a class of failure.
type Kind error

var (
	// Fatal at startup or on signals.
	ConfigInvalid = Kind(errors.New("config invalid"))
	LockHeld      = Kind(errors.New("instance lock held"))
	Interrupted   = Kind(errors.New("interrupted"))

	// Database.
	DbLocked       = Kind(errors.New("database locked"))
	DbInaccessible = Kind(errors.New("database inaccessible"))

	// Per-album, non-fatal.
	NoAudio          = Kind(errors.New("no recognized audio file"))
	TagReadTimeout   = Kind(errors.New("tag read timeout"))
	MalformedSidecar = Kind(errors.New("malformed sidecar"))
	ArtistInvalid    = Kind(errors.New("artist invalid"))

	EnrichmentUnavailable  = Kind(errors.New("enrichment unavailable"))
	EnrichmentLowConfidence = Kind(errors.New("enrichment confidence below threshold"))

	// Move executor.
	DestExists     = Kind(errors.New("destination already exists"))
	VerifyFailed   = Kind(errors.New("verification failed"))
	CopyFailed     = Kind(errors.New("copy failed"))
	RenameFailed   = Kind(errors.New("rename failed"))
	SourceVanished = Kind(errors.New("source vanished"))
	Cancelled      = Kind(errors.New("cancelled"))

	// Duplicate engine.
	DuplicateResolutionConflict = Kind(errors.New("duplicate resolution conflict"))
)

// Is reports whether err wraps the given kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}

// Fatal reports whether kind terminates the process rather than just the
// current album/group, per the propagation policy in spec §7.
func Fatal(kind Kind) bool {
	switch kind {
	case ConfigInvalid, LockHeld, Interrupted, DbInaccessible:
		return true
	default:
		return false
	}
}
