package engine

import "errors"

// ErrMissingDeck is returned by New when either deck handle is nil.
var ErrMissingDeck = errors.New("engine needs two deck handles")

// Abort reasons reported through Options.OnCrossfadeAbort and logged.
const (
	ReasonPlayRejected  = "play rejected"
	ReasonNeverReady    = "timeout — never became ready"
	ReasonUserPaused    = "user paused"
	ReasonDeckStopped   = "inactive deck stopped"
	ReasonSafetyTimeout = "safety timeout"
	ReasonDeckError     = "inactive deck error"
	ReasonHardCut       = "replaced by hard cut"
	ReasonClosed        = "engine closed"
)

// quietReason reports whether an abort was caused by the caller itself, in
// which case no fallback candidate is offered.
func quietReason(reason string) bool {
	return reason == ReasonHardCut || reason == ReasonClosed
}
