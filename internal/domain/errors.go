package domain

import "errors"

// Sentinel errors used across layers.
var (
	// ErrQueueCleared rejects a voice job whose queue was flushed. Callers
	// can tell "cancelled by policy" apart from a playback failure.
	ErrQueueCleared = errors.New("voice queue cleared")

	// ErrAlreadyStarted is returned by a recognizer Start when the engine
	// is already running. The controller treats it as success.
	ErrAlreadyStarted = errors.New("recognition already started")

	// ErrRecognitionDisabled means listening has been permanently disabled
	// by a fatal engine error (permission denied, no device).
	ErrRecognitionDisabled = errors.New("recognition disabled")

	ErrNotFound       = errors.New("not found")
	ErrNotImplemented = errors.New("not implemented")
)
