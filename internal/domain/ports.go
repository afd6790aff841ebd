package domain

import "context"

// Recognizer is the speech-to-text engine abstraction. Implementations
// wrap a concrete backend (local Whisper, a cloud streaming API, a fake
// in tests). The engine runs in continuous mode: once started it keeps
// emitting results until stopped or it ends on its own.
//
// Events fire from the engine's own goroutine; handlers must not block.
type Recognizer interface {
	// Start begins recognition. Returns ErrAlreadyStarted if the engine
	// is already running (callers should treat that as success).
	Start() error
	// Stop halts recognition. The engine fires OnEnd when it has
	// actually stopped. Safe to call when not running.
	Stop()
	// Bind registers the event handlers. Must be called before Start.
	Bind(ev RecognizerEvents)
}

// RecognizerEvents carries the engine lifecycle callbacks. Any handler
// may be nil.
type RecognizerEvents struct {
	OnStart func()
	// OnResult delivers a transcript. Index is the position of the
	// result within the engine's current batch; consumers track it to
	// avoid rescanning interim text they have already seen.
	OnResult func(transcript string, isFinal bool, index int)
	OnError  func(kind RecogError)
	OnEnd    func()
}

// RecogError classifies recognition engine failures. The controller's
// restart policy keys off this.
type RecogError int

const (
	RecogErrOther RecogError = iota
	RecogErrPermissionDenied
	RecogErrDeviceUnavailable
	RecogErrNetwork
	RecogErrNoSpeech
	RecogErrAborted
)

// String returns a human-readable error kind.
func (e RecogError) String() string {
	switch e {
	case RecogErrPermissionDenied:
		return "permission-denied"
	case RecogErrDeviceUnavailable:
		return "device-unavailable"
	case RecogErrNetwork:
		return "network"
	case RecogErrNoSpeech:
		return "no-speech"
	case RecogErrAborted:
		return "aborted"
	default:
		return "other"
	}
}

// Fatal reports whether this error kind permanently disables listening.
func (e RecogError) Fatal() bool {
	return e == RecogErrPermissionDenied || e == RecogErrDeviceUnavailable
}

// LLM is a single-turn text completion service. No conversation memory
// is kept by the backend; callers re-send all context in the prompt.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TTSClient converts text into playable audio bytes (WAV).
type TTSClient interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioPlayer plays synthesized audio. Play blocks until playback ends
// or Stop is called from another goroutine.
type AudioPlayer interface {
	Play(wav []byte) error
	Stop()
}

// OfflineSpeaker is a local, network-free speech synthesis engine. Used
// only as a last resort for navigation announcements.
type OfflineSpeaker interface {
	Speak(ctx context.Context, text string) error
}

// CommandFunc is an externally registered handler for an intercepted
// voice command (emergency alert, nearest safe spot). Blocking work is
// fine; the interceptor runs it off the hot path.
type CommandFunc func(ctx context.Context) error
