package speech

import (
	"context"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.TTSClient      = (*NoOp)(nil)
	_ domain.AudioPlayer    = (*NoOp)(nil)
	_ domain.OfflineSpeaker = (*NoOp)(nil)
)

// NoOp stands in for the TTS client, the player, and the offline
// speaker when voice output is disabled. "Synthesized" audio is the
// text itself, and playing it just logs it, so the whole pipeline stays
// exercised end to end.
type NoOp struct {
	log *logger.Logger
}

// NewNoOp creates a no-op speech provider.
func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log}
}

// Synthesize returns the text bytes unchanged.
func (n *NoOp) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return []byte(text), nil
}

// Play logs what would have been spoken.
func (n *NoOp) Play(wav []byte) error {
	n.log.Info("speech no-op: would say %q", string(wav))
	return nil
}

// Stop does nothing.
func (n *NoOp) Stop() {}

// Speak logs what the offline engine would have spoken.
func (n *NoOp) Speak(ctx context.Context, text string) error {
	n.log.Info("speech no-op (offline): would say %q", text)
	return nil
}

// Compile-time interface check.
var _ domain.Recognizer = (*NullRecognizer)(nil)

// NullRecognizer is a recognizer that hears nothing. Used when audio
// input is disabled and transcripts come from stdin instead.
type NullRecognizer struct {
	ev      domain.RecognizerEvents
	running bool
}

// NewNullRecognizer creates a recognizer that never produces results.
func NewNullRecognizer() *NullRecognizer {
	return &NullRecognizer{}
}

// Bind registers the event handlers.
func (r *NullRecognizer) Bind(ev domain.RecognizerEvents) { r.ev = ev }

// Start reports started and nothing else.
func (r *NullRecognizer) Start() error {
	if r.running {
		return domain.ErrAlreadyStarted
	}
	r.running = true
	if r.ev.OnStart != nil {
		r.ev.OnStart()
	}
	return nil
}

// Stop fires OnEnd if running.
func (r *NullRecognizer) Stop() {
	if !r.running {
		return
	}
	r.running = false
	if r.ev.OnEnd != nil {
		r.ev.OnEnd()
	}
}
