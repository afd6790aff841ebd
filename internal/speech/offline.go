package speech

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
)

// Compile-time interface check.
var _ domain.OfflineSpeaker = (*ESpeak)(nil)

// ESpeakOption configures the espeak speaker.
type ESpeakOption func(*ESpeak)

// WithESpeakBin sets the espeak executable name or path.
func WithESpeakBin(bin string) ESpeakOption {
	return func(e *ESpeak) { e.bin = bin }
}

// WithESpeakRate sets the speaking rate in words per minute.
func WithESpeakRate(wpm int) ESpeakOption {
	return func(e *ESpeak) { e.rate = wpm }
}

// ESpeak speaks text through the local espeak binary. Quality is
// nowhere near the cloud voice, but it works with no network at all,
// which is the whole point: navigation must keep talking in a dead
// zone.
type ESpeak struct {
	bin  string
	rate int
	log  *logger.Logger

	mu  sync.Mutex
	cmd *exec.Cmd // in-flight process, nil when idle
}

// NewESpeak creates an offline speaker backed by espeak.
func NewESpeak(log *logger.Logger, opts ...ESpeakOption) *ESpeak {
	e := &ESpeak{
		bin:  "espeak",
		rate: 160,
		log:  log,
	}
	for _, opt := range opts {
		opt(e)
	}

	if _, err := exec.LookPath(e.bin); err != nil {
		log.Warn("espeak: binary %q not found in PATH, offline fallback unavailable: %v", e.bin, err)
	}
	return e
}

// Speak synthesizes and plays text locally, blocking until espeak
// exits or ctx is cancelled.
func (e *ESpeak) Speak(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, e.bin, "-s", fmt.Sprint(e.rate), text)

	e.mu.Lock()
	e.cmd = cmd
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.cmd = nil
		e.mu.Unlock()
	}()

	e.log.Debug("espeak: speaking %d chars", len(text))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("espeak: %w", err)
	}
	return nil
}

// Stop kills the in-flight espeak process, if any.
func (e *ESpeak) Stop() {
	e.mu.Lock()
	cmd := e.cmd
	e.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		e.log.Debug("espeak: interrupted")
	}
}
