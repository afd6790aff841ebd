package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
)

// Compile-time interface check.
var _ Speaker = (*Synthesizer)(nil)

// SynthOption configures the Synthesizer.
type SynthOption func(*Synthesizer)

// WithOffline sets the local offline engine used as a last resort for
// navigation announcements.
func WithOffline(offline domain.OfflineSpeaker) SynthOption {
	return func(s *Synthesizer) { s.offline = offline }
}

// WithCache sets the audio cache consulted before hitting the TTS
// backend. Nil disables caching.
func WithCache(cache *AudioCache) SynthOption {
	return func(s *Synthesizer) { s.cache = cache }
}

// Synthesizer turns one queued text job into played audio: primary TTS
// backend, then the shared player. It guarantees at most one audio
// stream is active system-wide — starting a new Speak always stops the
// previous stream first, before requesting new audio.
type Synthesizer struct {
	tts     domain.TTSClient
	player  domain.AudioPlayer
	offline domain.OfflineSpeaker
	cache   *AudioCache
	log     *logger.Logger

	mu       sync.Mutex
	speaking bool // request in flight or audio playing
}

// NewSynthesizer creates a synthesis adapter over the given backend and
// player.
func NewSynthesizer(tts domain.TTSClient, player domain.AudioPlayer, log *logger.Logger, opts ...SynthOption) *Synthesizer {
	s := &Synthesizer{tts: tts, player: player, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsSpeaking reports whether a synthesis request is in flight or audio
// is actively playing. True from the moment Speak is entered, so
// callers never race the "request sent but not yet playing" window.
func (s *Synthesizer) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Stop interrupts the currently playing audio, if any. Idempotent.
func (s *Synthesizer) Stop() {
	s.player.Stop()
}

// Speak synthesizes and plays text, blocking until playback ends or is
// stopped. Any previously playing audio is stopped first.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	s.player.Stop()

	s.mu.Lock()
	s.speaking = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.speaking = false
		s.mu.Unlock()
	}()

	audio, err := s.synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesizing: %w", err)
	}
	if err := s.player.Play(audio); err != nil {
		return fmt.Errorf("playing: %w", err)
	}
	return nil
}

// SpeakWithFallback plays text via the primary backend, falling back to
// the offline engine when the primary path fails. Used for navigation
// jobs only: a missed turn instruction is worse than a rougher voice.
func (s *Synthesizer) SpeakWithFallback(ctx context.Context, text string) error {
	err := s.Speak(ctx, text)
	if err == nil {
		return nil
	}
	if s.offline == nil {
		return err
	}
	s.log.Warn("synth: primary failed, using offline fallback: %v", err)

	s.mu.Lock()
	s.speaking = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.speaking = false
		s.mu.Unlock()
	}()

	if ferr := s.offline.Speak(ctx, text); ferr != nil {
		return fmt.Errorf("offline fallback after %v: %w", err, ferr)
	}
	return nil
}

// synthesize returns audio for text, consulting the cache first.
func (s *Synthesizer) synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.cache != nil {
		if audio, ok := s.cache.Get(text); ok {
			return audio, nil
		}
	}
	audio, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(text, audio)
	}
	return audio, nil
}

// Prefetch pre-synthesizes texts in background goroutines and stores
// them in the cache, skipping anything already cached. Call it at
// startup with the canned phrase pools so acknowledgements play
// instantly. Non-blocking.
func (s *Synthesizer) Prefetch(ctx context.Context, texts ...string) {
	if s.cache == nil {
		return
	}
	for _, text := range texts {
		if text == "" || s.cache.Has(text) {
			continue
		}
		go func(t string) {
			audio, err := s.tts.Synthesize(ctx, t)
			if err != nil {
				s.log.Error("prefetch: synthesis failed: %v", err)
				return
			}
			s.cache.Put(t, audio)
			s.log.Debug("prefetch: cached %d bytes for: %s", len(audio), truncate(t, 50))
		}(text)
	}
}
