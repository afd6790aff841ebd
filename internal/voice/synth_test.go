package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
)

type fakeTTS struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return []byte("wav:" + text), nil
}

func (f *fakeTTS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePlayer struct {
	mu      sync.Mutex
	events  []string // "stop" and "play" in call order
	block   chan struct{}
	playErr error
}

func (f *fakePlayer) Play(wav []byte) error {
	f.mu.Lock()
	f.events = append(f.events, "play")
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.playErr
}

func (f *fakePlayer) Stop() {
	f.mu.Lock()
	f.events = append(f.events, "stop")
	f.mu.Unlock()
}

func (f *fakePlayer) sequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type fakeOffline struct {
	mu     sync.Mutex
	spoken []string
	fail   error
}

func (f *fakeOffline) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.spoken = append(f.spoken, text)
	return nil
}

func TestSynthesizerStopsPreviousAudioFirst(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	player := &fakePlayer{}
	s := NewSynthesizer(&fakeTTS{}, player, log)

	if err := s.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("speak: %v", err)
	}

	seq := player.sequence()
	if len(seq) != 2 || seq[0] != "stop" || seq[1] != "play" {
		t.Fatalf("call order %v, want [stop play]", seq)
	}
}

func TestSynthesizerIsSpeakingCoversWholeRequest(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	player := &fakePlayer{block: make(chan struct{})}
	s := NewSynthesizer(&fakeTTS{}, player, log)

	done := make(chan error, 1)
	go func() { done <- s.Speak(context.Background(), "hello") }()

	// While Play is blocked, the adapter must report speaking.
	time.Sleep(30 * time.Millisecond)
	if !s.IsSpeaking() {
		t.Fatal("IsSpeaking false during playback")
	}

	close(player.block)
	if err := <-done; err != nil {
		t.Fatalf("speak: %v", err)
	}
	if s.IsSpeaking() {
		t.Fatal("IsSpeaking true after playback finished")
	}
}

func TestSynthesizerFallbackOnPrimaryFailure(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	tts := &fakeTTS{fail: errors.New("tts down")}
	offline := &fakeOffline{}
	s := NewSynthesizer(tts, &fakePlayer{}, log, WithOffline(offline))

	if err := s.SpeakWithFallback(context.Background(), "turn left"); err != nil {
		t.Fatalf("fallback path: %v", err)
	}

	offline.mu.Lock()
	defer offline.mu.Unlock()
	if len(offline.spoken) != 1 || offline.spoken[0] != "turn left" {
		t.Fatalf("offline spoke %v, want the navigation text", offline.spoken)
	}
}

func TestSynthesizerFallbackErrorWrapsBoth(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	tts := &fakeTTS{fail: errors.New("tts down")}
	offline := &fakeOffline{fail: errors.New("no espeak")}
	s := NewSynthesizer(tts, &fakePlayer{}, log, WithOffline(offline))

	err := s.SpeakWithFallback(context.Background(), "turn left")
	if err == nil {
		t.Fatal("expected error when both paths fail")
	}
	if !errors.Is(err, offline.fail) {
		t.Fatalf("error %v does not wrap the offline failure", err)
	}
}

func TestSynthesizerCacheSkipsBackend(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	tts := &fakeTTS{}
	cache := NewAudioCache("test-voice", "", log)
	s := NewSynthesizer(tts, &fakePlayer{}, log, WithCache(cache))

	ctx := context.Background()
	if err := s.Speak(ctx, "checking in"); err != nil {
		t.Fatalf("first speak: %v", err)
	}
	if err := s.Speak(ctx, "checking in"); err != nil {
		t.Fatalf("second speak: %v", err)
	}

	if tts.count() != 1 {
		t.Fatalf("backend hit %d times, want 1 (second play from cache)", tts.count())
	}
	if hits, _ := cache.Stats(); hits != 1 {
		t.Fatalf("cache hits = %d, want 1", hits)
	}
}

func TestAudioCacheVoiceChangeInvalidates(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	dir := t.TempDir()

	a := NewAudioCache("voice-a", dir, log)
	a.Put("hello", []byte("audio"))

	// Same disk directory, different voice: the old entry must not be
	// served for the new voice, but a same-voice cache reads it back.
	b := NewAudioCache("voice-b", dir, log)
	if _, ok := b.Get("hello"); ok {
		t.Fatal("cache entry leaked across voices")
	}

	a2 := NewAudioCache("voice-a", dir, log)
	data, ok := a2.Get("hello")
	if !ok || string(data) != "audio" {
		t.Fatalf("disk entry not readable for same voice (ok=%v, data=%q)", ok, data)
	}
}
