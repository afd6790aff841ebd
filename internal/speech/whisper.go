// Package speech provides the companion's audio edge: cloud TTS, local
// playback, an offline fallback voice, and whisper-based recognition.
package speech

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
)

// Compile-time interface check.
var _ domain.Recognizer = (*WhisperListener)(nil)

// envAnnotation matches whisper environmental annotations like
// "(keyboard clicking)", "[laughter]", "(speaking French)", etc.
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z\s]*[\)\]]`)

// ListenerOption configures the WhisperListener.
type ListenerOption func(*WhisperListener)

// WithChunkDuration sets how long each recording chunk lasts.
func WithChunkDuration(d time.Duration) ListenerOption {
	return func(l *WhisperListener) { l.chunkDur = d }
}

// WithChunkGap sets the pause between recording chunks.
func WithChunkGap(d time.Duration) ListenerOption {
	return func(l *WhisperListener) { l.chunkGap = d }
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) ListenerOption {
	return func(l *WhisperListener) { l.tempDir = dir }
}

// WhisperListener is a continuous speech recognizer backed by a local
// Whisper model. It records fixed-length chunks from the microphone,
// transcribes each one, and reports every non-empty transcription as a
// final result. There is no wake word: on a night walk the companion
// listens the whole time it is told to.
type WhisperListener struct {
	whisperBin string
	modelPath  string
	tempDir    string
	chunkDur   time.Duration
	chunkGap   time.Duration
	log        *logger.Logger

	mu      sync.Mutex
	ev      domain.RecognizerEvents
	running bool
	binErr  error
	cancel  context.CancelFunc
}

// NewWhisperListener creates a continuous voice listener.
//
//   - whisperBin: path to the whisper-cli executable
//   - modelPath:  path to the GGML model file
func NewWhisperListener(whisperBin, modelPath string, log *logger.Logger, opts ...ListenerOption) *WhisperListener {
	l := &WhisperListener{
		whisperBin: whisperBin,
		modelPath:  modelPath,
		tempDir:    ".mile-stt",
		chunkDur:   3 * time.Second,
		chunkGap:   200 * time.Millisecond,
		log:        log,
	}
	for _, opt := range opts {
		opt(l)
	}

	if _, err := exec.LookPath(l.whisperBin); err != nil {
		log.Error("whisper: binary %q not found in PATH: %v", l.whisperBin, err)
		l.binErr = err
	}
	return l
}

// Bind registers the event callbacks. Must be called before Start.
func (l *WhisperListener) Bind(ev domain.RecognizerEvents) {
	l.mu.Lock()
	l.ev = ev
	l.mu.Unlock()
}

// Start begins the continuous record-transcribe loop. Returns
// domain.ErrAlreadyStarted if the listener is already running.
func (l *WhisperListener) Start() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	if l.binErr != nil {
		ev := l.ev
		l.mu.Unlock()
		// Missing binary is not recoverable by retrying; report it as
		// a terminal device problem before failing the start.
		if ev.OnError != nil {
			ev.OnError(domain.RecogErrDeviceUnavailable)
		}
		return l.binErr
	}
	l.running = true
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.mu.Unlock()

	go l.run(ctx)
	return nil
}

// Stop ends the listening loop. Idempotent; the OnEnd callback fires
// once the loop actually exits.
func (l *WhisperListener) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (l *WhisperListener) run(ctx context.Context) {
	l.mu.Lock()
	ev := l.ev
	l.mu.Unlock()

	if ev.OnStart != nil {
		ev.OnStart()
	}
	l.log.Info("whisper: listening (chunk=%s)", l.chunkDur)

	index := 0
	for {
		select {
		case <-ctx.Done():
			l.finish(ev)
			return
		default:
		}

		text, err := l.recordChunk(ctx, l.chunkDur)
		if err != nil {
			l.log.Error("whisper: chunk failed: %v", err)
			if ev.OnError != nil {
				ev.OnError(mapRecordError(err))
			}
			l.finish(ev)
			return
		}

		text = cleanTranscription(text)
		if text != "" {
			l.log.Debug("whisper: heard %q", text)
			if ev.OnResult != nil {
				ev.OnResult(text, true, index)
			}
			index++
		}

		select {
		case <-time.After(l.chunkGap):
		case <-ctx.Done():
			l.finish(ev)
			return
		}
	}
}

func (l *WhisperListener) finish(ev domain.RecognizerEvents) {
	l.mu.Lock()
	l.running = false
	l.cancel = nil
	l.mu.Unlock()

	l.log.Info("whisper: stopped")
	if ev.OnEnd != nil {
		ev.OnEnd()
	}
}

// recordChunk does one record-and-transcribe cycle and returns the raw
// transcription.
func (l *WhisperListener) recordChunk(ctx context.Context, duration time.Duration) (string, error) {
	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	verbose := l.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(
		l.whisperBin,
		l.modelPath,
		l.tempDir,
		"wav",
		callback,
		verbose,
	)
	if err != nil {
		return "", err
	}

	if err := t.Start(); err != nil {
		return "", err
	}

	select {
	case <-time.After(duration):
	case <-ctx.Done():
		t.Stop()
		wg.Wait()
		return "", nil
	}

	t.Stop()
	wg.Wait()

	return result, nil
}

// mapRecordError sorts a recording failure into the recognizer error
// taxonomy based on what the underlying tooling reported.
func mapRecordError(err error) domain.RecogError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"):
		return domain.RecogErrPermissionDenied
	case strings.Contains(msg, "device") || strings.Contains(msg, "no such file"):
		return domain.RecogErrDeviceUnavailable
	default:
		return domain.RecogErrOther
	}
}

// ── Transcription cleanup ────────────────────────────────────────

// cleanTranscription strips whitespace, normalizes newlines, and
// removes common whisper artifacts like "[BLANK_AUDIO]", "(silence)",
// etc. Artifacts are stripped from anywhere in the text, not just as
// exact full-string matches.
func cleanTranscription(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)

	// Junk patterns to strip from anywhere in the text.
	junkPatterns := []string{
		"[BLANK_AUDIO]",
		"[BLANK AUDIO]",
		"(silence)",
		"[silence]",
		"(no speech)",
		"[no speech]",
		"[Music]",
		"(music)",
		"(footsteps)",
		"(wind blowing)",
		"(traffic)",
		"(car passing)",
		"(dog barking)",
		"(birds chirping)",
		"(breathing)",
		"(sighing)",
		"(coughing)",
		"(static)",
		"(background noise)",
		"(inaudible)",
		"(unintelligible)",
	}
	for _, j := range junkPatterns {
		s = strings.ReplaceAll(s, j, "")
		s = strings.ReplaceAll(s, strings.ToLower(j), "")
		s = strings.ReplaceAll(s, strings.ToUpper(j), "")
	}

	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	s = strings.TrimSpace(s)

	// Catch-all: strip any remaining (parenthesized) or [bracketed]
	// environmental annotations whisper may produce.
	s = envAnnotation.ReplaceAllString(s, "")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	s = strings.TrimSpace(s)

	// If what remains is just a known hallucination, discard entirely.
	hallucinations := []string{
		"...",
		"you",
		"Thank you.",
		"Thanks for watching!",
		"Thank you for watching.",
		"Bye.",
		"Bye!",
		"The end.",
	}
	lower := strings.ToLower(s)
	for _, h := range hallucinations {
		if strings.ToLower(h) == lower {
			return ""
		}
	}

	// Strip whisper timestamp prefixes like "[00:00:00.000 --> 00:00:05.000]"
	if strings.HasPrefix(s, "[") {
		if idx := strings.Index(s, "]"); idx != -1 && idx < 40 {
			rest := strings.TrimSpace(s[idx+1:])
			if rest != "" {
				return rest
			}
		}
	}

	return s
}
