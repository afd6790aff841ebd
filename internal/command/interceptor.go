// Package command scans finalized transcripts for urgent voice
// commands before they ever reach the language model. Emergency and
// safe-spot requests must work offline and instantly; routing them
// through a chat completion would add seconds of latency exactly when
// they matter most.
package command

import (
	"context"
	"strings"
	"sync"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
	"github.com/AkshatG130501/MidnightMile2.0/internal/voice"
)

// Enqueuer is the slice of the voice queue the interceptor needs.
type Enqueuer interface {
	Enqueue(text string, category voice.Category) *voice.Job
}

// Kind identifies which rule set matched a transcript.
type Kind int

const (
	KindNone Kind = iota
	KindEmergency
	KindSafeSpot
)

// String returns a human-readable kind.
func (k Kind) String() string {
	switch k {
	case KindEmergency:
		return "emergency"
	case KindSafeSpot:
		return "safe-spot"
	default:
		return "none"
	}
}

// Phrase lists are matched as lowercase substrings against the whole
// transcript, so "please help me now" still triggers. Emergency is
// checked first; a transcript matching both is an emergency.
var emergencyPhrases = []string{
	"help me",
	"emergency",
	"i'm in danger",
	"im in danger",
	"i am in danger",
	"call for help",
	"send help",
	"alert my contacts",
	"call my contacts",
}

var safeSpotPhrases = []string{
	"safe spot",
	"safe place",
	"nearest safe",
	"somewhere safe",
	"take me somewhere safe",
	"get me somewhere safe",
}

// Interceptor matches transcripts against the urgent command rule sets
// and drives the registered callbacks, speaking acknowledgements and
// outcomes through the voice queue.
type Interceptor struct {
	queue Enqueuer
	log   *logger.Logger

	mu               sync.Mutex
	onEmergency      domain.CommandFunc
	onSafeSpot       domain.CommandFunc
	handlingSafeSpot bool
}

// New creates an interceptor. Callbacks are registered separately so
// the host can wire capabilities as they become available.
func New(queue Enqueuer, log *logger.Logger) *Interceptor {
	return &Interceptor{queue: queue, log: log}
}

// OnEmergency registers the callback that alerts trusted contacts.
func (i *Interceptor) OnEmergency(fn domain.CommandFunc) {
	i.mu.Lock()
	i.onEmergency = fn
	i.mu.Unlock()
}

// OnSafeSpot registers the callback that finds and reroutes to the
// nearest safe spot.
func (i *Interceptor) OnSafeSpot(fn domain.CommandFunc) {
	i.mu.Lock()
	i.onSafeSpot = fn
	i.mu.Unlock()
}

// IsHandlingSafeSpot reports whether a safe-spot search is in flight.
func (i *Interceptor) IsHandlingSafeSpot() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.handlingSafeSpot
}

// Match reports which rule set, if any, the transcript triggers.
func Match(transcript string) Kind {
	t := strings.ToLower(transcript)
	for _, p := range emergencyPhrases {
		if strings.Contains(t, p) {
			return KindEmergency
		}
	}
	for _, p := range safeSpotPhrases {
		if strings.Contains(t, p) {
			return KindSafeSpot
		}
	}
	return KindNone
}

// Intercept scans the transcript and, on a match, handles the command
// end to end. It returns true when the transcript was consumed and
// must not be forwarded to the language model.
func (i *Interceptor) Intercept(ctx context.Context, transcript string) bool {
	switch Match(transcript) {
	case KindEmergency:
		i.handleEmergency(ctx, transcript)
		return true
	case KindSafeSpot:
		i.handleSafeSpot(ctx, transcript)
		return true
	default:
		return false
	}
}

func (i *Interceptor) handleEmergency(ctx context.Context, transcript string) {
	i.log.Warn("command: emergency triggered by: %q", transcript)

	i.mu.Lock()
	fn := i.onEmergency
	i.mu.Unlock()

	if fn == nil {
		i.queue.Enqueue(voice.LineEmergencyUnavailable(), voice.CategorySafetyCheck)
		return
	}

	// Acknowledge immediately; the alert itself runs alongside the
	// announcement rather than after it.
	i.queue.Enqueue(voice.LineEmergencyAck(), voice.CategorySafetyCheck)

	go func() {
		if err := fn(ctx); err != nil {
			i.log.Error("command: emergency alert failed: %v", err)
			i.queue.Enqueue(voice.LineEmergencyFailed(), voice.CategorySafetyCheck)
		}
	}()
}

func (i *Interceptor) handleSafeSpot(ctx context.Context, transcript string) {
	i.log.Info("command: safe spot requested by: %q", transcript)

	i.mu.Lock()
	fn := i.onSafeSpot
	if fn == nil {
		i.mu.Unlock()
		i.queue.Enqueue(voice.LineSafeSpotUnavailable(), voice.CategorySafetyCheck)
		return
	}
	if i.handlingSafeSpot {
		i.mu.Unlock()
		i.queue.Enqueue(voice.LineSafeSpotBusy(), voice.CategorySafetyCheck)
		return
	}
	i.handlingSafeSpot = true
	i.mu.Unlock()

	i.queue.Enqueue(voice.LineSafeSpotLooking(), voice.CategorySafetyCheck)

	go func() {
		defer func() {
			i.mu.Lock()
			i.handlingSafeSpot = false
			i.mu.Unlock()
		}()

		if err := fn(ctx); err != nil {
			i.log.Error("command: safe spot search failed: %v", err)
			i.queue.Enqueue(voice.LineSafeSpotFailed(), voice.CategorySafetyCheck)
			return
		}
		i.queue.Enqueue(voice.LineSafeSpotFound(), voice.CategorySafetyCheck)
	}()
}
