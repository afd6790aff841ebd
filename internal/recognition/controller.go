// Package recognition owns the speech-recognition lifecycle: starting
// and stopping the engine, reconciling the intended listening state
// with what the engine actually reports, and restarting it after
// natural ends, errors, and deliberate processing pauses.
package recognition

import (
	"context"
	"sync"
	"time"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
)

// State is the controller's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateActive
	StateStoppingForProcessing
	StateErrorBackoff
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStoppingForProcessing:
		return "stopping-for-processing"
	case StateErrorBackoff:
		return "error-backoff"
	default:
		return "stopped"
	}
}

// Option configures the controller.
type Option func(*Controller)

// WithRestartDelay sets the debounce before a routine restart.
func WithRestartDelay(d time.Duration) Option {
	return func(c *Controller) { c.restartDelay = d }
}

// WithNetworkRetryDelay sets the longer delay used after network errors.
func WithNetworkRetryDelay(d time.Duration) Option {
	return func(c *Controller) { c.networkDelay = d }
}

// WithSpeechPoll sets the interval for the wait-for-speech-to-finish poll.
func WithSpeechPoll(d time.Duration) Option {
	return func(c *Controller) { c.speechPoll = d }
}

// WithHealthInterval sets how often the health check compares intended
// and actual engine state. Zero disables the check.
func WithHealthInterval(d time.Duration) Option {
	return func(c *Controller) { c.healthInterval = d }
}

// Controller reconciles the intended listening state with the engine's
// true running state. The engine's state may legitimately lag the
// intent — the controller's job is to close the gap with restart
// attempts. Transient errors are retried indefinitely: a companion that
// silently stops listening on a walk is worse than a noisy retry loop.
type Controller struct {
	engine     domain.Recognizer
	log        *logger.Logger
	isSpeaking func() bool

	restartDelay   time.Duration
	networkDelay   time.Duration
	speechPoll     time.Duration
	healthInterval time.Duration

	onFinal func(transcript string)
	onFatal func(kind domain.RecogError)

	mu              sync.Mutex
	ctx             context.Context
	state           State
	intended        bool // intendedListening
	engineRunning   bool
	suppressed      bool // suppressedForProcessing
	restartTimer    *time.Timer
	restartPending  bool
	restartAttempts int
	nextIndex       int // first unseen result index in the current batch
}

// New creates a controller over the given engine. isSpeaking gates
// restarts so the microphone never comes back up mid-announcement.
func New(engine domain.Recognizer, isSpeaking func() bool, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		engine:         engine,
		log:            log,
		isSpeaking:     isSpeaking,
		restartDelay:   300 * time.Millisecond,
		networkDelay:   2 * time.Second,
		speechPoll:     100 * time.Millisecond,
		healthInterval: 10 * time.Second,
		ctx:            context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}

	engine.Bind(domain.RecognizerEvents{
		OnStart:  c.handleStart,
		OnResult: c.handleResult,
		OnError:  c.handleError,
		OnEnd:    c.handleEnd,
	})
	return c
}

// SetTranscriptHandler registers the sink for finalized transcripts.
func (c *Controller) SetTranscriptHandler(fn func(transcript string)) {
	c.mu.Lock()
	c.onFinal = fn
	c.mu.Unlock()
}

// SetFatalHandler registers the callback for terminal engine errors
// (permission denied, device unavailable). After one fires, listening
// stays disabled until the host intervenes.
func (c *Controller) SetFatalHandler(fn func(kind domain.RecogError)) {
	c.mu.Lock()
	c.onFatal = fn
	c.mu.Unlock()
}

// Run binds the controller to a session context and starts the health
// check loop. Scheduled restarts and speech-wait polls die with ctx.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	interval := c.healthInterval
	c.mu.Unlock()

	if interval > 0 {
		go c.healthLoop(ctx, interval)
	}
}

// StartListening sets the intent to listen and starts the engine.
func (c *Controller) StartListening() {
	c.mu.Lock()
	c.intended = true
	c.suppressed = false
	c.mu.Unlock()
	c.attemptStart()
}

// StopListening clears the intent and stops the engine. Any scheduled
// restart is cancelled.
func (c *Controller) StopListening() {
	c.mu.Lock()
	c.intended = false
	c.cancelRestartLocked()
	c.state = StateStopped
	c.mu.Unlock()
	c.engine.Stop()
}

// PauseForProcessing stops the engine while a transcript is being
// handled, so the microphone doesn't pick up the companion's own reply.
func (c *Controller) PauseForProcessing() {
	c.mu.Lock()
	c.suppressed = true
	c.cancelRestartLocked()
	c.state = StateStoppingForProcessing
	c.mu.Unlock()
	c.engine.Stop()
	c.log.Debug("recognition: paused for processing")
}

// ResumeAfterProcessing lifts the processing suppression and restarts
// the engine, waiting out any in-progress playback first.
func (c *Controller) ResumeAfterProcessing() {
	c.mu.Lock()
	c.suppressed = false
	intended := c.intended
	c.mu.Unlock()
	if intended {
		c.smartRestart()
	}
}

// ForceRestart stops the engine, clears any scheduled restart, and
// starts fresh after a brief delay, regardless of current state. The
// manual recovery path used by the health check.
func (c *Controller) ForceRestart() {
	c.mu.Lock()
	c.cancelRestartLocked()
	c.engineRunning = false
	c.mu.Unlock()
	c.engine.Stop()
	c.log.Info("recognition: force restart")
	c.scheduleRestart(c.restartDelay, StateStarting)
}

// ── Snapshot accessors ───────────────────────────────────────────

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsListening reports the intended listening state.
func (c *Controller) IsListening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intended
}

// IsEngineRunning reports the last engine state actually observed.
func (c *Controller) IsEngineRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engineRunning
}

// RestartAttempts returns the consecutive restart attempts since the
// engine last reached Active. The observable degradation signal.
func (c *Controller) RestartAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restartAttempts
}

// ── Engine event handlers ────────────────────────────────────────

func (c *Controller) handleStart() {
	c.markActive()
	c.log.Debug("recognition: engine started")
}

func (c *Controller) handleResult(transcript string, isFinal bool, index int) {
	if !isFinal {
		return
	}

	c.mu.Lock()
	if index < c.nextIndex {
		c.mu.Unlock()
		return // already scanned this part of the batch
	}
	c.nextIndex = index + 1
	fn := c.onFinal
	c.mu.Unlock()

	if fn != nil {
		fn(transcript)
	}
}

func (c *Controller) handleEnd() {
	c.mu.Lock()
	c.engineRunning = false
	intended := c.intended
	suppressed := c.suppressed
	if !intended {
		c.state = StateStopped
	}
	c.mu.Unlock()

	c.log.Debug("recognition: engine ended (intended=%v, suppressed=%v)", intended, suppressed)
	if intended && !suppressed {
		c.smartRestart()
	}
}

func (c *Controller) handleError(kind domain.RecogError) {
	c.log.Warn("recognition: engine error: %s", kind)

	if kind.Fatal() {
		c.mu.Lock()
		c.intended = false
		c.engineRunning = false
		c.cancelRestartLocked()
		c.state = StateStopped
		fn := c.onFatal
		c.mu.Unlock()
		if fn != nil {
			fn(kind)
		}
		return
	}

	switch kind {
	case domain.RecogErrNoSpeech:
		// Not an error for restart purposes. The natural "ended"
		// callback restarts; acting here would race it.
	case domain.RecogErrAborted:
		// Expected during a controller-initiated stop. Mark not
		// running and let the restart path proceed normally.
		c.mu.Lock()
		c.engineRunning = false
		c.mu.Unlock()
	case domain.RecogErrNetwork:
		c.mu.Lock()
		c.engineRunning = false
		restartable := c.intended && !c.suppressed
		c.mu.Unlock()
		if restartable {
			c.scheduleRestart(c.networkDelay, StateErrorBackoff)
		}
	default:
		c.mu.Lock()
		c.engineRunning = false
		restartable := c.intended && !c.suppressed
		c.mu.Unlock()
		if restartable {
			c.scheduleRestart(c.restartDelay, StateErrorBackoff)
		}
	}
}

// ── Restart machinery ────────────────────────────────────────────

// smartRestart restarts the engine, but never while audio is playing:
// it waits for playback to finish (fixed-interval poll, bounded by the
// session context), then applies the usual debounce.
func (c *Controller) smartRestart() {
	c.mu.Lock()
	if c.restartPending {
		c.mu.Unlock()
		return
	}
	c.restartPending = true
	ctx := c.ctx
	c.mu.Unlock()

	if c.isSpeaking != nil && c.isSpeaking() {
		go func() {
			for c.isSpeaking() {
				select {
				case <-time.After(c.speechPoll):
				case <-ctx.Done():
					c.clearPending()
					return
				}
			}
			c.clearPending()
			c.scheduleRestart(c.restartDelay, StateStarting)
		}()
		return
	}

	c.clearPending()
	c.scheduleRestart(c.restartDelay, StateStarting)
}

func (c *Controller) clearPending() {
	c.mu.Lock()
	c.restartPending = false
	c.mu.Unlock()
}

// scheduleRestart arms the single restart timer, replacing any earlier
// one, and records the attempt.
func (c *Controller) scheduleRestart(delay time.Duration, interim State) {
	c.mu.Lock()
	c.cancelRestartLocked()
	c.state = interim
	c.restartAttempts++
	attempts := c.restartAttempts
	c.restartTimer = time.AfterFunc(delay, c.attemptRestart)
	c.mu.Unlock()

	c.log.Debug("recognition: restart scheduled in %s (attempt %d)", delay, attempts)
}

// attemptRestart fires from the restart timer.
func (c *Controller) attemptRestart() {
	c.mu.Lock()
	if !c.intended || c.suppressed {
		c.mu.Unlock()
		return
	}
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// Playback may have started while the timer was pending; defer again.
	if c.isSpeaking != nil && c.isSpeaking() {
		c.smartRestart()
		return
	}
	c.attemptStart()
}

// attemptStart drives one engine start and reconciles the response.
func (c *Controller) attemptStart() {
	c.mu.Lock()
	c.state = StateStarting
	c.nextIndex = 0
	c.mu.Unlock()

	err := c.engine.Start()
	switch {
	case err == nil:
		// Confirmation arrives via the OnStart callback; some engines
		// fire it synchronously, in which case we're already Active.
	case err == domain.ErrAlreadyStarted:
		// Start/stop acknowledgement is racy with real engines. An
		// engine that says it's already running IS running.
		c.log.Debug("recognition: start raced a running engine, treating as active")
		c.markActive()
	default:
		c.log.Warn("recognition: start failed: %v", err)
		c.mu.Lock()
		restartable := c.intended && !c.suppressed
		c.mu.Unlock()
		if restartable {
			c.scheduleRestart(c.restartDelay, StateErrorBackoff)
		}
	}
}

func (c *Controller) markActive() {
	c.mu.Lock()
	c.engineRunning = true
	c.state = StateActive
	c.restartAttempts = 0
	c.mu.Unlock()
}

func (c *Controller) cancelRestartLocked() {
	if c.restartTimer != nil {
		c.restartTimer.Stop()
		c.restartTimer = nil
	}
}

// healthLoop periodically compares intent with reality. A sustained
// mismatch with no restart in flight means an engine callback was lost;
// force a restart rather than stay deaf.
func (c *Controller) healthLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			stuck := c.intended && !c.suppressed && !c.engineRunning &&
				c.restartTimer == nil && !c.restartPending && c.state != StateStarting
			c.mu.Unlock()
			if stuck {
				c.log.Warn("recognition: health check found engine down with no restart pending")
				c.ForceRestart()
			}
		}
	}
}
