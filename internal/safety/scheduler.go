// Package safety schedules proactive check-ins: after a quiet period
// with no user activity, the companion speaks up and asks whether the
// walker is okay.
package safety

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
	"github.com/AkshatG130501/MidnightMile2.0/internal/voice"
)

// Enqueuer is the slice of the voice queue the scheduler needs.
type Enqueuer interface {
	Enqueue(text string, category voice.Category) *voice.Job
}

// Gates are the liveness probes consulted before a check-in fires. A
// check-in is only worth speaking when the user is otherwise unattended:
// mid-conversation or mid-announcement it would interrupt.
type Gates struct {
	Listening  func() bool
	Processing func() bool
	Speaking   func() bool
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithInterval sets the quiet period before a check-in. Default 90s.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithRand sets the random source for phrase selection. Tests inject a
// seeded one; nil keeps the global source.
func WithRand(r *rand.Rand) Option {
	return func(s *Scheduler) { s.rand = r }
}

// Scheduler owns a single resettable timer. Every user interaction
// pushes the next check-in out by the full interval; firing while the
// user is busy defers instead of speaking over them.
type Scheduler struct {
	queue   Enqueuer
	gates   Gates
	context func() domain.Context
	log     *logger.Logger

	interval time.Duration
	rand     *rand.Rand

	mu           sync.Mutex
	ctx          context.Context
	timer        *time.Timer
	lastActivity time.Time
	fired        int
}

// New creates a scheduler. context supplies the walk context used to
// pick between a generic check-in and a low-safety warning; it may be
// nil, in which case check-ins are always generic.
func New(queue Enqueuer, gates Gates, context func() domain.Context, log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		queue:    queue,
		gates:    gates,
		context:  context,
		log:      log,
		interval: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run binds the scheduler to a session context and arms the first
// timer. When ctx ends the timer is dropped.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.lastActivity = time.Now()
	s.mu.Unlock()
	s.Arm()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Arm (re)starts the quiet-period timer from now. At most one timer is
// ever pending; arming replaces any earlier one. Arming while the user
// isn't being listened to is a no-op, so a stopped session never
// produces ghost check-ins.
func (s *Scheduler) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(s.interval)
}

// Activity records a user interaction, resetting the quiet clock and
// the timer. Call it on every final transcript, even unhandled ones.
func (s *Scheduler) Activity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.armLocked(s.interval)
	s.mu.Unlock()
}

// Stop cancels any pending check-in.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Fired returns how many check-ins have actually been spoken.
func (s *Scheduler) Fired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

func (s *Scheduler) armLocked(d time.Duration) {
	if s.gates.Listening != nil && !s.gates.Listening() {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		return
	}
	if s.ctx != nil && s.ctx.Err() != nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, s.fire)
}

// fire runs on timer expiry and decides whether this check-in should
// actually be spoken now, later, or not at all.
func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	ctx := s.ctx
	elapsed := time.Since(s.lastActivity)
	s.mu.Unlock()

	if ctx != nil && ctx.Err() != nil {
		return
	}
	if s.gates.Listening != nil && !s.gates.Listening() {
		s.log.Debug("safety: check-in skipped, not listening")
		return
	}

	// The timer can outrun the activity clock when Arm raced an
	// Activity call. Finish the remaining quiet time instead.
	if elapsed < s.interval {
		s.mu.Lock()
		s.armLocked(s.interval - elapsed)
		s.mu.Unlock()
		return
	}

	// Never talk over the user or an in-progress announcement.
	if (s.gates.Processing != nil && s.gates.Processing()) ||
		(s.gates.Speaking != nil && s.gates.Speaking()) {
		s.log.Debug("safety: check-in deferred, user is busy")
		s.Arm()
		return
	}

	text := s.pickLine()
	s.log.Info("safety: check-in firing: %s", text)

	s.mu.Lock()
	s.fired++
	s.lastActivity = time.Now()
	s.mu.Unlock()

	job := s.queue.Enqueue(text, voice.CategorySafetyCheck)

	// Re-arm only once the check-in has actually been spoken, so a
	// congested queue doesn't stack up further check-ins behind it.
	go func() {
		waitCtx := ctx
		if waitCtx == nil {
			waitCtx = context.Background()
		}
		if err := job.Wait(waitCtx); err != nil && !errors.Is(err, domain.ErrQueueCleared) {
			s.log.Warn("safety: check-in playback failed: %v", err)
		}
		s.Arm()
	}()
}

// pickLine chooses between a generic check-in and the low-safety
// variant based on the current walk context.
func (s *Scheduler) pickLine() string {
	if s.context != nil {
		wc := s.context()
		if wc.LowSafety() {
			return voice.LineLowSafetyCheckIn(wc.SafetyScore, len(wc.DangerZones))
		}
	}
	return voice.LineCheckIn(s.rand)
}
