// Package assistant wires the companion together: transcripts come in
// from recognition, urgent commands are intercepted, everything else
// goes to the language model, and every reply leaves through the voice
// queue.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
	"github.com/AkshatG130501/MidnightMile2.0/internal/voice"
)

// VoiceQueue is the slice of the voice queue the orchestrator needs.
type VoiceQueue interface {
	Start(ctx context.Context)
	Enqueue(text string, category voice.Category) *voice.Job
	Flush()
	IsBusy() bool
	Peek() (int, string)
}

// Recognition is the slice of the recognition controller the
// orchestrator needs.
type Recognition interface {
	Run(ctx context.Context)
	StartListening()
	StopListening()
	PauseForProcessing()
	ResumeAfterProcessing()
	SetTranscriptHandler(fn func(transcript string))
	SetFatalHandler(fn func(kind domain.RecogError))
	IsListening() bool
	IsEngineRunning() bool
	RestartAttempts() int
}

// CheckIns is the slice of the safety scheduler the orchestrator needs.
type CheckIns interface {
	Run(ctx context.Context)
	Activity()
	Arm()
	Stop()
}

// Commands is the slice of the command interceptor the orchestrator
// needs.
type Commands interface {
	Intercept(ctx context.Context, transcript string) bool
	IsHandlingSafeSpot() bool
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithIdlePoll sets how often the exit path checks for the voice queue
// going idle.
func WithIdlePoll(d time.Duration) Option {
	return func(o *Orchestrator) { o.idlePoll = d }
}

// Orchestrator is the companion's conversation loop. A transcript is
// either Idle or Processing; while Processing, new transcripts are
// dropped rather than queued, because a reply to thirty-second-old
// input is worse than no reply.
type Orchestrator struct {
	queue      VoiceQueue
	recog      Recognition
	checkIns   CheckIns
	commands   Commands
	llm        domain.LLM
	isSpeaking func() bool
	log        *logger.Logger

	idlePoll time.Duration

	mu         sync.Mutex
	sessionCtx context.Context
	cancel     context.CancelFunc
	processing bool
	walkCtx    domain.Context
}

// New creates an orchestrator over the given components. isSpeaking
// feeds the status snapshot; it may be nil.
func New(queue VoiceQueue, recog Recognition, checkIns CheckIns, commands Commands, llm domain.LLM, isSpeaking func() bool, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		queue:      queue,
		recog:      recog,
		checkIns:   checkIns,
		commands:   commands,
		llm:        llm,
		isSpeaking: isSpeaking,
		log:        log,
		idlePoll:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run starts a companion session: voice queue, recognition, and the
// check-in timer all come up bound to a context derived from ctx.
// Non-blocking; Dispose or cancelling ctx ends the session.
func (o *Orchestrator) Run(ctx context.Context) {
	sessionCtx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.sessionCtx = sessionCtx
	o.cancel = cancel
	o.mu.Unlock()

	o.recog.SetTranscriptHandler(o.HandleTranscript)
	o.recog.SetFatalHandler(o.handleFatal)

	o.queue.Start(sessionCtx)
	o.recog.Run(sessionCtx)
	o.recog.StartListening()
	o.checkIns.Run(sessionCtx)

	o.log.Info("assistant: session started")
}

// Dispose ends the session: listening stops, the check-in timer is
// cancelled, and pending announcements are flushed. Everything spawned
// during the session observes the cancelled context and dies with it,
// so a later Run starts clean.
func (o *Orchestrator) Dispose() {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()

	o.recog.StopListening()
	o.checkIns.Stop()
	o.queue.Flush()
	if cancel != nil {
		cancel()
	}
	o.log.Info("assistant: session disposed")
}

// HandleTranscript receives one finalized transcript. Exported so a
// text injection path (stdin debugging) can feed the same pipeline the
// recognizer does.
func (o *Orchestrator) HandleTranscript(transcript string) {
	text := strings.TrimSpace(transcript)
	// Anything this short is recognition noise, not speech.
	if len(text) <= 2 {
		return
	}

	o.mu.Lock()
	if o.processing {
		o.mu.Unlock()
		o.log.Debug("assistant: busy, dropping %q", text)
		return
	}
	o.processing = true
	ctx := o.sessionCtx
	o.mu.Unlock()

	// Only transcripts accepted for processing reset the quiet clock;
	// a dropped transcript must not push the next check-in out.
	o.checkIns.Activity()

	if ctx == nil {
		ctx = context.Background()
	}

	o.log.Info("assistant: handling %q", text)
	o.recog.PauseForProcessing()
	go o.process(ctx, text)
}

// process runs one transcript through interception or the model. The
// deferred exit path is the only way out: whatever happened, the reply
// finishes playing, Processing clears, listening resumes, and the
// check-in clock restarts.
func (o *Orchestrator) process(ctx context.Context, text string) {
	defer func() {
		o.waitQueueIdle(ctx)
		o.mu.Lock()
		o.processing = false
		o.mu.Unlock()
		o.recog.ResumeAfterProcessing()
		o.checkIns.Arm()
		o.log.Debug("assistant: back to idle")
	}()

	if o.commands.Intercept(ctx, text) {
		return
	}

	reply, err := o.llm.Complete(ctx, text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// A failed completion skips playback entirely; the exit path
		// still resumes listening and re-arms the check-in clock.
		o.log.Error("assistant: completion failed: %v", err)
		return
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return
	}
	o.queue.Enqueue(reply, voice.CategoryConversation)
}

// waitQueueIdle blocks until nothing is playing or pending, so
// listening never resumes into the companion's own voice.
func (o *Orchestrator) waitQueueIdle(ctx context.Context) {
	for o.queue.IsBusy() || (o.isSpeaking != nil && o.isSpeaking()) {
		select {
		case <-time.After(o.idlePoll):
		case <-ctx.Done():
			return
		}
	}
}

// handleFatal reacts to a terminal recognition failure. Listening is
// already disabled by the controller; tell the user once and keep the
// rest of the companion alive.
func (o *Orchestrator) handleFatal(kind domain.RecogError) {
	o.log.Error("assistant: recognition permanently down: %s", kind)
	o.checkIns.Stop()
	o.queue.Enqueue(voice.LineMicUnavailable(), voice.CategorySafetyCheck)
}

// Announce enqueues an announcement originating outside conversation,
// such as a navigation prompt. Returns the job so callers can await
// playback.
func (o *Orchestrator) Announce(text string, category voice.Category) *voice.Job {
	return o.queue.Enqueue(text, category)
}

// UpdateContext merges a partial context update into the walk context.
// Unset patch fields leave existing values alone.
func (o *Orchestrator) UpdateContext(patch domain.ContextPatch) {
	o.mu.Lock()
	o.walkCtx = o.walkCtx.Merge(patch)
	wc := o.walkCtx
	o.mu.Unlock()
	o.log.Debug("assistant: context updated (walk=%s, score=%d)", wc.Walk, wc.SafetyScore)
}

// Context returns a snapshot of the current walk context.
func (o *Orchestrator) Context() domain.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.walkCtx
}

// Status returns a point-in-time snapshot of the whole companion.
func (o *Orchestrator) Status() domain.Status {
	o.mu.Lock()
	processing := o.processing
	o.mu.Unlock()

	depth, next := o.queue.Peek()
	speaking := o.isSpeaking != nil && o.isSpeaking()

	return domain.Status{
		IsListening:         o.recog.IsListening(),
		IsRecognitionActive: o.recog.IsEngineRunning(),
		IsProcessing:        processing,
		IsHandlingSafeSpot:  o.commands.IsHandlingSafeSpot(),
		IsSpeaking:          speaking,
		QueueDepth:          depth,
		NextJob:             next,
		RestartAttempts:     o.recog.RestartAttempts(),
	}
}
