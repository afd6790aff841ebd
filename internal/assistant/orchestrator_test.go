package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
	"github.com/AkshatG130501/MidnightMile2.0/internal/voice"
)

// ── Fakes ────────────────────────────────────────────────────────

type instantSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (s *instantSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *instantSpeaker) SpeakWithFallback(ctx context.Context, text string) error {
	return s.Speak(ctx, text)
}

func (s *instantSpeaker) IsSpeaking() bool { return false }
func (s *instantSpeaker) Stop()            {}

func (s *instantSpeaker) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

type fakeRecog struct {
	mu      sync.Mutex
	calls   []string
	onFinal func(string)
}

func (r *fakeRecog) record(name string) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

func (r *fakeRecog) Run(ctx context.Context)       { r.record("run") }
func (r *fakeRecog) StartListening()               { r.record("start") }
func (r *fakeRecog) StopListening()                { r.record("stop") }
func (r *fakeRecog) PauseForProcessing()           { r.record("pause") }
func (r *fakeRecog) ResumeAfterProcessing()        { r.record("resume") }
func (r *fakeRecog) IsListening() bool             { return true }
func (r *fakeRecog) IsEngineRunning() bool         { return true }
func (r *fakeRecog) RestartAttempts() int          { return 0 }
func (r *fakeRecog) SetTranscriptHandler(fn func(string)) {
	r.mu.Lock()
	r.onFinal = fn
	r.mu.Unlock()
}
func (r *fakeRecog) SetFatalHandler(fn func(domain.RecogError)) {}

func (r *fakeRecog) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == name {
			n++
		}
	}
	return n
}

type fakeCheckIns struct {
	mu         sync.Mutex
	activities int
	arms       int
	stops      int
}

func (c *fakeCheckIns) Run(ctx context.Context) {}
func (c *fakeCheckIns) Activity() {
	c.mu.Lock()
	c.activities++
	c.mu.Unlock()
}
func (c *fakeCheckIns) Arm() {
	c.mu.Lock()
	c.arms++
	c.mu.Unlock()
}
func (c *fakeCheckIns) Stop() {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
}

func (c *fakeCheckIns) counts() (activities, arms, stops int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activities, c.arms, c.stops
}

type fakeCommands struct {
	handle bool
}

func (f *fakeCommands) Intercept(ctx context.Context, transcript string) bool { return f.handle }
func (f *fakeCommands) IsHandlingSafeSpot() bool                              { return false }

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
	delay   time.Duration
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	reply, err, delay := f.reply, f.err, f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

func (f *fakeLLM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// ── Harness ──────────────────────────────────────────────────────

type harness struct {
	orch     *Orchestrator
	speaker  *instantSpeaker
	recog    *fakeRecog
	checkIns *fakeCheckIns
	commands *fakeCommands
	llm      *fakeLLM
	cancel   context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	speaker := &instantSpeaker{}
	queue := voice.NewQueue(speaker, log, voice.WithJobPause(0))
	recog := &fakeRecog{}
	checkIns := &fakeCheckIns{}
	commands := &fakeCommands{}
	llm := &fakeLLM{reply: "a calm reply"}

	orch := New(queue, recog, checkIns, commands, llm, func() bool { return false }, log,
		WithIdlePoll(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	orch.Run(ctx)
	return &harness{orch, speaker, recog, checkIns, commands, llm, cancel}
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for h.orch.Status().IsProcessing {
		select {
		case <-deadline:
			t.Fatal("orchestrator stuck in processing")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// ── Tests ────────────────────────────────────────────────────────

func TestOrchestratorSpeaksModelReply(t *testing.T) {
	h := newHarness(t)
	defer h.cancel()

	h.orch.HandleTranscript("how far to the bridge")
	h.waitIdle(t)

	deadline := time.After(time.Second)
	for len(h.speaker.all()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("reply never spoken")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if got := h.speaker.all()[0]; got != "a calm reply" {
		t.Fatalf("spoke %q, want the model reply", got)
	}
}

func TestOrchestratorIgnoresNoise(t *testing.T) {
	h := newHarness(t)
	defer h.cancel()

	h.orch.HandleTranscript("a")
	h.orch.HandleTranscript("  ok ")
	time.Sleep(50 * time.Millisecond)

	if h.llm.count() != 0 {
		t.Fatal("noise reached the model")
	}
	activities, _, _ := h.checkIns.counts()
	if activities != 0 {
		t.Fatal("noise counted as activity")
	}
}

func TestOrchestratorDropsTranscriptWhileProcessing(t *testing.T) {
	h := newHarness(t)
	defer h.cancel()
	h.llm.delay = 150 * time.Millisecond

	h.orch.HandleTranscript("first question")
	time.Sleep(30 * time.Millisecond)
	h.orch.HandleTranscript("second question")
	h.waitIdle(t)

	if h.llm.count() != 1 {
		t.Fatalf("model called %d times, want 1 (second transcript dropped)", h.llm.count())
	}
	// A dropped transcript must not reset the check-in clock.
	activities, _, _ := h.checkIns.counts()
	if activities != 1 {
		t.Fatalf("activities = %d, want 1", activities)
	}
}

func TestOrchestratorExitPathAlwaysRuns(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"model reply", func(h *harness) {}},
		{"model failure", func(h *harness) { h.llm.err = errors.New("timeout") }},
		{"intercepted command", func(h *harness) { h.commands.handle = true }},
		{"empty reply", func(h *harness) { h.llm.reply = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			defer h.cancel()
			tt.setup(h)

			h.orch.HandleTranscript("anything at all")
			h.waitIdle(t)

			deadline := time.After(time.Second)
			for h.recog.count("resume") == 0 {
				select {
				case <-deadline:
					t.Fatal("recognition never resumed")
				case <-time.After(10 * time.Millisecond):
				}
			}
			if h.recog.count("pause") != 1 {
				t.Fatalf("pause called %d times, want 1", h.recog.count("pause"))
			}
			_, arms, _ := h.checkIns.counts()
			if arms == 0 {
				t.Fatal("check-in timer never re-armed")
			}
		})
	}
}

func TestOrchestratorInterceptedCommandSkipsModel(t *testing.T) {
	h := newHarness(t)
	defer h.cancel()
	h.commands.handle = true

	h.orch.HandleTranscript("help me")
	h.waitIdle(t)

	if h.llm.count() != 0 {
		t.Fatal("intercepted command still reached the model")
	}
}

func TestOrchestratorModelFailureStaysSilent(t *testing.T) {
	h := newHarness(t)
	defer h.cancel()
	h.llm.err = errors.New("api down")

	h.orch.HandleTranscript("how are you")
	h.waitIdle(t)
	time.Sleep(50 * time.Millisecond)

	// A failed completion skips playback; the user hears nothing.
	if spoke := h.speaker.all(); len(spoke) != 0 {
		t.Fatalf("spoke %v after a model failure, want silence", spoke)
	}
	if h.llm.count() != 1 {
		t.Fatalf("model called %d times, want 1", h.llm.count())
	}

	// Listening still comes back so the user can try again.
	deadline := time.After(time.Second)
	for h.recog.count("resume") == 0 {
		select {
		case <-deadline:
			t.Fatal("recognition never resumed after model failure")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestOrchestratorContextMerge(t *testing.T) {
	h := newHarness(t)
	defer h.cancel()

	loc := "5th and Main"
	score := 42
	h.orch.UpdateContext(domain.ContextPatch{Location: &loc, SafetyScore: &score})

	dest := "home"
	h.orch.UpdateContext(domain.ContextPatch{Destination: &dest})

	wc := h.orch.Context()
	if wc.Location != loc || wc.SafetyScore != score || wc.Destination != dest {
		t.Fatalf("context = %+v, want earlier fields preserved across patches", wc)
	}
}

func TestOrchestratorStatusSnapshot(t *testing.T) {
	h := newHarness(t)
	defer h.cancel()
	h.llm.delay = 150 * time.Millisecond

	h.orch.HandleTranscript("long question")
	time.Sleep(30 * time.Millisecond)

	st := h.orch.Status()
	if !st.IsProcessing {
		t.Fatal("status not processing mid-request")
	}
	if !st.IsListening || !st.IsRecognitionActive {
		t.Fatal("recognition flags not passed through")
	}

	h.waitIdle(t)
	if h.orch.Status().IsProcessing {
		t.Fatal("still processing after idle")
	}
}

func TestOrchestratorEndToEndCheckInScenario(t *testing.T) {
	// A conversation turn followed by a navigation announcement: the
	// reply and the announcement both drain through the same queue.
	h := newHarness(t)
	defer h.cancel()

	h.orch.HandleTranscript("talk to me for a bit")
	h.waitIdle(t)

	job := h.orch.Announce("turn left on 3rd street", voice.CategoryNavigation)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	if err := job.Wait(waitCtx); err != nil {
		t.Fatalf("navigation job: %v", err)
	}

	spoken := h.speaker.all()
	if len(spoken) < 2 {
		t.Fatalf("spoke %v, want reply then navigation", spoken)
	}
	if !strings.Contains(spoken[len(spoken)-1], "turn left") {
		t.Fatalf("last spoken %q, want the navigation prompt", spoken[len(spoken)-1])
	}
}
