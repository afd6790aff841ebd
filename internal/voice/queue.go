// Package voice serializes every announcement the companion makes —
// conversational replies, navigation prompts, safety check-ins — through
// a single priority queue so only one thing ever plays at a time.
package voice

import (
	"context"
	"sync"
	"time"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
)

// Speaker turns one piece of text into played audio. The Queue is its
// only caller; nothing else in the system may produce sound.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	// SpeakWithFallback behaves like Speak but retries on a local
	// offline engine when the primary backend fails.
	SpeakWithFallback(ctx context.Context, text string) error
	IsSpeaking() bool
	Stop()
}

// QueueOption configures the Queue.
type QueueOption func(*Queue)

// WithJobPause sets the fixed pause inserted between consecutive jobs,
// avoiding audio-engine overlap artifacts. Zero disables it.
func WithJobPause(d time.Duration) QueueOption {
	return func(q *Queue) { q.jobPause = d }
}

// Queue is the priority voice-job queue. Jobs are drained strictly one
// at a time, lowest priority value first, FIFO within a priority. A
// higher-priority arrival never preempts the job already playing; it
// only jumps ahead of jobs still waiting.
type Queue struct {
	speaker Speaker
	log     *logger.Logger

	mu           sync.Mutex
	jobs         []*Job
	playing      *Job
	clearPlaying bool // flush happened while playing; settle with ErrQueueCleared
	seq          uint64
	notify       chan struct{}
	jobPause     time.Duration
}

// NewQueue creates a voice queue draining into the given speaker.
func NewQueue(speaker Speaker, log *logger.Logger, opts ...QueueOption) *Queue {
	q := &Queue{
		speaker:  speaker,
		log:      log,
		notify:   make(chan struct{}, 1),
		jobPause: 150 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start begins the drain goroutine. Non-blocking. The queue stops, and
// flushes itself, when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	go q.processLoop(ctx)
	q.log.Info("voice queue started")
}

// Enqueue schedules text for playback and returns the job whose future
// settles when playback finishes, fails, or the queue is flushed.
func (q *Queue) Enqueue(text string, category Category) *Job {
	q.mu.Lock()
	q.seq++
	job := newJob(text, category, q.seq)
	q.jobs = append(q.jobs, job)
	depth := len(q.jobs)
	q.mu.Unlock()

	q.log.Debug("queue: enqueued %s (depth=%d)", job.Summary(), depth)

	select {
	case q.notify <- struct{}{}:
	default: // drain already signalled
	}
	return job
}

// Flush rejects every pending job with domain.ErrQueueCleared and stops
// the currently playing audio. The playing job's future also settles
// with ErrQueueCleared.
func (q *Queue) Flush() {
	q.mu.Lock()
	pending := q.jobs
	q.jobs = nil
	if q.playing != nil {
		q.clearPlaying = true
	}
	q.mu.Unlock()

	for _, job := range pending {
		job.settle(domain.ErrQueueCleared)
	}
	q.speaker.Stop()

	q.log.Debug("queue: flushed %d pending jobs", len(pending))
}

// IsBusy reports whether a job is playing or pending.
func (q *Queue) IsBusy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing != nil || len(q.jobs) > 0
}

// Depth returns the number of pending (not yet playing) jobs.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Peek returns the queue depth and a summary of the next job to play,
// "" when the queue is empty.
func (q *Queue) Peek() (int, string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return 0, ""
	}
	best := q.minIndexLocked()
	return len(q.jobs), q.jobs[best].Summary()
}

// processLoop waits for enqueued jobs and drains them one at a time.
func (q *Queue) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.Flush()
			q.log.Info("voice queue stopped")
			return
		case <-q.notify:
			q.drain(ctx)
		}
	}
}

// drain plays queued jobs until the queue is empty. Only one drain runs
// at a time: processLoop is a single goroutine and the notify channel
// merely wakes it.
func (q *Queue) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok := q.dequeue()
		if !ok {
			return
		}

		waited := time.Since(job.EnqueuedAt).Round(time.Millisecond)
		q.log.Debug("queue: speaking %s (waited=%s)", job.Summary(), waited)

		var err error
		if job.Category == CategoryNavigation {
			err = q.speaker.SpeakWithFallback(ctx, job.Text)
		} else {
			err = q.speaker.Speak(ctx, job.Text)
		}

		q.mu.Lock()
		cleared := q.clearPlaying
		q.clearPlaying = false
		q.playing = nil
		q.mu.Unlock()

		switch {
		case cleared:
			job.settle(domain.ErrQueueCleared)
		case err != nil:
			q.log.Error("queue: playback failed for %s: %v", job.Summary(), err)
			job.settle(err)
		default:
			job.settle(nil)
		}

		if q.jobPause > 0 {
			select {
			case <-time.After(q.jobPause):
			case <-ctx.Done():
				return
			}
		}
	}
}

// dequeue removes and returns the most urgent job, marking it as the
// one playing.
func (q *Queue) dequeue() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}

	best := q.minIndexLocked()
	job := q.jobs[best]
	q.jobs = append(q.jobs[:best], q.jobs[best+1:]...)
	q.playing = job
	return job, true
}

// minIndexLocked returns the index of the lowest-priority-value job,
// earliest enqueued first on ties. Must be called with q.mu held.
func (q *Queue) minIndexLocked() int {
	best := 0
	for i, job := range q.jobs {
		bp, jp := q.jobs[best].Category.Priority(), job.Category.Priority()
		if jp < bp || (jp == bp && job.seq < q.jobs[best].seq) {
			best = i
		}
	}
	return best
}
