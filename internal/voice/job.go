package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category tags a voice job with the kind of announcement it carries.
// The category decides queue priority and the synthesis failure policy.
type Category int

const (
	CategorySafetyCheck Category = iota
	CategoryNavigation
	CategoryConversation
)

// String returns a human-readable category.
func (c Category) String() string {
	switch c {
	case CategorySafetyCheck:
		return "safety-check"
	case CategoryNavigation:
		return "navigation"
	default:
		return "conversation"
	}
}

// Priority returns the queue priority for the category. Lower is more
// urgent. Safety check-ins outrank navigation, navigation outranks
// conversational replies.
func (c Category) Priority() int {
	switch c {
	case CategorySafetyCheck:
		return 1
	case CategoryNavigation:
		return 2
	default:
		return 3
	}
}

// Job is one unit of text scheduled for speech playback. Immutable once
// created except for its position in the queue. Its future settles when
// the job finishes playing, fails, or the queue is flushed.
type Job struct {
	ID         string
	Text       string
	Category   Category
	EnqueuedAt time.Time

	seq  uint64 // enqueue order, breaks priority ties (stable)
	done chan error
}

func newJob(text string, category Category, seq uint64) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Text:       text,
		Category:   category,
		EnqueuedAt: time.Now(),
		seq:        seq,
		done:       make(chan error, 1),
	}
}

// settle resolves the job's future exactly once. Later calls are no-ops.
func (j *Job) settle(err error) {
	select {
	case j.done <- err:
	default:
	}
}

// Done returns a channel that receives the job's outcome: nil on
// successful playback, domain.ErrQueueCleared on flush, or the playback
// error. It fires exactly once.
func (j *Job) Done() <-chan error {
	return j.done
}

// Wait blocks until the job settles or ctx is cancelled.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Summary returns a short description for diagnostics.
func (j *Job) Summary() string {
	return fmt.Sprintf("%s: %s", j.Category, truncate(j.Text, 48))
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
