package progress

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCancelledByUser is the cause attached to contexts created by State.Begin when State.Cancel is called.
var ErrCancelledByUser = errors.New("cancelled by user")

// State holds the cancellation flag of the job currently running.
//
// The zero value is ready for use. A State supports one job at a time; Begin resets the flag for the next job.
type State struct {
	cancelled atomic.Bool

	mu     sync.Mutex
	cancel context.CancelCauseFunc
}

// Begin resets the cancellation flag and returns a child context of ctx that is cancelled when Cancel is called.
//
// The returned context.CancelFunc must be called once the job finishes.
func (s *State) Begin(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)

	s.mu.Lock()
	s.cancelled.Store(false)
	s.cancel = cancel
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()

		cancel(context.Canceled)
	}
}

// Reset clears the cancellation flag.
func (s *State) Reset() {
	s.cancelled.Store(false)
}

// Cancel sets the cancellation flag. It is idempotent and has no effect on jobs that have not started yet.
func (s *State) Cancel() {
	s.cancelled.Store(true)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel(ErrCancelledByUser)
	}
	s.mu.Unlock()
}

// Cancelled returns the current value of the cancellation flag.
func (s *State) Cancelled() bool {
	return s.cancelled.Load()
}
