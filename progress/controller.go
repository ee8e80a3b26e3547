// Package progress coordinates the observable progress and the cooperative cancellation of one archive job.
//
// All long-running loops call Controller.Check once per I/O chunk and Controller.Add after it. The Controller turns
// byte counts into a non-decreasing percentage and forwards it to a Sink at a bounded rate.
package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nguyengg/sealer/errs"
	"golang.org/x/time/rate"
)

const (
	// DefaultInterval is the default value for [Options.Interval].
	DefaultInterval = 100 * time.Millisecond

	// DefaultChunkSize is the size of the buffer used by every copy loop, which is 32 KiB.
	//
	// Cancellation is polled at least once per chunk.
	DefaultChunkSize = 32 * 1024
)

// Event is a progress notification sent to the host.
type Event struct {
	Percent int    `json:"percent"`
	Status  string `json:"status,omitempty"`
}

// Sink receives progress events.
//
// Delivery is fire-and-forget: a Sink must not block for long and must not call back into the Controller.
type Sink func(Event)

// Options customises New.
type Options struct {
	// Interval is the minimum duration between two events reporting the same percentage.
	//
	// Default to DefaultInterval.
	Interval time.Duration
}

// Controller tracks the progress of a single job.
type Controller struct {
	ctx   context.Context
	state *State
	sink  Sink

	mu        sync.Mutex
	total     int64
	done      int64
	lo, hi    int
	percent   int
	status    string
	sometimes *rate.Sometimes
}

// New creates a new Controller.
//
// Both state and sink may be nil. Cancellation is observed from both the state's flag and ctx.
func New(ctx context.Context, state *State, sink Sink, optFns ...func(*Options)) *Controller {
	opts := &Options{Interval: DefaultInterval}
	for _, fn := range optFns {
		fn(opts)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	return &Controller{
		ctx:       ctx,
		state:     state,
		sink:      sink,
		hi:        100,
		sometimes: &rate.Sometimes{Interval: opts.Interval},
	}
}

// Context returns the job's context.
func (c *Controller) Context() context.Context {
	return c.ctx
}

// Check returns an errs.Cancelled error if the job has been cancelled.
func (c *Controller) Check() error {
	if c.state != nil && c.state.Cancelled() {
		return errs.New(errs.Cancelled, "job cancelled by user", "", nil)
	}

	select {
	case <-c.ctx.Done():
		if errors.Is(context.Cause(c.ctx), ErrCancelledByUser) {
			return errs.New(errs.Cancelled, "job cancelled by user", "", nil)
		}

		return errs.New(errs.Cancelled, "job context done", "", c.ctx.Err())
	default:
		return nil
	}
}

// SetTotal sets the number of bytes that the current phase will process.
func (c *Controller) SetTotal(total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total = total
}

// Phase starts a new phase whose byte progress maps to the [lo, hi] percentage range.
//
// The processed byte counter is reset; the total is kept.
func (c *Controller) Phase(lo, hi int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lo, c.hi, c.done = clamp(lo), clamp(hi), 0
}

// Add records n more bytes processed.
func (c *Controller) Add(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.done += n
	c.update(c.scaled())
}

// Status changes the status text that accompanies subsequent events.
func (c *Controller) Status(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
	c.update(c.percent)
}

// Done emits the final 100% event.
func (c *Controller) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.percent = 100
	c.emit()
}

// Percent returns the current percentage.
func (c *Controller) Percent() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.percent
}

// Simulate advances progress by step percents every interval on a separate goroutine, never past ceiling (and never
// to 100).
//
// The advance is an approximation used while a library call that offers no progress callback is running; it does
// not measure actual work. The returned stop function halts the goroutine and waits for it to exit; it is safe to
// call more than once.
func (c *Controller) Simulate(step int, every time.Duration, ceiling int) (stop func()) {
	ceiling = min(clamp(ceiling), 99)

	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				c.mu.Lock()
				if next := min(c.percent+step, ceiling); next > c.percent {
					c.update(next)
				}
				c.mu.Unlock()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			wg.Wait()
		})
	}
}

// scaled must be called while holding c.mu.
func (c *Controller) scaled() int {
	if c.total <= 0 {
		return c.lo
	}

	done := min(c.done, c.total)
	return c.lo + int(done*int64(c.hi-c.lo)/c.total)
}

// update must be called while holding c.mu.
func (c *Controller) update(percent int) {
	if percent = clamp(percent); percent > c.percent {
		c.percent = percent
		c.emit()
		return
	}

	c.sometimes.Do(c.emit)
}

// emit must be called while holding c.mu.
func (c *Controller) emit() {
	if c.sink != nil {
		c.sink(Event{Percent: c.percent, Status: c.status})
	}
}

func clamp(percent int) int {
	return max(0, min(percent, 100))
}
