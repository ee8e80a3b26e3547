// Package progresstest provides utilities for testing code that reports progress.
package progresstest

import (
	"sync"

	"github.com/nguyengg/sealer/progress"
)

// Recorder collects every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

// NewRecorder returns a new Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Sink returns the progress.Sink that appends to the Recorder.
func (r *Recorder) Sink() progress.Sink {
	return func(e progress.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.events = append(r.events, e)
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]progress.Event(nil), r.events...)
}

// Percents returns the percentages of the recorded events.
func (r *Recorder) Percents() []int {
	events := r.Events()

	ps := make([]int, len(events))
	for i, e := range events {
		ps[i] = e.Percent
	}

	return ps
}
