// Package schedule is the delayed-task abstraction behind answer-window
// expiration. Callbacks are expected to be self-cancelling: they
// re-validate identity against current state and become no-ops when the
// state they were armed for is gone, so Cancel is an optimization, never
// a correctness requirement.
package schedule

import (
	"context"
	"time"
)

type Scheduler interface {
	// Schedule runs fn after delay on its own goroutine.
	Schedule(delay time.Duration, fn func(ctx context.Context)) Handle
}

type Handle interface {
	// Cancel stops the task if it has not fired yet.
	Cancel() bool
}

const callbackTimeout = 30 * time.Second

// NewTimer returns the production scheduler, backed by the runtime timer
// heap.
func NewTimer() Scheduler {
	return timerScheduler{}
}

type timerScheduler struct{}

func (timerScheduler) Schedule(delay time.Duration, fn func(ctx context.Context)) Handle {
	t := time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		fn(ctx)
	})
	return timerHandle{t}
}

type timerHandle struct{ t *time.Timer }

func (h timerHandle) Cancel() bool { return h.t.Stop() }
