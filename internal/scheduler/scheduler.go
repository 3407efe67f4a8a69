package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/logging"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
)

// Callback is invoked when a review timer fires
type Callback func(ctx context.Context, taskID int64) error

type entry struct {
	timer *time.Timer
}

// ReviewTimers holds one cancellable deferred callback per task. Cancel is
// best effort: a timer that has already fired still runs its callback, so
// callbacks must re-check the task state themselves.
type ReviewTimers struct {
	mu              sync.Mutex
	timers          map[int64]*entry
	callback        Callback
	callbackTimeout time.Duration
	logger          *logging.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	stopped         bool
}

// NewReviewTimers creates an empty timer set. callbackTimeout bounds each
// callback invocation.
func NewReviewTimers(callbackTimeout time.Duration, logger *logging.Logger) *ReviewTimers {
	ctx, cancel := context.WithCancel(context.Background())
	return &ReviewTimers{
		timers:          make(map[int64]*entry),
		callbackTimeout: callbackTimeout,
		logger:          logger.WithComponent("review_timers"),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// SetCallback sets the function run when a timer fires
func (r *ReviewTimers) SetCallback(cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callback = cb
}

// Schedule arms a timer for taskID, replacing any timer already armed for
// it. A non-positive delay fires immediately.
func (r *ReviewTimers) Schedule(delay time.Duration, taskID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	if old, ok := r.timers[taskID]; ok && old.timer.Stop() {
		r.wg.Done()
	}
	if delay < 0 {
		delay = 0
	}

	e := &entry{}
	r.timers[taskID] = e
	r.wg.Add(1)
	e.timer = time.AfterFunc(delay, func() { r.fire(taskID, e) })
	metrics.SetReviewTimersArmed(len(r.timers))
}

// Cancel disarms the timer for taskID. It reports whether a pending timer
// was stopped before firing.
func (r *ReviewTimers) Cancel(taskID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.timers[taskID]
	if !ok {
		return false
	}
	delete(r.timers, taskID)
	metrics.SetReviewTimersArmed(len(r.timers))

	if e.timer.Stop() {
		r.wg.Done()
		return true
	}
	return false
}

// Pending returns the number of armed timers
func (r *ReviewTimers) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop cancels every armed timer and waits for running callbacks
func (r *ReviewTimers) Stop() {
	r.mu.Lock()
	r.stopped = true
	for taskID, e := range r.timers {
		if e.timer.Stop() {
			r.wg.Done()
		}
		delete(r.timers, taskID)
	}
	metrics.SetReviewTimersArmed(0)
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	r.logger.Info("Review timers stopped")
}

func (r *ReviewTimers) fire(taskID int64, e *entry) {
	defer r.wg.Done()

	r.mu.Lock()
	if current, ok := r.timers[taskID]; ok && current == e {
		delete(r.timers, taskID)
		metrics.SetReviewTimersArmed(len(r.timers))
	}
	cb := r.callback
	r.mu.Unlock()

	if cb == nil {
		r.logger.WithTaskID(taskID).Warn("Review timer fired without a callback")
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.callbackTimeout)
	defer cancel()

	if err := cb(ctx, taskID); err != nil {
		r.logger.WithTaskID(taskID).WithError(err).Error("Review timer callback failed")
	}
}
