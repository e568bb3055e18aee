package schedule

import (
	"sync"
	"time"

	"github.com/joeblew999/geodash/internal/effect"
	"go.uber.org/zap"
)

// Refresher periodically calls a reload function. It is active exactly
// when it holds a scheduled task.
type Refresher struct {
	mu      sync.Mutex
	clock   Clock
	period  time.Duration
	reload  func()
	effects effect.Sink
	log     *zap.Logger

	task    Task
	gen     uint64
	enabled bool
	paused  bool
}

// NewRefresher creates a disabled refresher.
func NewRefresher(clock Clock, period time.Duration, reload func(), effects effect.Sink) *Refresher {
	if effects == nil {
		effects = effect.Discard
	}
	return &Refresher{
		clock:   clock,
		period:  period,
		reload:  reload,
		effects: effects,
		log:     zap.L().With(zap.String("component", "refresh")),
	}
}

// Enabled reports the user-facing switch.
func (r *Refresher) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Active reports whether a task is scheduled.
func (r *Refresher) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.task != nil
}

// Enable turns auto-refresh on. It returns false when already on.
func (r *Refresher) Enable() bool {
	r.mu.Lock()
	if r.enabled {
		r.mu.Unlock()
		return false
	}
	r.enabled = true
	if !r.paused {
		r.scheduleLocked()
	}
	r.mu.Unlock()

	r.effects.Emit(effect.Scheduler("refresh", true))
	r.log.Info("auto-refresh enabled", zap.Duration("period", r.period))
	return true
}

// Disable turns auto-refresh off. It returns false when already off.
func (r *Refresher) Disable() bool {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return false
	}
	r.enabled = false
	r.cancelLocked()
	r.mu.Unlock()

	r.effects.Emit(effect.Scheduler("refresh", false))
	r.log.Info("auto-refresh disabled")
	return true
}

// Toggle flips auto-refresh and returns the new state.
func (r *Refresher) Toggle() bool {
	if r.Enabled() {
		r.Disable()
		return false
	}
	r.Enable()
	return true
}

// Pause cancels the task but keeps the enabled flag.
func (r *Refresher) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		return
	}
	r.paused = true
	r.cancelLocked()
}

// Resume reschedules after Pause when still enabled.
func (r *Refresher) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return
	}
	r.paused = false
	if r.enabled {
		r.scheduleLocked()
	}
}

func (r *Refresher) scheduleLocked() {
	r.cancelLocked()
	gen := r.gen
	r.task = r.clock.Every(r.period, func() { r.tick(gen) })
}

func (r *Refresher) cancelLocked() {
	if r.task != nil {
		r.task.Cancel()
		r.task = nil
	}
	r.gen++
}

func (r *Refresher) tick(gen uint64) {
	r.mu.Lock()
	live := gen == r.gen && r.task != nil
	r.mu.Unlock()
	if !live {
		return
	}
	r.reload()
}
