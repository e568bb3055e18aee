// Package schedule runs the dashboard's periodic work: the auto-run layer
// cycle, auto-refresh and housekeeping tasks. Everything is driven by a
// Clock so tests can advance virtual time.
package schedule

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a scheduled callback. Cancel is idempotent and never waits for a
// running callback.
type Task interface {
	Cancel()
}

// Clock schedules callbacks.
type Clock interface {
	Now() time.Time
	// Every calls fn each period until the task is cancelled.
	Every(period time.Duration, fn func()) Task
	// After calls fn once after d.
	After(d time.Duration, fn func()) Task
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Every(period time.Duration, fn func()) Task {
	t := &realTask{done: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				if t.cancelled.Load() {
					return
				}
				fn()
			}
		}
	}()
	return t
}

func (Real) After(d time.Duration, fn func()) Task {
	t := &realTask{}
	timer := time.AfterFunc(d, func() {
		if !t.cancelled.Load() {
			fn()
		}
	})
	t.stop = func() { timer.Stop() }
	return t
}

type realTask struct {
	once      sync.Once
	cancelled atomic.Bool
	done      chan struct{}
	stop      func()
}

func (t *realTask) Cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		if t.done != nil {
			close(t.done)
		}
		if t.stop != nil {
			t.stop()
		}
	})
}

// Manual is a virtual clock. Time only moves on Advance, which runs due
// callbacks synchronously in deadline order.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	tasks map[*manualTask]struct{}
}

// NewManual starts a virtual clock at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, tasks: make(map[*manualTask]struct{})}
}

type manualTask struct {
	clock  *Manual
	next   time.Time
	period time.Duration // zero for one-shot
	seq    uint64
	fn     func()
}

func (t *manualTask) Cancel() {
	t.clock.mu.Lock()
	delete(t.clock.tasks, t)
	t.clock.mu.Unlock()
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Every(period time.Duration, fn func()) Task {
	return m.add(period, period, fn)
}

func (m *Manual) After(d time.Duration, fn func()) Task {
	return m.add(d, 0, fn)
}

func (m *Manual) add(delay, period time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{clock: m, next: m.now.Add(delay), period: period, seq: m.seq, fn: fn}
	m.tasks[t] = struct{}{}
	return t
}

// Pending returns the number of live tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Advance moves time forward by d, firing every task that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		t := m.nextDue(target)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = t.next
		if t.period > 0 {
			t.next = t.next.Add(t.period)
		} else {
			delete(m.tasks, t)
		}
		m.mu.Unlock()

		t.fn()
	}
}

func (m *Manual) nextDue(target time.Time) *manualTask {
	due := make([]*manualTask, 0, len(m.tasks))
	for t := range m.tasks {
		if !t.next.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].seq < due[j].seq
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}
