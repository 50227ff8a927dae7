package rtcchat

import (
	"sync"
	"time"
)

// TimerUpdate collects items and hands the whole accumulated list to its update function once no new item
// has arrived for the configured delay. A burst of candidates or messages becomes one refresh.
type TimerUpdate[T any] struct {
	// Serializes deliveries so a refresh never arrives after a newer, longer one
	deliverMu sync.Mutex

	mu      sync.Mutex
	data    []T
	delay   time.Duration
	timer   *time.Timer
	gen     uint64
	pending bool
	stopped bool
	fn      func([]T)
}

func NewTimerUpdate[T any](delay time.Duration, fn func([]T)) *TimerUpdate[T] {
	if delay <= 0 {
		delay = DefaultBatchDelay
	}
	return &TimerUpdate[T]{
		delay: delay,
		fn:    fn,
	}
}

// Update appends item and restarts the quiet period.
func (u *TimerUpdate[T]) Update(item T) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.stopped {
		return
	}

	u.data = append(u.data, item)
	u.pending = true
	if u.timer != nil {
		u.timer.Stop()
	}
	u.gen++
	gen := u.gen
	u.timer = time.AfterFunc(u.delay, func() { u.fire(gen) })
}

// Flush delivers pending items immediately instead of waiting for the timer.
func (u *TimerUpdate[T]) Flush() {
	u.mu.Lock()
	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
	gen := u.gen
	u.mu.Unlock()

	u.fire(gen)
}

// fire is a no-op when a later Update has re-armed the timer since gen was taken.
// fn must not call Flush.
func (u *TimerUpdate[T]) fire(gen uint64) {
	u.deliverMu.Lock()
	defer u.deliverMu.Unlock()

	u.mu.Lock()
	if !u.pending || u.stopped || gen != u.gen {
		u.mu.Unlock()
		return
	}
	u.pending = false
	snapshot := u.snapshot()
	u.mu.Unlock()

	// Called without mu so fn may call back into Data or Update
	if u.fn != nil {
		u.fn(snapshot)
	}
}

// Data returns a copy of everything accumulated so far.
func (u *TimerUpdate[T]) Data() []T {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snapshot()
}

// Reset drops the accumulated items and any refresh that has not fired yet.
func (u *TimerUpdate[T]) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
	u.data = nil
	u.pending = false
}

// Stop cancels the pending refresh. Later updates are ignored.
func (u *TimerUpdate[T]) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
	u.stopped = true
	u.pending = false
}

func (u *TimerUpdate[T]) snapshot() []T {
	out := make([]T, len(u.data))
	copy(out, u.data)
	return out
}
