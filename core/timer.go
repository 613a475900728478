package core

import (
	"sync"
	"time"
)

// Timer fires a callback on its owning actor's scheduler thread, posted
// through PostAsync like any other message. A Timer holds a strong
// reference to its target actor: the actor's Dispose cascades to every
// Timer registered against it (see actor.disposeNow), which is how this
// runtime avoids the reference-cycle leak a strong pointer would
// otherwise cause. The teacher's toolchain predates the standard
// library's weak-pointer package, so a weak target reference — the more
// conventional choice for a timer — is not available here.
type Timer struct {
	target   *actor
	delay    time.Duration
	period   time.Duration
	callback func()

	mu       sync.Mutex
	inner    *time.Timer
	disposed bool
}

// NewTimer creates a timer on target that posts callback after delay
// elapses. If period is positive, every firing after the first
// reschedules the timer to fire again after period (the delay only
// applies once); a zero or negative period makes the timer one-shot.
func NewTimer(target Actor, callback func(), delay, period time.Duration) *Timer {
	a, ok := target.(*actor)
	if !ok {
		panic("core: NewTimer requires an actor created by this package")
	}

	t := &Timer{
		target:   a,
		delay:    delay,
		period:   period,
		callback: callback,
	}
	a.registerTimer(t)
	t.schedule(delay)
	return t
}

func (t *Timer) schedule(after time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return
	}
	t.inner = time.AfterFunc(after, t.fire)
}

func (t *Timer) fire() {
	t.mu.Lock()
	disposed := t.disposed
	t.mu.Unlock()
	if disposed {
		return
	}

	t.target.PostAsync(t.callback)

	t.mu.Lock()
	repeat := t.period > 0
	period := t.period
	t.mu.Unlock()

	if repeat {
		t.schedule(period)
	}
}

// Change replaces the timer's period. The pending firing keeps the wait
// it was scheduled with; every rearm after it uses the new period, and a
// zero or negative period stops further rearms. Change does not re-arm
// the pending firing, and the initial delay is fixed at construction.
func (t *Timer) Change(period time.Duration) {
	t.mu.Lock()
	t.period = period
	t.mu.Unlock()
}

// Dispose stops the timer. Idempotent; safe to call from any goroutine.
func (t *Timer) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return
	}
	t.disposed = true
	if t.inner != nil {
		t.inner.Stop()
	}
}
