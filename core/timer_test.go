package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTimerOneShotFiresOnceAfterDelay(t *testing.T) {
	pool := NewContext(ContextOptions{SchedulerCount: 1})
	defer pool.Dispose(context.Background())

	act, err := NewActor(pool, pool.NextActorID(), nullHandler{}, DefaultActorOptions())
	if err != nil {
		t.Fatalf("failed to create actor: %v", err)
	}

	var counter atomicCounter
	start := time.Now()

	NewTimer(act, func() { counter.add(1) }, 30*time.Millisecond, 0)

	deadline := time.Now().Add(time.Second)
	for counter.load() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("timer never fired, counter=%d", counter.load())
		}
		time.Sleep(time.Millisecond)
	}

	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("timer fired too early, after %v", elapsed)
	}

	time.Sleep(100 * time.Millisecond)
	if counter.load() != 1 {
		t.Errorf("expected a zero-period timer to fire exactly once, fired %d times", counter.load())
	}
}

func TestTimerRepeatingUsesDelayThenPeriod(t *testing.T) {
	pool := NewContext(ContextOptions{SchedulerCount: 1})
	defer pool.Dispose(context.Background())

	act, err := NewActor(pool, pool.NextActorID(), nullHandler{}, DefaultActorOptions())
	if err != nil {
		t.Fatalf("failed to create actor: %v", err)
	}

	var mu sync.Mutex
	var fireTimes []time.Time
	start := time.Now()

	timer := NewTimer(act, func() {
		mu.Lock()
		fireTimes = append(fireTimes, time.Now())
		mu.Unlock()
	}, 150*time.Millisecond, 20*time.Millisecond)
	defer timer.Dispose()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(fireTimes)
		mu.Unlock()
		if n >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 3 firings, got %d", n)
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()

	if gap := fireTimes[0].Sub(start); gap < 100*time.Millisecond {
		t.Errorf("expected the first firing to honor the initial delay (~150ms), fired after %v", gap)
	}
	if gap := fireTimes[1].Sub(fireTimes[0]); gap > 150*time.Millisecond {
		t.Errorf("expected the second firing to follow the shorter period (~20ms), gap was %v", gap)
	}
}

func TestTimerDisposeStopsFiring(t *testing.T) {
	pool := NewContext(ContextOptions{SchedulerCount: 1})
	defer pool.Dispose(context.Background())

	act, err := NewActor(pool, pool.NextActorID(), nullHandler{}, DefaultActorOptions())
	if err != nil {
		t.Fatalf("failed to create actor: %v", err)
	}

	var counter atomicCounter
	timer := NewTimer(act, func() { counter.add(1) }, 10*time.Millisecond, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for counter.load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timer never fired once before disposal")
		}
		time.Sleep(time.Millisecond)
	}

	timer.Dispose()
	observed := counter.load()
	time.Sleep(100 * time.Millisecond)
	if counter.load() != observed {
		t.Errorf("expected no further firings after Dispose, went from %d to %d", observed, counter.load())
	}
}

// TestTimerCascadesFromActorDispose exercises the documented deviation
// in core/timer.go: a Timer holds a strong reference to its target, so
// disposing the actor must cascade into disposing every Timer
// registered against it, rather than leaving it to fire forever.
func TestTimerCascadesFromActorDispose(t *testing.T) {
	pool := NewContext(ContextOptions{SchedulerCount: 1})
	defer pool.Dispose(context.Background())

	act, err := NewActor(pool, pool.NextActorID(), nullHandler{}, DefaultActorOptions())
	if err != nil {
		t.Fatalf("failed to create actor: %v", err)
	}

	var counter atomicCounter
	NewTimer(act, func() { counter.add(1) }, 10*time.Millisecond, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for counter.load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timer never fired once before disposal")
		}
		time.Sleep(time.Millisecond)
	}

	act.Dispose()
	act.Join()

	observed := counter.load()
	time.Sleep(100 * time.Millisecond)
	if counter.load() != observed {
		t.Errorf("expected timer to stop firing once its actor was disposed, went from %d to %d", observed, counter.load())
	}
}
