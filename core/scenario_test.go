package core

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

// nullHandler satisfies MessageHandler for actors driven purely through
// PostAsync in these scenarios.
type nullHandler struct{}

func (nullHandler) HandleMessage(ctx context.Context, msg *Message) error { return nil }

func TestScenarioEchoActor(t *testing.T) {
	pool := NewContext(ContextOptions{SchedulerCount: 1})
	defer pool.Dispose(context.Background())

	var mu sync.Mutex
	var log []int

	act, err := NewActor(pool, pool.NextActorID(), nullHandler{}, DefaultActorOptions())
	if err != nil {
		t.Fatalf("failed to create actor: %v", err)
	}

	for _, v := range []int{1, 2, 3, 4, 5} {
		v := v
		act.PostAsync(func() {
			mu.Lock()
			log = append(log, v)
			mu.Unlock()
		})
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		done := len(log) == 5
		mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for echo log to fill")
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int{1, 2, 3, 4, 5}
	for i, v := range want {
		if log[i] != v {
			t.Fatalf("expected log %v, got %v", want, log)
		}
	}
}

func TestScenarioIdleWake(t *testing.T) {
	pool := NewContext(ContextOptions{SchedulerCount: 1})
	defer pool.Dispose(context.Background())

	act, err := NewActor(pool, pool.NextActorID(), nullHandler{}, DefaultActorOptions())
	if err != nil {
		t.Fatalf("failed to create actor: %v", err)
	}

	var counter atomicCounter

	// First post wakes a parked scheduler (wakeup #1), runs on the
	// scheduler thread for 50ms, then the scheduler finds nothing left
	// to do and parks again. The second post, issued only once the
	// first has been observed to complete, must wake it a second time.
	act.PostAsync(func() {
		time.Sleep(50 * time.Millisecond)
		counter.add(1)
	})

	deadline := time.Now().Add(500 * time.Millisecond)
	for counter.load() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected counter == 1 within 500ms, got %d", counter.load())
		}
		time.Sleep(time.Millisecond)
	}

	act.PostAsync(func() {
		counter.add(1)
	})

	deadline = time.Now().Add(500 * time.Millisecond)
	for counter.load() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected counter == 2 within 500ms, got %d", counter.load())
		}
		time.Sleep(time.Millisecond)
	}

	stats := act.(*actor).sched.Stats()
	if stats.Wakeups < 2 {
		t.Errorf("expected scheduler to have woken at least twice, got %d", stats.Wakeups)
	}
}

// breakOnceMain yields OpBreak on every advance, exercising the
// scheduler's non-short-circuit contract: the message side must still
// run even though main never reports more work.
type breakOnceMain struct{}

func (breakOnceMain) StepMain() Operation { return OpBreak }

func TestScenarioNonShortCircuit(t *testing.T) {
	pool := NewContext(ContextOptions{SchedulerCount: 1})
	defer pool.Dispose(context.Background())

	a := newActor(pool.NextActorID(), nullHandler{}, DefaultActorOptions())
	a.SetMain(breakOnceMain{})
	if err := pool.Register(a); err != nil {
		t.Fatalf("failed to register actor: %v", err)
	}

	ran := make(chan struct{}, 1)
	a.PostAsync(func() { ran <- struct{}{} })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("message step never ran despite main yielding Break")
	}
}

func TestScenarioDisposeFromOutside(t *testing.T) {
	pool := NewContext(ContextOptions{SchedulerCount: 1})
	defer pool.Dispose(context.Background())

	act, err := NewActor(pool, pool.NextActorID(), nullHandler{}, DefaultActorOptions())
	if err != nil {
		t.Fatalf("failed to create actor: %v", err)
	}

	started := make(chan struct{})
	finished := make(chan struct{})
	var laterRan atomicCounter

	act.PostAsync(func() {
		close(started)
		time.Sleep(200 * time.Millisecond)
		close(finished)
	})

	<-started
	act.Dispose()
	act.PostAsync(func() { laterRan.add(1) })

	act.Join()

	select {
	case <-finished:
	default:
		t.Fatal("actor disposed before finishing its in-flight message")
	}

	time.Sleep(50 * time.Millisecond)
	if laterRan.load() != 0 {
		t.Error("message posted after Dispose ran despite disposal")
	}
}

func TestScenarioFanInOrdering(t *testing.T) {
	pool := NewContext(ContextOptions{SchedulerCount: 2})
	defer pool.Dispose(context.Background())

	act, err := NewActor(pool, pool.NextActorID(), nullHandler{}, DefaultActorOptions())
	if err != nil {
		t.Fatalf("failed to create actor: %v", err)
	}

	type entry struct {
		producer int
		seq      int
	}

	var mu sync.Mutex
	var log []entry

	const perProducer = 1000
	var wg sync.WaitGroup
	for p := 0; p < 2; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				i := i
				act.PostAsync(func() {
					mu.Lock()
					log = append(log, entry{producer: p, seq: i})
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(log)
		mu.Unlock()
		if n == 2*perProducer {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for fan-in log, got %d entries", n)
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()

	perProducerSeqs := map[int][]int{}
	for _, e := range log {
		perProducerSeqs[e.producer] = append(perProducerSeqs[e.producer], e.seq)
	}

	for p, seqs := range perProducerSeqs {
		if !sort.IntsAreSorted(seqs) {
			t.Errorf("producer %d sequence not in order: %v", p, seqs)
		}
		if len(seqs) != perProducer {
			t.Errorf("producer %d expected %d entries, got %d", p, perProducer, len(seqs))
		}
	}
}

// TestScenarioPostWait exercises spec's Testable Property 4: after
// post_wait(A, m).wait() returns on a thread other than A's scheduler
// thread, m has executed exactly once.
func TestScenarioPostWait(t *testing.T) {
	pool := NewContext(ContextOptions{SchedulerCount: 1})
	defer pool.Dispose(context.Background())

	act, err := NewActor(pool, pool.NextActorID(), nullHandler{}, DefaultActorOptions())
	if err != nil {
		t.Fatalf("failed to create actor: %v", err)
	}

	var mu sync.Mutex
	var ran int
	var ranOnScheduler bool

	handle := act.PostWait(func() {
		mu.Lock()
		ran++
		mu.Unlock()
		ranOnScheduler = act.(*actor).running.Load()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := handle.WaitContext(ctx); err != nil {
		t.Fatalf("PostWait's handle never signaled: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if ran != 1 {
		t.Fatalf("expected the posted closure to run exactly once, ran %d times", ran)
	}
	if !ranOnScheduler {
		t.Error("expected the closure to have run with the actor marked running on its scheduler thread")
	}
}

// atomicCounter is a tiny helper for scenario tests that just need a
// monotonically increasing count observed from multiple goroutines.
type atomicCounter struct {
	mu sync.Mutex
	n  int
}

func (c *atomicCounter) add(d int) {
	c.mu.Lock()
	c.n += d
	c.mu.Unlock()
}

func (c *atomicCounter) load() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
