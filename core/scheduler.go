package core

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// SchedulerStats reports a scheduler's lifetime counters, useful for
// assertions that an idle scheduler slept rather than busy-spun and
// that a posted message actually woke it.
type SchedulerStats struct {
	ID         int
	Sweeps     uint64
	Wakeups    uint64
	ActorCount int
}

// Scheduler round-robins a fixed set of actors through one step each of
// their main and message step-sequences, in non-short-circuit fashion:
// both sides are always advanced once per sweep regardless of what the
// other side returned. A Scheduler owns exactly one goroutine; a Context
// pools several schedulers to spread actors across runtime.NumCPU()
// worker threads.
type Scheduler struct {
	id int

	arrivals *queue[*actor]
	wake     chan struct{}

	actors   map[*actor]struct{}
	actorsMu sync.Mutex

	sweeps  atomic.Uint64
	wakeups atomic.Uint64

	stopped atomic.Bool
	done    *WaitHandle

	// processed is set once a full inner sweep loop has settled with no
	// actor carrying further work, and cleared the moment the next
	// outer iteration starts draining arrivals again. Shutdown paths
	// that want to observe a quiescent scheduler wait on it instead of
	// racing the wake channel.
	processed *Gate

	sink *FailureSink
}

func newScheduler(id int, sink *FailureSink) *Scheduler {
	if sink == nil {
		sink = GlobalFailureSink()
	}
	s := &Scheduler{
		id:        id,
		arrivals:  newQueue[*actor](),
		wake:      make(chan struct{}, 1),
		actors:    make(map[*actor]struct{}),
		done:      NewWaitHandle(),
		processed: NewGate(),
		sink:      sink,
	}
	go s.run()
	return s
}

// WaitProcessed blocks until the scheduler is between sweeps with no
// actor carrying further work — the quiescence point shutdown observes.
func (s *Scheduler) WaitProcessed() { s.processed.Wait() }

// add enqueues actor for the next sweep and wakes the scheduler if it is
// currently parked. Safe to call from any goroutine, including other
// schedulers and the actor's own step (re-arrival after a main step that
// still wants to run).
func (s *Scheduler) add(a *actor) {
	if s.stopped.Load() {
		return
	}
	node := s.arrivals.Post(a)
	if s.arrivals.PeekHead() == node {
		s.signal()
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Load reports the number of actors currently assigned to this scheduler.
func (s *Scheduler) Load() int {
	s.actorsMu.Lock()
	defer s.actorsMu.Unlock()
	return len(s.actors)
}

// Stats returns a snapshot of this scheduler's counters.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		ID:         s.id,
		Sweeps:     s.sweeps.Load(),
		Wakeups:    s.wakeups.Load(),
		ActorCount: s.Load(),
	}
}

// run is the scheduler's single goroutine: an outer level-triggered loop
// that waits for work, then an inner loop that keeps sweeping the active
// list — draining fresh arrivals between passes — until a full sweep
// settles with nothing left to do.
func (s *Scheduler) run() {
	defer s.done.Signal()

	for {
		s.drainArrivals()

		if s.stopped.Load() && len(s.actors) == 0 {
			return
		}

		s.processed.Clear()

		for {
			s.drainArrivals()

			anyWork := s.sweep()

			if s.stopped.Load() && len(s.actors) == 0 {
				return
			}

			if !anyWork {
				break
			}

			runtime.Gosched()
		}

		s.processed.Set()

		if s.arrivals.IsEmpty() {
			s.park()
		}
	}
}

// drainArrivals moves every actor currently sitting in the arrival queue
// into the scheduler's owned set. Once the scheduler is stopping, each
// arrival is also disposed, so an actor that was still queued when Stop
// walked the owned set is retired too.
func (s *Scheduler) drainArrivals() {
	s.actorsMu.Lock()
	defer s.actorsMu.Unlock()
	for {
		a, ok := s.arrivals.TryDequeue()
		if !ok {
			return
		}
		a.sched = s
		s.actors[a] = struct{}{}
		if s.stopped.Load() {
			a.Dispose()
		}
	}
}

// sweep advances every owned actor's main and message step-sequences
// exactly once each, non-short-circuit: both sides always run, even if
// the main step alone would have settled the actor's fate. It reports
// whether any actor still has work pending for the next sweep.
func (s *Scheduler) sweep() bool {
	s.sweeps.Add(1)

	s.actorsMu.Lock()
	current := make([]*actor, 0, len(s.actors))
	for a := range s.actors {
		current = append(current, a)
	}
	s.actorsMu.Unlock()

	anyWork := false

	for _, a := range current {
		if a.disposed.Load() {
			s.retire(a)
			continue
		}

		a.running.Store(true)
		mainOp := a.stepMain()
		msgOp := a.stepMessage()
		a.running.Store(false)

		if mainOp == OpDispose || msgOp == OpDispose {
			a.disposeNow()
			s.retire(a)
			continue
		}

		hasMoreMain := mainOp == OpContinue
		hasMoreMessage := !a.mailbox.IsEmpty()

		if hasMoreMain || hasMoreMessage {
			anyWork = true
		}
	}

	return anyWork
}

// retire removes a disposed actor from this scheduler's owned set.
func (s *Scheduler) retire(a *actor) {
	s.actorsMu.Lock()
	delete(s.actors, a)
	s.actorsMu.Unlock()
}

// park blocks until woken by a new arrival or post, recording the wakeup.
func (s *Scheduler) park() {
	<-s.wake
	s.wakeups.Add(1)
}

// Stop marks the scheduler as draining: it will dispose every actor it
// currently owns and exit once they have all retired. Stop does not
// block; wait on the returned WaitHandle to observe completion.
func (s *Scheduler) Stop() *WaitHandle {
	s.stopped.Store(true)

	s.actorsMu.Lock()
	for a := range s.actors {
		a.Dispose()
	}
	s.actorsMu.Unlock()

	s.signal()
	return s.done
}
