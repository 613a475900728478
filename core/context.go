package core

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Context is a pool of schedulers that actors are distributed across.
// Registering an actor assigns it to whichever scheduler currently
// carries the fewest actors; nothing ever migrates an actor to a
// different scheduler afterwards; work stealing and rebalancing are
// explicitly out of scope.
type Context struct {
	schedulers []*Scheduler
	nextID     atomic.Uint32

	sink *FailureSink
	log  logrus.FieldLogger

	mu       sync.RWMutex
	disposed bool
}

// ContextOptions configures a Context pool.
type ContextOptions struct {
	// SchedulerCount sets the number of scheduler goroutines. Zero
	// selects runtime.NumCPU().
	SchedulerCount int

	// Log receives the failure sink's messages; schedulers do not log.
	// Nil selects logrus.StandardLogger().
	Log logrus.FieldLogger
}

// NewContext builds and starts a pool of schedulers per opts.
func NewContext(opts ContextOptions) *Context {
	n := opts.SchedulerCount
	if n <= 0 {
		n = runtime.NumCPU()
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Context{
		sink: NewFailureSink(log),
		log:  log,
	}
	c.schedulers = make([]*Scheduler, n)
	for i := range c.schedulers {
		c.schedulers[i] = newScheduler(i, c.sink)
	}
	return c
}

var (
	globalContext     *Context
	globalContextOnce sync.Once
)

// Global returns the process-wide default Context, created on first use
// with runtime.NumCPU() schedulers.
func Global() *Context {
	globalContextOnce.Do(func() {
		globalContext = NewContext(ContextOptions{})
	})
	return globalContext
}

// FailureSink returns the sink shared by every scheduler in this pool.
func (c *Context) FailureSink() *FailureSink { return c.sink }

// NextActorID mints the next unique ActorID for this pool.
func (c *Context) NextActorID() ActorID {
	return ActorID(c.nextID.Add(1))
}

// Register assigns a to the least-loaded scheduler in the pool. Register
// must be called before any other goroutine starts posting to a, and
// must be called at most once per actor.
func (c *Context) Register(a *actor) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.disposed {
		return fmt.Errorf("context is disposed")
	}

	a.ctxPool = c

	best := c.schedulers[0]
	bestLoad := best.Load()
	for _, s := range c.schedulers[1:] {
		if load := s.Load(); load < bestLoad {
			best, bestLoad = s, load
		}
	}

	a.sched = best
	best.add(a)
	return nil
}

// Schedulers returns the pool's schedulers, primarily for statistics.
func (c *Context) Schedulers() []*Scheduler {
	out := make([]*Scheduler, len(c.schedulers))
	copy(out, c.schedulers)
	return out
}

// Stats returns a snapshot of every scheduler's counters.
func (c *Context) Stats() []SchedulerStats {
	out := make([]SchedulerStats, len(c.schedulers))
	for i, s := range c.schedulers {
		out[i] = s.Stats()
	}
	return out
}

// Dispose stops every scheduler concurrently, disposing whatever actors
// they still own, and waits for all of them to drain or for ctx to end.
func (c *Context) Dispose(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.mu.Unlock()

	group, gctx := errgroup.WithContext(ctx)
	for _, s := range c.schedulers {
		s := s
		group.Go(func() error {
			done := s.Stop()
			if err := done.WaitContext(gctx); err != nil {
				return fmt.Errorf("scheduler %d: %w", s.id, err)
			}
			return nil
		})
	}
	return group.Wait()
}
