package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MainStepper produces the long-running, voluntarily-cooperative part of
// an actor's behavior. StepMain is advanced at most once per scheduler
// sweep. An Actor with no MainStepper behaves as though StepMain always
// returned OpBreak immediately.
type MainStepper interface {
	StepMain() Operation
}

// MainStepperFunc adapts a plain function to MainStepper.
type MainStepperFunc func() Operation

// StepMain calls f.
func (f MainStepperFunc) StepMain() Operation { return f() }

// actor implements the Actor interface. Unlike the teacher's
// goroutine-per-actor design, a single step of one actor executes on
// whichever scheduler thread is currently sweeping it; the actor itself
// holds no goroutine of its own. See Scheduler for the sweep loop.
type actor struct {
	id   ActorID
	uid  string
	name string

	ctxPool *Context
	sched   *Scheduler

	mailbox *queue[func()]
	main    MainStepper

	handler MessageHandler

	running  atomic.Bool
	disposed atomic.Bool

	disposeOnce sync.Once
	teardown    func()
	joinGate    *WaitHandle

	opts ActorOptions

	messagesProcessed atomic.Uint64
	createdAt         time.Time
	lastMessageAt     atomic.Int64

	pendingCalls   sync.Map // session uint32 -> chan *Message
	sessionCounter atomic.Uint32

	timers sync.Map // *Timer -> struct{}, disposed along with the actor
}

// newActor builds an unregistered actor. Use Context.Register (or
// NewActor) to bind it to a scheduler.
func newActor(id ActorID, handler MessageHandler, opts ActorOptions) *actor {
	if opts.MailboxSize == 0 {
		opts = DefaultActorOptions()
	}
	return &actor{
		id:        id,
		uid:       uuid.NewString(),
		name:      opts.Name,
		mailbox:   newQueue[func()](),
		handler:   handler,
		joinGate:  NewWaitHandle(),
		opts:      opts,
		createdAt: time.Now(),
	}
}

// NewActor creates an actor and registers it with ctx, which assigns it
// to a least-loaded scheduler. The returned value satisfies the Actor
// interface; callers needing actor-runtime specifics (SetMain, Join,
// Dispose) can type-assert to *actor or use the exported helpers below.
func NewActor(ctx *Context, id ActorID, handler MessageHandler, opts ActorOptions) (Actor, error) {
	a := newActor(id, handler, opts)
	if err := ctx.Register(a); err != nil {
		return nil, err
	}
	return a, nil
}

// ID returns the actor's routing identity.
func (a *actor) ID() ActorID { return a.id }

// UID returns the globally unique identifier minted for this actor at
// construction time, distinct from the small, reusable ActorID used for
// routing. Useful for log correlation across process restarts.
func (a *actor) UID() string { return a.uid }

// SetMain installs the actor's main step-sequence. Must be called before
// the actor is registered with a Context; installing it afterwards races
// with the scheduler thread.
func (a *actor) SetMain(main MainStepper) { a.main = main }

// SetTeardown installs a hook run exactly once during disposal, after
// the disposed flag is set and before the join gate is signaled.
func (a *actor) SetTeardown(fn func()) { a.teardown = fn }

// Start exists to satisfy callers still written against the older
// goroutine-per-actor contract; an actor scheduled by a Context is
// already runnable the moment it is registered, so Start is a no-op
// once registration has happened.
func (a *actor) Start(ctx context.Context) error {
	if a.sched == nil {
		return fmt.Errorf("actor %d is not registered with a context", a.id)
	}
	return nil
}

// Stop disposes the actor and blocks until teardown has completed.
func (a *actor) Stop() error {
	a.Dispose()
	a.Join()
	return nil
}

// Disposed reports whether the actor has been torn down. Once true it
// never becomes false again.
func (a *actor) Disposed() bool { return a.disposed.Load() }

// PostAsync enqueues fn on the actor's mailbox. If the mailbox was empty
// immediately before this post, the actor is handed back to its
// scheduler so it gets swept. Safe to call from any goroutine. A post
// after the actor is fully disposed is silently dropped.
func (a *actor) PostAsync(fn func()) {
	if a.disposed.Load() {
		return
	}
	node := a.mailbox.Post(fn)
	if a.mailbox.PeekHead() == node && a.sched != nil {
		a.sched.add(a)
	}
}

// PostWait enqueues fn and returns a WaitHandle that is signaled once fn
// has executed on the owning scheduler thread. Calling Wait on the
// returned handle from inside fn itself (i.e. from the actor's own
// scheduler thread) deadlocks and is not supported.
func (a *actor) PostWait(fn func()) *WaitHandle {
	wh := NewWaitHandle()
	a.PostAsync(func() {
		fn()
		wh.Signal()
	})
	return wh
}

// Join blocks the caller until the actor has been disposed.
func (a *actor) Join() { a.joinGate.Wait() }

// JoinContext blocks until the actor has been disposed or ctx ends.
func (a *actor) JoinContext(ctx context.Context) error {
	return a.joinGate.WaitContext(ctx)
}

// Dispose requests orderly teardown. It is idempotent: once the actor is
// disposed, further calls are no-ops. The actual teardown always runs on
// the actor's own scheduler thread, so a dispose requested from a
// foreign goroutine is posted as an ordinary message and races fairly
// with messages already queued ahead of it.
func (a *actor) Dispose() {
	if a.disposed.Load() {
		return
	}
	a.PostAsync(a.disposeNow)
}

// disposeNow runs the actual teardown. Only ever called from the owning
// scheduler thread (either from within a step, or directly during
// scheduler shutdown).
func (a *actor) disposeNow() {
	a.disposeOnce.Do(func() {
		a.disposed.Store(true)
		a.timers.Range(func(k, _ any) bool {
			k.(*Timer).Dispose()
			return true
		})
		if a.teardown != nil {
			a.teardown()
		}
		a.joinGate.Signal()
	})
}

// stepMain advances the main step-sequence once.
func (a *actor) stepMain() Operation {
	if a.main == nil {
		return OpBreak
	}
	return a.callMain()
}

func (a *actor) callMain() (op Operation) {
	defer func() {
		if r := recover(); r != nil {
			a.failureSink().Record(fmt.Errorf("actor %d (%s) main step panic: %v", a.id, a.name, r))
			a.disposeNow()
			op = OpDispose
		}
	}()
	return a.main.StepMain()
}

// stepMessage advances the message step-sequence once: it drains at most
// one closure from the mailbox and invokes it. It returns OpBreak when
// the mailbox was empty, OpDispose when the closure (or its panic
// recovery) disposed the actor, and OpContinue otherwise. The scheduler
// acts only on OpDispose; whether it re-sweeps the message side next
// sweep is decided separately, from mailbox occupancy, once the step
// returns — see Scheduler.sweep.
func (a *actor) stepMessage() Operation {
	fn, ok := a.mailbox.TryDequeue()
	if !ok {
		return OpBreak
	}
	a.invokeOnMessage(fn)
	if a.disposed.Load() {
		return OpDispose
	}
	return OpContinue
}

// invokeOnMessage runs fn, recovering from panics into the failure sink
// and disposing the actor when one occurs.
func (a *actor) invokeOnMessage(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.failureSink().Record(fmt.Errorf("actor %d (%s) message handler panic: %v", a.id, a.name, r))
			a.disposeNow()
		}
	}()
	fn()
}

func (a *actor) failureSink() *FailureSink {
	if a.ctxPool != nil {
		return a.ctxPool.FailureSink()
	}
	return GlobalFailureSink()
}

// registerTimer associates t with the actor so it is disposed alongside it.
func (a *actor) registerTimer(t *Timer) {
	a.timers.Store(t, struct{}{})
}

// Send wraps msg in a mailbox closure that invokes the actor's
// MessageHandler, preserving the message-oriented convenience API the
// router and service layers use on top of the primitive PostAsync.
func (a *actor) Send(msg *Message) error {
	if a.disposed.Load() {
		return fmt.Errorf("actor %d is disposed", a.id)
	}
	a.PostAsync(func() {
		a.messagesProcessed.Add(1)
		a.lastMessageAt.Store(time.Now().Unix())

		ctx, cancel := context.WithTimeout(context.Background(), a.opts.ProcessTimeout)
		defer cancel()

		err := a.handler.HandleMessage(ctx, msg)
		if msg.Session != 0 {
			a.sendResponse(msg, err)
		}
	})
	return nil
}

// Call sends msg and blocks until a correlated response arrives or ctx ends.
func (a *actor) Call(ctx context.Context, msg *Message) (*Message, error) {
	session := a.sessionCounter.Add(1)
	msg.Session = session

	respChan := make(chan *Message, 1)
	a.pendingCalls.Store(session, respChan)
	defer a.pendingCalls.Delete(session)

	if err := a.Send(msg); err != nil {
		return nil, err
	}

	select {
	case resp := <-respChan:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *actor) sendResponse(originalMsg *Message, err error) {
	respChanAny, ok := a.pendingCalls.Load(originalMsg.Session)
	if !ok {
		return
	}
	ch := respChanAny.(chan *Message)

	resp := &Message{
		Type:      MessageTypeResponse,
		Source:    a.id,
		Target:    originalMsg.Source,
		Session:   originalMsg.Session,
		Timestamp: time.Now(),
	}
	if err != nil {
		resp.Type = MessageTypeError
		resp.Data = []byte(err.Error())
	}

	select {
	case ch <- resp:
	default:
	}
}

// Stats returns a snapshot of the actor's runtime statistics.
func (a *actor) Stats() ActorStats {
	var state ActorState
	switch {
	case a.disposed.Load():
		state = ActorStateStopped
	case a.running.Load():
		state = ActorStateRunning
	default:
		state = ActorStateIdle
	}

	var lastMessageAt time.Time
	if ts := a.lastMessageAt.Load(); ts > 0 {
		lastMessageAt = time.Unix(ts, 0)
	}

	return ActorStats{
		ID:                a.id,
		Name:              a.name,
		State:             state,
		MessagesProcessed: a.messagesProcessed.Load(),
		MailboxSize:       mailboxLen(a.mailbox),
		CreatedAt:         a.createdAt,
		LastMessageAt:     lastMessageAt,
	}
}

// mailboxLen walks the queue to report an approximate depth; only used
// for diagnostics, never on a hot path.
func mailboxLen(q *queue[func()]) int {
	n := 0
	node := q.head.Load().next.Load()
	for node != nil {
		n++
		node = node.next.Load()
	}
	return n
}
