package network

import (
	"fmt"

	"github.com/najoast/sngo/core"
)

// Frame is a decoded, protocol-agnostic unit handed from a session's
// receive loop to a Propagator. What the bytes mean is entirely up to
// the protocol layer above this package; the session only knows how to
// carve frames out of the stream (or, with partial delivery enabled,
// how to hand over whatever arrived).
type Frame struct {
	SessionID string
	Data      []byte
}

// Propagator resolves the destination actor(s) for a decoded frame and
// hands it off via PostAsync. It never runs frame-handling code itself;
// Route only decides who receives the frame and posts it, so the
// session's I/O goroutine returns immediately.
type Propagator interface {
	Route(session *Session, frame Frame) error
}

// ActorPropagator routes every frame to a single fixed actor, wrapping
// it as a Message on the target's mailbox. NewListener has no default
// propagator: callers pass this one, or a more specific routing strategy
// (e.g. one that demultiplexes by session or by a header field).
type ActorPropagator struct {
	target core.Actor
}

// NewActorPropagator builds a propagator that forwards every frame to target.
func NewActorPropagator(target core.Actor) *ActorPropagator {
	return &ActorPropagator{target: target}
}

// Route posts frame to the fixed target actor's mailbox via Send, which
// itself is built on PostAsync — the frame is handled on the target's
// scheduler thread, never on the session's I/O goroutine.
func (p *ActorPropagator) Route(session *Session, frame Frame) error {
	if p.target == nil {
		return fmt.Errorf("network: propagator has no target actor")
	}

	return p.target.Send(&core.Message{
		Type: core.MessageTypeText,
		Data: frame.Data,
	})
}
