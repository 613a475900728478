package network

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ListenerConfig configures a Listener's accept and framing behavior.
type ListenerConfig struct {
	// Backlog is the requested pending-connection queue depth. The
	// standard library's net.Listen does not expose a portable knob for
	// this (unlike the raw socket API the teacher's platform target
	// assumed), so Backlog is validated but otherwise advisory here.
	Backlog int

	// MultiConn allows more than one live session from the same remote
	// address when true. When false, a second accept from an address
	// that already has a live session is rejected.
	MultiConn bool

	// Nagle enables Nagle's algorithm on accepted connections. Changes
	// only take effect for connections accepted after a restart.
	Nagle bool

	// Partial, when true, forwards incremental bytes to the propagator
	// as they arrive instead of buffering until a complete
	// length-prefixed frame is decodable.
	Partial bool
}

// DefaultListenerConfig returns a conservative default: bounded backlog,
// one session per remote address, Nagle off (typical for small
// latency-sensitive game-protocol frames), and buffered (non-partial)
// delivery.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		Backlog:   128,
		MultiConn: false,
		Nagle:     false,
		Partial:   false,
	}
}

// Listener is the TCP accept/receive boundary that injects decoded
// frames into the actor runtime via a Propagator. It intentionally
// knows nothing about the wire protocol carried inside a frame.
type Listener struct {
	config     ListenerConfig
	propagator Propagator
	sink       failureRecorder
	log        logrus.FieldLogger

	ln net.Listener

	clients   map[string]*Session
	clientsMu sync.Mutex

	onConnected    []func(*Session)
	onDisconnected []func(*Session, error)

	stopped atomic.Bool
	wg      sync.WaitGroup
}

// NewListener builds a Listener. sink may be nil, in which case accept
// and routing failures are discarded rather than recorded; pass a
// *core.FailureSink, which satisfies failureRecorder, to record them.
func NewListener(config ListenerConfig, propagator Propagator, sink failureRecorder, log logrus.FieldLogger) (*Listener, error) {
	if config.Backlog <= 0 {
		return nil, fmt.Errorf("network: backlog must be positive, got %d", config.Backlog)
	}
	if propagator == nil {
		return nil, fmt.Errorf("network: listener requires a propagator")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Listener{
		config:     config,
		propagator: propagator,
		sink:       sink,
		log:        log,
		clients:    make(map[string]*Session),
	}, nil
}

// OnClientConnected registers an observer invoked once per accepted,
// admitted session, after its initial Connected permission is granted.
func (l *Listener) OnClientConnected(fn func(*Session)) {
	l.onConnected = append(l.onConnected, fn)
}

// OnClientDisconnected registers an observer invoked once a session's
// receive loop exits, whatever the cause.
func (l *Listener) OnClientDisconnected(fn func(*Session, error)) {
	l.onDisconnected = append(l.onDisconnected, fn)
}

// Start binds addr and begins accepting connections in the background.
func (l *Listener) Start(addr string) error {
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("network: listen on %s: %w", addr, err)
	}
	l.ln = ln

	l.wg.Add(1)
	go l.acceptLoop()
	return nil
}

// Addr returns the bound address, or nil if Start has not been called.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// acceptLoop is the listener's accept goroutine. Per call it classifies
// Accept failures into: listener closed (stop silently), other
// socket-level failure (record to the failure sink, stop accepting).
func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.stopped.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if l.sink != nil {
				l.sink.Record(fmt.Errorf("network: accept failed: %w", err))
			}
			return
		}

		l.admit(conn)
	}
}

// admit applies the duplicate-connection policy, installs the initial
// Connected permission, registers the session, and starts its receive
// loop. It never blocks the accept goroutine on I/O beyond the admit
// decision itself.
func (l *Listener) admit(conn net.Conn) {
	remote := conn.RemoteAddr().String()

	if !l.config.MultiConn {
		l.clientsMu.Lock()
		for _, existing := range l.clients {
			if existing.RemoteAddr() == remote {
				l.clientsMu.Unlock()
				l.log.WithField("remote", remote).Warn("rejecting duplicate connection from same remote address")
				conn.Close()
				return
			}
		}
		l.clientsMu.Unlock()
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(!l.config.Nagle)
	}

	session := newSession(conn, l.propagator, l.log)

	l.clientsMu.Lock()
	l.clients[session.ID()] = session
	l.clientsMu.Unlock()

	for _, fn := range l.onConnected {
		fn(session)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.retire(session)
		session.receiveLoop(l.config.Partial, l.sinkOrDiscard())
	}()
}

func (l *Listener) retire(session *Session) {
	l.clientsMu.Lock()
	delete(l.clients, session.ID())
	l.clientsMu.Unlock()

	for _, fn := range l.onDisconnected {
		fn(session, nil)
	}
}

func (l *Listener) sinkOrDiscard() failureRecorder {
	if l.sink != nil {
		return l.sink
	}
	return discardSink{}
}

type discardSink struct{}

func (discardSink) Record(error) {}

// Stop disconnects every live session, clears the client list, and
// closes the listening socket. Idempotency beyond one call is not
// guaranteed, matching the accept loop's own single-shutdown contract.
func (l *Listener) Stop() error {
	l.stopped.Store(true)

	if l.ln != nil {
		l.ln.Close()
	}

	l.clientsMu.Lock()
	clients := make([]*Session, 0, len(l.clients))
	for _, c := range l.clients {
		clients = append(clients, c)
	}
	l.clients = make(map[string]*Session)
	l.clientsMu.Unlock()

	var group errgroup.Group
	for _, c := range clients {
		c := c
		group.Go(func() error {
			c.Disconnect()
			return nil
		})
	}
	group.Wait()

	l.wg.Wait()
	return nil
}

// ClientCount returns the number of currently live sessions.
func (l *Listener) ClientCount() int {
	l.clientsMu.Lock()
	defer l.clientsMu.Unlock()
	return len(l.clients)
}
