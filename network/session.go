package network

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// frameHeaderSize is the length, in bytes, of the length prefix this
// package uses to delimit frames when partial delivery is disabled. The
// wire format above the length prefix is entirely the protocol layer's
// concern; this package only needs enough structure to demonstrate
// buffered-vs-partial delivery.
const frameHeaderSize = 4

// Session wraps one accepted TCP connection: the permission set it has
// been granted, and the propagator that turns decoded frames into actor
// messages. The session's own goroutine never runs frame-handling code;
// it only decodes frames and hands them to the propagator.
type Session struct {
	id         string
	conn       net.Conn
	remoteAddr string

	permissions PermissionSet
	propagator  Propagator

	disconnectOnce sync.Once
	log            logrus.FieldLogger
}

func newSession(conn net.Conn, propagator Propagator, log logrus.FieldLogger) *Session {
	s := &Session{
		id:         uuid.NewString(),
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		propagator: propagator,
		log:        log,
	}
	s.permissions.Grant(PermissionConnected)
	return s
}

// ID returns the session's identity.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the remote endpoint's string form, used by the
// listener's duplicate-connection check.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// Permissions returns the session's capability set.
func (s *Session) Permissions() *PermissionSet { return &s.permissions }

// Disconnect closes the underlying connection. Safe to call more than
// once; only the first call has any effect.
func (s *Session) Disconnect() {
	s.disconnectOnce.Do(func() {
		s.conn.Close()
	})
}

// receiveLoop reads frames from the connection until a read returns an
// error (including the connection closing), handing each to the
// propagator. partial controls
// whether the session buffers until a complete length-prefixed frame is
// available (false) or forwards each read's bytes immediately as they
// arrive (true).
func (s *Session) receiveLoop(partial bool, sink failureRecorder) {
	defer s.Disconnect()

	if partial {
		s.receivePartial(sink)
		return
	}
	s.receiveBuffered(sink)
}

func (s *Session) receivePartial(sink failureRecorder) {
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			frame := Frame{SessionID: s.id, Data: append([]byte(nil), buf[:n]...)}
			if routeErr := s.propagator.Route(s, frame); routeErr != nil {
				sink.Record(fmt.Errorf("network: routing partial frame from %s: %w", s.remoteAddr, routeErr))
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) receiveBuffered(sink failureRecorder) {
	var pending []byte
	chunk := make([]byte, 4096)

	for {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			pending = s.drainFrames(pending, sink)
		}
		if err != nil {
			return
		}
	}
}

// drainFrames extracts every complete length-prefixed frame from buf,
// routing each one, and returns the unconsumed remainder.
func (s *Session) drainFrames(buf []byte, sink failureRecorder) []byte {
	for {
		if len(buf) < frameHeaderSize {
			return buf
		}
		length := binary.BigEndian.Uint32(buf[:frameHeaderSize])
		total := frameHeaderSize + int(length)
		if len(buf) < total {
			return buf
		}

		payload := append([]byte(nil), buf[frameHeaderSize:total]...)
		if err := s.propagator.Route(s, Frame{SessionID: s.id, Data: payload}); err != nil {
			sink.Record(fmt.Errorf("network: routing frame from %s: %w", s.remoteAddr, err))
		}
		buf = buf[total:]
	}
}

// failureRecorder is the subset of core.FailureSink this package
// depends on, kept narrow so session/listener tests can supply a stub.
type failureRecorder interface {
	Record(err error)
}
