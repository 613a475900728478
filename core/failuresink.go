package core

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FailureRecord is a single entry recorded in a FailureSink: the instant
// an uncaught step exception or transport error was observed, and the
// error itself.
type FailureRecord struct {
	Timestamp time.Time
	Err       error
}

// FailureSink is a process-wide, thread-safe, append-only collection of
// FailureRecord values. Actor message handlers, main step-sequences, and
// the TCP listener all redirect errors here instead of letting them
// escape onto a scheduler or accept goroutine.
type FailureSink struct {
	mu      sync.RWMutex
	records []FailureRecord
	log     logrus.FieldLogger
}

// NewFailureSink creates an empty sink. log may be nil, in which case
// logrus.StandardLogger() is used.
func NewFailureSink(log logrus.FieldLogger) *FailureSink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FailureSink{log: log}
}

// Record appends err with the current time and logs it at warn level.
func (s *FailureSink) Record(err error) {
	if err == nil {
		return
	}
	rec := FailureRecord{Timestamp: time.Now(), Err: err}

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	s.log.WithError(err).Warn("runtime failure recorded")
}

// Records returns a snapshot of every failure recorded so far.
func (s *FailureSink) Records() []FailureRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FailureRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of recorded failures.
func (s *FailureSink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var (
	globalFailureSink     *FailureSink
	globalFailureSinkOnce sync.Once
)

// GlobalFailureSink returns the process-wide, lazily-initialized failure
// sink used by actors and schedulers created without an explicit sink.
func GlobalFailureSink() *FailureSink {
	globalFailureSinkOnce.Do(func() {
		globalFailureSink = NewFailureSink(nil)
	})
	return globalFailureSink
}
