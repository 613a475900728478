package core

import (
	"context"
	"sync"
)

// WaitHandle is a one-shot synchronization primitive: a single Signal
// call releases every current and future Wait call. It is single-wait,
// single-signal by design — a fresh WaitHandle is allocated per
// PostWait call rather than reused, so "waiting twice" only ever means
// "two callers observing the same already-decided outcome".
type WaitHandle struct {
	once sync.Once
	ch   chan struct{}
}

// NewWaitHandle creates an unsignaled wait handle.
func NewWaitHandle() *WaitHandle {
	return &WaitHandle{ch: make(chan struct{})}
}

// Signal releases every waiter. Calling Signal more than once is a no-op.
func (w *WaitHandle) Signal() {
	w.once.Do(func() { close(w.ch) })
}

// Wait blocks until Signal has been called.
func (w *WaitHandle) Wait() {
	<-w.ch
}

// WaitContext blocks until Signal has been called or ctx is done,
// whichever happens first.
func (w *WaitHandle) WaitContext(ctx context.Context) error {
	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signaled reports whether Signal has already been called, without blocking.
func (w *WaitHandle) Signaled() bool {
	select {
	case <-w.ch:
		return true
	default:
		return false
	}
}
