// Package core implements a scheduler-swept actor runtime: a fixed pool
// of goroutines (Scheduler) round-robins over registered actors, each
// backed by an MPSC mailbox rather than a goroutine of its own. Actor,
// Context, Timer, Gate, and WaitHandle are the primitives; Router,
// AdvancedRouter, and ServiceDiscovery build named-service addressing
// on top of them for the higher-level ActorSystem.
package core
