// Package ctrlc turns interactive interrupts (Ctrl-C) into events that a
// long-running loop polls on its own schedule instead of being unwound by a
// signal handler.
//
// A [Bridge] registers a process-wide os.Interrupt handler once, queues a
// [Quit] event for every delivered interrupt, and answers [Bridge.Poll] and
// [Bridge.ShouldContinue] without blocking:
//
//	b := ctrlc.New()
//	for b.ShouldContinue() {
//		step()
//	}
//
// Other goroutines can request the same stop through a cloned [Producer]
// from [Bridge.Producer]; the consumer cannot tell the two apart.
package ctrlc

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"tools.zach/dev/ctrlc/internal/logger"
)

// ///////////////////////////////////////////////
// Options
// ///////////////////////////////////////////////

// Option configures a [Bridge] at construction.
type Option func(*options)

type options struct {
	log   *slog.Logger
	abort func(error)
	trap  *trap
}

// WithLogger sets the logger used for interrupt delivery messages. Defaults
// to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithAbort replaces the action taken when the interrupt handler cannot
// deliver its event because the bridge was closed. The default logs at FAIL
// level and exits the process with status 1.
func WithAbort(fn func(error)) Option {
	return func(o *options) { o.abort = fn }
}

// withTrap attaches the bridge to t instead of the process registration.
func withTrap(t *trap) Option {
	return func(o *options) { o.trap = t }
}

// ///////////////////////////////////////////////
// Bridge
// ///////////////////////////////////////////////

// Bridge owns the consuming end of an interrupt queue. Only one goroutine
// should call [Bridge.Poll] or [Bridge.ShouldContinue]; sends may come from
// anywhere.
type Bridge struct {
	// q is the FIFO shared with every producer handle.
	q *queue
	// tx is the bridge's own handle, used by [Bridge.RequestQuit] and cloned
	// by [Bridge.Producer].
	tx *Producer
	// handler is the handle captured by the signal handler.
	handler *Producer
	log     *slog.Logger
	abort   func(error)
}

// New creates a Bridge and registers its interrupt handler. The registration
// is permanent for the life of the process: closing the bridge does not
// remove it. The first bridge in a process installs the os/signal
// registration; later bridges share it and each receive every interrupt.
func New(opts ...Option) *Bridge {
	o := options{trap: processTrap}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}

	q := &queue{}
	tx := q.newProducer()
	b := &Bridge{
		q:       q,
		tx:      tx,
		handler: tx.Clone(),
		log:     o.log,
		abort:   o.abort,
	}
	if b.abort == nil {
		b.abort = b.exit
	}
	o.trap.register(b.onInterrupt)
	return b
}

// Poll removes at most one pending event and never blocks. It returns [Quit]
// if an event was waiting, [Continue] if the queue is empty, and [Error] if
// the bridge is closed or every producer handle has been released.
func (b *Bridge) Poll() Event {
	return b.q.pop()
}

// ShouldContinue reports whether [Bridge.Poll] returned [Continue]. Like Poll
// it consumes one pending event, so a true result after a false one means the
// backlog is drained.
func (b *Bridge) ShouldContinue() bool {
	return b.Poll() == Continue
}

// RequestQuit enqueues a [Quit] event exactly as a delivered interrupt would.
// It returns [ErrDisconnected] after [Bridge.Close] and [ErrProducerClosed]
// after [Bridge.Disarm].
func (b *Bridge) RequestQuit() error {
	return b.tx.RequestQuit()
}

// Producer returns a new handle to the bridge's queue for use by other
// components. After [Bridge.Disarm] the returned handle is already released.
func (b *Bridge) Producer() *Producer {
	return b.tx.Clone()
}

// Pending reports how many events are waiting to be polled.
func (b *Bridge) Pending() int {
	return b.q.pending()
}

// Disarm releases the bridge's own producer and the one held by its
// interrupt handler. Interrupts reaching the handler afterwards are dropped.
// Once every handle returned by [Bridge.Producer] is also closed and the
// backlog is drained, Poll reports [Error].
func (b *Bridge) Disarm() {
	b.tx.Close()
	b.handler.Close()
}

// Close drops the consuming end. Pending events are discarded, Poll reports
// [Error], and sends fail with [ErrDisconnected]. An interrupt that reaches
// a closed (but still armed) bridge triggers the abort action. Close is
// idempotent.
func (b *Bridge) Close() {
	b.q.close()
}

// ///////////////////////////////////////////////
// Interrupt Handler
// ///////////////////////////////////////////////

// onInterrupt runs on the trap goroutine for every delivered interrupt.
func (b *Bridge) onInterrupt(sig os.Signal) {
	err := b.handler.RequestQuit()
	switch {
	case err == nil:
		b.log.Debug("interrupt received", "signal", sig.String())
	case errors.Is(err, ErrProducerClosed):
		b.log.Debug("interrupt dropped, bridge disarmed", "signal", sig.String())
	default:
		b.abort(fmt.Errorf("deliver %s: %w", sig, err))
	}
}

// exit is the default abort action. A signal handler has no caller to hand
// an error to, so a broken delivery path ends the process.
func (b *Bridge) exit(err error) {
	logger.Fail(b.log, "interrupt handler cannot deliver", "error", err)
	fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
	os.Exit(1)
}
