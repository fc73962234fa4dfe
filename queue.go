package ctrlc

import (
	"errors"
	"sync"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

// ErrDisconnected is returned by a send once the owning [Bridge] has been
// closed and nothing will ever read the event.
var ErrDisconnected = errors.New("ctrlc: bridge closed")

// ErrProducerClosed is returned by a send through a [Producer] that has
// already been released with [Producer.Close].
var ErrProducerClosed = errors.New("ctrlc: producer closed")

// ///////////////////////////////////////////////
// Queue
// ///////////////////////////////////////////////

// queue is an unbounded FIFO of events with one consumer and any number of
// counted producers. All producer bookkeeping happens under mu so a clone
// racing a release never lets senders dip to zero while a live handle exists.
type queue struct {
	mu sync.Mutex
	// events holds pending events in arrival order.
	events []Event
	// senders counts producer handles that have not been released.
	senders int
	// closed is set once the consumer is gone.
	closed bool
}

// newProducer returns the first producer handle for q.
func (q *queue) newProducer() *Producer {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.senders++
	return &Producer{q: q}
}

// clone returns a new handle sharing p's queue. Cloning a released handle
// yields another released handle.
func (q *queue) clone(p *Producer) *Producer {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p.released {
		return &Producer{q: q, released: true}
	}
	q.senders++
	return &Producer{q: q}
}

// release drops p from the sender count. Releasing twice is a no-op.
func (q *queue) release(p *Producer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p.released {
		return
	}
	p.released = true
	q.senders--
}

// send appends e on behalf of p.
func (q *queue) send(p *Producer, e Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p.released {
		return ErrProducerClosed
	}
	if q.closed {
		return ErrDisconnected
	}
	q.events = append(q.events, e)
	return nil
}

// pop removes and returns the oldest event without blocking. An empty queue
// reports [Continue] while any producer is alive and [Error] otherwise.
func (q *queue) pop() Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return Error
	}
	if len(q.events) == 0 {
		if q.senders == 0 {
			return Error
		}
		return Continue
	}
	e := q.events[0]
	q.events = q.events[1:]
	if len(q.events) == 0 {
		q.events = nil
	}
	return e
}

// close marks the consumer gone and discards anything pending.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.events = nil
}

// pending reports how many events are waiting.
func (q *queue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
