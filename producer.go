package ctrlc

// Producer is a handle to the sending side of a [Bridge]. A quit sent
// through any handle is indistinguishable from a delivered interrupt.
// Handles are safe for concurrent use; each one should be released with
// [Producer.Close] when its owner is done with it.
type Producer struct {
	q *queue
	// released is guarded by q.mu.
	released bool
}

// RequestQuit enqueues a [Quit] event. It returns [ErrDisconnected] once the
// bridge is closed and [ErrProducerClosed] if this handle was released.
func (p *Producer) RequestQuit() error {
	return p.q.send(p, Quit)
}

// Clone returns an independent handle to the same queue.
func (p *Producer) Clone() *Producer {
	return p.q.clone(p)
}

// Close releases the handle. When the last handle is released and nothing is
// pending, [Bridge.Poll] reports [Error].
func (p *Producer) Close() {
	p.q.release(p)
}
