package ctrlc

import (
	"os"
	"os/signal"
	"slices"
	"sync"
)

// signalBuffer sizes the channel handed to signal.Notify. The runtime drops
// signals when the channel is full, so a few slots keep a burst of Ctrl-C
// presses from collapsing into one.
const signalBuffer = 16

// processTrap is the single interrupt registration shared by every bridge in
// the process.
var processTrap = newTrap(signal.Notify)

// trap installs one os.Interrupt registration the first time a handler is
// added and fans every delivered signal out to all handlers. Handlers are
// never removed and the registration is never stopped.
type trap struct {
	// notify registers a channel for signals; signal.Notify in production.
	notify func(c chan<- os.Signal, sig ...os.Signal)
	// once guards the one-time call to notify.
	once sync.Once
	// mu guards handlers.
	mu       sync.Mutex
	handlers []func(os.Signal)
}

func newTrap(notify func(c chan<- os.Signal, sig ...os.Signal)) *trap {
	return &trap{notify: notify}
}

// register appends h and installs the process registration if this is the
// first handler.
func (t *trap) register(h func(os.Signal)) {
	t.mu.Lock()
	t.handlers = append(t.handlers, h)
	t.mu.Unlock()

	t.once.Do(func() {
		ch := make(chan os.Signal, signalBuffer)
		t.notify(ch, os.Interrupt)
		go t.dispatch(ch)
	})
}

// dispatch runs every handler, in registration order, for each signal.
func (t *trap) dispatch(ch <-chan os.Signal) {
	for sig := range ch {
		t.mu.Lock()
		hs := slices.Clone(t.handlers)
		t.mu.Unlock()
		for _, h := range hs {
			h(sig)
		}
	}
}
