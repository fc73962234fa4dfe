package ctrlc

// ///////////////////////////////////////////////
// Event
// ///////////////////////////////////////////////

// Event is the outcome of a single [Bridge.Poll]. The zero value is
// [Continue].
type Event int

const (
	// Continue means nothing is pending. It is never sent through the queue.
	Continue Event = iota
	// Quit means an interrupt was delivered or a quit was requested.
	Quit
	// Error means no producer handle is left (or the bridge was closed), so
	// no further interrupt can ever be observed. Callers should stop as they
	// would on [Quit].
	Error
)

// String returns the lowercase event name used in log output.
func (e Event) String() string {
	switch e {
	case Continue:
		return "continue"
	case Quit:
		return "quit"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}
