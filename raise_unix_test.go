//go:build unix

package ctrlc

import "testing"

// TestRaiseDeliversQuit sends a real SIGINT to the test binary. Every other
// test uses a private fake registration, so this is the only bridge on the
// process registration.
func TestRaiseDeliversQuit(t *testing.T) {
	b := New()
	defer b.Disarm()

	if err := Raise(); err != nil {
		t.Fatalf("Raise: %v", err)
	}
	waitForEvent(t, b, Quit)

	if got := b.Poll(); got != Continue {
		t.Fatalf("Poll() after the interrupt was drained = %v, want continue", got)
	}
}
