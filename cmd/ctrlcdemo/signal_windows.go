//go:build windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals are routed into the bridge as quit requests alongside
// Ctrl-C. The Go runtime reports console close and shutdown events
// as SIGTERM.
var terminationSignals = []os.Signal{syscall.SIGTERM}
