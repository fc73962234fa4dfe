//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals are routed into the bridge as quit requests alongside
// Ctrl-C. SIGTERM comes from process managers; SIGHUP from a closed terminal.
var terminationSignals = []os.Signal{syscall.SIGTERM, syscall.SIGHUP}
