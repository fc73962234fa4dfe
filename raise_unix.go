// Unix interrupt delivery via kill(2).

//go:build unix

package ctrlc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Raise sends SIGINT to the current process, exactly as a Ctrl-C in the
// terminal would. Call it only after [New]: without a registration the
// runtime's default action terminates the process.
func Raise() error {
	if err := unix.Kill(unix.Getpid(), unix.SIGINT); err != nil {
		return fmt.Errorf("raise interrupt: %w", err)
	}
	return nil
}
