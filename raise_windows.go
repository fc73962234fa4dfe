// Windows interrupt delivery via GenerateConsoleCtrlEvent.
//
// The Go runtime maps both CTRL_C_EVENT and CTRL_BREAK_EVENT to os.Interrupt.
// CTRL_BREAK_EVENT is used because CTRL_C_EVENT cannot target a process
// group and is ignored by processes started with CREATE_NEW_PROCESS_GROUP.

//go:build windows

package ctrlc

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// Raise generates a console break event for every process attached to the
// current console, including this one. It fails when the process has no
// console. Call it only after [New].
func Raise() error {
	if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, 0); err != nil {
		return fmt.Errorf("raise interrupt: %w", err)
	}
	return nil
}
