//go:build !unix && !windows

package ctrlc

import "errors"

// Raise is unsupported on platforms without Unix signals or a Windows
// console.
func Raise() error {
	return errors.New("raise interrupt: unsupported platform")
}
