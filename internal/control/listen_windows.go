//go:build windows

package control

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
	"tools.zach/dev/ctrlc/internal/paths"
)

// DefaultAddress returns the fixed control pipe name. Named pipes live in
// their own namespace, so d is unused.
func DefaultAddress(_ paths.DataDir) string {
	return paths.DefaultPipe
}

// Listen opens a named pipe at address, restricted to the current user.
func Listen(address string) (net.Listener, error) {
	ln, err := winio.ListenPipe(address, &winio.PipeConfig{
		// Owner and SYSTEM only.
		SecurityDescriptor: "D:P(A;;GA;;;OW)(A;;GA;;;SY)",
	})
	if err != nil {
		return nil, fmt.Errorf("control listen: %w", err)
	}
	return ln, nil
}

func dial(ctx context.Context, address string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, address)
}
