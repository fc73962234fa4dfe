//go:build !windows

package control

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"tools.zach/dev/ctrlc/internal/paths"
)

// DefaultAddress returns the control socket path inside d.
func DefaultAddress(d paths.DataDir) string {
	return d.Socket()
}

// Listen opens a Unix socket at address. A socket file left behind by an
// instance that is no longer running is removed first; a live one yields
// [ErrInUse].
func Listen(address string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(address), 0o755); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	if _, err := os.Stat(address); err == nil {
		if conn, err := net.DialTimeout("unix", address, time.Second); err == nil {
			conn.Close()
			return nil, ErrInUse
		}
		if err := os.Remove(address); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", address)
	if err != nil {
		return nil, fmt.Errorf("control listen: %w", err)
	}
	if err := os.Chmod(address, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("control socket permissions: %w", err)
	}
	return ln, nil
}

func dial(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", address)
}
