//go:build !windows

package control

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tools.zach/dev/ctrlc"
	"tools.zach/dev/ctrlc/internal/paths"
)

// socketPath returns a short socket path; t.TempDir names can exceed the
// sun_path limit.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ctl")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, paths.SocketFile)
}

// serve starts Serve in the background and returns a function that stops it
// and reports its error.
func serve(t *testing.T, address string, p *ctrlc.Producer) func() error {
	t.Helper()
	ln, err := Listen(address)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- Serve(ctx, ln, p) }()
	return func() error {
		cancel()
		select {
		case err := <-errc:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Serve did not return after cancel")
			return nil
		}
	}
}

func TestDefaultAddress(t *testing.T) {
	d := paths.DataDir{Root: "/data"}
	if got := DefaultAddress(d); got != d.Socket() {
		t.Errorf("DefaultAddress = %q, want %q", got, d.Socket())
	}
}

func TestSendQuit(t *testing.T) {
	b := newBridge(t)
	addr := socketPath(t)
	stop := serve(t, addr, b.Producer())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Ping(ctx, addr); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := SendQuit(ctx, addr); err != nil {
		t.Fatalf("SendQuit: %v", err)
	}
	if ev := b.Poll(); ev != ctrlc.Quit {
		t.Errorf("Poll() = %v, want quit", ev)
	}

	if err := stop(); err != nil {
		t.Errorf("Serve: %v", err)
	}
	if _, err := os.Stat(addr); !os.IsNotExist(err) {
		t.Errorf("socket file should be removed on shutdown, stat err = %v", err)
	}
}

func TestServeReleasesProducer(t *testing.T) {
	b := ctrlc.New()
	stop := serve(t, socketPath(t), b.Producer())

	b.Disarm()
	if err := stop(); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if ev := b.Poll(); ev != ctrlc.Error {
		t.Errorf("Poll() = %v, want error once Serve released its producer", ev)
	}
}

func TestSendQuitNoServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := SendQuit(ctx, socketPath(t)); err == nil {
		t.Fatal("expected error with nothing listening")
	}
}

func TestListenRemovesStaleSocket(t *testing.T) {
	addr := socketPath(t)
	ln, err := net.Listen("unix", addr)
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	// Leave the file behind the way a crashed process would.
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	ln.Close()

	ln, err = Listen(addr)
	if err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	ln.Close()
}

func TestListenInUse(t *testing.T) {
	b := newBridge(t)
	addr := socketPath(t)
	stop := serve(t, addr, b.Producer())
	defer stop()

	if _, err := Listen(addr); !errors.Is(err, ErrInUse) {
		t.Errorf("Listen on live socket = %v, want ErrInUse", err)
	}
}
