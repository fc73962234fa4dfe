// Package control exposes a local line-based endpoint that lets another
// process ask a running instance to quit.
//
// The endpoint is a Unix domain socket in the data directory, or a named pipe
// on Windows. Each request is a single line and gets a single-line reply:
//
//	quit  -> ok
//	ping  -> pong
//	other -> error: unknown command "other"
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"tools.zach/dev/ctrlc"
)

// ioTimeout bounds a single request or reply.
const ioTimeout = 5 * time.Second

// ErrInUse is returned by [Listen] when another instance already serves the
// address.
var ErrInUse = errors.New("control: address in use by a running instance")

// ///////////////////////////////////////////////
// Server
// ///////////////////////////////////////////////

// Serve accepts connections on ln until ctx is cancelled or ln is closed.
// Quit commands are sent through p. Serve owns both ln and p and releases
// them before returning.
func Serve(ctx context.Context, ln net.Listener, p *ctrlc.Producer) error {
	defer p.Close()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	slog.Debug("control endpoint listening", "address", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("control accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			handleConn(conn, p)
		}()
	}
}

// handleConn answers each line on conn until the peer hangs up or goes idle.
func handleConn(conn net.Conn, p *ctrlc.Producer) {
	sc := bufio.NewScanner(conn)
	for {
		_ = conn.SetDeadline(time.Now().Add(ioTimeout))
		if !sc.Scan() {
			if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
				slog.Debug("control connection ended", "error", err)
			}
			return
		}
		cmd := strings.ToLower(strings.TrimSpace(sc.Text()))
		if cmd == "" {
			continue
		}
		if _, err := io.WriteString(conn, respond(cmd, p)+"\n"); err != nil {
			slog.Debug("control reply failed", "error", err)
			return
		}
	}
}

// respond executes one command and returns the reply line.
func respond(cmd string, p *ctrlc.Producer) string {
	switch cmd {
	case "quit":
		if err := p.RequestQuit(); err != nil {
			slog.Warn("control quit rejected", "error", err)
			return "error: " + err.Error()
		}
		slog.Info("quit requested over control endpoint")
		return "ok"
	case "ping":
		return "pong"
	default:
		return fmt.Sprintf("error: unknown command %q", cmd)
	}
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// SendQuit asks the instance listening on address to quit.
func SendQuit(ctx context.Context, address string) error {
	return call(ctx, address, "quit", "ok")
}

// Ping checks that an instance is listening on address.
func Ping(ctx context.Context, address string) error {
	return call(ctx, address, "ping", "pong")
}

// call sends cmd and checks that the reply equals want.
func call(ctx context.Context, address, cmd, want string) error {
	conn, err := dial(ctx, address)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(ioTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err := io.WriteString(conn, cmd+"\n"); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply != want {
		return fmt.Errorf("%s: unexpected reply %q", cmd, reply)
	}
	return nil
}
