package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tools.zach/dev/ctrlc/internal/paths"
)

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken returns a random 16-character hex token proving ownership of the
// PID file, so [removePID] only deletes a file this process wrote.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID locks the PID file and writes "PID:TOKEN" into it. The returned
// file must stay open while the loop runs to hold the lock; pass it to
// [removePID] on shutdown.
func writePID(d paths.DataDir, token string) (*os.File, error) {
	f, err := os.OpenFile(d.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d:%s", os.Getpid(), token); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the lock and removes the PID file if it still carries
// token.
func removePID(d paths.DataDir, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(d.PID())
	if err != nil {
		return
	}
	if _, tok, ok := strings.Cut(string(data), ":"); ok && tok == token {
		os.Remove(d.PID())
	}
}

// checkStalePID reports whether another instance holds the PID lock. A file
// whose lock can be taken belongs to a dead process and is removed.
func checkStalePID(d paths.DataDir) (alive bool, pid int) {
	f, err := os.OpenFile(d.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(d.PID())
		f.Close()
		head, _, _ := strings.Cut(string(data), ":")
		if p, convErr := strconv.Atoi(head); convErr == nil {
			return true, p
		}
		return true, 0
	}

	_ = unlockFile(f)
	f.Close()
	os.Remove(d.PID())
	return false, 0
}
