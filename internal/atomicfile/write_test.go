// write_test.go covers [Write] replacement, parent creation, temp cleanup,
// and the no-clobber behavior of [WriteIfAbsent].

package atomicfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// assertNoTemps fails if any staged temp file is left in dir.
func assertNoTemps(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Errorf("leftover temp file %q", e.Name())
		}
	}
}

func TestWriteReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := Write(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}
	assertNoTemps(t, dir)
}

func TestWriteCreatesParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := Write(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Stat: %v", err)
	}
}

func TestWriteIfAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	created, err := WriteIfAbsent(path, []byte("original"), 0o644)
	if err != nil {
		t.Fatalf("WriteIfAbsent: %v", err)
	}
	if !created {
		t.Fatal("expected file to be created")
	}

	created, err = WriteIfAbsent(path, []byte("clobber"), 0o644)
	if err != nil {
		t.Fatalf("second WriteIfAbsent: %v", err)
	}
	if created {
		t.Fatal("existing file reported as created")
	}

	got, _ := os.ReadFile(path)
	if string(got) != "original" {
		t.Errorf("content = %q, want %q", got, "original")
	}
	assertNoTemps(t, dir)
}
