package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ///////////////////////////////////////////////
// DataDir Method Tests
// ///////////////////////////////////////////////

func TestDataDirMethods(t *testing.T) {
	root := filepath.Join("home", "user", ".ctrlcdemo")
	d := DataDir{Root: root}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Config", d.Config(), filepath.Join(root, "config.toml")},
		{"Log", d.Log(), filepath.Join(root, "ctrlcdemo.log")},
		{"PID", d.PID(), filepath.Join(root, "ctrlcdemo.pid")},
		{"Socket", d.Socket(), filepath.Join(root, "control.sock")},
		{"Triggers", d.Triggers(), filepath.Join(root, "triggers")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	d := Default()
	if !strings.HasSuffix(d.Root, DataDirRel) {
		t.Errorf("Default().Root = %q, want suffix %q", d.Root, DataDirRel)
	}
}

func TestDefaultPipe(t *testing.T) {
	if DefaultPipe != `\\.\pipe\ctrlcdemo` {
		t.Errorf("DefaultPipe = %q", DefaultPipe)
	}
}

func TestEnsure(t *testing.T) {
	d := DataDir{Root: filepath.Join(t.TempDir(), "nested", "data")}
	if err := d.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	info, err := os.Stat(d.Triggers())
	if err != nil {
		t.Fatalf("Stat triggers: %v", err)
	}
	if !info.IsDir() {
		t.Error("triggers path is not a directory")
	}
	// Second call is a no-op.
	if err := d.Ensure(); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
}
