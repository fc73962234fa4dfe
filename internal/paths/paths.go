// Package paths names the files ctrlcdemo keeps in its data directory.
package paths

import (
	"os"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	ConfigFile  = "config.toml"
	LogFile     = "ctrlcdemo.log"
	PIDFile     = "ctrlcdemo.pid"
	SocketFile  = "control.sock"
	TriggerDir  = "triggers"
	BinaryName  = "ctrlcdemo"
	DataDirRel  = ".ctrlcdemo" // relative to $HOME
	PipePrefix  = `\\.\pipe\`
	DefaultPipe = PipePrefix + BinaryName
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// Default returns the data directory under the user's home, or ./.ctrlcdemo
// when the home directory is unknown.
func Default() DataDir {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDir{Root: filepath.Join(".", DataDirRel)}
	}
	return DataDir{Root: filepath.Join(home, DataDirRel)}
}

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// PID returns the full path to the single-instance PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Socket returns the full path to the Unix control socket.
func (d DataDir) Socket() string { return filepath.Join(d.Root, SocketFile) }

// Triggers returns the directory watched for stop files.
func (d DataDir) Triggers() string { return filepath.Join(d.Root, TriggerDir) }

// Ensure creates the data directory and the trigger directory.
func (d DataDir) Ensure() error {
	return os.MkdirAll(d.Triggers(), 0o755)
}
