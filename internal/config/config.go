// Package config loads the ctrlcdemo configuration.
//
// Configuration lives in config.toml inside the data directory. Every field
// has a default, so a missing file or a partial file is valid; values are
// checked by [Config.Validate] after decoding.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/ctrlc/internal/atomicfile"
	"tools.zach/dev/ctrlc/internal/paths"
)

// CurrentVersion is the config schema version written by this build.
const CurrentVersion = 1

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level configuration.
type Config struct {
	// Version is the config schema version.
	Version int `toml:"version"`
	// Loop holds work loop timing.
	Loop LoopConfig `toml:"loop"`
	// StopFile holds the stop-file trigger settings.
	StopFile StopFileConfig `toml:"stop_file"`
	// Control holds the local control endpoint settings.
	Control ControlConfig `toml:"control"`
	// Notify holds the shutdown webhook settings.
	Notify NotifyConfig `toml:"notify"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// LoopConfig holds work loop timing.
type LoopConfig struct {
	// TickMillis is the pause between steps in milliseconds.
	TickMillis int `toml:"tick_ms"`
	// MaxSteps stops the loop after this many steps (0 = run until stopped).
	MaxSteps int `toml:"max_steps"`
	// InterruptAfter raises a real interrupt after this many steps (0 = never).
	InterruptAfter int `toml:"interrupt_after"`
}

// StopFileConfig holds the stop-file trigger settings.
type StopFileConfig struct {
	// Enabled turns the stop-file watcher on.
	Enabled bool `toml:"enabled"`
	// Dir is the watched directory. Empty means the data directory's
	// triggers folder.
	Dir string `toml:"dir,omitempty"`
	// Patterns are doublestar globs matched against trigger file base names.
	Patterns []string `toml:"patterns"`
	// PollIntervalMillis is the polling period used when fsnotify is
	// unavailable.
	PollIntervalMillis int `toml:"poll_interval_ms"`
}

// ControlConfig holds the local control endpoint settings.
type ControlConfig struct {
	// Enabled turns the control endpoint on.
	Enabled bool `toml:"enabled"`
	// Address is a socket path or named pipe. Empty means the platform
	// default.
	Address string `toml:"address,omitempty"`
}

// NotifyConfig holds the shutdown webhook settings.
type NotifyConfig struct {
	// URL receives a POST when the loop stops. Empty disables notifications.
	URL string `toml:"url,omitempty"`
	// Title is sent as the X-Title header.
	Title string `toml:"title"`
	// RetryMax is how many times a failed POST is retried.
	RetryMax int `toml:"retry_max"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// ToFile writes a rotating log file in the data directory.
	ToFile bool `toml:"to_file"`
	// Stderr mirrors log lines to standard error.
	Stderr bool `toml:"stderr"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
	// MaxBackups is how many rotated log files are kept.
	MaxBackups int `toml:"max_backups"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Loop: LoopConfig{
			TickMillis: 500,
		},
		StopFile: StopFileConfig{
			Enabled:            true,
			Patterns:           []string{"stop", "*.stop"},
			PollIntervalMillis: 1000,
		},
		Control: ControlConfig{
			Enabled: true,
		},
		Notify: NotifyConfig{
			Title:    paths.BinaryName,
			RetryMax: 2,
		},
		Log: LogConfig{
			Level:      "info",
			ToFile:     true,
			Stderr:     true,
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Tick returns the loop tick as a duration.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Loop.TickMillis) * time.Millisecond
}

// PollInterval returns the stop-file polling period as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.StopFile.PollIntervalMillis) * time.Millisecond
}

// TriggerDir returns the stop-file directory, resolving the empty default
// against d.
func (c *Config) TriggerDir(d paths.DataDir) string {
	if c.StopFile.Dir == "" {
		return d.Triggers()
	}
	return c.StopFile.Dir
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads dataDir/config.toml over the defaults. A missing file yields
// DefaultConfig.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse config: unknown keys %s", strings.Join(keys, ", "))
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Version > CurrentVersion {
		return nil, fmt.Errorf("config version %d is newer than supported version %d", cfg.Version, CurrentVersion)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Encode renders the config as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the config to path using an atomic file write.
func (c *Config) Save(path string) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	return atomicfile.Write(path, data, 0o644)
}

// WriteDefault writes DefaultConfig to path unless a file already exists.
// It reports whether a file was created.
func WriteDefault(path string) (bool, error) {
	data, err := DefaultConfig().Encode()
	if err != nil {
		return false, err
	}
	return atomicfile.WriteIfAbsent(path, data, 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Loop.TickMillis <= 0 {
		return fmt.Errorf("loop.tick_ms must be > 0, got %d", c.Loop.TickMillis)
	}
	if c.Loop.MaxSteps < 0 {
		return fmt.Errorf("loop.max_steps must be >= 0, got %d", c.Loop.MaxSteps)
	}
	if c.Loop.InterruptAfter < 0 {
		return fmt.Errorf("loop.interrupt_after must be >= 0, got %d", c.Loop.InterruptAfter)
	}

	if c.StopFile.Enabled {
		if len(c.StopFile.Patterns) == 0 {
			return fmt.Errorf("stop_file.patterns must not be empty when stop_file is enabled")
		}
		for _, p := range c.StopFile.Patterns {
			if !doublestar.ValidatePattern(p) {
				return fmt.Errorf("invalid stop_file pattern %q", p)
			}
		}
		if c.StopFile.PollIntervalMillis <= 0 {
			return fmt.Errorf("stop_file.poll_interval_ms must be > 0, got %d", c.StopFile.PollIntervalMillis)
		}
	}

	if c.Notify.URL != "" {
		u, err := url.Parse(c.Notify.URL)
		if err != nil {
			return fmt.Errorf("invalid notify.url %q: %w", c.Notify.URL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid notify.url %q: scheme must be http or https", c.Notify.URL)
		}
	}
	if c.Notify.RetryMax < 0 {
		return fmt.Errorf("notify.retry_max must be >= 0, got %d", c.Notify.RetryMax)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.ToFile && c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}
	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must be >= 0, got %d", c.Log.MaxBackups)
	}
	return nil
}
