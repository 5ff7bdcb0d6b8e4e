// Package config loads the scanwedge configuration file.
//
// Every field is a pointer so a partial file only overrides what it names;
// the Get* methods supply the defaults for everything else. The same schema is
// accepted as JSON, TOML or YAML.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/scanwedge/internal/keystroke"
	"github.com/banshee-data/scanwedge/internal/scanner"
	"github.com/banshee-data/scanwedge/internal/session"
)

// DefaultConfigPath is where the service looks when -config is not given.
const DefaultConfigPath = "/etc/scanwedge/scanwedge.toml"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Keyboard backends.
const (
	KeyboardHIDGadget = "hidg"
	KeyboardUinput    = "uinput"
	KeyboardLog       = "log"
)

// Config is the root of the configuration file.
type Config struct {
	// Link
	Port      *string `json:"port,omitempty" toml:"port" yaml:"port,omitempty"`
	BaudIndex *int    `json:"baud_index,omitempty" toml:"baud_index" yaml:"baud_index,omitempty"`

	// Modes at start
	Scanning *bool `json:"scanning,omitempty" toml:"scanning" yaml:"scanning,omitempty"`
	Debug    *bool `json:"debug,omitempty" toml:"debug" yaml:"debug,omitempty"`

	// Record assembly, duration string like "500ms"
	SilenceTimeout *string `json:"silence_timeout,omitempty" toml:"silence_timeout" yaml:"silence_timeout,omitempty"`

	// Keystroke timing, duration strings
	KeyDelay         *string `json:"key_delay,omitempty" toml:"key_delay" yaml:"key_delay,omitempty"`
	ModifierDelay    *string `json:"modifier_delay,omitempty" toml:"modifier_delay" yaml:"modifier_delay,omitempty"`
	ConversionSettle *string `json:"conversion_settle,omitempty" toml:"conversion_settle" yaml:"conversion_settle,omitempty"`
	NavigationHold   *string `json:"navigation_hold,omitempty" toml:"navigation_hold" yaml:"navigation_hold,omitempty"`
	DeleteHold       *string `json:"delete_hold,omitempty" toml:"delete_hold" yaml:"delete_hold,omitempty"`

	// Keyboard output
	Keyboard       *string `json:"keyboard,omitempty" toml:"keyboard" yaml:"keyboard,omitempty"`
	KeyboardDevice *string `json:"keyboard_device,omitempty" toml:"keyboard_device" yaml:"keyboard_device,omitempty"`

	// Service
	Listen      *string `json:"listen,omitempty" toml:"listen" yaml:"listen,omitempty"`
	HistoryDB   *string `json:"history_db,omitempty" toml:"history_db" yaml:"history_db,omitempty"`
	NATSURL     *string `json:"nats_url,omitempty" toml:"nats_url" yaml:"nats_url,omitempty"`
	NATSSubject *string `json:"nats_subject,omitempty" toml:"nats_subject" yaml:"nats_subject,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrInt(v int) *int          { return &v }

// Load reads a config file, choosing the decoder from its extension
// (.json, .toml, .yaml or .yml). Fields the file omits keep their defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(filepath.Ext(cleanPath), data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext.
func Parse(ext string, data []byte) (*Config, error) {
	cfg := &Config{}
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config keys: %v", undecoded)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("config file must be .json, .toml, .yaml or .yml, got %q", ext)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.BaudIndex != nil {
		if *c.BaudIndex < 0 || *c.BaudIndex >= len(scanner.CandidateBauds) {
			return fmt.Errorf("baud_index must be in [0,%d), got %d", len(scanner.CandidateBauds), *c.BaudIndex)
		}
	}

	durations := []struct {
		name string
		v    *string
	}{
		{"silence_timeout", c.SilenceTimeout},
		{"key_delay", c.KeyDelay},
		{"modifier_delay", c.ModifierDelay},
		{"conversion_settle", c.ConversionSettle},
		{"navigation_hold", c.NavigationHold},
		{"delete_hold", c.DeleteHold},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		v, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", d.name, v)
		}
	}
	if c.SilenceTimeout != nil && *c.SilenceTimeout != "" {
		if v, _ := time.ParseDuration(*c.SilenceTimeout); v == 0 {
			return fmt.Errorf("silence_timeout must be positive")
		}
	}

	if c.Keyboard != nil {
		switch *c.Keyboard {
		case KeyboardHIDGadget, KeyboardUinput, KeyboardLog:
		default:
			return fmt.Errorf("keyboard must be %q, %q or %q, got %q",
				KeyboardHIDGadget, KeyboardUinput, KeyboardLog, *c.Keyboard)
		}
	}
	return nil
}

func durationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

func stringOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

// GetPort returns the scanner serial device.
func (c *Config) GetPort() string { return stringOr(c.Port, "/dev/ttyS0") }

// GetBaudIndex returns the index into the candidate bauds.
func (c *Config) GetBaudIndex() int {
	if c.BaudIndex == nil {
		return 0
	}
	return *c.BaudIndex
}

// GetScanning reports whether scanning starts enabled.
func (c *Config) GetScanning() bool {
	if c.Scanning == nil {
		return true
	}
	return *c.Scanning
}

// GetDebug reports whether debug typing starts enabled.
func (c *Config) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}

// GetSilenceTimeout returns the record silence timeout.
func (c *Config) GetSilenceTimeout() time.Duration {
	return durationOr(c.SilenceTimeout, scanner.DefaultSilenceTimeout)
}

// GetTiming returns the keystroke delays, defaulting each unset field.
func (c *Config) GetTiming() keystroke.Timing {
	return keystroke.Timing{
		KeyDelay:         durationOr(c.KeyDelay, keystroke.DefaultKeyDelay),
		ModifierDelay:    durationOr(c.ModifierDelay, keystroke.DefaultModifierDelay),
		ConversionSettle: durationOr(c.ConversionSettle, keystroke.DefaultConversionSettle),
		NavigationHold:   durationOr(c.NavigationHold, keystroke.DefaultNavigationHold),
		DeleteHold:       durationOr(c.DeleteHold, keystroke.DefaultDeleteHold),
	}
}

// GetKeyboard returns the keyboard backend name.
func (c *Config) GetKeyboard() string { return stringOr(c.Keyboard, KeyboardHIDGadget) }

// GetKeyboardDevice returns the device node of the keyboard backend.
func (c *Config) GetKeyboardDevice() string {
	if c.KeyboardDevice != nil {
		return *c.KeyboardDevice
	}
	if c.GetKeyboard() == KeyboardUinput {
		return "/dev/uinput"
	}
	return keystroke.DefaultHIDGadgetPath
}

// GetListen returns the HTTP listen address.
func (c *Config) GetListen() string { return stringOr(c.Listen, "localhost:8090") }

// GetHistoryDB returns the scan history database path; empty disables history.
func (c *Config) GetHistoryDB() string { return stringOr(c.HistoryDB, "") }

// GetNATSURL returns the NATS server URL; empty disables publishing.
func (c *Config) GetNATSURL() string { return stringOr(c.NATSURL, "") }

// GetNATSSubject returns the subject scan events are published on.
func (c *Config) GetNATSSubject() string { return stringOr(c.NATSSubject, "scanwedge.scans") }

// SessionConfig returns the starting modes for the scan session.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		Scanning:       c.GetScanning(),
		Debug:          c.GetDebug(),
		BaudIndex:      c.GetBaudIndex(),
		Timing:         c.GetTiming(),
		SilenceTimeout: c.GetSilenceTimeout(),
	}
}
