package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/scanwedge/internal/keystroke"
	"github.com/banshee-data/scanwedge/internal/scanner"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := &Config{}

	if cfg.GetPort() != "/dev/ttyS0" {
		t.Errorf("GetPort() = %q, want /dev/ttyS0", cfg.GetPort())
	}
	if !cfg.GetScanning() {
		t.Error("GetScanning() = false, want true")
	}
	if cfg.GetDebug() {
		t.Error("GetDebug() = true, want false")
	}
	if cfg.GetSilenceTimeout() != scanner.DefaultSilenceTimeout {
		t.Errorf("GetSilenceTimeout() = %v, want %v", cfg.GetSilenceTimeout(), scanner.DefaultSilenceTimeout)
	}
	if diff := cmp.Diff(keystroke.DefaultTiming(), cfg.GetTiming()); diff != "" {
		t.Errorf("GetTiming() mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetKeyboard() != KeyboardHIDGadget {
		t.Errorf("GetKeyboard() = %q, want %q", cfg.GetKeyboard(), KeyboardHIDGadget)
	}
	if cfg.GetKeyboardDevice() != keystroke.DefaultHIDGadgetPath {
		t.Errorf("GetKeyboardDevice() = %q", cfg.GetKeyboardDevice())
	}
	if cfg.GetHistoryDB() != "" || cfg.GetNATSURL() != "" {
		t.Error("history and NATS should default to disabled")
	}
	if cfg.GetNATSSubject() != "scanwedge.scans" {
		t.Errorf("GetNATSSubject() = %q", cfg.GetNATSSubject())
	}
}

func TestUinputDeviceDefault(t *testing.T) {
	cfg := &Config{Keyboard: ptrString(KeyboardUinput)}
	if cfg.GetKeyboardDevice() != "/dev/uinput" {
		t.Errorf("GetKeyboardDevice() = %q, want /dev/uinput", cfg.GetKeyboardDevice())
	}
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "json",
			file: "scanwedge.json",
			body: `{"port": "/dev/ttyUSB0", "baud_index": 1, "debug": true, "key_delay": "3ms", "silence_timeout": "750ms"}`,
		},
		{
			name: "toml",
			file: "scanwedge.toml",
			body: "port = \"/dev/ttyUSB0\"\nbaud_index = 1\ndebug = true\nkey_delay = \"3ms\"\nsilence_timeout = \"750ms\"\n",
		},
		{
			name: "yaml",
			file: "scanwedge.yaml",
			body: "port: /dev/ttyUSB0\nbaud_index: 1\ndebug: true\nkey_delay: 3ms\nsilence_timeout: 750ms\n",
		},
		{
			name: "yml",
			file: "scanwedge.yml",
			body: "port: /dev/ttyUSB0\nbaud_index: 1\ndebug: true\nkey_delay: 3ms\nsilence_timeout: 750ms\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.file, tt.body))
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if cfg.GetPort() != "/dev/ttyUSB0" {
				t.Errorf("GetPort() = %q", cfg.GetPort())
			}
			if cfg.GetBaudIndex() != 1 {
				t.Errorf("GetBaudIndex() = %d, want 1", cfg.GetBaudIndex())
			}
			if !cfg.GetDebug() {
				t.Error("GetDebug() = false, want true")
			}
			// unset keys keep their defaults
			if !cfg.GetScanning() {
				t.Error("GetScanning() = false, want default true")
			}
			timing := cfg.GetTiming()
			if timing.KeyDelay != 3*time.Millisecond {
				t.Errorf("KeyDelay = %v, want 3ms", timing.KeyDelay)
			}
			if timing.DeleteHold != keystroke.DefaultDeleteHold {
				t.Errorf("DeleteHold = %v, want default", timing.DeleteHold)
			}
			if cfg.GetSilenceTimeout() != 750*time.Millisecond {
				t.Errorf("GetSilenceTimeout() = %v, want 750ms", cfg.GetSilenceTimeout())
			}
		})
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load("../../config/scanwedge.example.toml")
	if err != nil {
		t.Fatalf("Load(example) error: %v", err)
	}
	if diff := cmp.Diff(keystroke.DefaultTiming(), cfg.GetTiming()); diff != "" {
		t.Errorf("example timing differs from defaults (-want +got):\n%s", diff)
	}
	if cfg.GetSilenceTimeout() != scanner.DefaultSilenceTimeout {
		t.Errorf("example silence timeout = %v", cfg.GetSilenceTimeout())
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"bad extension", "scanwedge.ini", "port=x", "must be .json"},
		{"bad json", "scanwedge.json", `{"port": `, "parse config JSON"},
		{"bad toml", "scanwedge.toml", "port = ", "parse config TOML"},
		{"unknown toml key", "scanwedge.toml", "prot = \"x\"\n", "unknown config keys"},
		{"bad yaml", "scanwedge.yaml", "port: [unclosed", "parse config YAML"},
		{"invalid value", "scanwedge.json", `{"baud_index": 5}`, "invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/path/to/scanwedge.toml"); err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTooLarge(t *testing.T) {
	body := "# " + strings.Repeat("x", maxFileSize) + "\n"
	_, err := Load(writeConfig(t, "big.toml", body))
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Load() error = %v, want too large", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"empty config is valid", &Config{}, false},
		{"baud index in range", &Config{BaudIndex: ptrInt(1)}, false},
		{"negative baud index", &Config{BaudIndex: ptrInt(-1)}, true},
		{"baud index past end", &Config{BaudIndex: ptrInt(2)}, true},
		{"bad duration", &Config{KeyDelay: ptrString("fast")}, true},
		{"negative duration", &Config{DeleteHold: ptrString("-1ms")}, true},
		{"zero delay allowed", &Config{ModifierDelay: ptrString("0s")}, false},
		{"zero silence rejected", &Config{SilenceTimeout: ptrString("0s")}, true},
		{"empty duration ignored", &Config{NavigationHold: ptrString("")}, false},
		{"known keyboard", &Config{Keyboard: ptrString(KeyboardLog)}, false},
		{"unknown keyboard", &Config{Keyboard: ptrString("bluetooth")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionConfig(t *testing.T) {
	cfg := &Config{
		Scanning:         ptrBool(false),
		Debug:            ptrBool(true),
		BaudIndex:        ptrInt(1),
		ConversionSettle: ptrString("9ms"),
	}
	got := cfg.SessionConfig()
	if got.Scanning || !got.Debug || got.BaudIndex != 1 {
		t.Errorf("SessionConfig() modes = %+v", got)
	}
	if got.BaudRate() != 9600 {
		t.Errorf("BaudRate() = %d, want 9600", got.BaudRate())
	}
	if got.Timing.ConversionSettle != 9*time.Millisecond {
		t.Errorf("ConversionSettle = %v, want 9ms", got.Timing.ConversionSettle)
	}
}
