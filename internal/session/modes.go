package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/scanwedge/internal/keystroke"
	"github.com/banshee-data/scanwedge/internal/scanner"
)

// Config is the set of externally controlled modes the session reads at the
// start of every poll step. It is a plain value; the session never keeps a
// reference to the controller that produced it.
type Config struct {
	Scanning       bool
	Debug          bool
	BaudIndex      int
	Timing         keystroke.Timing
	SilenceTimeout time.Duration
}

// DefaultConfig scans at the first candidate baud with default timing.
func DefaultConfig() Config {
	return Config{
		Scanning:       true,
		Timing:         keystroke.DefaultTiming(),
		SilenceTimeout: scanner.DefaultSilenceTimeout,
	}
}

// BaudRate returns the link speed selected by BaudIndex. Out of range
// indexes, negative ones included, wrap around the candidates.
func (c Config) BaudRate() int {
	n := len(scanner.CandidateBauds)
	return scanner.CandidateBauds[((c.BaudIndex%n)+n)%n]
}

// Modes is the concurrency-safe holder of Config. The HTTP API and the config
// watcher change it; the scan loop only takes snapshots.
type Modes struct {
	mu  sync.Mutex
	cfg Config
}

// NewModes returns a controller starting at cfg.
func NewModes(cfg Config) *Modes {
	return &Modes{cfg: cfg}
}

// Snapshot returns the current modes.
func (m *Modes) Snapshot() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// SetScanning starts or stops scanning.
func (m *Modes) SetScanning(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Scanning = on
}

// ToggleScanning flips scanning and returns the new state.
func (m *Modes) ToggleScanning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Scanning = !m.cfg.Scanning
	return m.cfg.Scanning
}

// SetDebug turns debug typing on or off.
func (m *Modes) SetDebug(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Debug = on
}

// ToggleDebug flips debug mode and returns the new state.
func (m *Modes) ToggleDebug() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Debug = !m.cfg.Debug
	return m.cfg.Debug
}

// CycleBaud selects the next candidate baud and returns it.
func (m *Modes) CycleBaud() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.BaudIndex = (m.cfg.BaudIndex + 1) % len(scanner.CandidateBauds)
	return m.cfg.BaudRate()
}

// SetBaudIndex selects a candidate baud by index.
func (m *Modes) SetBaudIndex(i int) error {
	if i < 0 || i >= len(scanner.CandidateBauds) {
		return fmt.Errorf("baud index %d out of range [0,%d)", i, len(scanner.CandidateBauds))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.BaudIndex = i
	return nil
}

// SetTiming replaces the keystroke timing and silence timeout.
func (m *Modes) SetTiming(t keystroke.Timing, silence time.Duration) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Timing = t
	if silence > 0 {
		m.cfg.SilenceTimeout = silence
	}
	return nil
}
