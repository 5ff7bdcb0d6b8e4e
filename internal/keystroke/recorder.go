package keystroke

import (
	"sync"

	"github.com/banshee-data/scanwedge/internal/monitoring"
)

// Event is a key transition seen by a Recorder.
type Event struct {
	Code  Usage
	State KeyState
}

// Recorder is a Keyboard that keeps every transition in memory. When Log is
// set each transition is also logged, which makes it usable as a dry-run
// backend on machines without a gadget or uinput.
type Recorder struct {
	Log bool
	// Limit caps the kept history; older events are dropped. Zero keeps all.
	Limit int

	mu     sync.Mutex
	events []Event
	held   map[Usage]bool
	closed bool
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{held: make(map[Usage]bool)}
}

func (r *Recorder) Press(u Usage) error   { return r.record(u, Press) }
func (r *Recorder) Release(u Usage) error { return r.record(u, Release) }

func (r *Recorder) record(u Usage, s KeyState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrDeviceClosed
	}
	r.events = append(r.events, Event{Code: u, State: s})
	if r.Limit > 0 && len(r.events) > r.Limit {
		r.events = append(r.events[:0], r.events[len(r.events)-r.Limit:]...)
	}
	r.held[u] = s == Press
	if r.Log {
		monitoring.Logf("[keys] %s %#02x", s, uint8(u))
	}
	return nil
}

// ReleaseAll releases every key still held.
func (r *Recorder) ReleaseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for u, down := range r.held {
		if down {
			r.events = append(r.events, Event{Code: u, State: Release})
			r.held[u] = false
		}
	}
	return nil
}

// Events returns a copy of the recorded transitions.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Held reports whether u is currently pressed.
func (r *Recorder) Held(u Usage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[u]
}

// Reset forgets recorded transitions.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.held = make(map[Usage]bool)
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
