package keystroke

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultHIDGadgetPath is the character device the Linux USB gadget HID
// function exposes for the first keyboard.
const DefaultHIDGadgetPath = "/dev/hidg0"

// ErrRollover is returned when a seventh non-modifier key is pressed while six
// are already held; boot protocol reports carry at most six.
var ErrRollover = errors.New("too many keys held")

// HIDGadget is a Keyboard that writes 8-byte boot protocol reports to a USB
// gadget HID endpoint. Report layout: modifier bitmap, reserved, six keys.
type HIDGadget struct {
	mu     sync.Mutex
	w      io.WriteCloser
	mods   byte
	keys   [6]Usage
	closed bool
}

// OpenHIDGadget opens the gadget device at path for writing.
func OpenHIDGadget(path string) (*HIDGadget, error) {
	if path == "" {
		path = DefaultHIDGadgetPath
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open hid gadget %s: %w", path, err)
	}
	return NewHIDGadget(f), nil
}

// NewHIDGadget wraps an already open report writer.
func NewHIDGadget(w io.WriteCloser) *HIDGadget {
	return &HIDGadget{w: w}
}

func (g *HIDGadget) Press(u Usage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if u.IsModifier() {
		g.mods |= 1 << (u - UsageLeftCtrl)
		return g.send()
	}
	free := -1
	for i, k := range g.keys {
		if k == u {
			return g.send()
		}
		if k == 0 && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return ErrRollover
	}
	g.keys[free] = u
	return g.send()
}

func (g *HIDGadget) Release(u Usage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if u.IsModifier() {
		g.mods &^= 1 << (u - UsageLeftCtrl)
		return g.send()
	}
	for i, k := range g.keys {
		if k == u {
			g.keys[i] = 0
		}
	}
	return g.send()
}

// ReleaseAll sends an empty report.
func (g *HIDGadget) ReleaseAll() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mods = 0
	g.keys = [6]Usage{}
	return g.send()
}

// Report returns the report that would be sent for the current state.
func (g *HIDGadget) Report() [8]byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.report()
}

func (g *HIDGadget) report() [8]byte {
	r := [8]byte{g.mods}
	for i, k := range g.keys {
		r[2+i] = byte(k)
	}
	return r
}

func (g *HIDGadget) send() error {
	if g.closed {
		return ErrDeviceClosed
	}
	r := g.report()
	n, err := g.w.Write(r[:])
	if err != nil {
		return fmt.Errorf("write hid report: %w", err)
	}
	if n != len(r) {
		return fmt.Errorf("write hid report: short write %d/%d", n, len(r))
	}
	return nil
}

// Close releases all keys and closes the device.
func (g *HIDGadget) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.mods = 0
	g.keys = [6]Usage{}
	sendErr := g.send()
	g.closed = true
	return errors.Join(sendErr, g.w.Close())
}
