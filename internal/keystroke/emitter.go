package keystroke

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/scanwedge/internal/timeutil"
)

// ErrDeviceClosed is returned by keyboard backends used after Close.
var ErrDeviceClosed = errors.New("keyboard device closed")

// Keyboard is a host-facing keyboard that can press and release usages.
type Keyboard interface {
	Press(u Usage) error
	Release(u Usage) error
}

// releaser is implemented by backends that can drop every held key at once.
type releaser interface {
	ReleaseAll() error
}

// Emitter plays key action sequences on a Keyboard, sleeping between
// transitions so the host sees each one.
type Emitter struct {
	kbd   Keyboard
	clock timeutil.Clock
}

// NewEmitter returns an emitter for kbd. A nil clock uses the real clock.
func NewEmitter(kbd Keyboard, clock timeutil.Clock) *Emitter {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Emitter{kbd: kbd, clock: clock}
}

// Emit plays actions in order. On failure it tries to release anything still
// held and returns the first error.
func (e *Emitter) Emit(actions []KeyAction) error {
	for i, a := range actions {
		var err error
		switch a.State {
		case Press:
			err = e.kbd.Press(a.Code)
		case Release:
			err = e.kbd.Release(a.Code)
		default:
			err = fmt.Errorf("invalid key state %d", a.State)
		}
		if err != nil {
			if r, ok := e.kbd.(releaser); ok {
				_ = r.ReleaseAll()
			}
			return fmt.Errorf("key action %d (%v): %w", i, a, err)
		}
		if a.Delay > 0 {
			e.clock.Sleep(a.Delay)
		}
	}
	return nil
}

// Type encodes and plays a single code point, returning the time spent.
func (e *Emitter) Type(enc *Encoder, r rune) (time.Duration, error) {
	actions := enc.Encode(r)
	return Duration(actions), e.Emit(actions)
}
