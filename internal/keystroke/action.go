package keystroke

import (
	"fmt"
	"time"
)

// KeyState is the transition a KeyAction applies.
type KeyState uint8

const (
	Press KeyState = iota + 1
	Release
)

func (s KeyState) String() string {
	switch s {
	case Press:
		return "press"
	case Release:
		return "release"
	}
	return fmt.Sprintf("KeyState(%d)", uint8(s))
}

// KeyAction is one key transition followed by a pause of Delay.
type KeyAction struct {
	Code  Usage
	State KeyState
	Delay time.Duration
}

func (a KeyAction) String() string {
	return fmt.Sprintf("%s %#02x +%v", a.State, uint8(a.Code), a.Delay)
}

// Duration sums the delays of a sequence.
func Duration(actions []KeyAction) time.Duration {
	var d time.Duration
	for _, a := range actions {
		d += a.Delay
	}
	return d
}
