package keystroke

import (
	"fmt"
	"time"
)

// Encoder turns code points into key action sequences.
//
// '\n' is Enter, other control characters type nothing and printable ASCII
// is typed with the character table. Code points from U+0080 go through the
// host's hex-input conversion: a space, the hex digits, Alt+X, then Left Left
// Delete Right to remove the space again. The space keeps Alt+X from
// swallowing hex-looking characters typed just before.
type Encoder struct {
	Timing Timing
}

// NewEncoder returns an encoder using t.
func NewEncoder(t Timing) *Encoder {
	return &Encoder{Timing: t}
}

// Encode returns the actions that type r, or nil if r types nothing.
func (e *Encoder) Encode(r rune) []KeyAction {
	return e.AppendEncode(nil, r)
}

// AppendEncode appends the actions that type r to dst.
func (e *Encoder) AppendEncode(dst []KeyAction, r rune) []KeyAction {
	if r < 0x80 {
		return e.AppendASCII(dst, r)
	}
	return e.appendHexInput(dst, r)
}

// AppendASCII appends the actions for r using only the character table:
// '\n' becomes Enter and anything unmapped is dropped. Debug output is typed
// this way so that it never goes through the host conversion.
func (e *Encoder) AppendASCII(dst []KeyAction, r rune) []KeyAction {
	if r == '\n' {
		return e.AppendEnter(dst)
	}
	k, ok := LookupKey(r)
	if !ok {
		return dst
	}
	return e.appendKey(dst, k)
}

// AppendEnter appends a full Enter tap.
func (e *Encoder) AppendEnter(dst []KeyAction) []KeyAction {
	return e.tap(dst, UsageEnter)
}

// AppendString types s through AppendASCII.
func (e *Encoder) AppendString(dst []KeyAction, s string) []KeyAction {
	for i := 0; i < len(s); i++ {
		dst = e.AppendASCII(dst, rune(s[i]))
	}
	return dst
}

func (e *Encoder) appendKey(dst []KeyAction, k Key) []KeyAction {
	t := e.Timing
	if k.Shift {
		dst = append(dst, KeyAction{UsageLeftShift, Press, t.ModifierDelay})
	}
	dst = e.tap(dst, k.Code)
	if k.Shift {
		dst = append(dst, KeyAction{UsageLeftShift, Release, t.ModifierDelay})
	}
	return dst
}

func (e *Encoder) appendHexInput(dst []KeyAction, r rune) []KeyAction {
	t := e.Timing
	dst = e.tap(dst, UsageSpace)

	for _, h := range []byte(HexDigits(r)) {
		if u, ok := HexDigitUsage(h); ok {
			dst = e.tap(dst, u)
		}
	}

	dst = append(dst,
		KeyAction{UsageLeftAlt, Press, t.KeyDelay},
		KeyAction{UsageX, Press, t.KeyDelay},
		KeyAction{UsageX, Release, t.KeyDelay},
		KeyAction{UsageLeftAlt, Release, t.ConversionSettle},
	)

	// step back over the converted character, delete the space, step forward
	dst = e.hold(dst, UsageLeft, t.NavigationHold)
	dst = e.hold(dst, UsageLeft, t.NavigationHold)
	dst = e.hold(dst, UsageDelete, t.DeleteHold)
	dst = e.hold(dst, UsageRight, t.NavigationHold)
	return dst
}

func (e *Encoder) tap(dst []KeyAction, u Usage) []KeyAction {
	return e.hold(dst, u, e.Timing.KeyDelay)
}

func (e *Encoder) hold(dst []KeyAction, u Usage, hold time.Duration) []KeyAction {
	return append(dst,
		KeyAction{u, Press, hold},
		KeyAction{u, Release, e.Timing.KeyDelay},
	)
}

// HexDigits formats r the way the hex-input conversion expects it: four
// uppercase digits inside the Basic Multilingual Plane, six above it.
func HexDigits(r rune) string {
	if r <= 0xFFFF {
		return fmt.Sprintf("%04X", uint32(r))
	}
	return fmt.Sprintf("%06X", uint32(r))
}
