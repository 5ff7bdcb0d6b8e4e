package keystroke

import (
	"fmt"
	"time"
)

// Timing holds the delays the host needs to see discrete key transitions.
// They are part of the protocol with the host's input method: shortening them
// makes the host drop keystrokes or convert the wrong characters.
type Timing struct {
	// KeyDelay follows every ordinary press and release.
	KeyDelay time.Duration
	// ModifierDelay follows the shift press/release around a shifted
	// ASCII character.
	ModifierDelay time.Duration
	// ConversionSettle follows the Alt release that ends Alt+X; the host
	// converts the hex digits during this time.
	ConversionSettle time.Duration
	// NavigationHold is how long the cursor keys stay down.
	NavigationHold time.Duration
	// DeleteHold is how long Delete stays down.
	DeleteHold time.Duration
}

// Default delays.
const (
	DefaultKeyDelay         = 2 * time.Millisecond
	DefaultModifierDelay    = 1 * time.Millisecond
	DefaultConversionSettle = 5 * time.Millisecond
	DefaultNavigationHold   = 6 * time.Millisecond
	DefaultDeleteHold       = 8 * time.Millisecond
)

// DefaultTiming returns the delays known to work with Windows' Alt+X.
func DefaultTiming() Timing {
	return Timing{
		KeyDelay:         DefaultKeyDelay,
		ModifierDelay:    DefaultModifierDelay,
		ConversionSettle: DefaultConversionSettle,
		NavigationHold:   DefaultNavigationHold,
		DeleteHold:       DefaultDeleteHold,
	}
}

// Validate rejects negative delays.
func (t Timing) Validate() error {
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"key_delay", t.KeyDelay},
		{"modifier_delay", t.ModifierDelay},
		{"conversion_settle", t.ConversionSettle},
		{"navigation_hold", t.NavigationHold},
		{"delete_hold", t.DeleteHold},
	} {
		if d.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", d.name, d.v)
		}
	}
	return nil
}
