package keystroke

// Usage is a USB HID keyboard usage id (HID Usage Tables, page 0x07).
type Usage uint8

// Usages the encoder emits directly.
const (
	UsageA         Usage = 0x04
	UsageX         Usage = 0x1B
	Usage1         Usage = 0x1E
	Usage0         Usage = 0x27
	UsageEnter     Usage = 0x28
	UsageEscape    Usage = 0x29
	UsageBackspace Usage = 0x2A
	UsageTab       Usage = 0x2B
	UsageSpace     Usage = 0x2C
	UsageDelete    Usage = 0x4C
	UsageRight     Usage = 0x4F
	UsageLeft      Usage = 0x50
	UsageDown      Usage = 0x51
	UsageUp        Usage = 0x52

	UsageLeftCtrl  Usage = 0xE0
	UsageLeftShift Usage = 0xE1
	UsageLeftAlt   Usage = 0xE2
	UsageLeftGUI   Usage = 0xE3
	UsageRightGUI  Usage = 0xE7
)

// IsModifier reports whether u is one of the eight modifier usages.
func (u Usage) IsModifier() bool {
	return u >= UsageLeftCtrl && u <= UsageRightGUI
}

// Key is one entry of the character table: the usage to press and whether
// shift must be held.
type Key struct {
	Code  Usage
	Shift bool
}

// usKeys maps printable ASCII to a US-layout key. Zero entries are unmapped.
// The same table drives scan typing, hex digits and debug output.
var usKeys = [128]Key{
	' ': {0x2C, false}, '!': {0x1E, true}, '"': {0x34, true}, '#': {0x20, true},
	'$': {0x21, true}, '%': {0x22, true}, '&': {0x24, true}, '\'': {0x34, false},
	'(': {0x26, true}, ')': {0x27, true}, '*': {0x25, true}, '+': {0x2E, true},
	',': {0x36, false}, '-': {0x2D, false}, '.': {0x37, false}, '/': {0x38, false},

	'0': {0x27, false}, '1': {0x1E, false}, '2': {0x1F, false}, '3': {0x20, false},
	'4': {0x21, false}, '5': {0x22, false}, '6': {0x23, false}, '7': {0x24, false},
	'8': {0x25, false}, '9': {0x26, false},

	':': {0x33, true}, ';': {0x33, false}, '<': {0x36, true}, '=': {0x2E, false},
	'>': {0x37, true}, '?': {0x38, true}, '@': {0x1F, true},

	'A': {0x04, true}, 'B': {0x05, true}, 'C': {0x06, true}, 'D': {0x07, true},
	'E': {0x08, true}, 'F': {0x09, true}, 'G': {0x0A, true}, 'H': {0x0B, true},
	'I': {0x0C, true}, 'J': {0x0D, true}, 'K': {0x0E, true}, 'L': {0x0F, true},
	'M': {0x10, true}, 'N': {0x11, true}, 'O': {0x12, true}, 'P': {0x13, true},
	'Q': {0x14, true}, 'R': {0x15, true}, 'S': {0x16, true}, 'T': {0x17, true},
	'U': {0x18, true}, 'V': {0x19, true}, 'W': {0x1A, true}, 'X': {0x1B, true},
	'Y': {0x1C, true}, 'Z': {0x1D, true},

	'[': {0x2F, false}, '\\': {0x31, false}, ']': {0x30, false}, '^': {0x23, true},
	'_': {0x2D, true}, '`': {0x35, false},

	'a': {0x04, false}, 'b': {0x05, false}, 'c': {0x06, false}, 'd': {0x07, false},
	'e': {0x08, false}, 'f': {0x09, false}, 'g': {0x0A, false}, 'h': {0x0B, false},
	'i': {0x0C, false}, 'j': {0x0D, false}, 'k': {0x0E, false}, 'l': {0x0F, false},
	'm': {0x10, false}, 'n': {0x11, false}, 'o': {0x12, false}, 'p': {0x13, false},
	'q': {0x14, false}, 'r': {0x15, false}, 's': {0x16, false}, 't': {0x17, false},
	'u': {0x18, false}, 'v': {0x19, false}, 'w': {0x1A, false}, 'x': {0x1B, false},
	'y': {0x1C, false}, 'z': {0x1D, false},

	'{': {0x2F, true}, '|': {0x31, true}, '}': {0x30, true}, '~': {0x35, true},
}

// LookupKey returns the key for a printable ASCII character.
func LookupKey(r rune) (Key, bool) {
	if r < 0x20 || r >= 0x80 {
		return Key{}, false
	}
	k := usKeys[r]
	return k, k.Code != 0
}

// HexDigitUsage returns the unshifted usage that types hex digit h. Letters
// are accepted in either case; the host conversion only needs valid digits.
func HexDigitUsage(h byte) (Usage, bool) {
	switch {
	case h >= '0' && h <= '9':
	case h >= 'A' && h <= 'F':
	case h >= 'a' && h <= 'f':
		h -= 'a' - 'A'
	default:
		return 0, false
	}
	k := usKeys[h]
	return k.Code, k.Code != 0
}
