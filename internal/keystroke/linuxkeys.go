package keystroke

// linuxKeys maps HID usages to Linux input event codes (linux/input-event-codes.h).
var linuxKeys = map[Usage]uint16{
	0x04: 30, 0x05: 48, 0x06: 46, 0x07: 32, 0x08: 18, 0x09: 33, 0x0A: 34, 0x0B: 35,
	0x0C: 23, 0x0D: 36, 0x0E: 37, 0x0F: 38, 0x10: 50, 0x11: 49, 0x12: 24, 0x13: 25,
	0x14: 16, 0x15: 19, 0x16: 31, 0x17: 20, 0x18: 22, 0x19: 47, 0x1A: 17, 0x1B: 45,
	0x1C: 21, 0x1D: 44,

	0x1E: 2, 0x1F: 3, 0x20: 4, 0x21: 5, 0x22: 6, 0x23: 7, 0x24: 8, 0x25: 9,
	0x26: 10, 0x27: 11,

	UsageEnter: 28, UsageEscape: 1, UsageBackspace: 14, UsageTab: 15, UsageSpace: 57,
	0x2D: 12, 0x2E: 13, 0x2F: 26, 0x30: 27, 0x31: 43, 0x33: 39, 0x34: 40, 0x35: 41,
	0x36: 51, 0x37: 52, 0x38: 53,

	UsageDelete: 111, UsageRight: 106, UsageLeft: 105, UsageDown: 108, UsageUp: 103,

	UsageLeftCtrl: 29, UsageLeftShift: 42, UsageLeftAlt: 56, UsageLeftGUI: 125,
	0xE4: 97, 0xE5: 54, 0xE6: 100, UsageRightGUI: 126,
}

// LinuxKeyCode returns the evdev key code for u.
func LinuxKeyCode(u Usage) (uint16, bool) {
	c, ok := linuxKeys[u]
	return c, ok
}
