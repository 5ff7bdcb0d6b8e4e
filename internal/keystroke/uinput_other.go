//go:build !linux

package keystroke

import "errors"

// DefaultUinputPath is where the kernel exposes the uinput device.
const DefaultUinputPath = "/dev/uinput"

// Uinput is only available on Linux.
type Uinput struct{}

// OpenUinput always fails off Linux.
func OpenUinput(path, name string) (*Uinput, error) {
	return nil, errors.New("uinput keyboards require linux")
}

func (*Uinput) Press(Usage) error   { return ErrDeviceClosed }
func (*Uinput) Release(Usage) error { return ErrDeviceClosed }
func (*Uinput) Close() error        { return nil }
