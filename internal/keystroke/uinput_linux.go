//go:build linux

package keystroke

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultUinputPath is where the kernel exposes the uinput device.
const DefaultUinputPath = "/dev/uinput"

// uinput ioctls and event constants from linux/uinput.h and input-event-codes.h.
const (
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	evSyn     = 0x00
	evKey     = 0x01
	synReport = 0

	busUSB = 0x03
)

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputUserDev is the legacy struct uinput_user_dev written before UI_DEV_CREATE.
type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FFEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// Uinput is a Keyboard backed by a virtual input device. It types into the
// machine the program runs on rather than a USB host.
type Uinput struct {
	mu     sync.Mutex
	fd     int
	closed bool
}

// OpenUinput creates a virtual keyboard called name that can emit every key
// in the usage table.
func OpenUinput(path, name string) (*Uinput, error) {
	if path == "" {
		path = DefaultUinputPath
	}
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	k := &Uinput{fd: fd}
	if err := k.setup(name); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return k, nil
}

func (k *Uinput) setup(name string) error {
	if err := unix.IoctlSetInt(k.fd, uiSetEvBit, evKey); err != nil {
		return fmt.Errorf("UI_SET_EVBIT: %w", err)
	}
	for _, code := range linuxKeys {
		if err := unix.IoctlSetInt(k.fd, uiSetKeyBit, int(code)); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT %d: %w", code, err)
		}
	}

	dev := uinputUserDev{ID: inputID{Bustype: busUSB, Vendor: 0x1209, Product: 0x5157, Version: 1}}
	copy(dev.Name[:len(dev.Name)-1], name)
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, &dev); err != nil {
		return err
	}
	if _, err := unix.Write(k.fd, buf.Bytes()); err != nil {
		return fmt.Errorf("write uinput_user_dev: %w", err)
	}
	if err := unix.IoctlSetInt(k.fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return nil
}

func (k *Uinput) Press(u Usage) error   { return k.key(u, 1) }
func (k *Uinput) Release(u Usage) error { return k.key(u, 0) }

func (k *Uinput) key(u Usage, value int32) error {
	code, ok := LinuxKeyCode(u)
	if !ok {
		return fmt.Errorf("no evdev code for usage %#02x", uint8(u))
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrDeviceClosed
	}
	var buf bytes.Buffer
	for _, ev := range []inputEvent{
		{Type: evKey, Code: code, Value: value},
		{Type: evSyn, Code: synReport},
	} {
		if err := binary.Write(&buf, binary.NativeEndian, &ev); err != nil {
			return err
		}
	}
	if _, err := unix.Write(k.fd, buf.Bytes()); err != nil {
		return fmt.Errorf("write input event: %w", err)
	}
	return nil
}

// Close destroys the virtual device.
func (k *Uinput) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	destroyErr := unix.IoctlSetInt(k.fd, uiDevDestroy, 0)
	if err := unix.Close(k.fd); err != nil {
		return err
	}
	return destroyErr
}
