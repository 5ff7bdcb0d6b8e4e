package main

import (
	"fmt"
	"io"

	"github.com/banshee-data/scanwedge/internal/config"
	"github.com/banshee-data/scanwedge/internal/keystroke"
)

// uinputDeviceName is what the host lists the virtual keyboard as.
const uinputDeviceName = "scanwedge"

// logKeyboardHistory bounds the memory of the log backend.
const logKeyboardHistory = 4096

// keyboardBackend pairs the typing backend with its closer.
type keyboardBackend interface {
	keystroke.Keyboard
	io.Closer
}

// openKeyboard opens the backend named by kind at device.
func openKeyboard(kind, device string) (keyboardBackend, error) {
	switch kind {
	case config.KeyboardHIDGadget:
		g, err := keystroke.OpenHIDGadget(device)
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.KeyboardUinput:
		u, err := keystroke.OpenUinput(device, uinputDeviceName)
		if err != nil {
			return nil, err
		}
		return u, nil
	case config.KeyboardLog:
		rec := keystroke.NewRecorder()
		rec.Log = true
		rec.Limit = logKeyboardHistory
		return rec, nil
	}
	return nil, fmt.Errorf("unknown keyboard backend %q", kind)
}
