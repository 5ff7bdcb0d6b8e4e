package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// RealPortFactory opens ports with go.bug.st/serial.
type RealPortFactory struct{}

// Open opens path and applies DefaultReadTimeout.
func (RealPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(DefaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}
	return port, nil
}

// NewRealSerialMux creates a SerialMux instance backed by a real serial port at the
// given path using the provided serial options.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	return OpenSerialMux(RealPortFactory{}, path, opts)
}

// OpenSerialMux opens path through factory and wraps it.
func OpenSerialMux(factory SerialPortFactory, path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	norm, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	port, err := factory.Open(path, norm)
	if err != nil {
		return nil, err
	}
	return NewSerialMux(port, norm.BaudRate), nil
}
