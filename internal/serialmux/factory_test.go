package serialmux

import (
	"errors"
	"testing"
)

func TestNewRealSerialMux_InvalidPath(t *testing.T) {
	mux, err := NewRealSerialMux("/dev/nonexistent-serial-port-12345", PortOptions{})
	if err == nil {
		mux.Close()
		t.Fatal("expected error when opening non-existent serial port")
	}
	if mux != nil {
		t.Error("expected nil mux when error is returned")
	}
}

func TestOpenSerialMux_UsesFactory(t *testing.T) {
	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)

	mux, err := OpenSerialMux(factory, "/dev/ttyUSB0", PortOptions{BaudRate: 9600})
	if err != nil {
		t.Fatalf("OpenSerialMux() error = %v", err)
	}
	call := factory.LastCall()
	if call == nil || call.Path != "/dev/ttyUSB0" {
		t.Fatalf("LastCall() = %+v", call)
	}
	if call.Opts.Parity != "N" {
		t.Errorf("factory received un-normalized options %+v", call.Opts)
	}
	if mux.BaudRate() != 9600 {
		t.Errorf("BaudRate() = %d, want 9600", mux.BaudRate())
	}
}

func TestOpenSerialMux_Errors(t *testing.T) {
	factory := NewMockSerialPortFactory(nil)
	factory.Error = errors.New("busy")
	if _, err := OpenSerialMux(factory, "/dev/x", PortOptions{}); err == nil {
		t.Error("factory error not returned")
	}
	if _, err := OpenSerialMux(factory, "/dev/x", PortOptions{DataBits: 12}); err == nil {
		t.Error("invalid options accepted")
	}
	if len(factory.OpenCalls) != 1 {
		t.Errorf("invalid options still reached the factory: %d calls", len(factory.OpenCalls))
	}
}
