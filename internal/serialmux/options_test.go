package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_Normalize_Defaults(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestPortOptions_Normalize_Parity(t *testing.T) {
	for in, want := range map[string]string{"": "N", "none": "N", " e ": "E", "ODD": "O"} {
		got, err := PortOptions{Parity: in}.Normalize()
		if err != nil {
			t.Fatalf("Normalize(%q) error = %v", in, err)
		}
		if got.Parity != want {
			t.Errorf("Normalize(%q).Parity = %q, want %q", in, got.Parity, want)
		}
	}
}

func TestPortOptions_Normalize_Invalid(t *testing.T) {
	for _, opts := range []PortOptions{
		{DataBits: 9},
		{DataBits: 4},
		{StopBits: 3},
		{Parity: "mark"},
	} {
		if _, err := opts.Normalize(); err == nil {
			t.Errorf("Normalize(%+v) accepted invalid options", opts)
		}
	}
}

func TestPortOptions_Equal(t *testing.T) {
	if !(PortOptions{}).Equal(PortOptions{BaudRate: 115200, Parity: "none"}) {
		t.Error("defaulted options should equal explicit defaults")
	}
	if (PortOptions{BaudRate: 9600}).Equal(PortOptions{}) {
		t.Error("different baud rates reported equal")
	}
	if (PortOptions{Parity: "x"}).Equal(PortOptions{Parity: "x"}) {
		t.Error("invalid options reported equal")
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	want := serial.Mode{BaudRate: 9600, DataBits: 7, StopBits: serial.TwoStopBits, Parity: serial.EvenParity}
	if *mode != want {
		t.Errorf("SerialMode() = %+v, want %+v", *mode, want)
	}
}
