// Package scanner implements the byte-level side of the UART scanner link:
// the command frames written to the module, the classifier that strips the
// module's control frames from the inbound stream, and the assembler that
// turns the remaining bytes into scan records.
package scanner

// Command frames understood by the scanner module.
var (
	WakeCmd      = []byte{0x00}
	StartScanCmd = []byte{0x04, 0xE4, 0x04, 0x00, 0xFF, 0x14}
	StopScanCmd  = []byte{0x04, 0xE5, 0x04, 0x00, 0xFF, 0x13}
	HostModeCmd  = []byte{0x07, 0xC6, 0x04, 0x08, 0x00, 0x8A, 0x08, 0xFE, 0x95}
	AckCmd       = []byte{0x04, 0xD0, 0x00, 0x00, 0xFF, 0x2C}
)

// Record terminators.
const (
	LineFeed       byte = '\n'
	CarriageReturn byte = '\r'
)

// CandidateBauds lists the link speeds the module is known to run at, in the
// order they are cycled through.
var CandidateBauds = []int{115200, 9600}

// Signature identifies a control frame by its two header bytes. Length is the
// full frame length including the header.
type Signature struct {
	Name   string
	Header [2]byte
	Length int
}

// Remaining is the number of bytes that follow the header.
func (s Signature) Remaining() int { return s.Length - len(s.Header) }

// KnownSignatures are the control frames the module sends back to the host:
// echoes of start/stop/ack and the host-mode echo.
var KnownSignatures = []Signature{
	{Name: "start", Header: [2]byte{0x04, 0xE4}, Length: 6},
	{Name: "stop", Header: [2]byte{0x04, 0xE5}, Length: 6},
	{Name: "ack", Header: [2]byte{0x04, 0xD0}, Length: 6},
	{Name: "host-mode", Header: [2]byte{0x07, 0xC6}, Length: 9},
}

// IsHeaderMarker reports whether b can start a control frame.
func IsHeaderMarker(b byte) bool {
	return b == 0x04 || b == 0x07
}

// LookupSignature returns the signature for a header pair.
func LookupSignature(first, second byte) (Signature, bool) {
	for _, sig := range KnownSignatures {
		if sig.Header[0] == first && sig.Header[1] == second {
			return sig, true
		}
	}
	return Signature{}, false
}
