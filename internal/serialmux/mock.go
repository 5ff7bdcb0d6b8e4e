package serialmux

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/scanwedge/internal/timeutil"
)

var errPortClosed = errors.New("serial port closed")

// TestableSerialPort implements SerialPorter with configurable behaviour for testing.
// It provides fine-grained control over reads, writes, errors, and latency.
// An empty read buffer reads as a timed-out read (0, nil) unless BlockReads
// is set.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadLatency adds a delay to each Read call
	ReadLatency time.Duration

	// WriteLatency adds a delay to each Write call
	WriteLatency time.Duration

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// ShortWrite makes the next Write report one byte fewer than given
	ShortWrite bool

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// ReadCalls records the number of Read calls
	ReadCalls int

	// WriteCalls records the number of Write calls
	WriteCalls int

	// ReadTimeout is the current read timeout
	ReadTimeout time.Duration

	// Modes records every mode applied through SetMode
	Modes []serial.Mode

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	// readCond is used to signal blocked readers
	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read reads from the read buffer, optionally simulating latency and errors.
func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	if t.Closed {
		return 0, errPortClosed
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.ReadLatency > 0 {
		t.mu.Unlock()
		time.Sleep(t.ReadLatency)
		t.mu.Lock()
	}

	if t.ReadBuffer.Len() == 0 {
		if !t.BlockReads {
			return 0, nil
		}
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, errPortClosed
		}
	}

	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer, optionally simulating latency and errors.
func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++

	if t.Closed {
		return 0, errPortClosed
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	if t.WriteLatency > 0 {
		t.mu.Unlock()
		time.Sleep(t.WriteLatency)
		t.mu.Lock()
	}

	if t.ShortWrite && len(p) > 0 {
		t.ShortWrite = false
		return t.WriteBuffer.Write(p[:len(p)-1])
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast() // Wake up any blocked readers

	return t.CloseError
}

// SetReadTimeout implements TimeoutSerialPorter.
func (t *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadTimeout = timeout
	return nil
}

// SetMode implements ModeSetter.
func (t *TestableSerialPort) SetMode(mode *serial.Mode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return errPortClosed
	}
	t.Modes = append(t.Modes, *mode)
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal() // Wake up a blocked reader
}

// GetWrittenData returns a copy of all data written to the port.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return bytes.Clone(t.WriteBuffer.Bytes())
}

// Pending returns how many bytes are still unread.
func (t *TestableSerialPort) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ReadBuffer.Len()
}

// Reset clears all buffers and resets state.
func (t *TestableSerialPort) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Reset()
	t.WriteBuffer.Reset()
	t.ReadCalls = 0
	t.WriteCalls = 0
	t.Closed = false
	t.ReadError = nil
	t.WriteError = nil
	t.ShortWrite = false
	t.CloseError = nil
	t.ReadLatency = 0
	t.WriteLatency = 0
	t.Modes = nil
}

// MockSerialPortFactory implements SerialPortFactory for testing.
type MockSerialPortFactory struct {
	mu sync.Mutex

	// Port is the port to return from Open
	Port SerialPorter

	// Error is returned by Open if set
	Error error

	// OpenCalls records all Open calls
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path string
	Opts PortOptions
}

// NewMockSerialPortFactory creates a new MockSerialPortFactory.
func NewMockSerialPortFactory(port SerialPorter) *MockSerialPortFactory {
	return &MockSerialPortFactory{Port: port}
}

// Open returns the configured port or error.
func (f *MockSerialPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Opts: opts})

	if f.Error != nil {
		return nil, f.Error
	}

	return f.Port, nil
}

// LastCall returns the most recent Open call, or nil if none.
func (f *MockSerialPortFactory) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}

// SimulatedScanner is a SerialPorter that behaves like the scanner module
// closely enough to run the whole pipeline without hardware (-dev). It echoes
// the control frames it is sent and, while scanning and at the configured
// baud, emits one payload line per Interval.
type SimulatedScanner struct {
	mu sync.Mutex

	clock       timeutil.Clock
	payloads    []string
	next        int
	out         bytes.Buffer
	scanning    bool
	baud        int
	lastEmit    time.Time
	closed      bool
	readTimeout time.Duration

	// Baud is the speed the simulated module talks at.
	Baud int
	// Interval is the time between emitted scans.
	Interval time.Duration
}

// NewSimulatedScanner returns a simulator cycling through payloads.
func NewSimulatedScanner(clock timeutil.Clock, payloads ...string) *SimulatedScanner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if len(payloads) == 0 {
		payloads = []string{"SCANWEDGE-TEST", "https://example.com/?q=1", "こんにちは", "Grüße 😀"}
	}
	return &SimulatedScanner{
		clock:       clock,
		payloads:    payloads,
		baud:        DefaultBaudRate,
		readTimeout: DefaultReadTimeout,
		Baud:        DefaultBaudRate,
		Interval:    3 * time.Second,
	}
}

// frameEchoes are the frames the module echoes back verbatim.
var frameEchoes = map[[2]byte]bool{
	{0x04, 0xE4}: true,
	{0x04, 0xE5}: true,
	{0x07, 0xC6}: true,
}

// Write inspects frames from the host. Wake bytes and acks are swallowed.
func (s *SimulatedScanner) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errPortClosed
	}
	if len(p) < 2 || s.baud != s.Baud {
		return len(p), nil
	}
	hdr := [2]byte{p[0], p[1]}
	if frameEchoes[hdr] {
		s.out.Write(p)
	}
	switch hdr {
	case [2]byte{0x04, 0xE4}:
		s.scanning = true
		s.lastEmit = s.clock.Now()
	case [2]byte{0x04, 0xE5}:
		s.scanning = false
	}
	return len(p), nil
}

// Read returns pending output, or waits one read timeout and returns 0, nil.
func (s *SimulatedScanner) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errPortClosed
	}
	if s.scanning && s.baud == s.Baud && s.clock.Since(s.lastEmit) >= s.Interval {
		s.out.WriteString(s.payloads[s.next%len(s.payloads)])
		s.out.WriteString("\r\n")
		s.next++
		s.lastEmit = s.clock.Now()
	}
	if s.out.Len() > 0 {
		defer s.mu.Unlock()
		return s.out.Read(p)
	}
	wait := s.readTimeout
	s.mu.Unlock()
	s.clock.Sleep(wait)
	return 0, nil
}

// SetReadTimeout implements TimeoutSerialPorter.
func (s *SimulatedScanner) SetReadTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = d
	return nil
}

// SetMode implements ModeSetter.
func (s *SimulatedScanner) SetMode(mode *serial.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baud = mode.BaudRate
	return nil
}

// Scanning reports whether the simulated module is scanning.
func (s *SimulatedScanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

func (s *SimulatedScanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
