package serialmux

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/banshee-data/scanwedge/internal/timeutil"
)

func TestTestableSerialPort_Errors(t *testing.T) {
	port := NewTestableSerialPort()
	port.ReadError = errors.New("read boom")
	_, err := port.Read(make([]byte, 1))
	assert.EqualError(t, err, "read boom")

	// errors are one-shot
	_, err = port.Read(make([]byte, 1))
	assert.NoError(t, err)

	require.NoError(t, port.Close())
	_, err = port.Write([]byte{1})
	assert.Error(t, err)
	assert.Error(t, port.SetMode(&serial.Mode{}))
}

func TestTestableSerialPort_BlockReads(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true

	done := make(chan string)
	go func() {
		buf := make([]byte, 4)
		n, _ := port.Read(buf)
		done <- string(buf[:n])
	}()

	port.AddReadData([]byte("ok"))
	select {
	case got := <-done:
		assert.Equal(t, "ok", got)
	case <-time.After(time.Second):
		t.Fatal("blocked read never woke")
	}
}

func TestTestableSerialPort_Reset(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("x"))
	port.Write([]byte("y"))
	port.SetMode(&serial.Mode{BaudRate: 9600})
	port.Reset()

	assert.Zero(t, port.Pending())
	assert.Empty(t, port.GetWrittenData())
	assert.Empty(t, port.Modes)
	assert.Zero(t, port.WriteCalls)
}

func readAll(t *testing.T, p SerialPorter) string {
	t.Helper()
	var out []byte
	buf := make([]byte, 64)
	for {
		n, err := p.Read(buf)
		require.NoError(t, err)
		if n == 0 {
			return string(out)
		}
		out = append(out, buf[:n]...)
	}
}

func TestSimulatedScanner_EchoesAndEmits(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	sim := NewSimulatedScanner(clock, "ONE", "TWO")
	sim.Interval = time.Second

	start := []byte{0x04, 0xE4, 0x04, 0x00, 0xFF, 0x14}
	_, err := sim.Write(start)
	require.NoError(t, err)
	assert.True(t, sim.Scanning())
	assert.Equal(t, string(start), readAll(t, sim))

	clock.Advance(time.Second)
	assert.Equal(t, "ONE\r\n", readAll(t, sim))
	clock.Advance(time.Second)
	assert.Equal(t, "TWO\r\n", readAll(t, sim))

	_, err = sim.Write([]byte{0x04, 0xE5, 0x04, 0x00, 0xFF, 0x13})
	require.NoError(t, err)
	readAll(t, sim)
	clock.Advance(time.Minute)
	assert.Empty(t, readAll(t, sim))
}

func TestSimulatedScanner_SilentAtWrongBaud(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	sim := NewSimulatedScanner(clock)
	sim.Baud = 9600

	sim.Write([]byte{0x04, 0xE4, 0x04, 0x00, 0xFF, 0x14})
	assert.False(t, sim.Scanning())
	assert.Empty(t, readAll(t, sim))

	require.NoError(t, sim.SetMode(&serial.Mode{BaudRate: 9600}))
	sim.Write([]byte{0x04, 0xE4, 0x04, 0x00, 0xFF, 0x14})
	assert.True(t, sim.Scanning())
}

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux()

	n, err := d.Read(make([]byte, 4))
	assert.NoError(t, err)
	assert.Zero(t, n)

	n, err = d.Write([]byte{1, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, d.SetBaudRate(9600))
	assert.Equal(t, 9600, d.BaudRate())

	_, ch := d.Subscribe()
	d.Publish("typed")
	assert.Equal(t, "typed", <-ch)

	require.NoError(t, d.Close())
	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, d.Close())

	_, late := d.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribe after close should return a closed channel")
}

var (
	_ SerialMuxInterface  = (*SerialMux[SerialPorter])(nil)
	_ SerialMuxInterface  = (*DisabledSerialMux)(nil)
	_ TimeoutSerialPorter = (*TestableSerialPort)(nil)
	_ TimeoutSerialPorter = (*SimulatedScanner)(nil)
	_ ModeSetter          = (*SimulatedScanner)(nil)
)
