package serialmux

import (
	"net/http"
	"sync"
)

// DisabledSerialMux is a no-op link used when no scanner port is configured.
// Reads are always quiet, writes are discarded and baud changes are
// accepted, so the session and admin routes run without a device. Subscribers
// are tracked so their channels can be closed on Unsubscribe() or Close().
type DisabledSerialMux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
	baud        int
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{
		subscribers: make(map[string]chan string),
		baud:        DefaultBaudRate,
	}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, 16)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		// If already closing, return a closed channel so callers don't block.
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

// Publish still reaches subscribers so scans typed through the API show up
// on the tail page.
func (d *DisabledSerialMux) Publish(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

func (d *DisabledSerialMux) Read([]byte) (int, error)    { return 0, nil }
func (d *DisabledSerialMux) Write(p []byte) (int, error) { return len(p), nil }

func (d *DisabledSerialMux) SetBaudRate(baud int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.baud = baud
	return nil
}

func (d *DisabledSerialMux) BaudRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baud
}

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/serial-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("serial disabled"))
	})
}
