// Serialmux owns the serial link to the scanner module. Writes are
// serialised so frames never interleave, the link speed can be changed while
// the port is open, and finished scans are fanned out to any number of live
// subscribers (the admin tail page, tests).
package serialmux

import (
	"bytes"
	crand "crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.bug.st/serial"
	"tailscale.com/tsweb"
)

var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

// ErrModeUnsupported is returned by SetBaudRate when the underlying port
// cannot be reconfigured while open.
var ErrModeUnsupported = errors.New("serial port does not support changing mode")

//go:embed templates/*
var adminTemplateFS embed.FS

var sendFrameTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-frame.html.tmpl"))

// SerialMux wraps a single scanner port.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
	baud         int
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	io.ReadWriter
	// SetBaudRate reconfigures the link speed.
	SetBaudRate(int) error
	// BaudRate returns the speed last applied.
	BaudRate() int
	// Subscribe creates a new channel receiving every published scan line.
	// The channel ID is used to identify the channel when unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// Publish sends a line to every subscriber without blocking.
	Publish(string)
	// Close closes all subscribed channels and closes the serial port.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// ModeSetter is implemented by ports whose line settings can change while
// open, such as go.bug.st/serial ports.
type ModeSetter interface {
	SetMode(mode *serial.Mode) error
}

// NewSerialMux creates a SerialMux around port, which is assumed to be open
// at baud.
func NewSerialMux[T SerialPorter](port T, baud int) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
		baud:        baud,
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, 16)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Publish fans line out to subscribers. Slow subscribers miss lines rather
// than stall the scan loop.
func (s *SerialMux[T]) Publish(line string) {
	s.closingMu.Lock()
	closing := s.closing
	s.closingMu.Unlock()
	if closing {
		return
	}

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// Read reads from the port. With a read timeout configured it returns 0, nil
// when the link is quiet.
func (s *SerialMux[T]) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

// Write writes a whole frame to the port.
func (s *SerialMux[T]) Write(frame []byte) (int, error) {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	n, err := s.port.Write(frame)
	if err != nil {
		return n, err
	}
	if n != len(frame) {
		return n, ErrWriteFailed
	}
	return n, nil
}

// SendFrame writes frame and reports only the error.
func (s *SerialMux[T]) SendFrame(frame []byte) error {
	_, err := s.Write(frame)
	return err
}

// SetBaudRate switches the port to baud, keeping 8N1.
func (s *SerialMux[T]) SetBaudRate(baud int) error {
	setter, ok := any(s.port).(ModeSetter)
	if !ok {
		return ErrModeUnsupported
	}
	mode, err := PortOptions{BaudRate: baud}.SerialMode()
	if err != nil {
		return err
	}
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if err := setter.SetMode(mode); err != nil {
		return fmt.Errorf("set baud %d: %w", baud, err)
	}
	s.baud = baud
	return nil
}

// BaudRate returns the link speed last applied.
func (s *SerialMux[T]) BaudRate() int {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	return s.baud
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}

// ParseFrame parses hex bytes separated by spaces, commas or nothing at all,
// e.g. "04 E4 04 00 FF 14" or "04e40400ff14".
func ParseFrame(s string) ([]byte, error) {
	clean := strings.NewReplacer("0x", "", "0X", "").Replace(s)
	clean = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ',', ':', '\t', '\n', '\r':
			return -1
		}
		return r
	}, clean)
	if clean == "" {
		return nil, errors.New("empty frame")
	}
	frame, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex frame %q: %w", s, err)
	}
	return frame, nil
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// Raw frame console plus live tail of scans, using the two API endpoints below.
	debug.HandleFunc("send-frame", "send a raw frame to the scanner module", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sendFrameTemplate.Execute(buf, struct{ Baud int }{s.BaudRate()}); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	debug.HandleSilentFunc("send-frame-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		raw := strings.TrimSpace(r.FormValue("frame"))
		if raw == "" {
			http.Error(w, "Missing frame", http.StatusBadRequest)
			return
		}
		frame, err := ParseFrame(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.SendFrame(frame); err != nil {
			http.Error(w, "Failed to write frame", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote % X to serial port", frame))
	})

	// Server-Sent Events for every published scan.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				_, err := w.Write([]byte(fmt.Sprintf("data: %s\n\n", payload)))
				if err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")

		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
}
