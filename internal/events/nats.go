// Package events publishes scan activity to NATS so other services can follow
// what the wedge types without reading the keyboard.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/banshee-data/scanwedge/internal/monitoring"
	"github.com/banshee-data/scanwedge/internal/session"
)

var logf = monitoring.Tagged("events")

// Publisher is the subset of *nats.Conn used here.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ScanEvent is the JSON body published for every completed scan.
type ScanEvent struct {
	ID         string    `json:"id"`
	ScannedAt  time.Time `json:"scanned_at"`
	Reason     string    `json:"reason"`
	Text       string    `json:"text"`
	PayloadHex string    `json:"payload_hex"`
	CodePoints int       `json:"code_points"`
	EmitMillis float64   `json:"emit_ms"`
	Error      string    `json:"error,omitempty"`
}

// NewScanEvent builds the event for a completed scan.
func NewScanEvent(res session.ScanResult, err error) ScanEvent {
	ev := ScanEvent{
		ID:         res.ID,
		ScannedAt:  res.At.UTC(),
		Reason:     res.Reason.String(),
		Text:       res.Text,
		PayloadHex: fmt.Sprintf("%X", res.Payload),
		CodePoints: len(res.CodePoints),
		EmitMillis: float64(res.EmitDuration) / float64(time.Millisecond),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// NATSPublisher publishes completed scans on Subject and info messages on
// Subject + ".info".
type NATSPublisher struct {
	conn    Publisher
	Subject string
}

// NewNATSPublisher wraps an open connection.
func NewNATSPublisher(conn Publisher, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, Subject: subject}
}

// Connect dials url with the reconnect behaviour the service wants: keep
// trying forever, the scan loop never waits on the broker.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("scanwedge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logf("disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logf("reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// PublishScan sends one scan event.
func (p *NATSPublisher) PublishScan(res session.ScanResult, scanErr error) error {
	data, err := json.Marshal(NewScanEvent(res, scanErr))
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.Subject, data); err != nil {
		return fmt.Errorf("publish scan %s: %w", res.ID, err)
	}
	return nil
}

// Observer returns a session observer that publishes completed scans and
// info messages. Publish errors are logged and dropped.
func (p *NATSPublisher) Observer() session.Observer {
	return session.ObserverFuncs{
		Info: func(msg string) {
			if err := p.conn.Publish(p.Subject+".info", []byte(msg)); err != nil {
				logf("publish info: %v", err)
			}
		},
		Complete: func(res session.ScanResult, err error) {
			if perr := p.PublishScan(res, err); perr != nil {
				logf("%v", perr)
			}
		},
	}
}
