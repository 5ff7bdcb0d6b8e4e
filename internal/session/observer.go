package session

import (
	"time"

	"github.com/banshee-data/scanwedge/internal/scanner"
)

// ScanResult describes one finalized and typed scan.
type ScanResult struct {
	ID         string
	Raw        []byte
	Payload    []byte
	Text       string
	CodePoints []rune
	Reason     scanner.FinalizeReason
	At         time.Time
	// EmitDuration is the time spent typing the scan, Enter included. It is
	// zero when the result is delivered before typing starts.
	EmitDuration time.Duration
}

// Observer receives what the session would otherwise show on a display.
// Calls happen on the scan loop goroutine and must not block for long.
type Observer interface {
	OnInfo(msg string)
	OnScanResult(res ScanResult)
	OnDebugLine(line string)
}

// CompletionObserver is implemented by observers that also want the result
// after typing, with EmitDuration set and the typing or ack error, if any.
type CompletionObserver interface {
	OnScanComplete(res ScanResult, err error)
}

// Observers fans out to every element.
type Observers []Observer

func (o Observers) OnInfo(msg string) {
	for _, ob := range o {
		ob.OnInfo(msg)
	}
}

func (o Observers) OnScanResult(res ScanResult) {
	for _, ob := range o {
		ob.OnScanResult(res)
	}
}

func (o Observers) OnDebugLine(line string) {
	for _, ob := range o {
		ob.OnDebugLine(line)
	}
}

func (o Observers) OnScanComplete(res ScanResult, err error) {
	for _, ob := range o {
		if c, ok := ob.(CompletionObserver); ok {
			c.OnScanComplete(res, err)
		}
	}
}

// ObserverFuncs adapts plain functions. Nil fields are skipped.
type ObserverFuncs struct {
	Info     func(string)
	Scan     func(ScanResult)
	Debug    func(string)
	Complete func(ScanResult, error)
}

func (f ObserverFuncs) OnInfo(msg string) {
	if f.Info != nil {
		f.Info(msg)
	}
}

func (f ObserverFuncs) OnScanResult(res ScanResult) {
	if f.Scan != nil {
		f.Scan(res)
	}
}

func (f ObserverFuncs) OnDebugLine(line string) {
	if f.Debug != nil {
		f.Debug(line)
	}
}

func (f ObserverFuncs) OnScanComplete(res ScanResult, err error) {
	if f.Complete != nil {
		f.Complete(res, err)
	}
}

// LogObserver writes everything to a printf-style logger.
type LogObserver struct {
	Logf func(format string, v ...interface{})
}

func (l LogObserver) OnInfo(msg string) { l.Logf("%s", msg) }

func (l LogObserver) OnScanResult(res ScanResult) {
	l.Logf("scan %s (%s, %d bytes): %q", res.ID, res.Reason, len(res.Payload), res.Text)
}

func (l LogObserver) OnDebugLine(line string) { l.Logf("%s", line) }
