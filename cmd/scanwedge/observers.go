package main

import (
	"fmt"

	"github.com/banshee-data/scanwedge/internal/session"
)

// publisher is the part of the serial mux the tail page listens on.
type publisher interface {
	Publish(line string)
}

// tailObserver mirrors session activity onto the /debug/tail stream.
type tailObserver struct {
	pub publisher
}

func (t tailObserver) OnInfo(msg string) { t.pub.Publish("info: " + msg) }

func (t tailObserver) OnScanResult(res session.ScanResult) {
	t.pub.Publish(fmt.Sprintf("scan %s [%s] %q", res.ID, res.Reason, res.Text))
}

func (t tailObserver) OnDebugLine(line string) { t.pub.Publish("debug: " + line) }

func (t tailObserver) OnScanComplete(res session.ScanResult, err error) {
	if err != nil {
		t.pub.Publish(fmt.Sprintf("scan %s failed: %v", res.ID, err))
	}
}
