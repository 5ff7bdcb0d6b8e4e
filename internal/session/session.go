// Package session runs the scan pipeline: it owns the scanner link and the
// keyboard, moves link bytes through the frame classifier and the record
// assembler, and types every finished record followed by Enter before
// acknowledging it to the module.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/scanwedge/internal/codepoint"
	"github.com/banshee-data/scanwedge/internal/keystroke"
	"github.com/banshee-data/scanwedge/internal/monitoring"
	"github.com/banshee-data/scanwedge/internal/scanner"
	"github.com/banshee-data/scanwedge/internal/timeutil"
)

// Link is the scanner side of the session. Read must return (0, nil) rather
// than block indefinitely when the link is quiet.
type Link interface {
	io.ReadWriter
	SetBaudRate(baud int) error
}

// Delays of the module's command protocol.
const (
	BootWakeDelay     = 80 * time.Millisecond
	BootHostModeDelay = 120 * time.Millisecond
	BootFlushQuiet    = 50 * time.Millisecond
	BootFlushLimit    = 2 * time.Second
	CommandWakeDelay  = 40 * time.Millisecond

	// DefaultPollInterval paces Run.
	DefaultPollInterval = 5 * time.Millisecond

	// idleReadPause is slept after an empty read while flushing so that a
	// port without a read timeout does not spin.
	idleReadPause = 5 * time.Millisecond
)

// Info messages passed to Observer.OnInfo.
const (
	InfoInit      = "Init..."
	InfoReady     = "Ready"
	InfoHIDReady  = "HID Ready"
	InfoScanning  = "Scanning..."
	InfoStopped   = "Stopped"
	InfoDebugOn   = "Debug ON"
	InfoDebugOff  = "Debug OFF"
	infoBaudShift = "Baud->"
)

var logf = monitoring.Tagged("session")

// Options configure a Session.
type Options struct {
	Link     Link
	Keyboard keystroke.Keyboard
	// Clock defaults to the real clock.
	Clock timeutil.Clock
	// Observer defaults to a LogObserver on the monitoring logger.
	Observer Observer
	// ReadBufferSize defaults to 256.
	ReadBufferSize int
}

// Status is a snapshot of the session for the API.
type Status struct {
	Initialized   bool         `json:"initialized"`
	Scanning      bool         `json:"scanning"`
	Debug         bool         `json:"debug"`
	BaudRate      int          `json:"baud_rate"`
	OpenRecord    int          `json:"open_record_bytes"`
	FrameBytes    int          `json:"discarded_frame_bytes"`
	LastError     string       `json:"last_error,omitempty"`
	LastScanID    string       `json:"last_scan_id,omitempty"`
	LastScanText  string       `json:"last_scan_text,omitempty"`
	Stats         StatsSummary `json:"stats"`
	SilenceMillis int64        `json:"silence_timeout_ms"`
}

// Session is the scan loop. All methods except Status and Stats must be
// called from a single goroutine.
type Session struct {
	link       Link
	emitter    *keystroke.Emitter
	encoder    *keystroke.Encoder
	classifier *scanner.Classifier
	assembler  *scanner.Assembler
	clock      timeutil.Clock
	observer   Observer
	stats      *Stats

	applied     Config
	initialized bool
	// rejected holds mode requests the link refused. They are not retried
	// until the request changes.
	rejected rejectedModes
	readBuf  []byte
	data     []byte

	statusMu sync.Mutex
	status   Status
}

type rejectedModes struct {
	baud      bool
	baudIndex int
	scan      bool
}

// New returns a session that has not yet run the boot sequence.
func New(opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	observer := opts.Observer
	if observer == nil {
		observer = LogObserver{Logf: logf}
	}
	size := opts.ReadBufferSize
	if size <= 0 {
		size = 256
	}
	cfg := DefaultConfig()
	return &Session{
		link:       opts.Link,
		emitter:    keystroke.NewEmitter(opts.Keyboard, clock),
		encoder:    keystroke.NewEncoder(cfg.Timing),
		classifier: scanner.NewClassifier(),
		assembler:  scanner.NewAssembler(cfg.SilenceTimeout),
		clock:      clock,
		observer:   observer,
		stats:      NewStats(),
		readBuf:    make([]byte, size),
	}
}

// Stats returns the session's latency statistics.
func (s *Session) Stats() *Stats { return s.stats }

// Status returns a snapshot that is safe to read from any goroutine.
func (s *Session) Status() Status {
	s.statusMu.Lock()
	st := s.status
	s.statusMu.Unlock()
	st.Stats = s.stats.Summary()
	return st
}

func (s *Session) updateStatus(f func(*Status)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	f(&s.status)
}

func (s *Session) syncStatus() {
	s.updateStatus(func(st *Status) {
		st.Initialized = s.initialized
		st.Scanning = s.applied.Scanning
		st.Debug = s.applied.Debug
		st.BaudRate = s.applied.BaudRate()
		st.OpenRecord = s.assembler.Len()
		st.FrameBytes = s.classifier.Discarded()
		st.SilenceMillis = s.assembler.Timeout().Milliseconds()
	})
}

// Initialize runs the module boot sequence: wake, host mode, flush whatever
// the module sent while starting, then start scanning if cfg asks for it.
func (s *Session) Initialize(cfg Config) error {
	s.applyTiming(cfg)
	s.applied = cfg
	s.applied.Scanning = false
	s.observer.OnInfo(InfoInit)

	if cfg.BaudIndex != 0 {
		if err := s.link.SetBaudRate(cfg.BaudRate()); err != nil {
			return fmt.Errorf("set initial baud: %w", err)
		}
	}

	if err := s.send(scanner.WakeCmd); err != nil {
		return fmt.Errorf("wake module: %w", err)
	}
	s.clock.Sleep(BootWakeDelay)
	if err := s.send(scanner.HostModeCmd); err != nil {
		return fmt.Errorf("set host mode: %w", err)
	}
	s.clock.Sleep(BootHostModeDelay)
	s.observer.OnInfo(InfoReady)
	s.debugLine(cfg, "[BOOT] Ready")

	flushed, err := s.flush()
	if err != nil {
		return fmt.Errorf("flush link: %w", err)
	}
	if flushed > 0 {
		logf("discarded %d bytes during boot", flushed)
	}
	s.debugLine(cfg, "[BOOT] Flush")
	s.observer.OnInfo(InfoHIDReady)

	s.initialized = true
	if cfg.Scanning {
		if err := s.setScanning(cfg, true); err != nil {
			return err
		}
	}
	s.syncStatus()
	return nil
}

// flush discards link input until it has been quiet for BootFlushQuiet.
func (s *Session) flush() (int, error) {
	var total int
	start := s.clock.Now()
	lastData := start
	for s.clock.Since(lastData) < BootFlushQuiet {
		if s.clock.Since(start) > BootFlushLimit {
			logf("link still busy after %v, continuing", BootFlushLimit)
			break
		}
		n, err := s.link.Read(s.readBuf)
		if err != nil {
			return total, err
		}
		if n > 0 {
			total += n
			lastData = s.clock.Now()
			continue
		}
		s.clock.Sleep(idleReadPause)
	}
	return total, nil
}

// Poll runs one step of the loop against cfg: mode changes first, then, while
// scanning, whatever the link has, then the silence timeout. The timeout is
// checked even while idle so a record left open by a stop is still typed.
// A refused mode change is reported and the step carries on with the modes
// already in force.
func (s *Session) Poll(cfg Config) error {
	if !s.initialized {
		return errors.New("session not initialized")
	}
	defer s.syncStatus()

	var errs []error
	if err := s.applyModes(cfg); err != nil {
		errs = append(errs, err)
	}
	if s.applied.Scanning {
		errs = append(errs, s.readLink()...)
	}

	if rec, ok := s.assembler.CheckTimeout(s.clock.Now()); ok {
		if err := s.handleRecord(rec); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		s.updateStatus(func(st *Status) { st.LastError = err.Error() })
	}
	return err
}

// readLink drains what the link has through the classifier and assembler.
func (s *Session) readLink() []error {
	var errs []error
	for {
		n, err := s.link.Read(s.readBuf)
		if err != nil {
			errs = append(errs, fmt.Errorf("read link: %w", err))
			break
		}
		if n == 0 {
			break
		}
		s.data = s.classifier.Feed(s.data[:0], s.readBuf[:n])
		for _, b := range s.data {
			if rec, ok := s.assembler.Feed(b, s.clock.Now()); ok {
				if err := s.handleRecord(rec); err != nil {
					errs = append(errs, err)
				}
			}
		}
		if n < len(s.readBuf) {
			break
		}
	}
	return errs
}

func (s *Session) applyTiming(cfg Config) {
	s.encoder.Timing = cfg.Timing
	s.assembler.SetTimeout(cfg.SilenceTimeout)
}

func (s *Session) applyModes(cfg Config) error {
	s.applyTiming(cfg)
	prev := s.applied
	var errs []error

	if cfg.BaudIndex == prev.BaudIndex {
		s.rejected.baud = false
	} else if !s.rejected.baud || s.rejected.baudIndex != cfg.BaudIndex {
		if err := s.switchBaud(cfg); err != nil {
			s.rejected.baud, s.rejected.baudIndex = true, cfg.BaudIndex
			errs = append(errs, err)
		} else {
			s.rejected.baud = false
		}
	}

	if cfg.Debug != prev.Debug {
		s.applied.Debug = cfg.Debug
		if cfg.Debug {
			s.observer.OnInfo(InfoDebugOn)
			s.debugLine(cfg, "[MODE] Debug ON")
		} else {
			s.observer.OnInfo(InfoDebugOff)
		}
	}

	if cfg.Scanning == prev.Scanning {
		s.rejected.scan = false
	} else if !s.rejected.scan {
		if err := s.setScanning(cfg, cfg.Scanning); err != nil {
			s.rejected.scan = true
			errs = append(errs, err)
		} else {
			s.rejected.scan = false
		}
	}
	s.applied.Timing = cfg.Timing
	s.applied.SilenceTimeout = cfg.SilenceTimeout
	return errors.Join(errs...)
}

// switchBaud moves the link to cfg's speed. A frame cut short by the switch
// is garbage at the new speed and is dropped; the open record is kept and
// finalized by the silence timeout like any other.
func (s *Session) switchBaud(cfg Config) error {
	baud := cfg.BaudRate()
	if err := s.link.SetBaudRate(baud); err != nil {
		return fmt.Errorf("switch to %d baud: %w", baud, err)
	}
	s.classifier.Reset()
	s.applied.BaudIndex = cfg.BaudIndex
	msg := fmt.Sprintf("%s%d", infoBaudShift, baud)
	s.observer.OnInfo(msg)
	s.debugLine(cfg, "[BAUD] "+msg)
	return nil
}

func (s *Session) setScanning(cfg Config, on bool) error {
	frame, info, line := scanner.StopScanCmd, InfoStopped, "[SCAN] stop"
	if on {
		frame, info, line = scanner.StartScanCmd, InfoScanning, "[SCAN] start"
	}
	if err := s.send(scanner.WakeCmd); err != nil {
		return fmt.Errorf("wake module: %w", err)
	}
	s.clock.Sleep(CommandWakeDelay)
	if err := s.send(frame); err != nil {
		return fmt.Errorf("send %s: %w", strings.TrimPrefix(line, "[SCAN] "), err)
	}
	s.applied.Scanning = on
	s.observer.OnInfo(info)
	s.debugLine(cfg, line)
	return nil
}

// handleRecord types a finished record, then acknowledges it. The ack is
// sent even when typing failed so the module does not resend.
func (s *Session) handleRecord(rec scanner.Record) error {
	cfg := s.applied
	res := ScanResult{
		ID:         uuid.NewString(),
		Raw:        rec.Raw,
		Payload:    rec.Payload,
		Text:       string(rec.Payload),
		CodePoints: codepoint.Collect(rec.Payload),
		Reason:     rec.Reason,
		At:         rec.At,
	}
	s.observer.OnScanResult(res)

	if cfg.Debug {
		s.debugLine(cfg, decodeLine(res.CodePoints))
	}

	start := s.clock.Now()
	typeErr := s.typeRecord(res.CodePoints)
	res.EmitDuration = s.clock.Since(start)

	if cfg.Debug {
		tag := "[QR]"
		if rec.Reason == scanner.FinalizedByTimeout {
			tag = "[QRp]"
		}
		s.debugLine(cfg, tag+payloadHex(rec.Payload))
	}

	ackErr := s.send(scanner.AckCmd)
	if ackErr != nil {
		ackErr = fmt.Errorf("ack scan %s: %w", res.ID, ackErr)
	}
	s.stats.Record(res, typeErr != nil)

	err := errors.Join(typeErr, ackErr)
	if c, ok := s.observer.(CompletionObserver); ok {
		c.OnScanComplete(res, err)
	}
	s.updateStatus(func(st *Status) {
		st.LastScanID = res.ID
		st.LastScanText = res.Text
		if err != nil {
			st.LastError = err.Error()
		}
	})
	return err
}

// typeRecord plays one code point at a time so no two sequences overlap,
// then presses Enter.
func (s *Session) typeRecord(cps []rune) error {
	for _, cp := range cps {
		if _, err := s.emitter.Type(s.encoder, cp); err != nil {
			return fmt.Errorf("type %U: %w", cp, err)
		}
	}
	if err := s.emitter.Emit(s.encoder.AppendEnter(nil)); err != nil {
		return fmt.Errorf("type enter: %w", err)
	}
	return nil
}

// debugLine types line and an Enter through the ASCII table when debug mode
// is on, and reports it to the observer.
func (s *Session) debugLine(cfg Config, line string) {
	if !cfg.Debug {
		return
	}
	s.observer.OnDebugLine(line)
	actions := s.encoder.AppendString(nil, line)
	actions = s.encoder.AppendEnter(actions)
	if err := s.emitter.Emit(actions); err != nil {
		logf("type debug line: %v", err)
	}
}

func (s *Session) send(frame []byte) error {
	n, err := s.link.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("short write %d/%d", n, len(frame))
	}
	return nil
}

// Run polls until ctx is done, taking a fresh mode snapshot every step.
// Errors from a step are logged and the loop continues.
func (s *Session) Run(ctx context.Context, modes *Modes, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if err := s.Poll(modes.Snapshot()); err != nil {
				logf("poll: %v", err)
			}
		}
	}
}

// decodeLine renders code points as "[DECODE] 48 69".
func decodeLine(cps []rune) string {
	var b strings.Builder
	b.WriteString("[DECODE]")
	for _, cp := range cps {
		fmt.Fprintf(&b, " %x", cp)
	}
	return b.String()
}

// payloadHex renders bytes as "48 69".
func payloadHex(p []byte) string {
	return fmt.Sprintf("% X", p)
}
