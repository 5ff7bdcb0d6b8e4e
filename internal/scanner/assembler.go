package scanner

import "time"

// DefaultSilenceTimeout is how long the link may stay quiet before a record
// without a terminator is finalized anyway.
const DefaultSilenceTimeout = 500 * time.Millisecond

// FinalizeReason tells how a record was completed.
type FinalizeReason int

const (
	// FinalizedByTerminator means a '\n' closed the record.
	FinalizedByTerminator FinalizeReason = iota
	// FinalizedByTimeout means the silence timeout closed the record.
	FinalizedByTimeout
)

func (r FinalizeReason) String() string {
	switch r {
	case FinalizedByTerminator:
		return "terminator"
	case FinalizedByTimeout:
		return "timeout"
	}
	return "unknown"
}

// Record is a finalized, sanitized scan payload. Raw holds the bytes as they
// were accumulated; Payload is Raw with the leading and trailing control
// characters removed.
type Record struct {
	Raw     []byte
	Payload []byte
	Reason  FinalizeReason
	At      time.Time
}

// Assembler accumulates payload bytes into scan records.
type Assembler struct {
	buf      []byte
	lastByte time.Time
	timeout  time.Duration
}

// NewAssembler returns an assembler that finalizes unterminated records after
// timeout of silence. A non-positive timeout selects DefaultSilenceTimeout.
func NewAssembler(timeout time.Duration) *Assembler {
	a := &Assembler{}
	a.SetTimeout(timeout)
	return a
}

// SetTimeout changes the silence timeout for subsequent checks.
func (a *Assembler) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultSilenceTimeout
	}
	a.timeout = timeout
}

// Timeout returns the silence timeout in use.
func (a *Assembler) Timeout() time.Duration { return a.timeout }

// Feed adds one byte received at now. When b terminates a non-empty record
// the finalized record is returned with ok set.
func (a *Assembler) Feed(b byte, now time.Time) (rec Record, ok bool) {
	switch b {
	case CarriageReturn:
		return Record{}, false
	case LineFeed:
		if len(a.buf) == 0 {
			return Record{}, false
		}
		return a.finalize(FinalizedByTerminator, now), true
	}
	a.buf = append(a.buf, b)
	a.lastByte = now
	return Record{}, false
}

// CheckTimeout finalizes the current record if it is non-empty and nothing
// has been appended for longer than the silence timeout.
func (a *Assembler) CheckTimeout(now time.Time) (rec Record, ok bool) {
	if len(a.buf) == 0 {
		return Record{}, false
	}
	if now.Sub(a.lastByte) <= a.timeout {
		return Record{}, false
	}
	return a.finalize(FinalizedByTimeout, now), true
}

// Len returns the number of bytes accumulated in the open record.
func (a *Assembler) Len() int { return len(a.buf) }

// Reset discards the open record.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
}

func (a *Assembler) finalize(reason FinalizeReason, now time.Time) Record {
	raw := make([]byte, len(a.buf))
	copy(raw, a.buf)
	a.buf = a.buf[:0]
	return Record{
		Raw:     raw,
		Payload: Sanitize(raw),
		Reason:  reason,
		At:      now,
	}
}

// Sanitize strips leading and trailing bytes below 0x20, keeping tabs. The
// returned slice aliases raw.
func Sanitize(raw []byte) []byte {
	start, end := 0, len(raw)
	for start < end && isStrippable(raw[start]) {
		start++
	}
	for end > start && isStrippable(raw[end-1]) {
		end--
	}
	return raw[start:end]
}

func isStrippable(b byte) bool {
	return b < 0x20 && b != '\t'
}
