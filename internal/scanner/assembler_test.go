package scanner

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

func feedAll(a *Assembler, p []byte, now time.Time) []Record {
	var out []Record
	for _, b := range p {
		if rec, ok := a.Feed(b, now); ok {
			out = append(out, rec)
		}
	}
	return out
}

func TestAssembler_Terminator(t *testing.T) {
	a := NewAssembler(0)
	recs := feedAll(a, []byte("Hello\r\nWorld\n"), t0)

	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if string(recs[0].Payload) != "Hello" {
		t.Errorf("first payload = %q, want %q", recs[0].Payload, "Hello")
	}
	if string(recs[1].Payload) != "World" {
		t.Errorf("second payload = %q, want %q", recs[1].Payload, "World")
	}
	for _, r := range recs {
		if r.Reason != FinalizedByTerminator {
			t.Errorf("reason = %v, want terminator", r.Reason)
		}
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d after terminator, want 0", a.Len())
	}
}

func TestAssembler_EmptyLinesIgnored(t *testing.T) {
	a := NewAssembler(0)
	if recs := feedAll(a, []byte("\n\r\n\n"), t0); len(recs) != 0 {
		t.Fatalf("got %d records from bare terminators, want 0", len(recs))
	}
}

func TestAssembler_AllControlRecordStillEmitted(t *testing.T) {
	a := NewAssembler(0)
	recs := feedAll(a, []byte{0x01, 0x02, 0x1B, '\n'}, t0)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if len(recs[0].Payload) != 0 {
		t.Errorf("payload = %q, want empty", recs[0].Payload)
	}
	if diff := cmp.Diff([]byte{0x01, 0x02, 0x1B}, recs[0].Raw); diff != "" {
		t.Errorf("raw mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembler_Timeout(t *testing.T) {
	a := NewAssembler(500 * time.Millisecond)
	feedAll(a, []byte("partial"), t0)

	if _, ok := a.CheckTimeout(t0.Add(500 * time.Millisecond)); ok {
		t.Fatal("finalized at exactly the timeout, want strictly greater")
	}

	rec, ok := a.CheckTimeout(t0.Add(600 * time.Millisecond))
	if !ok {
		t.Fatal("record not finalized after 600ms of silence")
	}
	if rec.Reason != FinalizedByTimeout {
		t.Errorf("reason = %v, want timeout", rec.Reason)
	}
	if string(rec.Payload) != "partial" {
		t.Errorf("payload = %q, want %q", rec.Payload, "partial")
	}

	// finalizing resets, so neither the timeout nor a late terminator fires again
	if _, ok := a.CheckTimeout(t0.Add(2 * time.Second)); ok {
		t.Error("timeout fired twice for the same record")
	}
	if _, ok := a.Feed('\n', t0.Add(2*time.Second)); ok {
		t.Error("terminator finalized an already finalized record")
	}
}

func TestAssembler_TimeoutMeasuredFromLastByte(t *testing.T) {
	a := NewAssembler(500 * time.Millisecond)
	a.Feed('a', t0)
	a.Feed('b', t0.Add(400*time.Millisecond))

	if _, ok := a.CheckTimeout(t0.Add(800 * time.Millisecond)); ok {
		t.Fatal("timeout measured from first byte, want last byte")
	}
	if _, ok := a.CheckTimeout(t0.Add(901 * time.Millisecond)); !ok {
		t.Fatal("record not finalized 501ms after last byte")
	}
}

func TestAssembler_CarriageReturnDoesNotRefreshTimestamp(t *testing.T) {
	a := NewAssembler(500 * time.Millisecond)
	a.Feed('a', t0)
	a.Feed('\r', t0.Add(400*time.Millisecond))
	if _, ok := a.CheckTimeout(t0.Add(501 * time.Millisecond)); !ok {
		t.Fatal("carriage return refreshed the silence timer")
	}
}

func TestAssembler_SetTimeout(t *testing.T) {
	a := NewAssembler(-1)
	if a.Timeout() != DefaultSilenceTimeout {
		t.Errorf("Timeout() = %v, want default %v", a.Timeout(), DefaultSilenceTimeout)
	}
	a.SetTimeout(50 * time.Millisecond)
	a.Feed('x', t0)
	if _, ok := a.CheckTimeout(t0.Add(60 * time.Millisecond)); !ok {
		t.Error("shorter timeout not applied")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   []byte
		want []byte
	}{
		{[]byte("abc"), []byte("abc")},
		{[]byte("\x02abc\x03"), []byte("abc")},
		{[]byte("\tabc\t"), []byte("\tabc\t")},
		{[]byte("\x00\x1F\tab\x01c\x1F"), []byte("\tab\x01c")},
		{[]byte(" abc "), []byte(" abc ")},
		{[]byte{0x01, 0x02}, []byte{}},
		{[]byte{}, []byte{}},
	}
	for _, tt := range tests {
		got := Sanitize(tt.in)
		if string(got) != string(tt.want) {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Bytes between terminators, minus edge controls, always come out unchanged.
func TestAssembler_RecordsMatchForwardedBytes(t *testing.T) {
	c := NewClassifier()
	a := NewAssembler(0)
	stream := append(append([]byte("\x02one\x03\n"), StartScanCmd...), []byte("two\tthree\r\n")...)

	recs := feedAll(a, c.Feed(nil, stream), t0)
	var got []string
	for _, r := range recs {
		got = append(got, string(r.Payload))
	}
	if diff := cmp.Diff([]string{"one", "two\tthree"}, got); diff != "" {
		t.Errorf("payloads mismatch (-want +got):\n%s", diff)
	}
}
