// Package codepoint decodes scan payloads as UTF-8.
//
// The decoder is deliberately forgiving: scans must always type something, so
// malformed input is skipped a byte at a time instead of failing the record.
// It does not use utf8.DecodeRune because that substitutes RuneError for bad
// input, and a U+FFFD would be typed through the hex-input path.
package codepoint

import (
	"iter"
	"unicode/utf8"
)

// Decoder walks a byte slice once, yielding Unicode scalar values. It is not
// restartable: once Next reports false it keeps reporting false.
type Decoder struct {
	buf     []byte
	pos     int
	skipped int
}

// NewDecoder returns a decoder positioned at the start of p.
func NewDecoder(p []byte) *Decoder {
	return &Decoder{buf: p}
}

// Next returns the next code point. ok is false once the input is exhausted
// or only a truncated multi-byte sequence remains.
func (d *Decoder) Next() (r rune, ok bool) {
	for d.pos < len(d.buf) {
		lead := d.buf[d.pos]
		size, init := leadInfo(lead)
		if size == 0 {
			// not a lead byte
			d.pos++
			d.skipped++
			continue
		}
		r = init
		valid := true
		for i := 1; i < size; i++ {
			if d.pos+i >= len(d.buf) {
				// truncated tail: stop without emitting a partial code point
				d.skipped += len(d.buf) - d.pos
				d.pos = len(d.buf)
				return 0, false
			}
			c := d.buf[d.pos+i]
			if c&0xC0 != 0x80 {
				valid = false
				break
			}
			r = r<<6 | rune(c&0x3F)
		}
		if !valid || r > utf8.MaxRune || isSurrogate(r) {
			// Drop only the lead byte; whatever followed is decoded afresh.
			d.pos++
			d.skipped++
			continue
		}

		d.pos += size
		return r, true
	}
	return 0, false
}

// Skipped returns the number of input bytes that did not contribute to a
// code point so far.
func (d *Decoder) Skipped() int { return d.skipped }

// All returns the remaining code points as a sequence. Ranging over it
// consumes the decoder.
func (d *Decoder) All() iter.Seq[rune] {
	return func(yield func(rune) bool) {
		for {
			r, ok := d.Next()
			if !ok || !yield(r) {
				return
			}
		}
	}
}

// Decode returns a lazy sequence of the code points in p. Each range over the
// returned sequence starts again from the beginning of p.
func Decode(p []byte) iter.Seq[rune] {
	return func(yield func(rune) bool) {
		NewDecoder(p).All()(yield)
	}
}

// Collect decodes p fully.
func Collect(p []byte) []rune {
	var out []rune
	for r := range Decode(p) {
		out = append(out, r)
	}
	return out
}

// leadInfo returns the sequence length and the payload bits of a lead byte,
// or 0 if b cannot start a sequence.
func leadInfo(b byte) (int, rune) {
	switch {
	case b < 0x80:
		return 1, rune(b)
	case b&0xE0 == 0xC0:
		return 2, rune(b & 0x1F)
	case b&0xF0 == 0xE0:
		return 3, rune(b & 0x0F)
	case b&0xF8 == 0xF0:
		return 4, rune(b & 0x07)
	}
	return 0, 0
}

func isSurrogate(r rune) bool {
	return r >= 0xD800 && r <= 0xDFFF
}
