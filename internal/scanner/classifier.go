package scanner

type classifierState int

const (
	stateData classifierState = iota
	stateHeader
	stateDiscard
)

// Classifier separates the module's control frames from payload bytes.
//
// It is an incremental state machine: a header marker at the end of one read
// and its partner at the start of the next are still recognised, and a
// control frame split across reads keeps being discarded until its declared
// length has been consumed. Nothing in the classifier ever blocks.
type Classifier struct {
	state   classifierState
	marker  byte
	pending int // bytes of the current control frame still to discard

	// OnControlFrame, if set, is called when a control frame header is
	// recognised.
	OnControlFrame func(Signature)

	discarded int
}

// NewClassifier returns a classifier positioned at the start of the stream.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Feed classifies p and appends the bytes that belong to payload data to dst,
// in their original order. It returns the extended slice.
func (c *Classifier) Feed(dst, p []byte) []byte {
	for _, b := range p {
		switch c.state {
		case stateDiscard:
			c.pending--
			c.discarded++
			if c.pending == 0 {
				c.state = stateData
			}

		case stateHeader:
			sig, ok := LookupSignature(c.marker, b)
			if !ok {
				// Unknown pair: both bytes are data, and the second one is
				// not looked at again as a marker.
				dst = append(dst, c.marker, b)
				c.state = stateData
				continue
			}
			c.discarded += 2
			if c.OnControlFrame != nil {
				c.OnControlFrame(sig)
			}
			c.pending = sig.Remaining()
			if c.pending > 0 {
				c.state = stateDiscard
			} else {
				c.state = stateData
			}

		default:
			if IsHeaderMarker(b) {
				c.marker = b
				c.state = stateHeader
				continue
			}
			dst = append(dst, b)
		}
	}
	return dst
}

// Pending reports the number of bytes the classifier is still holding back:
// a lone header marker counts as one, a partially received control frame
// counts the bytes still expected.
func (c *Classifier) Pending() int {
	switch c.state {
	case stateHeader:
		return 1
	case stateDiscard:
		return c.pending
	}
	return 0
}

// Discarded returns the total number of control-frame bytes dropped so far.
func (c *Classifier) Discarded() int { return c.discarded }

// Reset drops any partially classified frame.
func (c *Classifier) Reset() {
	c.state = stateData
	c.marker = 0
	c.pending = 0
}
