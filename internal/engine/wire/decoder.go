// Package wire turns the raw byte stream of an assistant reply into an
// ordered sequence of text deltas. Upstreams disagree about framing, so the
// decoder auto-detects, line by line: plain text, "data: "-prefixed events
// (JSON or raw), and "<digits>:"-prefixed segments.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/educhat-backend/internal/platform/logger"
)

// ErrTruncated reports an event-framed stream that ended without its
// termination sentinel: the producer died mid-reply.
var ErrTruncated = errors.New("event stream ended without terminator")

type mode int

const (
	modeClassify mode = iota
	modePlain
	modeData
	modeNumeric
)

const dataPrefix = "data:"

// A numeric prefix longer than this is just text that happens to start
// with digits.
const maxNumericPrefixDigits = 10

// Decoder is stateful across Write calls: it carries partial lines and
// partial UTF-8 sequences over chunk boundaries, so the emitted deltas
// depend only on the concatenated byte stream, never on how it was
// chunked. It does no I/O.
type Decoder struct {
	log *logger.Logger

	mode mode
	line []byte // current line while classifying or in data mode
	text utf8Buffer

	// framed is set after a data or numeric segment; a blank line in that
	// context is event-separator framing, not content.
	framed bool

	done       bool
	terminated bool // saw the [DONE] sentinel
	sawEvent   bool // at least one data-framed line was decoded
	failure    error
}

func NewDecoder(log *logger.Logger) *Decoder {
	return &Decoder{log: log.With("component", "WireDecoder")}
}

// Write consumes the next chunk and returns the deltas it completes, in
// order. A chunk may yield zero deltas (partial line, partial rune, or
// framing only).
func (d *Decoder) Write(p []byte) []string {
	if d.done {
		return nil
	}
	var out []string
	i := 0
	for i < len(p) && !d.done {
		switch d.mode {
		case modeClassify:
			b := p[i]
			i++
			d.line = append(d.line, b)
			if b == '\n' {
				if d.framed && isBlankLine(d.line) {
					// Separator between framed events; not content.
					d.line = nil
					continue
				}
				// Line ended while still ambiguous ("dat\n", "123\n"):
				// it is plain text, newline included.
				d.framed = false
				out = appendDelta(out, d.text.write(d.line))
				d.line = nil
				continue
			}
			switch c := classifyPartial(d.line); c {
			case classAmbiguous:
			case classData:
				d.mode = modeData
			case classNumeric:
				// Prefix bytes are framing; drop them.
				d.mode = modeNumeric
				d.line = nil
			default:
				d.mode = modePlain
				d.framed = false
				out = appendDelta(out, d.text.write(d.line))
				d.line = nil
			}

		case modePlain:
			j := bytes.IndexByte(p[i:], '\n')
			if j < 0 {
				out = appendDelta(out, d.text.write(p[i:]))
				i = len(p)
				continue
			}
			// Verbatim through the newline, then reclassify.
			out = appendDelta(out, d.text.write(p[i:i+j+1]))
			i += j + 1
			d.mode = modeClassify

		case modeData:
			j := bytes.IndexByte(p[i:], '\n')
			if j < 0 {
				d.line = append(d.line, p[i:]...)
				i = len(p)
				continue
			}
			d.line = append(d.line, p[i:i+j]...)
			i += j + 1
			out = appendDelta(out, d.decodeDataLine(d.line))
			d.line = nil
			d.framed = true
			d.mode = modeClassify

		case modeNumeric:
			j := bytes.IndexByte(p[i:], '\n')
			if j < 0 {
				out = appendDelta(out, d.text.write(p[i:]))
				i = len(p)
				continue
			}
			// The framing newline is consumed, not emitted.
			out = appendDelta(out, d.text.write(p[i:i+j]))
			out = appendDelta(out, d.text.drain())
			i += j + 1
			d.framed = true
			d.mode = modeClassify
		}
	}
	return out
}

// Flush ends the stream: the trailing unterminated line (if any) is decoded,
// and any bytes of an incomplete UTF-8 sequence are dropped rather than
// emitted as replacement characters. A flushed decoder accepts no more input.
func (d *Decoder) Flush() []string {
	if d.done {
		return nil
	}
	var out []string
	switch d.mode {
	case modeClassify:
		// Never resolved; a short ambiguous tail is plain text, unless it
		// is only separator framing after an event.
		if !(d.framed && isSeparatorTail(d.line)) {
			out = appendDelta(out, d.text.write(d.line))
		}
	case modeData:
		out = appendDelta(out, d.decodeDataLine(d.line))
	}
	d.line = nil
	out = appendDelta(out, d.text.drain())
	if dropped := d.text.discard(); dropped > 0 {
		d.log.Debug("Dropped incomplete trailing UTF-8 sequence", "bytes", dropped)
	}
	d.done = true
	return out
}

// Done reports whether a termination sentinel was seen or Flush was called.
func (d *Decoder) Done() bool { return d.done }

// Err reports a failure carried inside the stream: an upstream error event,
// or an event-framed stream that ended without the [DONE] sentinel. Only
// meaningful once the stream has ended (sentinel seen or Flush called).
// Plain-text streams have no terminator and never report truncation.
func (d *Decoder) Err() error {
	if d.failure != nil {
		return d.failure
	}
	if d.done && d.sawEvent && !d.terminated {
		return ErrTruncated
	}
	return nil
}

func isBlankLine(line []byte) bool {
	return len(line) == 1 && line[0] == '\n' ||
		len(line) == 2 && line[0] == '\r' && line[1] == '\n'
}

// isSeparatorTail reports whether an unterminated trailing line is nothing
// but the head of a separator ("" or "\r").
func isSeparatorTail(line []byte) bool {
	return len(line) == 0 || len(line) == 1 && line[0] == '\r'
}

type class int

const (
	classAmbiguous class = iota
	classPlain
	classData
	classNumeric
)

// classifyPartial inspects the bytes of a line seen so far. Ambiguous means
// the line could still grow into a recognized prefix, so nothing may be
// emitted yet; that is what keeps the decoder chunking-invariant.
func classifyPartial(line []byte) class {
	if len(line) == 0 {
		return classAmbiguous
	}
	s := string(line)
	if s == "\r" {
		// Could be the head of a \r\n separator.
		return classAmbiguous
	}
	if strings.HasPrefix(s, dataPrefix) {
		return classData
	}
	if strings.HasPrefix(dataPrefix, s) {
		return classAmbiguous
	}

	k := 0
	for k < len(line) && line[k] >= '0' && line[k] <= '9' {
		k++
	}
	if k > 0 && k <= maxNumericPrefixDigits {
		if k == len(line) {
			return classAmbiguous
		}
		if line[k] == ':' {
			return classNumeric
		}
	}
	return classPlain
}

// decodeDataLine handles one "data:" line. A JSON payload contributes its
// delta (or full-text) field; "[DONE]" terminates the stream; an error event
// records the failure; anything that fails to parse degrades to literal text
// so content is never lost.
func (d *Decoder) decodeDataLine(line []byte) string {
	d.sawEvent = true
	payload := strings.TrimPrefix(string(line), dataPrefix)
	payload = strings.TrimPrefix(payload, " ")

	if strings.TrimSpace(payload) == "[DONE]" {
		d.done = true
		d.terminated = true
		return ""
	}
	if strings.TrimSpace(payload) == "" {
		return ""
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		// Not an error: some upstreams put raw text after the prefix.
		d.log.Debug("Unparseable data line, passing through as text", "error", err)
		return payload
	}

	typ, _ := obj["type"].(string)
	if typ == "error" {
		msg, _ := obj["message"].(string)
		if msg == "" {
			msg = "unspecified upstream error"
		}
		d.failure = fmt.Errorf("upstream error event: %s", msg)
		d.done = true
		return ""
	}
	if delta, ok := obj["delta"].(string); ok {
		if typ == "" || typ == "text-delta" {
			return delta
		}
		// Tagged but not assistant text (reasoning, tool noise): skip.
		return ""
	}
	if text, ok := obj["text"].(string); ok && (typ == "" || typ == "text" || typ == "text-delta") {
		return text
	}
	// Valid JSON with no recognized text field (finish/message envelopes):
	// contributes nothing.
	return ""
}

func appendDelta(out []string, delta string) []string {
	if delta == "" {
		return out
	}
	return append(out, delta)
}

// utf8Buffer emits only whole UTF-8 sequences, holding back the trailing
// bytes of a rune split across chunks.
type utf8Buffer struct {
	buf []byte
}

func (u *utf8Buffer) write(p []byte) string {
	if len(p) == 0 && len(u.buf) == 0 {
		return ""
	}
	u.buf = append(u.buf, p...)

	validLen := 0
	for i := 0; i < len(u.buf); {
		r, size := utf8.DecodeRune(u.buf[i:])
		if r == utf8.RuneError && size == 1 {
			if len(u.buf)-i < utf8.UTFMax {
				// Possibly the head of a rune still in flight.
				break
			}
			// Genuinely invalid byte; pass it through rather than stall.
			i++
			validLen = i
		} else {
			i += size
			validLen = i
		}
	}

	if validLen == 0 {
		return ""
	}
	out := string(u.buf[:validLen])
	u.buf = u.buf[validLen:]
	return out
}

// drain force-emits complete runes at a segment boundary.
func (u *utf8Buffer) drain() string {
	return u.write(nil)
}

// discard drops whatever partial sequence remains and reports its length.
func (u *utf8Buffer) discard() int {
	n := len(u.buf)
	u.buf = nil
	return n
}
