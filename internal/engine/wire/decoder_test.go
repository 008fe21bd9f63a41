package wire

import (
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/educhat-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func decodeAll(t *testing.T, chunks ...[]byte) (string, *Decoder) {
	t.Helper()
	d := NewDecoder(mustTestLogger(t))
	var sb strings.Builder
	for _, c := range chunks {
		for _, delta := range d.Write(c) {
			sb.WriteString(delta)
		}
	}
	for _, delta := range d.Flush() {
		sb.WriteString(delta)
	}
	return sb.String(), d
}

func TestDecoderFormatTolerance(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "Hello", "Hello"},
		{"plain text keeps newlines", "line one\nline two\n", "line one\nline two\n"},
		{"data json delta", "data: {\"type\":\"text-delta\",\"delta\":\"Hi\"}\n", "Hi"},
		{"data done sentinel", "data: [DONE]\n", ""},
		{"numeric prefix", "0:Hello\n", "Hello"},
		{"malformed data json", "data: {not json}\n", "{not json}"},
		{"untyped delta", "data: {\"delta\":\"ok\"}\n", "ok"},
		{"full text field", "data: {\"type\":\"text\",\"text\":\"abc\"}\n", "abc"},
		{"reasoning delta skipped", "data: {\"type\":\"reasoning-delta\",\"delta\":\"thinking\"}\n", ""},
		{"finish envelope skipped", "data: {\"type\":\"finish\"}\n", ""},
		{"ambiguous short line is plain", "dat\n", "dat\n"},
		{"long digit run is plain", "12345678901: hi", "12345678901: hi"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := decodeAll(t, []byte(tc.input))
			if got != tc.want {
				t.Fatalf("decode(%q): want=%q got=%q", tc.input, tc.want, got)
			}
		})
	}
}

func TestDecoderDoneStopsOutput(t *testing.T) {
	d := NewDecoder(mustTestLogger(t))
	var sb strings.Builder
	for _, delta := range d.Write([]byte("data: {\"delta\":\"first\"}\ndata: [DONE]\ndata: {\"delta\":\"late\"}\n")) {
		sb.WriteString(delta)
	}
	if !d.Done() {
		t.Fatalf("decoder should report done after [DONE]")
	}
	if sb.String() != "first" {
		t.Fatalf("deltas after [DONE] must be dropped: got=%q", sb.String())
	}
	if out := d.Write([]byte("more")); out != nil {
		t.Fatalf("write after done produced deltas: %v", out)
	}
}

// Every partition of the same byte stream must concatenate to the same
// output.
func TestDecoderChunkingInvariance(t *testing.T) {
	inputs := []string{
		"Hello, world",
		"data: {\"type\":\"text-delta\",\"delta\":\"He\"}\ndata: {\"type\":\"text-delta\",\"delta\":\"llo\"}\ndata: [DONE]\n",
		"0:first segment\n1:second segment\n",
		"plain line\ndata: {\"delta\":\"mixed\"}\ntrailing",
		"café naïve 你好 \U0001f600 end",
		"data: {\"type\":\"text-delta\",\"delta\":\"Hi\"}\n\ndata: {\"type\":\"text-delta\",\"delta\":\" there\"}\n\ndata: [DONE]\n\n",
		"data: {\"delta\":\"a\"}\r\n\r\ndata: [DONE]\r\n\r\n",
	}
	for _, input := range inputs {
		want, _ := decodeAll(t, []byte(input))
		raw := []byte(input)
		for size := 1; size <= 7; size++ {
			var chunks [][]byte
			for i := 0; i < len(raw); i += size {
				end := i + size
				if end > len(raw) {
					end = len(raw)
				}
				chunks = append(chunks, raw[i:end])
			}
			got, _ := decodeAll(t, chunks...)
			if got != want {
				t.Fatalf("chunk size %d changed output for %q: want=%q got=%q", size, input, want, got)
			}
		}
	}
}

func TestDecoderSplitRuneAcrossChunks(t *testing.T) {
	raw := []byte("你好") // 6 bytes, two CJK runes
	d := NewDecoder(mustTestLogger(t))

	if out := d.Write(raw[:2]); len(out) != 0 {
		t.Fatalf("partial rune must be held back, got %v", out)
	}
	out := d.Write(raw[2:])
	var sb strings.Builder
	for _, delta := range out {
		sb.WriteString(delta)
	}
	for _, delta := range d.Flush() {
		sb.WriteString(delta)
	}
	if sb.String() != "你好" {
		t.Fatalf("split rune reassembly: want=%q got=%q", "你好", sb.String())
	}
}

func TestDecoderFlushDropsIncompleteRune(t *testing.T) {
	// First two bytes of a three-byte rune, never completed.
	got, d := decodeAll(t, []byte("ok"), []byte{0xe4, 0xbd})
	if got != "ok" {
		t.Fatalf("incomplete trailing rune must be dropped, not replaced: got=%q", got)
	}
	if !d.Done() {
		t.Fatalf("decoder should be done after flush")
	}
}

// Server-side replies frame each event as "data: <json>\n\n"; the blank
// separator line must not leak into the transcript as a newline delta.
func TestDecoderBlankSeparatorBetweenEvents(t *testing.T) {
	got, _ := decodeAll(t,
		[]byte("data: {\"type\":\"text-delta\",\"delta\":\"Hi\"}\n\n"),
		[]byte("data: {\"type\":\"text-delta\",\"delta\":\" there\"}\n\n"),
		[]byte("data: [DONE]\n\n"),
	)
	if got != "Hi there" {
		t.Fatalf("separator framing leaked into content: want=%q got=%q", "Hi there", got)
	}
}

func TestDecoderBlankSeparatorCRLF(t *testing.T) {
	got, _ := decodeAll(t,
		[]byte("data: {\"delta\":\"Hi\"}\r\n\r\ndata: {\"delta\":\" there\"}\r\n\r\ndata: [DONE]\r\n\r\n"),
	)
	if got != "Hi there" {
		t.Fatalf("CRLF separator framing leaked: want=%q got=%q", "Hi there", got)
	}
}

func TestDecoderBlankLinePreservedInPlainText(t *testing.T) {
	got, _ := decodeAll(t, []byte("para one\n\npara two\n"))
	if got != "para one\n\npara two\n" {
		t.Fatalf("plain-text blank line must survive: got=%q", got)
	}
}

func TestDecoderErrorEventSurfacesFailure(t *testing.T) {
	d := NewDecoder(mustTestLogger(t))
	var sb strings.Builder
	for _, delta := range d.Write([]byte("data: {\"delta\":\"par\"}\n\ndata: {\"type\":\"error\",\"message\":\"stream failed\"}\n\n")) {
		sb.WriteString(delta)
	}
	for _, delta := range d.Flush() {
		sb.WriteString(delta)
	}
	if sb.String() != "par" {
		t.Fatalf("error event must not contribute content: got=%q", sb.String())
	}
	if !d.Done() {
		t.Fatalf("error event should end the stream")
	}
	err := d.Err()
	if err == nil || !strings.Contains(err.Error(), "stream failed") {
		t.Fatalf("error event must surface as a failure, got %v", err)
	}
}

func TestDecoderTruncatedEventStream(t *testing.T) {
	got, d := decodeAll(t, []byte("data: {\"delta\":\"partial\"}\n"))
	if got != "partial" {
		t.Fatalf("delta before the cut must still be emitted: got=%q", got)
	}
	if err := d.Err(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("event stream ending without [DONE] must report truncation, got %v", err)
	}
}

func TestDecoderPlainStreamNeverTruncated(t *testing.T) {
	_, d := decodeAll(t, []byte("just text, no framing"))
	if err := d.Err(); err != nil {
		t.Fatalf("plain-text stream has no terminator to miss, got %v", err)
	}
}

func TestDecoderTerminatedStreamHasNoError(t *testing.T) {
	_, d := decodeAll(t, []byte("data: {\"delta\":\"ok\"}\n\ndata: [DONE]\n\n"))
	if err := d.Err(); err != nil {
		t.Fatalf("terminated stream must report no error, got %v", err)
	}
}

func TestDecoderDataLineSplitMidPrefix(t *testing.T) {
	got, _ := decodeAll(t,
		[]byte("da"),
		[]byte("ta: {\"type\":\"text-del"),
		[]byte("ta\",\"delta\":\"Hi\"}\n"),
	)
	if got != "Hi" {
		t.Fatalf("prefix split across chunks: want=%q got=%q", "Hi", got)
	}
}
