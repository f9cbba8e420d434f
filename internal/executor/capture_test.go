package executor

import (
	"strings"
	"testing"
)

func TestCaptureCrossesOnce(t *testing.T) {
	c := newCapture(5)
	var overflows int
	c.onOverflow = func(Stream) { overflows++ }
	w := c.writer(Stdout)

	for _, chunk := range []string{"abc", "def", "ghi"} {
		n, err := w.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) = %d, %v", chunk, n, err)
		}
	}

	if overflows != 1 {
		t.Errorf("overflow fired %d times, want 1", overflows)
	}
	if c.stdout.Len() != 6 {
		t.Errorf("buffer holds %d bytes, want limit+1", c.stdout.Len())
	}
	stdout, stderr := c.strings()
	if stdout != "abcde" || stderr != "" {
		t.Errorf("strings() = %q, %q", stdout, stderr)
	}
}

func TestCaptureExactLimitIsNotOverflow(t *testing.T) {
	c := newCapture(4)
	c.onOverflow = func(Stream) { t.Error("unexpected overflow") }
	c.writer(Stderr).Write([]byte("abcd"))

	if _, stderr := c.strings(); stderr != "abcd" {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestCaptureStreamsAreIndependent(t *testing.T) {
	c := newCapture(3)
	var crossed []Stream
	c.onOverflow = func(s Stream) { crossed = append(crossed, s) }

	c.writer(Stdout).Write([]byte("1234"))
	c.writer(Stderr).Write([]byte("12"))

	if len(crossed) != 1 || crossed[0] != Stdout {
		t.Errorf("crossed = %v, want [stdout]", crossed)
	}
}

func TestCaptureChunkHandlerStopsAtCap(t *testing.T) {
	c := newCapture(5)
	var got strings.Builder
	c.onChunk = func(_ Stream, b []byte) { got.Write(b) }
	w := c.writer(Stdout)

	w.Write([]byte("abc"))
	w.Write([]byte("defg"))
	w.Write([]byte("hij"))

	if got.String() != "abcde" {
		t.Errorf("streamed %q, want %q", got.String(), "abcde")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "abc", 10, "abc"},
		{"exact", "abc", 3, "abc"},
		{"cut", "abcdef", 4, "abcd"},
		{"multibyte boundary", "héllo", 2, "h"},
		{"multibyte whole", "héllo", 3, "hé"},
		{"zero", "abc", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate([]byte(tt.in), tt.limit); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}
