package executor

import (
	"bytes"
	"io"
	"sync"
	"unicode/utf8"
)

// Stream names an output stream of the child process.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// capture accumulates both output streams of one run, across all of its
// steps. Each buffer holds at most limit+1 bytes: enough to detect that the
// cap was exceeded without growing further.
type capture struct {
	limit      int
	onChunk    func(Stream, []byte)
	onOverflow func(Stream)

	mu       sync.Mutex
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	exceeded map[Stream]bool
}

func newCapture(limit int) *capture {
	return &capture{
		limit:    limit,
		exceeded: make(map[Stream]bool, 2),
	}
}

func (c *capture) writer(s Stream) io.Writer {
	return &streamWriter{c: c, stream: s}
}

// write records p and reports whether this chunk pushed the stream past the
// cap for the first time. It also returns the part of p that fit within the
// cap.
func (c *capture) write(s Stream, p []byte) (kept []byte, crossed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := &c.stdout
	if s == Stderr {
		buf = &c.stderr
	}

	if room := c.limit + 1 - buf.Len(); room > 0 {
		n := min(len(p), room)
		buf.Write(p[:n])
		if keep := c.limit - (buf.Len() - n); keep > 0 {
			kept = p[:min(n, keep)]
		}
	}

	if buf.Len() > c.limit && !c.exceeded[s] {
		c.exceeded[s] = true
		crossed = true
	}
	return kept, crossed
}

// strings returns both buffers truncated to the cap.
func (c *capture) strings() (stdout, stderr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return truncate(c.stdout.Bytes(), c.limit), truncate(c.stderr.Bytes(), c.limit)
}

type streamWriter struct {
	c      *capture
	stream Stream
}

func (w *streamWriter) Write(p []byte) (int, error) {
	kept, crossed := w.c.write(w.stream, p)
	if len(kept) > 0 && w.c.onChunk != nil {
		w.c.onChunk(w.stream, kept)
	}
	if crossed && w.c.onOverflow != nil {
		w.c.onOverflow(w.stream)
	}
	// Always claim the full write so the copier keeps draining the pipe
	// until the process group is gone.
	return len(p), nil
}

// truncate cuts b to at most limit bytes without splitting a UTF-8 sequence.
func truncate(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	cut := limit
	for cut > 0 && cut < len(b) && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut])
}
