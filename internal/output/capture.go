package output

import (
	"io"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// Stream names one of a child's output pipes.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// StderrTag prefixes every line captured from stderr so the two streams can
// share one Buffer.
const StderrTag = "[stderr]"

const (
	// chunkSize is the read size used against the pipe.
	chunkSize = 4 * 1024

	// maxPendingLine bounds a line that never sees a newline; once reached
	// the partial line is recorded as-is.
	maxPendingLine = 64 * 1024
)

// CaptureConfig configures a Capture.
type CaptureConfig struct {
	// Stream identifies the pipe for hooks and metrics.
	Stream Stream

	// Tag, when set, is prefixed (followed by a space) to every line.
	Tag string

	// OnLine is called after each line is appended. Optional.
	OnLine func(stream Stream, line string)
}

// Capture reads a child's output pipe and appends decoded lines to a Buffer.
//
// Reads are done in chunks. A multi-byte UTF-8 sequence split across two
// reads is carried over and completed on the next read, and a line split
// across reads is recorded once when its newline arrives. Both EOF and a
// read error end the capture silently.
//
// Lifecycle:
//
//  1. c := NewCapture(pipe, buf, cfg)
//  2. go c.Run()
//  3. <-c.Done()   // pipe reached EOF or failed
type Capture struct {
	reader io.Reader
	dest   *Buffer
	stream Stream
	tag    string
	onLine func(Stream, string)

	done chan struct{}

	// Decoder state, owned by the Run goroutine.
	carry   []byte          // incomplete trailing UTF-8 sequence
	pending strings.Builder // decoded text after the last newline

	// Stats (atomic for thread-safety)
	bytesRead atomic.Int64
	linesRead atomic.Int64
}

// NewCapture creates a capture from r into dest.
func NewCapture(r io.Reader, dest *Buffer, cfg CaptureConfig) *Capture {
	return &Capture{
		reader: r,
		dest:   dest,
		stream: cfg.Stream,
		tag:    cfg.Tag,
		onLine: cfg.OnLine,
		done:   make(chan struct{}),
	}
}

// Run reads until EOF or a read error. It must run in its own goroutine and
// closes Done() on return.
func (c *Capture) Run() {
	defer close(c.done)

	buf := make([]byte, chunkSize)
	for {
		n, err := c.reader.Read(buf)
		if n > 0 {
			c.bytesRead.Add(int64(n))
			c.feed(buf[:n])
		}
		if err != nil {
			// io.EOF, os.ErrClosed and friends all mean the stream is over.
			c.flush()
			return
		}
	}
}

// Done is closed once Run has returned.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// Stream returns the stream this capture reads.
func (c *Capture) Stream() Stream {
	return c.stream
}

// Stats returns (bytesRead, linesRead).
func (c *Capture) Stats() (bytesRead, linesRead int64) {
	return c.bytesRead.Load(), c.linesRead.Load()
}

// feed decodes one chunk, holding back an incomplete trailing rune.
func (c *Capture) feed(p []byte) {
	data := p
	if len(c.carry) > 0 {
		data = append(c.carry, p...)
		c.carry = nil
	}

	complete, rest := splitIncompleteRune(data)
	if len(rest) > 0 {
		// buf is reused by the next Read, so copy.
		c.carry = append([]byte(nil), rest...)
	}
	c.write(decode(complete))
}

// write emits every completed line of text and keeps the remainder pending.
func (c *Capture) write(text string) {
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		c.pending.WriteString(text[:i])
		c.emit(c.pending.String())
		c.pending.Reset()
		text = text[i+1:]
	}

	c.pending.WriteString(text)
	if c.pending.Len() >= maxPendingLine {
		c.emit(c.pending.String())
		c.pending.Reset()
	}
}

// flush records whatever is left at end of stream.
func (c *Capture) flush() {
	if len(c.carry) > 0 {
		c.pending.WriteString(decode(c.carry))
		c.carry = nil
	}
	if c.pending.Len() > 0 {
		c.emit(c.pending.String())
		c.pending.Reset()
	}
}

// emit appends one line to the destination buffer.
func (c *Capture) emit(line string) {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	if c.tag != "" {
		line = c.tag + " " + line
	}

	c.dest.Append(line)
	c.linesRead.Add(1)
	if c.onLine != nil {
		c.onLine(c.stream, line)
	}
}

// splitIncompleteRune splits p before a trailing UTF-8 sequence that is
// valid so far but not yet complete.
func splitIncompleteRune(p []byte) (complete, rest []byte) {
	for i := 1; i < utf8.UTFMax && i <= len(p); i++ {
		b := p[len(p)-i]
		if b < utf8.RuneSelf {
			return p, nil
		}
		if utf8.RuneStart(b) {
			if utf8.FullRune(p[len(p)-i:]) {
				return p, nil
			}
			return p[:len(p)-i], p[len(p)-i:]
		}
	}
	return p, nil
}

// decode converts bytes to a string, replacing invalid sequences with U+FFFD.
func decode(p []byte) string {
	if utf8.Valid(p) {
		return string(p)
	}
	return strings.ToValidUTF8(string(p), string(utf8.RuneError))
}
