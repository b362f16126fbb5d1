package transport

import (
	"bytes"
	"fmt"
	"io"
)

// Terminator ends every line on the gateway's serial link.
const Terminator = "\r\n"

const readChunk = 256

// StreamError reports a read failure on the underlying stream. It is fatal
// for the connection.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// LineReader splits a polled byte stream into CR LF terminated lines.
//
// The reader must return (0, nil) when no data is currently available, which
// is what a serial port with a read timeout does. io.EOF and every other read
// error end the stream.
//
// A LineReader is not safe for concurrent use.
type LineReader struct {
	r   io.Reader
	buf bytes.Buffer
	err error
}

// NewLineReader creates a LineReader on r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r}
}

// ReadLine drains the bytes available on the stream and returns the next
// complete line without its terminator. ok is false when no complete line
// is buffered yet; the partial data is kept for the next call.
//
// Lines already buffered are still returned after the stream failed. Once
// none are left the stream error is returned on every call.
func (lr *LineReader) ReadLine() (line string, ok bool, err error) {
	if lr.err == nil {
		lr.err = lr.drain()
	}

	if line, ok := lr.next(); ok {
		return line, true, nil
	}
	if lr.err != nil {
		return "", false, lr.err
	}
	return "", false, nil
}

// Buffered returns the number of bytes waiting for a terminator.
func (lr *LineReader) Buffered() int {
	return lr.buf.Len()
}

func (lr *LineReader) drain() error {
	chunk := make([]byte, readChunk)
	for {
		n, err := lr.r.Read(chunk)
		lr.buf.Write(chunk[:n])
		if err != nil {
			return &StreamError{Err: err}
		}
		if n == 0 {
			return nil
		}
	}
}

func (lr *LineReader) next() (string, bool) {
	data := lr.buf.Bytes()
	i := bytes.Index(data, []byte(Terminator))
	if i < 0 {
		return "", false
	}
	line := string(data[:i])
	lr.buf.Next(i + len(Terminator))
	return line, true
}
