package client

import (
	"io"
	"strconv"
	"strings"

	"github.com/WhileEndless/go-httpget/pkg/conn"
	"github.com/WhileEndless/go-httpget/pkg/errors"
)

// bodyReader is the body framing strategy of a response, chosen once when
// the headers have been parsed.
type bodyReader interface {
	read(c *conn.Conn, resp *Response, p []byte) (int, error)
}

// fixedBody reads up to resp.ContentLength bytes, or until the peer shuts
// down when the length is unknown. Each read returns whatever is available
// after at most one socket read.
type fixedBody struct{}

func (fixedBody) read(c *conn.Conn, resp *Response, p []byte) (int, error) {
	if resp.ContentLength >= 0 {
		remaining := resp.ContentLength - resp.BodyRead
		if remaining <= 0 {
			return 0, io.EOF
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := c.ReceiveSome(p)
	resp.BodyRead += int64(n)
	if err != nil {
		return n, err
	}
	if n == 0 {
		if resp.ContentLength >= 0 {
			return 0, c.Fail(errors.NewProtocolErrorf(
				"connection closed after %d of %d body bytes", resp.BodyRead, resp.ContentLength))
		}
		return 0, io.EOF
	}
	return n, nil
}

// chunkedBody decodes chunked transfer coding. remaining is the number of
// data bytes left in the current chunk; done is set by the zero-size chunk.
type chunkedBody struct {
	remaining int64
	done      bool
}

func (b *chunkedBody) read(c *conn.Conn, resp *Response, p []byte) (int, error) {
	if b.done {
		return 0, io.EOF
	}
	if b.remaining == 0 {
		if err := b.nextChunk(c); err != nil {
			return 0, err
		}
		if b.done {
			return 0, io.EOF
		}
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}

	n, err := c.Receive(p)
	b.remaining -= int64(n)
	resp.BodyRead += int64(n)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, c.Fail(errors.NewProtocolErrorf(
			"connection closed inside chunk, %d bytes missing", b.remaining))
	}
	return n, nil
}

// nextChunk consumes the CRLF after a finished chunk and loads the next
// chunk size.
func (b *chunkedBody) nextChunk(c *conn.Conn) error {
	var crlf [2]byte
	n, err := c.Receive(crlf[:])
	if err != nil {
		return err
	}
	if n != 2 || crlf != [2]byte{'\r', '\n'} {
		return c.Fail(errors.NewProtocolError("invalid chunk terminator", nil))
	}
	return b.loadSize(c)
}

func (b *chunkedBody) loadSize(c *conn.Conn) error {
	line, err := c.ReceiveLine()
	if err != nil {
		return err
	}
	size, err := parseChunkSize(line)
	if err != nil {
		return c.Fail(err)
	}
	b.remaining = size
	b.done = size == 0
	return nil
}

// parseChunkSize parses a hexadecimal chunk-size line, ignoring chunk
// extensions.
func parseChunkSize(line string) (int64, error) {
	s, _, _ := strings.Cut(line, ";")
	s = strings.TrimSpace(s)
	if s == "" || !isHexDigit(s[0]) {
		return 0, errors.NewProtocolErrorf("invalid chunk size: %q", line)
	}
	size, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, errors.NewProtocolErrorf("chunk size too large: %q", line)
		}
		return 0, errors.NewProtocolErrorf("invalid chunk size: %q", line)
	}
	return size, nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
