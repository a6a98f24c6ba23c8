// Package conn implements the buffered connection a request attempt runs
// over: one socket plus one fixed-size buffer shared by the send and receive
// paths.
//
// A Conn is a small state machine. Any I/O or framing failure moves it to
// StateFailed and records the first error; from then on every operation
// returns that error without touching the socket. Close moves it to
// StateClosed and releases both the socket and the buffer.
package conn

import (
	"bytes"
	"io"
	"net"
	"time"

	"github.com/WhileEndless/go-httpget/pkg/buffer"
	"github.com/WhileEndless/go-httpget/pkg/constants"
	"github.com/WhileEndless/go-httpget/pkg/errors"
)

// State is the lifecycle state of a Conn.
type State int

const (
	StateOpen State = iota
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DumpFunc receives a copy of every protocol line sent ("> ") or
// received ("< ").
type DumpFunc func(format string, args ...any)

// Options tunes a Conn.
type Options struct {
	BufferSize   int           // 0 selects constants.ConnBufferSize
	ReadTimeout  time.Duration // per receive syscall; 0 disables
	WriteTimeout time.Duration // per send syscall; 0 disables
	Dump         DumpFunc
}

// Conn is a buffered connection. It is not safe for concurrent use.
type Conn struct {
	nc    net.Conn
	buf   *buffer.Buffer
	state State
	err   error
	opts  Options
}

// New wraps an established connection.
func New(nc net.Conn, opts Options) *Conn {
	return &Conn{
		nc:    nc,
		buf:   buffer.New(opts.BufferSize),
		state: StateOpen,
		opts:  opts,
	}
}

// State returns the current state.
func (c *Conn) State() State {
	return c.state
}

// Err returns the error that moved the connection to StateFailed, if any.
func (c *Conn) Err() error {
	return c.err
}

// Fail moves the connection to StateFailed with err unless it already
// failed, and returns the stored error.
func (c *Conn) Fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	if c.state == StateOpen {
		c.state = StateFailed
	}
	return c.err
}

func (c *Conn) check() error {
	switch c.state {
	case StateOpen:
		return nil
	case StateFailed:
		return c.err
	default:
		if c.err != nil {
			return c.err
		}
		return errors.NewIOError("use of closed connection", nil)
	}
}

func (c *Conn) ioFailure(op string, timeout time.Duration, err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return c.Fail(errors.NewTimeoutError(op, timeout))
	}
	return c.Fail(errors.NewIOError(op, err))
}

// SendExact writes every byte of p to the socket, bypassing the buffer.
func (c *Conn) SendExact(p []byte) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.opts.WriteTimeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return c.Fail(errors.NewIOError("setting write deadline", err))
		}
	}
	for len(p) > 0 {
		n, err := c.nc.Write(p)
		if err != nil {
			return c.ioFailure("send", c.opts.WriteTimeout, err)
		}
		p = p[n:]
	}
	return nil
}

// RecvUpTo performs one socket read into p. It returns 0 only when the peer
// shut down its side cleanly.
func (c *Conn) RecvUpTo(p []byte) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if c.opts.ReadTimeout > 0 {
		if err := c.nc.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
			return 0, c.Fail(errors.NewIOError("setting read deadline", err))
		}
	}
	for {
		n, err := c.nc.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == io.EOF {
			return 0, nil
		}
		if err != nil {
			return 0, c.ioFailure("receive", c.opts.ReadTimeout, err)
		}
	}
}

// BufferedSend appends p to the buffer, flushing whenever it fills up.
func (c *Conn) BufferedSend(p []byte) error {
	for len(p) > 0 {
		if err := c.check(); err != nil {
			return err
		}
		n := c.buf.Append(p)
		if n == 0 {
			if err := c.Flush(); err != nil {
				return err
			}
			continue
		}
		p = p[n:]
	}
	return c.check()
}

// SendLine buffers line followed by CRLF.
func (c *Conn) SendLine(line string) error {
	if c.opts.Dump != nil {
		c.opts.Dump("> %s", line)
	}
	if err := c.BufferedSend([]byte(line)); err != nil {
		return err
	}
	return c.BufferedSend([]byte("\r\n"))
}

// Flush sends the buffered bytes and empties the buffer.
func (c *Conn) Flush() error {
	if err := c.check(); err != nil {
		return err
	}
	data := c.buf.Readable()
	err := c.SendExact(data)
	c.buf.Reset()
	return err
}

// CloseWrite shuts down the write half of the socket when supported.
func (c *Conn) CloseWrite() error {
	if err := c.check(); err != nil {
		return err
	}
	cw, ok := c.nc.(interface{ CloseWrite() error })
	if !ok {
		return nil
	}
	if err := cw.CloseWrite(); err != nil {
		return c.Fail(errors.NewIOError("shutdown", err))
	}
	return nil
}

func (c *Conn) refill() (int, error) {
	n, err := c.RecvUpTo(c.buf.Writable())
	if n > 0 {
		c.buf.Commit(n)
	}
	return n, err
}

// ReceiveLine returns the next line without its terminator. Both CRLF and
// a bare LF end a line. Lines of constants.MaxLineLength bytes or more, and
// end of stream before the terminator, are protocol errors.
func (c *Conn) ReceiveLine() (string, error) {
	var line []byte
	for {
		if err := c.check(); err != nil {
			return "", err
		}
		if c.buf.Len() == 0 {
			n, err := c.refill()
			if err != nil {
				return "", err
			}
			if n == 0 {
				return "", c.Fail(errors.NewProtocolError("connection closed before end of line", io.ErrUnexpectedEOF))
			}
		}

		data := c.buf.Readable()
		i := bytes.IndexByte(data, '\n')
		if i >= 0 {
			line = append(line, data[:i]...)
			c.buf.Consume(i + 1)
			break
		}
		line = append(line, data...)
		c.buf.Consume(len(data))
		if len(line) > constants.MaxLineLength {
			return "", c.Fail(errors.NewProtocolError("header line too long", nil))
		}
	}

	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if len(line) >= constants.MaxLineLength {
		return "", c.Fail(errors.NewProtocolError("header line too long", nil))
	}
	if c.opts.Dump != nil {
		c.opts.Dump("< %s", line)
	}
	return string(line), nil
}

// Receive fills p, first from previously buffered bytes and then from the
// socket. It returns fewer than len(p) bytes only at end of stream.
func (c *Conn) Receive(p []byte) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	n := c.buf.Read(p)
	for n < len(p) {
		m, err := c.RecvUpTo(p[n:])
		if err != nil {
			return n, err
		}
		if m == 0 {
			break
		}
		n += m
	}
	return n, nil
}

// ReceiveSome returns previously buffered bytes if there are any, otherwise
// the result of a single socket read. It returns 0 only at end of stream.
func (c *Conn) ReceiveSome(p []byte) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	if c.buf.Len() > 0 {
		return c.buf.Read(p), nil
	}
	return c.RecvUpTo(p)
}

// Close releases the socket and the buffer. It is safe to call more than
// once.
func (c *Conn) Close() error {
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed
	c.buf.Release()
	if c.nc == nil {
		return nil
	}
	return c.nc.Close()
}
