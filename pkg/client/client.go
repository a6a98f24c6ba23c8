// Package client implements the HTTP/1.1 request/response engine: request
// serialization, response head parsing, body decoding and redirect
// chasing.
package client

import (
	"context"
	"strings"
	"time"

	"github.com/WhileEndless/go-httpget/pkg/conn"
	"github.com/WhileEndless/go-httpget/pkg/constants"
	"github.com/WhileEndless/go-httpget/pkg/errors"
	"github.com/WhileEndless/go-httpget/pkg/timing"
	"github.com/WhileEndless/go-httpget/pkg/transport"
	"github.com/WhileEndless/go-httpget/pkg/urlutil"
)

// Options controls how the Client establishes connections and reads responses.
type Options struct {
	ConnTimeout  time.Duration
	DNSTimeout   time.Duration // 0 = use ConnTimeout
	ReadTimeout  time.Duration // 0 = no deadline
	WriteTimeout time.Duration // 0 = no deadline

	// BufferSize is the size of the per-connection buffer.
	BufferSize int

	// Dump, when set, receives every protocol line sent and received.
	Dump conn.DumpFunc
}

// DefaultOptions returns the options used by New when none are given.
func DefaultOptions() Options {
	return Options{
		ConnTimeout: constants.DefaultConnTimeout,
		BufferSize:  constants.ConnBufferSize,
	}
}

// Client performs requests, one connection per attempt.
type Client struct {
	transport *transport.Transport
	opts      Options
}

// New returns a new Client instance.
func New(opts Options) *Client {
	return NewWithTransport(transport.New(), opts)
}

// NewWithTransport creates a Client with a custom transport.
func NewWithTransport(t *transport.Transport, opts Options) *Client {
	return &Client{
		transport: t,
		opts:      opts,
	}
}

// Do performs req, following redirects within req.MaxRedirects. On success
// the returned response is ready for body reads and must be closed.
//
// A 3xx response is returned as is when the redirect budget is exhausted or
// it carries no Location header. Any I/O, protocol or semantic error ends
// the whole operation; only redirects start a new attempt.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.transport == nil {
		return nil, errors.NewValidationError("client transport is nil")
	}
	cur := req
	cur.normalize()
	if cur.Range != nil {
		rng := *cur.Range
		cur.Range = &rng
	}

	redirects := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.attempt(ctx, &cur)
		if err != nil {
			return nil, err
		}
		resp.Redirects = redirects

		if !resp.IsRedirect() || cur.MaxRedirects == 0 {
			return resp, nil
		}
		if cur.MaxRedirects > 0 {
			cur.MaxRedirects--
		}

		loc := resp.Location
		if loc == nil {
			return resp, nil
		}
		if loc.Scheme != "" && loc.Scheme != constants.DefaultScheme {
			resp.Close()
			return nil, errors.NewSemanticError("redirect to unsupported URL scheme " + loc.Scheme)
		}
		resp.Close()

		followLocation(&cur, loc)
		redirects++
	}
}

// followLocation points req at loc. Credentials are dropped when the host
// changes, compared case-insensitively, unless ForwardAuth is set.
func followLocation(req *Request, loc *urlutil.URL) {
	if loc.HasHost() {
		if !req.ForwardAuth && !strings.EqualFold(loc.Host, req.Host) {
			req.Credentials = ""
		}
		req.Host = loc.Host
		req.Port = loc.Port
	}
	req.Path = loc.Path
}

// attempt runs one connect/send/receive cycle. The connection is closed on
// every error path.
func (c *Client) attempt(ctx context.Context, req *Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	timer := timing.NewTimer()
	nc, err := c.transport.Connect(ctx, transport.Config{
		Host:        req.Host,
		Port:        req.Port,
		ConnTimeout: c.opts.ConnTimeout,
		DNSTimeout:  c.opts.DNSTimeout,
	}, timer)
	if err != nil {
		return nil, err
	}

	cn := conn.New(nc, conn.Options{
		BufferSize:   c.opts.BufferSize,
		ReadTimeout:  c.opts.ReadTimeout,
		WriteTimeout: c.opts.WriteTimeout,
		Dump:         c.opts.Dump,
	})

	if err := writeRequest(cn, req); err != nil {
		cn.Close()
		return nil, err
	}

	resp, err := readResponse(cn, req, timer)
	if err != nil {
		cn.Close()
		return nil, err
	}
	resp.Timings = timer.GetMetrics()
	return resp, nil
}
