package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/WhileEndless/go-httpget/pkg/conn"
	"github.com/WhileEndless/go-httpget/pkg/errors"
	"github.com/WhileEndless/go-httpget/pkg/timing"
	"github.com/WhileEndless/go-httpget/pkg/urlutil"
)

// Version is the protocol version announced in a status line.
type Version int

const (
	VersionUnknown Version = iota
	Version09
	Version10
	Version11
)

var versionTokens = map[string]Version{
	"0.9": Version09,
	"1.0": Version10,
	"1.1": Version11,
}

func (v Version) String() string {
	switch v {
	case Version09:
		return "HTTP/0.9"
	case Version10:
		return "HTTP/1.0"
	case Version11:
		return "HTTP/1.1"
	default:
		return "HTTP/?"
	}
}

// ContentRange is the byte range carried by a partial response.
type ContentRange struct {
	First int64
	Last  int64
	Total int64
}

// Response is a parsed response head plus a reader for its body.
// It must be closed to release the connection.
type Response struct {
	Version    Version
	StatusCode int
	Reason     string
	Headers    map[string][]string

	Partial bool
	Chunked bool

	// ContentLength is the declared body size, -1 when unknown.
	ContentLength int64
	// BodyRead counts body bytes delivered so far.
	BodyRead int64

	ContentRange *ContentRange
	Location     *urlutil.URL

	// Redirects is the number of redirects followed to reach this response.
	Redirects int
	Timings   timing.Metrics

	conn *conn.Conn
	body bodyReader
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode/100 == 2
}

// IsRedirect reports a 3xx status.
func (r *Response) IsRedirect() bool {
	return r.StatusCode/100 == 3
}

// Header returns the first value of the named header.
func (r *Response) Header(name string) string {
	if v := r.Headers[canonicalKey(name)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Read reads body bytes into p. It returns io.EOF once the body has been
// delivered completely.
func (r *Response) Read(p []byte) (int, error) {
	if r.body == nil {
		return 0, errors.NewIOError("read on closed response", nil)
	}
	return r.body.read(r.conn, r, p)
}

// Close releases the socket and buffer. It is safe to call more than once.
func (r *Response) Close() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	r.body = nil
	return err
}

// readResponse parses the status line and headers from c, validates the
// achieved byte range and selects the body strategy. Interim 1xx heads are
// skipped.
func readResponse(c *conn.Conn, req *Request, timer *timing.Timer) (*Response, error) {
	timer.StartTTFB()
	line, err := c.ReceiveLine()
	timer.EndTTFB()

	var resp *Response
	for {
		if err != nil {
			return nil, err
		}
		if resp, err = readHead(c, line); err != nil {
			return nil, err
		}
		if !isInterim(resp.StatusCode) {
			break
		}
		line, err = c.ReceiveLine()
	}

	if resp.IsSuccess() {
		if err := validateRange(req.Range, resp); err != nil {
			return nil, err
		}
	}

	switch {
	case bodyless(req, resp):
		resp.ContentLength = 0
		resp.body = fixedBody{}
	case resp.Chunked:
		cb := &chunkedBody{}
		if err := cb.loadSize(c); err != nil {
			return nil, err
		}
		resp.body = cb
	default:
		resp.body = fixedBody{}
	}
	return resp, nil
}

// readHead parses statusLine and the header block that follows it.
func readHead(c *conn.Conn, statusLine string) (*Response, error) {
	resp := &Response{
		Headers:       make(map[string][]string),
		ContentLength: -1,
		conn:          c,
	}
	if err := parseStatusLine(statusLine, resp); err != nil {
		return nil, c.Fail(err)
	}

	for {
		line, err := c.ReceiveLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return resp, nil
		}
		field, value, err := parseHeaderLine(line)
		if err != nil {
			return nil, c.Fail(err)
		}
		if err := dispatchHeader(resp, field, value); err != nil {
			return nil, c.Fail(err)
		}
	}
}

// isInterim reports 1xx heads that precede the final response. 101 ends
// HTTP on the connection and is returned as final.
func isInterim(code int) bool {
	return code/100 == 1 && code != 101
}

// bodyless reports responses that never carry a body regardless of their
// framing headers.
func bodyless(req *Request, resp *Response) bool {
	if req.Method == "HEAD" {
		return true
	}
	return resp.StatusCode/100 == 1 || resp.StatusCode == 204 || resp.StatusCode == 304
}

// parseStatusLine parses "HTTP/<ver> <3-digit-code> <reason>".
func parseStatusLine(line string, resp *Response) error {
	if len(line) < 5 || !strings.EqualFold(line[:5], "HTTP/") {
		return errors.NewProtocolErrorf("invalid response status: %q", line)
	}
	rest := line[5:]

	i := indexSpace(rest)
	ver, ok := versionTokens[rest[:i]]
	if !ok {
		return errors.NewProtocolErrorf("unknown protocol version: %q", rest[:i])
	}
	rest = skipSpaces(rest[i:])

	n := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	if n != 3 || n == len(rest) || !isSpace(rest[n]) {
		return errors.NewProtocolErrorf("invalid response status: %q", line)
	}
	code, _ := strconv.Atoi(rest[:n])
	if code < 100 {
		return errors.NewProtocolErrorf("invalid response status: %q", line)
	}

	reason := strings.TrimSpace(rest[n:])
	if reason == "" {
		return errors.NewProtocolErrorf("reason message missing: %q", line)
	}

	resp.Version = ver
	resp.StatusCode = code
	resp.Reason = reason
	return nil
}

// parseHeaderLine splits "Field: value", trimming both parts.
func parseHeaderLine(line string) (string, string, error) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", errors.NewProtocolErrorf("invalid response header, ':' missing: %q", line)
	}
	field := strings.TrimSpace(line[:i])
	if field == "" {
		return "", "", errors.NewProtocolErrorf("invalid response header, field name missing: %q", line)
	}
	value := strings.TrimSpace(line[i+1:])
	if value == "" {
		return "", "", errors.NewProtocolErrorf("invalid response header, value missing: %q", line)
	}
	return field, value, nil
}

// validateRange checks the achieved range against the requested one.
// A non-partial response counts as the whole resource.
func validateRange(want *Range, resp *Response) error {
	if want == nil {
		return nil
	}
	if resp.Partial {
		cr := resp.ContentRange
		last := want.Last
		if want.Open {
			last = cr.Total - 1
		}
		if cr.First != want.First || cr.Last != last {
			return errors.NewSemanticError(fmt.Sprintf(
				"server sent bytes %d-%d/%d, requested %s", cr.First, cr.Last, cr.Total, want))
		}
		return nil
	}

	if want.First != 0 {
		return errors.NewSemanticError("server does not seem to support byte ranges")
	}
	if want.Open || (resp.ContentLength >= 0 && want.Last == resp.ContentLength-1) {
		return nil
	}
	return errors.NewSemanticError(fmt.Sprintf("server sent the whole resource, requested %s", want))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\v' || c == '\f' || c == '\r'
}

func indexSpace(s string) int {
	for i := 0; i < len(s); i++ {
		if isSpace(s[i]) {
			return i
		}
	}
	return len(s)
}

func skipSpaces(s string) string {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return s[i:]
}
