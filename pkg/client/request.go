package client

import (
	"encoding/base64"
	"strconv"

	"golang.org/x/net/http/httpguts"

	"github.com/WhileEndless/go-httpget/pkg/conn"
	"github.com/WhileEndless/go-httpget/pkg/constants"
	"github.com/WhileEndless/go-httpget/pkg/errors"
)

// Range is an inclusive byte range. When Open is set Last is ignored and
// the range extends to the end of the resource.
type Range struct {
	First int64
	Last  int64
	Open  bool
}

// String formats the range as a Range header value.
func (r Range) String() string {
	if r.Open {
		return "bytes=" + strconv.FormatInt(r.First, 10) + "-"
	}
	return "bytes=" + strconv.FormatInt(r.First, 10) + "-" + strconv.FormatInt(r.Last, 10)
}

// Request describes one logical request. The redirect loop works on a copy
// and rewrites Host, Port, Path, Credentials and MaxRedirects between
// attempts.
type Request struct {
	Method string // defaults to GET
	Host   string
	Port   int    // 0 selects the default port
	Path   string // defaults to "/"

	// Credentials in "user:password" form, sent as Basic authorization.
	Credentials string

	Range *Range

	// MaxRedirects is the number of redirects still allowed; negative
	// means unlimited.
	MaxRedirects int

	// ForwardAuth keeps Credentials when a redirect points to another host.
	ForwardAuth bool
}

func (r *Request) normalize() {
	if r.Method == "" {
		r.Method = constants.DefaultMethod
	}
	if r.Path == "" {
		r.Path = constants.DefaultPath
	}
}

func (r *Request) hostHeader() string {
	if r.Port != 0 && r.Port != constants.DefaultPort {
		return r.Host + ":" + strconv.Itoa(r.Port)
	}
	return r.Host
}

func (r *Request) validate() error {
	if r.Host == "" {
		return errors.NewValidationError("host cannot be empty")
	}
	if r.Port < 0 || r.Port > 65535 {
		return errors.NewValidationError("port must be 0 (default) or between 1 and 65535")
	}
	if !httpguts.ValidHostHeader(r.hostHeader()) {
		return errors.NewValidationError("invalid host " + strconv.Quote(r.Host))
	}
	if !httpguts.ValidHeaderFieldName(r.Method) {
		return errors.NewValidationError("invalid method " + strconv.Quote(r.Method))
	}
	if !validPath(r.Path) {
		return errors.NewValidationError("invalid path " + strconv.Quote(r.Path))
	}
	if r.Range != nil {
		if r.Range.First < 0 || (!r.Range.Open && r.Range.Last < r.Range.First) {
			return errors.NewValidationError("invalid byte range " + r.Range.String())
		}
	}
	return nil
}

func validPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	for i := 0; i < len(p); i++ {
		if c := p[i]; c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

func basicAuth(credentials string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
}

// requestLines returns the request line and header lines, without the
// terminating empty line.
func requestLines(r *Request) []string {
	lines := []string{
		r.Method + " " + r.Path + " HTTP/1.1",
		"Host: " + r.hostHeader(),
	}
	if r.Credentials != "" {
		lines = append(lines, "Authorization: "+basicAuth(r.Credentials))
	}
	lines = append(lines, "Connection: close")
	if r.Range != nil {
		lines = append(lines, "Range: "+r.Range.String())
	}
	return lines
}

// writeRequest sends the request head, flushes it and shuts down the write
// half of the connection; request bodies are not supported.
func writeRequest(c *conn.Conn, r *Request) error {
	for _, line := range requestLines(r) {
		if err := c.SendLine(line); err != nil {
			return err
		}
	}
	if err := c.SendLine(""); err != nil {
		return err
	}
	if err := c.Flush(); err != nil {
		return err
	}
	return c.CloseWrite()
}
