package client

import (
	"net/textproto"
	"strconv"
	"strings"

	"github.com/WhileEndless/go-httpget/pkg/errors"
	"github.com/WhileEndless/go-httpget/pkg/urlutil"
)

// headerHandler updates the in-progress response from a header value.
type headerHandler func(resp *Response, value string) error

// headerHandlers is keyed by canonical header name. Fields without a
// handler are recorded in Response.Headers and otherwise ignored.
var headerHandlers = map[string]headerHandler{
	"Content-Length":    handleContentLength,
	"Transfer-Encoding": handleTransferEncoding,
	"Content-Range":     handleContentRange,
	"Location":          handleLocation,
}

func canonicalKey(name string) string {
	return textproto.CanonicalMIMEHeaderKey(name)
}

func dispatchHeader(resp *Response, field, value string) error {
	key := canonicalKey(field)
	resp.Headers[key] = append(resp.Headers[key], value)
	if h, ok := headerHandlers[key]; ok {
		return h(resp, value)
	}
	return nil
}

// Chunked framing wins over Content-Length regardless of header order.
func handleContentLength(resp *Response, value string) error {
	if resp.Chunked {
		return nil
	}
	n, ok := parseDecimal(value)
	if !ok {
		return errors.NewProtocolErrorf("invalid Content-Length: %q", value)
	}
	resp.ContentLength = n
	return nil
}

func handleTransferEncoding(resp *Response, value string) error {
	codings := strings.Split(value, ",")
	last := strings.TrimSpace(codings[len(codings)-1])
	if strings.EqualFold(last, "chunked") {
		resp.Chunked = true
		resp.ContentLength = -1
	}
	return nil
}

func handleContentRange(resp *Response, value string) error {
	cr, ok := parseContentRange(value)
	if !ok {
		return errors.NewProtocolErrorf("invalid Content-Range: %q", value)
	}
	resp.ContentRange = &cr
	resp.Partial = true
	return nil
}

func handleLocation(resp *Response, value string) error {
	u, err := urlutil.Parse(value)
	if err != nil {
		return errors.NewProtocolError("invalid Location header", err)
	}
	resp.Location = u
	return nil
}

// parseContentRange accepts exactly "bytes <first>-<last>/<total>" with
// first <= last < total.
func parseContentRange(value string) (ContentRange, bool) {
	rest, ok := strings.CutPrefix(value, "bytes ")
	if !ok {
		return ContentRange{}, false
	}
	span, total, ok := strings.Cut(rest, "/")
	if !ok {
		return ContentRange{}, false
	}
	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return ContentRange{}, false
	}

	var cr ContentRange
	var okF, okL, okT bool
	cr.First, okF = parseDecimal(first)
	cr.Last, okL = parseDecimal(last)
	cr.Total, okT = parseDecimal(total)
	if !okF || !okL || !okT {
		return ContentRange{}, false
	}
	if cr.First > cr.Last || cr.Last >= cr.Total {
		return ContentRange{}, false
	}
	return cr, true
}

// parseDecimal parses a non-empty run of ASCII digits into an int64.
func parseDecimal(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
