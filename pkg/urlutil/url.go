// Package urlutil parses the simplified URLs httpget accepts on the command
// line and in Location headers:
//
//	[[scheme://]host[:port]][path]
//
// e.g. "/path/to/file", "example.com", "http://localhost:80",
// "http://localhost/index.html". Credentials, queries and fragments get no
// special treatment; anything after the first '/' is the path.
package urlutil

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// URL is a parsed URL.
type URL struct {
	Scheme string // lower case; empty if not specified
	Host   string // ASCII form; empty if not specified
	Port   int    // 0 if not specified
	Path   string // always starts with '/'
	Name   string // last path segment; empty if Path ends with '/'
}

// HasHost reports whether the URL names a host.
func (u *URL) HasHost() bool {
	return u.Host != ""
}

// String reassembles the URL.
func (u *URL) String() string {
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
	}
	b.WriteString(u.Host)
	if u.Port != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(u.Port))
	}
	b.WriteString(u.Path)
	return b.String()
}

// Parse parses s.
func Parse(s string) (*URL, error) {
	u := &URL{}
	rest := parseScheme(s, u)

	rest, err := parseHost(rest, u)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", s, err)
	}
	if rest, err = parsePort(rest, u); err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", s, err)
	}
	if err = parsePath(rest, u); err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", s, err)
	}
	return u, nil
}

func parseScheme(s string, u *URL) string {
	i := 0
	for i < len(s) && isSchemeChar(s[i]) {
		i++
	}
	if i == 0 || !strings.HasPrefix(s[i:], "://") {
		return s
	}
	u.Scheme = strings.ToLower(s[:i])
	return s[i+3:]
}

func parseHost(s string, u *URL) (string, error) {
	i := 0
	ascii := true
	for i < len(s) {
		c := s[i]
		if isHostChar(c) {
			i++
			continue
		}
		if c < utf8.RuneSelf {
			break
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		ascii = false
	}
	if i == 0 {
		if u.Scheme != "" {
			return "", fmt.Errorf("host name missing")
		}
		return s, nil
	}

	host := s[:i]
	if !ascii {
		converted, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("invalid host name: %w", err)
		}
		host = converted
	}
	u.Host = host
	return s[i:], nil
}

func parsePort(s string, u *URL) (string, error) {
	if !strings.HasPrefix(s, ":") {
		return s, nil
	}
	if u.Host == "" {
		return "", fmt.Errorf("port without host")
	}
	s = s[1:]
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", fmt.Errorf("port missing")
	}
	port, err := strconv.Atoi(s[:i])
	if err != nil || port > 65535 {
		return "", fmt.Errorf("port out of range: %s", s[:i])
	}
	u.Port = port
	return s[i:], nil
}

func parsePath(s string, u *URL) error {
	if s == "" && u.Host == "" {
		return fmt.Errorf("empty URL")
	}
	switch {
	case s == "":
		u.Path = "/"
	case s[0] != '/':
		return fmt.Errorf("path must start with '/'")
	default:
		u.Path = s
	}
	u.Name = u.Path[strings.LastIndexByte(u.Path, '/')+1:]
	return nil
}

func isSchemeChar(c byte) bool {
	return isAlnum(c) || c == '+' || c == '-' || c == '.'
}

func isHostChar(c byte) bool {
	return isAlnum(c) || c == '-' || c == '.'
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
