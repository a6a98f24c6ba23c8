package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WhileEndless/go-httpget/pkg/errors"
	"github.com/WhileEndless/go-httpget/pkg/transport"
	"github.com/WhileEndless/go-httpget/pkg/urlutil"
)

// fakeServer answers the n-th connection with responses[n] and records the
// request heads it received.
type fakeServer struct {
	ln        net.Listener
	responses []string

	mu       sync.Mutex
	requests []string
	dialed   []string
}

func newFakeServer(t *testing.T, responses ...string) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("network sockets not available: %v", err)
	}
	s := &fakeServer{ln: ln, responses: responses}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeServer) serve() {
	for i := 0; ; i++ {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		var head strings.Builder
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			head.WriteString(line)
			if err != nil || line == "\r\n" {
				break
			}
		}
		s.mu.Lock()
		s.requests = append(s.requests, head.String())
		s.mu.Unlock()

		if i < len(s.responses) {
			io.WriteString(conn, s.responses[i])
		}
		conn.Close()
	}
}

func (s *fakeServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// DialContext sends every connection to the fake server, whatever address
// was resolved, so tests can use several host names.
func (s *fakeServer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	s.mu.Lock()
	s.dialed = append(s.dialed, address)
	s.mu.Unlock()
	var d net.Dialer
	return d.DialContext(ctx, network, s.ln.Addr().String())
}

func (s *fakeServer) client(opts Options) *Client {
	return NewWithTransport(transport.New().WithDialer(s), opts)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ConnTimeout = 2 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	return opts
}

func redirect(location, body string) string {
	return fmt.Sprintf("HTTP/1.1 302 Found\r\nLocation: %s\r\nContent-Length: %d\r\n\r\n%s", location, len(body), body)
}

func okResponse(body string) string {
	return fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
}

func requestPath(head string) string {
	fields := strings.Fields(head)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

func TestDoSimple(t *testing.T) {
	s := newFakeServer(t, okResponse("hello world"))

	var dump []string
	opts := testOptions()
	opts.Dump = func(format string, args ...any) { dump = append(dump, fmt.Sprintf(format, args...)) }

	resp, err := s.client(opts).Do(context.Background(), Request{Host: "127.0.0.1", Port: s.port(), Path: "/index.html"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "hello world" || resp.StatusCode != 200 || resp.Version != Version11 {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}

	want := fmt.Sprintf("GET /index.html HTTP/1.1\r\nHost: 127.0.0.1:%d\r\nConnection: close\r\n\r\n", s.port())
	if reqs := s.Requests(); len(reqs) != 1 || reqs[0] != want {
		t.Fatalf("unexpected request %q", reqs)
	}
	if len(dump) == 0 || dump[0] != "> GET /index.html HTTP/1.1" {
		t.Fatalf("unexpected dump %q", dump)
	}
	if !containsLine(dump, "< HTTP/1.1 200 OK") {
		t.Fatalf("status line not dumped: %q", dump)
	}
}

func containsLine(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}

func TestDoRedirectBudgetExhausted(t *testing.T) {
	s := newFakeServer(t,
		redirect("/b", "first"),
		redirect("/c", "second"),
		redirect("/d", "third"),
		okResponse("never"),
	)

	resp, err := s.client(testOptions()).Do(context.Background(), Request{
		Host: "127.0.0.1", Port: s.port(), Path: "/a", MaxRedirects: 2,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Close()

	if resp.StatusCode != 302 || resp.Redirects != 2 {
		t.Fatalf("expected third 302 after 2 redirects, got %d after %d", resp.StatusCode, resp.Redirects)
	}
	if resp.Location == nil || resp.Location.Path != "/d" {
		t.Fatalf("unexpected location %+v", resp.Location)
	}
	body, err := io.ReadAll(resp)
	if err != nil || string(body) != "third" {
		t.Fatalf("body %q %v", body, err)
	}

	reqs := s.Requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(reqs))
	}
	for i, want := range []string{"/a", "/b", "/c"} {
		if got := requestPath(reqs[i]); got != want {
			t.Fatalf("request %d path %q, want %q", i, got, want)
		}
	}
}

func TestDoRedirectUnlimited(t *testing.T) {
	responses := make([]string, 0, 6)
	for i := 1; i <= 5; i++ {
		responses = append(responses, redirect(fmt.Sprintf("/hop%d", i), ""))
	}
	responses = append(responses, okResponse("done"))
	s := newFakeServer(t, responses...)

	resp, err := s.client(testOptions()).Do(context.Background(), Request{
		Host: "127.0.0.1", Port: s.port(), MaxRedirects: -1,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Close()
	if resp.StatusCode != 200 || resp.Redirects != 5 {
		t.Fatalf("got %d after %d redirects", resp.StatusCode, resp.Redirects)
	}
}

func TestDoRedirectZeroBudget(t *testing.T) {
	s := newFakeServer(t, redirect("/b", "moved"))

	resp, err := s.client(testOptions()).Do(context.Background(), Request{Host: "127.0.0.1", Port: s.port()})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Close()
	if resp.StatusCode != 302 || len(s.Requests()) != 1 {
		t.Fatalf("redirect should not be followed with zero budget")
	}
}

func TestDoRedirectWithoutLocation(t *testing.T) {
	s := newFakeServer(t, "HTTP/1.1 303 See Other\r\nContent-Length: 0\r\n\r\n")

	resp, err := s.client(testOptions()).Do(context.Background(), Request{Host: "127.0.0.1", Port: s.port(), MaxRedirects: 5})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Close()
	if resp.StatusCode != 303 || resp.Location != nil {
		t.Fatalf("unexpected response %d %+v", resp.StatusCode, resp.Location)
	}
}

func TestDoRedirectUnsupportedScheme(t *testing.T) {
	s := newFakeServer(t, redirect("https://secure.example/", ""))

	_, err := s.client(testOptions()).Do(context.Background(), Request{Host: "127.0.0.1", Port: s.port(), MaxRedirects: 5})
	if errors.GetErrorType(err) != errors.ErrorTypeSemantic {
		t.Fatalf("expected semantic error, got %v", err)
	}
}

func TestDoCredentialScoping(t *testing.T) {
	tests := []struct {
		name        string
		forwardAuth bool
		hops        []string // Location host for each redirect
		wantAuth    []bool   // Authorization present on each request
	}{
		{"same host keeps credentials", false, []string{"127.0.0.1", "127.0.0.1"}, []bool{true, true, true}},
		{"other host drops credentials", false, []string{"127.0.0.2", "127.0.0.2"}, []bool{true, false, false}},
		{"forwarding permitted", true, []string{"127.0.0.2"}, []bool{true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var responses []string
			for i, host := range tt.hops {
				responses = append(responses, redirect(fmt.Sprintf("http://%s:8080/hop%d", host, i), ""))
			}
			responses = append(responses, okResponse("x"))
			s := newFakeServer(t, responses...)

			resp, err := s.client(testOptions()).Do(context.Background(), Request{
				Host:         "127.0.0.1",
				Port:         s.port(),
				Credentials:  "alice:secret",
				MaxRedirects: -1,
				ForwardAuth:  tt.forwardAuth,
			})
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			resp.Close()

			reqs := s.Requests()
			if len(reqs) != len(tt.wantAuth) {
				t.Fatalf("expected %d requests, got %d", len(tt.wantAuth), len(reqs))
			}
			for i, want := range tt.wantAuth {
				got := strings.Contains(reqs[i], "Authorization: Basic YWxpY2U6c2VjcmV0\r\n")
				if got != want {
					t.Fatalf("request %d: authorization present=%v, want %v\n%s", i, got, want, reqs[i])
				}
			}
			if last := reqs[len(reqs)-1]; len(tt.hops) > 0 && !strings.Contains(last, ":8080\r\n") {
				t.Fatalf("redirect target port not adopted:\n%s", last)
			}
		})
	}
}

func TestDoRangeValidation(t *testing.T) {
	partial := "HTTP/1.1 206 Partial Content\r\nContent-Range: bytes 100-199/500\r\nContent-Length: 100\r\n\r\n" +
		strings.Repeat("r", 100)

	s := newFakeServer(t, partial, partial)
	c := s.client(testOptions())

	resp, err := c.Do(context.Background(), Request{Host: "127.0.0.1", Port: s.port(), Range: &Range{First: 100, Last: 199}})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	body, _ := io.ReadAll(resp)
	resp.Close()
	if len(body) != 100 {
		t.Fatalf("got %d body bytes", len(body))
	}
	if !strings.Contains(s.Requests()[0], "Range: bytes=100-199\r\n") {
		t.Fatalf("range header missing:\n%s", s.Requests()[0])
	}

	_, err = c.Do(context.Background(), Request{Host: "127.0.0.1", Port: s.port(), Range: &Range{First: 0, Last: 99}})
	if errors.GetErrorType(err) != errors.ErrorTypeSemantic {
		t.Fatalf("expected semantic error, got %v", err)
	}
}

func TestDoMalformedStatus(t *testing.T) {
	for _, status := range []string{"HTTP/2.0 200 OK", "FOO 200 OK", "HTTP/1.1 20 OK"} {
		t.Run(status, func(t *testing.T) {
			s := newFakeServer(t, status+"\r\n\r\n")
			_, err := s.client(testOptions()).Do(context.Background(), Request{Host: "127.0.0.1", Port: s.port()})
			if errors.GetErrorType(err) != errors.ErrorTypeProtocol {
				t.Fatalf("expected protocol error, got %v", err)
			}
		})
	}
}

func TestDoConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("network sockets not available: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = New(testOptions()).Do(context.Background(), Request{Host: "127.0.0.1", Port: port})
	if errors.GetErrorType(err) != errors.ErrorTypeConnection {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestDoCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testOptions()).Do(ctx, Request{Host: "127.0.0.1", Port: 1})
	if !errors.IsContextCanceled(err) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestFollowLocation(t *testing.T) {
	tests := []struct {
		name        string
		location    string
		forwardAuth bool
		want        Request
	}{
		{
			name:     "relative path keeps host and credentials",
			location: "/next",
			want:     Request{Host: "example.com", Port: 8080, Path: "/next", Credentials: "u:p"},
		},
		{
			name:     "same host in different case",
			location: "http://EXAMPLE.com/x",
			want:     Request{Host: "EXAMPLE.com", Path: "/x", Credentials: "u:p"},
		},
		{
			name:     "other host",
			location: "http://mirror.example.com:81/x",
			want:     Request{Host: "mirror.example.com", Port: 81, Path: "/x"},
		},
		{
			name:        "other host with forwarding",
			location:    "mirror.example.com/x",
			forwardAuth: true,
			want:        Request{Host: "mirror.example.com", Path: "/x", Credentials: "u:p", ForwardAuth: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := urlutil.Parse(tt.location)
			if err != nil {
				t.Fatal(err)
			}
			req := Request{Host: "example.com", Port: 8080, Path: "/start", Credentials: "u:p", ForwardAuth: tt.forwardAuth}
			followLocation(&req, loc)
			if req != tt.want {
				t.Fatalf("got %+v, want %+v", req, tt.want)
			}
		})
	}
}
