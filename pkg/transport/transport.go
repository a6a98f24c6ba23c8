// Package transport resolves a host and establishes the TCP connection a
// request attempt runs over.
package transport

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/WhileEndless/go-httpget/pkg/constants"
	"github.com/WhileEndless/go-httpget/pkg/errors"
	"github.com/WhileEndless/go-httpget/pkg/timing"
)

// Config holds transport configuration.
type Config struct {
	Host        string
	Port        int // 0 selects constants.DefaultPort
	ConnTimeout time.Duration
	DNSTimeout  time.Duration
}

// Dialer opens a stream connection to a resolved address.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Transport handles name resolution and connection establishment.
type Transport struct {
	resolver *net.Resolver
	dialer   Dialer
}

// New creates a new Transport instance.
func New() *Transport {
	return &Transport{
		resolver: net.DefaultResolver,
	}
}

// NewWithResolver creates a new Transport with a custom resolver.
func NewWithResolver(resolver *net.Resolver) *Transport {
	return &Transport{
		resolver: resolver,
	}
}

// WithDialer returns a copy of t that opens connections through d.
func (t *Transport) WithDialer(d Dialer) *Transport {
	cp := *t
	cp.dialer = d
	return &cp
}

// Connect resolves config.Host and dials every returned address in order;
// the first successful connection wins.
func (t *Transport) Connect(ctx context.Context, config Config, timer *timing.Timer) (net.Conn, error) {
	if err := t.validateConfig(config); err != nil {
		return nil, err
	}
	port := config.Port
	if port == 0 {
		port = constants.DefaultPort
	}

	addrs, err := t.resolveAddresses(ctx, config, timer)
	if err != nil {
		return nil, err
	}

	connTimeout := config.ConnTimeout
	if connTimeout <= 0 {
		connTimeout = constants.DefaultConnTimeout
	}

	timer.StartTCP()
	conn, err := t.dialCandidates(ctx, addrs, port, connTimeout)
	timer.EndTCP()
	if err != nil {
		if errors.IsTimeoutError(err) {
			return nil, errors.NewTimeoutError("connect to "+config.Host, connTimeout)
		}
		return nil, errors.NewConnectionError(config.Host, port, err)
	}
	return conn, nil
}

// dialCandidates tries each address in order and returns the first
// connection established, or the last dial error.
func (t *Transport) dialCandidates(ctx context.Context, addrs []net.IPAddr, port int, timeout time.Duration) (net.Conn, error) {
	var lastErr error
	for _, addr := range addrs {
		conn, err := t.dial(ctx, net.JoinHostPort(addr.IP.String(), strconv.Itoa(port)), timeout)
		if err == nil {
			setNoDelay(conn)
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (t *Transport) validateConfig(config Config) error {
	if config.Host == "" {
		return errors.NewValidationError("host cannot be empty")
	}
	if config.Port < 0 || config.Port > 65535 {
		return errors.NewValidationError("port must be 0 (default) or between 1 and 65535")
	}
	return nil
}

func (t *Transport) resolveAddresses(ctx context.Context, config Config, timer *timing.Timer) ([]net.IPAddr, error) {
	timer.StartDNS()
	defer timer.EndDNS()

	dnsTimeout := config.DNSTimeout
	if dnsTimeout <= 0 {
		dnsTimeout = config.ConnTimeout
	}
	if dnsTimeout <= 0 {
		dnsTimeout = constants.DefaultDNSTimeout
	}

	ctxLookup, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	resolver := t.resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctxLookup, config.Host)
	if err != nil {
		return nil, errors.NewDNSError(config.Host, err)
	}
	if len(addrs) == 0 {
		return nil, errors.NewDNSError(config.Host, errors.NewValidationError("no IP addresses found"))
	}
	return addrs, nil
}

func (t *Transport) dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	if t.dialer != nil {
		dctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return t.dialer.DialContext(dctx, "tcp", addr)
	}
	d := &net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", addr)
}

func setNoDelay(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
}
