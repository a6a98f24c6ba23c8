// Package httpget is a minimal HTTP/1.1 GET client that speaks the protocol
// directly over TCP: one connection per request, fixed-length and chunked
// bodies, byte ranges and redirects with credential scoping.
package httpget

import (
	"context"

	"github.com/WhileEndless/go-httpget/pkg/client"
	"github.com/WhileEndless/go-httpget/pkg/constants"
	"github.com/WhileEndless/go-httpget/pkg/errors"
	"github.com/WhileEndless/go-httpget/pkg/timing"
	"github.com/WhileEndless/go-httpget/pkg/urlutil"
)

// Version is the current version of the httpget library
const Version = "1.0.0"

// Re-export key types for easier usage
type (
	// Client performs requests and follows redirects.
	Client = client.Client

	// Options controls how the Client establishes connections and reads responses.
	Options = client.Options

	// Request describes one logical request.
	Request = client.Request

	// Response is a parsed response head plus a streaming body.
	Response = client.Response

	// Range is an inclusive byte range.
	Range = client.Range

	// URL is a parsed command line or Location URL.
	URL = urlutil.URL

	// Metrics captures timing information for a request.
	Metrics = timing.Metrics

	// Error represents a structured error with context information.
	Error = errors.Error
)

// Re-export error types for convenience
const (
	ErrorTypeDNS        = errors.ErrorTypeDNS
	ErrorTypeConnection = errors.ErrorTypeConnection
	ErrorTypeTimeout    = errors.ErrorTypeTimeout
	ErrorTypeProtocol   = errors.ErrorTypeProtocol
	ErrorTypeIO         = errors.ErrorTypeIO
	ErrorTypeValidation = errors.ErrorTypeValidation
	ErrorTypeSemantic   = errors.ErrorTypeSemantic
)

// NewClient returns a Client using opts.
func NewClient(opts Options) *Client {
	return client.New(opts)
}

// DefaultOptions returns default options for common use cases.
func DefaultOptions() Options {
	return client.DefaultOptions()
}

// ParseURL parses [[scheme://]host[:port]][path].
func ParseURL(s string) (*URL, error) {
	u, err := urlutil.Parse(s)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	return u, nil
}

// Get fetches rawURL, following up to constants.MaxRedirects redirects.
// credentials ("user:password") and rng may be empty.
func Get(ctx context.Context, rawURL string, opts Options, credentials string, rng *Range) (*Response, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "" && u.Scheme != constants.DefaultScheme {
		return nil, errors.NewValidationError("unsupported URL scheme " + u.Scheme)
	}
	if !u.HasHost() {
		return nil, errors.NewValidationError("URL has no host: " + rawURL)
	}

	return NewClient(opts).Do(ctx, Request{
		Method:       constants.DefaultMethod,
		Host:         u.Host,
		Port:         u.Port,
		Path:         u.Path,
		Credentials:  credentials,
		Range:        rng,
		MaxRedirects: constants.MaxRedirects,
	})
}

// IsTimeoutError checks if an error is a timeout error.
func IsTimeoutError(err error) bool {
	return errors.IsTimeoutError(err)
}

// GetErrorType returns the error type if it's a structured error.
func GetErrorType(err error) string {
	return string(errors.GetErrorType(err))
}
