// Package constants defines magic numbers and default values used throughout go-httpget
package constants

import "time"

// Protocol defaults
const (
	DefaultPort   = 80
	DefaultScheme = "http"
	DefaultMethod = "GET"
	DefaultPath   = "/"
)

// Connection timeouts
const (
	DefaultConnTimeout = 10 * time.Second
	DefaultDNSTimeout  = 5 * time.Second
)

// HTTP limits
const (
	// MaxLineLength bounds a single status, header or chunk-size line.
	MaxLineLength = 2048

	// MaxRedirects is the default redirect budget used by the CLI.
	MaxRedirects = 20
)

// Buffer limits
const (
	// ConnBufferSize is the size of the buffer shared by the send and receive
	// paths of a connection.
	ConnBufferSize = 4096

	// CopyBufferSize is the chunk size the CLI uses when streaming a body.
	CopyBufferSize = 64 * 1024
)
