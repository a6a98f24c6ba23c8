// Package timing provides per-attempt timing measurement for HTTP requests.
package timing

import (
	"fmt"
	"time"
)

// Metrics captures timing information for a single request attempt.
type Metrics struct {
	// DNSLookup is the time spent resolving the host name
	DNSLookup time.Duration `json:"dns_lookup"`

	// TCPConnect is the time spent dialing candidates until one connected
	TCPConnect time.Duration `json:"tcp_connect"`

	// TTFB is the time between the request being flushed and the status
	// line arriving
	TTFB time.Duration `json:"ttfb"`

	// TotalTime is the time from the start of the attempt until the
	// response headers were parsed
	TotalTime time.Duration `json:"total_time"`
}

// Timer helps measure request timings.
type Timer struct {
	now       func() time.Time
	start     time.Time
	dnsStart  time.Time
	dnsEnd    time.Time
	tcpStart  time.Time
	tcpEnd    time.Time
	ttfbStart time.Time
	ttfbEnd   time.Time
}

// NewTimer creates a new timing measurement session.
func NewTimer() *Timer {
	return NewTimerWithClock(time.Now)
}

// NewTimerWithClock creates a timer reading the time from now.
func NewTimerWithClock(now func() time.Time) *Timer {
	return &Timer{now: now, start: now()}
}

// StartDNS marks the beginning of DNS resolution.
func (t *Timer) StartDNS() { t.dnsStart = t.now() }

// EndDNS marks the end of DNS resolution.
func (t *Timer) EndDNS() { t.dnsEnd = t.now() }

// StartTCP marks the beginning of TCP connection.
func (t *Timer) StartTCP() { t.tcpStart = t.now() }

// EndTCP marks the end of TCP connection.
func (t *Timer) EndTCP() { t.tcpEnd = t.now() }

// StartTTFB marks when we start waiting for the first response byte.
func (t *Timer) StartTTFB() { t.ttfbStart = t.now() }

// EndTTFB marks when we receive the first response byte.
func (t *Timer) EndTTFB() { t.ttfbEnd = t.now() }

// GetMetrics returns the calculated timing metrics.
func (t *Timer) GetMetrics() Metrics {
	m := Metrics{TotalTime: t.now().Sub(t.start)}
	m.DNSLookup = span(t.dnsStart, t.dnsEnd)
	m.TCPConnect = span(t.tcpStart, t.tcpEnd)
	m.TTFB = span(t.ttfbStart, t.ttfbEnd)
	return m
}

func span(from, to time.Time) time.Duration {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	return to.Sub(from)
}

// GetConnectionTime returns the total connection establishment time (DNS + TCP).
func (m Metrics) GetConnectionTime() time.Duration {
	return m.DNSLookup + m.TCPConnect
}

// String provides a human-readable representation of the metrics.
func (m Metrics) String() string {
	return fmt.Sprintf("DNSLookup: %v, TCPConnect: %v, TTFB: %v, TotalTime: %v",
		m.DNSLookup, m.TCPConnect, m.TTFB, m.TotalTime)
}
