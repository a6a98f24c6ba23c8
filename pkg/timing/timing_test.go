package timing

import (
	"strings"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTimerMetrics(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	timer := NewTimerWithClock(clock.now)

	timer.StartDNS()
	clock.advance(10 * time.Millisecond)
	timer.EndDNS()

	timer.StartTCP()
	clock.advance(20 * time.Millisecond)
	timer.EndTCP()

	timer.StartTTFB()
	clock.advance(30 * time.Millisecond)
	timer.EndTTFB()

	clock.advance(5 * time.Millisecond)
	m := timer.GetMetrics()

	if m.DNSLookup != 10*time.Millisecond {
		t.Errorf("DNSLookup = %v", m.DNSLookup)
	}
	if m.TCPConnect != 20*time.Millisecond {
		t.Errorf("TCPConnect = %v", m.TCPConnect)
	}
	if m.TTFB != 30*time.Millisecond {
		t.Errorf("TTFB = %v", m.TTFB)
	}
	if m.TotalTime != 65*time.Millisecond {
		t.Errorf("TotalTime = %v", m.TotalTime)
	}
	if m.GetConnectionTime() != 30*time.Millisecond {
		t.Errorf("GetConnectionTime = %v", m.GetConnectionTime())
	}
	if !strings.Contains(m.String(), "TTFB: 30ms") {
		t.Errorf("unexpected String(): %s", m.String())
	}
}

func TestTimerUnfinishedPhases(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	timer := NewTimerWithClock(clock.now)

	timer.StartDNS()
	clock.advance(time.Second)
	m := timer.GetMetrics()

	if m.DNSLookup != 0 {
		t.Errorf("unfinished DNS phase should report zero, got %v", m.DNSLookup)
	}
	if m.TotalTime != time.Second {
		t.Errorf("TotalTime = %v", m.TotalTime)
	}
}
