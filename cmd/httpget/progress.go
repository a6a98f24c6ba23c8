package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// progress draws a single self-overwriting status line.
type progress struct {
	w     io.Writer
	now   func() time.Time
	quiet bool

	begin   time.Time
	last    time.Time
	lineLen int
}

func newProgress(w io.Writer, quiet bool) *progress {
	return &progress{w: w, now: time.Now, quiet: quiet}
}

// update redraws the line, at most once per second unless done is set.
// total is negative when the body length is unknown.
func (p *progress) update(read, total int64, done bool) {
	if p.quiet {
		return
	}
	now := p.now()
	if p.begin.IsZero() {
		p.begin = now
	}
	if !done && !p.last.IsZero() && now.Sub(p.last) < time.Second {
		return
	}
	p.last = now

	fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", p.lineLen))
	line := formatProgress(read, total, now.Sub(p.begin))
	p.lineLen = len(line)
	io.WriteString(p.w, line)
	if done {
		io.WriteString(p.w, "\n")
	}
}

func formatProgress(read, total int64, elapsed time.Duration) string {
	secs := int64(elapsed / time.Second)
	rate := uint64(read / (secs + 1))

	var b strings.Builder
	b.WriteString("Downloaded ")
	b.WriteString(humanize.Bytes(uint64(read)))
	if total >= 0 {
		b.WriteString("/")
		b.WriteString(humanize.Bytes(uint64(total)))
	}
	fmt.Fprintf(&b, " in %d second(s), average rate: %s/s", secs, humanize.Bytes(rate))
	if total >= read {
		fmt.Fprintf(&b, ", time left: %d s", uint64(total-read)/(rate+1))
	}
	return b.String()
}
