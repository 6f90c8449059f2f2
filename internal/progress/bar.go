// Package progress renders a single-line transfer bar on a terminal.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	defaultWidth    = 30
	defaultInterval = 100 * time.Millisecond
	mib             = 1024 * 1024
)

// Bar redraws itself in place with carriage returns. It is safe for use
// from the goroutine copying the body and the one finishing the transfer.
type Bar struct {
	w     io.Writer
	label string
	width int
	every time.Duration
	now   func() time.Time

	mu       sync.Mutex
	last     time.Time
	current  int64
	total    int64
	finished bool
}

// New creates a bar writing to w. label prefixes every redraw.
func New(w io.Writer, label string) *Bar {
	return &Bar{
		w:     w,
		label: label,
		width: defaultWidth,
		every: defaultInterval,
		now:   time.Now,
	}
}

// Update records progress; total <= 0 means unknown. Redraws are throttled
// except for the one reaching the total.
func (b *Bar) Update(current, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.current, b.total = current, total
	now := b.now()
	done := total > 0 && current >= total
	if !done && !b.last.IsZero() && now.Sub(b.last) < b.every {
		return
	}
	b.last = now
	fmt.Fprint(b.w, "\r"+b.render())
}

// Finish draws the final state and ends the line.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.finished = true
	fmt.Fprint(b.w, "\r"+b.render()+"\n")
}

func (b *Bar) render() string {
	prefix := ""
	if b.label != "" {
		prefix = b.label + " "
	}
	if b.total <= 0 {
		return fmt.Sprintf("%s%.1fMB", prefix, float64(b.current)/mib)
	}
	pct := float64(b.current) / float64(b.total) * 100
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(b.width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", b.width-filled)
	return fmt.Sprintf("%s[%s] %3.0f%% %.1fMB/%.1fMB", prefix, bar, pct, float64(b.current)/mib, float64(b.total)/mib)
}
