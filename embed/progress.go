package embed

import (
	"fmt"
	"io"
	"time"
)

// ProgressTracker prints a single updating progress line.
type ProgressTracker struct {
	writer         io.Writer
	label          string
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of items to process
// reportInterval: report progress every N items
func NewProgressTracker(writer io.Writer, label string, total, reportInterval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressTracker{
		writer:         writer,
		label:          label,
		total:          total,
		reportInterval: max(1, reportInterval),
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// SetTotal changes the number of items expected.
func (p *ProgressTracker) SetTotal(total int) {
	p.total = total
}

// Increment increases the current progress by delta.
func (p *ProgressTracker) Increment(delta int) {
	if !p.started {
		return
	}
	p.current = min(p.current+delta, p.total)
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Finish prints the final line and a newline.
func (p *ProgressTracker) Finish() {
	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

func (p *ProgressTracker) report() {
	percentage := 100.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}
	rate := 0.0
	if secs := time.Since(p.startTime).Seconds(); secs > 0 {
		rate = float64(p.current) / secs
	}
	fmt.Fprintf(p.writer, "\r%s: %d/%d (%.1f%%) - %.1f records/s",
		p.label, p.current, p.total, percentage, rate)
}
