package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 24
)

// StageProgress draws a single-line progress bar for a pipeline stage
type StageProgress struct {
	mu     sync.Mutex
	out    io.Writer
	stage  string
	unit   string
	total  int
	done   int
	start  time.Time
	quiet  bool
	drawn  bool
	detail string
}

// NewStageProgress creates a progress bar writing to stdout. unit names
// what is counted ("queries", "items"). A quiet bar never draws.
func NewStageProgress(stage, unit string, total int, quiet bool) *StageProgress {
	return &StageProgress{
		out:   os.Stdout,
		stage: stage,
		unit:  unit,
		total: total,
		start: time.Now(),
		quiet: quiet,
	}
}

// SetOutput redirects drawing, mainly for tests
func (p *StageProgress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = w
}

// SetTotal changes the expected total
func (p *StageProgress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// Update records done units and an optional detail and redraws
func (p *StageProgress) Update(done int, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = done
	p.detail = detail
	p.draw()
}

// Bar returns the bar text for the current state
func (p *StageProgress) Bar() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bar()
}

func (p *StageProgress) bar() string {
	filled := 0
	if p.total > 0 {
		filled = p.done * barWidth / p.total
	}
	if filled > barWidth {
		filled = barWidth
	}
	return fmt.Sprintf("[%s%s] %s/%s %s",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, barWidth-filled),
		humanize.Comma(int64(p.done)),
		humanize.Comma(int64(p.total)),
		p.unit)
}

func (p *StageProgress) draw() {
	if p.quiet {
		return
	}
	line := fmt.Sprintf("\r%s %s", Magenta("["+strings.ToUpper(p.stage)+"]"), p.bar())
	if p.detail != "" {
		line += " " + Dim(p.detail)
	}
	fmt.Fprint(p.out, line+"\033[K")
	p.drawn = true
}

// Finish ends the progress line and returns the elapsed time
func (p *StageProgress) Finish() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.out)
	}
	return time.Since(p.start)
}

// Rate returns units per minute since the bar was created
func (p *StageProgress) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	minutes := time.Since(p.start).Minutes()
	if minutes == 0 {
		return 0
	}
	return float64(p.done) / minutes
}
