// Package progressbar implements functionality of printing a progress
// bar to the terminal window
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressBar implements a progress bar that must be manually managed.
// That is, Display must be called whenever an updated progress bar
// should be printed. Redraws are limited to one per updateEvery.
//
// ProgressBar is not safe for concurrent use.
type ProgressBar struct {
	out             io.Writer
	width           float64
	maxProgress     float64
	currentProgress float64
	bar             strings.Builder

	startTime   time.Time
	lastDraw    time.Time
	updateEvery time.Duration
	now         func() time.Time
}

// New returns a new ProgressBar that is width characters wide,
// reaches 100% after max calls to Increment and redraws to out at
// most once per updateEvery
func New(out io.Writer, width, max int,
	updateEvery time.Duration) *ProgressBar {
	return &ProgressBar{
		out:         out,
		width:       float64(width),
		maxProgress: float64(max),
		startTime:   time.Now(),
		updateEvery: updateEvery,
		now:         time.Now,
	}
}

// Increment increments the internal progress counter. Each time an
// iteration is performed, Increment should be called.
func (p *ProgressBar) Increment() {
	if p.currentProgress < p.maxProgress {
		p.currentProgress++
	}
}

// Progress returns the completed fraction in [0, 1]
func (p *ProgressBar) Progress() float64 {
	if p.maxProgress <= 0 {
		return 1
	}
	return p.currentProgress / p.maxProgress
}

// Display prints the progress bar, overwriting the previously
// printed bar. It does nothing if the bar was drawn less than
// updateEvery ago, unless the bar is complete.
func (p *ProgressBar) Display() {
	now := p.now()
	done := p.currentProgress >= p.maxProgress
	if !done && !p.lastDraw.IsZero() && now.Sub(p.lastDraw) < p.updateEvery {
		return
	}
	p.lastDraw = now

	p.bar.Reset()
	p.bar.WriteString("|")

	currentProg := p.Progress() * p.width
	for i := 0.0; i < currentProg; i++ {
		p.bar.WriteString("█")
	}
	for i := currentProg; i < p.width; i++ {
		p.bar.WriteString(" ")
	}
	fmt.Fprintf(&p.bar, "| [%.2f%% | elapsed: %v]", p.Progress()*100,
		now.Sub(p.startTime).Truncate(time.Second))

	fmt.Fprintf(p.out, "\n\033[1A\033[K%v", p.bar.String())
}

// Close finishes the bar by moving to the next line
func (p *ProgressBar) Close() {
	fmt.Fprintln(p.out)
}
