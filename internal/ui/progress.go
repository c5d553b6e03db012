package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	barFilled = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	barEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// ProgressBar draws download progress. On a terminal it redraws one line
// in place; elsewhere it prints a line per 10%.
type ProgressBar struct {
	out     io.Writer
	total   int64
	current int64
	label   string
	indent  string
	color   bool

	tty       bool
	started   time.Time
	lastDraw  time.Time
	lastStep  int // last 10% step printed in plain mode
	finalized bool
}

// NewProgressBar creates a bar over total bytes. A total <= 0 shows only
// the byte count until Track learns the size.
func NewProgressBar(out io.Writer, total int64) *ProgressBar {
	if out == nil {
		out = os.Stdout
	}
	p := &ProgressBar{
		out:      out,
		total:    total,
		label:    "Downloading",
		indent:   "  ",
		started:  time.Now(),
		lastStep: -1,
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = true
		p.color = NewColorConfigFromGlobal().Enabled
		// focus events would otherwise print into the bar
		fmt.Fprint(out, "\033[?1004l")
		FlushStdinWithTimeout(30 * time.Millisecond)
	}
	return p
}

// SetIndent sets the prefix of every line.
func (p *ProgressBar) SetIndent(indent string) { p.indent = indent }

// SetLabel replaces the "Downloading" label.
func (p *ProgressBar) SetLabel(label string) { p.label = label }

// Track is shaped like a download progress callback. The first call with
// a positive total fixes the bar's total.
func (p *ProgressBar) Track(downloaded, total int64) {
	if p.total <= 0 && total > 0 {
		p.total = total
	}
	p.Update(downloaded)
}

// Update records the byte count and redraws when due.
func (p *ProgressBar) Update(current int64) {
	p.current = current
	if p.tty {
		if time.Since(p.lastDraw) < 100*time.Millisecond {
			return
		}
		p.lastDraw = time.Now()
		fmt.Fprint(p.out, "\r"+p.line()+"\033[K")
		return
	}
	if p.total <= 0 {
		return
	}
	step := int(p.percent()) / 10
	if step > p.lastStep {
		p.lastStep = step
		fmt.Fprintf(p.out, "%s%s... %d%%\n", p.indent, p.label, step*10)
	}
}

// Finish draws the final state and ends the line. Later calls do nothing.
func (p *ProgressBar) Finish() {
	if p.finalized {
		return
	}
	p.finalized = true
	if p.total > 0 {
		p.current = p.total
	}
	if p.tty {
		fmt.Fprint(p.out, "\r"+p.line()+"\033[K\n")
		FlushStdinWithTimeout(30 * time.Millisecond)
		return
	}
	switch {
	case p.total <= 0:
		fmt.Fprintf(p.out, "%s%s... %s\n", p.indent, p.label, FormatBytes(p.current))
	case p.lastStep < 10:
		fmt.Fprintf(p.out, "%s%s... 100%%\n", p.indent, p.label)
	}
}

func (p *ProgressBar) percent() float64 {
	if p.total <= 0 {
		return 0
	}
	pct := float64(p.current) / float64(p.total) * 100
	return min(pct, 100)
}

func (p *ProgressBar) speed() float64 {
	elapsed := time.Since(p.started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.current) / elapsed
}

// line renders "label [bar] pct size speed ETA" sized to the terminal.
func (p *ProgressBar) line() string {
	if p.total <= 0 {
		return fmt.Sprintf("%s%s... %s  %s", p.indent, p.label, FormatBytes(p.current), FormatSpeed(p.speed()))
	}

	width := 80
	if f, ok := p.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	barWidth := min(max(width-60-len(p.indent), 10), 40)
	filled := int(p.percent() / 100 * float64(barWidth))

	done, rest := strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled)
	if p.color {
		done, rest = barFilled.Render(done), barEmpty.Render(rest)
	}

	eta := "--"
	if p.current >= p.total {
		eta = "0s"
	} else if s := p.speed(); s > 0 {
		eta = formatETA(time.Duration(float64(p.total-p.current) / s * float64(time.Second)))
	}
	return fmt.Sprintf("%s%s [%s] %5.1f%%  %s/%s  %s  ETA %s",
		p.indent, p.label, done+rest, p.percent(),
		FormatBytes(p.current), FormatBytes(p.total), FormatSpeed(p.speed()), eta)
}

func formatETA(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
