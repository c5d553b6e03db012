package ui

import (
	"fmt"
	"io"
	"strings"
)

// ErrorMessage represents a structured, actionable error to present to users.
type ErrorMessage struct {
	Problem string   // one-line problem statement
	Causes  []string // possible causes
	Actions []string // actionable steps to resolve
	Hints   []string // optional hints (e.g., commands to try)
}

// Format renders the error using the color theme. It does not include ANSI
// codes when colors are disabled (NO_COLOR or dumb terminal).
func (e ErrorMessage) Format(c *ColorConfig) string {
	var b strings.Builder
	b.WriteString(c.Error("✗ "))
	b.WriteString(c.Header("Error"))
	b.WriteString("\n")
	if e.Problem != "" {
		b.WriteString("  ")
		b.WriteString(c.Label("Problem"))
		b.WriteString(": ")
		b.WriteString(e.Problem)
		b.WriteString("\n")
	}
	writeList(&b, c.Label("Possible causes"), "   • ", e.Causes, nil)
	writeList(&b, c.Label("Try"), "   → ", e.Actions, nil)
	writeList(&b, c.Label("Hints"), "   · ", e.Hints, c.Description)
	return b.String()
}

func writeList(b *strings.Builder, label, bullet string, items []string, style func(string) string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("  ")
	b.WriteString(label)
	b.WriteString(":\n")
	for _, it := range items {
		b.WriteString(bullet)
		if style != nil {
			it = style(it)
		}
		b.WriteString(it)
		b.WriteString("\n")
	}
}

// PrintError writes the structured error to w using the global theme.
func PrintError(w io.Writer, e ErrorMessage) {
	fmt.Fprintln(w, e.Format(NewColorConfigFromGlobal()))
}
