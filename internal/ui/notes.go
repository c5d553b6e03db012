package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderNotes renders release notes markdown for the terminal. Plain
// output uses glamour's notty style; any renderer error returns the
// markdown unchanged.
func RenderNotes(markdown string, width int, color bool) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	style := "notty"
	if color {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}
