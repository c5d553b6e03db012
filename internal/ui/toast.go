package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/pushchain/push-updater/internal/checker"
)

var (
	toastInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	toastSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	toastWarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	toastTextStyle    = lipgloss.NewStyle().PaddingLeft(1)
)

// RenderToast formats a one-line toast. Without colors it falls back to
// bracketed tags like the Printer does.
func RenderToast(c *ColorConfig, kind checker.ToastKind, text string) string {
	if c == nil || !c.Enabled {
		return toastIcon(kind, c != nil && c.EmojiEnabled) + " " + text
	}
	icon := toastIcon(kind, c.EmojiEnabled)
	var style lipgloss.Style
	switch kind {
	case checker.ToastSuccess:
		style = toastSuccessStyle
	case checker.ToastWarning:
		style = toastWarningStyle
	default:
		style = toastInfoStyle
	}
	return style.Render(icon) + toastTextStyle.Render(text)
}

func toastIcon(kind checker.ToastKind, emoji bool) string {
	switch kind {
	case checker.ToastSuccess:
		if emoji {
			return "✓"
		}
		return "[OK]"
	case checker.ToastWarning:
		if emoji {
			return "!"
		}
		return "[WARN]"
	default:
		if emoji {
			return "ℹ"
		}
		return "[INFO]"
	}
}
