package ui

import (
	"os"
	"strings"
)

// Color codes for terminal output
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"

	Cyan = "\033[36m"

	BrightBlack   = "\033[90m"
	BrightRed     = "\033[91m"
	BrightGreen   = "\033[92m"
	BrightYellow  = "\033[93m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
)

// Theme defines the color scheme for different UI elements
type Theme struct {
	// Status indicators
	Success string
	Warning string
	Error   string
	Info    string

	// UI elements
	Header      string
	SubHeader   string
	Label       string
	Value       string
	Description string
	Separator   string

	// Help output
	Command string

	// Interactive elements
	Prompt    string
	Selection string

	// Progress indicators
	Progress string
	Complete string
	Pending  string
}

// DefaultTheme returns the default color theme
func DefaultTheme() *Theme {
	return &Theme{
		Success: BrightGreen,
		Warning: BrightYellow,
		Error:   BrightRed,
		Info:    BrightCyan,

		Header:      Bold + BrightCyan,
		SubHeader:   Bold + Cyan,
		Label:       Bold, // terminal default color stays readable on any background
		Value:       "",
		Description: BrightBlack,
		Separator:   BrightBlack,

		Command: BrightGreen,

		Prompt:    Bold + BrightMagenta,
		Selection: Bold + BrightCyan,

		Progress: BrightYellow,
		Complete: BrightGreen,
		Pending:  BrightBlack,
	}
}

// ColorConfig manages color output settings
type ColorConfig struct {
	Enabled      bool
	EmojiEnabled bool
	Theme        *Theme
}

// NewColorConfig creates a new color configuration with default settings
func NewColorConfig() *ColorConfig {
	noColor := os.Getenv("NO_COLOR") != ""
	term := os.Getenv("TERM")

	return &ColorConfig{
		Enabled:      !noColor && term != "dumb" && term != "",
		EmojiEnabled: true,
		Theme:        DefaultTheme(),
	}
}

// Apply applies a color to text if colors are enabled
func (c *ColorConfig) Apply(color, text string) string {
	if !c.Enabled || color == "" {
		return text
	}
	return color + text + Reset
}

func (c *ColorConfig) Success(text string) string     { return c.Apply(c.Theme.Success, text) }
func (c *ColorConfig) Warning(text string) string     { return c.Apply(c.Theme.Warning, text) }
func (c *ColorConfig) Error(text string) string       { return c.Apply(c.Theme.Error, text) }
func (c *ColorConfig) Info(text string) string        { return c.Apply(c.Theme.Info, text) }
func (c *ColorConfig) Header(text string) string      { return c.Apply(c.Theme.Header, text) }
func (c *ColorConfig) SubHeader(text string) string   { return c.Apply(c.Theme.SubHeader, text) }
func (c *ColorConfig) Label(text string) string       { return c.Apply(c.Theme.Label, text) }
func (c *ColorConfig) Value(text string) string       { return c.Apply(c.Theme.Value, text) }
func (c *ColorConfig) Description(text string) string { return c.Apply(c.Theme.Description, text) }

func (c *ColorConfig) Command(text string) string { return c.Apply(c.Theme.Command, text) }

// FormatCommandAligned pads the command to width so descriptions line up.
func (c *ColorConfig) FormatCommandAligned(cmd, desc string, width int) string {
	pad := width - len(cmd)
	if pad < 2 {
		pad = 2
	}
	return "  " + c.Command(cmd) + strings.Repeat(" ", pad) + c.Description(desc)
}

// Separator returns a colored separator line
func (c *ColorConfig) Separator(width int) string {
	return c.Apply(c.Theme.Separator, strings.Repeat("─", width))
}

// StatusIcon returns a colored status icon (respects emoji settings)
func (c *ColorConfig) StatusIcon(status string) string {
	if !c.EmojiEnabled {
		switch strings.ToLower(status) {
		case "success", "restarted", "up_to_date":
			return c.Success("[OK]")
		case "warning", "pending", "restart_declined", "busy", "skipped_dev":
			return c.Warning("[WARN]")
		case "error", "failed":
			return c.Error("[ERR]")
		case "info":
			return c.Info("[INFO]")
		default:
			return c.Apply(c.Theme.Pending, "[ ]")
		}
	}

	switch strings.ToLower(status) {
	case "success", "restarted", "up_to_date":
		return c.Success("✓")
	case "warning", "pending", "restart_declined", "busy", "skipped_dev":
		return c.Warning("⚠")
	case "error", "failed":
		return c.Error("✗")
	case "info":
		return c.Info("ℹ")
	default:
		return c.Apply(c.Theme.Pending, "○")
	}
}
