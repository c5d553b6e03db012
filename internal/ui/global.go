package ui

// Settings are the process-wide output switches taken from the root
// command's persistent flags.
type Settings struct {
	NoColor bool
	NoEmoji bool
	Quiet   bool // suppress Info and Success lines
}

var settings Settings

// Configure installs s. Call it once, before any output is produced.
func Configure(s Settings) { settings = s }

// NewColorConfigFromGlobal narrows the environment's color support by the
// --no-color and --no-emoji flags.
func NewColorConfigFromGlobal() *ColorConfig {
	c := NewColorConfig()
	c.Enabled = c.Enabled && !settings.NoColor
	c.EmojiEnabled = c.EmojiEnabled && !settings.NoEmoji
	return c
}

// NewPrinterFromGlobal is NewPrinter with the configured settings applied.
func NewPrinterFromGlobal(format string) Printer {
	p := NewPrinter(format)
	p.Colors = NewColorConfigFromGlobal()
	p.quiet = settings.Quiet
	return p
}
