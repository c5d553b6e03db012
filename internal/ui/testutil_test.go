package ui

import "bytes"

func plainColors() *ColorConfig {
	return &ColorConfig{Enabled: false, EmojiEnabled: false, Theme: DefaultTheme()}
}

func testPrinter(format string) (Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	p := NewPrinter(format)
	p.Out = &buf
	p.Colors = plainColors()
	return p, &buf
}
