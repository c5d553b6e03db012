package main

import "github.com/pushchain/push-updater/internal/ui"

func main() {
	// Must run before any charmbracelet code queries the terminal.
	ui.InitTerminal()

	Execute()
}
