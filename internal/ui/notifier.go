package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pushchain/push-updater/internal/checker"
)

// Prompter abstracts interactive terminal I/O for testability.
type Prompter interface {
	// ReadLine displays the prompt and reads a line of input.
	ReadLine(prompt string) (string, error)
	// IsInteractive returns whether the terminal supports interactive input.
	IsInteractive() bool
}

// DialogRunner shows a dialog and returns the chosen index, -1 for none.
type DialogRunner func(ctx context.Context, d checker.Dialog) (int, error)

// NotifierOptions configures a TerminalNotifier.
type NotifierOptions struct {
	Printer Printer
	// Yes answers every dialog with its first action.
	Yes bool
	// NonInteractive makes unanswered dialogs return checker.ErrNoResponse.
	NonInteractive bool
	// Dialog is the full-screen dialog; nil falls back to Prompter.
	Dialog   DialogRunner
	Prompter Prompter
}

// TerminalNotifier renders checker toasts and dialogs in a terminal, or as
// JSON events when the printer is in a structured format.
type TerminalNotifier struct {
	opts NotifierOptions

	mu sync.Mutex // serializes output from concurrent runs
}

var _ checker.Notifier = (*TerminalNotifier)(nil)

func NewTerminalNotifier(opts NotifierOptions) *TerminalNotifier {
	if opts.Printer.Colors == nil {
		opts.Printer = NewPrinter(opts.Printer.format)
	}
	return &TerminalNotifier{opts: opts}
}

type toastEvent struct {
	Event      string `json:"event"`
	Kind       string `json:"kind"`
	Text       string `json:"text"`
	DurationMS int64  `json:"duration_ms"`
	Time       string `json:"time"`
}

type dialogEvent struct {
	Event   string   `json:"event"`
	Title   string   `json:"title,omitempty"`
	Message string   `json:"message,omitempty"`
	Actions []string `json:"actions,omitempty"`
	Choice  string   `json:"choice,omitempty"`
}

func (n *TerminalNotifier) out() io.Writer {
	if n.opts.Printer.Out == nil {
		return os.Stdout
	}
	return n.opts.Printer.Out
}

// ShowToast prints the toast on its own line. A terminal line does not
// expire, so the duration is only reported in structured output.
func (n *TerminalNotifier) ShowToast(kind checker.ToastKind, text string, duration time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.opts.Printer.IsStructured() {
		n.emit(toastEvent{
			Event:      "toast",
			Kind:       string(kind),
			Text:       text,
			DurationMS: duration.Milliseconds(),
			Time:       time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	if n.opts.Printer.quiet && kind != checker.ToastWarning {
		return
	}
	fmt.Fprintln(n.out(), RenderToast(n.opts.Printer.Colors, kind, text))
}

// ShowConfirmDialog asks for one of d's actions and runs its OnSelect.
func (n *TerminalNotifier) ShowConfirmDialog(ctx context.Context, d checker.Dialog) error {
	if len(d.Actions) == 0 {
		return checker.ErrNoResponse
	}

	structured := n.opts.Printer.IsStructured()
	if structured {
		n.mu.Lock()
		n.emit(dialogEvent{Event: "dialog", Title: d.Title, Message: d.Message, Actions: labels(d)})
		n.mu.Unlock()
	}

	idx, err := n.ask(ctx, d, structured)
	if err == nil && (idx < 0 || idx >= len(d.Actions)) {
		err = checker.ErrNoResponse
	}

	if structured {
		choice := "none"
		if err == nil {
			choice = d.Actions[idx].Label
		}
		n.mu.Lock()
		n.emit(dialogEvent{Event: "dialog_result", Choice: choice})
		n.mu.Unlock()
	}
	if err != nil {
		return err
	}

	if sel := d.Actions[idx].OnSelect; sel != nil {
		sel()
	}
	return nil
}

func (n *TerminalNotifier) ask(ctx context.Context, d checker.Dialog, structured bool) (int, error) {
	if n.opts.Yes {
		if !structured {
			n.mu.Lock()
			n.printDialog(d)
			fmt.Fprintf(n.out(), "  → %s (--yes)\n", d.Actions[0].Label)
			n.mu.Unlock()
		}
		return 0, nil
	}
	// stdout carries JSON events only, so structured output never prompts
	if structured {
		return -1, checker.ErrNoResponse
	}
	if n.opts.NonInteractive {
		n.mu.Lock()
		n.printDialog(d)
		n.mu.Unlock()
		return -1, checker.ErrNoResponse
	}
	if n.opts.Dialog != nil {
		return n.opts.Dialog(ctx, d)
	}
	if n.opts.Prompter != nil && n.opts.Prompter.IsInteractive() {
		return n.promptLine(d)
	}
	return -1, checker.ErrNoResponse
}

func (n *TerminalNotifier) printDialog(d checker.Dialog) {
	c := n.opts.Printer.Colors
	fmt.Fprintln(n.out(), c.Header(" "+d.Title+" "))
	if d.Message != "" {
		fmt.Fprintln(n.out(), "  "+d.Message)
	}
}

func (n *TerminalNotifier) promptLine(d checker.Dialog) (int, error) {
	n.mu.Lock()
	n.printDialog(d)
	opts := make([]string, len(d.Actions))
	for i, a := range d.Actions {
		opts[i] = fmt.Sprintf("[%d] %s", i+1, a.Label)
	}
	n.mu.Unlock()

	answer, err := n.opts.Prompter.ReadLine("  " + strings.Join(opts, "  ") + ": ")
	if err != nil {
		return -1, fmt.Errorf("%w: %v", checker.ErrNoResponse, err)
	}
	return matchAction(d, answer), nil
}

// matchAction maps a typed answer to an action index: a 1-based number,
// a label prefix, or y/n for the first and last action.
func matchAction(d checker.Dialog, answer string) int {
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return -1
	}
	if i, err := strconv.Atoi(answer); err == nil {
		if i >= 1 && i <= len(d.Actions) {
			return i - 1
		}
		return -1
	}
	for i, a := range d.Actions {
		if strings.HasPrefix(strings.ToLower(a.Label), answer) {
			return i
		}
	}
	switch answer {
	case "y", "yes":
		return 0
	case "n", "no":
		return len(d.Actions) - 1
	}
	return -1
}

func labels(d checker.Dialog) []string {
	out := make([]string, len(d.Actions))
	for i, a := range d.Actions {
		out[i] = a.Label
	}
	return out
}

func (n *TerminalNotifier) emit(v any) {
	_ = json.NewEncoder(n.out()).Encode(v)
}
