package ui

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pushchain/push-updater/internal/checker"
)

type dialogKeys struct {
	Prev    key.Binding
	Next    key.Binding
	Confirm key.Binding
	First   key.Binding
	Last    key.Binding
	Cancel  key.Binding
}

var dialogKeyMap = dialogKeys{
	Prev: key.NewBinding(
		key.WithKeys("left", "h", "shift+tab"),
		key.WithHelp("←", "previous"),
	),
	Next: key.NewBinding(
		key.WithKeys("right", "l", "tab"),
		key.WithHelp("→", "next"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "select"),
	),
	First: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "first"),
	),
	Last: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "last"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "ctrl+c", "q"),
		key.WithHelp("esc", "close"),
	),
}

var (
	dialogBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("13")).
			Padding(1, 2)

	dialogTitleStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)

	buttonStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("7"))

	activeButtonStyle = buttonStyle.
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("14")).
				Bold(true)

	dialogHelpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).MarginTop(1)
)

// dialogModel is a bubbletea model for a modal with one row of buttons.
// chosen stays -1 when the dialog is closed without an answer.
type dialogModel struct {
	dialog checker.Dialog
	cursor int
	chosen int
	done   bool
}

func newDialogModel(d checker.Dialog) dialogModel {
	return dialogModel{dialog: d, chosen: -1}
}

func (m dialogModel) Init() tea.Cmd { return nil }

func (m dialogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || m.done {
		return m, nil
	}
	n := len(m.dialog.Actions)
	switch {
	case key.Matches(km, dialogKeyMap.Cancel):
		m.done = true
		return m, tea.Quit
	case n == 0:
		return m, nil
	case key.Matches(km, dialogKeyMap.Prev):
		m.cursor = (m.cursor - 1 + n) % n
	case key.Matches(km, dialogKeyMap.Next):
		m.cursor = (m.cursor + 1) % n
	case key.Matches(km, dialogKeyMap.First):
		return m.choose(0)
	case key.Matches(km, dialogKeyMap.Last):
		return m.choose(n - 1)
	case key.Matches(km, dialogKeyMap.Confirm):
		return m.choose(m.cursor)
	}
	return m, nil
}

func (m dialogModel) choose(i int) (tea.Model, tea.Cmd) {
	m.cursor = i
	m.chosen = i
	m.done = true
	return m, tea.Quit
}

func (m dialogModel) View() string {
	if m.done {
		return ""
	}
	buttons := make([]string, 0, len(m.dialog.Actions))
	for i, a := range m.dialog.Actions {
		style := buttonStyle
		if i == m.cursor {
			style = activeButtonStyle
		}
		buttons = append(buttons, style.Render(a.Label))
	}

	var body strings.Builder
	body.WriteString(dialogTitleStyle.Render(m.dialog.Title))
	body.WriteString("\n")
	body.WriteString(m.dialog.Message)
	body.WriteString("\n\n")
	body.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
	body.WriteString("\n")
	body.WriteString(dialogHelpStyle.Render("←/→ move • enter select • esc close"))
	return dialogBoxStyle.Render(body.String()) + "\n"
}

// RunDialog shows d as an inline bubbletea program and returns the index
// of the chosen action, or -1 when it was closed without an answer.
func RunDialog(ctx context.Context, d checker.Dialog, in io.Reader, out io.Writer) (int, error) {
	InitTerminal()
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}
	final, err := tea.NewProgram(newDialogModel(d), opts...).Run()
	ResetTerminalAfterTUI()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return -1, err
	}
	m, ok := final.(dialogModel)
	if !ok {
		return -1, nil
	}
	return m.chosen, nil
}
