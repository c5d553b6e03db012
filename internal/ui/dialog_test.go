package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pushchain/push-updater/internal/checker"
)

func twoActions() checker.Dialog {
	return checker.Dialog{
		Title:   "Update ready",
		Message: "Restart now?",
		Actions: []checker.Action{{Label: "Restart"}, {Label: "Later"}},
	}
}

func press(m dialogModel, keys ...tea.KeyMsg) (dialogModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(dialogModel)
	}
	return m, cmd
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestDialogModel_Keys(t *testing.T) {
	tests := []struct {
		name       string
		keys       []tea.KeyMsg
		wantChosen int
		wantDone   bool
	}{
		{"enter picks first", []tea.KeyMsg{{Type: tea.KeyEnter}}, 0, true},
		{"right then enter", []tea.KeyMsg{{Type: tea.KeyRight}, {Type: tea.KeyEnter}}, 1, true},
		{"wraps around", []tea.KeyMsg{{Type: tea.KeyRight}, {Type: tea.KeyRight}, {Type: tea.KeyEnter}}, 0, true},
		{"left wraps to last", []tea.KeyMsg{{Type: tea.KeyLeft}, {Type: tea.KeyEnter}}, 1, true},
		{"y shortcut", []tea.KeyMsg{runeKey('y')}, 0, true},
		{"n shortcut", []tea.KeyMsg{runeKey('n')}, 1, true},
		{"esc closes", []tea.KeyMsg{{Type: tea.KeyEsc}}, -1, true},
		{"ctrl+c closes", []tea.KeyMsg{{Type: tea.KeyCtrlC}}, -1, true},
		{"moving alone", []tea.KeyMsg{{Type: tea.KeyRight}}, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := press(newDialogModel(twoActions()), tt.keys...)
			if m.chosen != tt.wantChosen || m.done != tt.wantDone {
				t.Errorf("chosen=%d done=%v, want %d %v", m.chosen, m.done, tt.wantChosen, tt.wantDone)
			}
			if tt.wantDone && cmd == nil {
				t.Error("expected quit command")
			}
		})
	}
}

func TestDialogModel_IgnoresKeysAfterDone(t *testing.T) {
	m, _ := press(newDialogModel(twoActions()), runeKey('y'), runeKey('n'))
	if m.chosen != 0 {
		t.Errorf("chosen = %d, want 0", m.chosen)
	}
}

func TestDialogModel_View(t *testing.T) {
	m := newDialogModel(twoActions())
	view := m.View()
	for _, want := range []string{"Update ready", "Restart now?", "Restart", "Later", "esc close"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.View() != "" {
		t.Error("view should be empty once answered")
	}
}
