package checker

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestForLocale(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{"", English().UpToDate},
		{"en-US", English().UpToDate},
		{"zh", Chinese().UpToDate},
		{"zh-CN", Chinese().UpToDate},
		{"ZH_cn", Chinese().UpToDate},
		{"zhx", English().UpToDate},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			if got := ForLocale(tt.locale).UpToDate; got != tt.want {
				t.Errorf("ForLocale(%q).UpToDate = %q, want %q", tt.locale, got, tt.want)
			}
		})
	}
}

func TestMessagesWithDefaults(t *testing.T) {
	m := Messages{UpToDate: "custom"}.withDefaults()
	if m.UpToDate != "custom" {
		t.Errorf("UpToDate overwritten: %q", m.UpToDate)
	}
	if m.RestartAction != English().RestartAction {
		t.Errorf("RestartAction = %q, want default", m.RestartAction)
	}
	if !strings.Contains(m.FailedMessage, "%s") {
		t.Errorf("FailedMessage lost its verb: %q", m.FailedMessage)
	}
}

func TestOutcomeNames(t *testing.T) {
	for o, name := range outcomeNames {
		got, err := ParseOutcome(name)
		if err != nil || got != o {
			t.Errorf("ParseOutcome(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseOutcome("nope"); err == nil {
		t.Error("expected error for unknown outcome")
	}
	if s := Outcome(99).String(); s != "outcome(99)" {
		t.Errorf("String() = %q", s)
	}
}

func TestResultJSON(t *testing.T) {
	b, err := json.Marshal(Result{RunID: "r1", Outcome: OutcomeRestartDeclined})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"outcome":"restart_declined"`) {
		t.Errorf("json = %s", b)
	}
}
