package checker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UpdateService is the remote update backend the workflow drives.
type UpdateService interface {
	// CheckForUpdate asks the backend whether a newer manifest exists.
	CheckForUpdate(ctx context.Context) (Availability, error)
	// FetchUpdate downloads and stages the payload found by the last check.
	// It either leaves a complete update pending or nothing at all.
	FetchUpdate(ctx context.Context) error
	// Reload restarts the application on the fetched version. A successful
	// reload normally does not return.
	Reload(ctx context.Context) error
}

// Availability is the outcome of a remote query.
type Availability struct {
	IsAvailable bool
	Manifest    *ManifestRef
}

// ManifestRef identifies a remote update. Its format is owned by the service.
type ManifestRef struct {
	ID      string `json:"id" yaml:"id"`
	Version string `json:"version" yaml:"version"`
}

// ToastKind selects the styling of an ephemeral notification.
type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastWarning ToastKind = "warning"
)

// Action is one button of a dialog. OnSelect may be nil.
type Action struct {
	Label    string
	OnSelect func()
}

// Dialog is a blocking prompt shown to the user.
type Dialog struct {
	Title   string
	Message string
	Actions []Action
}

// Notifier presents toasts and dialogs.
type Notifier interface {
	ShowToast(kind ToastKind, text string, duration time.Duration)
	// ShowConfirmDialog blocks until the user picks an action (whose
	// OnSelect it runs) or the dialog is dismissed. A non-nil error means
	// no action was chosen.
	ShowConfirmDialog(ctx context.Context, d Dialog) error
}

// ErrNoResponse is returned by notifiers that could not collect an answer.
var ErrNoResponse = errors.New("no response from user")

// Outcome is the terminal state of one lifecycle run.
type Outcome int

const (
	OutcomeBusy Outcome = iota
	OutcomeSkippedDev
	OutcomeUpToDate
	OutcomeRestartDeclined
	OutcomeRestarted
	OutcomeFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeBusy:            "busy",
	OutcomeSkippedDev:      "skipped_dev",
	OutcomeUpToDate:        "up_to_date",
	OutcomeRestartDeclined: "restart_declined",
	OutcomeRestarted:       "restarted",
	OutcomeFailed:          "failed",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText lets outcomes render as names in JSON and YAML.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	for o, name := range outcomeNames {
		if name == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// Step names the workflow step that failed.
type Step string

const (
	StepQuery  Step = "query"
	StepFetch  Step = "fetch"
	StepReload Step = "reload"
)

// StepError wraps a collaborator failure with the step it happened in.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// Result describes a finished run.
type Result struct {
	RunID      string       `json:"run_id" yaml:"run_id"`
	Outcome    Outcome      `json:"outcome" yaml:"outcome"`
	Manifest   *ManifestRef `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Err        error        `json:"-" yaml:"-"`
	Error      string       `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
}

// FailedStep returns the step of a failed run, or "" otherwise.
func (r Result) FailedStep() Step {
	var se *StepError
	if errors.As(r.Err, &se) {
		return se.Step
	}
	return ""
}
