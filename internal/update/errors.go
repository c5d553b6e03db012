package update

import (
	"errors"
	"fmt"
)

// ErrorKind classifies update failures.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota + 1
	KindBackend
	KindStorage
	KindIntegrity
	KindPrecondition
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindBackend:
		return "backend"
	case KindStorage:
		return "storage"
	case KindIntegrity:
		return "integrity"
	case KindPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// Error is an update failure with a kind the CLI maps to an exit code.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return 0
}
