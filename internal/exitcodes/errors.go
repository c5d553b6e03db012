package exitcodes

import "fmt"

// ErrorWithCode carries the process exit status for a command failure.
// Message is what the user sees; Cause keeps the underlying chain.
type ErrorWithCode struct {
	Code    int
	Message string
	Cause   error
}

func (e *ErrorWithCode) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ErrorWithCode) Unwrap() error { return e.Cause }

func NewError(code int, message string) *ErrorWithCode {
	return &ErrorWithCode{Code: code, Message: message}
}

func NewErrorf(code int, format string, args ...any) *ErrorWithCode {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WrapError attaches code and message to cause.
func WrapError(code int, message string, cause error) *ErrorWithCode {
	return &ErrorWithCode{Code: code, Message: message, Cause: cause}
}

func InvalidArgsError(message string) *ErrorWithCode { return NewError(InvalidArgs, message) }

// PreconditionError reports local state that rules the command out,
// such as a missing backup or log file.
func PreconditionError(message string) *ErrorWithCode { return NewError(PreconditionFailed, message) }

func PreconditionErrorf(format string, args ...any) *ErrorWithCode {
	return NewErrorf(PreconditionFailed, format, args...)
}

// BusyErr reports that a check was dropped because another was running.
func BusyErr(message string) *ErrorWithCode { return NewError(UpdateBusy, message) }
