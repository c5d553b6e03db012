package exitcodes

import (
	"errors"

	"github.com/pushchain/push-updater/internal/update"
)

// Standard exit codes for push-updater
const (
	// Success indicates successful command completion
	Success = 0

	// GeneralError indicates a general/unknown error
	GeneralError = 1

	// InvalidArgs indicates invalid command-line arguments or flags
	InvalidArgs = 2

	// PreconditionFailed indicates a precondition was not met
	// (e.g., nothing to fetch, no backup to roll back to)
	PreconditionFailed = 3

	// NetworkError indicates network/connectivity failure
	// (e.g., release server unreachable, timeout, DNS failure)
	NetworkError = 4

	// ProcessError indicates the application could not be restarted
	ProcessError = 5

	// ValidationError indicates validation failure
	// (e.g., invalid config, checksum mismatch, corrupt archive)
	ValidationError = 6

	// StorageError indicates the binary or state directory could not be written
	StorageError = 7

	// UpdateBusy indicates another update check was already running
	UpdateBusy = 75
)

// CodeForError returns the appropriate exit code for an error.
// An ErrorWithCode anywhere in the chain wins; otherwise update errors are
// mapped by kind, and everything else is a GeneralError.
func CodeForError(err error) int {
	if err == nil {
		return Success
	}

	var ec *ErrorWithCode
	if errors.As(err, &ec) {
		return ec.Code
	}

	if code, ok := codeForKind(update.KindOf(err)); ok {
		return code
	}
	return GeneralError
}

func codeForKind(kind update.ErrorKind) (int, bool) {
	switch kind {
	case update.KindNetwork, update.KindBackend:
		return NetworkError, true
	case update.KindStorage:
		return StorageError, true
	case update.KindIntegrity:
		return ValidationError, true
	case update.KindPrecondition:
		return PreconditionFailed, true
	default:
		return 0, false
	}
}
