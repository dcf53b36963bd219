package apperrors

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrSessionClosed       = errors.New("session ledger is closed")
	ErrBackwardsTime       = errors.New("event starts before the current session")
	ErrImpossibleState     = errors.New("impossible state")
	ErrNegativeDuration    = errors.New("negative duration")
	ErrDatabaseUnavailable = errors.New("database unavailable")
	ErrTrackerUnreachable  = errors.New("tracker unreachable")
)

// IsInvariant reports whether err is a fatal invariant violation. The host is
// expected to exit so a supervisor can restart it cleanly.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrBackwardsTime) ||
		errors.Is(err, ErrImpossibleState) ||
		errors.Is(err, ErrNegativeDuration)
}

// IsPermanent reports whether retrying err cannot help.
func IsPermanent(err error) bool {
	return IsInvariant(err) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDatabaseUnavailable)
}
