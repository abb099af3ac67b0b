package model

import (
	"errors"
	"fmt"
)

// Error categories. Callers may match either a category or one of the
// specific errors below, which wrap a category.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOutOfRange        = errors.New("out of range")
	ErrInvalidInput      = errors.New("invalid input")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

var (
	// User errors
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// Match errors
	ErrMatchNotFound  = fmt.Errorf("match %w", ErrNotFound)
	ErrNotHost        = fmt.Errorf("%w: caller is not the match host", ErrForbidden)
	ErrNotParticipant = fmt.Errorf("%w: caller is not a match participant", ErrForbidden)
	ErrInvalidHole    = fmt.Errorf("hole number %w", ErrOutOfRange)
	ErrNegativeScore  = fmt.Errorf("score value %w", ErrOutOfRange)
	ErrInvalidHoles   = fmt.Errorf("%w: number of holes must be 9 or 18", ErrInvalidInput)
	ErrMissingTitle   = fmt.Errorf("%w: title is required", ErrInvalidInput)

	// Result errors
	ErrResultNotFound = fmt.Errorf("match result %w", ErrNotFound)
	ErrResultExists   = errors.New("match result already exists")

	// Points errors
	ErrLedgerEntryNotFound = fmt.Errorf("points ledger entry %w", ErrNotFound)
	ErrAlreadyAwarded      = errors.New("points already awarded for match")
	ErrAwardIncomplete     = errors.New("points award incomplete")
)
