package apperrors

import "errors"

// Ledger error taxonomy. Callers branch with errors.Is; usecases wrap these
// with fmt.Errorf("...: %w", ...) to add context.
var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInsufficientAvailable = errors.New("insufficient available quantity")
	ErrInvalidAdjustment     = errors.New("invalid adjustment")
	ErrInvalidState          = errors.New("invalid state")
	ErrConflict              = errors.New("concurrent modification conflict")
)
