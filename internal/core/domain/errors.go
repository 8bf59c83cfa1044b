package domain

import "errors"

// Domain error kinds. The API layer maps these to HTTP status codes; the core
// raises them at the point of detection and never translates them itself.
var (
	ErrCopyNotFound         = errors.New("book copy not found")
	ErrCardNotFound         = errors.New("library card not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrCopyNotAvailable     = errors.New("copy is not available")
	ErrCopyNotBorrowed      = errors.New("copy is not borrowed")
	ErrCopyNotReservable    = errors.New("copy cannot be reserved")
	ErrCopyNotInMaintenance = errors.New("copy is not in maintenance")
	ErrCopyConflict         = errors.New("copy was modified concurrently")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrBorrowerHasOverdue   = errors.New("borrower has overdue items")
	ErrCardNumberTaken      = errors.New("card number already exists")
	ErrCardNumberExhausted  = errors.New("unable to generate unique card number")
	ErrUserInactive         = errors.New("user is not active")
	ErrForbidden            = errors.New("access forbidden")
	ErrUserExists           = errors.New("user already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
)
