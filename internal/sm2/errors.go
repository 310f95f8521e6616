package sm2

import "errors"

// Sentinel errors, checked with errors.Is. Both grade and state errors
// are contract violations, not transient conditions: there is nothing
// to retry.
var (
	ErrInvalidGrade  = errors.New("sm2: grade out of range")
	ErrInvalidState  = errors.New("sm2: card state violates invariants")
	ErrInvalidParams = errors.New("sm2: parameters out of range")
	ErrCardMismatch  = errors.New("sm2: review log belongs to another card")
)
