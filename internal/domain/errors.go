package domain

import "fmt"

// ValidationError is a caller mistake: missing or malformed input, an
// unmapped job type, a location that resolved to nothing. Never retried.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// TransientError wraps a failure that a later retry may resolve, such as a
// timeout, a 5xx, or a rate limit.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure no retry will fix (4xx other than rate
// limit, auth rejection).
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// AmbiguousError marks an external mutation whose outcome is unknown: the
// call was issued but the response never arrived. The effect may or may
// not have been applied, so blind retry is unsafe.
type AmbiguousError struct{ Err error }

func (e *AmbiguousError) Error() string { return fmt.Sprintf("outcome unknown: %v", e.Err) }
func (e *AmbiguousError) Unwrap() error { return e.Err }
