package attest

import "errors"

var (
	// ErrInvalidDecision marks input that fails structural or range
	// validation. It is reported to the caller and never signed.
	ErrInvalidDecision = errors.New("invalid decision")

	// ErrKeyUnavailable marks signing attempted before the judge key was
	// derived, or after it was zeroed at shutdown.
	ErrKeyUnavailable = errors.New("signing key unavailable")
)
