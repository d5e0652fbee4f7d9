// Package handlers – HTTP error codes.
//
// Stable, machine-readable codes carried in every ErrorResponse. Generic
// codes mirror HTTP status semantics; domain codes cover business outcomes
// a status alone cannot convey (a failed generation vs. any other 500, an
// answer that exists but was not stored).
package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeForbidden   = "forbidden"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodeAnswerFailed     = "answer_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
