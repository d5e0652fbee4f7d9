// Package services defines the business logic of the tutoring pipeline:
// context assembly, orchestration of the downstream services, decision
// heuristics, history listing, and feedback. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import "errors"

var (
	// ErrStudentNotFound indicates that the student identity could not be
	// resolved. It aborts an orchestration before any external service is
	// called.
	ErrStudentNotFound = errors.New("student not found")

	// ErrEmptyQuery is returned when a chat request carries an empty query.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrQueryTooLong is returned when a query exceeds the configured
	// maximum length.
	ErrQueryTooLong = errors.New("query too long")

	// ErrGenerationFailed wraps any failure of the generation service
	// (timeout, transport error, non-2xx, unparseable body). It is the only
	// externally-fatal failure once the context is built.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrExchangeNotSaved indicates the answer was computed but could not be
	// durably persisted. Callers receive the computed result alongside this
	// error and should treat it as "answer available, not guaranteed stored".
	ErrExchangeNotSaved = errors.New("exchange not saved")

	// ErrConversationNotFound indicates that no conversation exists yet for
	// the requested (student, subject) pair.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidFeedback is returned when a feedback value is outside the
	// allowed set (currently -1 or 1).
	ErrInvalidFeedback = errors.New("feedback value must be -1 or 1")

	// ErrForbiddenFeedback is returned when a student attempts to rate a
	// message that is not an assistant answer.
	ErrForbiddenFeedback = errors.New("cannot leave feedback on this message")

	// ErrDuplicateFeedback is returned when a student rates the same message
	// twice.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)
