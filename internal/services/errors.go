package services

import "errors"

// ===== ENGINE ERROR TAXONOMY =====

var (
	// Not-found class: the identifier does not resolve. Surfaced to the
	// caller, never retried.
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrQuestionNotFound   = errors.New("question not found in assessment")
	ErrOptionNotFound     = errors.New("option not found in question")
	ErrSessionNotFound    = errors.New("no session for user and assessment")
	ErrAttemptNotFound    = errors.New("attempt not found")

	// ErrAssessmentNotOpen means the catalog has not published the
	// assessment for taking.
	ErrAssessmentNotOpen = errors.New("assessment is not open for attempts")

	// ErrSessionExpired means the operation arrived after expires_at. The
	// caller must start again; the engine never silently extends a window.
	ErrSessionExpired = errors.New("session has expired")

	// ErrAttemptLimitExceeded is terminal for the user on that assessment.
	ErrAttemptLimitExceeded = errors.New("maximum attempts exceeded")

	// ErrCapacityExceeded means the concurrent-taker cap is full. The
	// caller should retry later.
	ErrCapacityExceeded = errors.New("assessment capacity exceeded")

	// ErrConcurrentModification means an atomic conditional write lost its
	// race; the winning write already established valid state and the
	// losing caller should retry the whole operation.
	ErrConcurrentModification = errors.New("concurrent modification, retry the operation")
)

// IsNotFound reports whether err belongs to the not-found class.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssessmentNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrOptionNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrAttemptNotFound)
}

// IsConflict reports whether err is a state conflict the caller can act on.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrAttemptLimitExceeded) ||
		errors.Is(err, ErrAssessmentNotOpen) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsCapacity reports whether err is the retry-later capacity refusal.
func IsCapacity(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}
