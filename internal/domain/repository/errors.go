package repository

import "errors"

var (
	// ErrDuplicateRecord is returned when a (session, cycle, symbol) key
	// has already been recorded.
	ErrDuplicateRecord = errors.New("decision record already exists")

	// ErrRecordNotFound is returned for lookups of unknown record keys.
	ErrRecordNotFound = errors.New("decision record not found")

	// ErrSessionLocked is returned when another writer holds the session's
	// knowledge write lock.
	ErrSessionLocked = errors.New("session knowledge write locked")

	// ErrScoringPending is returned when an outcome score is requested
	// before the realized result is known.
	ErrScoringPending = errors.New("outcome scoring pending")

	// ErrOutcomeIncomplete is returned when realized outcome data is not
	// sufficient to score (e.g. position still open).
	ErrOutcomeIncomplete = errors.New("realized outcome incomplete")
)
