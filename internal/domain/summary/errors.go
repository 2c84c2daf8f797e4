package summary

import "errors"

var (
	ErrSummaryNotFound = errors.New("attendance summary not found")

	// ErrJoinDateViolation marks a grouped day that precedes the employee's
	// join date. The day is skipped and counted; it usually means a device
	// token was reassigned and the prior owner's history surfaced.
	ErrJoinDateViolation = errors.New("attendance day precedes employee join date")
)
