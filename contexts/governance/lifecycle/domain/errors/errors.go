package errors

import "errors"

var (
	ErrElectionNotFound  = errors.New("election not found")
	ErrNameRequired      = errors.New("election name is required")
	ErrIllegalTransition = errors.New("illegal election status transition")
	ErrNoCandidates      = errors.New("election needs at least one candidate to start")
	ErrInvalidDates      = errors.New("election end must be after its start")
	ErrEndNotLater       = errors.New("new end must be later than the current end")
	ErrInvalidQuorum     = errors.New("quorum percent must be between 0 and 100")
	ErrInvalidSeats      = errors.New("seats must be positive")
	ErrNotEditable       = errors.New("election setup is editable only while draft")
	ErrCandidateNotFound = errors.New("candidate not found")
)
