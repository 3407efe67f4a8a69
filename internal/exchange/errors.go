package exchange

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTaskAvailable means no video can be offered right now. It is an
	// expected outcome, not a fault.
	ErrNoTaskAvailable = errors.New("no task available right now, try again later")

	// ErrNoOwnedVideo is returned when a viewer without an active video
	// asks for work
	ErrNoOwnedVideo = errors.New("add an active video before requesting tasks")

	// ErrNotOwner is returned when someone other than the video owner
	// reviews a proof
	ErrNotOwner = errors.New("only the video owner can review this proof")

	// ErrNotAdmin is returned for admin operations by non-admins
	ErrNotAdmin = errors.New("admin access required")

	// ErrInvalidState is returned when an operation does not fit the
	// current task state
	ErrInvalidState = errors.New("invalid task state")

	// ErrNotFound is returned for stale references
	ErrNotFound = errors.New("not found")

	ErrTaskNotFound  = fmt.Errorf("task %w", ErrNotFound)
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)
	ErrVideoNotFound = fmt.Errorf("video %w", ErrNotFound)

	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")

	// ErrContentRejected is returned when moderation refuses a video
	ErrContentRejected = errors.New("content rejected by moderation")

	// ErrVideoLimitReached is returned when an owner already has the
	// maximum number of active videos
	ErrVideoLimitReached = errors.New("active video limit reached")
)

// AlreadyReviewedError is returned when a review arrives for a task that
// has already left proof_submitted
type AlreadyReviewedError struct {
	TaskID int64
	Status string
}

func (e *AlreadyReviewedError) Error() string {
	return fmt.Sprintf("task %d already reviewed, final status %s", e.TaskID, e.Status)
}

// Unwrap lets errors.Is match ErrInvalidState
func (e *AlreadyReviewedError) Unwrap() error {
	return ErrInvalidState
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
