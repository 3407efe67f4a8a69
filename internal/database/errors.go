package database

import (
	"errors"
	"fmt"
)

// Store errors shared by the Postgres and in-memory implementations
var (
	// ErrNotFound is returned when a targeted row does not exist
	ErrNotFound = errors.New("not found")

	// ErrUserNotFound indicates that the requested user does not exist
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrVideoNotFound indicates that the requested video does not exist
	ErrVideoNotFound = fmt.Errorf("video %w", ErrNotFound)

	// ErrTaskNotFound indicates that the requested task does not exist
	ErrTaskNotFound = fmt.Errorf("task %w", ErrNotFound)

	// ErrNoEligibleVideo is returned by AssignTask when no video can be
	// offered to the viewer
	ErrNoEligibleVideo = errors.New("no eligible video")

	// ErrVideoLimitReached is returned when an owner already has the maximum
	// number of active videos
	ErrVideoLimitReached = errors.New("active video limit reached")

	// ErrInvalidTransition is returned when a task is not in the status a
	// conditional update requires
	ErrInvalidTransition = errors.New("invalid task transition")
)

// TransitionError reports the status a task was actually in when a
// conditional update did not apply
type TransitionError struct {
	TaskID  int64
	Current string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %d is %s", e.TaskID, e.Current)
}

// Unwrap lets errors.Is match ErrInvalidTransition
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
