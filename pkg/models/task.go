package models

import (
	"time"
)

// Task assigns one viewer to watch one video and supply proof
type Task struct {
	ID              int64     `json:"id" db:"id"`
	VideoID         int64     `json:"video_id" db:"video_id"`
	ViewerID        int64     `json:"viewer_id" db:"viewer_id"`
	Status          string    `json:"status" db:"status"`
	ProofRef        string    `json:"proof_ref,omitempty" db:"proof_ref"`
	ProofKind       string    `json:"proof_kind,omitempty" db:"proof_kind"`
	RejectionReason string    `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// TaskStatus constants
const (
	TaskStatusAssigned       = "assigned"
	TaskStatusProofSubmitted = "proof_submitted"
	TaskStatusCompleted      = "completed"
	TaskStatusInvalidProof   = "invalid_proof"
	TaskStatusExpired        = "expired"
)

// ProofKind constants
const (
	ProofKindVideo = "video"
	ProofKindPhoto = "photo"
)

// ValidProofKind reports whether kind is an accepted proof media kind
func ValidProofKind(kind string) bool {
	return kind == ProofKindVideo || kind == ProofKindPhoto
}

var taskTransitions = map[string][]string{
	TaskStatusAssigned:       {TaskStatusProofSubmitted, TaskStatusExpired},
	TaskStatusProofSubmitted: {TaskStatusCompleted, TaskStatusInvalidProof, TaskStatusExpired},
}

// CanTransition reports whether a task may move from one status to another.
// Terminal statuses have no outgoing transitions.
func CanTransition(from, to string) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the task has reached a final status
func (t *Task) IsTerminal() bool {
	return len(taskTransitions[t.Status]) == 0
}

// IsOutstanding reports whether the task is still waiting on someone
func (t *Task) IsOutstanding() bool {
	return t.Status == TaskStatusAssigned || t.Status == TaskStatusProofSubmitted
}

// TaskDetails joins a task with its video
type TaskDetails struct {
	Task  Task  `json:"task"`
	Video Video `json:"video"`
}
