package models

import (
	"time"
)

// Notification is an outbound message for the chat transport to deliver
type Notification struct {
	ID        string                 `json:"id"`
	UserID    int64                  `json:"user_id"`
	Kind      string                 `json:"kind"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Notification kinds
const (
	NotificationTaskAssigned             = "task_assigned"
	NotificationProofSubmitted           = "proof_submitted"
	NotificationProofAccepted            = "proof_accepted"
	NotificationProofRejected            = "proof_rejected"
	NotificationAutoApprovedViewer       = "auto_approved_viewer"
	NotificationAutoApprovedOwner        = "auto_approved_owner_penalized"
	NotificationOwnerUnreachableApproved = "owner_unreachable_auto_approved"
	NotificationTaskExpired              = "task_expired"
)
