package models

import (
	"time"
)

// User represents a creator taking part in the view exchange
type User struct {
	ID                 int64      `json:"id" db:"id"`
	Username           string     `json:"username" db:"username"`
	IsSubscribed       bool       `json:"is_subscribed" db:"is_subscribed"`
	SubscriptionExpiry *time.Time `json:"subscription_expiry,omitempty" db:"subscription_expiry"`
	Strikes            int        `json:"strikes" db:"strikes"`
	Status             string     `json:"status" db:"status"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// UserStatus constants
const (
	UserStatusActive = "active"
	UserStatusPaused = "paused"
	UserStatusLocked = "locked"
	UserStatusBanned = "banned"
)

// ValidUserStatus reports whether status is one of the known user statuses
func ValidUserStatus(status string) bool {
	switch status {
	case UserStatusActive, UserStatusPaused, UserStatusLocked, UserStatusBanned:
		return true
	}
	return false
}

// IsRestricted reports whether the account is barred from protected actions
func (u *User) IsRestricted() bool {
	return u.Status == UserStatusBanned || u.Status == UserStatusLocked
}

// HasActiveSubscription reports whether the user holds a subscription that
// has not expired at now
func (u *User) HasActiveSubscription(now time.Time) bool {
	return u.IsSubscribed && u.SubscriptionExpiry != nil && u.SubscriptionExpiry.After(now)
}

// UserStats is the per-user summary shown on request
type UserStats struct {
	UserID         int64  `json:"user_id"`
	Status         string `json:"status"`
	Strikes        int    `json:"strikes"`
	MaxStrikes     int    `json:"max_strikes"`
	ActiveVideos   int    `json:"active_videos"`
	TasksCompleted int    `json:"tasks_completed"`
	ViewsReceived  int    `json:"views_received"`
}
