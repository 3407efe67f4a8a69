// Package access decides whether an account may perform protected actions.
package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

var (
	// ErrAccountRestricted is returned for banned or locked accounts
	ErrAccountRestricted = errors.New("account restricted")

	// ErrSubscriptionRequired is returned when subscription mode is on and
	// the account has no active subscription
	ErrSubscriptionRequired = errors.New("subscription required")

	// ErrStatusLocked is returned when a user tries to pause or resume an
	// account whose status only an admin may change
	ErrStatusLocked = errors.New("account status can only be changed by an admin")
)

// Guard is a predicate over an account. A nil result lets the request
// through.
type Guard func(user *models.User, now time.Time) error

// ModeSource reports whether subscription mode is currently on
type ModeSource interface {
	SubscriptionMode() bool
}

// StatusGuard refuses banned and locked accounts
func StatusGuard() Guard {
	return func(user *models.User, now time.Time) error {
		if user.IsRestricted() {
			return fmt.Errorf("%w: account is %s", ErrAccountRestricted, user.Status)
		}
		return nil
	}
}

// SubscriptionGuard requires an unexpired subscription while subscription
// mode is on. Accounts younger than trial are let through.
func SubscriptionGuard(mode ModeSource, trial time.Duration) Guard {
	return func(user *models.User, now time.Time) error {
		if !mode.SubscriptionMode() {
			return nil
		}
		if user.HasActiveSubscription(now) {
			return nil
		}
		if trial > 0 && now.Sub(user.CreatedAt) < trial {
			return nil
		}
		return ErrSubscriptionRequired
	}
}

// Gate runs guards in order and stops at the first refusal
type Gate struct {
	guards []Guard
	now    func() time.Time
}

// NewGate creates a gate from guards
func NewGate(guards ...Guard) *Gate {
	return &Gate{guards: guards, now: time.Now}
}

// WithClock overrides the gate's clock
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Check applies every guard to user
func (g *Gate) Check(user *models.User) error {
	now := g.now()
	for _, guard := range g.guards {
		if err := guard(user, now); err != nil {
			metrics.RecordAccessDenied(Reason(err))
			return err
		}
	}
	return nil
}

// Reason returns a short machine readable reason for a gate error
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrAccountRestricted):
		return "account_restricted"
	case errors.Is(err, ErrSubscriptionRequired):
		return "subscription_required"
	case errors.Is(err, ErrStatusLocked):
		return "status_locked"
	default:
		return "unknown"
	}
}

// TogglePauseStatus returns the status a self-service pause toggle moves
// an account to. Only active and paused accounts may toggle.
func TogglePauseStatus(current string) (string, error) {
	switch current {
	case models.UserStatusActive:
		return models.UserStatusPaused, nil
	case models.UserStatusPaused:
		return models.UserStatusActive, nil
	default:
		return "", fmt.Errorf("%w: account is %s", ErrStatusLocked, current)
	}
}
