package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

type staticMode bool

func (m staticMode) SubscriptionMode() bool { return bool(m) }

func TestStatusGuard(t *testing.T) {
	now := time.Now()
	guard := StatusGuard()

	for _, status := range []string{models.UserStatusActive, models.UserStatusPaused} {
		assert.NoError(t, guard(&models.User{Status: status}, now), status)
	}
	for _, status := range []string{models.UserStatusLocked, models.UserStatusBanned} {
		err := guard(&models.User{Status: status}, now)
		assert.ErrorIs(t, err, ErrAccountRestricted, status)
		assert.Contains(t, err.Error(), status)
	}
}

func TestSubscriptionGuard(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Minute)
	old := now.Add(-30 * 24 * time.Hour)

	tests := []struct {
		name  string
		mode  bool
		trial time.Duration
		user  models.User
		err   error
	}{
		{"mode off", false, 0, models.User{CreatedAt: old}, nil},
		{"subscribed", true, 0, models.User{IsSubscribed: true, SubscriptionExpiry: &future, CreatedAt: old}, nil},
		{"expired", true, 0, models.User{IsSubscribed: true, SubscriptionExpiry: &past, CreatedAt: old}, ErrSubscriptionRequired},
		{"flag without expiry", true, 0, models.User{IsSubscribed: true, CreatedAt: old}, ErrSubscriptionRequired},
		{"never subscribed", true, 0, models.User{CreatedAt: old}, ErrSubscriptionRequired},
		{"within trial", true, 72 * time.Hour, models.User{CreatedAt: now.Add(-time.Hour)}, nil},
		{"trial over", true, 72 * time.Hour, models.User{CreatedAt: now.Add(-73 * time.Hour)}, ErrSubscriptionRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SubscriptionGuard(staticMode(tt.mode), tt.trial)(&tt.user, now)
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestGate_Order(t *testing.T) {
	now := time.Now()
	gate := NewGate(StatusGuard(), SubscriptionGuard(staticMode(true), 0)).
		WithClock(func() time.Time { return now })

	// A banned account without a subscription reports the ban first
	err := gate.Check(&models.User{Status: models.UserStatusBanned, CreatedAt: now.Add(-time.Hour)})
	assert.ErrorIs(t, err, ErrAccountRestricted)
	assert.Equal(t, "account_restricted", Reason(err))

	err = gate.Check(&models.User{Status: models.UserStatusActive, CreatedAt: now.Add(-time.Hour)})
	assert.ErrorIs(t, err, ErrSubscriptionRequired)
	assert.Equal(t, "subscription_required", Reason(err))

	expiry := now.Add(time.Hour)
	assert.NoError(t, gate.Check(&models.User{Status: models.UserStatusActive, IsSubscribed: true, SubscriptionExpiry: &expiry}))
}

func TestTogglePauseStatus(t *testing.T) {
	next, err := TogglePauseStatus(models.UserStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusPaused, next)

	next, err = TogglePauseStatus(models.UserStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, next)

	for _, status := range []string{models.UserStatusLocked, models.UserStatusBanned} {
		_, err := TogglePauseStatus(status)
		assert.ErrorIs(t, err, ErrStatusLocked)
	}
}
