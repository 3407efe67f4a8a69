package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/access"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/tracing"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// RegisterUser returns the user with id, creating it on first contact
func (s *Service) RegisterUser(ctx context.Context, id int64, username string) (*models.User, error) {
	if id <= 0 {
		return nil, validationError("user id must be positive")
	}
	user, err := s.store.GetOrCreateUser(ctx, id, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}

// Stats returns the reputation summary of a user
func (s *Service) Stats(ctx context.Context, userID int64) (*models.UserStats, error) {
	stats, err := s.store.UserStats(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	stats.MaxStrikes = s.cfg.MaxStrikes
	return stats, nil
}

// TogglePause flips a user between active and paused
func (s *Service) TogglePause(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	next, err := access.TogglePauseStatus(user.Status)
	if err != nil {
		return nil, err
	}

	user, err = s.store.SetUserStatus(ctx, userID, next)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.WithUserID(userID).WithField("status", next).Info("User toggled pause")
	return user, nil
}

// CanAddVideo checks that the owner may add another video. Drafts call it
// before the first step.
func (s *Service) CanAddVideo(ctx context.Context, ownerID int64) error {
	if _, err := s.authorize(ctx, ownerID); err != nil {
		return err
	}

	active, err := s.store.CountActiveVideos(ctx, ownerID)
	if err != nil {
		return err
	}
	if active >= s.cfg.MaxVideosPerUser {
		return ErrVideoLimitReached
	}
	return nil
}

// AddVideo validates, moderates and stores a new active video
func (s *Service) AddVideo(ctx context.Context, ownerID int64, draft models.VideoDraft) (video *models.Video, err error) {
	ctx, finish := tracing.Trace(ctx, "exchange.add_video", map[string]interface{}{"owner_id": ownerID})
	defer func() { finish(err) }()

	if _, err = s.authorize(ctx, ownerID); err != nil {
		return nil, err
	}

	draft.Normalize()
	if err = s.validate.Struct(draft); err != nil {
		return nil, validationError("%s", describeValidation(err))
	}

	if s.settings != nil && s.settings.ModerationEnabled() && s.scanner != nil {
		if term, flagged := s.scanner.Match(draft.Title, draft.ProcessInstructions); flagged {
			metrics.ModerationRejectionsTotal.Inc()
			s.logger.WithUserID(ownerID).WithField("term", term).Info("Video rejected by moderation")
			return nil, ErrContentRejected
		}
	}

	video = &models.Video{
		OwnerID:             ownerID,
		Title:               draft.Title,
		ThumbnailRef:        draft.ThumbnailRef,
		Link:                draft.Link,
		LengthMinutes:       draft.LengthMinutes,
		ProcessInstructions: draft.ProcessInstructions,
		IsActive:            true,
	}
	if err = s.store.CreateVideo(ctx, video, s.cfg.MaxVideosPerUser); err != nil {
		return nil, mapStoreError(err)
	}
	metrics.VideosAddedTotal.Inc()

	s.logger.WithUserID(ownerID).WithVideoID(video.ID).Info("Video added")
	return video, nil
}

// ListVideos returns the owner's videos, newest first
func (s *Service) ListVideos(ctx context.Context, ownerID int64) ([]*models.Video, error) {
	videos, err := s.store.ListVideosByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []*models.Video{}
	}
	return videos, nil
}

// SetVideoActive shows or hides one of the owner's videos. Reactivating
// counts against the active video limit.
func (s *Service) SetVideoActive(ctx context.Context, ownerID, videoID int64, active bool) (*models.Video, error) {
	video, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if video.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	if active && !video.IsActive {
		count, err := s.store.CountActiveVideos(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if count >= s.cfg.MaxVideosPerUser {
			return nil, ErrVideoLimitReached
		}
	}

	video, err = s.store.SetVideoActive(ctx, ownerID, videoID, active)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return video, nil
}

// UpdateSetting changes a global setting
func (s *Service) UpdateSetting(ctx context.Context, actorID int64, name string, enabled bool, value string) (models.Setting, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return models.Setting{}, err
	}

	setting, err := s.settings.Set(ctx, name, enabled, value)
	if err != nil {
		return models.Setting{}, err
	}
	s.logger.WithUserID(actorID).WithFields(map[string]interface{}{
		"setting": name,
		"enabled": enabled,
		"value":   value,
	}).Info("Setting updated")
	return setting, nil
}

// SetUserStatus lets an admin lock, ban or reactivate an account
func (s *Service) SetUserStatus(ctx context.Context, actorID, userID int64, status string) (*models.User, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}
	if !models.ValidUserStatus(status) {
		return nil, validationError("unknown status %q", status)
	}

	user, err := s.store.SetUserStatus(ctx, userID, status)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.WithUserID(userID).WithField("status", status).WithField("admin_id", actorID).Info("User status changed")
	return user, nil
}

// GrantSubscription extends a user's subscription by days, counting from
// the current expiry when it is still in the future
func (s *Service) GrantSubscription(ctx context.Context, actorID, userID int64, days int) (*models.User, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, validationError("days must be positive")
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	start := s.now()
	if user.HasActiveSubscription(start) {
		start = *user.SubscriptionExpiry
	}
	expiry := start.Add(time.Duration(days) * 24 * time.Hour)

	user, err = s.store.SetSubscription(ctx, userID, expiry)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.WithUserID(userID).WithField("expiry", expiry).Info("Subscription granted")
	return user, nil
}

// RemoveAccount deletes a user. Outstanding tasks touching the user are
// expired first, their timers disarmed and the other party told.
func (s *Service) RemoveAccount(ctx context.Context, actorID, userID int64) (err error) {
	ctx, finish := tracing.Trace(ctx, "exchange.remove_account", map[string]interface{}{"user_id": userID})
	defer func() { finish(err) }()

	if err = s.requireAdmin(actorID); err != nil {
		return err
	}
	if _, err = s.store.GetUser(ctx, userID); err != nil {
		return mapStoreError(err)
	}

	expired, err := s.store.ExpireOutstandingTasks(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to expire tasks: %w", err)
	}
	metrics.TasksExpiredTotal.Add(float64(len(expired)))

	for _, d := range expired {
		s.timers.Cancel(d.Task.ID)

		counterpart := d.Task.ViewerID
		if counterpart == userID {
			counterpart = d.Video.OwnerID
		}
		s.send(ctx, counterpart, models.NotificationTaskExpired, map[string]interface{}{
			"task_id": d.Task.ID,
			"title":   d.Video.Title,
		})
	}

	if s.media != nil {
		if err := s.media.DeleteUserMedia(ctx, userID); err != nil {
			s.logger.WithUserID(userID).WithError(err).Warn("Failed to delete user media")
		}
	}

	if err = s.store.DeleteUser(ctx, userID); err != nil {
		return mapStoreError(err)
	}
	s.logger.WithUserID(userID).WithField("expired_tasks", len(expired)).Info("Account removed")
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "min", "max":
			parts = append(parts, fmt.Sprintf("%s must be %s %s", fe.Field(), bound(fe.Tag()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(parts, "; ")
}

func bound(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}
