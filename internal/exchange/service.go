// Package exchange implements the watch-task exchange: task allocation, the
// proof review lifecycle and the reputation effects that follow from it.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/access"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/config"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/database"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/logging"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/moderation"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/notify"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/storage"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// Store is the persistence the exchange needs. database.Repository and
// database.MemoryStore both satisfy it.
type Store interface {
	Health(ctx context.Context) error

	GetOrCreateUser(ctx context.Context, id int64, username string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	SetUserStatus(ctx context.Context, id int64, status string) (*models.User, error)
	SetSubscription(ctx context.Context, id int64, expiry time.Time) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	UserStats(ctx context.Context, id int64) (*models.UserStats, error)

	CreateVideo(ctx context.Context, video *models.Video, maxActive int) error
	GetVideo(ctx context.Context, id int64) (*models.Video, error)
	ListVideosByOwner(ctx context.Context, ownerID int64) ([]*models.Video, error)
	CountActiveVideos(ctx context.Context, ownerID int64) (int, error)
	SetVideoActive(ctx context.Context, ownerID, videoID int64, active bool) (*models.Video, error)

	AssignTask(ctx context.Context, viewerID int64) (*models.TaskDetails, error)
	GetTask(ctx context.Context, id int64) (*models.TaskDetails, error)
	SubmitProof(ctx context.Context, taskID, viewerID int64, proofRef, proofKind string) (*models.TaskDetails, error)
	ResolveTask(ctx context.Context, res database.Resolution) (*database.ResolvedTask, error)
	ExpireOutstandingTasks(ctx context.Context, userID int64) ([]*models.TaskDetails, error)
	ListTasksAwaitingReview(ctx context.Context) ([]*models.Task, error)
	PendingReviewForOwner(ctx context.Context, ownerID int64) (*models.TaskDetails, error)
}

// Timer arms and disarms the review timeout of a task
type Timer interface {
	Schedule(delay time.Duration, taskID int64)
	Cancel(taskID int64) bool
}

// Settings is the live settings view plus the admin write path
type Settings interface {
	ModerationEnabled() bool
	Set(ctx context.Context, name string, enabled bool, value string) (models.Setting, error)
}

// Media resolves stored media to URLs and removes an account's media
type Media interface {
	PresignedURL(ctx context.Context, objectName string) (string, error)
	DeleteUserMedia(ctx context.Context, userID int64) error
}

// Config holds the exchange rules
type Config struct {
	ReviewTimeout    time.Duration
	MaxVideosPerUser int
	MaxStrikes       int
	AdminIDs         []int64
}

// ConfigFrom extracts the exchange rules from the application config
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ReviewTimeout:    cfg.Exchange.ReviewTimeout,
		MaxVideosPerUser: cfg.Exchange.MaxVideosPerUser,
		MaxStrikes:       cfg.Exchange.MaxStrikes,
		AdminIDs:         cfg.Auth.AdminIDs,
	}
}

// Dependencies are the collaborators of a Service. Media may be nil.
type Dependencies struct {
	Store    Store
	Timers   Timer
	Notifier notify.Notifier
	Gate     *access.Gate
	Settings Settings
	Scanner  *moderation.Scanner
	Media    Media
	Logger   *logging.Logger
}

// Service is the exchange core
type Service struct {
	store    Store
	timers   Timer
	notifier notify.Notifier
	gate     *access.Gate
	settings Settings
	scanner  *moderation.Scanner
	media    Media
	validate *validator.Validate
	cfg      Config
	admins   map[int64]bool
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates an exchange service
func NewService(deps Dependencies, cfg Config) *Service {
	admins := make(map[int64]bool, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = true
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Service{
		store:    deps.Store,
		timers:   deps.Timers,
		notifier: deps.Notifier,
		gate:     deps.Gate,
		settings: deps.Settings,
		scanner:  deps.Scanner,
		media:    deps.Media,
		validate: validator.New(),
		cfg:      cfg,
		admins:   admins,
		logger:   logger.WithComponent("exchange"),
		now:      time.Now,
	}
}

// WithClock overrides the service clock
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// MaxStrikes returns the configured strike threshold
func (s *Service) MaxStrikes() int {
	return s.cfg.MaxStrikes
}

// IsAdmin reports whether userID is a configured admin
func (s *Service) IsAdmin(userID int64) bool {
	return s.admins[userID]
}

// Health checks the store
func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

// authorize loads a user and runs the access gate
func (s *Service) authorize(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := s.gate.Check(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) requireAdmin(actorID int64) error {
	if !s.IsAdmin(actorID) {
		return ErrNotAdmin
	}
	return nil
}

// send queues a notification. Delivery failures are logged by the
// notifier and never reach the caller.
func (s *Service) send(ctx context.Context, userID int64, kind string, payload map[string]interface{}) {
	_ = s.notifier.Notify(ctx, notify.New(userID, kind, payload))
}

// MediaURL returns a link for a media reference. Object storage refs are
// presigned; anything else is a transport file id and returned as is.
func (s *Service) MediaURL(ctx context.Context, ref string) string {
	if s.media == nil || !storage.IsObjectRef(ref) {
		return ref
	}
	url, err := s.media.PresignedURL(ctx, ref)
	if err != nil {
		s.logger.WithError(err).WithField("ref", ref).Warn("Failed to presign media")
		return ref
	}
	return url
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, database.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, database.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, database.ErrVideoNotFound):
		return ErrVideoNotFound
	case errors.Is(err, database.ErrVideoLimitReached):
		return ErrVideoLimitReached
	}

	var te *database.TransitionError
	if errors.As(err, &te) {
		return fmt.Errorf("%w: task %d is %s", ErrInvalidState, te.TaskID, te.Current)
	}
	return err
}
