// Package settings keeps an in-process mirror of the admin controlled
// settings stored in the database.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/logging"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

var (
	// ErrUnknownSetting is returned for a setting name that is not recognised
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrInvalidValue is returned when a setting value cannot be parsed
	ErrInvalidValue = errors.New("invalid setting value")
)

// Store persists settings
type Store interface {
	ListSettings(ctx context.Context) ([]models.Setting, error)
	SaveSetting(ctx context.Context, setting models.Setting) error
}

// Service mirrors stored settings. The mirror is reloaded from the store
// after every write so readers always see what was persisted.
type Service struct {
	store        Store
	defaultPrice int
	logger       *logging.Logger

	mu     sync.RWMutex
	values map[string]models.Setting
}

// NewService creates a settings service. Call Init before reading.
func NewService(store Store, defaultPrice int, logger *logging.Logger) *Service {
	return &Service{
		store:        store,
		defaultPrice: defaultPrice,
		logger:       logger.WithComponent("settings"),
		values:       make(map[string]models.Setting),
	}
}

func (s *Service) defaults() []models.Setting {
	return []models.Setting{
		{Name: models.SettingSubscriptionMode, IsEnabled: false},
		{Name: models.SettingAIModerationMode, IsEnabled: false},
		{Name: models.SettingSubscriptionPrice, Value: strconv.Itoa(s.defaultPrice)},
	}
}

// Init stores any missing settings with their defaults and loads the mirror
func (s *Service) Init(ctx context.Context) error {
	existing, err := s.store.ListSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to list settings: %w", err)
	}

	have := make(map[string]bool, len(existing))
	for _, setting := range existing {
		have[setting.Name] = true
	}

	for _, setting := range s.defaults() {
		if have[setting.Name] {
			continue
		}
		if err := s.store.SaveSetting(ctx, setting); err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", setting.Name, err)
		}
	}

	return s.Reload(ctx)
}

// Reload replaces the mirror with the stored settings
func (s *Service) Reload(ctx context.Context) error {
	stored, err := s.store.ListSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	values := make(map[string]models.Setting, len(stored))
	for _, setting := range stored {
		values[setting.Name] = setting
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"subscription_mode":  s.SubscriptionMode(),
		"ai_moderation_mode": s.ModerationEnabled(),
	}).Info("Settings loaded")
	return nil
}

// Set writes a setting and reloads the mirror. value is only meaningful for
// subscription_price, which must be a positive integer.
func (s *Service) Set(ctx context.Context, name string, enabled bool, value string) (models.Setting, error) {
	if !models.KnownSetting(name) {
		return models.Setting{}, fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}

	setting := models.Setting{Name: name, IsEnabled: enabled}
	if name == models.SettingSubscriptionPrice {
		price, err := strconv.Atoi(value)
		if err != nil || price <= 0 {
			return models.Setting{}, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidValue, name)
		}
		setting.Value = strconv.Itoa(price)
	}

	if err := s.store.SaveSetting(ctx, setting); err != nil {
		return models.Setting{}, fmt.Errorf("failed to save setting: %w", err)
	}
	if err := s.Reload(ctx); err != nil {
		return models.Setting{}, err
	}
	return setting, nil
}

// Toggle flips a boolean setting
func (s *Service) Toggle(ctx context.Context, name string) (models.Setting, error) {
	if name == models.SettingSubscriptionPrice {
		return models.Setting{}, fmt.Errorf("%w: %s is not a toggle", ErrInvalidValue, name)
	}
	current, _ := s.Get(name)
	return s.Set(ctx, name, !current.IsEnabled, "")
}

// Get returns a setting from the mirror
func (s *Service) Get(name string) (models.Setting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	setting, ok := s.values[name]
	return setting, ok
}

// List returns every mirrored setting sorted by name
func (s *Service) List() []models.Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]models.Setting, 0, len(s.values))
	for _, setting := range s.values {
		list = append(list, setting)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// SubscriptionMode reports whether a subscription is required
func (s *Service) SubscriptionMode() bool {
	setting, _ := s.Get(models.SettingSubscriptionMode)
	return setting.IsEnabled
}

// ModerationEnabled reports whether new videos are screened
func (s *Service) ModerationEnabled() bool {
	setting, _ := s.Get(models.SettingAIModerationMode)
	return setting.IsEnabled
}

// SubscriptionPrice returns the configured price, falling back to the
// default when unset or unparsable
func (s *Service) SubscriptionPrice() int {
	setting, ok := s.Get(models.SettingSubscriptionPrice)
	if !ok {
		return s.defaultPrice
	}
	price, err := strconv.Atoi(setting.Value)
	if err != nil {
		return s.defaultPrice
	}
	return price
}
