package models

// Setting is a process-wide admin controlled value
type Setting struct {
	Name      string `json:"name" db:"name"`
	IsEnabled bool   `json:"is_enabled" db:"is_enabled"`
	Value     string `json:"value,omitempty" db:"value"`
}

// Setting names
const (
	SettingSubscriptionMode  = "subscription_mode"
	SettingAIModerationMode  = "ai_moderation_mode"
	SettingSubscriptionPrice = "subscription_price"
)

// KnownSetting reports whether name is a recognised setting
func KnownSetting(name string) bool {
	switch name {
	case SettingSubscriptionMode, SettingAIModerationMode, SettingSubscriptionPrice:
		return true
	}
	return false
}
