package models

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{TaskStatusAssigned, TaskStatusProofSubmitted, true},
		{TaskStatusAssigned, TaskStatusExpired, true},
		{TaskStatusAssigned, TaskStatusCompleted, false},
		{TaskStatusProofSubmitted, TaskStatusCompleted, true},
		{TaskStatusProofSubmitted, TaskStatusInvalidProof, true},
		{TaskStatusProofSubmitted, TaskStatusAssigned, false},
		{TaskStatusCompleted, TaskStatusInvalidProof, false},
		{TaskStatusInvalidProof, TaskStatusCompleted, false},
		{TaskStatusExpired, TaskStatusAssigned, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTaskIsTerminal(t *testing.T) {
	for _, status := range []string{TaskStatusCompleted, TaskStatusInvalidProof, TaskStatusExpired} {
		task := Task{Status: status}
		if !task.IsTerminal() {
			t.Errorf("expected %s to be terminal", status)
		}
		if task.IsOutstanding() {
			t.Errorf("expected %s not to be outstanding", status)
		}
	}

	for _, status := range []string{TaskStatusAssigned, TaskStatusProofSubmitted} {
		task := Task{Status: status}
		if task.IsTerminal() {
			t.Errorf("expected %s not to be terminal", status)
		}
		if !task.IsOutstanding() {
			t.Errorf("expected %s to be outstanding", status)
		}
	}
}

func TestUserHasActiveSubscription(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"not subscribed", User{IsSubscribed: false, SubscriptionExpiry: &future}, false},
		{"no expiry", User{IsSubscribed: true}, false},
		{"expired", User{IsSubscribed: true, SubscriptionExpiry: &past}, false},
		{"active", User{IsSubscribed: true, SubscriptionExpiry: &future}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.HasActiveSubscription(now); got != tt.want {
				t.Errorf("HasActiveSubscription() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserIsRestricted(t *testing.T) {
	restricted := map[string]bool{
		UserStatusActive: false,
		UserStatusPaused: false,
		UserStatusLocked: true,
		UserStatusBanned: true,
	}
	for status, want := range restricted {
		u := User{Status: status}
		if got := u.IsRestricted(); got != want {
			t.Errorf("status %s: IsRestricted() = %v, want %v", status, got, want)
		}
	}
}

func TestVideoHasWatchLink(t *testing.T) {
	tests := map[string]bool{
		"":                            false,
		"youtube.com/watch?v=abc":     false,
		"https://youtu.be/abc":        true,
		"HTTP://example.com/video":    true,
		"  https://example.com/v  ":   true,
		"ftp://example.com/video.mp4": false,
	}
	for link, want := range tests {
		v := Video{Link: link}
		if got := v.HasWatchLink(); got != want {
			t.Errorf("HasWatchLink(%q) = %v, want %v", link, got, want)
		}
	}
}

func TestVideoDraftNormalize(t *testing.T) {
	d := VideoDraft{
		Title:               "  My video ",
		ThumbnailRef:        " thumb-1 ",
		Link:                "SKIP",
		ProcessInstructions: " watch, like ",
	}
	d.Normalize()

	if d.Title != "My video" {
		t.Errorf("Expected trimmed title, got %q", d.Title)
	}
	if d.ThumbnailRef != "thumb-1" {
		t.Errorf("Expected trimmed thumbnail, got %q", d.ThumbnailRef)
	}
	if d.Link != "" {
		t.Errorf("Expected skipped link to be cleared, got %q", d.Link)
	}
	if d.ProcessInstructions != "watch, like" {
		t.Errorf("Expected trimmed instructions, got %q", d.ProcessInstructions)
	}
}

func TestKnownSetting(t *testing.T) {
	for _, name := range []string{SettingSubscriptionMode, SettingAIModerationMode, SettingSubscriptionPrice} {
		if !KnownSetting(name) {
			t.Errorf("expected %s to be known", name)
		}
	}
	if KnownSetting("dark_mode") {
		t.Error("unexpected known setting dark_mode")
	}
}

func TestValidProofKind(t *testing.T) {
	if !ValidProofKind(ProofKindVideo) || !ValidProofKind(ProofKindPhoto) {
		t.Error("expected video and photo to be valid proof kinds")
	}
	if ValidProofKind("document") {
		t.Error("document should not be a valid proof kind")
	}
}
