package models

import (
	"strings"
	"time"
)

// Video lengths accepted from owners, in minutes
const (
	MinVideoLengthMinutes = 1
	MaxVideoLengthMinutes = 5
)

// Video represents a video offered for watch tasks
type Video struct {
	ID                  int64     `json:"id" db:"id"`
	OwnerID             int64     `json:"owner_id" db:"owner_id"`
	Title               string    `json:"title" db:"title"`
	ThumbnailRef        string    `json:"thumbnail_ref" db:"thumbnail_ref"`
	Link                string    `json:"link,omitempty" db:"link"`
	LengthMinutes       int       `json:"length_minutes" db:"length_minutes"`
	ProcessInstructions string    `json:"process_instructions" db:"process_instructions"`
	IsActive            bool      `json:"is_active" db:"is_active"`
	ViewsReceived       int       `json:"views_received" db:"views_received"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

// HasWatchLink reports whether the link is a web URL worth showing to viewers
func (v *Video) HasWatchLink() bool {
	link := strings.ToLower(strings.TrimSpace(v.Link))
	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}

// VideoDraft is the owner-supplied metadata for a new video
type VideoDraft struct {
	Title               string `json:"title" validate:"required,max=200"`
	ThumbnailRef        string `json:"thumbnail_ref" validate:"required,max=512"`
	Link                string `json:"link,omitempty" validate:"omitempty,max=2048"`
	LengthMinutes       int    `json:"length_minutes" validate:"min=1,max=5"`
	ProcessInstructions string `json:"process_instructions" validate:"required,max=2000"`
}

// Normalize trims surrounding whitespace and clears a skipped link
func (d *VideoDraft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.ThumbnailRef = strings.TrimSpace(d.ThumbnailRef)
	d.Link = strings.TrimSpace(d.Link)
	if strings.EqualFold(d.Link, "skip") {
		d.Link = ""
	}
	d.ProcessInstructions = strings.TrimSpace(d.ProcessInstructions)
}
