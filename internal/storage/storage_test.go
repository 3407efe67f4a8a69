package storage

import (
	"testing"

	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

func TestGetContentType(t *testing.T) {
	tests := []struct {
		filePath string
		wantType string
	}{
		{"thumb.jpg", "image/jpeg"},
		{"THUMB.JPEG", "image/jpeg"},
		{"thumb.png", "image/png"},
		{"thumb.webp", "image/webp"},
		{"proof.mp4", "video/mp4"},
		{"proof.mov", "video/quicktime"},
		{"proof.webm", "video/webm"},
		{"unknown.xyz", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filePath, func(t *testing.T) {
			contentType := getContentType(tt.filePath)
			if contentType != tt.wantType {
				t.Errorf("getContentType(%q) = %q, want %q", tt.filePath, contentType, tt.wantType)
			}
		})
	}
}

func TestMediaKind(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/png", models.ProofKindPhoto},
		{"video/mp4", models.ProofKindVideo},
		{"application/pdf", ""},
		{"application/octet-stream", ""},
	}

	for _, tt := range tests {
		if got := MediaKind(tt.contentType); got != tt.want {
			t.Errorf("MediaKind(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestIsObjectRef(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"thumbnails/1/a.jpg", true},
		{"proofs/2/3/b.mp4", true},
		{"AgACAgIAAxkBAAIB", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsObjectRef(tt.ref); got != tt.want {
			t.Errorf("IsObjectRef(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}
