package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "JSON format to stdout",
			config: Config{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "Console format to stderr",
			config: Config{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "Invalid log level defaults to info",
			config: Config{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "Unwritable file path",
			config: Config{
				Level:  "info",
				Format: "json",
				Output: "/nonexistent-dir/watchswap.log",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to decode log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warn")
	logger.Error("visible error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0]["message"] != "visible warn" {
		t.Errorf("Unexpected first message: %v", entries[0]["message"])
	}
}

func TestLoggerWithTaskFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info")

	logger.WithTaskID(12).WithUserID(34).WithVideoID(56).Info("resolved")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0]["task_id"] != float64(12) {
		t.Errorf("Expected task_id 12, got %v", entries[0]["task_id"])
	}
	if entries[0]["user_id"] != float64(34) {
		t.Errorf("Expected user_id 34, got %v", entries[0]["user_id"])
	}
	if entries[0]["video_id"] != float64(56) {
		t.Errorf("Expected video_id 56, got %v", entries[0]["video_id"])
	}
}

func TestLogTaskEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info")

	logger.LogTaskEvent(7, "auto_approved", "completed", map[string]interface{}{
		"owner_strikes": 2,
	})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0]["event"] != "auto_approved" {
		t.Errorf("Expected event auto_approved, got %v", entries[0]["event"])
	}
	if entries[0]["owner_strikes"] != float64(2) {
		t.Errorf("Expected owner_strikes 2, got %v", entries[0]["owner_strikes"])
	}
}

func TestLogDelivery(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info")

	logger.LogDelivery("proof_accepted", 5, nil)
	logger.LogDelivery("proof_submitted", 6, errors.New("blocked"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "info" {
		t.Errorf("Expected info level, got %v", entries[0]["level"])
	}
	if entries[1]["level"] != "warn" || entries[1]["error"] != "blocked" {
		t.Errorf("Expected warn level with error, got %v", entries[1])
	}
}

func TestLogHTTPRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info")

	logger.LogHTTPRequest("POST", "/api/v1/tasks", "192.168.1.1", 201, 100*time.Millisecond)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["status_code"] != float64(201) {
		t.Errorf("Unexpected HTTP log entries: %v", entries)
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.WithFields(map[string]interface{}{"key": "value"}).Error("discarded")
	logger.LogStorageOperation("upload", "watchswap", "proofs/1", 10, time.Second, nil)
	logger.WithError(errors.New("boom")).Warn("discarded")
	// Should not panic
}

func BenchmarkLogWithFields(b *testing.B) {
	var buf bytes.Buffer
	logger := New(&buf, "info")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		logger.WithFields(map[string]interface{}{
			"key1": "value1",
			"key2": 123,
		}).Info("benchmark message")
	}
}
