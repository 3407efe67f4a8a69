package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9091
  host: "127.0.0.1"

database:
  host: "testdb"
  port: 5432
  user: "testuser"
  password: "testpass"
  dbname: "testdb"

auth:
  adminIDs: [111, 222]

exchange:
  reviewTimeout: 5m
  maxStrikes: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9091, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "testdb", cfg.Database.Host)
	assert.Equal(t, 5*time.Minute, cfg.Exchange.ReviewTimeout)
	assert.Equal(t, 3, cfg.Exchange.MaxStrikes)
	assert.Equal(t, []int64{111, 222}, cfg.Auth.AdminIDs)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 20*time.Minute, cfg.Exchange.ReviewTimeout)
	assert.Equal(t, 5, cfg.Exchange.MaxVideosPerUser)
	assert.Equal(t, 4, cfg.Exchange.MaxStrikes)
	assert.Equal(t, 3, cfg.Exchange.TrialPeriodDays)
	assert.Equal(t, 30, cfg.Exchange.DefaultSubPrice)
	assert.Equal(t, time.Minute, cfg.Exchange.SweepInterval)
	assert.Equal(t, 30*time.Minute, cfg.Redis.DraftTTL)
	assert.Contains(t, cfg.Moderation.Denylist, "nsfw")
	assert.Equal(t, 30, cfg.Server.UploadsPerHour)
	assert.Equal(t, 5, cfg.Queue.MaxDeliveryAttempts)
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: sqlite\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{Driver: "memory"},
		Exchange: ExchangeConfig{ReviewTimeout: time.Minute, MaxVideosPerUser: 1, MaxStrikes: 1, SweepInterval: time.Minute},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Exchange.ReviewTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestIsAdmin(t *testing.T) {
	auth := AuthConfig{AdminIDs: []int64{42, 7}}

	assert.True(t, auth.IsAdmin(42))
	assert.True(t, auth.IsAdmin(7))
	assert.False(t, auth.IsAdmin(8))
}
