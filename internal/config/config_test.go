package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.local
  user: app
  password: secret
  database: restaurant
rabbitmq:
  host: mq.local
  user: guest
  password: guest
stream:
  keepalive_seconds: 10
  max_lifetime_minutes: 60
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port, "default port applied")
	assert.Equal(t, 5672, cfg.Rabbit.Port)
	assert.Equal(t, 3003, cfg.HTTP.Port)
	assert.Equal(t, 10*time.Second, cfg.Stream.Keepalive())
	assert.Equal(t, time.Hour, cfg.Stream.MaxLifetime())
	assert.Equal(t, 24*time.Hour, cfg.Stream.SnapshotWindow(), "default window applied")
}

func TestLoadIncompleteDatabase(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.local
rabbitmq:
  host: mq.local
  user: guest
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestStreamDefaults(t *testing.T) {
	var s Stream
	assert.Equal(t, 15*time.Second, s.Keepalive())
	assert.Equal(t, 8*time.Hour, s.MaxLifetime())
	assert.Equal(t, 24*time.Hour, s.SnapshotWindow())
}
