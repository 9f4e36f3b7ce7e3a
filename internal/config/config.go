package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"restaurant-live/internal/common/db"
	"restaurant-live/internal/common/mq"
)

type HTTP struct {
	Port int `yaml:"port"`
}

type Stream struct {
	KeepaliveSeconds   int `yaml:"keepalive_seconds"`    // server keepalive period
	MaxLifetimeMinutes int `yaml:"max_lifetime_minutes"` // forced-expiry ceiling
	SnapshotWindowHrs  int `yaml:"snapshot_window_hours"`
}

func (s Stream) Keepalive() time.Duration {
	if s.KeepaliveSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(s.KeepaliveSeconds) * time.Second
}

func (s Stream) MaxLifetime() time.Duration {
	if s.MaxLifetimeMinutes <= 0 {
		return 8 * time.Hour
	}
	return time.Duration(s.MaxLifetimeMinutes) * time.Minute
}

func (s Stream) SnapshotWindow() time.Duration {
	if s.SnapshotWindowHrs <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.SnapshotWindowHrs) * time.Hour
}

type App struct {
	Database db.Config `yaml:"database"`
	Rabbit   mq.Config `yaml:"rabbitmq"`
	HTTP     HTTP      `yaml:"http"`
	Stream   Stream    `yaml:"stream"`
}

func Load(path string) (App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	var a App
	if err := yaml.Unmarshal(b, &a); err != nil {
		return App{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if a.Database.Port == 0 {
		a.Database.Port = 5432
	}
	if a.Rabbit.Port == 0 {
		a.Rabbit.Port = 5672
	}
	if a.HTTP.Port == 0 {
		a.HTTP.Port = 3003
	}
	if a.Database.Host == "" || a.Database.User == "" || a.Database.Database == "" {
		return App{}, errors.New("database config incomplete")
	}
	if a.Rabbit.Host == "" || a.Rabbit.User == "" {
		return App{}, errors.New("rabbitmq config incomplete")
	}
	return a, nil
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
