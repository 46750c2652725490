// Package config loads the YAML application config and timeline documents.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// App is the application configuration.
type App struct {
	Scheduler struct {
		Workers      int           `yaml:"workers"`
		TickInterval time.Duration `yaml:"tick_interval"`
		TimeScale    float64       `yaml:"time_scale"`
	} `yaml:"scheduler"`
	Journal struct {
		Path            string `yaml:"path"`
		BufferSize      int    `yaml:"buffer_size"`
		FlushIntervalMs int    `yaml:"flush_interval_ms"`
	} `yaml:"journal"`
	Snapshot struct {
		Path            string `yaml:"path"`
		IntervalSeconds int    `yaml:"interval_seconds"`
		KeepBackups     int    `yaml:"keep_backups"`
	} `yaml:"snapshot"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
	GRPC struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"grpc"`
	WebSocket struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"websocket"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Bookmarks struct {
		App string `yaml:"app"`
	} `yaml:"bookmarks"`
	// Timeline is the path of the timeline document to load.
	Timeline string `yaml:"timeline"`
}

// Default returns the built-in configuration.
func Default() *App {
	var c App
	c.Scheduler.Workers = 4
	c.Scheduler.TickInterval = 16 * time.Millisecond
	c.Scheduler.TimeScale = 1
	c.Journal.Path = "data/playback.journal"
	c.Journal.BufferSize = 64
	c.Journal.FlushIntervalMs = 200
	c.Snapshot.Path = "data/players.snapshot"
	c.Snapshot.IntervalSeconds = 5
	c.Metrics.Enabled = true
	c.Metrics.Port = 9090
	c.GRPC.Enabled = true
	c.GRPC.Port = 50061
	c.WebSocket.Enabled = true
	c.WebSocket.Addr = ":8081"
	c.Log.Level = "info"
	c.Bookmarks.App = "workclip"
	c.Timeline = "configs/timeline.yaml"
	return &c
}

// LoadApp reads path over the defaults. Sections missing from the file
// keep their default values.
func LoadApp(path string) (*App, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseApp(data)
}

// ParseApp decodes YAML over the defaults.
func ParseApp(data []byte) (*App, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse app config: %w", err)
	}
	if cfg.Scheduler.Workers < 1 {
		cfg.Scheduler.Workers = 1
	}
	if cfg.Scheduler.TickInterval <= 0 {
		return nil, fmt.Errorf("config: scheduler.tick_interval must be positive, got %s", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.TimeScale < 0 {
		return nil, fmt.Errorf("config: scheduler.time_scale must not be negative, got %g", cfg.Scheduler.TimeScale)
	}
	return cfg, nil
}

// JournalFlushInterval is journal.flush_interval_ms as a duration.
func (c *App) JournalFlushInterval() time.Duration {
	return time.Duration(c.Journal.FlushIntervalMs) * time.Millisecond
}

// SnapshotInterval is snapshot.interval_seconds as a duration.
func (c *App) SnapshotInterval() time.Duration {
	return time.Duration(c.Snapshot.IntervalSeconds) * time.Second
}

// YAML renders the effective configuration.
func (c *App) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
