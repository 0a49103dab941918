package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the resolved daemon configuration. File values sit under
// environment overrides; the token is env-only and never written to disk.
type Settings struct {
	GatewayURL       string
	RosterPath       string
	LogLevel         string
	ReportInterval   time.Duration
	AttemptBackoff   time.Duration
	ReconnectBackoff time.Duration
	WatchRoster      bool
}

func Default() Settings {
	return Settings{
		RosterPath:     "terminals.csv",
		LogLevel:       "info",
		ReportInterval: 25 * time.Second,
		WatchRoster:    true,
	}
}

type fileSettings struct {
	GatewayURL       string `yaml:"gateway_url"`
	RosterPath       string `yaml:"roster_path"`
	LogLevel         string `yaml:"log_level"`
	ReportInterval   string `yaml:"report_interval"`
	AttemptBackoff   string `yaml:"attempt_backoff"`
	ReconnectBackoff string `yaml:"reconnect_backoff"`
	WatchRoster      *bool  `yaml:"watch_roster"`
}

// LoadFile overlays the yaml settings file on the defaults. Durations are
// written in Go notation ("25s", "500ms").
func LoadFile(path string) (Settings, error) {
	settings := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("read config %s: %w", path, err)
	}
	var file fileSettings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return settings, fmt.Errorf("parse config %s: %w", path, err)
	}

	if file.GatewayURL != "" {
		settings.GatewayURL = file.GatewayURL
	}
	if file.RosterPath != "" {
		settings.RosterPath = file.RosterPath
	}
	if file.LogLevel != "" {
		settings.LogLevel = file.LogLevel
	}
	if file.WatchRoster != nil {
		settings.WatchRoster = *file.WatchRoster
	}
	for _, field := range []struct {
		raw    string
		target *time.Duration
		name   string
	}{
		{file.ReportInterval, &settings.ReportInterval, "report_interval"},
		{file.AttemptBackoff, &settings.AttemptBackoff, "attempt_backoff"},
		{file.ReconnectBackoff, &settings.ReconnectBackoff, "reconnect_backoff"},
	} {
		if field.raw == "" {
			continue
		}
		duration, err := time.ParseDuration(field.raw)
		if err != nil {
			return settings, fmt.Errorf("config %s: bad %s: %w", path, field.name, err)
		}
		if duration <= 0 {
			return settings, fmt.Errorf("config %s: %s must be positive", path, field.name)
		}
		*field.target = duration
	}
	return settings, nil
}
