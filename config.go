package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	sourceStatic = "static"
	sourceAPI    = "api"
)

type Config struct {
	BotToken    string
	Source      string
	APIBaseURL  string
	APIUsername string
	APIPassword string
	Groups      []string
	HTTPTimeout time.Duration
}

func loadConfig() (Config, error) {
	cfg := Config{
		BotToken:    strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		Source:      strings.ToLower(envOrDefault("SCHEDULE_SOURCE", sourceStatic)),
		APIBaseURL:  envOrDefault("API_BASE_URL", "http://localhost:8080"),
		APIUsername: strings.TrimSpace(os.Getenv("API_USERNAME")),
		APIPassword: strings.TrimSpace(os.Getenv("API_PASSWORD")),
		Groups:      splitList(envOrDefault("GROUPS", "ISP-101,ISP-102")),
		HTTPTimeout: durationEnvOrDefault("HTTP_TIMEOUT", 10*time.Second),
	}
	if cfg.BotToken == "" {
		return Config{}, errors.New("BOT_TOKEN is required")
	}
	switch cfg.Source {
	case sourceStatic:
	case sourceAPI:
		if cfg.APIUsername == "" {
			return Config{}, errors.New("API_USERNAME is required when SCHEDULE_SOURCE=api")
		}
		if cfg.APIPassword == "" {
			return Config{}, errors.New("API_PASSWORD is required when SCHEDULE_SOURCE=api")
		}
	default:
		return Config{}, fmt.Errorf("unknown SCHEDULE_SOURCE: %q", cfg.Source)
	}
	if len(cfg.Groups) == 0 {
		return Config{}, errors.New("GROUPS must list at least one group")
	}
	if cfg.HTTPTimeout <= 0 {
		return Config{}, errors.New("HTTP_TIMEOUT must be positive")
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func durationEnvOrDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
