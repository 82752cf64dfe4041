/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/owlclaw/agentcore/internal/memory"
	"github.com/owlclaw/agentcore/internal/owlhub"
)

// Config composes the three subsystems' own configuration into the single
// set of knobs this binary's entrypoint needs.
type Config struct {
	Memory  memory.Config
	Webhook WebhookConfig
	Hub     owlhub.HubClientConfig

	WebhookListenAddr string
	LifecycleCronSpec string // empty disables the memory lifecycle sweep
	SkillRepositories string // comma-separated paths crawled to (re)build the hub index at startup
	StatisticsDSN     string // empty disables durable statistics persistence
}

// WebhookConfig holds the webhook gateway knobs not already owned by
// GatewayConfig (addresses and wiring choices the manager/validator need).
type WebhookConfig struct {
	BaseURL    string
	TokenBytes int
}

// LoadConfig reads the Memory Engine config file named by MEMORY_CONFIG_PATH
// (if any) and overlays the remaining subsystems' settings from environment
// variables, matching internal/memory's own env > file > defaults priority.
func LoadConfig() (Config, error) {
	memCfg, err := memory.Load(os.Getenv("MEMORY_CONFIG_PATH"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Memory:            memCfg,
		WebhookListenAddr: envOrDefault("WEBHOOK_LISTEN_ADDR", ":9443"),
		LifecycleCronSpec: os.Getenv("MEMORY_LIFECYCLE_CRON"),
		SkillRepositories: os.Getenv("OWLHUB_SKILL_REPOSITORIES"),
		StatisticsDSN:     os.Getenv("OWLHUB_STATISTICS_MYSQL_DSN"),
		Hub: owlhub.HubClientConfig{
			IndexURL:   envOrDefault("OWLHUB_INDEX_URL", "owlhub_index.json"),
			InstallDir: envOrDefault("OWLHUB_INSTALL_DIR", "skills"),
			LockFile:   envOrDefault("OWLHUB_LOCK_FILE", "owlhub.lock.json"),
			CacheDir:   envOrDefault("OWLHUB_CACHE_DIR", ".owlhub-cache"),
			NoCache:    os.Getenv("OWLHUB_NO_CACHE") == "true",
		},
	}
	cfg.Webhook.BaseURL = envOrDefault("WEBHOOK_BASE_URL", "https://localhost"+cfg.WebhookListenAddr)
	cfg.Webhook.TokenBytes = envIntOrDefault("WEBHOOK_TOKEN_BYTES", 32)
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitRepositories(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
