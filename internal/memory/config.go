/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package memory

import (
	"encoding/json"
	"os"
	"strconv"
)

// Config holds the recognized Memory Engine configuration options (§6).
type Config struct {
	VectorBackend            Backend `json:"vector_backend"`
	EmbeddingModel            string  `json:"embedding_model"`
	EmbeddingDimensions       int     `json:"embedding_dimensions"`
	STMMaxTokens              int     `json:"stm_max_tokens"`
	SnapshotMaxTokens         int     `json:"snapshot_max_tokens"`
	TimeDecayHalfLifeHours    float64 `json:"time_decay_half_life_hours"`
	MaxEntries                int     `json:"max_entries"`
	RetentionDays              int     `json:"retention_days"`
	CompactionThreshold        int     `json:"compaction_threshold"`
	EmbeddingCacheSize          int     `json:"embedding_cache_size"`
	EnableTFIDFFallback        bool    `json:"enable_tfidf_fallback"`
	EnableKeywordFallback      bool    `json:"enable_keyword_fallback"`
	EnableFileFallback          bool    `json:"enable_file_fallback"`
	FileFallbackPath            string  `json:"file_fallback_path"`
}

// Default returns the Memory Engine's configuration defaults.
func Default() Config {
	return Config{
		VectorBackend:          BackendInMemory,
		EmbeddingModel:         "random",
		EmbeddingDimensions:    128,
		STMMaxTokens:           2000,
		SnapshotMaxTokens:      500,
		TimeDecayHalfLifeHours: 24 * 30,
		MaxEntries:             10000,
		RetentionDays:          90,
		CompactionThreshold:    5,
		EmbeddingCacheSize:     1000,
		EnableTFIDFFallback:    true,
		EnableKeywordFallback:  true,
		EnableFileFallback:     true,
		FileFallbackPath:       "memory_fallback.md",
	}
}

// Load reads Config from a JSON file at path and overlays recognized
// environment variables, in the priority order env > file > defaults,
// matching internal/controlplane/config's loader idiom.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	overlayEnv(&cfg)
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	if v := os.Getenv("MEMORY_VECTOR_BACKEND"); v != "" {
		cfg.VectorBackend = Backend(v)
	}
	if v := os.Getenv("MEMORY_EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("MEMORY_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EmbeddingDimensions = n
		}
	}
	if v := os.Getenv("MEMORY_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxEntries = n
		}
	}
	if v := os.Getenv("MEMORY_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetentionDays = n
		}
	}
}
