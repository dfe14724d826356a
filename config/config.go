// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads service configuration from the environment with an
// optional YAML overlay.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration for the sitechat service.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listenAddr"`

	// WeaviateURL is the vector index endpoint, e.g. "http://weaviate:8080".
	WeaviateURL string `yaml:"weaviateUrl"`

	// BadgerPath is the directory for the embedded conversation database.
	BadgerPath string `yaml:"badgerPath"`

	// APIKey guards the /v1 group. Empty disables auth.
	APIKey string `yaml:"apiKey"`

	// ScoreThreshold is the minimum retrieval similarity score.
	ScoreThreshold float64 `yaml:"scoreThreshold"`

	// OTLPEndpoint is the trace collector address. Empty disables tracing
	// export.
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}

// Load builds the configuration: defaults, then the optional YAML file named
// by SITECHAT_CONFIG, then environment variable overrides. Environment wins.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     ":8090",
		WeaviateURL:    "http://localhost:8080",
		BadgerPath:     "/var/lib/sitechat/conversations",
		ScoreThreshold: 0.25,
	}

	if path := os.Getenv("SITECHAT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		slog.Info("Loaded configuration overlay", "path", path)
	}

	applyEnv(cfg)

	if cfg.APIKey == "" {
		slog.Warn("SITECHAT_API_KEY not set, /v1 endpoints are unauthenticated")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SITECHAT_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("WEAVIATE_URL"); v != "" {
		cfg.WeaviateURL = v
	}
	if v := os.Getenv("SITECHAT_BADGER_PATH"); v != "" {
		cfg.BadgerPath = v
	}
	if v := os.Getenv("SITECHAT_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("SITECHAT_SCORE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			slog.Warn("Invalid SITECHAT_SCORE_THRESHOLD, keeping current value",
				"provided", v, "current", cfg.ScoreThreshold)
		} else {
			cfg.ScoreThreshold = f
		}
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
}
