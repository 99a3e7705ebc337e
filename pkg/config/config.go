// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides immutable configuration snapshots for the gateway.
//
// A Config is loaded once from a YAML file (with environment overrides) and
// never mutated afterwards. Components receive a *Config snapshot per request
// or connection; updates build a fresh snapshot and atomically swap it into
// the Store, so in-flight requests keep the snapshot they started with.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is a point-in-time configuration snapshot. Treat as read-only.
type Config struct {
	// Port is the gateway listen port.
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// SimilarityMeasure selects the reranking metric: "cosine" or "dot".
	SimilarityMeasure string `yaml:"similarity_measure" validate:"oneof=cosine dot"`

	// DataDir is the directory for the embedded chat store.
	DataDir string `yaml:"data_dir" validate:"required"`

	OpenAIAPIKey    string `yaml:"openai_api_key"`
	GroqAPIKey      string `yaml:"groq_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// OllamaAPIURL is the base URL of a local Ollama runtime. Empty disables
	// the ollama provider.
	OllamaAPIURL string `yaml:"ollama_api_url" validate:"omitempty,url"`

	// SearxngAPIURL is the base URL of the SearXNG instance used by the
	// built-in search pipelines.
	SearxngAPIURL string `yaml:"searxng_api_url" validate:"omitempty,url"`

	// EmbeddingServiceURL is the base URL of the local embedding sidecar.
	// Empty disables the "local" embedding provider.
	EmbeddingServiceURL string `yaml:"embedding_service_url" validate:"omitempty,url"`
}

var validate = validator.New()

// Defaults returns the baseline configuration used when no file exists.
func Defaults() *Config {
	return &Config{
		Port:              3001,
		SimilarityMeasure: "cosine",
		DataDir:           "data",
	}
}

// Load reads a snapshot from path and applies environment overrides. A missing
// file is not an error; the defaults (plus environment) are returned so the
// gateway can start on a fresh install.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("Config file not found, using defaults", "path", path)
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Environment wins over the
// file so container deployments can inject secrets without editing it.
func applyEnv(cfg *Config) {
	overlay := map[string]*string{
		"OPENAI_API_KEY":        &cfg.OpenAIAPIKey,
		"GROQ_API_KEY":          &cfg.GroqAPIKey,
		"ANTHROPIC_API_KEY":     &cfg.AnthropicAPIKey,
		"OLLAMA_API_URL":        &cfg.OllamaAPIURL,
		"SEARXNG_API_URL":       &cfg.SearxngAPIURL,
		"EMBEDDING_SERVICE_URL": &cfg.EmbeddingServiceURL,
	}
	for key, field := range overlay {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
}

// clone returns a copy of cfg. Config has no reference fields today, so a
// shallow copy is a deep copy; keep it that way.
func (c *Config) clone() *Config {
	dup := *c
	return &dup
}

// Store holds the current configuration snapshot.
//
// Snapshot never blocks and callers must not retain a snapshot across
// requests if they want updates to be visible.
type Store struct {
	path string
	cur  atomic.Pointer[Config]
}

// NewStore loads the initial snapshot from path.
func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.cur.Store(cfg)
	return s, nil
}

// Snapshot returns the current configuration snapshot.
func (s *Store) Snapshot() *Config {
	return s.cur.Load()
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Update builds a new snapshot by applying mutate to a copy of the current
// one, persists it to the backing file, and swaps it in. The previous
// snapshot is left untouched for callers still holding it.
func (s *Store) Update(mutate func(*Config)) (*Config, error) {
	next := s.Snapshot().clone()
	mutate(next)
	if err := validate.Struct(next); err != nil {
		return nil, fmt.Errorf("invalid config update: %w", err)
	}

	raw, err := yaml.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist config to %s: %w", s.path, err)
	}

	s.cur.Store(next)
	slog.Info("Config updated", "path", s.path)
	return next, nil
}

// Reload re-reads the backing file and swaps in the result. Used by the file
// watcher when the config is edited out-of-band.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.cur.Store(cfg)
	return nil
}
