// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianSearch/pkg/config"
)

// configView is the settings surface exposed to the UI. Running sessions
// keep the handles they resolved at setup; changes here only affect later
// resolutions.
type configView struct {
	OpenAIAPIKey        string `json:"openaiApiKey"`
	GroqAPIKey          string `json:"groqApiKey"`
	AnthropicAPIKey     string `json:"anthropicApiKey"`
	OllamaAPIURL        string `json:"ollamaApiUrl"`
	SearxngAPIURL       string `json:"searxngApiUrl"`
	EmbeddingServiceURL string `json:"embeddingServiceUrl"`
	SimilarityMeasure   string `json:"similarityMeasure"`
}

// HandleGetConfig returns the current settings snapshot.
func HandleGetConfig(cfgStore *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := cfgStore.Snapshot()
		c.JSON(http.StatusOK, configView{
			OpenAIAPIKey:        cfg.OpenAIAPIKey,
			GroqAPIKey:          cfg.GroqAPIKey,
			AnthropicAPIKey:     cfg.AnthropicAPIKey,
			OllamaAPIURL:        cfg.OllamaAPIURL,
			SearxngAPIURL:       cfg.SearxngAPIURL,
			EmbeddingServiceURL: cfg.EmbeddingServiceURL,
			SimilarityMeasure:   cfg.SimilarityMeasure,
		})
	}
}

// configUpdate carries a partial settings update. Nil fields are left
// untouched, so clearing a key requires sending an explicit empty string.
type configUpdate struct {
	OpenAIAPIKey        *string `json:"openaiApiKey"`
	GroqAPIKey          *string `json:"groqApiKey"`
	AnthropicAPIKey     *string `json:"anthropicApiKey"`
	OllamaAPIURL        *string `json:"ollamaApiUrl"`
	SearxngAPIURL       *string `json:"searxngApiUrl"`
	EmbeddingServiceURL *string `json:"embeddingServiceUrl"`
	SimilarityMeasure   *string `json:"similarityMeasure"`
}

// HandleUpdateConfig applies a partial settings update. The store persists
// the result and swaps in a new snapshot; in-flight requests keep the
// snapshot they started with.
func HandleUpdateConfig(cfgStore *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var update configUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid config body"})
			return
		}

		_, err := cfgStore.Update(func(cfg *config.Config) {
			if update.OpenAIAPIKey != nil {
				cfg.OpenAIAPIKey = *update.OpenAIAPIKey
			}
			if update.GroqAPIKey != nil {
				cfg.GroqAPIKey = *update.GroqAPIKey
			}
			if update.AnthropicAPIKey != nil {
				cfg.AnthropicAPIKey = *update.AnthropicAPIKey
			}
			if update.OllamaAPIURL != nil {
				cfg.OllamaAPIURL = *update.OllamaAPIURL
			}
			if update.SearxngAPIURL != nil {
				cfg.SearxngAPIURL = *update.SearxngAPIURL
			}
			if update.EmbeddingServiceURL != nil {
				cfg.EmbeddingServiceURL = *update.EmbeddingServiceURL
			}
			if update.SimilarityMeasure != nil {
				cfg.SimilarityMeasure = *update.SimilarityMeasure
			}
		})
		if err != nil {
			var validationErrs validator.ValidationErrors
			if errors.As(err, &validationErrs) {
				c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid config values"})
				return
			}
			slog.Error("Failed to persist config update", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "An error has occurred."})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Config updated"})
	}
}
