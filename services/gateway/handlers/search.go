// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin handlers for the search gateway: the
// websocket session loop, the one-shot search endpoint, and the catalog,
// config and chat management routes.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianSearch/pkg/config"
	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianSearch/services/gateway/observability"
	"github.com/AleutianAI/AleutianSearch/services/gateway/search"
	"github.com/AleutianAI/AleutianSearch/services/providers"
)

var searchTracer = otel.Tracer("aleutian.search-gateway.handlers.search")

// oneShotTemperature is bound into custom-endpoint handles resolved for a
// single request.
const oneShotTemperature float32 = 0.3

// SearchRequest is the one-shot search body.
type SearchRequest struct {
	ChatModel *struct {
		Provider            string `json:"provider"`
		Model               string `json:"model"`
		CustomOpenAIBaseURL string `json:"customOpenAIBaseURL"`
		CustomOpenAIKey     string `json:"customOpenAIKey"`
	} `json:"chatModel"`
	EmbeddingModel *struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
	} `json:"embeddingModel"`
	OptimizationMode string      `json:"optimizationMode"`
	FocusMode        string      `json:"focusMode" binding:"required"`
	Query            string      `json:"query" binding:"required"`
	History          [][2]string `json:"history"`
}

// HandleSearch runs one complete search per request: resolve models, run the
// focus-mode pipeline to completion, fold its event stream into a single
// JSON body.
//
// Validation and resolution failures are 400s. A pipeline failure or any
// unexpected error is a 500 whose body never leaks internals.
func HandleSearch(cfgStore *config.Store, registry *search.Registry,
	metrics *observability.GatewayMetrics) gin.HandlerFunc {

	return func(c *gin.Context) {
		ctx, span := searchTracer.Start(c.Request.Context(), "HandleSearch")
		defer span.End()

		var req SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid request body")
			c.JSON(http.StatusBadRequest, gin.H{"message": "Missing focus mode or query"})
			return
		}
		span.SetAttributes(attribute.String("search.focus_mode", req.FocusMode))

		cfg := cfgStore.Snapshot()
		sel := providers.Selection{CustomTemperature: oneShotTemperature}
		if req.ChatModel != nil {
			sel.ChatProvider = req.ChatModel.Provider
			sel.ChatModel = req.ChatModel.Model
			sel.CustomBaseURL = req.ChatModel.CustomOpenAIBaseURL
			sel.CustomAPIKey = req.ChatModel.CustomOpenAIKey
		}
		if req.EmbeddingModel != nil {
			sel.EmbeddingProvider = req.EmbeddingModel.Provider
			sel.EmbeddingModel = req.EmbeddingModel.Model
		}

		var chatCatalog providers.ChatCatalog
		var embeddingCatalog providers.EmbeddingCatalog
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			chatCatalog = providers.ListChatProviders(gctx, cfg)
			return nil
		})
		g.Go(func() error {
			embeddingCatalog = providers.ListEmbeddingProviders(gctx, cfg)
			return nil
		})
		_ = g.Wait()

		chat, embedder, err := providers.Resolve(chatCatalog, embeddingCatalog, sel)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "model resolution failed")
			switch {
			case errors.Is(err, providers.ErrMissingCustomCredentials):
				c.JSON(http.StatusBadRequest, gin.H{"message": "Missing custom OpenAI base URL or key"})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid model selected"})
			}
			return
		}

		searchReq := search.Request{
			Query:            req.Query,
			History:          datatypes.ParseHistory(req.History),
			Chat:             chat,
			Embedder:         embedder,
			OptimizationMode: req.OptimizationMode,
		}

		start := time.Now()
		events, err := registry.Handle(ctx, req.FocusMode, searchReq)
		if err != nil {
			span.SetStatus(codes.Error, "invalid focus mode")
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid focus mode"})
			return
		}

		result, err := search.Collect(events)
		metrics.RecordSearch(observability.SurfaceOneShot, req.FocusMode,
			time.Since(start).Seconds(), err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "pipeline failed")
			var pipelineErr *search.PipelineError
			if errors.As(err, &pipelineErr) {
				metrics.RecordErrorKey(pipelineErr.Key)
				c.JSON(http.StatusInternalServerError, gin.H{
					"message": pipelineErr.Text,
					"key":     pipelineErr.Key,
				})
				return
			}
			slog.Error("One-shot search failed", "focusMode", req.FocusMode, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "An error has occurred."})
			return
		}

		span.SetStatus(codes.Ok, "search completed")
		c.JSON(http.StatusOK, result)
	}
}
