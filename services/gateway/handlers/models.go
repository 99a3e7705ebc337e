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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianSearch/pkg/config"
	"github.com/AleutianAI/AleutianSearch/services/providers"
)

// modelInfo is one catalog model as exposed over the API. Handles never
// leave the process.
type modelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

func catalogView[T any](catalog providers.Catalog[T]) map[string][]modelInfo {
	view := make(map[string][]modelInfo, len(catalog.Providers))
	for _, p := range catalog.Providers {
		models := make([]modelInfo, 0, len(p.Models))
		for _, m := range p.Models {
			models = append(models, modelInfo{Name: m.Key, DisplayName: m.DisplayName})
		}
		view[p.Key] = models
	}
	return view
}

// HandleListModels reports the currently available chat and embedding
// models. The catalog is rebuilt on every call so the listing reflects
// providers that appeared or vanished since the last one.
func HandleListModels(cfgStore *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := cfgStore.Snapshot()
		ctx := c.Request.Context()

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
		if err := g.Wait(); err != nil {
			slog.Error("Model listing failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "An error has occurred."})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"chatModelProviders":      catalogView(chatCatalog),
			"embeddingModelProviders": catalogView(embeddingCatalog),
		})
	}
}
