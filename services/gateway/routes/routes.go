// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianSearch/pkg/config"
	"github.com/AleutianAI/AleutianSearch/services/gateway/handlers"
	"github.com/AleutianAI/AleutianSearch/services/gateway/observability"
	"github.com/AleutianAI/AleutianSearch/services/gateway/search"
	"github.com/AleutianAI/AleutianSearch/services/gateway/store"
)

func SetupRoutes(router *gin.Engine, cfgStore *config.Store, registry *search.Registry,
	chats *store.ChatStore, metrics *observability.GatewayMetrics) {

	router.GET("/health", handlers.HandleHealthCheck())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/ws", handlers.HandleSearchSocket(cfgStore, registry, chats, metrics))
		api.POST("/search", handlers.HandleSearch(cfgStore, registry, metrics))
		api.GET("/search/modes", handlers.HandleListFocusModes(registry))
		api.GET("/models", handlers.HandleListModels(cfgStore))
		api.GET("/config", handlers.HandleGetConfig(cfgStore))
		api.POST("/config", handlers.HandleUpdateConfig(cfgStore))

		chatAdmin := api.Group("/chats")
		{
			chatAdmin.GET("", handlers.HandleListChats(chats))
			chatAdmin.GET("/:id", handlers.HandleGetChat(chats))
			chatAdmin.DELETE("/:id", handlers.HandleDeleteChat(chats))
		}
	}
}
