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

	"github.com/AleutianAI/AleutianSearch/services/gateway/store"
)

// HandleListChats returns metadata for all stored conversations.
func HandleListChats(chats *store.ChatStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := chats.ListChats()
		if err != nil {
			slog.Error("Failed to list chats", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "An error has occurred."})
			return
		}
		if list == nil {
			list = []store.Chat{}
		}
		c.JSON(http.StatusOK, gin.H{"chats": list})
	}
}

// HandleGetChat returns one conversation with its full message history.
func HandleGetChat(chats *store.ChatStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := c.Param("id")
		chat, turns, err := chats.GetChat(chatID)
		if errors.Is(err, store.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Chat not found"})
			return
		}
		if err != nil {
			slog.Error("Failed to load chat", "chatID", chatID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "An error has occurred."})
			return
		}
		if turns == nil {
			turns = []store.Turn{}
		}
		c.JSON(http.StatusOK, gin.H{"chat": chat, "messages": turns})
	}
}

// HandleDeleteChat removes one conversation and its messages.
func HandleDeleteChat(chats *store.ChatStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := c.Param("id")
		err := chats.DeleteChat(chatID)
		if errors.Is(err, store.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Chat not found"})
			return
		}
		if err != nil {
			slog.Error("Failed to delete chat", "chatID", chatID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "An error has occurred."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Chat deleted"})
	}
}
