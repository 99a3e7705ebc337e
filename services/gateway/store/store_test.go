// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
)

func newTestStore(t *testing.T) *ChatStore {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChatStore(t *testing.T) {
	t.Run("first turn creates the chat with a derived title", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.SaveTurn("chat-1", "webSearch", Turn{
			Role: "user", Content: "  why is the sky blue?  ",
		}))

		chat, turns, err := s.GetChat("chat-1")
		require.NoError(t, err)
		assert.Equal(t, "why is the sky blue?", chat.Title)
		assert.Equal(t, "webSearch", chat.FocusMode)
		require.Len(t, turns, 1)
		assert.Equal(t, "user", turns[0].Role)
	})

	t.Run("long titles are cut on a rune boundary", func(t *testing.T) {
		s := newTestStore(t)
		// 79 ASCII bytes followed by a 3-byte rune straddling the cap.
		content := strings.Repeat("a", 79) + "日本語"
		require.NoError(t, s.SaveTurn("chat-1", "webSearch", Turn{
			Role: "user", Content: content,
		}))

		chat, _, err := s.GetChat("chat-1")
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(chat.Title))
		assert.Equal(t, strings.Repeat("a", 79), chat.Title)
	})

	t.Run("turns come back in append order", func(t *testing.T) {
		s := newTestStore(t)
		for i := 0; i < 15; i++ {
			role := "user"
			if i%2 == 1 {
				role = "assistant"
			}
			require.NoError(t, s.SaveTurn("chat-1", "webSearch", Turn{
				Role: role, Content: fmt.Sprintf("turn %d", i),
			}))
		}

		_, turns, err := s.GetChat("chat-1")
		require.NoError(t, err)
		require.Len(t, turns, 15)
		for i, turn := range turns {
			assert.Equal(t, fmt.Sprintf("turn %d", i), turn.Content)
		}
	})

	t.Run("assistant turns keep their sources", func(t *testing.T) {
		s := newTestStore(t)
		sources := []datatypes.SourceInfo{{Title: "Rayleigh scattering", URL: "https://example.org"}}
		require.NoError(t, s.SaveTurn("chat-1", "webSearch", Turn{Role: "user", Content: "why?"}))
		require.NoError(t, s.SaveTurn("chat-1", "webSearch", Turn{
			Role: "assistant", Content: "because of scattering", Sources: sources,
		}))

		_, turns, err := s.GetChat("chat-1")
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, sources, turns[1].Sources)
		assert.Empty(t, turns[0].Sources)
	})

	t.Run("list covers all chats", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.SaveTurn("chat-a", "webSearch", Turn{Role: "user", Content: "a"}))
		require.NoError(t, s.SaveTurn("chat-b", "writingAssistant", Turn{Role: "user", Content: "b"}))

		chats, err := s.ListChats()
		require.NoError(t, err)
		require.Len(t, chats, 2)
		ids := []string{chats[0].ID, chats[1].ID}
		assert.Contains(t, ids, "chat-a")
		assert.Contains(t, ids, "chat-b")
	})

	t.Run("delete removes the chat and its turns", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.SaveTurn("chat-1", "webSearch", Turn{Role: "user", Content: "q"}))
		require.NoError(t, s.SaveTurn("chat-2", "webSearch", Turn{Role: "user", Content: "q"}))

		require.NoError(t, s.DeleteChat("chat-1"))

		_, _, err := s.GetChat("chat-1")
		assert.ErrorIs(t, err, ErrChatNotFound)
		_, _, err = s.GetChat("chat-2")
		assert.NoError(t, err)
	})

	t.Run("unknown chat IDs report not found", func(t *testing.T) {
		s := newTestStore(t)
		_, _, err := s.GetChat("ghost")
		assert.ErrorIs(t, err, ErrChatNotFound)
		assert.ErrorIs(t, s.DeleteChat("ghost"), ErrChatNotFound)
	})

	t.Run("empty chat ID is rejected", func(t *testing.T) {
		s := newTestStore(t)
		assert.Error(t, s.SaveTurn("", "webSearch", Turn{Role: "user", Content: "q"}))
	})
}
