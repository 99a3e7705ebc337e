// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package providers

import (
	"errors"
	"log/slog"
)

// Resolution failures. Both terminate setup for the whole request; no
// partial handle pair is ever returned.
var (
	// ErrInvalidModelSelection means the requested (provider, model) pair is
	// not in the current catalog snapshot, or an axis could not resolve.
	ErrInvalidModelSelection = errors.New("invalid model selection")

	// ErrMissingCustomCredentials means custom_openai was selected without
	// both a base URL and an API key.
	ErrMissingCustomCredentials = errors.New("missing custom OpenAI base URL or key")
)

// Selection is the caller's (possibly partial) model choice. Empty fields
// default to the first provider/model in catalog order.
type Selection struct {
	ChatProvider      string
	ChatModel         string
	EmbeddingProvider string
	EmbeddingModel    string

	// Custom endpoint fields, honored only when ChatProvider resolves to
	// custom_openai.
	CustomBaseURL string
	CustomAPIKey  string

	// CustomTemperature is bound into a custom-endpoint handle. Call-site
	// policy: 0.3 for one-shot requests, 0.7 for persistent sessions.
	CustomTemperature float32
}

// Resolve turns a selection into a concrete (chat, embedding) handle pair
// against the given catalog snapshots. Either both handles resolve or the
// call fails; downstream code depends only on the handles, never on
// provider identity.
func Resolve(chatCatalog ChatCatalog, embeddingCatalog EmbeddingCatalog, sel Selection) (ChatModel, Embedder, error) {
	chatProvider := sel.ChatProvider
	if chatProvider == "" {
		first, ok := chatCatalog.FirstProvider()
		if !ok {
			return nil, nil, ErrInvalidModelSelection
		}
		chatProvider = first
	}
	chatModel := sel.ChatModel
	if chatModel == "" {
		// custom_openai has no catalog models; the model name comes from the
		// caller and stays empty if they sent none (rejected below only when
		// credentials are also missing, mirroring lookup failure otherwise).
		chatModel, _ = chatCatalog.FirstModel(chatProvider)
	}

	var chat ChatModel
	if chatProvider == ProviderCustomOpenAI {
		if sel.CustomBaseURL == "" || sel.CustomAPIKey == "" {
			return nil, nil, ErrMissingCustomCredentials
		}
		// A fresh handle bound to the caller's endpoint; owned by this
		// session/request, never shared.
		chat = NewOpenAICompatibleChatModel(sel.CustomBaseURL, sel.CustomAPIKey, chatModel, sel.CustomTemperature)
	} else {
		handle, ok := chatCatalog.Lookup(chatProvider, chatModel)
		if !ok {
			slog.Warn("Chat model selection did not resolve", "provider", chatProvider, "model", chatModel)
			return nil, nil, ErrInvalidModelSelection
		}
		chat = handle
	}

	embeddingProvider := sel.EmbeddingProvider
	if embeddingProvider == "" {
		first, ok := embeddingCatalog.FirstProvider()
		if !ok {
			return nil, nil, ErrInvalidModelSelection
		}
		embeddingProvider = first
	}
	embeddingModel := sel.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel, _ = embeddingCatalog.FirstModel(embeddingProvider)
	}

	embedder, ok := embeddingCatalog.Lookup(embeddingProvider, embeddingModel)
	if !ok {
		slog.Warn("Embedding model selection did not resolve", "provider", embeddingProvider, "model", embeddingModel)
		return nil, nil, ErrInvalidModelSelection
	}

	return chat, embedder, nil
}
