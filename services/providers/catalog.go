// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package providers resolves which chat and embedding models are usable for
// a given request or connection, and turns a selection into ready-to-invoke
// model handles.
//
// A catalog is rebuilt per request/connection rather than cached: providers
// come and go as local runtimes start and stop or credentials change, so the
// catalog is read-only point-in-time state. Iteration order is pinned to
// registration order to make the "first provider / first model" defaults
// deterministic.
package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianSearch/pkg/config"
)

// Provider keys, in catalog order.
const (
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderLocal     = "local"

	// ProviderCustomOpenAI is the sentinel chat provider resolved from a
	// caller-supplied endpoint and key instead of a catalog lookup. It is
	// always listed with an empty model set so clients can offer it.
	ProviderCustomOpenAI = "custom_openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// catalogTemperature is the sampling default bound into catalog handles.
// Custom-endpoint handles get a call-site temperature instead (0.3 for
// one-shot requests, 0.7 for persistent sessions).
const catalogTemperature float32 = 0.7

// ModelEntry is one selectable model under a provider.
type ModelEntry[T any] struct {
	Key         string
	DisplayName string
	Model       T
}

// ProviderEntry is one provider's contribution to a catalog. Models may be
// empty: an unreachable or unconfigured provider simply offers nothing.
type ProviderEntry[T any] struct {
	Key    string
	Models []ModelEntry[T]
}

// Catalog is an ordered provider -> model mapping. The slice order is the
// catalog iteration order; Lookup and the First* defaults depend on it.
type Catalog[T any] struct {
	Providers []ProviderEntry[T]
}

// ChatCatalog lists selectable chat models.
type ChatCatalog = Catalog[ChatModel]

// EmbeddingCatalog lists selectable embedding models.
type EmbeddingCatalog = Catalog[Embedder]

// Provider returns the entry for key.
func (c Catalog[T]) Provider(key string) (ProviderEntry[T], bool) {
	for _, p := range c.Providers {
		if p.Key == key {
			return p, true
		}
	}
	return ProviderEntry[T]{}, false
}

// Lookup returns the handle stored at (provider, model).
func (c Catalog[T]) Lookup(provider, model string) (T, bool) {
	var zero T
	p, ok := c.Provider(provider)
	if !ok {
		return zero, false
	}
	for _, m := range p.Models {
		if m.Key == model {
			return m.Model, true
		}
	}
	return zero, false
}

// FirstProvider returns the first provider key in catalog order.
func (c Catalog[T]) FirstProvider() (string, bool) {
	if len(c.Providers) == 0 {
		return "", false
	}
	return c.Providers[0].Key, true
}

// FirstModel returns the first model key under provider.
func (c Catalog[T]) FirstModel(provider string) (string, bool) {
	p, ok := c.Provider(provider)
	if !ok || len(p.Models) == 0 {
		return "", false
	}
	return p.Models[0].Key, true
}

// listed model sets for the hosted API providers; availability is gated on
// the corresponding credential being configured.
var (
	openAIChatModels = []struct{ key, display string }{
		{"gpt-3.5-turbo", "GPT-3.5 turbo"},
		{"gpt-4", "GPT-4"},
		{"gpt-4-turbo", "GPT-4 turbo"},
		{"gpt-4o", "GPT-4 omni"},
		{"gpt-4o-mini", "GPT-4 omni mini"},
	}
	groqChatModels = []struct{ key, display string }{
		{"llama-3.1-70b-versatile", "Llama 3.1 70B"},
		{"llama-3.1-8b-instant", "Llama 3.1 8B"},
		{"mixtral-8x7b-32768", "Mixtral 8x7B"},
		{"gemma2-9b-it", "Gemma2 9B"},
	}
	anthropicChatModels = []struct{ key, display string }{
		{"claude-3-5-sonnet-20240620", "Claude 3.5 Sonnet"},
		{"claude-3-opus-20240229", "Claude 3 Opus"},
		{"claude-3-sonnet-20240229", "Claude 3 Sonnet"},
		{"claude-3-haiku-20240307", "Claude 3 Haiku"},
	}
	openAIEmbeddingModels = []struct{ key, display string }{
		{"text-embedding-3-small", "Text embedding 3 small"},
		{"text-embedding-3-large", "Text embedding 3 large"},
	}
	localEmbeddingModels = []struct{ key, display string }{
		{"bge-small-en-v1.5", "BGE Small"},
		{"gte-small", "GTE Small"},
		{"all-MiniLM-L6-v2", "all-MiniLM L6 v2"},
	}
)

// catalogListTimeout bounds the dynamic provider probes (ollama tags, local
// sidecar health) so a hung runtime cannot stall connection setup.
const catalogListTimeout = 10 * time.Second

func loadOpenAIChatModels(_ context.Context, cfg *config.Config) []ModelEntry[ChatModel] {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	entries := make([]ModelEntry[ChatModel], 0, len(openAIChatModels))
	for _, m := range openAIChatModels {
		entries = append(entries, ModelEntry[ChatModel]{
			Key:         m.key,
			DisplayName: m.display,
			Model:       NewOpenAIChatModel(cfg.OpenAIAPIKey, m.key, catalogTemperature),
		})
	}
	return entries
}

func loadGroqChatModels(_ context.Context, cfg *config.Config) []ModelEntry[ChatModel] {
	if cfg.GroqAPIKey == "" {
		return nil
	}
	entries := make([]ModelEntry[ChatModel], 0, len(groqChatModels))
	for _, m := range groqChatModels {
		entries = append(entries, ModelEntry[ChatModel]{
			Key:         m.key,
			DisplayName: m.display,
			Model:       NewOpenAICompatibleChatModel(groqBaseURL, cfg.GroqAPIKey, m.key, catalogTemperature),
		})
	}
	return entries
}

func loadAnthropicChatModels(_ context.Context, cfg *config.Config) []ModelEntry[ChatModel] {
	if cfg.AnthropicAPIKey == "" {
		return nil
	}
	entries := make([]ModelEntry[ChatModel], 0, len(anthropicChatModels))
	for _, m := range anthropicChatModels {
		entries = append(entries, ModelEntry[ChatModel]{
			Key:         m.key,
			DisplayName: m.display,
			Model:       NewAnthropicChatModel(cfg.AnthropicAPIKey, m.key, catalogTemperature),
		})
	}
	return entries
}

func loadOllamaChatModels(ctx context.Context, cfg *config.Config) []ModelEntry[ChatModel] {
	if cfg.OllamaAPIURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, catalogListTimeout)
	defer cancel()

	names, err := listOllamaTags(ctx, cfg.OllamaAPIURL)
	if err != nil {
		slog.Warn("Ollama chat models unavailable", "error", err)
		return nil
	}
	entries := make([]ModelEntry[ChatModel], 0, len(names))
	for _, name := range names {
		model, err := NewOllamaChatModel(cfg.OllamaAPIURL, name, catalogTemperature)
		if err != nil {
			slog.Warn("Skipping ollama chat model", "model", name, "error", err)
			continue
		}
		entries = append(entries, ModelEntry[ChatModel]{Key: name, DisplayName: name, Model: model})
	}
	return entries
}

func loadOpenAIEmbeddingModels(_ context.Context, cfg *config.Config) []ModelEntry[Embedder] {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	entries := make([]ModelEntry[Embedder], 0, len(openAIEmbeddingModels))
	for _, m := range openAIEmbeddingModels {
		entries = append(entries, ModelEntry[Embedder]{
			Key:         m.key,
			DisplayName: m.display,
			Model:       NewOpenAIEmbedder(cfg.OpenAIAPIKey, m.key),
		})
	}
	return entries
}

func loadLocalEmbeddingModels(ctx context.Context, cfg *config.Config) []ModelEntry[Embedder] {
	if cfg.EmbeddingServiceURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, catalogListTimeout)
	defer cancel()

	if err := pingEmbeddingService(ctx, cfg.EmbeddingServiceURL); err != nil {
		slog.Warn("Local embedding models unavailable", "error", err)
		return nil
	}
	entries := make([]ModelEntry[Embedder], 0, len(localEmbeddingModels))
	for _, m := range localEmbeddingModels {
		entries = append(entries, ModelEntry[Embedder]{
			Key:         m.key,
			DisplayName: m.display,
			Model:       NewLocalEmbedder(cfg.EmbeddingServiceURL, m.key),
		})
	}
	return entries
}

func loadOllamaEmbeddingModels(ctx context.Context, cfg *config.Config) []ModelEntry[Embedder] {
	if cfg.OllamaAPIURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, catalogListTimeout)
	defer cancel()

	names, err := listOllamaTags(ctx, cfg.OllamaAPIURL)
	if err != nil {
		slog.Warn("Ollama embedding models unavailable", "error", err)
		return nil
	}
	entries := make([]ModelEntry[Embedder], 0, len(names))
	for _, name := range names {
		embedder, err := NewOllamaEmbedder(cfg.OllamaAPIURL, name)
		if err != nil {
			slog.Warn("Skipping ollama embedding model", "model", name, "error", err)
			continue
		}
		entries = append(entries, ModelEntry[Embedder]{Key: name, DisplayName: name, Model: embedder})
	}
	return entries
}

// ListChatProviders builds the chat catalog for one request or connection.
// Every provider key is always present; a provider that fails to list simply
// contributes an empty model set. The custom_openai sentinel is always last.
func ListChatProviders(ctx context.Context, cfg *config.Config) ChatCatalog {
	loaders := []struct {
		key  string
		load func(context.Context, *config.Config) []ModelEntry[ChatModel]
	}{
		{ProviderOpenAI, loadOpenAIChatModels},
		{ProviderGroq, loadGroqChatModels},
		{ProviderOllama, loadOllamaChatModels},
		{ProviderAnthropic, loadAnthropicChatModels},
	}

	entries := make([]ProviderEntry[ChatModel], len(loaders)+1)
	runLoaders(ctx, len(loaders), func(i int) {
		entries[i] = ProviderEntry[ChatModel]{Key: loaders[i].key, Models: loaders[i].load(ctx, cfg)}
	})
	entries[len(loaders)] = ProviderEntry[ChatModel]{Key: ProviderCustomOpenAI}
	return ChatCatalog{Providers: entries}
}

// ListEmbeddingProviders builds the embedding catalog for one request or
// connection. Same degradation semantics as ListChatProviders; there is no
// custom sentinel on the embedding axis.
func ListEmbeddingProviders(ctx context.Context, cfg *config.Config) EmbeddingCatalog {
	loaders := []struct {
		key  string
		load func(context.Context, *config.Config) []ModelEntry[Embedder]
	}{
		{ProviderOpenAI, loadOpenAIEmbeddingModels},
		{ProviderLocal, loadLocalEmbeddingModels},
		{ProviderOllama, loadOllamaEmbeddingModels},
	}

	entries := make([]ProviderEntry[Embedder], len(loaders))
	runLoaders(ctx, len(loaders), func(i int) {
		entries[i] = ProviderEntry[Embedder]{Key: loaders[i].key, Models: loaders[i].load(ctx, cfg)}
	})
	return EmbeddingCatalog{Providers: entries}
}
