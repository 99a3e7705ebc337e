// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipelines provides the built-in focus-mode pipelines registered
// with the search orchestrator. Each pipeline produces the gateway's typed
// event stream: an optional sources event, response fragments in generation
// order, and either clean completion or a terminal error event.
package pipelines

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianSearch/pkg/similarity"
	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianSearch/services/gateway/search"
	"github.com/AleutianAI/AleutianSearch/services/providers"
	"github.com/AleutianAI/AleutianSearch/services/searxng"
)

// Error keys surfaced by the built-in pipelines.
const (
	KeySearchFailed     = "SEARCH_FAILED"
	KeyGenerationFailed = "GENERATION_FAILED"
)

const (
	// maxSearchResults caps how many SearXNG hits are considered at all.
	maxSearchResults = 15

	// maxContextDocs caps how many documents make it into the prompt after
	// reranking.
	maxContextDocs = 8

	// rerankThreshold drops documents whose similarity to the query falls
	// below this value when reranking is active.
	rerankThreshold = 0.3
)

// MetaSearch answers a query by searching the web through SearXNG, optionally
// reranking hits by embedding similarity, and grounding the chat model on the
// retrieved snippets. The focus modes webSearch, academicSearch,
// youtubeSearch and redditSearch are all MetaSearch instances with different
// engine sets.
type MetaSearch struct {
	client  *searxng.Client
	name    string
	opts    searxng.SearchOptions
	measure string
}

// NewMetaSearch builds a pipeline over client restricted to the given engine
// options. measure is the similarity measure used for reranking.
func NewMetaSearch(client *searxng.Client, name string, opts searxng.SearchOptions, measure string) *MetaSearch {
	return &MetaSearch{client: client, name: name, opts: opts, measure: measure}
}

// Search implements the search.Pipeline interface.
func (m *MetaSearch) Search(ctx context.Context, req search.Request) <-chan json.RawMessage {
	events := make(chan json.RawMessage)
	go func() {
		defer close(events)
		m.run(ctx, req, events)
	}()
	return events
}

// emit sends one encoded event, giving up when the consumer is gone.
func emit(ctx context.Context, events chan<- json.RawMessage, event datatypes.StreamEvent) bool {
	select {
	case events <- event.Encode():
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *MetaSearch) run(ctx context.Context, req search.Request, events chan<- json.RawMessage) {
	results, _, err := m.client.Search(ctx, req.Query, &m.opts)
	if err != nil {
		slog.Error("Pipeline search failed", "pipeline", m.name, "error", err)
		emit(ctx, events, datatypes.ErrorEvent("Failed to search the web for your query.", KeySearchFailed))
		return
	}
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}

	sources := make([]datatypes.SourceInfo, 0, len(results))
	for _, r := range results {
		sources = append(sources, datatypes.SourceInfo{Title: r.Title, URL: r.URL, Content: r.Content})
	}

	// Only speed mode skips the embedding pass and takes the engine's order;
	// an omitted mode means balanced.
	if req.OptimizationMode != search.ModeSpeed && req.Embedder != nil && len(sources) > 0 {
		sources = m.rerank(ctx, req, sources)
	}
	if len(sources) > maxContextDocs {
		sources = sources[:maxContextDocs]
	}

	if !emit(ctx, events, datatypes.SourcesEvent(sources)) {
		return
	}

	messages := m.buildMessages(req, sources)
	streamErr := req.Chat.ChatStream(ctx, messages, defaultParams(), func(token string) error {
		if !emit(ctx, events, datatypes.ResponseEvent(token)) {
			return context.Canceled
		}
		return nil
	})
	if streamErr != nil && ctx.Err() == nil {
		slog.Error("Pipeline generation failed", "pipeline", m.name, "error", streamErr)
		emit(ctx, events, datatypes.ErrorEvent("Failed to generate an answer for your query.", KeyGenerationFailed))
	}
}

// rerank orders sources by similarity between the query embedding and each
// snippet embedding, dropping weak matches. Embedding failures degrade to
// the engine's original ordering rather than failing the whole call.
func (m *MetaSearch) rerank(ctx context.Context, req search.Request, sources []datatypes.SourceInfo) []datatypes.SourceInfo {
	texts := make([]string, len(sources))
	for i, s := range sources {
		text := s.Content
		if text == "" {
			text = s.Title
		}
		texts[i] = text
	}

	queryVec, err := req.Embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		slog.Warn("Query embedding failed, keeping engine order", "pipeline", m.name, "error", err)
		return sources
	}
	docVecs, err := req.Embedder.Embed(ctx, texts)
	if err != nil {
		slog.Warn("Document embedding failed, keeping engine order", "pipeline", m.name, "error", err)
		return sources
	}

	type scored struct {
		source datatypes.SourceInfo
		score  float64
	}
	ranked := make([]scored, 0, len(sources))
	for i, vec := range docVecs {
		score, err := similarity.Compute(m.measure, queryVec, vec)
		if err != nil {
			continue
		}
		if score < rerankThreshold {
			continue
		}
		ranked = append(ranked, scored{source: sources[i], score: score})
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	out := make([]datatypes.SourceInfo, len(ranked))
	for i, r := range ranked {
		out[i] = r.source
	}
	return out
}

func (m *MetaSearch) buildMessages(req search.Request, sources []datatypes.SourceInfo) []datatypes.Message {
	var contextBlock strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&contextBlock, "%d. %s (%s)\n%s\n\n", i+1, s.Title, s.URL, s.Content)
	}

	system := fmt.Sprintf(
		"You are a search assistant. Answer the user's question using only the "+
			"numbered context below. Cite sources inline as [number]. If the context "+
			"does not contain the answer, say so.\n\nContext:\n%s", contextBlock.String())

	messages := make([]datatypes.Message, 0, len(req.History)+2)
	messages = append(messages, datatypes.Message{Role: "system", Content: system})
	messages = append(messages, req.History...)
	messages = append(messages, datatypes.Message{Role: "user", Content: req.Query})
	return messages
}

func defaultParams() providers.GenerationParams {
	maxTokens := 2048
	return providers.GenerationParams{MaxTokens: &maxTokens}
}
