// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipelines

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/pkg/similarity"
	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianSearch/services/gateway/search"
	"github.com/AleutianAI/AleutianSearch/services/providers"
	"github.com/AleutianAI/AleutianSearch/services/searxng"
)

// mockChatModel streams a fixed token sequence, or fails.
type mockChatModel struct {
	tokens      []string
	err         error
	gotMessages []datatypes.Message
}

func (m *mockChatModel) Chat(_ context.Context, messages []datatypes.Message, _ providers.GenerationParams) (string, error) {
	m.gotMessages = messages
	if m.err != nil {
		return "", m.err
	}
	return strings.Join(m.tokens, ""), nil
}

func (m *mockChatModel) ChatStream(_ context.Context, messages []datatypes.Message,
	_ providers.GenerationParams, onToken providers.TokenFunc) error {
	m.gotMessages = messages
	if m.err != nil {
		return m.err
	}
	for _, token := range m.tokens {
		if err := onToken(token); err != nil {
			return err
		}
	}
	return nil
}

// mockEmbedder maps known texts to fixed vectors.
type mockEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := m.vectors[text]
		if !ok {
			vec = []float32{0, 1}
		}
		out[i] = vec
	}
	return out, nil
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func searxngStub(t *testing.T, body string, status int) *searxng.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return searxng.NewClient(server.URL)
}

func drain(t *testing.T, events <-chan json.RawMessage) []datatypes.StreamEvent {
	t.Helper()
	var out []datatypes.StreamEvent
	for raw := range events {
		event, err := datatypes.DecodeEvent(raw)
		require.NoError(t, err)
		out = append(out, event)
	}
	return out
}

func TestMetaSearch(t *testing.T) {
	const resultsBody = `{"results": [
		{"title": "First", "url": "https://a", "content": "alpha doc"},
		{"title": "Second", "url": "https://b", "content": "beta doc"}
	], "suggestions": []}`

	t.Run("emits sources then streamed answer", func(t *testing.T) {
		chat := &mockChatModel{tokens: []string{"The ", "answer."}}
		pipeline := NewMetaSearch(searxngStub(t, resultsBody, http.StatusOK),
			"webSearch", searxng.SearchOptions{}, similarity.MeasureCosine)

		events := drain(t, pipeline.Search(context.Background(), search.Request{
			Query: "what is alpha?",
			Chat:  chat,
		}))

		require.Len(t, events, 3)
		assert.Equal(t, datatypes.EventSources, events[0].Type)
		sources, err := events[0].SourceList()
		require.NoError(t, err)
		require.Len(t, sources, 2)
		assert.Equal(t, "https://a", sources[0].URL)

		first, _ := events[1].Text()
		second, _ := events[2].Text()
		assert.Equal(t, "The answer.", first+second)
	})

	t.Run("prompt grounds the model on retrieved snippets", func(t *testing.T) {
		chat := &mockChatModel{tokens: []string{"ok"}}
		pipeline := NewMetaSearch(searxngStub(t, resultsBody, http.StatusOK),
			"webSearch", searxng.SearchOptions{}, similarity.MeasureCosine)

		drain(t, pipeline.Search(context.Background(), search.Request{
			Query:   "what is alpha?",
			History: []datatypes.Message{{Role: "user", Content: "earlier question"}},
			Chat:    chat,
		}))

		require.NotEmpty(t, chat.gotMessages)
		assert.Equal(t, "system", chat.gotMessages[0].Role)
		assert.Contains(t, chat.gotMessages[0].Content, "alpha doc")
		assert.Equal(t, "earlier question", chat.gotMessages[1].Content)
		last := chat.gotMessages[len(chat.gotMessages)-1]
		assert.Equal(t, "user", last.Role)
		assert.Equal(t, "what is alpha?", last.Content)
	})

	t.Run("search failure is a single terminal error event", func(t *testing.T) {
		pipeline := NewMetaSearch(searxngStub(t, "down", http.StatusBadGateway),
			"webSearch", searxng.SearchOptions{}, similarity.MeasureCosine)

		events := drain(t, pipeline.Search(context.Background(), search.Request{
			Query: "q",
			Chat:  &mockChatModel{tokens: []string{"never"}},
		}))

		require.Len(t, events, 1)
		assert.Equal(t, datatypes.EventError, events[0].Type)
		assert.Equal(t, KeySearchFailed, events[0].Key)
	})

	t.Run("generation failure follows the sources event", func(t *testing.T) {
		pipeline := NewMetaSearch(searxngStub(t, resultsBody, http.StatusOK),
			"webSearch", searxng.SearchOptions{}, similarity.MeasureCosine)

		events := drain(t, pipeline.Search(context.Background(), search.Request{
			Query: "q",
			Chat:  &mockChatModel{err: errors.New("model unavailable")},
		}))

		require.Len(t, events, 2)
		assert.Equal(t, datatypes.EventSources, events[0].Type)
		assert.Equal(t, datatypes.EventError, events[1].Type)
		assert.Equal(t, KeyGenerationFailed, events[1].Key)
	})

	t.Run("balanced mode reranks sources by similarity", func(t *testing.T) {
		embedder := &mockEmbedder{vectors: map[string][]float32{
			"what is beta?": {1, 0},
			"alpha doc":     {0.5, 0.8},
			"beta doc":      {1, 0},
		}}
		pipeline := NewMetaSearch(searxngStub(t, resultsBody, http.StatusOK),
			"webSearch", searxng.SearchOptions{}, similarity.MeasureCosine)

		events := drain(t, pipeline.Search(context.Background(), search.Request{
			Query:            "what is beta?",
			Chat:             &mockChatModel{tokens: []string{"ok"}},
			Embedder:         embedder,
			OptimizationMode: "balanced",
		}))

		sources, err := events[0].SourceList()
		require.NoError(t, err)
		require.Len(t, sources, 2)
		assert.Equal(t, "https://b", sources[0].URL, "closest document should rank first")
	})

	t.Run("omitted mode reranks like balanced", func(t *testing.T) {
		embedder := &mockEmbedder{vectors: map[string][]float32{
			"what is beta?": {1, 0},
			"alpha doc":     {0.5, 0.8},
			"beta doc":      {1, 0},
		}}
		pipeline := NewMetaSearch(searxngStub(t, resultsBody, http.StatusOK),
			"webSearch", searxng.SearchOptions{}, similarity.MeasureCosine)

		events := drain(t, pipeline.Search(context.Background(), search.Request{
			Query:    "what is beta?",
			Chat:     &mockChatModel{tokens: []string{"ok"}},
			Embedder: embedder,
		}))

		sources, err := events[0].SourceList()
		require.NoError(t, err)
		require.Len(t, sources, 2)
		assert.Equal(t, "https://b", sources[0].URL)
	})

	t.Run("speed mode keeps the engine order without embedding", func(t *testing.T) {
		embedder := &mockEmbedder{err: errors.New("should not be called")}
		pipeline := NewMetaSearch(searxngStub(t, resultsBody, http.StatusOK),
			"webSearch", searxng.SearchOptions{}, similarity.MeasureCosine)

		events := drain(t, pipeline.Search(context.Background(), search.Request{
			Query:            "q",
			Chat:             &mockChatModel{tokens: []string{"ok"}},
			Embedder:         embedder,
			OptimizationMode: "speed",
		}))

		sources, err := events[0].SourceList()
		require.NoError(t, err)
		assert.Equal(t, "https://a", sources[0].URL)
	})

	t.Run("embedding failure degrades to engine order", func(t *testing.T) {
		embedder := &mockEmbedder{err: errors.New("sidecar down")}
		pipeline := NewMetaSearch(searxngStub(t, resultsBody, http.StatusOK),
			"webSearch", searxng.SearchOptions{}, similarity.MeasureCosine)

		events := drain(t, pipeline.Search(context.Background(), search.Request{
			Query:            "q",
			Chat:             &mockChatModel{tokens: []string{"ok"}},
			Embedder:         embedder,
			OptimizationMode: "balanced",
		}))

		assert.Equal(t, datatypes.EventSources, events[0].Type)
		sources, _ := events[0].SourceList()
		assert.Equal(t, "https://a", sources[0].URL)
	})
}

func TestWritingAssistant(t *testing.T) {
	t.Run("streams the answer with no sources event", func(t *testing.T) {
		chat := &mockChatModel{tokens: []string{"Dear ", "reader,"}}
		events := drain(t, NewWritingAssistant().Search(context.Background(), search.Request{
			Query: "draft a letter",
			Chat:  chat,
		}))

		require.Len(t, events, 2)
		for _, event := range events {
			assert.Equal(t, datatypes.EventResponse, event.Type)
		}
		assert.Equal(t, "system", chat.gotMessages[0].Role)
	})

	t.Run("generation failure is a terminal error event", func(t *testing.T) {
		events := drain(t, NewWritingAssistant().Search(context.Background(), search.Request{
			Query: "draft a letter",
			Chat:  &mockChatModel{err: errors.New("boom")},
		}))

		require.Len(t, events, 1)
		assert.Equal(t, KeyGenerationFailed, events[0].Key)
	})
}
