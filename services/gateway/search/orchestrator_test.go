// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
)

// eventChan turns a fixed event list into the channel a pipeline would
// produce.
func eventChan(events ...datatypes.StreamEvent) <-chan json.RawMessage {
	ch := make(chan json.RawMessage, len(events))
	for _, e := range events {
		ch <- e.Encode()
	}
	close(ch)
	return ch
}

// stubPipeline replays a fixed event sequence.
type stubPipeline struct {
	events []datatypes.StreamEvent
}

func (s *stubPipeline) Search(_ context.Context, _ Request) <-chan json.RawMessage {
	return eventChan(s.events...)
}

// recordingPipeline captures the request it was dispatched with.
type recordingPipeline struct {
	got Request
}

func (r *recordingPipeline) Search(_ context.Context, req Request) <-chan json.RawMessage {
	r.got = req
	return eventChan()
}

func TestCollect(t *testing.T) {
	t.Run("concatenates response fragments in order", func(t *testing.T) {
		result, err := Collect(eventChan(
			datatypes.ResponseEvent("A"),
			datatypes.ResponseEvent("B"),
			datatypes.ResponseEvent("C"),
		))
		require.NoError(t, err)
		assert.Equal(t, "ABC", result.Message)
		assert.Empty(t, result.Sources)
	})

	t.Run("sources event replaces the held list", func(t *testing.T) {
		first := []datatypes.SourceInfo{{Title: "old", URL: "https://a"}}
		second := []datatypes.SourceInfo{{Title: "new", URL: "https://b"}}
		result, err := Collect(eventChan(
			datatypes.SourcesEvent(first),
			datatypes.ResponseEvent("answer"),
			datatypes.SourcesEvent(second),
		))
		require.NoError(t, err)
		assert.Equal(t, second, result.Sources)
	})

	t.Run("error event short-circuits and discards prior fragments", func(t *testing.T) {
		result, err := Collect(eventChan(
			datatypes.ResponseEvent("A"),
			datatypes.ErrorEvent("search blew up", "SEARCH_FAILED"),
			datatypes.ResponseEvent("never consumed"),
		))
		require.Error(t, err)
		assert.Empty(t, result.Message)

		var pipelineErr *PipelineError
		require.ErrorAs(t, err, &pipelineErr)
		assert.Equal(t, "search blew up", pipelineErr.Text)
		assert.Equal(t, "SEARCH_FAILED", pipelineErr.Key)
	})

	t.Run("error event without a key gets the internal key", func(t *testing.T) {
		_, err := Collect(eventChan(datatypes.ErrorEvent("boom", "")))
		var pipelineErr *PipelineError
		require.ErrorAs(t, err, &pipelineErr)
		assert.Equal(t, datatypes.KeyInternalServerError, pipelineErr.Key)
	})

	t.Run("undecodable events are dropped, not fatal", func(t *testing.T) {
		ch := make(chan json.RawMessage, 3)
		ch <- json.RawMessage(`{not json`)
		ch <- json.RawMessage(`{"data":"no type tag"}`)
		ch <- datatypes.ResponseEvent("ok").Encode()
		close(ch)

		result, err := Collect(ch)
		require.NoError(t, err)
		assert.Equal(t, "ok", result.Message)
	})

	t.Run("empty stream yields empty result with non-nil sources", func(t *testing.T) {
		result, err := Collect(eventChan())
		require.NoError(t, err)
		assert.Equal(t, "", result.Message)
		assert.NotNil(t, result.Sources)
	})
}

func TestRelay(t *testing.T) {
	t.Run("forwards events verbatim and appends the end signal", func(t *testing.T) {
		sources := []datatypes.SourceInfo{{Title: "doc", URL: "https://x"}}
		var sent []datatypes.StreamEvent
		result, err := Relay(eventChan(
			datatypes.SourcesEvent(sources),
			datatypes.ResponseEvent("hello "),
			datatypes.ResponseEvent("world"),
		), func(raw json.RawMessage) error {
			event, decodeErr := datatypes.DecodeEvent(raw)
			require.NoError(t, decodeErr)
			sent = append(sent, event)
			return nil
		})
		require.NoError(t, err)

		require.Len(t, sent, 4)
		assert.Equal(t, datatypes.EventSources, sent[0].Type)
		assert.Equal(t, datatypes.EventResponse, sent[1].Type)
		assert.Equal(t, datatypes.EventResponse, sent[2].Type)
		assert.Equal(t, datatypes.EventSignal, sent[3].Type)
		token, _ := sent[3].Text()
		assert.Equal(t, datatypes.SignalEnd, token)

		assert.Equal(t, "hello world", result.Message)
		assert.Equal(t, sources, result.Sources)
	})

	t.Run("error event is terminal and suppresses the end signal", func(t *testing.T) {
		var sent []datatypes.StreamEvent
		_, err := Relay(eventChan(
			datatypes.ResponseEvent("partial"),
			datatypes.ErrorEvent("model died", "GENERATION_FAILED"),
		), func(raw json.RawMessage) error {
			event, _ := datatypes.DecodeEvent(raw)
			sent = append(sent, event)
			return nil
		})
		require.Error(t, err)

		var pipelineErr *PipelineError
		require.ErrorAs(t, err, &pipelineErr)
		assert.Equal(t, "GENERATION_FAILED", pipelineErr.Key)

		// The error event itself was forwarded; nothing follows it.
		require.Len(t, sent, 2)
		assert.Equal(t, datatypes.EventError, sent[1].Type)
	})

	t.Run("send failure aborts immediately", func(t *testing.T) {
		sendErr := errors.New("connection closed")
		calls := 0
		_, err := Relay(eventChan(
			datatypes.ResponseEvent("a"),
			datatypes.ResponseEvent("b"),
		), func(json.RawMessage) error {
			calls++
			return sendErr
		})
		require.ErrorIs(t, err, sendErr)
		assert.Equal(t, 1, calls)
	})
}

func TestRegistry(t *testing.T) {
	t.Run("unknown focus mode is rejected without invoking anything", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("webSearch", &stubPipeline{})

		_, err := registry.Handle(context.Background(), "telepathy", Request{})
		assert.ErrorIs(t, err, ErrInvalidFocusMode)
	})

	t.Run("focus modes list preserves registration order", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("webSearch", &stubPipeline{})
		registry.Register("writingAssistant", &stubPipeline{})
		registry.Register("webSearch", &stubPipeline{}) // replace, not reorder

		assert.Equal(t, []string{"webSearch", "writingAssistant"}, registry.FocusModes())
	})

	t.Run("omitted optimization mode defaults to balanced", func(t *testing.T) {
		recorder := &recordingPipeline{}
		registry := NewRegistry()
		registry.Register("webSearch", recorder)

		_, err := registry.Handle(context.Background(), "webSearch", Request{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, ModeBalanced, recorder.got.OptimizationMode)

		_, err = registry.Handle(context.Background(), "webSearch",
			Request{Query: "q", OptimizationMode: ModeSpeed})
		require.NoError(t, err)
		assert.Equal(t, ModeSpeed, recorder.got.OptimizationMode)
	})

	t.Run("dispatch reaches the registered pipeline", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("webSearch", &stubPipeline{events: []datatypes.StreamEvent{
			datatypes.ResponseEvent("dispatched"),
		}})

		events, err := registry.Handle(context.Background(), "webSearch", Request{})
		require.NoError(t, err)
		result, err := Collect(events)
		require.NoError(t, err)
		assert.Equal(t, "dispatched", result.Message)
	})
}
