// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search dispatches queries to focus-mode pipelines and adapts their
// event streams to the gateway's outbound protocol.
//
// A pipeline emits a lazy, single-pass sequence of JSON-encoded stream
// events. The two adaptations of that sequence are Collect, a pure fold used
// by the one-shot endpoint, and Relay, which forwards events verbatim over a
// persistent connection. Both guarantee exactly one terminal outcome per
// call: success with the accumulated answer, or the first error event.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianSearch/services/providers"
)

// ErrInvalidFocusMode means no pipeline is registered under the requested
// tag. No pipeline is invoked and no events are emitted.
var ErrInvalidFocusMode = errors.New("invalid focus mode")

// Optimization modes. Requests that omit the mode get ModeBalanced.
const (
	ModeSpeed    = "speed"
	ModeBalanced = "balanced"
)

// Request carries one orchestration call's inputs. History is immutable
// input; pipelines must not mutate it.
type Request struct {
	Query            string
	History          []datatypes.Message
	Chat             providers.ChatModel
	Embedder         providers.Embedder
	OptimizationMode string
}

// Pipeline is an external answer pipeline keyed by focus mode. The returned
// channel yields JSON-encoded StreamEvents and is closed when the pipeline
// finishes; an error event is terminal and anything after it is ignored.
// Pipelines must honor ctx so an abandoned consumer does not leak them.
type Pipeline interface {
	Search(ctx context.Context, req Request) <-chan json.RawMessage
}

// Registry maps focus-mode tags to pipelines. The tag set is open; register
// order is preserved for listings. Registration happens at startup, reads
// are concurrent, so no locking.
type Registry struct {
	order     []string
	pipelines map[string]Pipeline
}

func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]Pipeline)}
}

// Register adds a pipeline under tag, replacing any previous registration.
func (r *Registry) Register(tag string, p Pipeline) {
	if _, exists := r.pipelines[tag]; !exists {
		r.order = append(r.order, tag)
	}
	r.pipelines[tag] = p
}

// FocusModes returns the registered tags in registration order.
func (r *Registry) FocusModes() []string {
	modes := make([]string, len(r.order))
	copy(modes, r.order)
	return modes
}

// Handle looks up focusMode and invokes the matched pipeline.
func (r *Registry) Handle(ctx context.Context, focusMode string, req Request) (<-chan json.RawMessage, error) {
	pipeline, ok := r.pipelines[focusMode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFocusMode, focusMode)
	}
	if req.OptimizationMode == "" {
		req.OptimizationMode = ModeBalanced
	}
	return pipeline.Search(ctx, req), nil
}

// PipelineError is the terminal failure of one orchestration call, carrying
// the pipeline's human-readable text and machine key.
type PipelineError struct {
	Text string
	Key  string
}

func (e *PipelineError) Error() string {
	return e.Text
}

// Result is the terminal success of one orchestration call.
type Result struct {
	Message string                 `json:"message"`
	Sources []datatypes.SourceInfo `json:"sources"`
}

// Collect folds a pipeline event sequence into a single Result: response
// fragments concatenate in order, each sources event replaces the held list,
// and the first error event short-circuits the fold; fragments seen before
// it are discarded and later events are never consumed. Callers must cancel
// the pipeline context when Collect returns so an abandoned producer can
// exit.
func Collect(events <-chan json.RawMessage) (Result, error) {
	result := Result{Sources: []datatypes.SourceInfo{}}
	for raw := range events {
		event, err := datatypes.DecodeEvent(raw)
		if err != nil {
			slog.Warn("Dropping undecodable pipeline event", "error", err)
			continue
		}
		switch event.Type {
		case datatypes.EventResponse:
			fragment, err := event.Text()
			if err != nil {
				slog.Warn("Dropping malformed response event", "error", err)
				continue
			}
			result.Message += fragment
		case datatypes.EventSources:
			sources, err := event.SourceList()
			if err != nil {
				slog.Warn("Dropping malformed sources event", "error", err)
				continue
			}
			result.Sources = sources
		case datatypes.EventError:
			text, _ := event.Text()
			key := event.Key
			if key == "" {
				key = datatypes.KeyInternalServerError
			}
			return Result{}, &PipelineError{Text: text, Key: key}
		}
	}
	return result, nil
}

// Relay forwards each pipeline event verbatim via send, appending exactly one
// terminal frame: the end signal on clean completion, or nothing beyond the
// pipeline's own error event (which is already terminal). It returns the
// accumulated answer and last source list for persistence.
//
// A send failure (typically a closed connection) stops relaying immediately;
// the caller is expected to log it and tear the session down.
func Relay(events <-chan json.RawMessage, send func(json.RawMessage) error) (Result, error) {
	result := Result{Sources: []datatypes.SourceInfo{}}
	for raw := range events {
		event, err := datatypes.DecodeEvent(raw)
		if err != nil {
			slog.Warn("Dropping undecodable pipeline event", "error", err)
			continue
		}
		if err := send(raw); err != nil {
			return Result{}, fmt.Errorf("failed to relay %s event: %w", event.Type, err)
		}
		switch event.Type {
		case datatypes.EventResponse:
			fragment, err := event.Text()
			if err == nil {
				result.Message += fragment
			}
		case datatypes.EventSources:
			sources, err := event.SourceList()
			if err == nil {
				result.Sources = sources
			}
		case datatypes.EventError:
			text, _ := event.Text()
			key := event.Key
			if key == "" {
				key = datatypes.KeyInternalServerError
			}
			return Result{}, &PipelineError{Text: text, Key: key}
		}
	}
	if err := send(datatypes.SignalEvent(datatypes.SignalEnd).Encode()); err != nil {
		return Result{}, fmt.Errorf("failed to send end signal: %w", err)
	}
	return result, nil
}
