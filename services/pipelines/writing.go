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
	"log/slog"

	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianSearch/services/gateway/search"
)

const writingSystemPrompt = "You are a careful writing assistant. Help the " +
	"user draft, rewrite or polish text. Do not invent citations or claim to " +
	"have searched the web."

// WritingAssistant streams the chat model's answer directly, with no
// retrieval step and no sources event.
type WritingAssistant struct{}

// NewWritingAssistant returns the retrieval-free pipeline.
func NewWritingAssistant() *WritingAssistant {
	return &WritingAssistant{}
}

// Search implements the search.Pipeline interface.
func (w *WritingAssistant) Search(ctx context.Context, req search.Request) <-chan json.RawMessage {
	events := make(chan json.RawMessage)
	go func() {
		defer close(events)

		messages := make([]datatypes.Message, 0, len(req.History)+2)
		messages = append(messages, datatypes.Message{Role: "system", Content: writingSystemPrompt})
		messages = append(messages, req.History...)
		messages = append(messages, datatypes.Message{Role: "user", Content: req.Query})

		err := req.Chat.ChatStream(ctx, messages, defaultParams(), func(token string) error {
			if !emit(ctx, events, datatypes.ResponseEvent(token)) {
				return context.Canceled
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("Pipeline generation failed", "pipeline", "writingAssistant", "error", err)
			emit(ctx, events, datatypes.ErrorEvent("Failed to generate an answer for your query.", KeyGenerationFailed))
		}
	}()
	return events
}
