// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides the wire-level data structures for the search
// gateway: conversation history, source records, and the streaming event
// protocol shared by the websocket and one-shot entry points.
package datatypes

// Message is one turn of conversation history handed to a pipeline.
// Role is normalized to "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SourceInfo describes one retrieved document backing an answer.
type SourceInfo struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`
}

// History roles accepted on the wire. Clients send langchain-style role tags;
// anything else is dropped, not an error.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// ParseHistory converts wire-format history pairs ([role, text], oldest
// first) into Messages. Unrecognized roles are silently skipped and order is
// preserved. The returned slice is freshly allocated; callers may append to
// it without touching the input.
func ParseHistory(pairs [][2]string) []Message {
	history := make([]Message, 0, len(pairs))
	for _, pair := range pairs {
		switch pair[0] {
		case RoleHuman:
			history = append(history, Message{Role: "user", Content: pair[1]})
		case RoleAssistant:
			history = append(history, Message{Role: "assistant", Content: pair[1]})
		}
	}
	return history
}
