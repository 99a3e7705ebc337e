// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"
)

// Stream event kinds. One orchestration call emits a sequence of events and
// exactly one terminal event: either the end signal or an error.
const (
	EventResponse = "response" // incremental answer text fragment
	EventSources  = "sources"  // full replacement of the source list
	EventSignal   = "signal"   // control token ("open", "end")
	EventError    = "error"    // terminal failure, carries a machine key
)

// Control tokens carried by signal events.
const (
	SignalOpen = "open"
	SignalEnd  = "end"
)

// Machine-readable error keys sent alongside error events.
const (
	KeyInvalidModelSelected = "INVALID_MODEL_SELECTED"
	KeyInvalidFocusMode     = "INVALID_FOCUS_MODE"
	KeyInvalidRequest       = "INVALID_REQUEST"
	KeyRateLimited          = "RATE_LIMITED"
	KeyInternalServerError  = "INTERNAL_SERVER_ERROR"
)

// StreamEvent is the tagged union relayed to clients as a UTF-8 JSON frame:
// {type, data, key?}. Data is kept raw so relaying preserves the payload
// byte-for-byte; use the typed accessors to decode.
type StreamEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Key  string          `json:"key,omitempty"`
}

// ResponseEvent builds a response event carrying one answer fragment.
func ResponseEvent(fragment string) StreamEvent {
	data, _ := json.Marshal(fragment)
	return StreamEvent{Type: EventResponse, Data: data}
}

// SourcesEvent builds a sources event carrying the full replacement list.
func SourcesEvent(sources []SourceInfo) StreamEvent {
	if sources == nil {
		sources = []SourceInfo{}
	}
	data, _ := json.Marshal(sources)
	return StreamEvent{Type: EventSources, Data: data}
}

// SignalEvent builds a control signal event.
func SignalEvent(token string) StreamEvent {
	data, _ := json.Marshal(token)
	return StreamEvent{Type: EventSignal, Data: data}
}

// ErrorEvent builds a terminal error event with human text and machine key.
func ErrorEvent(text, key string) StreamEvent {
	data, _ := json.Marshal(text)
	return StreamEvent{Type: EventError, Data: data, Key: key}
}

// Text decodes the event payload as a string. Valid for response, signal and
// error events.
func (e StreamEvent) Text() (string, error) {
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", fmt.Errorf("event %q payload is not a string: %w", e.Type, err)
	}
	return s, nil
}

// SourceList decodes the event payload as a source list. Valid for sources
// events.
func (e StreamEvent) SourceList() ([]SourceInfo, error) {
	var sources []SourceInfo
	if err := json.Unmarshal(e.Data, &sources); err != nil {
		return nil, fmt.Errorf("event %q payload is not a source list: %w", e.Type, err)
	}
	return sources, nil
}

// Encode serializes the event to its wire frame.
func (e StreamEvent) Encode() json.RawMessage {
	raw, _ := json.Marshal(e)
	return raw
}

// DecodeEvent parses one raw pipeline payload into a StreamEvent.
func DecodeEvent(raw json.RawMessage) (StreamEvent, error) {
	var event StreamEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return StreamEvent{}, fmt.Errorf("malformed stream event: %w", err)
	}
	if event.Type == "" {
		return StreamEvent{}, fmt.Errorf("stream event missing type tag")
	}
	return event, nil
}
