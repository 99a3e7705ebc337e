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
	"strings"
	"testing"
)

func TestStreamEventWireFormat(t *testing.T) {
	t.Run("error events carry both text and key", func(t *testing.T) {
		raw := ErrorEvent("something broke", KeyInvalidRequest).Encode()

		event, err := DecodeEvent(raw)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if event.Type != EventError {
			t.Errorf("type = %q, want %q", event.Type, EventError)
		}
		if event.Key != KeyInvalidRequest {
			t.Errorf("key = %q, want %q", event.Key, KeyInvalidRequest)
		}
		text, err := event.Text()
		if err != nil || text != "something broke" {
			t.Errorf("text = %q (%v)", text, err)
		}
	})

	t.Run("key is omitted from non-error frames", func(t *testing.T) {
		frame := string(ResponseEvent("chunk").Encode())
		if strings.Contains(frame, `"key"`) {
			t.Errorf("response frame should not carry a key: %s", frame)
		}
	})

	t.Run("sources round-trip through the raw payload", func(t *testing.T) {
		in := []SourceInfo{{Title: "Go", URL: "https://go.dev", Content: "docs"}}
		event, err := DecodeEvent(SourcesEvent(in).Encode())
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		out, err := event.SourceList()
		if err != nil {
			t.Fatalf("source list: %v", err)
		}
		if len(out) != 1 || out[0].URL != "https://go.dev" {
			t.Errorf("unexpected sources: %+v", out)
		}
	})

	t.Run("nil sources encode as an empty array, not null", func(t *testing.T) {
		event := SourcesEvent(nil)
		if string(event.Data) != "[]" {
			t.Errorf("data = %s, want []", event.Data)
		}
	})

	t.Run("missing type tag is rejected", func(t *testing.T) {
		if _, err := DecodeEvent(json.RawMessage(`{"data":"orphan"}`)); err == nil {
			t.Error("expected an error for a frame without a type")
		}
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		if _, err := DecodeEvent(json.RawMessage(`{broken`)); err == nil {
			t.Error("expected an error for malformed JSON")
		}
	})
}
