// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleListModels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/models", HandleListModels(newTestConfigStore(t)))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Chat      map[string][]modelInfo `json:"chatModelProviders"`
		Embedding map[string][]modelInfo `json:"embeddingModelProviders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Contains(t, body.Chat, "openai")
	assert.NotEmpty(t, body.Chat["openai"])
	assert.Equal(t, "gpt-3.5-turbo", body.Chat["openai"][0].Name)

	// The custom sentinel is offered with no models; handles never appear.
	require.Contains(t, body.Chat, "custom_openai")
	assert.Empty(t, body.Chat["custom_openai"])

	require.Contains(t, body.Embedding, "openai")
	assert.NotEmpty(t, body.Embedding["openai"])
}
