// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package searxng is a thin client for a SearXNG instance's JSON search API.
package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearchOptions narrows a search to particular engine categories.
type SearchOptions struct {
	Categories []string
	Engines    []string
	Language   string
	PageNo     int
}

// SearchResult is one hit returned by SearXNG. Fields beyond Title/URL are
// engine-dependent and may be empty.
type SearchResult struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Content      string `json:"content,omitempty"`
	ImgSrc       string `json:"img_src,omitempty"`
	ThumbnailSrc string `json:"thumbnail_src,omitempty"`
	IframeSrc    string `json:"iframe_src,omitempty"`
	Author       string `json:"author,omitempty"`
}

type searchResponse struct {
	Results     []SearchResult `json:"results"`
	Suggestions []string       `json:"suggestions"`
}

// Client queries one SearXNG instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Search runs a query and returns results plus engine suggestions.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) ([]SearchResult, []string, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	if opts != nil {
		if len(opts.Categories) > 0 {
			params.Set("categories", strings.Join(opts.Categories, ","))
		}
		if len(opts.Engines) > 0 {
			params.Set("engines", strings.Join(opts.Engines, ","))
		}
		if opts.Language != "" {
			params.Set("language", opts.Language)
		}
		if opts.PageNo > 0 {
			params.Set("pageno", strconv.Itoa(opts.PageNo))
		}
	}

	searchURL := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("searxng request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read searxng response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("searxng returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, nil, fmt.Errorf("failed to parse searxng response: %w", err)
	}
	return parsed.Results, parsed.Suggestions, nil
}
