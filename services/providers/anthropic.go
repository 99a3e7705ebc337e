package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
)

const (
	anthropicAPIVersion  = "2023-06-01"
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicMaxTokens   = 4096
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
	TopP        *float32           `json:"top_p,omitempty"`
	StopSeqs    []string           `json:"stop_sequences,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

// anthropicStreamEvent is the subset of the streaming payload we consume:
// content_block_delta events carrying text deltas, and error events.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *anthropicError `json:"error,omitempty"`
}

// AnthropicChatModel talks to the Anthropic Messages API directly over HTTP.
type AnthropicChatModel struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	temperature float32
}

func NewAnthropicChatModel(apiKey, model string, temperature float32) *AnthropicChatModel {
	return &AnthropicChatModel{
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
	}
}

func (a *AnthropicChatModel) buildRequest(messages []datatypes.Message, params GenerationParams, stream bool) anthropicRequest {
	var apiMessages []anthropicMessage
	var system string
	for _, msg := range messages {
		if strings.EqualFold(msg.Role, "system") {
			system = msg.Content
			continue
		}
		role := msg.Role
		if role != "assistant" {
			role = "user"
		}
		apiMessages = append(apiMessages, anthropicMessage{Role: role, Content: msg.Content})
	}

	req := anthropicRequest{
		Model:     a.model,
		Messages:  apiMessages,
		System:    system,
		MaxTokens: anthropicMaxTokens,
		Stream:    stream,
	}
	temperature := a.temperature
	if params.Temperature != nil {
		temperature = *params.Temperature
	}
	req.Temperature = &temperature
	if params.TopP != nil {
		req.TopP = params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.StopSeqs = params.Stop
	}
	return req
}

func (a *AnthropicChatModel) send(ctx context.Context, payload anthropicRequest) (*http.Response, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	return resp, nil
}

// Chat implements the ChatModel interface.
func (a *AnthropicChatModel) Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error) {
	resp, err := a.send(ctx, a.buildRequest(messages, params, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		slog.Error("Anthropic returned an error", "status_code", resp.StatusCode, "model", a.model)
		return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	var answer strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			answer.WriteString(block.Text)
		}
	}
	if answer.Len() == 0 {
		return "", fmt.Errorf("received empty content from Anthropic")
	}
	return answer.String(), nil
}

// ChatStream implements the ChatModel interface by consuming the Messages
// API server-sent event stream.
func (a *AnthropicChatModel) ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, onToken TokenFunc) error {
	resp, err := a.send(ctx, a.buildRequest(messages, params, true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			slog.Warn("Skipping unparseable Anthropic stream line", "error", err)
			continue
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				if err := onToken(event.Delta.Text); err != nil {
					return err
				}
			}
		case "error":
			if event.Error != nil {
				return fmt.Errorf("anthropic stream error: %s - %s", event.Error.Type, event.Error.Message)
			}
			return fmt.Errorf("anthropic stream error")
		case "message_stop":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("anthropic stream read failed: %w", err)
	}
	return nil
}
