package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
)

var ollamaHTTPClient = &http.Client{Timeout: 10 * time.Second}

// ollamaTagsResponse is the shape of GET /api/tags on an Ollama runtime.
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// listOllamaTags returns the model names currently available on the runtime.
func listOllamaTags(ctx context.Context, baseURL string) ([]string, error) {
	tagsURL := strings.TrimSuffix(baseURL, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tagsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tags request: %w", err)
	}
	resp, err := ollamaHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama unreachable at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags returned status %d: %s", resp.StatusCode, string(body))
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("failed to parse tags response: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// OllamaChatModel wraps a langchaingo Ollama handle.
type OllamaChatModel struct {
	llm         *ollama.LLM
	temperature float32
}

func NewOllamaChatModel(baseURL, model string, temperature float32) (*OllamaChatModel, error) {
	llm, err := ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to build ollama handle for %s: %w", model, err)
	}
	return &OllamaChatModel{llm: llm, temperature: temperature}, nil
}

func (o *OllamaChatModel) buildContent(messages []datatypes.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		role := llms.ChatMessageTypeHuman
		switch msg.Role {
		case "assistant":
			role = llms.ChatMessageTypeAI
		case "system":
			role = llms.ChatMessageTypeSystem
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	return content
}

func (o *OllamaChatModel) buildOptions(params GenerationParams) []llms.CallOption {
	temperature := o.temperature
	if params.Temperature != nil {
		temperature = *params.Temperature
	}
	opts := []llms.CallOption{llms.WithTemperature(float64(temperature))}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*params.TopP)))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}
	return opts
}

// Chat implements the ChatModel interface.
func (o *OllamaChatModel) Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error) {
	resp, err := o.llm.GenerateContent(ctx, o.buildContent(messages), o.buildOptions(params)...)
	if err != nil {
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ollama returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// ChatStream implements the ChatModel interface.
func (o *OllamaChatModel) ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, onToken TokenFunc) error {
	opts := append(o.buildOptions(params), llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return onToken(string(chunk))
	}))
	if _, err := o.llm.GenerateContent(ctx, o.buildContent(messages), opts...); err != nil {
		return fmt.Errorf("ollama streaming generation failed: %w", err)
	}
	return nil
}

// OllamaEmbedder wraps a langchaingo embedder backed by an Ollama model.
type OllamaEmbedder struct {
	embedder *embeddings.EmbedderImpl
}

func NewOllamaEmbedder(baseURL, model string) (*OllamaEmbedder, error) {
	llm, err := ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to build ollama embedding handle for %s: %w", model, err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap ollama embedder for %s: %w", model, err)
	}
	return &OllamaEmbedder{embedder: embedder}, nil
}

// Embed implements the Embedder interface.
func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return o.embedder.EmbedDocuments(ctx, texts)
}

// EmbedQuery implements the Embedder interface.
func (o *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return o.embedder.EmbedQuery(ctx, text)
}
