package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
)

// OpenAIChatModel wraps an OpenAI-compatible chat completion endpoint. The
// same handle type serves the openai and groq catalog providers and the
// caller-configured custom_openai variant; only the client config differs.
type OpenAIChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIChatModel builds a handle against api.openai.com.
func NewOpenAIChatModel(apiKey, model string, temperature float32) *OpenAIChatModel {
	return &OpenAIChatModel{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
	}
}

// NewOpenAICompatibleChatModel builds a handle against an alternate base URL
// (Groq, vLLM, llama.cpp server, or a caller-supplied custom endpoint).
func NewOpenAICompatibleChatModel(baseURL, apiKey, model string, temperature float32) *OpenAIChatModel {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIChatModel{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
	}
}

func (o *OpenAIChatModel) buildRequest(messages []datatypes.Message, params GenerationParams) openai.ChatCompletionRequest {
	apiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		switch role {
		case "system":
			role = openai.ChatMessageRoleSystem
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		default:
			role = openai.ChatMessageRoleUser
		}
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    apiMessages,
		Temperature: o.temperature,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	return req
}

// Chat implements the ChatModel interface.
func (o *OpenAIChatModel) Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.buildRequest(messages, params))
	if err != nil {
		slog.Error("OpenAI-compatible chat call failed", "model", o.model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream implements the ChatModel interface. Fragments are forwarded to
// onToken in arrival order; onToken errors abort the stream.
func (o *OpenAIChatModel) ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, onToken TokenFunc) error {
	req := o.buildRequest(messages, params)
	req.Stream = true

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to open chat completion stream: %w", err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("chat completion stream failed: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := onToken(delta); err != nil {
				return err
			}
		}
	}
}

// OpenAIEmbedder wraps the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}
}

// Embed implements the Embedder interface.
func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// EmbedQuery implements the Embedder interface.
func (o *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding request returned no vectors")
	}
	return vectors[0], nil
}
