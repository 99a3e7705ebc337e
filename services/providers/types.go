package providers

import (
	"context"

	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
)

// GenerationParams tunes a single chat invocation. Nil fields use the
// backend's defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// TokenFunc receives answer fragments in generation order. Returning an error
// aborts the stream.
type TokenFunc func(token string) error

// ChatModel is a ready-to-invoke language model handle. Handles resolved from
// the catalog are shared across sessions and must be safe for concurrent
// invocation; custom-endpoint handles are owned by the session that built them.
type ChatModel interface {
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
	ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, onToken TokenFunc) error
}

// Embedder is a ready-to-invoke embedding model handle.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
