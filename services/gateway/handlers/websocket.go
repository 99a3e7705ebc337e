package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianSearch/pkg/config"
	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianSearch/services/gateway/observability"
	"github.com/AleutianAI/AleutianSearch/services/gateway/search"
	"github.com/AleutianAI/AleutianSearch/services/gateway/store"
	"github.com/AleutianAI/AleutianSearch/services/providers"
)

// sessionTemperature is bound into custom-endpoint handles resolved for a
// persistent session. One-shot requests use a lower value (see search.go).
const sessionTemperature float32 = 0.7

// Inbound frame rate per session. Searches are expensive; a client has no
// legitimate reason to exceed this.
const (
	messageRatePerSecond = 1
	messageBurst         = 5
)

// wsFrame is one inbound session message.
type wsFrame struct {
	Type    string `json:"type"`
	Message struct {
		ChatID  string `json:"chatId"`
		Content string `json:"content"`
	} `json:"message"`
	FocusMode        string      `json:"focusMode"`
	OptimizationMode string      `json:"optimizationMode"`
	History          [][2]string `json:"history"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024 * 1024,
	WriteBufferSize: 1024 * 1024,
}

func sendEvent(ws *websocket.Conn, event datatypes.StreamEvent) error {
	err := ws.WriteMessage(websocket.TextMessage, event.Encode())
	if err != nil {
		slog.Warn("Failed to write WebSocket event", "error", err)
	}
	return err
}

// HandleSearchSocket upgrades the connection and runs the session loop.
//
// Model selection comes from query parameters and is resolved exactly once,
// before the first frame is read; the session then holds its handles for its
// whole lifetime, unaffected by config changes. Resolution failure sends a
// single error event and closes. A successful setup is acknowledged with the
// open signal, after which frames are processed strictly one at a time.
func HandleSearchSocket(cfgStore *config.Store, registry *search.Registry,
	chats *store.ChatStore, metrics *observability.GatewayMetrics) gin.HandlerFunc {

	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		sessionID := uuid.New().String()
		slog.Info("Websocket session connecting", "sessionID", sessionID)

		ctx := c.Request.Context()
		cfg := cfgStore.Snapshot()

		q := c.Request.URL.Query()
		sel := providers.Selection{
			ChatProvider:      q.Get("chatModelProvider"),
			ChatModel:         q.Get("chatModel"),
			EmbeddingProvider: q.Get("embeddingModelProvider"),
			EmbeddingModel:    q.Get("embeddingModel"),
			CustomBaseURL:     q.Get("openAIBaseURL"),
			CustomAPIKey:      q.Get("openAIApiKey"),
			CustomTemperature: sessionTemperature,
		}

		// Both catalogs are built concurrently; a slow provider delays setup
		// but never fails it.
		var chatCatalog providers.ChatCatalog
		var embeddingCatalog providers.EmbeddingCatalog
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			chatCatalog = providers.ListChatProviders(gctx, cfg)
			return nil
		})
		g.Go(func() error {
			embeddingCatalog = providers.ListEmbeddingProviders(gctx, cfg)
			return nil
		})
		_ = g.Wait()

		chat, embedder, err := providers.Resolve(chatCatalog, embeddingCatalog, sel)
		if err != nil {
			slog.Warn("Session model resolution failed", "sessionID", sessionID, "error", err)
			_ = sendEvent(ws, datatypes.ErrorEvent(
				"Invalid LLM or embeddings model selected, please refresh the page and try again.",
				datatypes.KeyInvalidModelSelected))
			return
		}

		// The open signal is sent exactly once, only after the session can
		// actually serve queries.
		if err := sendEvent(ws, datatypes.SignalEvent(datatypes.SignalOpen)); err != nil {
			return
		}
		slog.Info("Websocket session ready", "sessionID", sessionID)

		metrics.SessionOpened()
		defer metrics.SessionClosed()

		limiter := rate.NewLimiter(rate.Limit(messageRatePerSecond), messageBurst)

		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				slog.Info("Websocket client disconnected", "sessionID", sessionID, "error", err.Error())
				return
			}

			if !limiter.Allow() {
				metrics.RecordMessage(observability.MessageRateLimited)
				if err := sendEvent(ws, datatypes.ErrorEvent(
					"Too many messages, slow down.", datatypes.KeyRateLimited)); err != nil {
					return
				}
				continue
			}

			var frame wsFrame
			if err := json.Unmarshal(raw, &frame); err != nil ||
				frame.Type != "message" || frame.Message.Content == "" || frame.FocusMode == "" {
				metrics.RecordMessage(observability.MessageMalformed)
				if err := sendEvent(ws, datatypes.ErrorEvent(
					"Invalid message format.", datatypes.KeyInvalidRequest)); err != nil {
					return
				}
				continue
			}
			metrics.RecordMessage(observability.MessageAccepted)

			req := search.Request{
				Query:            frame.Message.Content,
				History:          datatypes.ParseHistory(frame.History),
				Chat:             chat,
				Embedder:         embedder,
				OptimizationMode: frame.OptimizationMode,
			}

			start := time.Now()
			events, err := registry.Handle(ctx, frame.FocusMode, req)
			if err != nil {
				slog.Warn("Unknown focus mode requested", "sessionID", sessionID, "focusMode", frame.FocusMode)
				if err := sendEvent(ws, datatypes.ErrorEvent(
					"Invalid focus mode.", datatypes.KeyInvalidFocusMode)); err != nil {
					return
				}
				continue
			}

			result, relayErr := search.Relay(events, func(raw json.RawMessage) error {
				if event, err := datatypes.DecodeEvent(raw); err == nil {
					metrics.RecordEvent(event.Type)
				}
				return ws.WriteMessage(websocket.TextMessage, raw)
			})
			metrics.RecordSearch(observability.SurfaceSession, frame.FocusMode,
				time.Since(start).Seconds(), relayErr == nil)

			if relayErr != nil {
				var pipelineErr *search.PipelineError
				if errors.As(relayErr, &pipelineErr) {
					// The error event itself was already relayed; the
					// session stays open for the next frame.
					metrics.RecordErrorKey(pipelineErr.Key)
					continue
				}
				slog.Warn("Relay aborted", "sessionID", sessionID, "error", relayErr)
				return
			}

			if chats != nil && frame.Message.ChatID != "" {
				// Persist in the background so the next frame is not delayed.
				go persistTurns(chats, frame.Message.ChatID, frame.FocusMode,
					frame.Message.Content, result)
			}
		}
	}
}

// persistTurns appends the user query and the assistant answer to the chat.
func persistTurns(chats *store.ChatStore, chatID, focusMode, query string, result search.Result) {
	if err := chats.SaveTurn(chatID, focusMode, store.Turn{Role: "user", Content: query}); err != nil {
		slog.Warn("Failed to save user turn", "chatID", chatID, "error", err)
		return
	}
	if err := chats.SaveTurn(chatID, focusMode, store.Turn{
		Role:    "assistant",
		Content: result.Message,
		Sources: result.Sources,
	}); err != nil {
		slog.Warn("Failed to save assistant turn", "chatID", chatID, "error", err)
	}
}
