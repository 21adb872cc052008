package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/upb/commerce-gateway/chat"
	"github.com/upb/commerce-gateway/middleware"
	"github.com/upb/commerce-gateway/services"
	"github.com/upb/commerce-gateway/utils"
	"go.uber.org/zap"
)

// maxMessageLength bounds the chat query parameter
const maxMessageLength = 4000

// ChatService answers one conversational turn
type ChatService interface {
	Chat(ctx context.Context, authHeader, message string) (string, error)
}

// ChatHandler serves the conversational endpoint
type ChatHandler struct {
	chat   ChatService
	logger *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(svc ChatService, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{chat: svc, logger: logger}
}

// HandleChat handles GET /chat?message=...
// The answer, including a refusal, is returned as plain text.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	message := r.URL.Query().Get("message")
	if strings.TrimSpace(message) == "" {
		HandleServiceError(w, services.ErrMissingMessage, h.logger)
		return
	}
	if len(message) > maxMessageLength {
		HandleServiceError(w, services.ErrMessageTooLong.WithDetail("max_length", maxMessageLength), h.logger)
		return
	}

	answer, err := h.chat.Chat(r.Context(), r.Header.Get("Authorization"), message)
	if err != nil {
		if errors.Is(err, chat.ErrBackendUnavailable) {
			err = services.WrapUnavailable("assistant temporarily unavailable", err)
		} else {
			err = services.WrapInternal("chat failed", err)
		}
		h.logger.Debug("chat request failed", zap.String("request_id", requestID))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteText(w, http.StatusOK, answer)
}
