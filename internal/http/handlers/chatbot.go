package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/safehug/internal/chatbot"
	"github.com/wolfman30/safehug/internal/http/middleware"
	"github.com/wolfman30/safehug/pkg/logging"
)

const chatbotFailureMessage = "죄송합니다. 오류가 발생했습니다."

type chatbotService interface {
	Reply(ctx context.Context, req chatbot.Request) (*chatbot.Reply, error)
}

// ChatbotHandler serves the counselling chatbot.
type ChatbotHandler struct {
	service chatbotService
	logger  *logging.Logger
}

func NewChatbotHandler(service chatbotService, logger *logging.Logger) *ChatbotHandler {
	if service == nil {
		panic("handlers: chatbot service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatbotHandler{service: service, logger: logger}
}

type chatbotRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatbotResponse struct {
	*chatbot.Reply
	Type string `json:"type"`
}

// Reply answers one chat message. Model failures still answer in the chat
// shape with type "error" so the client can render them inline.
// POST /chatbot/messages
func (h *ChatbotHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req chatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	reply, err := h.service.Reply(r.Context(), chatbot.Request{
		UserID:    middleware.UserID(r.Context()),
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		if errors.Is(err, chatbot.ErrInvalidMessage) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("chatbot reply failed", "error", err)
		writeJSON(w, http.StatusBadGateway, chatbotResponse{
			Reply: &chatbot.Reply{SessionID: req.SessionID, Message: chatbotFailureMessage, Options: []string{}},
			Type:  "error",
		})
		return
	}
	writeJSON(w, http.StatusOK, chatbotResponse{Reply: reply, Type: "bot"})
}
