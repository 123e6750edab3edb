package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"chefmate-backend/internal/models"
)

type chatAgent interface {
	Respond(ctx context.Context, messages []models.Message) ([]models.Message, error)
	RespondWithContext(ctx context.Context, messages []models.Message, contextText string) ([]models.Message, error)
}

// ChatHandler serves the stateless chat endpoint: the client holds the
// history, sends it whole, and gets it back with the assistant's reply
// appended. Nothing is stored server-side.
type ChatHandler struct {
	agent chatAgent
}

func NewChatHandler(agent chatAgent) *ChatHandler {
	return &ChatHandler{agent: agent}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "At least one message is required", r))
		return
	}

	for i, m := range req.Messages {
		if !models.ValidRole(m.Role) {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"messages": fmt.Sprintf("unknown role %q at index %d", m.Role, i)}, r))
			return
		}
	}

	updated, err := h.agent.Respond(r.Context(), req.Messages)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResp("LLM_ERROR", "Failed to get assistant response", r))
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Messages: updated})
}
