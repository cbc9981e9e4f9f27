package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"smartreply-backend/internal/middleware"
	"smartreply-backend/internal/models"
)

const maxRequestBytes = 64 << 10

type smartReplyGenerator interface {
	Generate(ctx context.Context, messages []models.ConversationMessage) models.SmartReplyResult
	Configured() bool
}

type SmartReplyHandler struct {
	generator smartReplyGenerator
	provider  string
	log       *zap.Logger
}

func NewSmartReplyHandler(generator smartReplyGenerator, provider string, logger *zap.Logger) *SmartReplyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SmartReplyHandler{generator: generator, provider: provider, log: logger}
}

// Generate serves POST /api/smart-replies. The request context flows into the
// generator, so a client that goes away cancels the inference call.
func (h *SmartReplyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	messages, fields, ok := decodeMessages(req.Messages)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "messages array is required", r))
		return
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	result := h.generator.Generate(r.Context(), messages)

	h.log.Debug("Smart replies generated",
		zap.String("user_id", middleware.GetUserID(r.Context())),
		zap.String("request_id", r.Header.Get(middleware.RequestIDHeader)),
		zap.Int("messages", len(messages)),
		zap.Bool("is_ai", result.IsAI),
	)

	writeJSON(w, http.StatusOK, result)
}

// Health serves GET /health.
func (h *SmartReplyHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"provider":      h.provider,
		"ai_configured": h.generator.Configured(),
	})
}

// decodeMessages returns ok=false when raw is missing or not an array, and a
// non-empty fields map when individual messages are invalid.
func decodeMessages(raw json.RawMessage) ([]models.ConversationMessage, map[string]string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, nil, false
	}

	var messages []models.ConversationMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, nil, false
	}

	fields := map[string]string{}
	for i, m := range messages {
		if strings.TrimSpace(m.User) == "" {
			fields[fmt.Sprintf("messages[%d].user", i)] = "User is required"
		}
	}
	return messages, fields, true
}
