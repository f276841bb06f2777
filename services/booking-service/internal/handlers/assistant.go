package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/assistant"
)

const maxPromptRunes = 4000

type AssistantHandler struct {
	gen    assistant.Generator
	logger *slog.Logger
}

func NewAssistantHandler(gen assistant.Generator, logger *slog.Logger) *AssistantHandler {
	return &AssistantHandler{gen: gen, logger: logger}
}

type assistantRequest struct {
	Prompt string `json:"prompt"`
}

type assistantResponse struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// Generate never fails on the generator's account; the widget shows the fallback text instead.
func (h *AssistantHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}
	if utf8.RuneCountInString(prompt) > maxPromptRunes {
		http.Error(w, "prompt too long", http.StatusRequestEntityTooLarge)
		return
	}

	text, err := h.gen.GenerateText(r.Context(), prompt)
	if err != nil {
		if errors.Is(err, assistant.ErrMissingCredential) {
			h.logger.Debug("assistant not configured")
		} else {
			h.logger.Warn("assistant generation failed", "err", err)
		}
		writeJSON(w, http.StatusOK, assistantResponse{Text: assistant.Fallback, Fallback: true})
		return
	}
	writeJSON(w, http.StatusOK, assistantResponse{Text: text})
}
