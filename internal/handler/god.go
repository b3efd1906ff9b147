package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/auth"
	"github.com/kamiapp/kami/internal/service"
)

// GodHandler exposes god creation, listing and the chat exchange.
type GodHandler struct {
	godSvc *service.GodService
	logger *slog.Logger
}

func NewGodHandler(godSvc *service.GodService, logger *slog.Logger) *GodHandler {
	return &GodHandler{godSvc: godSvc, logger: logger}
}

// HandleCreate creates a god, debiting the creation cost.
//
// HTTP: POST /api/gods (protected)
// 201 {god, newBalance} | 400 insufficient funds or validation
func (h *GodHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var in service.CreateGodInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	result, err := h.godSvc.Create(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"god":        result.God,
		"newBalance": result.NewBalance,
	})
}

// HandleMyGods lists the caller's own gods.
//
// HTTP: GET /api/gods/my (protected)
func (h *GodHandler) HandleMyGods(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	gods, err := h.godSvc.ListByCreator(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"gods": gods})
}

// HandleGetByID returns one god.
//
// HTTP: GET /api/gods/{id} (protected)
func (h *GodHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	god, err := h.godSvc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"god": god})
}

// HandleConversation returns the caller's chat history with a god.
//
// HTTP: GET /api/gods/{id}/messages (protected)
func (h *GodHandler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	messages, err := h.godSvc.Conversation(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type chatRequest struct {
	Message string `json:"message"`
}

// HandleChat sends a message to a god and returns the stored exchange,
// generated reply included.
//
// HTTP: POST /api/gods/{id}/messages (protected)
func (h *GodHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	msg, err := h.godSvc.Chat(r.Context(), user.ID, chi.URLParam(r, "id"), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}
