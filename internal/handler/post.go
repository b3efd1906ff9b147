package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/auth"
	"github.com/kamiapp/kami/internal/service"
)

// PostHandler exposes the shared timeline: posts, comments, likes.
type PostHandler struct {
	postSvc *service.PostService
	logger  *slog.Logger
}

func NewPostHandler(postSvc *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{postSvc: postSvc, logger: logger}
}

// HandleList returns one timeline page.
//
// HTTP: GET /api/posts?page=1&limit=10 (protected)
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	posts, err := h.postSvc.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

type createPostRequest struct {
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

// HandleCreate creates a timeline post.
//
// HTTP: POST /api/posts (protected)
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	post, err := h.postSvc.Create(r.Context(), user.ID, req.Content, req.ImageURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"post": post})
}

// HandleListComments returns a post's comments.
//
// HTTP: GET /api/posts/{id}/comments (protected)
func (h *PostHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.postSvc.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

type createCommentRequest struct {
	Content string `json:"content"`
}

// HandleCreateComment attaches a comment to a post.
//
// HTTP: POST /api/posts/{id}/comments (protected)
func (h *PostHandler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req createCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	comment, err := h.postSvc.AddComment(r.Context(), user.ID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
}

// HandleLike likes a post; liking twice answers 409.
//
// HTTP: POST /api/posts/{id}/like (protected)
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	if err := h.postSvc.Like(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleUnlike removes a like.
//
// HTTP: DELETE /api/posts/{id}/like (protected)
func (h *PostHandler) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	if err := h.postSvc.Unlike(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
