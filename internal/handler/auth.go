package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/auth"
	"github.com/kamiapp/kami/internal/service"
)

// AuthHandler exposes registration, login, token verification and logout.
//
// The model.User json tags keep the password hash out of every response, so
// these handlers can return the user struct directly.
type AuthHandler struct {
	authSvc *service.AuthService
	logger  *slog.Logger
}

func NewAuthHandler(authSvc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates an account.
//
// HTTP: POST /auth/register
// 201 {user} | 400 validation | 409 duplicate email/username
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, apperror.ValidationFailed("body", "username, email and password are required"))
		return
	}

	user, err := h.authSvc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin authenticates and returns a fresh session token.
//
// HTTP: POST /auth/login
// 200 {user, token} | 400 missing fields | 401 invalid credentials
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, apperror.ValidationFailed("body", "email and password are required"))
		return
	}

	result, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":  result.User,
		"token": result.Token,
	})
}

type verifyRequest struct {
	Token string `json:"token"`
}

// HandleVerify resolves a token carried in the body (not a header) back to
// its account. The frontend calls this on page load to restore a session
// from localStorage.
//
// HTTP: POST /auth/verify
// 200 {user} | 400 missing token | 401 invalid
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	user, err := h.authSvc.Verify(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleLogout revokes the presented token.
//
// HTTP: POST /auth/logout
//
// Historically logout only discarded the client-side copy and the server
// kept resolving the token forever. The registry now supports revocation,
// so logout actually revokes — note that in opaque mode with fallback
// enabled a structural token can still resolve again through the fallback
// path; fully effective revocation needs fallback disabled or signed mode.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := auth.BearerToken(r); ok {
		h.authSvc.Logout(token)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/me (protected)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but be safe.
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
