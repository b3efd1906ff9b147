package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kamiapp/kami/internal/auth"
)

// DebugHandler exposes the session registry's state for troubleshooting
// token problems. Only mounted when debug routes are enabled — never in a
// normal deployment.
type DebugHandler struct {
	sessions *auth.Sessions
	logger   *slog.Logger
}

func NewDebugHandler(sessions *auth.Sessions, logger *slog.Logger) *DebugHandler {
	return &DebugHandler{sessions: sessions, logger: logger}
}

// HandleTokens dumps the live token table, truncated. Tokens are bearer
// credentials, so even on a debug endpoint full values stay out of the
// response and the logs.
//
// HTTP: GET /api/debug/tokens
func (h *DebugHandler) HandleTokens(w http.ResponseWriter, r *http.Request) {
	snapshot := h.sessions.Snapshot()

	var requestToken string
	if token, ok := auth.BearerToken(r); ok {
		requestToken = auth.TruncateToken(token)
	}

	tokens := make([]string, 0, len(snapshot))
	for tok := range snapshot {
		tokens = append(tokens, auth.TruncateToken(tok))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":           "Token debug info",
		"requestToken":      requestToken,
		"activeTokensCount": len(snapshot),
		"activeTokens":      tokens,
		"timestamp":         time.Now().Format(time.RFC3339),
	})
}
