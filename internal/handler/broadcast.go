package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/auth"
	"github.com/kamiapp/kami/internal/service"
)

// scheduledTimes are the JST slots at which the external cron trigger is
// allowed to fire a broadcast. A call at any other minute is acknowledged
// but does nothing, so a misconfigured cron can't spam believers.
var scheduledTimes = map[string]string{
	"09:00": "朝の挨拶をお願いします",
	"12:00": "昼の励ましの言葉をお願いします",
	"15:00": "午後のひとことをお願いします",
	"18:00": "夕方の労いの言葉をお願いします",
	"21:00": "夜の祝福をお願いします",
}

// BroadcastHandler receives the scheduled-broadcast trigger. Authentication
// is a static API key, not a user session: the caller is a cron job, not a
// person.
type BroadcastHandler struct {
	godSvc *service.GodService
	apiKey string
	logger *slog.Logger
	now    func() time.Time // swappable in tests
}

func NewBroadcastHandler(godSvc *service.GodService, apiKey string, logger *slog.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		godSvc: godSvc,
		apiKey: apiKey,
		logger: logger,
		now:    time.Now,
	}
}

// HandleTrigger runs the broadcast if called at a scheduled slot.
//
// HTTP: POST /api/scheduled-messages
// Auth: Authorization: Bearer <SCHEDULED_API_KEY>
func (h *BroadcastHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.apiKey)) != 1 {
		writeError(w, apperror.Unauthorized("valid API key required"))
		return
	}

	slot := h.now().Format("15:04")
	prompt, scheduled := scheduledTimes[slot]
	if !scheduled {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Not a scheduled time",
			"time":    slot,
		})
		return
	}

	sent, err := h.godSvc.Broadcast(r.Context(), prompt)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Scheduled messages sent",
		"time":    slot,
		"sent":    sent,
	})
}
