package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamiapp/kami/internal/ai"
	"github.com/kamiapp/kami/internal/model"
	"github.com/kamiapp/kami/internal/repository/memory"
	"github.com/kamiapp/kami/internal/service"
)

const testAPIKey = "cron-secret"

func newBroadcastFixture(t *testing.T, at time.Time) (*BroadcastHandler, *memory.Store, *model.God) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()

	creator := &model.User{Username: "tanaka", Email: "tanaka@example.com", PasswordHash: "hash"}
	require.NoError(t, store.Create(context.Background(), creator))

	god := &model.God{Name: "雷神", CreatorID: creator.ID, BelieversCount: 3}
	require.NoError(t, store.CreateGod(context.Background(), god))

	godSvc := service.NewGodService(store, store, store, ai.NewOracle(), logger)
	h := NewBroadcastHandler(godSvc, testAPIKey, logger)
	h.now = func() time.Time { return at }
	return h, store, god
}

func trigger(t *testing.T, h *BroadcastHandler, key string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/scheduled-messages", nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rr := httptest.NewRecorder()
	h.HandleTrigger(rr, req)

	var body map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	}
	return rr.Code, body
}

func TestBroadcastTrigger(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)

	t.Run("scheduled slot sends to creators", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 9, 0, 0, 0, jst)
		h, store, god := newBroadcastFixture(t, at)

		status, body := trigger(t, h, testAPIKey)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Scheduled messages sent", body["message"])
		assert.EqualValues(t, 1, body["sent"])

		msgs, err := store.ListConversation(context.Background(), god.CreatorID, god.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.True(t, msgs[0].Scheduled)
	})

	t.Run("off-slot time does nothing", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 9, 30, 0, 0, jst)
		h, store, god := newBroadcastFixture(t, at)

		status, body := trigger(t, h, testAPIKey)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Not a scheduled time", body["message"])

		msgs, err := store.ListConversation(context.Background(), god.CreatorID, god.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("wrong API key is 401", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 9, 0, 0, 0, jst)
		h, _, _ := newBroadcastFixture(t, at)

		status, _ := trigger(t, h, "wrong-key")
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("missing API key is 401", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 9, 0, 0, 0, jst)
		h, _, _ := newBroadcastFixture(t, at)

		status, _ := trigger(t, h, "")
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}
