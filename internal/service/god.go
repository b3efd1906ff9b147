package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kamiapp/kami/internal/ai"
	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/model"
	"github.com/kamiapp/kami/internal/repository"
)

const (
	// CreationCost is the saisen debited when a user creates a god.
	CreationCost = 500

	MaxGodNameLength    = 50
	MaxChatMessageLen   = 500
	chatHistoryWindow   = 3
	defaultGodName      = "無名の神"
	defaultGodDesc      = "神秘的な神様"
	defaultGodCategory  = "その他"
	defaultGodMBTI      = "INFJ"
)

// GodService handles god creation, the chat exchange, and the scheduled
// broadcast fan-out.
type GodService struct {
	users    repository.UserRepository
	gods     repository.GodRepository
	messages repository.MessageRepository
	gen      ai.Generator
	logger   *slog.Logger
}

func NewGodService(
	users repository.UserRepository,
	gods repository.GodRepository,
	messages repository.MessageRepository,
	gen ai.Generator,
	logger *slog.Logger,
) *GodService {
	return &GodService{
		users:    users,
		gods:     gods,
		messages: messages,
		gen:      gen,
		logger:   logger,
	}
}

// CreateGodInput is the caller-supplied part of a god. Empty fields fall
// back to the stock defaults.
type CreateGodInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Personality string `json:"personality"`
	MBTIType    string `json:"mbtiType"`
}

// CreateGodResult carries the new god and the creator's post-debit balance.
type CreateGodResult struct {
	God        *model.God
	NewBalance int
}

// Create debits CreationCost from the creator and persists the god.
//
// ORDERING:
// The debit comes first, as one atomic floor-checked decrement — two
// concurrent creations by the same 600-saisen user cannot both pass a
// balance check and drive the account negative. If the insert then fails,
// the debit is refunded; a refund that itself fails is logged and left for
// reconciliation rather than retried blindly.
func (s *GodService) Create(ctx context.Context, creatorID string, in CreateGodInput) (*CreateGodResult, error) {
	if len(in.Name) > MaxGodNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("god name must be at most %d characters", MaxGodNameLength))
	}

	newBalance, err := s.users.DebitBalance(ctx, creatorID, CreationCost)
	if err != nil {
		return nil, err
	}

	god := &model.God{
		Name:        withDefault(in.Name, defaultGodName),
		Description: withDefault(in.Description, defaultGodDesc),
		Category:    withDefault(in.Category, defaultGodCategory),
		Personality: in.Personality,
		MBTIType:    withDefault(in.MBTIType, defaultGodMBTI),
		CreatorID:   creatorID,
		PowerLevel:  1,
	}

	if err := s.gods.CreateGod(ctx, god); err != nil {
		if refundErr := s.users.UpdateBalance(ctx, creatorID, newBalance+CreationCost); refundErr != nil {
			s.logger.Error("refund after failed god creation also failed",
				slog.String("userID", creatorID),
				slog.String("error", refundErr.Error()),
			)
		}
		return nil, fmt.Errorf("service/god: creating god for %s: %w", creatorID, err)
	}

	s.logger.Info("god created",
		slog.String("godID", god.ID),
		slog.String("creatorID", creatorID),
		slog.Int("newBalance", newBalance),
	)

	return &CreateGodResult{God: god, NewBalance: newBalance}, nil
}

// GetByID returns a god by ID.
func (s *GodService) GetByID(ctx context.Context, id string) (*model.God, error) {
	return s.gods.GetGodByID(ctx, id)
}

// ListByCreator returns the caller's own gods, newest first.
func (s *GodService) ListByCreator(ctx context.Context, creatorID string) ([]model.God, error) {
	return s.gods.ListGodsByCreator(ctx, creatorID)
}

// Chat sends a user message to a god and stores the generated reply.
// The generator sees the last few exchanges of this conversation so replies
// can acknowledge returning visitors.
func (s *GodService) Chat(ctx context.Context, userID, godID, message string) (*model.Message, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperror.ValidationFailed("message", "message is required")
	}
	if len([]rune(message)) > MaxChatMessageLen {
		return nil, apperror.ValidationFailed("message",
			fmt.Sprintf("message must be at most %d characters", MaxChatMessageLen))
	}

	god, err := s.gods.GetGodByID(ctx, godID)
	if err != nil {
		return nil, err
	}

	history, err := s.messages.ListConversation(ctx, userID, godID)
	if err != nil {
		return nil, fmt.Errorf("service/god: loading conversation: %w", err)
	}
	if len(history) > chatHistoryWindow {
		history = history[len(history)-chatHistoryWindow:]
	}

	reply, err := s.gen.Reply(ctx, god, message, history)
	if err != nil {
		// The oracle is unreachable, not the user's fault; answer in
		// character rather than with a bare 500.
		s.logger.Error("reply generation failed",
			slog.String("godID", godID),
			slog.String("error", err.Error()),
		)
		reply = fmt.Sprintf("%sからの神託が届きませんでした。しばらく時間をおいて再度お試しください。", god.Name)
	}

	msg := &model.Message{
		UserID:   userID,
		GodID:    godID,
		Message:  message,
		Response: reply,
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("service/god: storing message: %w", err)
	}
	return msg, nil
}

// Conversation returns the full exchange history between a user and a god.
func (s *GodService) Conversation(ctx context.Context, userID, godID string) ([]model.Message, error) {
	return s.messages.ListConversation(ctx, userID, godID)
}

// Broadcast generates one scheduled message per god with believers and
// delivers it to the god's creator. Called by the scheduled-messages
// endpoint at the fixed JST slots; the trigger itself (a cron job) lives
// outside this process.
//
// A failure for one god doesn't abort the rest — the broadcast is best
// effort and reports how many messages went out.
func (s *GodService) Broadcast(ctx context.Context, prompt string) (int, error) {
	gods, err := s.gods.ListGodsWithBelievers(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/god: listing gods for broadcast: %w", err)
	}

	sent := 0
	for i := range gods {
		god := &gods[i]
		reply, err := s.gen.Reply(ctx, god, prompt, nil)
		if err != nil {
			s.logger.Warn("broadcast generation failed",
				slog.String("godID", god.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		msg := &model.Message{
			UserID:    god.CreatorID,
			GodID:     god.ID,
			Message:   prompt,
			Response:  reply,
			Scheduled: true,
		}
		if err := s.messages.CreateMessage(ctx, msg); err != nil {
			s.logger.Warn("broadcast delivery failed",
				slog.String("godID", god.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		sent++
	}

	s.logger.Info("scheduled broadcast completed",
		slog.Int("gods", len(gods)),
		slog.Int("sent", sent),
	)
	return sent, nil
}

func withDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
