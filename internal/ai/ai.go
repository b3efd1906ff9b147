// Package ai defines the text-generation capability used to produce a god's
// conversational replies.
//
// The real provider (a hosted LLM) is an external collaborator: the rest of
// the app only ever sees the Generator interface, so swapping providers —
// or running without one — is a wiring change in the server, not a code
// change anywhere else.
package ai

import (
	"context"

	"github.com/kamiapp/kami/internal/model"
)

// Generator produces a god's in-character reply to a user message.
// history carries the most recent exchanges of this conversation (oldest
// first); implementations may use as much or as little of it as they like.
type Generator interface {
	Reply(ctx context.Context, god *model.God, message string, history []model.Message) (string, error)
}
