// Package repository defines the storage interfaces the service layer
// programs against. Concrete implementations live in the sqlite and memory
// subpackages; the service layer never imports either directly.
package repository

import (
	"context"

	"github.com/kamiapp/kami/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository is the credential store plus the balance ledger.
type UserRepository interface {
	// Create persists a new account. The caller supplies Username, Email
	// and PasswordHash; the repository assigns ID, CreatedAt and the
	// initial balance, and returns apperror.ErrConflict if the username or
	// email is already taken.
	Create(ctx context.Context, user *model.User) error

	GetByID(ctx context.Context, id string) (*model.User, error)

	// GetByEmail is a case-sensitive exact match on the stored email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByUsernameOrEmail returns any account matching either field.
	// Used by registration's uniqueness pre-check.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)

	// UpdateBalance overwrites the balance unconditionally. The store does
	// no bounds check here; callers must pre-validate newBalance >= 0.
	UpdateBalance(ctx context.Context, id string, newBalance int) error

	// DebitBalance atomically subtracts amount, failing with
	// apperror.ErrInsufficientFunds if the result would be negative.
	// Concurrent debits against the same account serialize: exactly the
	// affordable subset succeeds, never both halves of a lost update.
	// Returns the post-debit balance.
	DebitBalance(ctx context.Context, id string, amount int) (int, error)
}

// GodRepository and the interfaces below use god/post-qualified method names
// (CreateGod, not Create) because a single store type implements all of them.
type GodRepository interface {
	CreateGod(ctx context.Context, god *model.God) error
	GetGodByID(ctx context.Context, id string) (*model.God, error)
	ListGodsByCreator(ctx context.Context, creatorID string) ([]model.God, error)
	// ListGodsWithBelievers returns gods with at least one believer, for
	// the scheduled broadcast.
	ListGodsWithBelievers(ctx context.Context) ([]model.God, error)
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	// ListConversation returns the exchanges between one user and one god,
	// oldest first.
	ListConversation(ctx context.Context, userID, godID string) ([]model.Message, error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	// ListPosts returns timeline posts newest-first with authors attached.
	ListPosts(ctx context.Context, opts ListOptions) ([]model.Post, error)

	CreateComment(ctx context.Context, comment *model.Comment) error
	ListComments(ctx context.Context, postID string) ([]model.Comment, error)

	// Like records a like and bumps the post's counter in one transaction;
	// apperror.ErrConflict if this user already liked the post.
	Like(ctx context.Context, userID, postID string) error
	Unlike(ctx context.Context, userID, postID string) error
}
