package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/model"
	"github.com/kamiapp/kami/internal/repository"
)

const (
	MaxPostLength    = 1000
	MaxCommentLength = 500
	DefaultPageSize  = 10
	MaxPageSize      = 50
)

// PostService handles the shared timeline: posts, comments and likes.
type PostService struct {
	posts  repository.PostRepository
	logger *slog.Logger
}

func NewPostService(posts repository.PostRepository, logger *slog.Logger) *PostService {
	return &PostService{posts: posts, logger: logger}
}

// Create validates and saves a timeline post. Content length limits count
// runes, not bytes — the app's users write Japanese.
func (s *PostService) Create(ctx context.Context, userID, content, imageURL string) (*model.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "post content is required")
	}
	if len([]rune(content)) > MaxPostLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("post content must be at most %d characters", MaxPostLength))
	}

	post := &model.Post{
		UserID:   userID,
		Content:  content,
		ImageURL: imageURL,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("postID", post.ID),
		slog.String("userID", userID),
	)
	return post, nil
}

// List returns one timeline page. Page numbers start at 1; out-of-range
// limits are clamped rather than rejected.
func (s *PostService) List(ctx context.Context, page, limit int) ([]model.Post, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	return s.posts.ListPosts(ctx, repository.ListOptions{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
}

// AddComment validates and attaches a comment to a post.
func (s *PostService) AddComment(ctx context.Context, userID, postID, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "comment content is required")
	}
	if len([]rune(content)) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be at most %d characters", MaxCommentLength))
	}

	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		PostID:  postID,
		UserID:  userID,
		Content: content,
	}
	if err := s.posts.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/post: creating comment: %w", err)
	}
	return comment, nil
}

// Comments returns a post's comments, oldest first.
func (s *PostService) Comments(ctx context.Context, postID string) ([]model.Comment, error) {
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.posts.ListComments(ctx, postID)
}

// Like records a like; liking twice is a conflict. The existence pre-check
// keeps a missing post a 404 regardless of which store backs the repository.
func (s *PostService) Like(ctx context.Context, userID, postID string) error {
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		return err
	}
	return s.posts.Like(ctx, userID, postID)
}

// Unlike removes a like. Removing a like that isn't there succeeds — the
// requested end state already holds — but the post itself must exist.
func (s *PostService) Unlike(ctx context.Context, userID, postID string) error {
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		return err
	}
	return s.posts.Unlike(ctx, userID, postID)
}
