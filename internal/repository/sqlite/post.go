package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/model"
	"github.com/kamiapp/kami/internal/repository"
	"github.com/rs/xid"
)

var _ repository.PostRepository = (*DB)(nil)

func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	post.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, content, image_url, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		post.ID,
		post.UserID,
		post.Content,
		post.ImageURL,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}
	return nil
}

func (db *DB) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	var author model.PostAuthor
	err := db.conn.QueryRowContext(ctx,
		`SELECT p.id, p.user_id, p.content, p.image_url, p.likes_count, p.created_at,
		        u.id, u.username, u.profile_image
		 FROM posts p JOIN users u ON u.id = p.user_id
		 WHERE p.id = ?`, id).Scan(
		&p.ID, &p.UserID, &p.Content, &p.ImageURL, &p.LikesCount, &p.CreatedAt,
		&author.ID, &author.Username, &author.ProfileImage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	p.Author = &author
	return &p, nil
}

// ListPosts returns timeline posts newest-first with their authors joined in,
// so the timeline renders without one lookup per post.
func (db *DB) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.content, p.image_url, p.likes_count, p.created_at,
		        u.id, u.username, u.profile_image
		 FROM posts p JOIN users u ON u.id = p.user_id
		 ORDER BY p.created_at DESC
		 LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var p model.Post
		var author model.PostAuthor
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Content, &p.ImageURL, &p.LikesCount, &p.CreatedAt,
			&author.ID, &author.Username, &author.ProfileImage,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		p.Author = &author
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	comment.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, user_id, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		comment.ID,
		comment.PostID,
		comment.UserID,
		comment.Content,
		comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting comment on post %s: %w", comment.PostID, err)
	}
	return nil
}

func (db *DB) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.user_id, c.content, c.created_at,
		        u.id, u.username, u.profile_image
		 FROM comments c JOIN users u ON u.id = c.user_id
		 WHERE c.post_id = ?
		 ORDER BY c.created_at ASC`,
		postID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for post %s: %w", postID, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		var author model.PostAuthor
		if err := rows.Scan(
			&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt,
			&author.ID, &author.Username, &author.ProfileImage,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		c.Author = &author
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// Like records a like and bumps the post's denormalized counter in one
// transaction, so the counter can't drift from the post_likes table.
func (db *DB) Like(ctx context.Context, userID, postID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning like tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO post_likes (user_id, post_id, created_at) VALUES (?, ?, ?)`,
		userID, postID, time.Now()); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "PRIMARY KEY constraint failed") {
			return apperror.Conflict("like", "post is already liked")
		}
		// The caller is an authenticated user, so of the two referenced
		// rows only the post can be missing.
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return apperror.NotFound("post", postID)
		}
		return fmt.Errorf("sqlite: inserting like: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET likes_count = likes_count + 1 WHERE id = ?`, postID); err != nil {
		return fmt.Errorf("sqlite: incrementing likes for post %s: %w", postID, err)
	}

	return tx.Commit()
}

func (db *DB) Unlike(ctx context.Context, userID, postID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning unlike tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM post_likes WHERE user_id = ? AND post_id = ?`, userID, postID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting like: %w", err)
	}
	if n == 0 {
		// Removing a like that was never there is not an error; the end
		// state is what the caller asked for.
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET likes_count = MAX(likes_count - 1, 0) WHERE id = ?`,
		postID); err != nil {
		return fmt.Errorf("sqlite: decrementing likes for post %s: %w", postID, err)
	}

	return tx.Commit()
}
