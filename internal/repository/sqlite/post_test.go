package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/model"
	"github.com/kamiapp/kami/internal/repository"
)

func createTestPost(t *testing.T, db *DB, userID, content string) *model.Post {
	t.Helper()
	post := &model.Post{UserID: userID, Content: content}
	if err := db.CreatePost(context.Background(), post); err != nil {
		t.Fatalf("creating test post: %v", err)
	}
	return post
}

func TestPostCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "tanaka")

	post := createTestPost(t, db, user.ID, "今日の御利益に感謝")

	got, err := db.GetPostByID(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("GetPostByID failed: %v", err)
	}
	if got.Content != "今日の御利益に感謝" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Author == nil || got.Author.Username != "tanaka" {
		t.Errorf("author should be joined in, got %+v", got.Author)
	}
	if got.LikesCount != 0 {
		t.Errorf("likes = %d, want 0", got.LikesCount)
	}
}

func TestPostGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetPostByID(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown post should be ErrNotFound, got %v", err)
	}
}

func TestPostList_NewestFirstWithPaging(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "tanaka")

	for i := 0; i < 5; i++ {
		createTestPost(t, db, user.ID, fmt.Sprintf("post %d", i))
		time.Sleep(2 * time.Millisecond) // distinct created_at for ordering
	}

	page1, err := db.ListPosts(context.Background(), repository.ListOptions{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("page 1 has %d posts, want 2", len(page1))
	}
	if page1[0].Content != "post 4" || page1[1].Content != "post 3" {
		t.Errorf("page 1 = [%q, %q], want newest first", page1[0].Content, page1[1].Content)
	}
	if page1[0].Author == nil {
		t.Error("listed posts should carry their author")
	}

	page3, err := db.ListPosts(context.Background(), repository.ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(page3) != 1 || page3[0].Content != "post 0" {
		t.Errorf("last page should hold the oldest post, got %+v", page3)
	}
}

func TestPostComments(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "tanaka")
	commenter := createTestUser(t, db, "suzuki")
	post := createTestPost(t, db, author.ID, "コメントどうぞ")

	first := &model.Comment{PostID: post.ID, UserID: commenter.ID, Content: "いいね！"}
	if err := db.CreateComment(context.Background(), first); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second := &model.Comment{PostID: post.ID, UserID: author.ID, Content: "ありがとう"}
	if err := db.CreateComment(context.Background(), second); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}

	comments, err := db.ListComments(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("ListComments failed: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
	if comments[0].Content != "いいね！" {
		t.Errorf("first comment = %q, want oldest first", comments[0].Content)
	}
	if comments[0].Author == nil || comments[0].Author.Username != "suzuki" {
		t.Errorf("comment author should be joined in, got %+v", comments[0].Author)
	}
}

func TestPostLike_MissingPost(t *testing.T) {
	db := newTestDB(t)
	liker := createTestUser(t, db, "suzuki")

	err := db.Like(context.Background(), liker.ID, "no-such-post")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("liking a missing post should be ErrNotFound, got %v", err)
	}
}

func TestPostLikeUnlike(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "tanaka")
	liker := createTestUser(t, db, "suzuki")
	post := createTestPost(t, db, author.ID, "like me")

	if err := db.Like(context.Background(), liker.ID, post.ID); err != nil {
		t.Fatalf("Like failed: %v", err)
	}

	// Second like from the same user is a conflict and must not bump the
	// counter again.
	if err := db.Like(context.Background(), liker.ID, post.ID); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("double like should be ErrConflict, got %v", err)
	}

	got, err := db.GetPostByID(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("GetPostByID failed: %v", err)
	}
	if got.LikesCount != 1 {
		t.Errorf("likes = %d, want 1", got.LikesCount)
	}

	// A different user can like the same post.
	if err := db.Like(context.Background(), author.ID, post.ID); err != nil {
		t.Fatalf("second user's Like failed: %v", err)
	}

	if err := db.Unlike(context.Background(), liker.ID, post.ID); err != nil {
		t.Fatalf("Unlike failed: %v", err)
	}
	// Unliking again is a no-op, not an error.
	if err := db.Unlike(context.Background(), liker.ID, post.ID); err != nil {
		t.Errorf("repeated Unlike should succeed: %v", err)
	}

	got, err = db.GetPostByID(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("GetPostByID failed: %v", err)
	}
	if got.LikesCount != 1 {
		t.Errorf("likes after unlike = %d, want 1 (the other user's like remains)", got.LikesCount)
	}
}
