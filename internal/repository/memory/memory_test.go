package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/auth"
	"github.com/kamiapp/kami/internal/model"
)

func TestNewSeeded(t *testing.T) {
	store, err := NewSeeded(auth.NewPasswordServiceForTest(4))
	if err != nil {
		t.Fatalf("NewSeeded failed: %v", err)
	}

	t.Run("admin has ID 1", func(t *testing.T) {
		admin, err := store.GetByID(context.Background(), "1")
		if err != nil {
			t.Fatalf("GetByID(1) failed: %v", err)
		}
		if admin.Username != "admin" || !admin.IsAdmin || !admin.IsSuperAdmin {
			t.Errorf("seeded admin mismatch: %+v", admin)
		}
		if admin.SaisenBalance != 10*model.InitialBalance {
			t.Errorf("admin balance = %d, want %d", admin.SaisenBalance, 10*model.InitialBalance)
		}
	})

	t.Run("user1 has ID 2", func(t *testing.T) {
		user, err := store.GetByID(context.Background(), "2")
		if err != nil {
			t.Fatalf("GetByID(2) failed: %v", err)
		}
		if user.Username != "user1" || user.IsAdmin {
			t.Errorf("seeded user mismatch: %+v", user)
		}
		if user.SaisenBalance != model.InitialBalance {
			t.Errorf("user balance = %d, want %d", user.SaisenBalance, model.InitialBalance)
		}
	})

	t.Run("seed passwords are hashed and verifiable", func(t *testing.T) {
		passwords := auth.NewPasswordServiceForTest(4)
		admin, err := store.GetByEmail(context.Background(), "admin@kami.app")
		if err != nil {
			t.Fatalf("GetByEmail failed: %v", err)
		}
		if admin.PasswordHash == "admin123" {
			t.Fatal("seed password must not be stored in plaintext")
		}
		if err := passwords.Verify(admin.PasswordHash, "admin123"); err != nil {
			t.Errorf("seeded hash should verify against the demo password: %v", err)
		}
	})

	// A structural token embedding the seeded numeric ID must resolve via
	// fallback — the demo contract.
	t.Run("demo token resolves through the registry", func(t *testing.T) {
		registry := auth.NewRegistry(store)
		userID, err := registry.Resolve(context.Background(), "mock-token-1-1717243200000")
		if err != nil {
			t.Fatalf("demo token failed to resolve: %v", err)
		}
		if userID != "1" {
			t.Errorf("resolved user = %q, want 1", userID)
		}
	})
}

func TestStoreCreate_AssignsSequentialIDs(t *testing.T) {
	store := New()

	for i := 0; i < 3; i++ {
		user := &model.User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: "hash",
		}
		if err := store.Create(context.Background(), user); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if user.SaisenBalance != model.InitialBalance {
			t.Errorf("initial balance = %d, want %d", user.SaisenBalance, model.InitialBalance)
		}
	}

	if _, err := store.GetByID(context.Background(), "3"); err != nil {
		t.Errorf("sequential ID 3 should exist: %v", err)
	}
}

func TestStoreCreate_DuplicateConflicts(t *testing.T) {
	store := New()

	first := &model.User{Username: "tanaka", Email: "tanaka@example.com", PasswordHash: "hash"}
	if err := store.Create(context.Background(), first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dup := &model.User{Username: "tanaka", Email: "other@example.com", PasswordHash: "hash"}
	if err := store.Create(context.Background(), dup); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate username should be ErrConflict, got %v", err)
	}
}

func TestStoreDebitBalance(t *testing.T) {
	store := New()
	user := &model.User{Username: "tanaka", Email: "tanaka@example.com", PasswordHash: "hash"}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	newBalance, err := store.DebitBalance(context.Background(), user.ID, 500)
	if err != nil {
		t.Fatalf("DebitBalance failed: %v", err)
	}
	if newBalance != model.InitialBalance-500 {
		t.Errorf("newBalance = %d, want %d", newBalance, model.InitialBalance-500)
	}

	if _, err := store.DebitBalance(context.Background(), user.ID, 501); !errors.Is(err, apperror.ErrInsufficientFunds) {
		t.Errorf("over-debit should be ErrInsufficientFunds, got %v", err)
	}

	got, err := store.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SaisenBalance != 500 {
		t.Errorf("balance = %d, want 500 after the rejected debit", got.SaisenBalance)
	}
}

func TestStoreDebitBalance_Concurrent(t *testing.T) {
	store := New()
	user := &model.User{Username: "tanaka", Email: "tanaka@example.com", PasswordHash: "hash"}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const (
		workers = 10
		amount  = 300 // balance 1000 → exactly 3 can succeed
	)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.DebitBalance(context.Background(), user.ID, amount); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", succeeded)
	}

	got, err := store.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SaisenBalance != model.InitialBalance-3*amount {
		t.Errorf("final balance = %d, want %d", got.SaisenBalance, model.InitialBalance-3*amount)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := New()
	user := &model.User{Username: "tanaka", Email: "tanaka@example.com", PasswordHash: "hash"}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	got.SaisenBalance = -999

	again, err := store.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.SaisenBalance != model.InitialBalance {
		t.Error("mutating a returned user must not affect the store")
	}
}

func TestStorePostsAndComments(t *testing.T) {
	store := New()
	user := &model.User{Username: "tanaka", Email: "tanaka@example.com", PasswordHash: "hash"}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	post := &model.Post{UserID: user.ID, Content: "hello"}
	if err := store.CreatePost(context.Background(), post); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if post.Author == nil || post.Author.Username != "tanaka" {
		t.Errorf("post author should be attached, got %+v", post.Author)
	}

	comment := &model.Comment{PostID: post.ID, UserID: user.ID, Content: "first"}
	if err := store.CreateComment(context.Background(), comment); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}

	if err := store.Like(context.Background(), user.ID, post.ID); err != nil {
		t.Fatalf("Like failed: %v", err)
	}
	if err := store.Like(context.Background(), user.ID, post.ID); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("double like should be ErrConflict, got %v", err)
	}

	got, err := store.GetPostByID(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("GetPostByID failed: %v", err)
	}
	if got.LikesCount != 1 {
		t.Errorf("likes = %d, want 1", got.LikesCount)
	}

	comments, err := store.ListComments(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("ListComments failed: %v", err)
	}
	if len(comments) != 1 {
		t.Errorf("got %d comments, want 1", len(comments))
	}

	if err := store.CreateComment(context.Background(), &model.Comment{PostID: "nope", UserID: user.ID, Content: "x"}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("comment on missing post should be ErrNotFound, got %v", err)
	}
}
