package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/model"
)

// newTestDB opens a throwaway in-memory database with the full schema.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a user and returns it with ID and balance assigned.
func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$04$fakehashfortests",
	}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := createTestUser(t, db, "tanaka")

	if user.ID == "" {
		t.Error("Create should assign an ID")
	}
	if user.SaisenBalance != model.InitialBalance {
		t.Errorf("initial balance = %d, want %d", user.SaisenBalance, model.InitialBalance)
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create should assign CreatedAt")
	}

	got, err := db.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Username != "tanaka" || got.Email != "tanaka@example.com" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestUserCreate_DuplicateEmailConflicts(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "tanaka")

	dup := &model.User{
		Username:     "different",
		Email:        "tanaka@example.com",
		PasswordHash: "$2a$04$fakehashfortests",
	}
	err := db.Create(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate email should be ErrConflict, got %v", err)
	}
}

func TestUserCreate_DuplicateUsernameConflicts(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "tanaka")

	dup := &model.User{
		Username:     "tanaka",
		Email:        "other@example.com",
		PasswordHash: "$2a$04$fakehashfortests",
	}
	err := db.Create(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate username should be ErrConflict, got %v", err)
	}
}

func TestUserLookups(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "tanaka")

	t.Run("GetByEmail", func(t *testing.T) {
		got, err := db.GetByEmail(context.Background(), "tanaka@example.com")
		if err != nil {
			t.Fatalf("GetByEmail failed: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("got user %q, want %q", got.ID, user.ID)
		}
	})

	t.Run("GetByEmail unknown", func(t *testing.T) {
		_, err := db.GetByEmail(context.Background(), "nobody@example.com")
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("unknown email should be ErrNotFound, got %v", err)
		}
	})

	t.Run("GetByID unknown", func(t *testing.T) {
		_, err := db.GetByID(context.Background(), "nope")
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("unknown ID should be ErrNotFound, got %v", err)
		}
	})

	t.Run("FindByUsernameOrEmail matches either field", func(t *testing.T) {
		byName, err := db.FindByUsernameOrEmail(context.Background(), "tanaka", "x@example.com")
		if err != nil {
			t.Fatalf("lookup by username failed: %v", err)
		}
		byEmail, err := db.FindByUsernameOrEmail(context.Background(), "nobody", "tanaka@example.com")
		if err != nil {
			t.Fatalf("lookup by email failed: %v", err)
		}
		if byName.ID != user.ID || byEmail.ID != user.ID {
			t.Error("both lookups should find the same user")
		}
	})
}

func TestUserUpdateBalance(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "tanaka")

	if err := db.UpdateBalance(context.Background(), user.ID, 250); err != nil {
		t.Fatalf("UpdateBalance failed: %v", err)
	}

	got, err := db.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SaisenBalance != 250 {
		t.Errorf("balance = %d, want 250", got.SaisenBalance)
	}

	if err := db.UpdateBalance(context.Background(), "nope", 100); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown user should be ErrNotFound, got %v", err)
	}
}

func TestUserDebitBalance(t *testing.T) {
	t.Run("successful debit", func(t *testing.T) {
		db := newTestDB(t)
		user := createTestUser(t, db, "tanaka")

		newBalance, err := db.DebitBalance(context.Background(), user.ID, 500)
		if err != nil {
			t.Fatalf("DebitBalance failed: %v", err)
		}
		if newBalance != model.InitialBalance-500 {
			t.Errorf("newBalance = %d, want %d", newBalance, model.InitialBalance-500)
		}
	})

	t.Run("debit to exactly zero", func(t *testing.T) {
		db := newTestDB(t)
		user := createTestUser(t, db, "tanaka")

		newBalance, err := db.DebitBalance(context.Background(), user.ID, model.InitialBalance)
		if err != nil {
			t.Fatalf("DebitBalance to zero failed: %v", err)
		}
		if newBalance != 0 {
			t.Errorf("newBalance = %d, want 0", newBalance)
		}
	})

	t.Run("insufficient funds leaves balance untouched", func(t *testing.T) {
		db := newTestDB(t)
		user := createTestUser(t, db, "tanaka")

		_, err := db.DebitBalance(context.Background(), user.ID, model.InitialBalance+1)
		if !errors.Is(err, apperror.ErrInsufficientFunds) {
			t.Fatalf("over-debit should be ErrInsufficientFunds, got %v", err)
		}

		got, err := db.GetByID(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.SaisenBalance != model.InitialBalance {
			t.Errorf("balance = %d, want unchanged %d", got.SaisenBalance, model.InitialBalance)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		db := newTestDB(t)

		_, err := db.DebitBalance(context.Background(), "nope", 100)
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("unknown user should be ErrNotFound, got %v", err)
		}
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		db := newTestDB(t)
		user := createTestUser(t, db, "tanaka")

		_, err := db.DebitBalance(context.Background(), user.ID, -100)
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("negative debit should be ErrValidation, got %v", err)
		}
	})
}

// Many goroutines debit the same account; only the affordable subset may
// succeed and the final balance must account for exactly those.
func TestUserDebitBalance_Concurrent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "tanaka") // balance 1000

	const (
		workers = 10
		amount  = 300 // only 3 of 10 can succeed
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
			_, err := db.DebitBalance(context.Background(), user.ID, amount)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, apperror.ErrInsufficientFunds) {
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", succeeded)
	}

	got, err := db.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	want := model.InitialBalance - 3*amount
	if got.SaisenBalance != want {
		t.Errorf("final balance = %d, want %d", got.SaisenBalance, want)
	}
}

func TestUserCreate_ManyUniqueIDs(t *testing.T) {
	db := newTestDB(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		user := createTestUser(t, db, fmt.Sprintf("user%d", i))
		if seen[user.ID] {
			t.Fatalf("duplicate ID generated: %s", user.ID)
		}
		seen[user.ID] = true
	}
}
