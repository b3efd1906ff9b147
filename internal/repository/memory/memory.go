// Package memory implements the repository interfaces on plain in-process
// maps. It exists for demo mode and tests: the app's earliest revisions kept
// their users and tokens in module-level arrays shared by every request
// handler, which made isolated testing impossible and duplicated state
// between routes. This package replaces those ambient globals with an
// explicit Store constructed once at startup and injected like any other
// repository.
//
// Demo mode seeds the two accounts the original shipped with
// (admin@kami.app / user1@kami.app). Their passwords are bcrypt-hashed at
// construction — the plaintext comparison table of the early revisions is
// gone for good.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/auth"
	"github.com/kamiapp/kami/internal/model"
	"github.com/kamiapp/kami/internal/repository"
)

var (
	_ repository.UserRepository    = (*Store)(nil)
	_ repository.GodRepository     = (*Store)(nil)
	_ repository.MessageRepository = (*Store)(nil)
	_ repository.PostRepository    = (*Store)(nil)
)

// Store is a process-local implementation of every repository interface.
//
// One mutex guards everything. That serializes per-user balance mutations
// for free (the lost-update hazard of the early revisions cannot occur) and
// is more than enough for a demo-scale store.
type Store struct {
	mu       sync.Mutex
	users    map[string]*model.User
	gods     map[string]*model.God
	messages []model.Message
	posts    map[string]*model.Post
	comments []model.Comment
	likes    map[string]map[string]bool // postID → userID → liked
	nextID   int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:  make(map[string]*model.User),
		gods:   make(map[string]*model.God),
		posts:  make(map[string]*model.Post),
		likes:  make(map[string]map[string]bool),
		nextID: 1,
	}
}

// NewSeeded returns a Store preloaded with the demo accounts. The sequential
// numeric IDs ("1", "2") are part of the demo contract — structural tokens
// like mock-token-1-... must keep resolving to the admin account.
func NewSeeded(passwords *auth.PasswordService) (*Store, error) {
	s := New()

	seed := []struct {
		username string
		email    string
		password string
		admin    bool
		balance  int
	}{
		{"admin", "admin@kami.app", "admin123", true, 10 * model.InitialBalance},
		{"user1", "user1@kami.app", "user123", false, model.InitialBalance},
	}

	for _, acct := range seed {
		hash, err := passwords.Hash(acct.password)
		if err != nil {
			return nil, fmt.Errorf("memory: hashing seed password for %s: %w", acct.username, err)
		}
		s.users[strconv.Itoa(s.nextID)] = &model.User{
			ID:            strconv.Itoa(s.nextID),
			Username:      acct.username,
			Email:         acct.email,
			PasswordHash:  hash,
			IsAdmin:       acct.admin,
			IsSuperAdmin:  acct.admin,
			SaisenBalance: acct.balance,
			CreatedAt:     time.Now(),
		}
		s.nextID++
	}
	return s, nil
}

// --- UserRepository ---

func (s *Store) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return apperror.Conflict("user", "email or username is already taken")
		}
	}

	user.ID = strconv.Itoa(s.nextID)
	s.nextID++
	user.CreatedAt = time.Now()
	if user.SaisenBalance == 0 {
		user.SaisenBalance = model.InitialBalance
	}

	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (s *Store) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (s *Store) UpdateBalance(ctx context.Context, id string, newBalance int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.SaisenBalance = newBalance
	return nil
}

// DebitBalance performs the floor-checked decrement under the store lock,
// so two concurrent debits can never both read the same stale balance.
func (s *Store) DebitBalance(ctx context.Context, id string, amount int) (int, error) {
	if amount < 0 {
		return 0, apperror.ValidationFailed("amount", "debit amount must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, apperror.NotFound("user", id)
	}
	if u.SaisenBalance < amount {
		return u.SaisenBalance, apperror.InsufficientFunds(amount, u.SaisenBalance)
	}
	u.SaisenBalance -= amount
	return u.SaisenBalance, nil
}

// --- GodRepository ---

func (s *Store) CreateGod(ctx context.Context, god *model.God) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	god.ID = fmt.Sprintf("god_%d", s.nextID)
	s.nextID++
	god.CreatedAt = time.Now()
	if god.PowerLevel == 0 {
		god.PowerLevel = 1
	}

	stored := *god
	s.gods[god.ID] = &stored
	return nil
}

func (s *Store) GetGodByID(ctx context.Context, id string) (*model.God, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gods[id]
	if !ok {
		return nil, apperror.NotFound("god", id)
	}
	copied := *g
	return &copied, nil
}

func (s *Store) ListGodsByCreator(ctx context.Context, creatorID string) ([]model.God, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gods := []model.God{}
	for _, g := range s.gods {
		if g.CreatorID == creatorID {
			gods = append(gods, *g)
		}
	}
	sort.Slice(gods, func(i, j int) bool {
		return gods[i].CreatedAt.After(gods[j].CreatedAt)
	})
	return gods, nil
}

func (s *Store) ListGodsWithBelievers(ctx context.Context) ([]model.God, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gods := []model.God{}
	for _, g := range s.gods {
		if g.BelieversCount >= 1 {
			gods = append(gods, *g)
		}
	}
	return gods, nil
}

// --- MessageRepository ---

func (s *Store) CreateMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = fmt.Sprintf("msg_%d", s.nextID)
	s.nextID++
	msg.CreatedAt = time.Now()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *Store) ListConversation(ctx context.Context, userID, godID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := []model.Message{}
	for _, m := range s.messages {
		if m.UserID == userID && m.GodID == godID && m.Response != "" {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

// --- PostRepository ---

func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post.ID = fmt.Sprintf("post_%d", s.nextID)
	s.nextID++
	post.CreatedAt = time.Now()
	post.Author = s.authorOf(post.UserID)

	stored := *post
	s.posts[post.ID] = &stored
	return nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	copied := *p
	return &copied, nil
}

func (s *Store) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if opts.Offset >= len(all) {
		return []model.Post{}, nil
	}
	end := opts.Offset + opts.Limit
	if opts.Limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[opts.Offset:end], nil
}

func (s *Store) CreateComment(ctx context.Context, comment *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return apperror.NotFound("post", comment.PostID)
	}

	comment.ID = fmt.Sprintf("comment_%d", s.nextID)
	s.nextID++
	comment.CreatedAt = time.Now()
	comment.Author = s.authorOf(comment.UserID)
	s.comments = append(s.comments, *comment)
	return nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comments := []model.Comment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			comments = append(comments, c)
		}
	}
	return comments, nil
}

func (s *Store) Like(ctx context.Context, userID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return apperror.NotFound("post", postID)
	}
	if s.likes[postID][userID] {
		return apperror.Conflict("like", "post is already liked")
	}
	if s.likes[postID] == nil {
		s.likes[postID] = make(map[string]bool)
	}
	s.likes[postID][userID] = true
	p.LikesCount++
	return nil
}

func (s *Store) Unlike(ctx context.Context, userID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return apperror.NotFound("post", postID)
	}
	if !s.likes[postID][userID] {
		return nil
	}
	delete(s.likes[postID], userID)
	if p.LikesCount > 0 {
		p.LikesCount--
	}
	return nil
}

// authorOf builds the embedded author view. Callers hold s.mu.
func (s *Store) authorOf(userID string) *model.PostAuthor {
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	return &model.PostAuthor{
		ID:           u.ID,
		Username:     u.Username,
		ProfileImage: u.ProfileImage,
	}
}
