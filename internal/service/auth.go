// Package service contains the business logic layer.
//
// Handlers parse HTTP and write JSON; services validate, enforce rules and
// orchestrate; repositories talk to storage. A service method takes plain Go
// values and a context, never an *http.Request, so the same logic serves the
// HTTP handlers and the scheduled-broadcast trigger alike.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/auth"
	"github.com/kamiapp/kami/internal/model"
	"github.com/kamiapp/kami/internal/repository"
)

// Registration rules. The username bounds and password minimum come from
// the registration form contract; emails are normalized to lower case so
// Alice@x.com and alice@x.com cannot both register.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// credentialsMessage is returned for both unknown-email and wrong-password
// failures. One message for both means a caller can't probe which emails
// are registered.
const credentialsMessage = "email or password is incorrect"

// AuthService orchestrates registration, login and token verification.
type AuthService struct {
	users     repository.UserRepository
	sessions  *auth.Sessions
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	sessions *auth.Sessions,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued token so the handler
// can respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a new account with the initial saisen balance.
//
// Validation happens here, before the uniqueness check, so a request that is
// both malformed and conflicting reports the validation error first. The
// repository re-enforces uniqueness on insert; the pre-check exists to give
// a clean 409 instead of a constraint-violation 500 under normal flow.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d-%d characters", MinUsernameLength, MaxUsernameLength))
	}
	if !emailPattern.MatchString(email) {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	if _, err := s.users.FindByUsernameOrEmail(ctx, username, email); err == nil {
		return nil, apperror.Conflict("user", "email or username is already taken")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user %s: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login authenticates by email and password and issues a session token.
//
// Login never mutates the account; it is NOT idempotent with respect to the
// session layer — every call issues a brand-new token and earlier tokens for
// the same user stay valid (one account, many concurrent sessions).
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Unauthorized(credentialsMessage)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized(credentialsMessage)
	}

	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("token", auth.TruncateToken(token)),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// Verify resolves a raw token (from a request body, not a header) to its
// account. Backs the POST /auth/verify endpoint the frontend calls on load
// to restore a session.
func (s *AuthService) Verify(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperror.ValidationFailed("token", "token is required")
	}
	return s.sessions.Authenticate(ctx, token)
}

// Logout revokes the token server-side (opaque mode; a no-op for signed
// tokens, which only the client can discard).
func (s *AuthService) Logout(token string) {
	s.sessions.Revoke(token)
}

// GetUserByID returns the account for an internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}
