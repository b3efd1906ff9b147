package auth

import (
	"context"
	"fmt"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/model"
)

// Mode selects how session tokens are issued and resolved.
type Mode string

const (
	// ModeOpaque issues structural opaque tokens tracked by the Registry.
	// This reproduces the app's historical behavior exactly, including the
	// parse-and-self-heal fallback. Default.
	ModeOpaque Mode = "opaque"

	// ModeSigned issues HS256 JWTs and trusts only the signature — no
	// registry state, no fallback parsing, expiry enforced. Requires a
	// configured TokenService.
	ModeSigned Mode = "signed"
)

// Sessions is the one façade the rest of the app talks to for session
// tokens. It hides which of the two token schemes is active: the service
// layer calls Issue on login and the request gate calls Authenticate on
// every protected request, and neither knows nor cares about the mode.
type Sessions struct {
	mode     Mode
	issuer   *Issuer
	registry *Registry
	signed   *TokenService // nil unless mode == ModeSigned
	users    UserFinder
}

// NewSessions wires a Sessions façade in opaque mode.
func NewSessions(users UserFinder, registry *Registry) *Sessions {
	return &Sessions{
		mode:     ModeOpaque,
		issuer:   NewIssuer(),
		registry: registry,
		users:    users,
	}
}

// NewSignedSessions wires a Sessions façade in signed mode.
func NewSignedSessions(users UserFinder, tokens *TokenService) *Sessions {
	return &Sessions{
		mode:   ModeSigned,
		signed: tokens,
		users:  users,
	}
}

// Mode reports the active token scheme.
func (s *Sessions) Mode() Mode { return s.mode }

// Issue mints a session token for an already-authenticated user and, in
// opaque mode, registers it before returning. Each call produces a brand-new
// token; previously issued tokens for the same user stay valid (one account,
// many concurrent sessions).
func (s *Sessions) Issue(userID string) (string, error) {
	if s.mode == ModeSigned {
		token, err := s.signed.Generate(userID)
		if err != nil {
			return "", fmt.Errorf("auth: issuing signed token: %w", err)
		}
		return token, nil
	}

	token := s.issuer.Issue(userID)
	s.registry.Register(token, userID)
	return token, nil
}

// Authenticate resolves a bearer token to the full user account.
//
// Both failure classes — unresolvable token and resolved-but-vanished user —
// come back as apperror.ErrUnauthorized; the gate and every handler treat
// them identically (401, no retry). The second class should be impossible in
// opaque mode given the Registry invariant, but the account could have been
// deleted out from under a signed token.
func (s *Sessions) Authenticate(ctx context.Context, token string) (*model.User, error) {
	var (
		userID string
		err    error
	)

	if s.mode == ModeSigned {
		userID, err = s.signed.Validate(token)
		if err != nil {
			return nil, apperror.Unauthorized("invalid token")
		}
	} else {
		userID, err = s.registry.Resolve(ctx, token)
		if err != nil {
			return nil, err
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.Unauthorized("invalid token")
	}
	return user, nil
}

// Revoke invalidates a token server-side. In signed mode this is a no-op:
// there is no server state to delete, the client just discards its copy and
// the token dies at its expiry. That asymmetry is inherent to stateless
// tokens, not a bug.
func (s *Sessions) Revoke(token string) {
	if s.mode == ModeOpaque {
		s.registry.Revoke(token)
	}
}

// Snapshot exposes the live token table for the debug endpoint. Empty in
// signed mode.
func (s *Sessions) Snapshot() map[string]string {
	if s.mode == ModeSigned {
		return map[string]string{}
	}
	return s.registry.Snapshot()
}
