package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/model"
)

// UserFinder is the slice of the user repository the session layer needs:
// just enough to confirm that an identity embedded in a token actually
// exists. Defined here (consumer side) so the auth package doesn't depend
// on the repository package.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// entry is one live token mapping. issuedAt only matters when a TTL is
// configured; without one it is kept for the debug snapshot.
type entry struct {
	userID   string
	issuedAt time.Time
}

// Registry is the single source of truth mapping live opaque tokens to user
// IDs.
//
// HISTORY:
// Earlier revisions of this app had three separate copies of this logic —
// one that only did the direct map lookup, one that also fell back to
// parsing the token string, and one that ONLY parsed. Each API route kept
// its own private token map, so a token issued by the login route was
// invisible to the god-creation route until fallback parsing re-registered
// it there. This type is the consolidation: one process-wide instance,
// constructed at startup and injected everywhere, with the
// direct-lookup-then-fallback behavior that is a superset of all three
// variants.
//
// INVARIANT:
// Resolve never returns a user ID for which no account exists. Direct hits
// are safe because Register is only called with IDs of freshly authenticated
// users; the fallback path checks existence explicitly before accepting.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]entry

	users UserFinder
	now   func() time.Time

	// fallbackOff disables structural token parsing entirely. A hardened
	// deployment sets this so that only tokens this process issued (or that
	// were explicitly registered) ever resolve.
	fallbackOff bool

	// ttl, when non-zero, expires tokens ttl after issuance. Zero means
	// tokens live until revoked — the original behavior, kept as the
	// default for compatibility.
	ttl time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithoutFallback disables the structural-parse fallback in Resolve.
func WithoutFallback() RegistryOption {
	return func(r *Registry) { r.fallbackOff = true }
}

// WithTTL makes tokens expire d after issuance. Expired tokens fail
// resolution and are removed from the registry on the way out.
//
// Like Revoke, expiry is only airtight with fallback disabled: a structural
// token for a live user falls back successfully on the next call and is
// re-registered with a fresh issuedAt, renewing its TTL. Deployments that
// want hard expiry combine WithTTL with WithoutFallback (or use signed
// mode, where expiry lives in the token itself).
func WithTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.ttl = d }
}

// withClock pins the registry's clock. Test hook.
func withClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry backed by the given user lookup.
func NewRegistry(users UserFinder, opts ...RegistryOption) *Registry {
	r := &Registry{
		tokens: make(map[string]entry),
		users:  users,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts or overwrites the token→userID mapping. Idempotent; if
// two issuance calls ever raced to the same token value, last writer wins
// and the map is never left ambiguous (the write happens under the lock).
func (r *Registry) Register(token, userID string) {
	r.mu.Lock()
	r.tokens[token] = entry{userID: userID, issuedAt: r.now()}
	r.mu.Unlock()
}

// Resolve maps a token to the user ID it was issued for.
//
// Resolution order:
//  1. Direct map hit (checking expiry if a TTL is configured).
//  2. Fallback: parse the token structurally, confirm the embedded user
//     exists, and — on success — insert the mapping so the next call is a
//     direct hit (self-healing after a restart or cross-instance token).
//
// Any failure surfaces as apperror.ErrUnauthorized; callers treat a missing
// and an invalid token identically.
func (r *Registry) Resolve(ctx context.Context, token string) (string, error) {
	r.mu.RLock()
	e, hit := r.tokens[token]
	r.mu.RUnlock()

	if hit {
		if r.expired(e) {
			r.mu.Lock()
			delete(r.tokens, token)
			r.mu.Unlock()
			return "", apperror.Unauthorized("token has expired")
		}
		return e.userID, nil
	}

	if r.fallbackOff {
		return "", apperror.Unauthorized("invalid token")
	}

	userID, ok := ParseToken(token)
	if !ok {
		return "", apperror.Unauthorized("invalid token")
	}

	// The embedded identity is untrusted input until the account is
	// confirmed to exist.
	if _, err := r.users.GetByID(ctx, userID); err != nil {
		return "", apperror.Unauthorized("invalid token")
	}

	r.Register(token, userID)
	return userID, nil
}

// Revoke removes a token from the registry. Resolving it afterwards fails
// unless the fallback path re-accepts it (structural tokens for live users
// always fall back successfully — revocation is only airtight with
// WithoutFallback or signed mode).
func (r *Registry) Revoke(token string) {
	r.mu.Lock()
	delete(r.tokens, token)
	r.mu.Unlock()
}

// ForceRegister unconditionally inserts a mapping, bypassing issuance.
//
// Diagnostic escape hatch only: it exists for the debug endpoints and tests.
// Nothing on the production authentication path may call it — it can map a
// token to a nonexistent user, violating the Resolve invariant on purpose.
func (r *Registry) ForceRegister(token, userID string) {
	r.Register(token, userID)
}

// Snapshot returns a copy of the live token→userID mapping for diagnostics.
// Mutating the returned map does not affect the registry.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.tokens))
	for tok, e := range r.tokens {
		out[tok] = e.userID
	}
	return out
}

// Len reports the number of live tokens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

func (r *Registry) expired(e entry) bool {
	return r.ttl > 0 && r.now().Sub(e.issuedAt) > r.ttl
}

// TruncateToken shortens a token for log and debug output. Full token values
// are bearer credentials and must never be written to logs.
func TruncateToken(token string) string {
	const keep = 30
	if len(token) <= keep {
		return token
	}
	return fmt.Sprintf("%s...", token[:keep])
}
