package auth

import (
	"fmt"
	"strings"
	"time"
)

// tokenPrefix is the fixed two-part prefix of every opaque session token.
//
// TOKEN FORMAT CONVENTION:
//
//	mock-token-<userID>-<timestamp>
//
// Hyphen-delimited; the user ID must not contain hyphens (xid identifiers
// and the seeded numeric demo IDs both satisfy this). The trailing component
// only has to make the token unique — the parser never interprets it.
//
// This is a structural convention, not a cryptographic guarantee: anyone who
// knows the format can construct a token for a known user ID. That is the
// documented weakness of opaque mode; deployments that care switch to signed
// mode (see Sessions) or disable fallback parsing on the Registry.
const tokenPrefix = "mock-token"

// Issuer mints opaque session tokens.
type Issuer struct {
	// now is swappable in tests to pin the timestamp component.
	now func() time.Time
}

// NewIssuer creates an Issuer using the wall clock.
func NewIssuer() *Issuer {
	return &Issuer{now: time.Now}
}

// Issue returns a fresh opaque token for userID.
//
// Uniqueness comes from the nanosecond timestamp: two logins for the same
// user in the same nanosecond would collide, which is statistically
// negligible. If it ever happened the Registry's last-writer-wins semantics
// make the outcome well defined (both calls map the token to the same user).
func (i *Issuer) Issue(userID string) string {
	return fmt.Sprintf("%s-%s-%d", tokenPrefix, userID, i.now().UnixNano())
}

// ParseToken extracts the embedded user ID from a structurally valid opaque
// token. It is the fallback half of token resolution: used only when the
// registry has no direct entry (tokens issued before a restart, or by a
// sibling instance).
//
// A token parses if it splits on "-" into at least 3 parts and the first two
// are the fixed prefix (the timestamp may be absent — legacy tokens from the
// oldest variant carried none). The caller MUST verify the returned user ID
// against the credential store before trusting it — parsing alone proves
// nothing.
func ParseToken(token string) (userID string, ok bool) {
	parts := strings.Split(token, "-")
	if len(parts) < 3 || parts[0] != "mock" || parts[1] != "token" {
		return "", false
	}
	if parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
