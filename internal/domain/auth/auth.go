// Package auth decides whether a write request may proceed.
//
// The policy is chosen once at startup from configuration: a non-empty shared
// secret yields RequireSecret, an empty one yields AllowAll.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// Header carries the shared secret on write requests.
const Header = "X-Scoreboard-Secret"

// Policy authorizes write requests by the value of Header.
type Policy interface {
	// Authorize reports whether presented is acceptable.
	Authorize(presented string) bool
	// Enforced reports whether the policy checks anything at all.
	Enforced() bool
}

// NewPolicy returns RequireSecret when secret is non-empty, AllowAll otherwise.
func NewPolicy(secret string) Policy {
	if secret == "" {
		return AllowAll{}
	}
	return NewRequireSecret(secret)
}

// AllowAll accepts every request.
type AllowAll struct{}

// Authorize always returns true.
func (AllowAll) Authorize(string) bool { return true }

// Enforced returns false.
func (AllowAll) Enforced() bool { return false }

// RequireSecret accepts requests presenting the configured secret.
type RequireSecret struct {
	digest [sha256.Size]byte
}

// NewRequireSecret builds a RequireSecret policy for secret.
func NewRequireSecret(secret string) RequireSecret {
	return RequireSecret{digest: sha256.Sum256([]byte(secret))}
}

// Authorize compares fixed-size digests in constant time so neither the
// content nor the length of the secret leaks through timing.
func (p RequireSecret) Authorize(presented string) bool {
	got := sha256.Sum256([]byte(strings.TrimSpace(presented)))
	return subtle.ConstantTimeCompare(got[:], p.digest[:]) == 1
}

// Enforced returns true.
func (RequireSecret) Enforced() bool { return true }
