// Package signature implements the date-derived ping token and its
// validation window.
//
// A token is the truncated SHA-256 digest of the current UTC calendar date
// concatenated with a fixed label. The algorithm is deliberately unkeyed:
// anyone who knows it can compute today's token. The protection offered is
// that the endpoint's existence is not discoverable without it, not
// cryptographic secrecy.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// label is mixed into every token derivation.
const label = "ming-mong-server"

// TokenLength is the number of lowercase hex characters in a token.
const TokenLength = 16

// Derive computes the token for the given date. The result depends only on
// the UTC calendar day of the argument.
func Derive(date time.Time) string {
	day := date.UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(day + label))
	return hex.EncodeToString(sum[:])[:TokenLength]
}

// Validator checks candidate tokens against the current and immediately
// preceding UTC calendar date. It recomputes from wall-clock time on every
// call and holds no state, so a single instance is safe for concurrent use.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a validator using the system clock.
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// NewValidatorWithClock creates a validator with an injected clock for tests.
func NewValidatorWithClock(now func() time.Time) *Validator {
	return &Validator{now: now}
}

// IsValid reports whether candidate matches the token for today or yesterday
// (UTC). Malformed candidates simply fail the comparison; no error is
// reported. Exactly two dates are ever consulted.
func (v *Validator) IsValid(candidate string) bool {
	now := v.now().UTC()

	if candidate == Derive(now) {
		return true
	}

	// Yesterday's token absorbs clock and timezone skew.
	return candidate == Derive(now.AddDate(0, 0, -1))
}
