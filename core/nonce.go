package core

import "time"

// DefaultNonceTTL is how long an issued nonce stays consumable.
const DefaultNonceTTL = 12 * time.Hour

// Nonce is a single-use challenge token. Its value is the identity.
// Once consumed it never validates again, whatever the outcome of the
// authentication attempt it was embedded in.
type Nonce struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expiration"`
}

// Expired reports whether the nonce is past its expiration at the given instant.
func (n Nonce) Expired(now time.Time) bool {
	return !n.ExpiresAt.After(now)
}
