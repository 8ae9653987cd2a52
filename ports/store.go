package ports

import (
	"context"
	"time"

	"github.com/giovaborgogno/siwe-auth/core"
)

// NonceStore persists one-time challenge tokens.
type NonceStore interface {
	// Save persists a freshly issued nonce.
	Save(ctx context.Context, nonce core.Nonce) error

	// Consume atomically looks up and deletes a nonce. Exactly one of
	// any number of concurrent callers presenting the same value may
	// observe found=true; expiry is judged by the caller afterwards so
	// that even an expired nonce is destroyed on first presentation.
	Consume(ctx context.Context, value string) (nonce core.Nonce, found bool, err error)

	// ScrubExpired deletes every currently expired nonce.
	ScrubExpired(ctx context.Context) error
}

// WalletStore persists wallet identity records keyed by checksum address.
type WalletStore interface {
	// Get returns the wallet for a checksum address, or core.ErrWalletNotFound.
	Get(ctx context.Context, address string) (*core.Wallet, error)

	// Put writes a wallet record, replacing any previous one.
	Put(ctx context.Context, wallet *core.Wallet) error
}

// GroupStore persists group records and their membership edges.
type GroupStore interface {
	// Ensure creates the group if it does not exist and reports whether
	// it was created by this call.
	Ensure(ctx context.Context, name string) (created bool, err error)

	// AddMember and RemoveMember maintain the group side of the
	// wallet<->group edge. Both are idempotent.
	AddMember(ctx context.Context, name, address string) error
	RemoveMember(ctx context.Context, name, address string) error
}

// RevocationStore tracks invalidated refresh token IDs.
type RevocationStore interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}
