package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/giovaborgogno/siwe-auth/core"
)

// ContractCaller executes a read-only contract call and returns the raw
// ABI-encoded result. Implementations apply a bounded timeout; a
// timeout surfaces as an ordinary call error.
type ContractCaller interface {
	CallContract(ctx context.Context, contract common.Address, data []byte) ([]byte, error)
}

// NameResolver looks up the human-readable profile for an address.
// Lookups are best effort: callers treat any error as "no profile
// available", never as an authentication failure.
type NameResolver interface {
	Lookup(ctx context.Context, address common.Address) (core.Profile, error)
}
