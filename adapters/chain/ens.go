package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	ens "github.com/wealdtech/go-ens/v3"
	"go.uber.org/zap"

	"github.com/giovaborgogno/siwe-auth/core"
)

// ENSResolver implements ports.NameResolver using the ENS reverse
// registrar and the avatar text record. All failures are reported to
// the caller, which treats them as "no profile available".
type ENSResolver struct {
	client *ethclient.Client
	logger *zap.Logger
}

// NewENSResolver creates an ENS-backed profile resolver.
func NewENSResolver(client *ethclient.Client, logger *zap.Logger) *ENSResolver {
	return &ENSResolver{client: client, logger: logger}
}

// Lookup resolves the primary ENS name for an address and, when one
// exists, its avatar text record. An address without a reverse record
// yields an empty profile, not an error.
func (r *ENSResolver) Lookup(ctx context.Context, address common.Address) (core.Profile, error) {
	name, err := ens.ReverseResolve(r.client, address)
	if err != nil {
		return core.Profile{}, err
	}
	if name == "" {
		return core.Profile{}, nil
	}

	profile := core.Profile{Name: name}

	resolver, err := ens.NewResolver(r.client, name)
	if err != nil {
		r.logger.Debug("no resolver for ens name", zap.String("name", name), zap.Error(err))
		return profile, nil
	}
	avatar, err := resolver.Text("avatar")
	if err != nil {
		r.logger.Debug("failed to read avatar record", zap.String("name", name), zap.Error(err))
		return profile, nil
	}
	profile.Avatar = avatar

	return profile, nil
}

// NoopResolver is used when profile creation is disabled by
// configuration. It returns an empty profile without touching the
// network.
type NoopResolver struct{}

// Lookup returns the zero profile.
func (NoopResolver) Lookup(ctx context.Context, address common.Address) (core.Profile, error) {
	return core.Profile{}, nil
}
