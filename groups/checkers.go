package groups

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/giovaborgogno/siwe-auth/core"
	"github.com/giovaborgogno/siwe-auth/ports"
)

// Checker answers whether a wallet satisfies a token-ownership
// condition against a contract. A definitive answer is (bool, nil); an
// error means the check could not be completed and the caller must
// leave membership unchanged (fail closed).
type Checker interface {
	IsMember(ctx context.Context, wallet *core.Wallet, caller ports.ContractCaller) (bool, error)
}

// Config carries the construction parameters for a checker. Required
// keys are validated eagerly; a missing key fails construction with a
// core.ConfigError rather than deferring to evaluation time.
type Config map[string]string

const (
	erc20ABIJSON   = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`
	erc721ABIJSON  = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`
	erc1155ABIJSON = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`
)

var (
	erc20ABI   = mustParseABI(erc20ABIJSON)
	erc721ABI  = mustParseABI(erc721ABIJSON)
	erc1155ABI = mustParseABI(erc1155ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// balanceCall packs, executes and decodes a balanceOf call.
func balanceCall(ctx context.Context, caller ports.ContractCaller, contractABI abi.ABI, contract common.Address, args ...interface{}) (*big.Int, error) {
	data, err := contractABI.Pack("balanceOf", args...)
	if err != nil {
		return nil, err
	}

	out, err := caller.CallContract(ctx, contract, data)
	if err != nil {
		return nil, err
	}

	results, err := contractABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, err
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, core.ErrVerification
	}
	return balance, nil
}

// walletAddress extracts the subject address, or reports that the
// wallet has no usable one.
func walletAddress(wallet *core.Wallet) (common.Address, bool) {
	if wallet == nil || wallet.Address == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(wallet.Address), true
}

// ERC20Owner grants membership to any holder of a fungible token.
type ERC20Owner struct {
	contract common.Address
	logger   *zap.Logger
}

// NewERC20Owner validates the config and builds the checker.
func NewERC20Owner(cfg Config, logger *zap.Logger) (*ERC20Owner, error) {
	contract, ok := cfg["contract"]
	if !ok {
		return nil, &core.ConfigError{Component: "ERC20 Owner Manager", MissingKey: "contract"}
	}
	return &ERC20Owner{contract: common.HexToAddress(contract), logger: logger}, nil
}

// IsMember reports whether the wallet holds a nonzero balance.
func (c *ERC20Owner) IsMember(ctx context.Context, wallet *core.Wallet, caller ports.ContractCaller) (bool, error) {
	owner, ok := walletAddress(wallet)
	if !ok {
		c.logger.Error("unable to verify membership of invalid address")
		return false, nil
	}

	balance, err := balanceCall(ctx, caller, erc20ABI, c.contract, owner)
	if err != nil {
		return false, err
	}
	return balance.Sign() > 0, nil
}

// ERC721Owner grants membership to any holder of a non-fungible token
// from the collection.
type ERC721Owner struct {
	contract common.Address
	logger   *zap.Logger
}

// NewERC721Owner validates the config and builds the checker.
func NewERC721Owner(cfg Config, logger *zap.Logger) (*ERC721Owner, error) {
	contract, ok := cfg["contract"]
	if !ok {
		return nil, &core.ConfigError{Component: "ERC721 Owner Manager", MissingKey: "contract"}
	}
	return &ERC721Owner{contract: common.HexToAddress(contract), logger: logger}, nil
}

// IsMember reports whether the wallet holds any token of the collection.
func (c *ERC721Owner) IsMember(ctx context.Context, wallet *core.Wallet, caller ports.ContractCaller) (bool, error) {
	owner, ok := walletAddress(wallet)
	if !ok {
		c.logger.Error("unable to verify membership of invalid address")
		return false, nil
	}

	balance, err := balanceCall(ctx, caller, erc721ABI, c.contract, owner)
	if err != nil {
		return false, err
	}
	return balance.Sign() > 0, nil
}

// ERC1155Owner grants membership to holders of one configured token ID
// within a multi-token contract.
type ERC1155Owner struct {
	contract common.Address
	tokenID  *big.Int
	logger   *zap.Logger
}

// NewERC1155Owner validates the config, including the token ID, and
// builds the checker.
func NewERC1155Owner(cfg Config, logger *zap.Logger) (*ERC1155Owner, error) {
	contract, ok := cfg["contract"]
	if !ok {
		return nil, &core.ConfigError{Component: "ERC1155 Owner Manager", MissingKey: "contract"}
	}
	raw, ok := cfg["tokenId"]
	if !ok {
		return nil, &core.ConfigError{Component: "ERC1155 Owner Manager", MissingKey: "tokenId"}
	}
	tokenID, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, &core.ConfigError{Component: "ERC1155 Owner Manager", MissingKey: "tokenId"}
	}
	return &ERC1155Owner{contract: common.HexToAddress(contract), tokenID: tokenID, logger: logger}, nil
}

// IsMember reports whether the wallet holds a nonzero balance of the
// configured token ID.
func (c *ERC1155Owner) IsMember(ctx context.Context, wallet *core.Wallet, caller ports.ContractCaller) (bool, error) {
	owner, ok := walletAddress(wallet)
	if !ok {
		c.logger.Error("unable to verify membership of invalid address")
		return false, nil
	}

	balance, err := balanceCall(ctx, caller, erc1155ABI, c.contract, owner, c.tokenID)
	if err != nil {
		return false, err
	}
	return balance.Sign() > 0, nil
}
