// Package chain adapts the configured Ethereum JSON-RPC provider to the
// read-only ports the authentication flow needs.
package chain

import (
	"context"
	"fmt"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DefaultCallTimeout bounds a single contract call when the config does
// not say otherwise.
const DefaultCallTimeout = 10 * time.Second

// EthCaller implements ports.ContractCaller on top of an ethclient
// connection. Every call gets a bounded timeout; a timeout is
// indistinguishable from any other RPC failure to callers.
type EthCaller struct {
	client  *ethclient.Client
	timeout time.Duration
}

// NewEthCaller creates a caller bound to a dialed client.
func NewEthCaller(client *ethclient.Client, timeout time.Duration) *EthCaller {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &EthCaller{client: client, timeout: timeout}
}

// Dial connects to the provider RPC URL and wraps it in a caller.
func Dial(ctx context.Context, providerURL string, timeout time.Duration) (*EthCaller, error) {
	client, err := ethclient.DialContext(ctx, providerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial provider: %w", err)
	}
	return NewEthCaller(client, timeout), nil
}

// Client exposes the underlying connection for adapters that need the
// full ethclient surface, such as the ENS resolver.
func (c *EthCaller) Client() *ethclient.Client {
	return c.client
}

// CallContract executes a read-only call against the latest block.
func (c *EthCaller) CallContract(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
}

// Close releases the underlying RPC connection.
func (c *EthCaller) Close() {
	c.client.Close()
}
