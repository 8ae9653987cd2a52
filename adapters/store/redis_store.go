package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giovaborgogno/siwe-auth/core"
)

// RedisStore is a Redis implementation of the store ports.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "siwe:",
	}
}

func (s *RedisStore) nonceKey(value string) string   { return s.prefix + "nonce:" + value }
func (s *RedisStore) walletKey(address string) string { return s.prefix + "wallet:" + address }
func (s *RedisStore) groupKey(name string) string     { return s.prefix + "group:" + name }
func (s *RedisStore) membersKey(name string) string   { return s.prefix + "group:" + name + ":members" }
func (s *RedisStore) revokedKey(tokenID string) string { return s.prefix + "revoked:" + tokenID }

// Save persists a nonce with a TTL matching its expiration. The TTL is
// a backstop; single use is still enforced by Consume.
func (s *RedisStore) Save(ctx context.Context, nonce core.Nonce) error {
	payload, err := json.Marshal(nonce)
	if err != nil {
		return fmt.Errorf("failed to marshal nonce: %w", err)
	}

	ttl := time.Until(nonce.ExpiresAt)
	if ttl <= 0 {
		return core.ErrInvalidNonce
	}
	if err := s.client.Set(ctx, s.nonceKey(nonce.Value), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save nonce: %w", err)
	}
	return nil
}

// Consume atomically fetches and deletes a nonce via GETDEL, so only
// one of any number of concurrent callers can win a given value.
func (s *RedisStore) Consume(ctx context.Context, value string) (core.Nonce, bool, error) {
	payload, err := s.client.GetDel(ctx, s.nonceKey(value)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Nonce{}, false, nil
		}
		return core.Nonce{}, false, fmt.Errorf("failed to consume nonce: %w", err)
	}

	var nonce core.Nonce
	if err := json.Unmarshal([]byte(payload), &nonce); err != nil {
		return core.Nonce{}, false, fmt.Errorf("failed to unmarshal nonce: %w", err)
	}
	return nonce, true, nil
}

// ScrubExpired is a no-op here: nonce keys carry their expiration as a
// Redis TTL, so expired entries are collected by Redis itself.
func (s *RedisStore) ScrubExpired(ctx context.Context) error {
	return nil
}

// Get returns the wallet stored under a checksum address.
func (s *RedisStore) Get(ctx context.Context, address string) (*core.Wallet, error) {
	payload, err := s.client.Get(ctx, s.walletKey(address)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	var wallet core.Wallet
	if err := json.Unmarshal([]byte(payload), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}
	return &wallet, nil
}

// Put writes a wallet record, replacing any previous one.
func (s *RedisStore) Put(ctx context.Context, wallet *core.Wallet) error {
	payload, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}
	if err := s.client.Set(ctx, s.walletKey(wallet.Address), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to put wallet: %w", err)
	}
	return nil
}

// Ensure creates the group record if absent.
func (s *RedisStore) Ensure(ctx context.Context, name string) (bool, error) {
	payload, err := json.Marshal(core.Group{Name: name, CreatedAt: time.Now()})
	if err != nil {
		return false, fmt.Errorf("failed to marshal group: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.groupKey(name), payload, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to ensure group: %w", err)
	}
	return created, nil
}

// AddMember adds a wallet to a group's member set.
func (s *RedisStore) AddMember(ctx context.Context, name, address string) error {
	if err := s.client.SAdd(ctx, s.membersKey(name), address).Err(); err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveMember removes a wallet from a group's member set.
func (s *RedisStore) RemoveMember(ctx context.Context, name, address string) error {
	if err := s.client.SRem(ctx, s.membersKey(name), address).Err(); err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return nil
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if err := s.client.Set(ctx, s.revokedKey(tokenID), "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	return val > 0, nil
}
