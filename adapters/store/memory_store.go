package store

import (
	"context"
	"sync"
	"time"

	"github.com/giovaborgogno/siwe-auth/core"
)

// MemoryStore is an in-memory implementation of the store ports. It is
// intended for tests and single-process deployments.
type MemoryStore struct {
	mu sync.RWMutex

	nonces  map[string]core.Nonce
	wallets map[string]core.Wallet
	groups  map[string]core.Group
	members map[string]map[string]struct{}
	revoked map[string]time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nonces:  make(map[string]core.Nonce),
		wallets: make(map[string]core.Wallet),
		groups:  make(map[string]core.Group),
		members: make(map[string]map[string]struct{}),
		revoked: make(map[string]time.Time),
	}
}

// Save persists a freshly issued nonce.
func (s *MemoryStore) Save(ctx context.Context, nonce core.Nonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nonces[nonce.Value] = nonce
	return nil
}

// Consume deletes and returns a nonce under the write lock, so two
// callers presenting the same value can never both observe it.
func (s *MemoryStore) Consume(ctx context.Context, value string) (core.Nonce, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.nonces[value]
	if !ok {
		return core.Nonce{}, false, nil
	}
	delete(s.nonces, value)
	return nonce, true, nil
}

// ScrubExpired deletes every currently expired nonce.
func (s *MemoryStore) ScrubExpired(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for value, nonce := range s.nonces {
		if nonce.Expired(now) {
			delete(s.nonces, value)
		}
	}
	return nil
}

// Get returns the wallet for a checksum address.
func (s *MemoryStore) Get(ctx context.Context, address string) (*core.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallet, ok := s.wallets[address]
	if !ok {
		return nil, core.ErrWalletNotFound
	}
	copied := wallet
	copied.Groups = append([]string(nil), wallet.Groups...)
	return &copied, nil
}

// Put writes a wallet record.
func (s *MemoryStore) Put(ctx context.Context, wallet *core.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *wallet
	copied.Groups = append([]string(nil), wallet.Groups...)
	s.wallets[wallet.Address] = copied
	return nil
}

// Ensure creates the group if it does not exist.
func (s *MemoryStore) Ensure(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[name]; ok {
		return false, nil
	}
	s.groups[name] = core.Group{Name: name, CreatedAt: time.Now()}
	s.members[name] = make(map[string]struct{})
	return true, nil
}

// AddMember adds a wallet to a group's member set.
func (s *MemoryStore) AddMember(ctx context.Context, name, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members[name] == nil {
		s.members[name] = make(map[string]struct{})
	}
	s.members[name][address] = struct{}{}
	return nil
}

// RemoveMember removes a wallet from a group's member set.
func (s *MemoryStore) RemoveMember(ctx context.Context, name, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members[name] != nil {
		delete(s.members[name], address)
	}
	return nil
}

// InvalidateToken marks a token ID as revoked until its expiry.
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked[tokenID] = time.Now().Add(expiry)
	return nil
}

// IsTokenInvalidated checks whether a token ID is currently revoked.
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	until, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	return time.Now().Before(until), nil
}
