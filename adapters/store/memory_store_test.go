package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giovaborgogno/siwe-auth/core"
)

func TestConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	nonce := core.Nonce{Value: "abc", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.Save(ctx, nonce))

	got, found, err := s.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, nonce.Value, got.Value)

	_, found, err = s.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConsumeConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, core.Nonce{Value: "race", ExpiresAt: time.Now().Add(time.Hour)}))

	const callers = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, found, _ := s.Consume(ctx, "race"); found {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestScrubExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Save(ctx, core.Nonce{Value: "stale", ExpiresAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, s.Save(ctx, core.Nonce{Value: "live", ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, s.ScrubExpired(ctx))

	_, found, err := s.Consume(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.Consume(ctx, "live")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestWalletRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	address := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	_, err := s.Get(ctx, address)
	assert.ErrorIs(t, err, core.ErrWalletNotFound)

	wallet := core.NewWallet(address, core.Profile{Name: "alice.eth"}, time.Now())
	require.NoError(t, s.Put(ctx, wallet))

	got, err := s.Get(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, address, got.Address)
	assert.Equal(t, "alice.eth", got.ENSName)

	// The returned record is a copy; mutating it must not leak back.
	got.Groups = append(got.Groups, "intruders")
	again, err := s.Get(ctx, address)
	require.NoError(t, err)
	assert.Empty(t, again.Groups)
}

func TestGroupMembership(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.Ensure(ctx, "nft_owners")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Ensure(ctx, "nft_owners")
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, s.AddMember(ctx, "nft_owners", "0xabc"))
	require.NoError(t, s.AddMember(ctx, "nft_owners", "0xabc"))
	require.NoError(t, s.RemoveMember(ctx, "nft_owners", "0xabc"))
	require.NoError(t, s.RemoveMember(ctx, "nft_owners", "0xabc"))
}

func TestTokenRevocation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	revoked, err := s.IsTokenInvalidated(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.InvalidateToken(ctx, "jti-1", time.Hour))
	revoked, err = s.IsTokenInvalidated(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// A revocation whose window has passed stops matching.
	require.NoError(t, s.InvalidateToken(ctx, "jti-2", -time.Second))
	revoked, err = s.IsTokenInvalidated(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}
