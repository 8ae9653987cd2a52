package service_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/giovaborgogno/siwe-auth/adapters/store"
	"github.com/giovaborgogno/siwe-auth/adapters/tokenizer"
	"github.com/giovaborgogno/siwe-auth/config"
	"github.com/giovaborgogno/siwe-auth/core"
	"github.com/giovaborgogno/siwe-auth/groups"
	"github.com/giovaborgogno/siwe-auth/internal/eth"
	"github.com/giovaborgogno/siwe-auth/service"
)

type fakeResolver struct {
	profile core.Profile
	err     error
}

func (f *fakeResolver) Lookup(ctx context.Context, address gethcommon.Address) (core.Profile, error) {
	if f.err != nil {
		return core.Profile{}, f.err
	}
	return f.profile, nil
}

type fakePublisher struct {
	logins  []string
	logouts []string
	err     error
}

func (f *fakePublisher) PublishLogin(ctx context.Context, address string) error {
	f.logins = append(f.logins, address)
	return f.err
}

func (f *fakePublisher) PublishLogout(ctx context.Context, address, tokenID string) error {
	f.logouts = append(f.logouts, tokenID)
	return f.err
}

type fakeCaller struct {
	balance *big.Int
	err     error
}

func (f *fakeCaller) CallContract(ctx context.Context, contract gethcommon.Address, data []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return gethcommon.LeftPadBytes(f.balance.Bytes(), 32), nil
}

type fixture struct {
	svc       *service.AuthService
	store     *store.MemoryStore
	resolver  *fakeResolver
	publisher *fakePublisher
	caller    *fakeCaller
	cfg       *config.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	mem := store.NewMemoryStore()
	resolver := &fakeResolver{}
	publisher := &fakePublisher{}
	caller := &fakeCaller{balance: big.NewInt(0)}
	cfg := config.NewStore(config.Default())
	logger := zap.NewNop()

	svc := service.NewAuthService(
		mem, mem, mem,
		tokenizer.NewJWTTokenizer(signKey),
		resolver,
		groups.NewSyncer(mem, caller, logger),
		publisher,
		cfg,
		logger,
	)
	return &fixture{svc: svc, store: mem, resolver: resolver, publisher: publisher, caller: caller, cfg: cfg}
}

// challenge issues a nonce, builds a message around it and signs it
// with a fresh key.
func (f *fixture) challenge(t *testing.T) (*core.Message, string) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return f.challengeWithKey(t, key)
}

func (f *fixture) challengeWithKey(t *testing.T, key *ecdsa.PrivateKey) (*core.Message, string) {
	t.Helper()

	nonce, err := f.svc.IssueNonce(context.Background())
	require.NoError(t, err)

	msg := &core.Message{
		Domain:   "example.com",
		Address:  crypto.PubkeyToAddress(key.PublicKey).Hex(),
		URI:      "https://example.com/login",
		Version:  "1",
		ChainID:  1,
		Nonce:    nonce.Value,
		IssuedAt: time.Now().UTC().Format(time.RFC3339),
	}

	sig, err := crypto.Sign(eth.PersonalSignHash([]byte(msg.CanonicalText())), key)
	require.NoError(t, err)
	sig[64] += 27
	return msg, hexutil.Encode(sig)
}

func TestIssueNonceShape(t *testing.T) {
	f := newFixture(t)

	nonce, err := f.svc.IssueNonce(context.Background())
	require.NoError(t, err)
	assert.Len(t, nonce.Value, 24)
	assert.True(t, nonce.ExpiresAt.After(time.Now()))

	other, err := f.svc.IssueNonce(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, nonce.Value, other.Value)
}

func TestLoginCreatesWalletAndTokens(t *testing.T) {
	f := newFixture(t)
	f.resolver.profile = core.Profile{Name: "vitalik.eth", Avatar: "https://example.com/a.png"}

	msg, sig := f.challenge(t)
	wallet, access, refresh, err := f.svc.Login(context.Background(), msg, sig)
	require.NoError(t, err)
	require.NotNil(t, wallet)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.Equal(t, "vitalik.eth", wallet.ENSName)
	assert.True(t, wallet.IsActive)

	// The stored address is the checksum form of the signer.
	stored, err := f.svc.FindByAddress(context.Background(), msg.Address)
	require.NoError(t, err)
	assert.Equal(t, wallet.Address, stored.Address)

	assert.Equal(t, []string{wallet.Address}, f.publisher.logins)
}

func TestLoginNonceIsSingleUse(t *testing.T) {
	f := newFixture(t)

	msg, sig := f.challenge(t)
	_, _, _, err := f.svc.Login(context.Background(), msg, sig)
	require.NoError(t, err)

	_, _, _, err = f.svc.Login(context.Background(), msg, sig)
	assert.ErrorIs(t, err, core.ErrInvalidNonce)
}

func TestLoginRejectsUnknownNonce(t *testing.T) {
	f := newFixture(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg := &core.Message{
		Domain:   "example.com",
		Address:  crypto.PubkeyToAddress(key.PublicKey).Hex(),
		URI:      "https://example.com/login",
		Version:  "1",
		ChainID:  1,
		Nonce:    "deadbeefdeadbeefdeadbeef",
		IssuedAt: time.Now().UTC().Format(time.RFC3339),
	}
	sig, err := crypto.Sign(eth.PersonalSignHash([]byte(msg.CanonicalText())), key)
	require.NoError(t, err)
	sig[64] += 27

	_, _, _, err = f.svc.Login(context.Background(), msg, hexutil.Encode(sig))
	assert.ErrorIs(t, err, core.ErrInvalidNonce)
}

func TestLoginRejectsExpiredNonceAndConsumesIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := core.Nonce{Value: "aaaaaaaaaaaaaaaaaaaaaaaa", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, f.store.Save(ctx, stale))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	msg := &core.Message{
		Domain:   "example.com",
		Address:  crypto.PubkeyToAddress(key.PublicKey).Hex(),
		URI:      "https://example.com/login",
		Version:  "1",
		ChainID:  1,
		Nonce:    stale.Value,
		IssuedAt: time.Now().UTC().Format(time.RFC3339),
	}
	sig, err := crypto.Sign(eth.PersonalSignHash([]byte(msg.CanonicalText())), key)
	require.NoError(t, err)
	sig[64] += 27

	_, _, _, err = f.svc.Login(ctx, msg, hexutil.Encode(sig))
	assert.ErrorIs(t, err, core.ErrInvalidNonce)

	// The failed attempt still destroys the nonce.
	_, found, err := f.store.Consume(ctx, stale.Value)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoginInactiveWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	banned := core.NewWallet(address, core.Profile{}, time.Now())
	banned.IsActive = false
	require.NoError(t, f.store.Put(ctx, banned))

	msg, sig := f.challengeWithKey(t, key)
	wallet, access, refresh, err := f.svc.Login(ctx, msg, sig)
	assert.ErrorIs(t, err, core.ErrWalletInactive)
	require.NotNil(t, wallet)
	assert.Empty(t, access)
	assert.Empty(t, refresh)
	assert.Empty(t, f.publisher.logins)
}

func TestLoginSurvivesResolverFailure(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = errors.New("ens unavailable")

	msg, sig := f.challenge(t)
	wallet, _, _, err := f.svc.Login(context.Background(), msg, sig)
	require.NoError(t, err)
	assert.Empty(t, wallet.ENSName)
	assert.Empty(t, wallet.ENSAvatar)
}

func TestLoginSurvivesPublisherFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	msg, sig := f.challenge(t)
	_, access, _, err := f.svc.Login(context.Background(), msg, sig)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
}

func TestLoginUpdatesLastLogin(t *testing.T) {
	f := newFixture(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg, sig := f.challengeWithKey(t, key)
	first, _, _, err := f.svc.Login(context.Background(), msg, sig)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	msg, sig = f.challengeWithKey(t, key)
	second, _, _, err := f.svc.Login(context.Background(), msg, sig)
	require.NoError(t, err)

	assert.Equal(t, first.Address, second.Address)
	assert.True(t, second.LastLoginAt.After(first.LastLoginAt))
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestLoginSyncsGroups(t *testing.T) {
	f := newFixture(t)
	logger := zap.NewNop()

	checker, err := groups.NewERC20Owner(groups.Config{"contract": "0x6B175474E89094C44Da98b954EedeAC495271d0F"}, logger)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.CreateGroupsOnAuth = true
	cfg.Groups = []groups.Rule{{Name: "dai_holders", Checker: checker}}
	f.cfg.Replace(cfg)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	f.caller.balance = big.NewInt(100)
	msg, sig := f.challengeWithKey(t, key)
	wallet, _, _, err := f.svc.Login(context.Background(), msg, sig)
	require.NoError(t, err)
	assert.True(t, wallet.InGroup("dai_holders"))

	// A later login with the balance gone drops the edge.
	f.caller.balance = big.NewInt(0)
	msg, sig = f.challengeWithKey(t, key)
	wallet, _, _, err = f.svc.Login(context.Background(), msg, sig)
	require.NoError(t, err)
	assert.False(t, wallet.InGroup("dai_holders"))

	stored, err := f.svc.FindByAddress(context.Background(), wallet.Address)
	require.NoError(t, err)
	assert.False(t, stored.InGroup("dai_holders"))
}

func TestFindByAddressAcceptsAnyCasing(t *testing.T) {
	f := newFixture(t)

	msg, sig := f.challenge(t)
	wallet, _, _, err := f.svc.Login(context.Background(), msg, sig)
	require.NoError(t, err)

	lower, err := f.svc.FindByAddress(context.Background(), strings.ToLower(wallet.Address))
	require.NoError(t, err)
	assert.Equal(t, wallet.Address, lower.Address)

	_, err = f.svc.FindByAddress(context.Background(), "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	assert.ErrorIs(t, err, core.ErrWalletNotFound)
}

func TestValidateAccessToken(t *testing.T) {
	f := newFixture(t)

	msg, sig := f.challenge(t)
	wallet, access, _, err := f.svc.Login(context.Background(), msg, sig)
	require.NoError(t, err)

	session, err := f.svc.ValidateAccessToken(context.Background(), access)
	require.NoError(t, err)
	assert.Equal(t, wallet.Address, session.Address)

	_, err = f.svc.ValidateAccessToken(context.Background(), "not-a-token")
	assert.Error(t, err)
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, sig := f.challenge(t)
	_, _, refresh, err := f.svc.Login(ctx, msg, sig)
	require.NoError(t, err)

	access2, refresh2, err := f.svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access2)
	assert.NotEqual(t, refresh, refresh2)

	// The consumed refresh token cannot be replayed.
	_, _, err = f.svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)

	// The rotated one still works.
	_, _, err = f.svc.Refresh(ctx, refresh2)
	require.NoError(t, err)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, sig := f.challenge(t)
	_, access, refresh, err := f.svc.Login(ctx, msg, sig)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, refresh))
	require.Len(t, f.publisher.logouts, 1)

	_, _, err = f.svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)

	// Access tokens tied to the revoked refresh stop working too.
	_, err = f.svc.ValidateAccessToken(ctx, access)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)
}

func TestLogoutRejectsGarbageToken(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.svc.Logout(context.Background(), "garbage"))
}
