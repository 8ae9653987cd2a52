package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/giovaborgogno/siwe-auth/config"
	"github.com/giovaborgogno/siwe-auth/core"
	"github.com/giovaborgogno/siwe-auth/groups"
	"github.com/giovaborgogno/siwe-auth/ports"
)

// nonceBytes is the entropy of an issued nonce: 12 random bytes,
// rendered as 24 hex characters.
const nonceBytes = 12

// AuthService composes nonce issuance, message verification, identity
// resolution and membership sync into the end-to-end login decision.
// Each attempt is a single pass; no step is retried, and the only state
// across calls lives in the stores.
type AuthService struct {
	nonces      ports.NonceStore
	wallets     ports.WalletStore
	revocations ports.RevocationStore
	tokenizer   ports.Tokenizer
	resolver    ports.NameResolver
	syncer      *groups.Syncer
	eventPub    ports.EventPublisher
	cfg         *config.Store
	logger      *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	nonces ports.NonceStore,
	wallets ports.WalletStore,
	revocations ports.RevocationStore,
	tokenizer ports.Tokenizer,
	resolver ports.NameResolver,
	syncer *groups.Syncer,
	eventPub ports.EventPublisher,
	cfg *config.Store,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		nonces:      nonces,
		wallets:     wallets,
		revocations: revocations,
		tokenizer:   tokenizer,
		resolver:    resolver,
		syncer:      syncer,
		eventPub:    eventPub,
		cfg:         cfg,
		logger:      logger,
	}
}

// IssueNonce generates, persists and returns a fresh challenge nonce.
// Expired nonces are swept first; the sweep is amortized garbage
// collection, not a correctness requirement.
func (s *AuthService) IssueNonce(ctx context.Context) (core.Nonce, error) {
	if err := s.nonces.ScrubExpired(ctx); err != nil {
		s.logger.Warn("nonce scrub failed", zap.Error(err))
	}

	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return core.Nonce{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	nonce := core.Nonce{
		Value:     hex.EncodeToString(buf),
		ExpiresAt: time.Now().Add(s.cfg.Load().NonceTTL),
	}
	if err := s.nonces.Save(ctx, nonce); err != nil {
		return core.Nonce{}, fmt.Errorf("failed to save nonce: %w", err)
	}
	return nonce, nil
}

// consumeNonce destroys the nonce on first presentation and reports
// whether it was still live. The delete happens whatever the expiry
// says: an expired replay must fail AND leave nothing to replay later.
func (s *AuthService) consumeNonce(ctx context.Context, value string) bool {
	nonce, found, err := s.nonces.Consume(ctx, value)
	if err != nil {
		s.logger.Error("nonce consume failed", zap.Error(err))
		return false
	}
	if !found {
		return false
	}
	return !nonce.Expired(time.Now())
}

// Login runs the full authentication state machine for one signed
// message: verify signature -> consume nonce -> resolve profile ->
// upsert wallet -> sync groups -> issue session tokens. A failure at
// any step rejects the attempt; the consumed nonce is never restored.
func (s *AuthService) Login(ctx context.Context, msg *core.Message, signature string) (*core.Wallet, string, string, error) {
	cfg := s.cfg.Load()

	address, err := msg.Verify(signature, time.Now())
	if err != nil {
		s.logger.Debug("authentication attempt rejected", zap.Error(err))
		return nil, "", "", err
	}

	if !s.consumeNonce(ctx, msg.Nonce) {
		s.logger.Debug("authentication attempt rejected", zap.Error(core.ErrInvalidNonce))
		return nil, "", "", core.ErrInvalidNonce
	}

	var profile core.Profile
	if cfg.CreateProfileOnAuth {
		profile, err = s.resolver.Lookup(ctx, common.HexToAddress(address))
		if err != nil {
			// Best effort: no profile is never an authentication failure.
			s.logger.Warn("profile lookup failed", zap.String("address", address), zap.Error(err))
			profile = core.Profile{}
		}
	}

	wallet, err := s.resolveOrCreate(ctx, address, profile)
	if err != nil {
		return nil, "", "", err
	}

	if cfg.CreateGroupsOnAuth && len(cfg.Groups) > 0 {
		for _, rule := range cfg.Groups {
			if err := s.syncer.Sync(ctx, wallet, rule); err != nil {
				return nil, "", "", err
			}
		}
		if err := s.wallets.Put(ctx, wallet); err != nil {
			return nil, "", "", fmt.Errorf("failed to persist group edges: %w", err)
		}
	}

	if !wallet.IsActive {
		return wallet, "", "", core.ErrWalletInactive
	}

	access, refresh, err := s.createTokens(wallet.Address)
	if err != nil {
		return nil, "", "", err
	}

	if err := s.eventPub.PublishLogin(ctx, wallet.Address); err != nil {
		s.logger.Warn("failed to publish login event", zap.Error(err))
	}

	return wallet, access, refresh, nil
}

// resolveOrCreate is the idempotent identity upsert. The address is
// checksum-normalized before any lookup or write, so one address can
// never exist under two casings.
func (s *AuthService) resolveOrCreate(ctx context.Context, address string, profile core.Profile) (*core.Wallet, error) {
	canonical, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	wallet, err := s.wallets.Get(ctx, canonical)
	switch {
	case err == nil:
		wallet.ENSName = profile.Name
		wallet.ENSAvatar = profile.Avatar
		wallet.LastLoginAt = now
		s.logger.Debug("found wallet", zap.String("address", canonical))
	case err == core.ErrWalletNotFound:
		wallet = core.NewWallet(canonical, profile, now)
		s.logger.Debug("creating new wallet", zap.String("address", canonical))
	default:
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	if err := s.wallets.Put(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}
	return wallet, nil
}

// FindByAddress is the read-only lookup used for session resumption.
// It accepts any casing of the address and never mutates state.
func (s *AuthService) FindByAddress(ctx context.Context, address string) (*core.Wallet, error) {
	canonical, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return s.wallets.Get(ctx, canonical)
}

func (s *AuthService) createTokens(address string) (string, string, error) {
	cfg := s.cfg.Load()
	now := time.Now()
	session := &core.Session{
		ID:            uuid.New().String(),
		Address:       address,
		IssuedAt:      now,
		AccessExpiry:  now.Add(cfg.AccessTTL),
		RefreshExpiry: now.Add(cfg.RefreshTTL),
		RefreshID:     uuid.New().String(),
	}

	access, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create access token: %w", err)
	}
	refresh, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create refresh token: %w", err)
	}
	return access, refresh, nil
}

// Refresh rotates the refresh token and issues a new token pair. The
// old refresh ID is revoked for its remaining lifetime so it cannot be
// replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (string, string, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token: %w", err)
	}

	if time.Now().After(session.RefreshExpiry) {
		return "", "", core.ErrTokenExpired
	}

	invalidated, err := s.revocations.IsTokenInvalidated(ctx, session.RefreshID)
	if err != nil {
		return "", "", fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return "", "", core.ErrTokenInvalidated
	}

	if err := s.revocations.InvalidateToken(ctx, session.RefreshID, time.Until(session.RefreshExpiry)); err != nil {
		return "", "", fmt.Errorf("failed to invalidate old token: %w", err)
	}

	return s.createTokens(session.Address)
}

// Logout invalidates a refresh token and announces the logout to the
// other instances. Event failures are logged, never fatal: the
// revocation record is the part that matters.
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return fmt.Errorf("invalid refresh token: %w", err)
	}

	// Expired tokens still get a short-lived revocation record so
	// clock skew cannot resurrect them.
	remaining := time.Until(session.RefreshExpiry)
	if remaining <= 0 {
		remaining = time.Hour
	}

	if err := s.revocations.InvalidateToken(ctx, session.RefreshID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.Address, session.RefreshID); err != nil {
		s.logger.Warn("failed to publish logout event", zap.Error(err))
	}
	return nil
}

// ValidateAccessToken verifies an access token and checks that its
// backing refresh token has not been revoked.
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	if time.Now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	if session.RefreshID != "" {
		invalidated, err := s.revocations.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}
