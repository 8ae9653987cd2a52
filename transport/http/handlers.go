package http

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/giovaborgogno/siwe-auth/core"
	"github.com/giovaborgogno/siwe-auth/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	logger      *zap.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
	}
}

// Nonce issues a fresh single-use challenge nonce.
func (h *AuthHandlers) Nonce(c *gin.Context) {
	nonce, err := h.authService.IssueNonce(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to issue nonce", zap.Error(err))
		respondServerError(c)
		return
	}

	c.JSON(200, gin.H{"success": true, "nonce": nonce.Value})
}

// Login authenticates a signed EIP-4361 message and issues session
// tokens. Verification failures collapse to one uniform 401 so the
// response can't be used as an oracle on the verification pipeline.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Message   *core.Message `json:"message"`
		Signature string        `json:"signature"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationErrors(c, []FieldError{{Message: "invalid request body"}})
		return
	}
	var fieldErrs []FieldError
	if req.Message == nil {
		fieldErrs = append(fieldErrs, FieldError{Message: "field is required", Field: "message"})
	}
	if req.Signature == "" {
		fieldErrs = append(fieldErrs, FieldError{Message: "field is required", Field: "signature"})
	}
	if len(fieldErrs) > 0 {
		respondValidationErrors(c, fieldErrs)
		return
	}

	wallet, access, refresh, err := h.authService.Login(c.Request.Context(), req.Message, req.Signature)
	if err != nil {
		var malformed *core.MalformedMessageError
		switch {
		case errors.Is(err, core.ErrWalletInactive):
			respondForbidden(c)
		case errors.As(err, &malformed),
			errors.Is(err, core.ErrExpiredMessage),
			errors.Is(err, core.ErrInvalidSignature),
			errors.Is(err, core.ErrVerification),
			errors.Is(err, core.ErrInvalidNonce),
			errors.Is(err, core.ErrInvalidAddress):
			respondUnauthorized(c)
		default:
			h.logger.Error("login failed", zap.Error(err))
			respondServerError(c)
		}
		return
	}

	respondSuccess(c, "login", gin.H{
		"wallet":        wallet,
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
	})
}

// Verify reports whether the presented access token is valid. The auth
// middleware has already done the work when this handler runs.
func (h *AuthHandlers) Verify(c *gin.Context) {
	respondSuccess(c, "session verify", nil)
}

// Refresh rotates the refresh token.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationErrors(c, []FieldError{{Message: "field is required", Field: "refresh_token"}})
		return
	}

	access, refresh, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrTokenExpired), errors.Is(err, core.ErrTokenInvalidated), errors.Is(err, core.ErrInvalidToken):
			respondUnauthorized(c)
		default:
			// Unparseable tokens included: they are credentials, not validation input.
			h.logger.Debug("refresh rejected", zap.Error(err))
			respondUnauthorized(c)
		}
		return
	}

	respondSuccess(c, "session refresh", gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
	})
}

// Logout revokes the presented refresh token. Revoking an already
// expired token still succeeds; logout is idempotent.
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationErrors(c, []FieldError{{Message: "field is required", Field: "refresh_token"}})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		respondServerError(c)
		return
	}

	respondSuccess(c, "logout", nil)
}

// Me returns the authenticated wallet record.
func (h *AuthHandlers) Me(c *gin.Context) {
	address, exists := c.Get(contextAddressKey)
	if !exists {
		respondServerError(c)
		return
	}

	wallet, err := h.authService.FindByAddress(c.Request.Context(), address.(string))
	if err != nil {
		if errors.Is(err, core.ErrWalletNotFound) || errors.Is(err, core.ErrInvalidAddress) {
			respondUnauthorized(c)
			return
		}
		h.logger.Error("failed to load wallet", zap.Error(err))
		respondServerError(c)
		return
	}

	c.JSON(200, gin.H{"success": true, "wallet": wallet})
}
