package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExpiredMessage is returned when a message is outside its validity window
	ErrExpiredMessage = errors.New("message has expired")

	// ErrInvalidSignature is returned when a signature does not recover to the claimed address
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrVerification is returned for protocol violations beyond missing fields and timing
	ErrVerification = errors.New("invalid message")

	// ErrInvalidNonce is returned when a nonce is absent, expired or already consumed
	ErrInvalidNonce = errors.New("invalid nonce")

	// ErrInvalidAddress is returned when an address fails EIP-55 validation
	ErrInvalidAddress = errors.New("invalid ethereum address")

	// ErrWalletNotFound is returned when no wallet exists for an address
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletInactive is returned when an authenticated wallet is disabled
	ErrWalletInactive = errors.New("wallet is disabled")

	// ErrTokenExpired is returned when a session token has expired
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalidated is returned when a session token has been invalidated
	ErrTokenInvalidated = errors.New("token has been invalidated")

	// ErrInvalidToken is returned when a session token is invalid
	ErrInvalidToken = errors.New("invalid token")
)

// MalformedMessageError reports the required message fields that are absent.
type MalformedMessageError struct {
	MissingFields []string
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("missing fields: %s", strings.Join(e.MissingFields, ", "))
}

// ConfigError reports a group rule constructed without a required key.
// It is raised at startup, never per request.
type ConfigError struct {
	Component  string
	MissingKey string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s config is missing %s attribute", e.Component, e.MissingKey)
}
