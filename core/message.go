package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/giovaborgogno/siwe-auth/internal/eth"
)

// Message is a Sign-In with Ethereum (EIP-4361) challenge payload. It
// exists only for the duration of one verification call and is never
// persisted. Field names follow the wire encoding used by SIWE clients.
type Message struct {
	Domain         string   `json:"domain"`
	Address        string   `json:"address"`
	Statement      string   `json:"statement,omitempty"`
	URI            string   `json:"uri"`
	Version        string   `json:"version"`
	ChainID        int64    `json:"chainId"`
	Nonce          string   `json:"nonce"`
	IssuedAt       string   `json:"issuedAt"`
	ExpirationTime string   `json:"expirationTime,omitempty"`
	NotBefore      string   `json:"notBefore,omitempty"`
	RequestID      string   `json:"requestId,omitempty"`
	Resources      []string `json:"resources,omitempty"`
}

// Validate checks that every field the EIP-4361 grammar requires is
// present. It reports all missing fields at once.
func (m *Message) Validate() error {
	var missing []string
	if m.Domain == "" {
		missing = append(missing, "domain")
	}
	if m.Address == "" {
		missing = append(missing, "address")
	}
	if m.URI == "" {
		missing = append(missing, "uri")
	}
	if m.Version == "" {
		missing = append(missing, "version")
	}
	if m.ChainID == 0 {
		missing = append(missing, "chainId")
	}
	if m.Nonce == "" {
		missing = append(missing, "nonce")
	}
	if m.IssuedAt == "" {
		missing = append(missing, "issuedAt")
	}
	if len(missing) > 0 {
		return &MalformedMessageError{MissingFields: missing}
	}
	return nil
}

// CanonicalText renders the exact text a wallet signs, per the
// EIP-4361 ABNF. Verification recomputes this from the submitted
// fields, so any field tampering breaks signature recovery.
func (m *Message) CanonicalText() string {
	var b strings.Builder

	b.WriteString(m.Domain)
	b.WriteString(" wants you to sign in with your Ethereum account:\n")
	b.WriteString(m.Address)
	b.WriteString("\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("URI: " + m.URI + "\n")
	b.WriteString("Version: " + m.Version + "\n")
	b.WriteString("Chain ID: " + strconv.FormatInt(m.ChainID, 10) + "\n")
	b.WriteString("Nonce: " + m.Nonce + "\n")
	b.WriteString("Issued At: " + m.IssuedAt)
	if m.ExpirationTime != "" {
		b.WriteString("\nExpiration Time: " + m.ExpirationTime)
	}
	if m.NotBefore != "" {
		b.WriteString("\nNot Before: " + m.NotBefore)
	}
	if m.RequestID != "" {
		b.WriteString("\nRequest ID: " + m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range m.Resources {
			b.WriteString("\n- " + r)
		}
	}

	return b.String()
}

// Verify runs the full verification pipeline: structural validation,
// temporal validation, then signature recovery over the canonical text.
// On success it returns the signing address in checksum form. The nonce
// is NOT checked here; consumption is a separate step so that signature
// validity and replay prevention stay independently testable.
func (m *Message) Verify(signature string, now time.Time) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	if m.Version != "1" {
		return "", fmt.Errorf("%w: unsupported version %q", ErrVerification, m.Version)
	}
	if m.ChainID < 1 {
		return "", fmt.Errorf("%w: chain id must be positive", ErrVerification)
	}
	if !strings.HasPrefix(m.Address, "0x") {
		return "", fmt.Errorf("%w: address is not 0x-prefixed", ErrVerification)
	}

	if m.NotBefore != "" {
		nbf, err := parseTimestamp(m.NotBefore)
		if err != nil {
			return "", err
		}
		if now.Before(nbf) {
			return "", ErrExpiredMessage
		}
	}
	if m.ExpirationTime != "" {
		exp, err := parseTimestamp(m.ExpirationTime)
		if err != nil {
			return "", err
		}
		if !now.Before(exp) {
			return "", ErrExpiredMessage
		}
	}

	recovered, err := eth.RecoverAddress([]byte(m.CanonicalText()), signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !eth.SameAddress(recovered.Hex(), m.Address) {
		return "", ErrInvalidSignature
	}

	return recovered.Hex(), nil
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrVerification, value)
	}
	return t, nil
}
