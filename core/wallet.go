package core

import (
	"time"

	"github.com/giovaborgogno/siwe-auth/internal/eth"
)

// Wallet is an authenticated Ethereum identity. It is created lazily on
// first successful login and carries no password credential: signature
// verification is its only authentication path.
type Wallet struct {
	// Address is stored in EIP-55 checksum form and is the record identity.
	Address     string    `json:"ethereum_address"`
	ENSName     string    `json:"ens_name,omitempty"`
	ENSAvatar   string    `json:"ens_avatar,omitempty"`
	CreatedAt   time.Time `json:"created"`
	LastLoginAt time.Time `json:"last_login,omitempty"`
	IsActive    bool      `json:"is_active"`
	IsAdmin     bool      `json:"is_admin"`
	IsSuperuser bool      `json:"is_superuser"`
	Groups      []string  `json:"groups"`
}

// Profile holds the optional human-readable identity of an address.
type Profile struct {
	Name   string
	Avatar string
}

// Group is a named membership bucket. Groups are created on demand the
// first time a rule is evaluated and are never deleted here.
type Group struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created"`
}

// NewWallet constructs an active wallet for a checksum address.
func NewWallet(address string, profile Profile, now time.Time) *Wallet {
	return &Wallet{
		Address:     address,
		ENSName:     profile.Name,
		ENSAvatar:   profile.Avatar,
		CreatedAt:   now,
		LastLoginAt: now,
		IsActive:    true,
	}
}

// InGroup reports whether the wallet holds an edge to the named group.
func (w *Wallet) InGroup(name string) bool {
	for _, g := range w.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// AddGroup ensures the wallet holds an edge to the named group.
// Adding an existing edge is a no-op, so concurrent syncs converge.
func (w *Wallet) AddGroup(name string) {
	if w.InGroup(name) {
		return
	}
	w.Groups = append(w.Groups, name)
}

// RemoveGroup ensures the wallet holds no edge to the named group.
func (w *Wallet) RemoveGroup(name string) {
	for i, g := range w.Groups {
		if g == name {
			w.Groups = append(w.Groups[:i], w.Groups[i+1:]...)
			return
		}
	}
}

// ValidateAddress rejects anything that is not a checksum-valid
// Ethereum address. All-lowercase and all-uppercase hex carry no
// checksum and are accepted, matching EIP-55.
func ValidateAddress(address string) error {
	if !eth.IsValidAddress(address) {
		return ErrInvalidAddress
	}
	return nil
}

// NormalizeAddress converts any accepted casing of an address to its
// canonical EIP-55 checksum form. Every store lookup and write goes
// through this so one address can never persist under two casings.
func NormalizeAddress(address string) (string, error) {
	if err := ValidateAddress(address); err != nil {
		return "", err
	}
	return eth.ChecksumAddress(address), nil
}
