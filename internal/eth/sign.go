// Package eth wraps the go-ethereum primitives the authentication
// protocol needs: EIP-191 personal-sign hashing, secp256k1 signature
// recovery and EIP-55 address handling.
package eth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the canonical r || s || v encoding produced by
// eth_sign and personal_sign.
const SignatureLength = 65

var (
	// ErrMalformedSignature is returned when signature bytes cannot be decoded
	ErrMalformedSignature = errors.New("malformed signature bytes")
)

// PersonalSignHash returns the EIP-191 hash wallets sign for
// personal_sign payloads: keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
func PersonalSignHash(msg []byte) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return crypto.Keccak256([]byte(prefixed))
}

// RecoverAddress recovers the address that produced a personal_sign
// signature over msg. The hex signature may carry v as 0/1 or 27/28;
// wallets disagree and both encodings are accepted.
func RecoverAddress(msg []byte, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, SignatureLength, len(sig))
	}

	// crypto.SigToPub wants the recovery id in the 0/1 range.
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(PersonalSignHash(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// IsValidAddress reports whether s is a 0x-prefixed Ethereum address
// with a valid EIP-55 checksum. Single-case hex carries no checksum
// and is accepted as-is, per the EIP.
func IsValidAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return false
	}
	hex := s[2:]
	if hex == strings.ToLower(hex) || hex == strings.ToUpper(hex) {
		return true
	}
	return common.HexToAddress(s).Hex() == s
}

// ChecksumAddress returns the EIP-55 canonical form of an address.
func ChecksumAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// SameAddress compares two addresses ignoring casing.
func SameAddress(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}
