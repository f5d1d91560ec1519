package domain

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateAddress checks that an address is a base58-encoded 32-byte
// ed25519 public key on the curve. Malformed addresses are rejected
// locally before any ledger round trip.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("empty address")
	}

	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("decode address %q: %w", address, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("address %q: expected 32 bytes, got %d", address, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("address %q: not on curve", address)
	}
	return nil
}
