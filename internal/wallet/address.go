// Package wallet normalises the addresses users connect with.
package wallet

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// MaxAddressLength is the longest identity Normalize accepts.
const MaxAddressLength = 128

// Normalize trims the address and, when it is a hex account address, rewrites
// it in EIP-55 checksum form so case variants name the same wallet. Anything
// else is kept as an opaque identity. ok is false for empty or oversized input.
func Normalize(raw string) (address string, ok bool) {
	address = strings.TrimSpace(raw)
	if address == "" || len(address) > MaxAddressLength {
		return "", false
	}
	if IsHexAddress(address) {
		return common.HexToAddress(address).Hex(), true
	}
	return address, true
}

// IsHexAddress reports whether s is a 20-byte hex address with or without the 0x prefix.
func IsHexAddress(s string) bool {
	return common.IsHexAddress(s)
}

// Short renders an address as 0x1234…abcd for display.
func Short(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}
