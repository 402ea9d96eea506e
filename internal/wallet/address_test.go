package wallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"checksums lowercase hex", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"checksums uppercase hex", "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"adds prefix", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"trims", "  alice.eth \n", "alice.eth", true},
		{"opaque kept", "wallet-123", "wallet-123", true},
		{"short hex is opaque", "0x1234", "0x1234", true},
		{"empty", "   ", "", false},
		{"too long", strings.Repeat("a", MaxAddressLength+1), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShort(t *testing.T) {
	assert.Equal(t, "0x5aAe…eAed", Short("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.Equal(t, "alice", Short("alice"))
}
