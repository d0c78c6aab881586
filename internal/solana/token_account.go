package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// SPL token account layout: mint(32) | owner(32) | amount(8) | ...
const tokenAccountMinLen = 72

// ParseTokenAccountAmount parses raw SPL token account data and returns the
// token amount in base units (not decimals-adjusted).
func ParseTokenAccountAmount(data string) (uint64, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return 0, fmt.Errorf("decode token account data: %w", err)
	}
	if len(decoded) < tokenAccountMinLen {
		return 0, fmt.Errorf("token account data too short: %d", len(decoded))
	}
	return binary.LittleEndian.Uint64(decoded[64:72]), nil
}
