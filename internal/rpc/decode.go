package rpc

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/kaspax/txkernel/internal/kaspa"
)

// parseSompi parses an arbitrary-precision decimal-string amount into Sompi.
// The upstream API only ever emits non-negative integer sompi values within
// int64 range in practice (Kaspa's max supply is far below 2^63), so a plain
// strconv parse is sufficient without a bignum library.
func parseSompi(s string) (kaspa.Sompi, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sompi amount %q: %w", s, err)
	}
	return kaspa.Sompi(v), nil
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse uint %q: %w", s, err)
	}
	return v, nil
}

func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex %q: %w", s, err)
	}
	return b, nil
}
