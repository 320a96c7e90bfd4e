// Package address validates and normalizes Kaspa's bech32-style addresses:
// a network-bound prefix plus a payload drawn from a 32-symbol alphabet,
// 12-120 payload characters. The upstream REST API never requires checksum
// verification by this kernel (only prefix/charset/length conformance), so
// a dedicated charset walk is used here instead of a BTC-bech32 checksum
// implementation, whose polymod constant would be wrong for Kaspa's own
// checksum and worse than no checksum check at all.
package address

import (
	"strings"

	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kerrors"
)

// Parsed is a validated, decomposed address.
type Parsed struct {
	Prefix  string
	Payload string
	Raw     string
}

var allowedPrefixes = map[string]bool{
	config.AddressPrefixMainnet: true,
	config.AddressPrefixTestnet: true,
}

var charsetIndex = buildCharsetIndex()

func buildCharsetIndex() map[rune]bool {
	m := make(map[rune]bool, len(config.AddressCharset))
	for _, r := range config.AddressCharset {
		m[r] = true
	}
	return m
}

// Parse validates s against the prefix allowlist and charset/length rules,
// returning the decomposed address or InvalidAddress.
func Parse(s string) (*Parsed, error) {
	idx := strings.IndexByte(s, ':')
	if idx <= 0 || idx == len(s)-1 {
		return nil, kerrors.ErrInvalidAddress
	}

	prefix := s[:idx]
	payload := s[idx+1:]

	if !allowedPrefixes[prefix] {
		return nil, kerrors.ErrInvalidAddress
	}

	if len(payload) < config.AddressPayloadMinLen || len(payload) > config.AddressPayloadMaxLen {
		return nil, kerrors.ErrInvalidAddress
	}

	for _, r := range payload {
		if !charsetIndex[r] {
			return nil, kerrors.ErrInvalidAddress
		}
	}

	return &Parsed{Prefix: prefix, Payload: payload, Raw: s}, nil
}

// IsValid reports whether s parses successfully.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Normalize returns the canonical string form of a parsed address. Because
// Parse never alters case or content (the charset is already lowercase-only
// and there is no checksum to recompute), Normalize is idempotent:
// normalize(parse(s)) == s for every s passing IsValid.
func Normalize(p *Parsed) string {
	return p.Prefix + ":" + p.Payload
}

// MatchesNetwork reports whether the address's prefix is the one bound to network n.
func MatchesNetwork(s string, n kaspa.Network) bool {
	p, err := Parse(s)
	if err != nil {
		return false
	}
	return p.Prefix == n.AddressPrefix()
}

// ValidateForNetwork parses s and additionally requires the prefix to match n,
// returning NetworkMismatch when the address is well-formed but for another network.
func ValidateForNetwork(s string, n kaspa.Network) (*Parsed, error) {
	p, err := Parse(s)
	if err != nil {
		return nil, err
	}
	if p.Prefix != n.AddressPrefix() {
		return nil, kerrors.ErrNetworkMismatch
	}
	return p, nil
}
