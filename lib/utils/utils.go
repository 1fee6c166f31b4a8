package utils

import (
	"strings"
)

// Flow addresses are 8 bytes, rendered as 0x-prefixed hex. The gateway is
// inconsistent about casing and the 0x prefix, so every address that
// crosses a boundary goes through NormalizeAddress first.

const addressHexLen = 16

// NormalizeAddress lower-cases an address and ensures the 0x prefix.
// Invalid input is returned unchanged apart from casing, so callers can
// still log the raw value.
func NormalizeAddress(addr string) string {
	a := strings.ToLower(strings.TrimSpace(addr))
	if a == "" {
		return ""
	}
	if !strings.HasPrefix(a, "0x") {
		a = "0x" + a
	}
	return a
}

// IsValidAddress reports whether addr looks like a ledger account address
// after normalization.
func IsValidAddress(addr string) bool {
	a := NormalizeAddress(addr)
	if len(a) != 2+addressHexLen {
		return false
	}
	for _, c := range a[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// SameAddress compares two addresses ignoring case and prefix differences.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}
