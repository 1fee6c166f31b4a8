package ledger

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Decode helpers for gateway values. The gateway hands back whatever the
// script produced: numbers arrive as uint64, float64, json.Number or
// decimal strings depending on the transport, optionals may be nil, and
// field maps may omit keys entirely. Every helper tolerates the shapes
// observed in the wild and falls back to a zero value instead of failing,
// keeping the read paths total over their inputs.

// AsString converts v to a string, or "" if it is nil or not string-like.
func AsString(v Value) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return ""
	}
}

// AsBool converts v to a bool. String encodings of truth are accepted
// because some script responses stringify every leaf.
func AsBool(v Value) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	default:
		return false
	}
}

// AsUint64 converts v to a uint64, or 0 if it cannot be represented.
func AsUint64(v Value) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case uint32:
		return uint64(n)
	case int:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case int64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case float64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return 0
		}
		return u
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0
		}
		return u
	default:
		return 0
	}
}

// AsUint32 converts v to a uint32, or 0 if it cannot be represented.
func AsUint32(v Value) uint32 {
	u := AsUint64(v)
	if u > uint64(^uint32(0)) {
		return 0
	}
	return uint32(u)
}

// AsDecimal converts v to a decimal, or zero. Fixed-point balances come
// back as strings ("12.50000000"); never parse them through float64.
func AsDecimal(v Value) decimal.Decimal {
	switch d := v.(type) {
	case string:
		dec, err := decimal.NewFromString(d)
		if err != nil {
			return decimal.Zero
		}
		return dec
	case json.Number:
		dec, err := decimal.NewFromString(d.String())
		if err != nil {
			return decimal.Zero
		}
		return dec
	case float64:
		return decimal.NewFromFloat(d)
	default:
		return decimal.Zero
	}
}

// AsSlice converts v to a []Value, or nil.
func AsSlice(v Value) []Value {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

// AsMap converts v to a field map, or nil.
func AsMap(v Value) map[string]Value {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// Field extracts a named field from a map-shaped value, or nil when the
// value is not a map or the key is absent.
func Field(v Value, key string) Value {
	m := AsMap(v)
	if m == nil {
		return nil
	}
	return m[key]
}
