// Package amount converts the raw, format-varying amounts reported by
// ledger explorers into one canonical fixed-point representation.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// CanonicalPlaces is the fractional precision every normalized amount is
// rounded to. All downstream comparisons operate at this precision.
const CanonicalPlaces = 6

// Normalize converts a raw explorer amount into a canonical decimal.
// Three encodings are recognized by shape:
//   - a string containing a decimal point ("12.34") is taken at face value
//   - a 0x-prefixed string is an unscaled hexadecimal integer
//   - a pure-digit string is an unscaled integer
//
// Unscaled values are divided by 10^decimals. Anything else is an error;
// callers log and skip the transfer rather than abort the cycle.
func Normalize(raw string, decimals int32) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	if decimals < 0 {
		return decimal.Zero, fmt.Errorf("negative decimal places: %d", decimals)
	}

	var value decimal.Decimal

	switch {
	case strings.Contains(raw, "."):
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("malformed decimal amount %q: %w", raw, err)
		}
		value = d

	case strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X"):
		n, ok := new(big.Int).SetString(raw[2:], 16)
		if !ok {
			return decimal.Zero, fmt.Errorf("malformed hex amount %q", raw)
		}
		value = decimal.NewFromBigInt(n, -decimals)

	case isDigits(raw):
		n, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return decimal.Zero, fmt.Errorf("malformed integer amount %q", raw)
		}
		value = decimal.NewFromBigInt(n, -decimals)

	default:
		return decimal.Zero, fmt.Errorf("unrecognized amount encoding %q", raw)
	}

	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %q", raw)
	}

	return value.Round(CanonicalPlaces), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
