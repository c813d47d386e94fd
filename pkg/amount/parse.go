package amount

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseResult classifies the outcome of parsing a user-entered amount string.
// Unparseable and negative inputs are distinct outcomes so callers can decide
// how to surface them instead of collapsing everything into a boolean.
type ParseResult int

const (
	ParseOK ParseResult = iota
	ParseInvalid
	ParseNegative
)

// Accepts plain decimal notation only; scientific notation and a leading
// plus sign are rejected.
var amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// Parse converts a human-entered amount string into an atomic Amount at the
// given scale. Digits beyond the scale are truncated, matching how amounts
// are entered against a token with fixed decimals.
func Parse(s string, decimals uint8) (Amount, ParseResult) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		if amountPattern.MatchString(s[1:]) {
			return Amount{}, ParseNegative
		}
		return Amount{}, ParseInvalid
	}
	if !amountPattern.MatchString(s) {
		return Amount{}, ParseInvalid
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ParseInvalid
	}
	atomic := d.Shift(int32(decimals)).Truncate(0)
	return Amount{Value: atomic.BigInt(), Decimals: decimals}, ParseOK
}

// Format renders an atomic amount as a human-readable decimal string.
func Format(a Amount) string {
	return decimal.NewFromBigInt(a.value(), -int32(a.Decimals)).String()
}

// FormatBig renders a bare big.Int at the given scale.
func FormatBig(v *big.Int, decimals uint8) string {
	return Format(Amount{Value: v, Decimals: decimals})
}
