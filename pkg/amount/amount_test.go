package amount

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNormalizesToLargerScale(t *testing.T) {
	a := FromInt64(1_000_000, 6)  // 1.0 @ 6
	b := FromInt64(2_000_000_000_000_000_000, 18) // 2.0 @ 18

	sum := Add(a, b)
	assert.Equal(t, uint8(18), sum.Decimals)
	assert.Equal(t, "3000000000000000000", sum.Value.String())

	// Commutative under normalization.
	sum2 := Add(b, a)
	assert.Zero(t, Cmp(sum, sum2))
}

func TestAddAssociative(t *testing.T) {
	a := FromInt64(1, 0)
	b := FromInt64(500_000, 6)
	c := FromInt64(250_000_000, 9)

	left := Add(Add(a, b), c)
	right := Add(a, Add(b, c))
	assert.Zero(t, Cmp(left, right))
}

func TestSubNormalizes(t *testing.T) {
	a := FromInt64(3_000_000, 6)
	b := FromInt64(1_000_000_000, 9)

	diff := Sub(a, b)
	assert.Equal(t, uint8(9), diff.Decimals)
	assert.Equal(t, "2000000000", diff.Value.String())
}

func TestCmpScaleAware(t *testing.T) {
	// 1.0 @ 6 decimals == 1.0 @ 18 decimals.
	a := FromInt64(1_000_000, 6)
	b := FromInt64(1_000_000_000_000_000_000, 18)
	assert.Zero(t, Cmp(a, b))

	assert.Equal(t, -1, Cmp(FromInt64(999_999, 6), b))
	assert.Equal(t, 1, Cmp(FromInt64(1_000_001, 6), b))
}

func TestFloorTo(t *testing.T) {
	// 1.5 @ 1 decimal down to whole units drops the remainder.
	a := FromInt64(15, 1)
	floored, exact := a.FloorTo(0)
	assert.False(t, exact)
	assert.Equal(t, int64(1), floored.Value.Int64())

	// Up-scaling is always exact.
	up, exact := FromInt64(7, 2).FloorTo(6)
	assert.True(t, exact)
	assert.Equal(t, int64(70_000), up.Value.Int64())
}

func TestParse(t *testing.T) {
	a, res := Parse("100.000001", 6)
	require.Equal(t, ParseOK, res)
	assert.Equal(t, "100000001", a.Value.String())

	a, res = Parse("0.5", 18)
	require.Equal(t, ParseOK, res)
	assert.Equal(t, "500000000000000000", a.Value.String())

	// Digits beyond the scale are truncated.
	a, res = Parse("1.0000005", 6)
	require.Equal(t, ParseOK, res)
	assert.Equal(t, "1000000", a.Value.String())

	_, res = Parse("abc", 6)
	assert.Equal(t, ParseInvalid, res)
	_, res = Parse("1e6", 6)
	assert.Equal(t, ParseInvalid, res)
	_, res = Parse("+5", 6)
	assert.Equal(t, ParseInvalid, res)
	_, res = Parse("", 6)
	assert.Equal(t, ParseInvalid, res)

	// Negative is a distinct outcome, not merely invalid.
	_, res = Parse("-5", 6)
	assert.Equal(t, ParseNegative, res)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "100.000001", Format(FromInt64(100_000_001, 6)))
	assert.Equal(t, "0.1", Format(FromInt64(100_000, 6)))
	assert.Equal(t, "42", Format(FromInt64(42, 0)))
	assert.Equal(t, "1.5", FormatBig(big.NewInt(1_500_000_000), 9))
}

func TestMinMax(t *testing.T) {
	a := FromInt64(2_000_000, 6)
	b := FromInt64(1_000_000_000, 9)

	assert.Zero(t, Cmp(Min(a, b), b))
	assert.Zero(t, Cmp(Max(a, b), a))
}
