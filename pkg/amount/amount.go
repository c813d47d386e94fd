package amount

import (
	"fmt"
	"math/big"
)

// Amount is an arbitrary-precision token amount paired with its decimal scale.
// All arithmetic between two amounts with different scales up-scales to the
// larger scale before combining; values are never silently truncated.
type Amount struct {
	Value    *big.Int
	Decimals uint8
}

// New creates an Amount from a big.Int value at the given scale.
// The value is copied, so the caller keeps ownership of v.
func New(v *big.Int, decimals uint8) Amount {
	return Amount{Value: new(big.Int).Set(v), Decimals: decimals}
}

// FromInt64 creates an Amount from an int64 atomic value.
func FromInt64(v int64, decimals uint8) Amount {
	return Amount{Value: big.NewInt(v), Decimals: decimals}
}

// Zero returns a zero amount at the given scale.
func Zero(decimals uint8) Amount {
	return Amount{Value: new(big.Int), Decimals: decimals}
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.Value == nil || a.Value.Sign() == 0
}

// Clone returns an independent copy of the amount.
func (a Amount) Clone() Amount {
	return New(a.value(), a.Decimals)
}

func (a Amount) value() *big.Int {
	if a.Value == nil {
		return new(big.Int)
	}
	return a.Value
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Normalize returns both values expressed at the larger of the two scales.
func Normalize(a, b Amount) (*big.Int, *big.Int, uint8) {
	decimals := a.Decimals
	if b.Decimals > decimals {
		decimals = b.Decimals
	}
	av := new(big.Int).Mul(a.value(), pow10(decimals-a.Decimals))
	bv := new(big.Int).Mul(b.value(), pow10(decimals-b.Decimals))
	return av, bv, decimals
}

// Add returns a+b at the larger of the two scales.
func Add(a, b Amount) Amount {
	av, bv, decimals := Normalize(a, b)
	return Amount{Value: av.Add(av, bv), Decimals: decimals}
}

// Sub returns a-b at the larger of the two scales.
func Sub(a, b Amount) Amount {
	av, bv, decimals := Normalize(a, b)
	return Amount{Value: av.Sub(av, bv), Decimals: decimals}
}

// Cmp compares two amounts regardless of their scales.
// It returns -1 if a < b, 0 if equal, +1 if a > b.
func Cmp(a, b Amount) int {
	av, bv, _ := Normalize(a, b)
	return av.Cmp(bv)
}

// Min returns the smaller of the two amounts, expressed at the common scale.
func Min(a, b Amount) Amount {
	av, bv, decimals := Normalize(a, b)
	if av.Cmp(bv) <= 0 {
		return Amount{Value: av, Decimals: decimals}
	}
	return Amount{Value: bv, Decimals: decimals}
}

// Max returns the larger of the two amounts, expressed at the common scale.
func Max(a, b Amount) Amount {
	av, bv, decimals := Normalize(a, b)
	if av.Cmp(bv) >= 0 {
		return Amount{Value: av, Decimals: decimals}
	}
	return Amount{Value: bv, Decimals: decimals}
}

// FloorTo re-expresses the amount at the target scale, truncating toward zero.
// The boolean result reports whether the conversion was exact; an inexact
// down-scale indicates a dust remainder at the finer scale.
func (a Amount) FloorTo(decimals uint8) (Amount, bool) {
	if decimals >= a.Decimals {
		v := new(big.Int).Mul(a.value(), pow10(decimals-a.Decimals))
		return Amount{Value: v, Decimals: decimals}, true
	}
	q, r := new(big.Int).QuoRem(a.value(), pow10(a.Decimals-decimals), new(big.Int))
	return Amount{Value: q, Decimals: decimals}, r.Sign() == 0
}

// OneAtomic returns the minimal representable unit at the given scale.
func OneAtomic(decimals uint8) Amount {
	return FromInt64(1, decimals)
}

// String renders the amount as a decimal string for diagnostics.
func (a Amount) String() string {
	return fmt.Sprintf("%s@%d", a.value().String(), a.Decimals)
}
