package value

import (
	"fmt"
	"math/big"
)

// DecimalRat parses a Decimal value's source text into a *big.Rat,
// preserving arbitrary precision instead of rounding through float64.
func DecimalRat(v Value) (*big.Rat, error) {
	if v.kind != KindDecimal {
		return nil, fmt.Errorf("value: %s is not a Decimal", v.kind)
	}
	r := new(big.Rat)
	if _, ok := r.SetString(v.s); !ok {
		return nil, fmt.Errorf("value: %q is not a valid decimal literal", v.s)
	}
	return r, nil
}

// DecimalAdd returns a new Decimal value holding the sum of a and b,
// computed exactly via math/big.
func DecimalAdd(a, b Value) (Value, error) {
	ra, err := DecimalRat(a)
	if err != nil {
		return Value{}, err
	}
	rb, err := DecimalRat(b)
	if err != nil {
		return Value{}, err
	}
	sum := new(big.Rat).Add(ra, rb)
	return Decimal(sum.RatString()), nil
}

// DecimalMul returns a new Decimal value holding the product of a and b.
func DecimalMul(a, b Value) (Value, error) {
	ra, err := DecimalRat(a)
	if err != nil {
		return Value{}, err
	}
	rb, err := DecimalRat(b)
	if err != nil {
		return Value{}, err
	}
	prod := new(big.Rat).Mul(ra, rb)
	return Decimal(prod.RatString()), nil
}
