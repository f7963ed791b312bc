// Package fixedpoint implements the 18-decimal fixed-point arithmetic used by
// on-chain AMM pools. Every operation rounds in an explicit direction so that
// off-chain quotes reproduce the contracts to the last unit.
package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/balancer/backend-sub000/internal/common"
)

var (
	ErrMulOverflow = fmt.Errorf("%w: mul overflow", common.ErrInvalidSwap)
	ErrAddOverflow = fmt.Errorf("%w: add overflow", common.ErrInvalidSwap)
	ErrSubOverflow = fmt.Errorf("%w: sub overflow", common.ErrInvalidSwap)
)

var (
	Zero = uint256.NewInt(0)
	One  = uint256.NewInt(1e18)
	Two  = uint256.NewInt(2e18)
	Four = uint256.NewInt(4e18)

	oneRaw = uint256.NewInt(1)
)

// Add returns a+b and fails on 256-bit overflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrAddOverflow
	}
	return z, nil
}

// Sub returns a-b and fails when b > a.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrSubOverflow
	}
	return z, nil
}

// Mul returns the raw product a*b.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrMulOverflow
	}
	return z, nil
}

// MulDown returns a*b/ONE rounded down.
func MulDown(a, b *uint256.Int) (*uint256.Int, error) {
	product, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return product.Div(product, One), nil
}

// MulUp returns a*b/ONE rounded up.
func MulUp(a, b *uint256.Int) (*uint256.Int, error) {
	product, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	if product.IsZero() {
		return product, nil
	}
	product.Sub(product, oneRaw)
	product.Div(product, One)
	return product.Add(product, oneRaw), nil
}

// DivDown returns a*ONE/b rounded down.
func DivDown(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, common.ErrDivisionByZero
	}
	if a.IsZero() {
		return new(uint256.Int), nil
	}
	inflated, err := Mul(a, One)
	if err != nil {
		return nil, err
	}
	return inflated.Div(inflated, b), nil
}

// DivUp returns a*ONE/b rounded up.
func DivUp(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, common.ErrDivisionByZero
	}
	if a.IsZero() {
		return new(uint256.Int), nil
	}
	inflated, err := Mul(a, One)
	if err != nil {
		return nil, err
	}
	inflated.Sub(inflated, oneRaw)
	inflated.Div(inflated, b)
	return inflated.Add(inflated, oneRaw), nil
}

// DivRawUp is plain integer division rounding up (not fixed point).
func DivRawUp(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, common.ErrDivisionByZero
	}
	if a.IsZero() {
		return new(uint256.Int), nil
	}
	z := new(uint256.Int).Sub(a, oneRaw)
	z.Div(z, b)
	return z.Add(z, oneRaw), nil
}

// DivRawDown is plain integer division rounding down.
func DivRawDown(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, common.ErrDivisionByZero
	}
	return new(uint256.Int).Div(a, b), nil
}

// Complement returns ONE-x, or zero when x >= ONE.
func Complement(x *uint256.Int) *uint256.Int {
	if x.Cmp(One) >= 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(One, x)
}

// Pow10 returns 10^n.
func Pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}

// MustFromDecimal parses a base-10 integer literal, panicking on bad input.
// Intended for constants and tests.
func MustFromDecimal(s string) *uint256.Int {
	return uint256.MustFromDecimal(s)
}
