package domain

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

var ErrTokenMismatch = fmt.Errorf("%w: token amounts of different tokens", common.ErrInvalidSwap)

// TokenAmount is a raw on-chain amount of a token together with the same
// value normalised to 18 decimals.
type TokenAmount struct {
	Token   *Token
	Amount  *uint256.Int
	Scale18 *uint256.Int
}

// NewTokenAmount wraps a raw amount. The value is copied.
func NewTokenAmount(token *Token, raw *uint256.Int) *TokenAmount {
	amount := new(uint256.Int).Set(raw)
	return &TokenAmount{
		Token:   token,
		Amount:  amount,
		Scale18: scaleUp(amount, token.Decimals),
	}
}

func NewTokenAmountUint64(token *Token, raw uint64) *TokenAmount {
	return NewTokenAmount(token, uint256.NewInt(raw))
}

// NewTokenAmountFromScale18 converts an 18-decimal value to raw units,
// rounding down.
func NewTokenAmountFromScale18(token *Token, scaled *uint256.Int) *TokenAmount {
	raw := new(uint256.Int).Div(scaled, scalingFactor(token.Decimals))
	return NewTokenAmount(token, raw)
}

// ParseTokenAmount parses a base-10 raw amount.
func ParseTokenAmount(token *Token, raw string) (*TokenAmount, error) {
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return NewTokenAmount(token, amount), nil
}

func ZeroAmount(token *Token) *TokenAmount {
	return NewTokenAmount(token, new(uint256.Int))
}

func (a *TokenAmount) IsZero() bool {
	return a.Amount.IsZero()
}

func (a *TokenAmount) Add(other *TokenAmount) (*TokenAmount, error) {
	if !a.Token.IsSame(other.Token) {
		return nil, ErrTokenMismatch
	}
	sum, err := fixedpoint.Add(a.Amount, other.Amount)
	if err != nil {
		return nil, err
	}
	return NewTokenAmount(a.Token, sum), nil
}

func (a *TokenAmount) Sub(other *TokenAmount) (*TokenAmount, error) {
	if !a.Token.IsSame(other.Token) {
		return nil, ErrTokenMismatch
	}
	diff, err := fixedpoint.Sub(a.Amount, other.Amount)
	if err != nil {
		return nil, err
	}
	return NewTokenAmount(a.Token, diff), nil
}

func (a *TokenAmount) MulDownFixed(x *uint256.Int) (*TokenAmount, error) {
	return a.apply(fixedpoint.MulDown, x)
}

func (a *TokenAmount) MulUpFixed(x *uint256.Int) (*TokenAmount, error) {
	return a.apply(fixedpoint.MulUp, x)
}

func (a *TokenAmount) DivDownFixed(x *uint256.Int) (*TokenAmount, error) {
	return a.apply(fixedpoint.DivDown, x)
}

func (a *TokenAmount) DivUpFixed(x *uint256.Int) (*TokenAmount, error) {
	return a.apply(fixedpoint.DivUp, x)
}

func (a *TokenAmount) apply(op func(x, y *uint256.Int) (*uint256.Int, error), x *uint256.Int) (*TokenAmount, error) {
	raw, err := op(a.Amount, x)
	if err != nil {
		return nil, err
	}
	return NewTokenAmount(a.Token, raw), nil
}

func (a *TokenAmount) Cmp(other *TokenAmount) int {
	return a.Amount.Cmp(other.Amount)
}

func (a *TokenAmount) String() string {
	return a.Amount.Dec() + " " + a.Token.String()
}

// scalingFactor is 10^(18-decimals).
func scalingFactor(decimals uint8) *uint256.Int {
	if decimals >= 18 {
		return uint256.NewInt(1)
	}
	return fixedpoint.Pow10(18 - decimals)
}

func scaleUp(raw *uint256.Int, decimals uint8) *uint256.Int {
	return new(uint256.Int).Mul(raw, scalingFactor(decimals))
}

// DecimalScalingFactor exposes 10^(18-decimals) for pool scaling.
func DecimalScalingFactor(decimals uint8) *uint256.Int {
	return scalingFactor(decimals)
}
