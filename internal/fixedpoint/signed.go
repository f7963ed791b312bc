package fixedpoint

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Signed fixed-point helpers used by the Gyro pool family. Values carry either
// 18 decimals ("Np", normal precision) or 38 decimals ("Xp", extra precision).
// "Mag" variants round the magnitude, so Down moves toward zero and Up away
// from it. Divisors are validated by the pools that call these, so none of
// the helpers checks for zero.

var (
	OneXp = bigFromString("100000000000000000000000000000000000000")
	one19 = bigFromString("10000000000000000000")
)

// SignedOne returns a fresh 1e18.
func SignedOne() *big.Int { return new(big.Int).Set(one18) }

func MulDownMag(a, b *big.Int) *big.Int {
	z := new(big.Int).Mul(a, b)
	return z.Quo(z, one18)
}

func MulUpMag(a, b *big.Int) *big.Int {
	z := new(big.Int).Mul(a, b)
	switch z.Sign() {
	case 1:
		z.Sub(z, bigOne).Quo(z, one18).Add(z, bigOne)
	case -1:
		z.Add(z, bigOne).Quo(z, one18).Sub(z, bigOne)
	}
	return z
}

func DivDownMag(a, b *big.Int) *big.Int {
	z := new(big.Int).Mul(a, one18)
	return z.Quo(z, b)
}

func DivUpMag(a, b *big.Int) *big.Int {
	if a.Sign() == 0 {
		return new(big.Int)
	}
	num := new(big.Int).Set(a)
	den := new(big.Int).Set(b)
	if den.Sign() < 0 {
		num.Neg(num)
		den.Neg(den)
	}
	num.Mul(num, one18)
	if num.Sign() > 0 {
		return num.Sub(num, bigOne).Quo(num, den).Add(num, bigOne)
	}
	return num.Add(num, bigOne).Quo(num, den).Sub(num, bigOne)
}

// MulXp multiplies two 38-decimal values.
func MulXp(a, b *big.Int) *big.Int {
	z := new(big.Int).Mul(a, b)
	return z.Quo(z, OneXp)
}

// DivXp divides two values returning 38 decimals.
func DivXp(a, b *big.Int) *big.Int {
	if a.Sign() == 0 {
		return new(big.Int)
	}
	z := new(big.Int).Mul(a, OneXp)
	return z.Quo(z, b)
}

// MulDownXpToNp multiplies an 18-decimal a by a 38-decimal b, rounding the
// 18-decimal result toward negative infinity.
func MulDownXpToNp(a, b *big.Int) *big.Int {
	b1 := new(big.Int).Quo(b, one19)
	prod1 := b1.Mul(a, b1)
	b2 := new(big.Int).Rem(b, one19)
	prod2 := b2.Mul(a, b2)

	z := new(big.Int).Quo(prod2, one19)
	z.Add(z, prod1)
	if prod1.Sign() >= 0 && prod2.Sign() >= 0 {
		return z.Quo(z, one19)
	}
	z.Add(z, bigOne).Quo(z, one19)
	return z.Sub(z, bigOne)
}

// MulUpXpToNp is MulDownXpToNp rounding toward positive infinity.
func MulUpXpToNp(a, b *big.Int) *big.Int {
	b1 := new(big.Int).Quo(b, one19)
	prod1 := b1.Mul(a, b1)
	b2 := new(big.Int).Rem(b, one19)
	prod2 := b2.Mul(a, b2)

	z := new(big.Int).Quo(prod2, one19)
	z.Add(z, prod1)
	if prod1.Sign() <= 0 && prod2.Sign() <= 0 {
		return z.Quo(z, one19)
	}
	z.Sub(z, bigOne).Quo(z, one19)
	return z.Add(z, bigOne)
}

// Sqrt returns floor(sqrt(x)) for an 18-decimal x, i.e. isqrt(x * 1e18).
func Sqrt(x *uint256.Int) (*uint256.Int, error) {
	if x.IsZero() {
		return new(uint256.Int), nil
	}
	scaled, err := Mul(x, One)
	if err != nil {
		return nil, err
	}
	return scaled.Sqrt(scaled), nil
}

// SqrtSigned is Sqrt for non-negative big integers; negative input yields zero.
func SqrtSigned(x *big.Int) *big.Int {
	if x.Sign() <= 0 {
		return new(big.Int)
	}
	z := new(big.Int).Mul(x, one18)
	return z.Sqrt(z)
}

// ToSigned converts an unsigned value into math/big.
func ToSigned(x *uint256.Int) *big.Int {
	return x.ToBig()
}

// FromSigned converts a non-negative big integer back to uint256.
func FromSigned(x *big.Int) (*uint256.Int, error) {
	if x.Sign() < 0 {
		return nil, ErrSubOverflow
	}
	z, overflow := uint256.FromBig(x)
	if overflow {
		return nil, ErrAddOverflow
	}
	return z, nil
}
