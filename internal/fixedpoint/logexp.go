package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/balancer/backend-sub000/internal/common"
)

// Natural exponentiation and logarithm over signed 18-decimal values, computed
// the way the vault's LogExpMath library does it: a decomposition into
// precomputed powers of e followed by a truncated Taylor series. Intermediate
// values need more than 256 bits of signed range so they live in math/big.

var (
	ErrXOutOfBounds       = fmt.Errorf("%w: pow base out of bounds", common.ErrInvalidSwap)
	ErrYOutOfBounds       = fmt.Errorf("%w: pow exponent out of bounds", common.ErrInvalidSwap)
	ErrProductOutOfBounds = fmt.Errorf("%w: pow product out of bounds", common.ErrInvalidSwap)
	ErrInvalidExponent    = fmt.Errorf("%w: exp argument out of bounds", common.ErrInvalidSwap)
	ErrOutOfBounds        = fmt.Errorf("%w: ln argument out of bounds", common.ErrInvalidSwap)
)

func bigFromString(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("fixedpoint: bad constant " + s)
	}
	return v
}

var (
	one18 = big.NewInt(1e18)
	one20 = bigFromString("100000000000000000000")
	one36 = bigFromString("1000000000000000000000000000000000000")

	maxNaturalExponent = bigFromString("130000000000000000000")
	minNaturalExponent = bigFromString("-41000000000000000000")

	ln36LowerBound = bigFromString("900000000000000000")
	ln36UpperBound = bigFromString("1100000000000000000")

	// 2^254 / 1e20
	mildExponentBound = new(big.Int).Quo(new(big.Int).Lsh(big.NewInt(1), 254), one20)

	bigZero    = big.NewInt(0)
	bigOne     = big.NewInt(1)
	bigTwo     = big.NewInt(2)
	bigHundred = big.NewInt(100)

	// 18 decimal constants
	x0 = bigFromString("128000000000000000000")
	a0 = bigFromString("38877084059945950922200000000000000000000000000000000000")
	x1 = bigFromString("64000000000000000000")
	a1 = bigFromString("6235149080811616882910000000")

	// 20 decimal constants
	x2  = bigFromString("3200000000000000000000")
	a2  = bigFromString("7896296018268069516100000000000000")
	x3  = bigFromString("1600000000000000000000")
	a3  = bigFromString("888611052050787263676000000")
	x4  = bigFromString("800000000000000000000")
	a4  = bigFromString("298095798704172827474000")
	x5  = bigFromString("400000000000000000000")
	a5  = bigFromString("5459815003314423907810")
	x6  = bigFromString("200000000000000000000")
	a6  = bigFromString("738905609893065022723")
	x7  = bigFromString("100000000000000000000")
	a7  = bigFromString("271828182845904523536")
	x8  = bigFromString("50000000000000000000")
	a8  = bigFromString("164872127070012814685")
	x9  = bigFromString("25000000000000000000")
	a9  = bigFromString("128402541668774148407")
	x10 = bigFromString("12500000000000000000")
	a10 = bigFromString("113314845306682631683")
	x11 = bigFromString("6250000000000000000")
	a11 = bigFromString("106449445891785942956")
)

// Pow returns x^y for 18-decimal x and y.
func Pow(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return new(uint256.Int).Set(One), nil
	}
	if x.IsZero() {
		return new(uint256.Int), nil
	}

	xBig := x.ToBig()
	if xBig.Bit(255) != 0 {
		return nil, ErrXOutOfBounds
	}
	yBig := y.ToBig()
	if yBig.Cmp(mildExponentBound) >= 0 {
		return nil, ErrYOutOfBounds
	}

	var logxTimesY *big.Int
	if ln36LowerBound.Cmp(xBig) < 0 && xBig.Cmp(ln36UpperBound) < 0 {
		ln36X := ln36(xBig)
		// ln36X has 36 decimals; split it so the product with y keeps precision
		hi := new(big.Int).Quo(ln36X, one18)
		hi.Mul(hi, yBig)
		lo := new(big.Int).Rem(ln36X, one18)
		lo.Mul(lo, yBig)
		lo.Quo(lo, one18)
		logxTimesY = hi.Add(hi, lo)
	} else {
		lnX, err := Ln(xBig)
		if err != nil {
			return nil, err
		}
		logxTimesY = lnX.Mul(lnX, yBig)
	}
	logxTimesY.Quo(logxTimesY, one18)

	if logxTimesY.Cmp(minNaturalExponent) < 0 || logxTimesY.Cmp(maxNaturalExponent) > 0 {
		return nil, ErrProductOutOfBounds
	}

	result, err := Exp(logxTimesY)
	if err != nil {
		return nil, err
	}
	out, overflow := uint256.FromBig(result)
	if overflow {
		return nil, ErrMulOverflow
	}
	return out, nil
}

// Exp returns e^x for signed 18-decimal x.
func Exp(x *big.Int) (*big.Int, error) {
	if x.Cmp(minNaturalExponent) < 0 || x.Cmp(maxNaturalExponent) > 0 {
		return nil, ErrInvalidExponent
	}

	if x.Sign() < 0 {
		// e^(-x) = 1/e^x
		inv, err := Exp(new(big.Int).Neg(x))
		if err != nil {
			return nil, err
		}
		num := new(big.Int).Mul(one18, one18)
		return num.Quo(num, inv), nil
	}

	x = new(big.Int).Set(x)
	var firstAN *big.Int
	switch {
	case x.Cmp(x0) >= 0:
		x.Sub(x, x0)
		firstAN = a0
	case x.Cmp(x1) >= 0:
		x.Sub(x, x1)
		firstAN = a1
	default:
		firstAN = bigOne
	}

	// switch to 20 decimals for higher precision
	x.Mul(x, bigHundred)

	product := new(big.Int).Set(one20)
	for _, step := range [...]struct{ x, a *big.Int }{
		{x2, a2}, {x3, a3}, {x4, a4}, {x5, a5}, {x6, a6}, {x7, a7}, {x8, a8}, {x9, a9},
	} {
		if x.Cmp(step.x) >= 0 {
			x.Sub(x, step.x)
			product.Mul(product, step.a)
			product.Quo(product, one20)
		}
	}

	seriesSum := new(big.Int).Set(one20)
	term := new(big.Int).Set(x)
	seriesSum.Add(seriesSum, term)
	for i := int64(2); i <= 12; i++ {
		term.Mul(term, x)
		term.Quo(term, one20)
		term.Quo(term, big.NewInt(i))
		seriesSum.Add(seriesSum, term)
	}

	result := product.Mul(product, seriesSum)
	result.Quo(result, one20)
	result.Mul(result, firstAN)
	return result.Quo(result, bigHundred), nil
}

// Ln returns the natural logarithm of a positive 18-decimal value.
func Ln(a *big.Int) (*big.Int, error) {
	if a.Sign() <= 0 {
		return nil, ErrOutOfBounds
	}
	if ln36LowerBound.Cmp(a) < 0 && a.Cmp(ln36UpperBound) < 0 {
		return new(big.Int).Quo(ln36(a), one18), nil
	}
	return ln(a), nil
}

func ln(a *big.Int) *big.Int {
	if a.Cmp(one18) < 0 {
		// ln(a) = -ln(1/a)
		inv := new(big.Int).Mul(one18, one18)
		inv.Quo(inv, a)
		return new(big.Int).Neg(ln(inv))
	}

	a = new(big.Int).Set(a)
	sum := new(big.Int)
	if a.Cmp(new(big.Int).Mul(a0, one18)) >= 0 {
		a.Quo(a, a0)
		sum.Add(sum, x0)
	}
	if a.Cmp(new(big.Int).Mul(a1, one18)) >= 0 {
		a.Quo(a, a1)
		sum.Add(sum, x1)
	}

	sum.Mul(sum, bigHundred)
	a.Mul(a, bigHundred)

	for _, step := range [...]struct{ x, a *big.Int }{
		{x2, a2}, {x3, a3}, {x4, a4}, {x5, a5}, {x6, a6},
		{x7, a7}, {x8, a8}, {x9, a9}, {x10, a10}, {x11, a11},
	} {
		if a.Cmp(step.a) >= 0 {
			a.Mul(a, one20)
			a.Quo(a, step.a)
			sum.Add(sum, step.x)
		}
	}

	// z = (a-1)/(a+1), ln(a) = 2 * (z + z^3/3 + z^5/5 + ...)
	num := new(big.Int).Sub(a, one20)
	num.Mul(num, one20)
	z := num.Quo(num, new(big.Int).Add(a, one20))
	zSquared := new(big.Int).Mul(z, z)
	zSquared.Quo(zSquared, one20)

	term := new(big.Int).Set(z)
	seriesSum := new(big.Int).Set(term)
	for _, d := range []int64{3, 5, 7, 9, 11} {
		term.Mul(term, zSquared)
		term.Quo(term, one20)
		seriesSum.Add(seriesSum, new(big.Int).Quo(term, big.NewInt(d)))
	}
	seriesSum.Mul(seriesSum, bigTwo)

	sum.Add(sum, seriesSum)
	return sum.Quo(sum, bigHundred)
}

// ln36 returns ln(x) with 36 decimals of precision for x close to one.
func ln36(x *big.Int) *big.Int {
	x = new(big.Int).Mul(x, one18)

	num := new(big.Int).Sub(x, one36)
	num.Mul(num, one36)
	z := num.Quo(num, new(big.Int).Add(x, one36))
	zSquared := new(big.Int).Mul(z, z)
	zSquared.Quo(zSquared, one36)

	term := new(big.Int).Set(z)
	seriesSum := new(big.Int).Set(term)
	for _, d := range []int64{3, 5, 7, 9, 11, 13, 15} {
		term.Mul(term, zSquared)
		term.Quo(term, one36)
		seriesSum.Add(seriesSum, new(big.Int).Quo(term, big.NewInt(d)))
	}
	return seriesSum.Mul(seriesSum, bigTwo)
}
