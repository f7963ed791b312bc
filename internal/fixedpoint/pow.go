package fixedpoint

import "github.com/holiman/uint256"

// PowVersion selects which deployed power approximation a pool uses.
type PowVersion uint8

const (
	// PowV1 always goes through LogExpMath and widens by the relative error.
	PowV1 PowVersion = 1
	// PowV2 computes exponents 1, 2 and 4 exactly.
	PowV2 PowVersion = 2
)

// MaxPowRelativeError is 10^-14 in 18-decimal fixed point.
var MaxPowRelativeError = uint256.NewInt(10000)

// PowDown returns a lower bound of x^y.
func PowDown(x, y *uint256.Int, version PowVersion) (*uint256.Int, error) {
	if version != PowV1 {
		if exact, ok, err := powExact(x, y, MulDown); ok || err != nil {
			return exact, err
		}
	}

	raw, maxError, err := powWithError(x, y)
	if err != nil {
		return nil, err
	}
	if raw.Lt(maxError) {
		return new(uint256.Int), nil
	}
	return raw.Sub(raw, maxError), nil
}

// PowUp returns an upper bound of x^y.
func PowUp(x, y *uint256.Int, version PowVersion) (*uint256.Int, error) {
	if version != PowV1 {
		if exact, ok, err := powExact(x, y, MulUp); ok || err != nil {
			return exact, err
		}
	}

	raw, maxError, err := powWithError(x, y)
	if err != nil {
		return nil, err
	}
	return Add(raw, maxError)
}

func powWithError(x, y *uint256.Int) (raw, maxError *uint256.Int, err error) {
	raw, err = Pow(x, y)
	if err != nil {
		return nil, nil, err
	}
	maxError, err = MulUp(raw, MaxPowRelativeError)
	if err != nil {
		return nil, nil, err
	}
	maxError.Add(maxError, oneRaw)
	return raw, maxError, nil
}

func powExact(x, y *uint256.Int, mul func(a, b *uint256.Int) (*uint256.Int, error)) (*uint256.Int, bool, error) {
	switch {
	case y.Eq(One):
		return new(uint256.Int).Set(x), true, nil
	case y.Eq(Two):
		sq, err := mul(x, x)
		return sq, true, err
	case y.Eq(Four):
		sq, err := mul(x, x)
		if err != nil {
			return nil, true, err
		}
		sq, err = mul(sq, sq)
		return sq, true, err
	}
	return nil, false, nil
}
