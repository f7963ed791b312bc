package fixedpoint

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/balancer/backend-sub000/internal/common"
)

func u(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

func TestRoundingDirections(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		mulDown string
		mulUp   string
		divDown string
		divUp   string
	}{
		{"exact", "2000000000000000000", "3000000000000000000", "6000000000000000000", "6000000000000000000", "666666666666666666", "666666666666666667"},
		{"tiny product", "1", "1", "0", "1", "1000000000000000000", "1000000000000000000"},
		{"thirds", "1000000000000000000", "3", "3", "3", "333333333333333333333333333333333333", "333333333333333333333333333333333334"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := u(tt.a), u(tt.b)

			got, err := MulDown(a, b)
			require.NoError(t, err)
			require.Equal(t, tt.mulDown, got.Dec())

			got, err = MulUp(a, b)
			require.NoError(t, err)
			require.Equal(t, tt.mulUp, got.Dec())

			got, err = DivDown(a, b)
			require.NoError(t, err)
			require.Equal(t, tt.divDown, got.Dec())

			got, err = DivUp(a, b)
			require.NoError(t, err)
			require.Equal(t, tt.divUp, got.Dec())
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	_, err := DivDown(One, new(uint256.Int))
	require.True(t, errors.Is(err, common.ErrDivisionByZero))

	_, err = DivUp(One, new(uint256.Int))
	require.True(t, errors.Is(err, common.ErrDivisionByZero))

	_, err = DivRawUp(One, new(uint256.Int))
	require.True(t, errors.Is(err, common.ErrDivisionByZero))
}

func TestOverflowIsInvalidSwap(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	_, err := MulDown(max, Two)
	require.True(t, errors.Is(err, common.ErrInvalidSwap))

	_, err = Sub(One, Two)
	require.True(t, errors.Is(err, common.ErrInvalidSwap))
}

func TestComplement(t *testing.T) {
	require.Equal(t, "700000000000000000", Complement(u("300000000000000000")).Dec())
	require.True(t, Complement(One).IsZero())
	require.True(t, Complement(Two).IsZero())
}

func requireClose(t *testing.T, want, got *big.Int, tolerance int64) {
	t.Helper()
	diff := new(big.Int).Sub(want, got)
	require.LessOrEqualf(t, diff.Abs(diff).Int64(), tolerance, "want %s got %s", want, got)
}

func TestExpLn(t *testing.T) {
	e, err := Exp(big.NewInt(1e18))
	require.NoError(t, err)
	requireClose(t, bigFromString("2718281828459045235"), e, 100)

	inv, err := Exp(big.NewInt(-1e18))
	require.NoError(t, err)
	requireClose(t, bigFromString("367879441171442321"), inv, 100)

	l, err := Ln(bigFromString("2718281828459045235"))
	require.NoError(t, err)
	requireClose(t, big.NewInt(1e18), l, 100)

	// close to one the 36 decimal series is used
	l, err = Ln(bigFromString("1050000000000000000"))
	require.NoError(t, err)
	requireClose(t, bigFromString("48790164169432003"), l, 10)

	_, err = Exp(bigFromString("131000000000000000000"))
	require.True(t, errors.Is(err, common.ErrInvalidSwap))
}

func TestPowVersions(t *testing.T) {
	sqrt2, err := Pow(Two, u("500000000000000000"))
	require.NoError(t, err)
	requireClose(t, bigFromString("1414213562373095048"), sqrt2.ToBig(), 10000)

	x := u("1234500000000000000")

	// v2 computes small integer exponents exactly
	down, err := PowDown(x, Two, PowV2)
	require.NoError(t, err)
	exact, _ := MulDown(x, x)
	require.Equal(t, exact.Dec(), down.Dec())

	// v1 always applies the error margin, so it brackets the exact value
	downV1, err := PowDown(x, Two, PowV1)
	require.NoError(t, err)
	upV1, err := PowUp(x, Two, PowV1)
	require.NoError(t, err)
	require.True(t, downV1.Lt(exact))
	require.True(t, upV1.Gt(exact))

	one, err := PowUp(x, One, PowV2)
	require.NoError(t, err)
	require.Equal(t, x.Dec(), one.Dec())
}

func TestSignedHelpers(t *testing.T) {
	three := big.NewInt(3)
	one := big.NewInt(1)

	require.Equal(t, int64(0), MulDownMag(new(big.Int).Neg(three), one).Int64())
	require.Equal(t, int64(-1), MulUpMag(new(big.Int).Neg(three), one).Int64())
	require.Equal(t, int64(1), MulUpMag(three, one).Int64())

	require.Equal(t, "-333333333333333333333333333333333334", DivUpMag(big.NewInt(-1e18), three).String())
	require.Equal(t, int64(1e18), MulDownXpToNp(big.NewInt(1e18), OneXp).Int64())
	require.Equal(t, int64(1e18), MulUpXpToNp(big.NewInt(1e18), OneXp).Int64())

	// negative products round toward -inf (down) and +inf (up)
	negTiny := big.NewInt(-1)
	require.Equal(t, int64(-1), MulDownXpToNp(negTiny, big.NewInt(1)).Int64())
	require.Equal(t, int64(0), MulUpXpToNp(negTiny, big.NewInt(1)).Int64())
}

func TestSqrt(t *testing.T) {
	got, err := Sqrt(u("4000000000000000000"))
	require.NoError(t, err)
	require.Equal(t, "2000000000000000000", got.Dec())

	got, err = Sqrt(Two)
	require.NoError(t, err)
	require.Equal(t, "1414213562373095048", got.Dec())

	require.Equal(t, int64(0), SqrtSigned(big.NewInt(-5)).Int64())
}
