package pools

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
)

type pairCase struct {
	name     string
	rec      *domain.PoolRecord
	in, out  int
	amountIn string
}

func pairCases() []pairCase {
	return []pairCase{
		{"weighted", weightedRecord("10000000000000000", e18(169), e18(144)), 0, 1, e18(1)},
		{"stable", stableRecord("200", "400000000000000", e18(100), e18(100)), 0, 1, e18(1)},
		{"composable", composableRecord(), 2, 1, "1000000"},
		{"gyro2", gyro2Record(), 0, 1, e18(10)},
		{"gyro3", gyro3Record(), 0, 2, e18(10)},
		{"gyroE", gyroERecord(), 1, 0, e18(10)},
		{"fx", fxRecord(), 0, 1, "10000000"},
	}
}

func TestLimitEnforcement(t *testing.T) {
	for _, tc := range pairCases() {
		for _, kind := range []domain.SwapKind{domain.GivenIn, domain.GivenOut} {
			t.Run(tc.name+"/"+kind.String(), func(t *testing.T) {
				p := mustPool(t, tc.rec)
				tIn, tOut := tok(tc.rec, tc.in), tok(tc.rec, tc.out)
				given := tIn
				swap := p.SwapGivenIn
				if kind == domain.GivenOut {
					given = tOut
					swap = p.SwapGivenOut
				}

				limit, err := p.LimitAmount(tIn, tOut, kind)
				require.NoError(t, err)
				require.True(t, limit.Gt(uint256.NewInt(1)), "limit %s", limit.Dec())

				above := new(uint256.Int).AddUint64(limit, 1)
				_, err = swap(tIn, tOut, domain.NewTokenAmount(given, above), false)
				require.ErrorIs(t, err, cmn.ErrSwapLimitExceeded)

				below := new(uint256.Int).SubUint64(limit, 1)
				res, err := swap(tIn, tOut, domain.NewTokenAmount(given, below), false)
				require.NoError(t, err)
				require.False(t, res.IsZero())
			})
		}
	}
}

// FX exact-out charges epsilon on the input the way the contract does, which
// leaves a round trip epsilon squared short, so it is not covered here.
func TestRoundTripNeverFavoursTrader(t *testing.T) {
	for _, tc := range pairCases() {
		if tc.rec.Type == domain.PoolTypeFx {
			continue
		}
		t.Run(tc.name, func(t *testing.T) {
			p := mustPool(t, tc.rec)
			tIn, tOut := tok(tc.rec, tc.in), tok(tc.rec, tc.out)

			out, err := p.SwapGivenIn(tIn, tOut, amount(tIn, tc.amountIn), false)
			require.NoError(t, err)
			require.False(t, out.IsZero())

			back, err := p.SwapGivenOut(tIn, tOut, out, false)
			require.NoError(t, err)
			require.True(t, back.Token.IsSame(tIn))
			require.GreaterOrEqual(t, back.Amount.Cmp(uint256.MustFromDecimal(tc.amountIn)), 0,
				"round trip %s < %s", back.Amount.Dec(), tc.amountIn)
		})
	}
}

func TestPricingWithoutMutationIsPure(t *testing.T) {
	for _, tc := range pairCases() {
		t.Run(tc.name, func(t *testing.T) {
			p := mustPool(t, tc.rec)
			tIn, tOut := tok(tc.rec, tc.in), tok(tc.rec, tc.out)

			first, err := p.SwapGivenIn(tIn, tOut, amount(tIn, tc.amountIn), false)
			require.NoError(t, err)
			second, err := p.SwapGivenIn(tIn, tOut, amount(tIn, tc.amountIn), false)
			require.NoError(t, err)
			require.Equal(t, first.Amount.Dec(), second.Amount.Dec())
		})
	}
}

func TestCloneIsolatesMutation(t *testing.T) {
	for _, tc := range pairCases() {
		t.Run(tc.name, func(t *testing.T) {
			p := mustPool(t, tc.rec)
			tIn, tOut := tok(tc.rec, tc.in), tok(tc.rec, tc.out)

			before, err := p.SwapGivenIn(tIn, tOut, amount(tIn, tc.amountIn), false)
			require.NoError(t, err)

			c := p.Clone()
			committed, err := c.SwapGivenIn(tIn, tOut, amount(tIn, tc.amountIn), true)
			require.NoError(t, err)
			require.Equal(t, before.Amount.Dec(), committed.Amount.Dec())

			// the clone moved along the curve, the original did not
			again, err := c.SwapGivenIn(tIn, tOut, amount(tIn, tc.amountIn), false)
			require.NoError(t, err)
			require.False(t, again.Amount.Gt(before.Amount))

			cloneLimit, err := c.LimitAmount(tIn, tOut, domain.GivenIn)
			require.NoError(t, err)
			origLimit, err := p.LimitAmount(tIn, tOut, domain.GivenIn)
			require.NoError(t, err)
			require.NotEqual(t, origLimit.Dec(), cloneLimit.Dec())

			orig, err := p.SwapGivenIn(tIn, tOut, amount(tIn, tc.amountIn), false)
			require.NoError(t, err)
			require.Equal(t, before.Amount.Dec(), orig.Amount.Dec())
		})
	}
}

func TestUnknownTokens(t *testing.T) {
	for _, tc := range pairCases() {
		t.Run(tc.name, func(t *testing.T) {
			p := mustPool(t, tc.rec)
			stranger := domain.NewToken(chainID, addr(999_999), 18)
			tIn := tok(tc.rec, tc.in)

			_, err := p.SwapGivenIn(tIn, stranger, amount(tIn, tc.amountIn), false)
			require.ErrorIs(t, err, cmn.ErrTokenNotInPool)
			_, err = p.LimitAmount(stranger, tIn, domain.GivenIn)
			require.ErrorIs(t, err, cmn.ErrTokenNotInPool)
		})
	}
}

func TestFeeMonotonicity(t *testing.T) {
	fees := []string{"0", "1000000000000000", "10000000000000000", "50000000000000000"}
	withFee := func(mk func() *domain.PoolRecord) func(string) *domain.PoolRecord {
		return func(fee string) *domain.PoolRecord {
			rec := mk()
			rec.SwapFee = fee
			return rec
		}
	}
	tests := []struct {
		name    string
		build   func(fee string) *domain.PoolRecord
		in, out int
		amt     string
	}{
		{"weighted", func(fee string) *domain.PoolRecord { return weightedRecord(fee, e18(169), e18(144)) }, 0, 1, e18(1)},
		{"stable", func(fee string) *domain.PoolRecord { return stableRecord("200", fee, e18(100), e18(100)) }, 0, 1, e18(1)},
		{"composable stable", withFee(composableRecord), 1, 2, e18(1)},
		{"gyro2", withFee(gyro2Record), 0, 1, e18(1)},
		{"gyro3", withFee(gyro3Record), 0, 1, e18(1)},
		{"gyroE", withFee(gyroERecord), 0, 1, e18(1)},
		// epsilon is the fx trading fee
		{"fx", func(fee string) *domain.PoolRecord {
			rec := fxRecord()
			rec.Fx.Epsilon = fee
			return rec
		}, 0, 1, "1000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prev *uint256.Int
			for _, fee := range fees {
				rec := tt.build(fee)
				p := mustPool(t, rec)
				out, err := p.SwapGivenIn(tok(rec, tt.in), tok(rec, tt.out), amount(tok(rec, tt.in), tt.amt), false)
				require.NoError(t, err)
				if prev != nil {
					require.True(t, out.Amount.Lt(prev), "fee %s: %s !< %s", fee, out.Amount.Dec(), prev.Dec())
				}
				prev = out.Amount
			}
		})
	}
}

func TestSameTokenRejected(t *testing.T) {
	rec := stableRecord("200", "0", e18(100), e18(100))
	p := mustPool(t, rec)
	a := tok(rec, 0)
	_, err := p.SwapGivenIn(a, a, amount(a, e18(1)), false)
	require.ErrorIs(t, err, cmn.ErrInvalidSwap)
}

func TestWrongAmountToken(t *testing.T) {
	rec := weightedRecord("0", e18(100), e18(100))
	p := mustPool(t, rec)
	_, err := p.SwapGivenIn(tok(rec, 0), tok(rec, 1), amount(tok(rec, 1), e18(1)), false)
	require.ErrorIs(t, err, cmn.ErrInvalidSwap)
}
