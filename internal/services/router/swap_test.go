package router

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
)

func TestNewSwapSingle(t *testing.T) {
	set := newSet(t, pair(1, 1, 2, e18(1000), e18(1000)))
	a, b := token(1), token(2)
	priced, err := PricePath(set, mustPath(t, []int{1, 2}, []int{1}), domain.GivenOut, amount(b, e18(1)), false)
	require.NoError(t, err)

	s, err := NewSwap([]*PathWithAmount{priced}, domain.GivenOut)
	require.NoError(t, err)
	require.False(t, s.IsBatch)
	require.NotNil(t, s.Single)
	require.Equal(t, [32]byte(poolID(1)), s.Single.PoolId)
	require.Equal(t, uint8(domain.GivenOut), s.Single.Kind)
	require.Equal(t, a.Address, s.Single.AssetIn)
	require.Equal(t, b.Address, s.Single.AssetOut)
	require.Equal(t, e18(1), s.Single.Amount.String())
	require.Equal(t, []common.Address{a.Address, b.Address}, s.Assets)
}

func TestNewSwapBatchOrdering(t *testing.T) {
	set := newSet(t, pair(1, 1, 2, e18(1000), e18(1000)), pair(2, 2, 3, e18(1000), e18(1000)))
	a := token(1)
	path := mustPath(t, []int{1, 2, 3}, []int{1, 2})

	in, err := PricePath(set, path, domain.GivenIn, amount(a, e18(5)), false)
	require.NoError(t, err)
	s, err := NewSwap([]*PathWithAmount{in}, domain.GivenIn)
	require.NoError(t, err)
	require.True(t, s.IsBatch)
	require.Equal(t, []common.Address{addr(1), addr(2), addr(3)}, s.Assets)
	require.Len(t, s.Steps, 2)
	require.Equal(t, [32]byte(poolID(1)), s.Steps[0].PoolId)
	require.Equal(t, e18(5), s.Steps[0].Amount.String())
	require.Equal(t, int64(0), s.Steps[0].AssetInIndex.Int64())
	require.Equal(t, int64(1), s.Steps[0].AssetOutIndex.Int64())
	require.Zero(t, s.Steps[1].Amount.Sign())

	out, err := PricePath(set, path, domain.GivenOut, amount(token(3), e18(5)), false)
	require.NoError(t, err)
	s, err = NewSwap([]*PathWithAmount{out}, domain.GivenOut)
	require.NoError(t, err)
	// settled from the output side
	require.Equal(t, [32]byte(poolID(2)), s.Steps[0].PoolId)
	require.Equal(t, e18(5), s.Steps[0].Amount.String())
	require.Equal(t, int64(1), s.Steps[0].AssetInIndex.Int64())
	require.Equal(t, int64(2), s.Steps[0].AssetOutIndex.Int64())
	require.Equal(t, [32]byte(poolID(1)), s.Steps[1].PoolId)
	require.Zero(t, s.Steps[1].Amount.Sign())
}

func TestNewSwapSplitPaths(t *testing.T) {
	set := newSet(t,
		pair(1, 1, 2, e18(1000), e18(1000)),
		pair(2, 1, 3, e18(1000), e18(1000)),
		pair(3, 3, 2, e18(1000), e18(1000)),
	)
	a := token(1)
	direct, err := PricePath(set, mustPath(t, []int{1, 2}, []int{1}), domain.GivenIn, amount(a, e18(3)), false)
	require.NoError(t, err)
	viaC, err := PricePath(set, mustPath(t, []int{1, 3, 2}, []int{2, 3}), domain.GivenIn, amount(a, e18(2)), false)
	require.NoError(t, err)

	s, err := NewSwap([]*PathWithAmount{direct, viaC}, domain.GivenIn)
	require.NoError(t, err)
	require.Equal(t, []common.Address{addr(1), addr(2), addr(3)}, s.Assets)
	require.Len(t, s.Steps, 3)
	require.Equal(t, e18(3), s.Steps[0].Amount.String())
	require.Equal(t, e18(2), s.Steps[1].Amount.String())
	require.Zero(t, s.Steps[2].Amount.Sign())

	require.Equal(t, e18(5), s.InputAmount().Amount.Dec())
	total := new(uint256.Int).Add(direct.AmountOut.Amount, viaC.AmountOut.Amount)
	require.Equal(t, total.Dec(), s.OutputAmount().Amount.Dec())
}

func TestNewSwapRejectsMixedEndpoints(t *testing.T) {
	set := newSet(t, pair(1, 1, 2, e18(1000), e18(1000)), pair(2, 1, 3, e18(1000), e18(1000)))
	a := token(1)
	toB, err := PricePath(set, mustPath(t, []int{1, 2}, []int{1}), domain.GivenIn, amount(a, e18(1)), false)
	require.NoError(t, err)
	toC, err := PricePath(set, mustPath(t, []int{1, 3}, []int{2}), domain.GivenIn, amount(a, e18(1)), false)
	require.NoError(t, err)

	_, err = NewSwap([]*PathWithAmount{toB, toC}, domain.GivenIn)
	require.ErrorIs(t, err, cmn.ErrMixedEndpointTokens)

	_, err = NewSwap(nil, domain.GivenIn)
	require.ErrorIs(t, err, cmn.ErrInvalidPath)
}

func TestSwapLimits(t *testing.T) {
	set := newSet(t, pair(1, 1, 2, e18(1000), e18(1000)), pair(2, 2, 3, e18(1000), e18(1000)))
	path := mustPath(t, []int{1, 2, 3}, []int{1, 2})
	in, out := uint256.MustFromDecimal(e18(10)), uint256.MustFromDecimal(e18(9))
	slippage := SlippageFromBps(100)

	exactIn, err := PricePath(set, path, domain.GivenIn, amount(token(1), e18(10)), false)
	require.NoError(t, err)
	s, err := NewSwap([]*PathWithAmount{exactIn}, domain.GivenIn)
	require.NoError(t, err)
	limits, err := s.Limits(slippage, in, out)
	require.NoError(t, err)
	require.Len(t, limits, 3)
	require.Equal(t, e18(10), limits[0].String())
	require.Zero(t, limits[1].Sign())
	require.Equal(t, "-8910000000000000000", limits[2].String())

	exactOut, err := PricePath(set, path, domain.GivenOut, amount(token(3), e18(9)), false)
	require.NoError(t, err)
	s, err = NewSwap([]*PathWithAmount{exactOut}, domain.GivenOut)
	require.NoError(t, err)
	limits, err = s.Limits(slippage, in, out)
	require.NoError(t, err)
	require.Equal(t, "10100000000000000000", limits[0].String())
	require.Zero(t, limits[1].Sign())
	require.Equal(t, "-"+e18(9), limits[2].String())

	_, err = s.Limits(uint256.MustFromDecimal(e18(2)), in, out)
	require.ErrorIs(t, err, cmn.ErrInvalidSwap)
}

func TestSwapPriceImpact(t *testing.T) {
	set := newSet(t, pair(1, 1, 2, e18(1000), e18(1000)))
	path := mustPath(t, []int{1, 2}, []int{1})

	for _, kind := range []domain.SwapKind{domain.GivenIn, domain.GivenOut} {
		t.Run(kind.String(), func(t *testing.T) {
			given := amount(token(1), e18(1))
			if kind == domain.GivenOut {
				given = amount(token(2), e18(1))
			}
			priced, err := PricePath(set, path, kind, given, false)
			require.NoError(t, err)
			s, err := NewSwap([]*PathWithAmount{priced}, kind)
			require.NoError(t, err)

			// one unit against a thousand moves the price by about 0.1%
			impact, err := s.PriceImpact(set)
			require.NoError(t, err)
			bps := ImpactBps(impact)
			require.GreaterOrEqual(t, bps, uint16(9))
			require.LessOrEqual(t, bps, uint16(10))
			require.Equal(t, SeverityNone, ImpactSeverityOf(bps))
		})
	}
}

func TestBuildQuoteFlagsMissingImpact(t *testing.T) {
	set := newSet(t, pair(1, 1, 2, e18(1000), e18(1000)))
	r := NewRouter()
	route, err := r.SelectRoute(token(1), token(2), []*Path{mustPath(t, []int{1, 2}, []int{1})}, set, domain.GivenIn, amount(token(1), e18(1)))
	require.NoError(t, err)

	q, _, err := BuildQuote(route, set, 50)
	require.NoError(t, err)
	require.True(t, q.PriceImpactAvailable)
	require.Equal(t, SplitNone, q.SplitLabel)
	require.Len(t, q.Paths, 1)
	require.Equal(t, "Swap", q.Paths[0].Hops[0].Operation)
	require.NotNil(t, q.SingleSwap)
	require.Len(t, q.Limits, 2)

	// the snapshot lost the pool between selection and assembly
	empty := newSet(t)
	q, _, err = BuildQuote(route, empty, 50)
	require.NoError(t, err)
	require.False(t, q.PriceImpactAvailable)
	require.True(t, q.PriceImpact.IsZero())
	require.Equal(t, route.AmountOut.Dec(), q.AmountOut.Dec())

	_, err = roundTripImpact(empty, route.Paths, route.Kind)
	require.ErrorIs(t, err, cmn.ErrPriceImpactUnavailable)
}

func TestPriceImpactSeverity(t *testing.T) {
	tests := []struct {
		bps  uint16
		want ImpactSeverity
	}{
		{0, SeverityNone},
		{99, SeverityNone},
		{100, SeverityLow},
		{300, SeverityModerate},
		{500, SeverityHigh},
		{999, SeverityHigh},
		{1000, SeverityExtreme},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ImpactSeverityOf(tt.bps), "bps %d", tt.bps)
	}
	require.Empty(t, ImpactWarning(99))
	require.Contains(t, ImpactWarning(100), "over 1%")
	require.Contains(t, ImpactWarning(999), "large share")
	require.Contains(t, ImpactWarning(1000), "over 10%")

	require.Equal(t, uint16(50), ImpactBps(uint256.NewInt(5e15)))
	require.Equal(t, uint16(65535), ImpactBps(uint256.MustFromDecimal(e18(100))))
}
