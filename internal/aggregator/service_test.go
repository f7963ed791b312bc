package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/config"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/pools"
	"github.com/balancer/backend-sub000/internal/services/router"
)

const chainID = 1

func addr(n int) common.Address {
	return common.HexToAddress(fmt.Sprintf("0x%040x", n))
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func pair(id, a, b int, bal int64) *domain.PoolRecord {
	return &domain.PoolRecord{
		ID:          common.BigToHash(big.NewInt(int64(id))),
		Address:     addr(1000 + id),
		ChainID:     chainID,
		Type:        domain.PoolTypeWeighted,
		Version:     2,
		SwapFee:     "1000000000000000",
		TotalShares: e18(100).String(),
		Tokens: []domain.PoolTokenRecord{
			{Address: addr(a), Decimals: 18, Balance: e18(bal).String(), Weight: "500000000000000000"},
			{Address: addr(b), Decimals: 18, Balance: e18(bal).String(), Weight: "500000000000000000"},
		},
	}
}

type staticSnapshot struct {
	set *pools.Set
}

func (s *staticSnapshot) Snapshot() *pools.Set { return s.set }

type fakeVerifier struct {
	in, out *uint256.Int
	err     error
	calls   int
}

func (f *fakeVerifier) Enabled() bool { return true }

func (f *fakeVerifier) VerifyQuote(context.Context, *domain.RoutedQuote) (*uint256.Int, *uint256.Int, error) {
	f.calls++
	return f.in, f.out, f.err
}

func newService(t *testing.T, cacheTTLMs int, verifier QuoteVerifier, recs ...*domain.PoolRecord) (*Service, *staticSnapshot) {
	t.Helper()
	set, dropped := pools.FromRecords(recs)
	require.Zero(t, dropped)

	routerConf := &config.RouterConfig{
		MaxHops:            3,
		MaxPaths:           8,
		MaxNonCoreHops:     1,
		DefaultSlippageBps: 50,
		CandidateCacheSize: 64,
	}
	graph := router.NewGraph(routerConf)
	graph.Rebuild(set)

	snap := &staticSnapshot{set: set}
	conf := &config.AggregatorConfig{ChainID: chainID, QuoteCacheTTLMs: cacheTTLMs}
	svc := NewService(conf, routerConf, snap, graph, verifier)
	t.Cleanup(func() { _ = svc.Stop() })
	return svc, snap
}

func request(kind domain.SwapKind, in, out int, amount *big.Int) domain.QuoteRequest {
	return domain.QuoteRequest{
		ChainID:  chainID,
		TokenIn:  addr(in),
		TokenOut: addr(out),
		Kind:     kind,
		Amount:   amount,
	}
}

func TestQuoteExactIn(t *testing.T) {
	svc, _ := newService(t, 0, nil, pair(1, 1, 2, 1000), pair(2, 2, 3, 1000))

	q, err := svc.Quote(context.Background(), request(domain.GivenIn, 1, 3, e18(1)))
	require.NoError(t, err)
	require.False(t, q.IsZero())
	require.Equal(t, e18(1).String(), q.AmountIn.Dec())
	require.True(t, q.AmountOut.Lt(uint256.MustFromBig(e18(1))))
	require.True(t, q.IsBatch)
	require.Len(t, q.Steps, 2)
	require.Len(t, q.Limits, 3)
	require.True(t, q.PriceImpactAvailable)
	require.Equal(t, router.SplitNone, q.SplitLabel)
	require.False(t, q.Verified)

	// default slippage of 50 bps bounds the output
	minOut := new(big.Int).Neg(q.Limits[2])
	require.True(t, minOut.Cmp(q.AmountOut.ToBig()) < 0)
}

func TestQuoteExactOut(t *testing.T) {
	svc, _ := newService(t, 0, nil, pair(1, 1, 2, 1000))

	q, err := svc.Quote(context.Background(), request(domain.GivenOut, 1, 2, e18(1)))
	require.NoError(t, err)
	require.Equal(t, e18(1).String(), q.AmountOut.Dec())
	require.True(t, q.AmountIn.Gt(uint256.MustFromBig(e18(1))))
	require.NotNil(t, q.SingleSwap)
	require.Equal(t, uint8(domain.GivenOut), q.SingleSwap.Kind)
}

func TestQuoteNoRoute(t *testing.T) {
	svc, _ := newService(t, 0, nil, pair(1, 1, 2, 1000), pair(2, 3, 4, 1000))

	// both tokens known, no path between them
	q, err := svc.Quote(context.Background(), request(domain.GivenIn, 1, 4, e18(1)))
	require.NoError(t, err)
	require.True(t, q.IsZero())
	require.True(t, q.AmountOut.IsZero())

	// unknown token
	q, err = svc.Quote(context.Background(), request(domain.GivenIn, 1, 99, e18(1)))
	require.NoError(t, err)
	require.True(t, q.IsZero())
	require.Equal(t, addr(99), q.TokenOut.Address)

	// every candidate exceeds the pool limit
	q, err = svc.Quote(context.Background(), request(domain.GivenIn, 1, 2, e18(600)))
	require.NoError(t, err)
	require.True(t, q.IsZero())
}

func TestQuoteRejectsMalformedRequests(t *testing.T) {
	svc, _ := newService(t, 0, nil, pair(1, 1, 2, 1000))

	tests := []struct {
		name string
		edit func(r *domain.QuoteRequest)
		want error
	}{
		{"wrong chain", func(r *domain.QuoteRequest) { r.ChainID = 10 }, cmn.ErrInvalidSwap},
		{"same token", func(r *domain.QuoteRequest) { r.TokenOut = r.TokenIn }, cmn.ErrInvalidPath},
		{"zero amount", func(r *domain.QuoteRequest) { r.Amount = big.NewInt(0) }, cmn.ErrInvalidSwap},
		{"nil amount", func(r *domain.QuoteRequest) { r.Amount = nil }, cmn.ErrInvalidSwap},
		{"huge amount", func(r *domain.QuoteRequest) { r.Amount = new(big.Int).Lsh(big.NewInt(1), 256) }, cmn.ErrInvalidSwap},
		{"bad kind", func(r *domain.QuoteRequest) { r.Kind = 7 }, cmn.ErrInvalidSwap},
		{"slippage", func(r *domain.QuoteRequest) { r.SlippageBps = 10_001 }, cmn.ErrInvalidSwap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(domain.GivenIn, 1, 2, e18(1))
			tt.edit(&req)
			_, err := svc.Quote(context.Background(), req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQuoteVerification(t *testing.T) {
	verified := uint256.NewInt(123456)
	fv := &fakeVerifier{in: uint256.MustFromBig(e18(1)), out: verified}
	svc, _ := newService(t, 0, fv, pair(1, 1, 2, 1000))

	req := request(domain.GivenIn, 1, 2, e18(1))
	q, err := svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.False(t, q.Verified)
	require.Zero(t, fv.calls)

	req.Verify = true
	q, err = svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.True(t, q.Verified)
	require.Equal(t, verified, q.AmountOut)
	require.Equal(t, 1, fv.calls)

	fv.err = errors.New("rpc down")
	q, err = svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.False(t, q.Verified)
	require.False(t, q.AmountOut.Eq(verified))
}

func TestQuoteCache(t *testing.T) {
	svc, snap := newService(t, int(time.Minute/time.Millisecond), nil, pair(1, 1, 2, 1000))
	req := request(domain.GivenIn, 1, 2, e18(1))

	first, err := svc.Quote(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.Same(t, first, second)

	req.SlippageBps = 100
	third, err := svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.NotSame(t, first, third)

	// a new snapshot invalidates cached quotes
	snap.set = snap.set.Clone()
	req.SlippageBps = 0
	fourth, err := svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.NotSame(t, first, fourth)
	require.Equal(t, first.AmountOut.Dec(), fourth.AmountOut.Dec())
}

func TestQuoteCacheEviction(t *testing.T) {
	qc := NewQuoteCache(time.Minute)
	defer qc.Stop()
	set := pools.NewSet()

	for i := 0; i < quoteCacheMaxSize*2; i++ {
		key := quoteKey{tokenIn: addr(1), tokenOut: addr(2), amount: fmt.Sprint(i)}
		qc.Set(key, set, &domain.RoutedQuote{})
	}
	require.LessOrEqual(t, qc.Size(), quoteCacheMaxSize)

	key := quoteKey{tokenIn: addr(1), tokenOut: addr(2), amount: "x"}
	q := &domain.RoutedQuote{}
	qc.Set(key, set, q)
	require.Same(t, q, qc.Get(key, set))
	require.Nil(t, qc.Get(key, pools.NewSet()))
}
