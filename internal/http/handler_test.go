package http

import (
	"fmt"
	"math/big"
	gohttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/balancer/backend-sub000/internal/aggregator"
	"github.com/balancer/backend-sub000/internal/config"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/http/httputil"
	"github.com/balancer/backend-sub000/internal/http/middlewares"
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

func pair(id, a, b int) *domain.PoolRecord {
	return &domain.PoolRecord{
		ID:          common.BigToHash(big.NewInt(int64(id))),
		Address:     addr(1000 + id),
		ChainID:     chainID,
		Type:        domain.PoolTypeWeighted,
		Version:     2,
		SwapFee:     "1000000000000000",
		TotalShares: e18(100).String(),
		Tokens: []domain.PoolTokenRecord{
			{Address: addr(a), Decimals: 18, Balance: e18(1000).String(), Weight: "500000000000000000"},
			{Address: addr(b), Decimals: 18, Balance: e18(1000).String(), Weight: "500000000000000000"},
		},
	}
}

type staticSnapshot struct{ set *pools.Set }

func (s staticSnapshot) Snapshot() *pools.Set { return s.set }

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	set, dropped := pools.FromRecords([]*domain.PoolRecord{pair(1, 1, 2), pair(2, 2, 3)})
	require.Zero(t, dropped)

	routerConf := &config.RouterConfig{MaxHops: 3, MaxPaths: 8, MaxNonCoreHops: 1, DefaultSlippageBps: 50, CandidateCacheSize: 16}
	graph := router.NewGraph(routerConf)
	graph.Rebuild(set)

	agg := aggregator.NewService(&config.AggregatorConfig{ChainID: chainID}, routerConf, staticSnapshot{set}, graph, nil)
	t.Cleanup(func() { _ = agg.Stop() })

	svc := &HTTPService{
		conf:        &config.GeneralConfig{Env: config.DevEnv, RateLimit: 1000, RateBurst: 1000},
		rateLimiter: middlewares.NewRateLimiter(1000, 1000),
		handlers: []httputil.RouteGroup{
			NewPoolHandler(agg),
			NewQuoteHandler(agg, chainID),
		},
	}
	return svc.engine()
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func get[T any](t *testing.T, r *gin.Engine, url string) (int, envelope[T]) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(gohttp.MethodGet, url, nil))
	var body envelope[T]
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func TestQuoteEndpoint(t *testing.T) {
	r := newTestEngine(t)
	url := fmt.Sprintf("/api/v1/quote?tokenIn=%s&tokenOut=%s&amount=%s&swapKind=ExactIn&slippageBps=100",
		addr(1).Hex(), addr(3).Hex(), e18(1))

	code, body := get[QuoteResponse](t, r, url)
	require.Equal(t, gohttp.StatusOK, code)
	require.True(t, body.Success)

	q := body.Data
	require.Equal(t, "ExactIn", q.SwapKind)
	require.Equal(t, e18(1).String(), q.AmountIn)
	require.NotEqual(t, "0", q.AmountOut)
	require.True(t, q.IsBatch)
	require.Len(t, q.Paths, 1)
	require.Len(t, q.Paths[0].Hops, 2)
	require.Len(t, q.Steps, 2)
	require.Len(t, q.Limits, 3)
	require.Equal(t, e18(1).String(), q.Limits[0])
	require.True(t, q.PriceImpactAvailable)
	require.NotEmpty(t, q.PriceImpactSeverity)
}

func TestQuoteEndpointNoRoute(t *testing.T) {
	r := newTestEngine(t)
	url := fmt.Sprintf("/api/v1/quote?tokenIn=%s&tokenOut=%s&amount=1000&swapKind=ExactOut",
		addr(1).Hex(), addr(42).Hex())

	code, body := get[QuoteResponse](t, r, url)
	require.Equal(t, gohttp.StatusOK, code)
	require.Empty(t, body.Data.Paths)
	require.Equal(t, "0", body.Data.AmountIn)
}

func TestQuoteEndpointErrors(t *testing.T) {
	r := newTestEngine(t)
	tokenA, tokenB := addr(1).Hex(), addr(2).Hex()

	tests := []struct {
		name  string
		query string
		code  int
	}{
		{"missing params", "tokenIn=" + tokenA, gohttp.StatusBadRequest},
		{"bad address", "tokenIn=0x12&tokenOut=" + tokenB + "&amount=1&swapKind=ExactIn", gohttp.StatusBadRequest},
		{"bad amount", "tokenIn=" + tokenA + "&tokenOut=" + tokenB + "&amount=-5&swapKind=ExactIn", gohttp.StatusBadRequest},
		{"bad kind", "tokenIn=" + tokenA + "&tokenOut=" + tokenB + "&amount=1&swapKind=Sideways", gohttp.StatusBadRequest},
		{"same token", "tokenIn=" + tokenA + "&tokenOut=" + tokenA + "&amount=1&swapKind=ExactIn", gohttp.StatusBadRequest},
		{"slippage", "tokenIn=" + tokenA + "&tokenOut=" + tokenB + "&amount=1&swapKind=ExactIn&slippageBps=20000", gohttp.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get[QuoteResponse](t, r, "/api/v1/quote?"+tt.query)
			require.Equal(t, tt.code, code)
			require.False(t, body.Success)
			require.NotEmpty(t, body.Error)
		})
	}
}

func TestPoolEndpoints(t *testing.T) {
	r := newTestEngine(t)

	code, stats := get[PoolStatsResponse](t, r, "/api/v1/pools/stats")
	require.Equal(t, gohttp.StatusOK, code)
	require.Equal(t, 2, stats.Data.PoolCount)
	require.Equal(t, 3, stats.Data.TokenCount)

	code, list := get[PoolListResponse](t, r, "/api/v1/pools/list?limit=1&page=2")
	require.Equal(t, gohttp.StatusOK, code)
	require.Equal(t, 2, list.Data.Total)
	require.Equal(t, 2, list.Data.Pages)
	require.Len(t, list.Data.Pools, 1)

	id := common.BigToHash(big.NewInt(1)).Hex()
	code, pool := get[PoolInfo](t, r, "/api/v1/pools/"+id)
	require.Equal(t, gohttp.StatusOK, code)
	require.Equal(t, "WEIGHTED", pool.Data.Type)
	require.Equal(t, "1000000000000000", pool.Data.SwapFee)
	require.Len(t, pool.Data.Tokens, 2)

	code, _ = get[PoolInfo](t, r, "/api/v1/pools/"+common.BigToHash(big.NewInt(9)).Hex())
	require.Equal(t, gohttp.StatusNotFound, code)

	code, _ = get[PoolInfo](t, r, "/api/v1/pools/0x1234")
	require.Equal(t, gohttp.StatusBadRequest, code)
}
