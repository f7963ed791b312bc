package http

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/balancer/backend-sub000/internal/aggregator"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/http/httputil"
	"github.com/balancer/backend-sub000/internal/services/router"
)

type QuoteHandler struct {
	aggregatorSvc *aggregator.Service
	chainID       uint64
}

func NewQuoteHandler(aggregatorSvc *aggregator.Service, chainID uint64) *QuoteHandler {
	return &QuoteHandler{aggregatorSvc: aggregatorSvc, chainID: chainID}
}

func (h *QuoteHandler) Prefix() string {
	return "/quote"
}

func (h *QuoteHandler) Register(r gin.IRoutes) {
	r.GET("", h.getQuote)
}

// QuoteRequest carries the query parameters of a quote.
type QuoteRequest struct {
	TokenIn  string `form:"tokenIn" binding:"required"`
	TokenOut string `form:"tokenOut" binding:"required"`

	// Amount in raw token units of the given side.
	Amount string `form:"amount" binding:"required"`

	// SwapKind is ExactIn or ExactOut.
	SwapKind string `form:"swapKind" binding:"required"`

	SlippageBps uint16 `form:"slippageBps"`
	Verify      bool   `form:"verify"`
}

type HopInfo struct {
	PoolID    string `json:"poolId"`
	PoolType  string `json:"poolType"`
	Operation string `json:"operation"`
	TokenIn   string `json:"tokenIn"`
	TokenOut  string `json:"tokenOut"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
}

type PathInfo struct {
	Tokens    []string  `json:"tokens"`
	Hops      []HopInfo `json:"hops"`
	AmountIn  string    `json:"amountIn"`
	AmountOut string    `json:"amountOut"`
}

type StepInfo struct {
	PoolID        string `json:"poolId"`
	AssetInIndex  string `json:"assetInIndex"`
	AssetOutIndex string `json:"assetOutIndex"`
	Amount        string `json:"amount"`
	UserData      string `json:"userData"`
}

type QuoteResponse struct {
	SwapKind  string `json:"swapKind"`
	TokenIn   string `json:"tokenIn"`
	TokenOut  string `json:"tokenOut"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`

	// Empty when no route exists; amounts are then zero.
	Paths []PathInfo `json:"paths"`
	Split string     `json:"split,omitempty"`

	PriceImpact          string `json:"priceImpact,omitempty"`
	PriceImpactBps       uint16 `json:"priceImpactBps"`
	PriceImpactSeverity  string `json:"priceImpactSeverity,omitempty"`
	PriceImpactWarning   string `json:"priceImpactWarning,omitempty"`
	PriceImpactAvailable bool   `json:"priceImpactAvailable"`

	IsBatch bool       `json:"isBatch"`
	Assets  []string   `json:"assets"`
	Steps   []StepInfo `json:"steps"`
	Limits  []string   `json:"limits"`

	Verified bool `json:"verified"`
}

func (h *QuoteHandler) parseQuoteRequest(c *gin.Context) (*domain.QuoteRequest, bool) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return nil, false
	}

	if !common.IsHexAddress(req.TokenIn) {
		httputil.HandleBadRequest(c, "invalid tokenIn address")
		return nil, false
	}
	if !common.IsHexAddress(req.TokenOut) {
		httputil.HandleBadRequest(c, "invalid tokenOut address")
		return nil, false
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		httputil.HandleBadRequest(c, "invalid amount: must be a positive integer")
		return nil, false
	}

	kind, ok := domain.ParseSwapKind(req.SwapKind)
	if !ok {
		httputil.HandleBadRequest(c, "invalid swapKind: must be ExactIn or ExactOut")
		return nil, false
	}

	return &domain.QuoteRequest{
		ChainID:     h.chainID,
		TokenIn:     common.HexToAddress(req.TokenIn),
		TokenOut:    common.HexToAddress(req.TokenOut),
		Kind:        kind,
		Amount:      amount,
		SlippageBps: req.SlippageBps,
		Verify:      req.Verify,
	}, true
}

func buildQuoteResponse(q *domain.RoutedQuote) QuoteResponse {
	resp := QuoteResponse{
		SwapKind:             q.Kind.String(),
		TokenIn:              q.TokenIn.Address.Hex(),
		TokenOut:             q.TokenOut.Address.Hex(),
		AmountIn:             q.AmountIn.Dec(),
		AmountOut:            q.AmountOut.Dec(),
		Paths:                make([]PathInfo, 0, len(q.Paths)),
		Split:                q.SplitLabel,
		PriceImpactAvailable: q.PriceImpactAvailable,
		IsBatch:              q.IsBatch,
		Assets:               make([]string, 0, len(q.Assets)),
		Steps:                make([]StepInfo, 0, len(q.Steps)),
		Limits:               make([]string, 0, len(q.Limits)),
		Verified:             q.Verified,
	}

	if q.PriceImpactAvailable {
		bps := router.ImpactBps(q.PriceImpact)
		resp.PriceImpact = q.PriceImpact.Dec()
		resp.PriceImpactBps = bps
		resp.PriceImpactSeverity = string(router.ImpactSeverityOf(bps))
		resp.PriceImpactWarning = router.ImpactWarning(bps)
	}

	for _, p := range q.Paths {
		info := PathInfo{
			Tokens:    make([]string, len(p.Tokens)),
			Hops:      make([]HopInfo, len(p.Hops)),
			AmountIn:  p.AmountIn.Dec(),
			AmountOut: p.AmountOut.Dec(),
		}
		for i, t := range p.Tokens {
			info.Tokens[i] = t.Hex()
		}
		for i, hop := range p.Hops {
			info.Hops[i] = HopInfo{
				PoolID:    hop.PoolID.Hex(),
				PoolType:  hop.PoolType.String(),
				Operation: hop.Operation,
				TokenIn:   hop.TokenIn.Hex(),
				TokenOut:  hop.TokenOut.Hex(),
				AmountIn:  hop.AmountIn.Dec(),
				AmountOut: hop.AmountOut.Dec(),
			}
		}
		resp.Paths = append(resp.Paths, info)
	}

	for _, a := range q.Assets {
		resp.Assets = append(resp.Assets, a.Hex())
	}
	steps := q.Steps
	if !q.IsBatch && q.SingleSwap != nil {
		steps = []domain.BatchSwapStep{{
			PoolId:        q.SingleSwap.PoolId,
			AssetInIndex:  big.NewInt(0),
			AssetOutIndex: big.NewInt(1),
			Amount:        q.SingleSwap.Amount,
			UserData:      q.SingleSwap.UserData,
		}}
	}
	for _, s := range steps {
		resp.Steps = append(resp.Steps, StepInfo{
			PoolID:        hexutil.Encode(s.PoolId[:]),
			AssetInIndex:  s.AssetInIndex.String(),
			AssetOutIndex: s.AssetOutIndex.String(),
			Amount:        s.Amount.String(),
			UserData:      hexutil.Encode(s.UserData),
		})
	}
	for _, l := range q.Limits {
		resp.Limits = append(resp.Limits, l.String())
	}
	return resp
}

func (h *QuoteHandler) getQuote(c *gin.Context) {
	req, ok := h.parseQuoteRequest(c)
	if !ok {
		return
	}

	q, err := h.aggregatorSvc.Quote(c.Request.Context(), *req)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	httputil.HandleSuccess(c, buildQuoteResponse(q))
}
