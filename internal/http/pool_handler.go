package http

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/balancer/backend-sub000/internal/aggregator"
	"github.com/balancer/backend-sub000/internal/http/httputil"
	"github.com/balancer/backend-sub000/internal/pools"
)

type PoolHandler struct {
	aggregatorSvc *aggregator.Service
}

func NewPoolHandler(aggregatorSvc *aggregator.Service) *PoolHandler {
	return &PoolHandler{aggregatorSvc: aggregatorSvc}
}

func (h *PoolHandler) Prefix() string {
	return "/pools"
}

func (h *PoolHandler) Register(r gin.IRoutes) {
	r.GET("/stats", h.getStats)
	r.GET("/list", h.listPools)
	r.GET("/:id", h.getPool)
}

type PoolStatsResponse struct {
	PoolCount  int `json:"poolCount"`
	TokenCount int `json:"tokenCount"`
}

func (h *PoolHandler) getStats(c *gin.Context) {
	set := h.aggregatorSvc.Snapshot()
	httputil.HandleSuccess(c, PoolStatsResponse{
		PoolCount:  set.Len(),
		TokenCount: len(set.Tokens()),
	})
}

// PoolInfo describes one pool of the current snapshot.
type PoolInfo struct {
	ID      string   `json:"id"`
	Address string   `json:"address"`
	Type    string   `json:"type"`
	SwapFee string   `json:"swapFee"`
	Tokens  []string `json:"tokens"`
}

type PoolListResponse struct {
	Pools []PoolInfo `json:"pools"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Pages int        `json:"pages"`
}

func poolInfo(p pools.Pool) PoolInfo {
	info := PoolInfo{
		ID:      p.ID().Hex(),
		Address: p.Address().Hex(),
		Type:    p.Type().String(),
		SwapFee: p.SwapFee().Dec(),
	}
	for _, t := range p.Tokens() {
		info.Tokens = append(info.Tokens, t.Address.Hex())
	}
	return info
}

func (h *PoolHandler) listPools(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	allPools := h.aggregatorSvc.Snapshot().All()
	total := len(allPools)

	pages := (total + limit - 1) / limit
	offset := (page - 1) * limit
	end := offset + limit
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}

	infos := make([]PoolInfo, 0, end-offset)
	for _, p := range allPools[offset:end] {
		infos = append(infos, poolInfo(p))
	}

	httputil.HandleSuccess(c, PoolListResponse{
		Pools: infos,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pages,
	})
}

func (h *PoolHandler) getPool(c *gin.Context) {
	id := c.Param("id")
	if len(id) != 2+2*common.HashLength {
		httputil.HandleBadRequest(c, "invalid pool id")
		return
	}
	p, err := h.aggregatorSvc.Snapshot().Get(common.HexToHash(id))
	if err != nil {
		httputil.Error(c, http.StatusNotFound, "pool not found")
		return
	}
	httputil.HandleSuccess(c, poolInfo(p))
}
