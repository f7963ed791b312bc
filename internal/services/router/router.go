package router

import (
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
	"github.com/balancer/backend-sub000/internal/metrics"
	"github.com/balancer/backend-sub000/internal/pools"
)

// Split labels, reported with the winning route.
const (
	SplitNone      = "100/0"
	SplitQuarter   = "25/75"
	SplitHalf      = "50/50"
	SplitThreeQtr  = "75/25"
	SplitLiquidity = "liquidity"
)

// fixed split ratios, as the best path's share of the amount
var fixedSplits = []struct {
	label string
	ratio *uint256.Int
}{
	{SplitQuarter, uint256.NewInt(25e16)},
	{SplitHalf, uint256.NewInt(5e17)},
	{SplitThreeQtr, uint256.NewInt(75e16)},
}

// Route is the outcome of route selection: one or two priced paths whose
// given amounts add up to the requested amount.
type Route struct {
	Kind  domain.SwapKind
	Paths []*PathWithAmount
	Label string

	AmountIn  *uint256.Int
	AmountOut *uint256.Int
}

type Router struct {
	logger *cmn.ServiceLogger
}

func NewRouter() *Router {
	return &Router{logger: cmn.NewComponentLogger("router")}
}

// SelectRoute prices every candidate, then tries splitting the amount
// between the best two. The caller's set is never modified: the ranking pass
// prices without mutation and every split candidate runs on its own copy of
// the pools it touches.
func (r *Router) SelectRoute(tokenIn, tokenOut *domain.Token, candidates []*Path, set *pools.Set, kind domain.SwapKind, amount *domain.TokenAmount) (*Route, error) {
	start := time.Now()
	defer func() {
		metrics.RouteSelectionDuration.Observe(time.Since(start).Seconds())
	}()

	if tokenIn.IsSame(tokenOut) {
		return nil, fmt.Errorf("%w: token in equals token out", cmn.ErrInvalidPath)
	}
	given := tokenIn
	if kind == domain.GivenOut {
		given = tokenOut
	}
	if !amount.Token.IsSame(given) {
		return nil, fmt.Errorf("%w: amount is in %s, expected %s", cmn.ErrInvalidPath, amount.Token, given)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: zero amount", cmn.ErrInvalidSwap)
	}

	candidates = dedupe(candidates)
	metrics.CandidatePaths.Observe(float64(len(candidates)))

	priced := make([]*PathWithAmount, 0, len(candidates))
	for _, path := range candidates {
		if !path.TokenIn().IsSame(tokenIn) || !path.TokenOut().IsSame(tokenOut) {
			metrics.CandidatesDropped.Inc()
			continue
		}
		pwa, err := PricePath(set, path, kind, amount, false)
		if err != nil {
			metrics.CandidatesDropped.Inc()
			r.logger.Debug().Err(err).Str("path", path.String()).Msg("candidate dropped")
			continue
		}
		if pwa.Computed().IsZero() && kind == domain.GivenIn {
			metrics.CandidatesDropped.Inc()
			continue
		}
		priced = append(priced, pwa)
	}
	if len(priced) == 0 {
		return nil, cmn.ErrNoCandidatePaths
	}

	sort.SliceStable(priced, func(i, j int) bool {
		return better(kind, priced[i].Computed().Amount, priced[j].Computed().Amount)
	})

	best := newRoute(kind, SplitNone, priced[0])
	if len(priced) == 1 {
		metrics.SplitSelections.WithLabelValues(best.Label).Inc()
		return best, nil
	}

	first, second := priced[0].Path, priced[1].Path
	for _, split := range r.splitRatios(set, first, second) {
		candidate, err := r.priceSplit(set, first, second, kind, amount, split.ratio, split.label)
		if err != nil {
			r.logger.Debug().Err(err).Str("split", split.label).Msg("split candidate failed")
			continue
		}
		if better(kind, candidate.computed(), best.computed()) {
			best = candidate
		}
	}

	metrics.SplitSelections.WithLabelValues(best.Label).Inc()
	r.logger.Debug().
		Str("split", best.Label).
		Str("amount_in", best.AmountIn.Dec()).
		Str("amount_out", best.AmountOut.Dec()).
		Int("candidates", len(priced)).
		Msg("route selected")
	return best, nil
}

type splitRatio struct {
	label string
	ratio *uint256.Int
}

func (r *Router) splitRatios(set *pools.Set, first, second *Path) []splitRatio {
	out := make([]splitRatio, 0, len(fixedSplits)+1)
	for _, s := range fixedSplits {
		out = append(out, splitRatio{s.label, s.ratio})
	}
	nlFirst := NormalizedLiquidity(set, first)
	nlSecond := NormalizedLiquidity(set, second)
	if nlFirst.IsZero() || nlSecond.IsZero() {
		return out
	}
	total, overflow := new(uint256.Int).AddOverflow(nlFirst, nlSecond)
	if overflow {
		return out
	}
	ratio, err := fixedpoint.DivDown(nlFirst, total)
	if err != nil {
		return out
	}
	return append(out, splitRatio{SplitLiquidity, ratio})
}

// priceSplit gives ratio of the amount to first and the remainder to second,
// pricing both legs in order on one fresh copy of the pools they touch.
func (r *Router) priceSplit(set *pools.Set, first, second *Path, kind domain.SwapKind, amount *domain.TokenAmount, ratio *uint256.Int, label string) (*Route, error) {
	firstAmount, err := fixedpoint.MulDown(amount.Amount, ratio)
	if err != nil {
		return nil, err
	}
	if firstAmount.Gt(amount.Amount) {
		firstAmount.Set(amount.Amount)
	}
	secondAmount := new(uint256.Int).Sub(amount.Amount, firstAmount)

	ids := make([]common.Hash, 0, first.Hops()+second.Hops())
	ids = append(ids, first.Pools...)
	ids = append(ids, second.Pools...)
	clone, err := set.Subset(ids)
	if err != nil {
		return nil, err
	}

	var legs []*PathWithAmount
	for _, leg := range []struct {
		path *Path
		raw  *uint256.Int
	}{{first, firstAmount}, {second, secondAmount}} {
		if leg.raw.IsZero() {
			continue
		}
		pwa, err := PricePath(clone, leg.path, kind, domain.NewTokenAmount(amount.Token, leg.raw), true)
		if err != nil {
			return nil, err
		}
		legs = append(legs, pwa)
	}
	return newRoute(kind, label, legs...), nil
}

func newRoute(kind domain.SwapKind, label string, paths ...*PathWithAmount) *Route {
	r := &Route{
		Kind:      kind,
		Paths:     paths,
		Label:     label,
		AmountIn:  new(uint256.Int),
		AmountOut: new(uint256.Int),
	}
	for _, p := range paths {
		r.AmountIn.Add(r.AmountIn, p.AmountIn.Amount)
		r.AmountOut.Add(r.AmountOut, p.AmountOut.Amount)
	}
	return r
}

func (r *Route) computed() *uint256.Int {
	if r.Kind == domain.GivenOut {
		return r.AmountIn
	}
	return r.AmountOut
}

// better reports whether a strictly beats b: more out for GivenIn, less in
// for GivenOut.
func better(kind domain.SwapKind, a, b *uint256.Int) bool {
	if kind == domain.GivenOut {
		return a.Lt(b)
	}
	return a.Gt(b)
}

func dedupe(paths []*Path) []*Path {
	seen := make(map[PathID]struct{}, len(paths))
	out := make([]*Path, 0, len(paths))
	for _, p := range paths {
		if p == nil {
			continue
		}
		id := p.ID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, p)
	}
	return out
}
