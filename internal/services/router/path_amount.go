package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/pools"
)

// HopAmount records what one hop consumed and produced.
type HopAmount struct {
	Pool      common.Hash
	PoolType  domain.PoolType
	Op        Operation
	AmountIn  *domain.TokenAmount
	AmountOut *domain.TokenAmount
}

// PathWithAmount is a path priced for one amount. For GivenIn the amount
// enters at the first token and is pushed forward; for GivenOut it leaves at
// the last token and the required input is walked backward.
type PathWithAmount struct {
	Path *Path
	Kind domain.SwapKind

	AmountIn  *domain.TokenAmount
	AmountOut *domain.TokenAmount
	Hops      []HopAmount
}

// PricePath prices path against set. With mutate the pools held by set take
// the balance changes, which is how split legs see each other.
func PricePath(set *pools.Set, path *Path, kind domain.SwapKind, amount *domain.TokenAmount, mutate bool) (*PathWithAmount, error) {
	anchor := path.TokenIn()
	if kind == domain.GivenOut {
		anchor = path.TokenOut()
	}
	if !amount.Token.IsSame(anchor) {
		return nil, fmt.Errorf("%w: amount is in %s, path %s expects %s", cmn.ErrInvalidPath, amount.Token, kind, anchor)
	}

	n := path.Hops()
	pwa := &PathWithAmount{Path: path, Kind: kind, Hops: make([]HopAmount, n)}

	if kind == domain.GivenIn {
		pwa.AmountIn = amount
		current := amount
		for i := 0; i < n; i++ {
			hop, err := priceHop(set, path, i, kind, current, mutate)
			if err != nil {
				return nil, err
			}
			pwa.Hops[i] = *hop
			current = hop.AmountOut
		}
		pwa.AmountOut = current
		return pwa, nil
	}

	pwa.AmountOut = amount
	current := amount
	for i := n - 1; i >= 0; i-- {
		hop, err := priceHop(set, path, i, kind, current, mutate)
		if err != nil {
			return nil, err
		}
		pwa.Hops[i] = *hop
		current = hop.AmountIn
	}
	pwa.AmountIn = current
	return pwa, nil
}

func priceHop(set *pools.Set, path *Path, i int, kind domain.SwapKind, given *domain.TokenAmount, mutate bool) (*HopAmount, error) {
	id := path.Pools[i]
	p, err := set.Get(id)
	if err != nil {
		return nil, fmt.Errorf("hop %d: %w", i, err)
	}
	tokenIn, tokenOut := path.Tokens[i], path.Tokens[i+1]
	op := path.Ops[i]

	var priced *domain.TokenAmount
	switch op {
	case OpSwap:
		if kind == domain.GivenIn {
			priced, err = p.SwapGivenIn(tokenIn, tokenOut, given, mutate)
		} else {
			priced, err = p.SwapGivenOut(tokenIn, tokenOut, given, mutate)
		}
	case OpAddLiquidity, OpRemoveLiquidity:
		priced, err = priceLiquidityHop(p, op, tokenIn, tokenOut, kind, given, mutate)
	default:
		err = fmt.Errorf("%w: unknown operation %d", cmn.ErrInvalidPath, op)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: hop %d via %s: %w", cmn.ErrInvalidPath, i, id.Hex(), err)
	}

	hop := &HopAmount{Pool: id, PoolType: p.Type(), Op: op}
	if kind == domain.GivenIn {
		hop.AmountIn, hop.AmountOut = given, priced
	} else {
		hop.AmountIn, hop.AmountOut = priced, given
	}
	return hop, nil
}

func priceLiquidityHop(p pools.Pool, op Operation, tokenIn, tokenOut *domain.Token, kind domain.SwapKind, given *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	lp, ok := p.(pools.LiquidityPool)
	if !ok {
		return nil, fmt.Errorf("%w: %s pools have no share token", cmn.ErrInvalidPath, p.Type())
	}
	share := lp.ShareToken()
	if op == OpAddLiquidity {
		if !tokenOut.IsSame(share) {
			return nil, fmt.Errorf("%w: add liquidity must produce the share token", cmn.ErrInvalidPath)
		}
		if kind == domain.GivenIn {
			return lp.AddLiquiditySingleTokenExactIn(tokenIn, given, mutate)
		}
		return lp.AddLiquiditySingleTokenExactOut(tokenIn, given, mutate)
	}
	if !tokenIn.IsSame(share) {
		return nil, fmt.Errorf("%w: remove liquidity must burn the share token", cmn.ErrInvalidPath)
	}
	if kind == domain.GivenIn {
		return lp.RemoveLiquiditySingleTokenExactIn(tokenOut, given, mutate)
	}
	return lp.RemoveLiquiditySingleTokenExactOut(tokenOut, given, mutate)
}

// Given is the amount the caller fixed: the input for GivenIn, the output
// for GivenOut.
func (p *PathWithAmount) Given() *domain.TokenAmount {
	if p.Kind == domain.GivenOut {
		return p.AmountOut
	}
	return p.AmountIn
}

// Computed is the side the pools priced.
func (p *PathWithAmount) Computed() *domain.TokenAmount {
	if p.Kind == domain.GivenOut {
		return p.AmountIn
	}
	return p.AmountOut
}

// liquidityScale keeps 1/NL representable for depths far below one token.
var liquidityScale = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(54))

// NormalizedLiquidity combines hop depths like resistors in series:
// 1/NL = sum of 1/NL_hop. Zero means some hop cannot report depth.
func NormalizedLiquidity(set *pools.Set, path *Path) *uint256.Int {
	inverse := new(uint256.Int)
	for i, id := range path.Pools {
		p, err := set.Get(id)
		if err != nil {
			return new(uint256.Int)
		}
		nl, err := hopLiquidity(p, path.Ops[i], path.Tokens[i], path.Tokens[i+1])
		if err != nil || nl.IsZero() {
			return new(uint256.Int)
		}
		term := new(uint256.Int).Div(liquidityScale, nl)
		if _, overflow := inverse.AddOverflow(inverse, term); overflow {
			return new(uint256.Int)
		}
	}
	if inverse.IsZero() {
		return new(uint256.Int)
	}
	return new(uint256.Int).Div(liquidityScale, inverse)
}

// Joins and exits are priced against the underlying side of the pool, so
// their depth is taken from the underlying token's best counterpart.
func hopLiquidity(p pools.Pool, op Operation, tokenIn, tokenOut *domain.Token) (*uint256.Int, error) {
	if op == OpSwap {
		if nl, err := p.NormalizedLiquidity(tokenIn, tokenOut); err == nil {
			return nl, nil
		}
	}
	underlying := tokenIn
	if op == OpRemoveLiquidity || (op == OpSwap && isShare(p, tokenIn)) {
		underlying = tokenOut
	}
	best := new(uint256.Int)
	for _, t := range p.Tokens() {
		if t.IsSame(underlying) || isShare(p, t) {
			continue
		}
		nl, err := p.NormalizedLiquidity(underlying, t)
		if err == nil && nl.Gt(best) {
			best = nl
		}
	}
	return best, nil
}

func isShare(p pools.Pool, t *domain.Token) bool {
	lp, ok := p.(pools.LiquidityPool)
	return ok && lp.ShareToken().IsSame(t)
}

// Quote flattens the priced path for API responses.
func (p *PathWithAmount) Quote() domain.PathQuote {
	q := domain.PathQuote{
		Tokens:    make([]common.Address, len(p.Path.Tokens)),
		Hops:      make([]domain.HopQuote, len(p.Hops)),
		AmountIn:  new(uint256.Int).Set(p.AmountIn.Amount),
		AmountOut: new(uint256.Int).Set(p.AmountOut.Amount),
	}
	for i, t := range p.Path.Tokens {
		q.Tokens[i] = t.Address
	}
	for i, h := range p.Hops {
		q.Hops[i] = domain.HopQuote{
			PoolID:    h.Pool,
			PoolType:  h.PoolType,
			Operation: h.Op.String(),
			TokenIn:   h.AmountIn.Token.Address,
			TokenOut:  h.AmountOut.Token.Address,
			AmountIn:  new(uint256.Int).Set(h.AmountIn.Amount),
			AmountOut: new(uint256.Int).Set(h.AmountOut.Amount),
		}
	}
	return q
}
