package pools

import (
	"fmt"

	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

// shareIndex marks the pool's own share token, which is not part of the
// token list of weighted pools.
const shareIndex = -1

var (
	weightedShareExitInRatio  = u(3e17)
	weightedShareExitOutRatio = u(25e16)
)

type WeightedPool struct {
	basePool
	share       *domain.Token
	totalShares *uint256.Int
	powVersion  fixedpoint.PowVersion
}

var _ LiquidityPool = (*WeightedPool)(nil)

func NewWeightedPool(rec *domain.PoolRecord) (*WeightedPool, error) {
	base, err := newBasePool(rec)
	if err != nil {
		return nil, err
	}
	for i, t := range rec.Tokens {
		w, err := parseAmount(t.Weight, "weight")
		if err != nil {
			return nil, err
		}
		if w.IsZero() {
			return nil, fmt.Errorf("%w: zero weight for %s", cmn.ErrInvalidPath, t.Address.Hex())
		}
		base.tokens[i].weight = w
	}
	totalShares, err := parseAmount(rec.TotalShares, "totalShares")
	if err != nil {
		return nil, err
	}
	version := fixedpoint.PowV2
	if rec.Version == 1 {
		version = fixedpoint.PowV1
	}
	return &WeightedPool{
		basePool:    base,
		share:       domain.NewToken(rec.ChainID, rec.Address, 18),
		totalShares: totalShares,
		powVersion:  version,
	}, nil
}

func (p *WeightedPool) ShareToken() *domain.Token { return p.share }

func (p *WeightedPool) Clone() Pool {
	return &WeightedPool{
		basePool:    p.cloneBase(),
		share:       p.share,
		totalShares: clone(p.totalShares),
		powVersion:  p.powVersion,
	}
}

// index resolves a token to its position, or shareIndex for the share token.
func (p *WeightedPool) index(t *domain.Token) (int, error) {
	if p.share.IsSame(t) {
		return shareIndex, nil
	}
	return p.tokenIndex(t)
}

func (p *WeightedPool) NormalizedLiquidity(tokenIn, tokenOut *domain.Token) (*uint256.Int, error) {
	if v, ok := p.cachedLiquidity(tokenIn, tokenOut); ok {
		return v, nil
	}
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	c := &calc{}
	wIn, wOut := p.tokens[in].weight, p.tokens[out].weight
	balanceOut, err := p.scaledBalance(out)
	if err != nil {
		return nil, err
	}
	nl := c.mulDown(balanceOut, c.divDown(wIn, c.add(wIn, wOut)))
	return nl, c.err
}

func (p *WeightedPool) LimitAmount(tokenIn, tokenOut *domain.Token, kind domain.SwapKind) (*uint256.Int, error) {
	in, err := p.index(tokenIn)
	if err != nil {
		return nil, err
	}
	out, err := p.index(tokenOut)
	if err != nil {
		return nil, err
	}
	switch {
	case in == shareIndex && out == shareIndex:
		return nil, fmt.Errorf("%w: share token on both sides", cmn.ErrInvalidSwap)
	case out == shareIndex:
		if kind == domain.GivenIn {
			return clone(p.tokens[in].balance), nil
		}
		return clone(p.totalShares), nil
	case in == shareIndex:
		if kind == domain.GivenIn {
			return fixedpoint.MulDown(p.totalShares, weightedShareExitInRatio)
		}
		return fixedpoint.MulDown(p.tokens[out].balance, weightedShareExitOutRatio)
	}
	if in == out {
		return nil, fmt.Errorf("%w: same token in and out", cmn.ErrInvalidSwap)
	}
	return p.pairLimit(in, out, kind)
}

func (p *WeightedPool) SwapGivenIn(tokenIn, tokenOut *domain.Token, amountIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	switch {
	case p.share.IsSame(tokenOut):
		return p.AddLiquiditySingleTokenExactIn(tokenIn, amountIn, mutate)
	case p.share.IsSame(tokenIn):
		return p.RemoveLiquiditySingleTokenExactIn(tokenOut, amountIn, mutate)
	}
	return p.priceSwap(tokenIn, tokenOut, amountIn, domain.GivenIn, mutate, p.pairLimit, p.curve)
}

func (p *WeightedPool) SwapGivenOut(tokenIn, tokenOut *domain.Token, amountOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	switch {
	case p.share.IsSame(tokenOut):
		return p.AddLiquiditySingleTokenExactOut(tokenIn, amountOut, mutate)
	case p.share.IsSame(tokenIn):
		return p.RemoveLiquiditySingleTokenExactOut(tokenOut, amountOut, mutate)
	}
	return p.priceSwap(tokenIn, tokenOut, amountOut, domain.GivenOut, mutate, p.pairLimit, p.curve)
}

// pairLimit caps token to token swaps at a fixed share of the given side's
// balance.
func (p *WeightedPool) pairLimit(in, out int, kind domain.SwapKind) (*uint256.Int, error) {
	if kind == domain.GivenIn {
		return fixedpoint.MulDown(p.tokens[in].balance, weightedMaxInRatio)
	}
	return fixedpoint.MulDown(p.tokens[out].balance, weightedMaxOutRatio)
}

func (p *WeightedPool) curve(balances []*uint256.Int, in, out int, amount *uint256.Int, kind domain.SwapKind) (*uint256.Int, error) {
	if kind == domain.GivenIn {
		return weightedOutGivenIn(balances[in], p.tokens[in].weight, balances[out], p.tokens[out].weight, amount, p.powVersion)
	}
	return weightedInGivenOut(balances[in], p.tokens[in].weight, balances[out], p.tokens[out].weight, amount, p.powVersion)
}

func (p *WeightedPool) AddLiquiditySingleTokenExactIn(tokenIn *domain.Token, amountIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	if err := requireToken(amountIn, tokenIn); err != nil {
		return nil, err
	}
	i, err := p.tokenIndex(tokenIn)
	if err != nil {
		return nil, err
	}
	if err := p.checkShareLimit(tokenIn, p.share, domain.GivenIn, amountIn.Amount); err != nil {
		return nil, err
	}
	balance, scaledIn, err := p.scaledPair(i, amountIn.Amount)
	if err != nil {
		return nil, err
	}
	sharesOut, err := weightedBptOutGivenExactTokenIn(balance, p.tokens[i].weight, scaledIn, p.totalShares, p.swapFee, p.powVersion)
	if err != nil {
		return nil, err
	}
	if mutate {
		if err := p.applyJoin(i, amountIn.Amount, sharesOut); err != nil {
			return nil, err
		}
	}
	return domain.NewTokenAmount(p.share, sharesOut), nil
}

func (p *WeightedPool) AddLiquiditySingleTokenExactOut(tokenIn *domain.Token, sharesOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	if err := requireToken(sharesOut, p.share); err != nil {
		return nil, err
	}
	i, err := p.tokenIndex(tokenIn)
	if err != nil {
		return nil, err
	}
	if err := p.checkShareLimit(tokenIn, p.share, domain.GivenOut, sharesOut.Amount); err != nil {
		return nil, err
	}
	balance, err := p.scaledBalance(i)
	if err != nil {
		return nil, err
	}
	scaledIn, err := weightedTokenInGivenExactBptOut(balance, p.tokens[i].weight, sharesOut.Amount, p.totalShares, p.swapFee, p.powVersion)
	if err != nil {
		return nil, err
	}
	rawIn, err := p.downscaleUp(i, scaledIn)
	if err != nil {
		return nil, err
	}
	if mutate {
		if err := p.applyJoin(i, rawIn, sharesOut.Amount); err != nil {
			return nil, err
		}
	}
	return domain.NewTokenAmount(tokenIn, rawIn), nil
}

func (p *WeightedPool) RemoveLiquiditySingleTokenExactIn(tokenOut *domain.Token, sharesIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	if err := requireToken(sharesIn, p.share); err != nil {
		return nil, err
	}
	i, err := p.tokenIndex(tokenOut)
	if err != nil {
		return nil, err
	}
	if err := p.checkShareLimit(p.share, tokenOut, domain.GivenIn, sharesIn.Amount); err != nil {
		return nil, err
	}
	balance, err := p.scaledBalance(i)
	if err != nil {
		return nil, err
	}
	scaledOut, err := weightedTokenOutGivenExactBptIn(balance, p.tokens[i].weight, sharesIn.Amount, p.totalShares, p.swapFee, p.powVersion)
	if err != nil {
		return nil, err
	}
	rawOut, err := p.downscaleDown(i, scaledOut)
	if err != nil {
		return nil, err
	}
	if mutate {
		if err := p.applyExit(i, rawOut, sharesIn.Amount); err != nil {
			return nil, err
		}
	}
	return domain.NewTokenAmount(tokenOut, rawOut), nil
}

func (p *WeightedPool) RemoveLiquiditySingleTokenExactOut(tokenOut *domain.Token, amountOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	if err := requireToken(amountOut, tokenOut); err != nil {
		return nil, err
	}
	i, err := p.tokenIndex(tokenOut)
	if err != nil {
		return nil, err
	}
	if err := p.checkShareLimit(p.share, tokenOut, domain.GivenOut, amountOut.Amount); err != nil {
		return nil, err
	}
	balance, scaledOut, err := p.scaledPair(i, amountOut.Amount)
	if err != nil {
		return nil, err
	}
	sharesIn, err := weightedBptInGivenExactTokenOut(balance, p.tokens[i].weight, scaledOut, p.totalShares, p.swapFee, p.powVersion)
	if err != nil {
		return nil, err
	}
	if mutate {
		if err := p.applyExit(i, amountOut.Amount, sharesIn); err != nil {
			return nil, err
		}
	}
	return domain.NewTokenAmount(p.share, sharesIn), nil
}

func (p *WeightedPool) checkShareLimit(tokenIn, tokenOut *domain.Token, kind domain.SwapKind, amount *uint256.Int) error {
	limit, err := p.LimitAmount(tokenIn, tokenOut, kind)
	if err != nil {
		return err
	}
	return checkLimit(amount, limit)
}

func (p *WeightedPool) scaledPair(i int, raw *uint256.Int) (balance, scaled *uint256.Int, err error) {
	if balance, err = p.scaledBalance(i); err != nil {
		return nil, nil, err
	}
	if scaled, err = p.upscale(i, raw); err != nil {
		return nil, nil, err
	}
	return balance, scaled, nil
}

func (p *WeightedPool) applyJoin(i int, rawIn, sharesOut *uint256.Int) error {
	c := &calc{}
	balance := c.add(p.tokens[i].balance, rawIn)
	total := c.add(p.totalShares, sharesOut)
	if c.err != nil {
		return c.err
	}
	p.tokens[i].balance, p.totalShares = balance, total
	return nil
}

func (p *WeightedPool) applyExit(i int, rawOut, sharesIn *uint256.Int) error {
	c := &calc{}
	balance := c.sub(p.tokens[i].balance, rawOut)
	total := c.sub(p.totalShares, sharesIn)
	if c.err != nil {
		return c.err
	}
	p.tokens[i].balance, p.totalShares = balance, total
	return nil
}
