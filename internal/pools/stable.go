package pools

import (
	"fmt"

	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

var (
	stableMaxOutRatio       = u(999999e12)
	stableShareExitInRatio  = u(3e17)
	stableShareExitOutRatio = u(25e16)
)

// stableBase holds the curve shared by stable, meta-stable and composable
// pools. bptIndex is -1 unless the pool's own share token sits in the token
// list, in which case the invariant math skips it.
type stableBase struct {
	basePool
	amp      *uint256.Int // with ampPrecision
	bptIndex int
}

func newStableBase(rec *domain.PoolRecord) (stableBase, error) {
	base, err := newBasePool(rec)
	if err != nil {
		return stableBase{}, err
	}
	amp, err := parseAmount(rec.Amp, "amp")
	if err != nil {
		return stableBase{}, err
	}
	if amp.IsZero() {
		return stableBase{}, fmt.Errorf("%w: zero amp", cmn.ErrInvalidPath)
	}
	return stableBase{
		basePool: base,
		amp:      new(uint256.Int).Mul(amp, ampPrecision),
		bptIndex: -1,
	}, nil
}

func (p *stableBase) cloneStable() stableBase {
	return stableBase{basePool: p.cloneBase(), amp: clone(p.amp), bptIndex: p.bptIndex}
}

// mathIndex maps a token-list index onto the BPT-free balance vector.
func (p *stableBase) mathIndex(i int) int {
	if p.bptIndex >= 0 && i > p.bptIndex {
		return i - 1
	}
	return i
}

// mathBalances returns scaled balances without the share token.
func (p *stableBase) mathBalances() ([]*uint256.Int, error) {
	all, err := p.scaledBalances()
	if err != nil {
		return nil, err
	}
	if p.bptIndex < 0 {
		return all, nil
	}
	out := make([]*uint256.Int, 0, len(all)-1)
	out = append(out, all[:p.bptIndex]...)
	return append(out, all[p.bptIndex+1:]...), nil
}

func (p *stableBase) stableLiquidity(tokenIn, tokenOut *domain.Token) (*uint256.Int, error) {
	if v, ok := p.cachedLiquidity(tokenIn, tokenOut); ok {
		return v, nil
	}
	_, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	balanceOut, err := p.scaledBalance(out)
	if err != nil {
		return nil, err
	}
	amp := new(uint256.Int).Div(p.amp, ampPrecision)
	return fixedpoint.Mul(balanceOut, amp)
}

func (p *stableBase) tokenLimit(in, out int, kind domain.SwapKind) (*uint256.Int, error) {
	if kind == domain.GivenIn {
		balanceOut, err := p.scaledBalance(out)
		if err != nil {
			return nil, err
		}
		return p.downscaleDown(in, balanceOut)
	}
	return fixedpoint.MulDown(p.tokens[out].balance, stableMaxOutRatio)
}

func (p *stableBase) tokenSwap(in, out int, amount *uint256.Int, kind domain.SwapKind, mutate bool) (*uint256.Int, error) {
	limit, err := p.tokenLimit(in, out, kind)
	if err != nil {
		return nil, err
	}
	if err := checkLimit(amount, limit); err != nil {
		return nil, err
	}
	balances, err := p.mathBalances()
	if err != nil {
		return nil, err
	}
	invariant, err := stableInvariant(p.amp, balances)
	if err != nil {
		return nil, err
	}
	mi, mo := p.mathIndex(in), p.mathIndex(out)

	if kind == domain.GivenIn {
		scaledIn, err := p.upscale(in, amount)
		if err != nil {
			return nil, err
		}
		net, err := p.subtractSwapFee(scaledIn)
		if err != nil {
			return nil, err
		}
		scaledOut, err := stableOutGivenIn(p.amp, balances, mi, mo, net, invariant)
		if err != nil {
			return nil, err
		}
		rawOut, err := p.downscaleDown(out, scaledOut)
		if err != nil {
			return nil, err
		}
		if mutate {
			if err := p.applySwap(in, out, amount, rawOut); err != nil {
				return nil, err
			}
		}
		return rawOut, nil
	}

	scaledOut, err := p.upscale(out, amount)
	if err != nil {
		return nil, err
	}
	scaledIn, err := stableInGivenOut(p.amp, balances, mi, mo, scaledOut, invariant)
	if err != nil {
		return nil, err
	}
	gross, err := p.addSwapFee(scaledIn)
	if err != nil {
		return nil, err
	}
	rawIn, err := p.downscaleUp(in, gross)
	if err != nil {
		return nil, err
	}
	if mutate {
		if err := p.applySwap(in, out, rawIn, amount); err != nil {
			return nil, err
		}
	}
	return rawIn, nil
}

// StablePool covers the legacy stable and meta-stable families. Meta-stable
// pools differ only by carrying price rates, which the scaling already
// applies.
type StablePool struct {
	stableBase
}

var _ Pool = (*StablePool)(nil)

func NewStablePool(rec *domain.PoolRecord) (*StablePool, error) {
	base, err := newStableBase(rec)
	if err != nil {
		return nil, err
	}
	return &StablePool{stableBase: base}, nil
}

func (p *StablePool) Clone() Pool {
	return &StablePool{stableBase: p.cloneStable()}
}

func (p *StablePool) NormalizedLiquidity(tokenIn, tokenOut *domain.Token) (*uint256.Int, error) {
	return p.stableLiquidity(tokenIn, tokenOut)
}

func (p *StablePool) LimitAmount(tokenIn, tokenOut *domain.Token, kind domain.SwapKind) (*uint256.Int, error) {
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return p.tokenLimit(in, out, kind)
}

func (p *StablePool) SwapGivenIn(tokenIn, tokenOut *domain.Token, amountIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	if err := requireToken(amountIn, tokenIn); err != nil {
		return nil, err
	}
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	rawOut, err := p.tokenSwap(in, out, amountIn.Amount, domain.GivenIn, mutate)
	if err != nil {
		return nil, err
	}
	return domain.NewTokenAmount(tokenOut, rawOut), nil
}

func (p *StablePool) SwapGivenOut(tokenIn, tokenOut *domain.Token, amountOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	if err := requireToken(amountOut, tokenOut); err != nil {
		return nil, err
	}
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	rawIn, err := p.tokenSwap(in, out, amountOut.Amount, domain.GivenOut, mutate)
	if err != nil {
		return nil, err
	}
	return domain.NewTokenAmount(tokenIn, rawIn), nil
}

// ComposableStablePool keeps its share token inside the token list. Swaps
// with the share token on one side are single-token joins or exits.
type ComposableStablePool struct {
	stableBase
	totalShares *uint256.Int
}

var _ LiquidityPool = (*ComposableStablePool)(nil)

func NewComposableStablePool(rec *domain.PoolRecord) (*ComposableStablePool, error) {
	base, err := newStableBase(rec)
	if err != nil {
		return nil, err
	}
	for i, t := range base.tokens {
		if t.token.Address == rec.Address {
			base.bptIndex = i
			// the share token is never rate-scaled
			base.tokens[i].rate = clone(fixedpoint.One)
			break
		}
	}
	if base.bptIndex < 0 {
		return nil, fmt.Errorf("%w: composable pool %s without share token", cmn.ErrInvalidPath, rec.ID.Hex())
	}
	if len(base.tokens) < 3 {
		return nil, fmt.Errorf("%w: composable pool %s has no pair to trade", cmn.ErrInvalidPath, rec.ID.Hex())
	}
	totalShares, err := parseAmount(rec.TotalShares, "totalShares")
	if err != nil {
		return nil, err
	}
	if totalShares.IsZero() {
		return nil, fmt.Errorf("%w: composable pool %s has no supply", cmn.ErrInvalidPath, rec.ID.Hex())
	}
	return &ComposableStablePool{stableBase: base, totalShares: totalShares}, nil
}

func (p *ComposableStablePool) ShareToken() *domain.Token { return p.tokens[p.bptIndex].token }

func (p *ComposableStablePool) Clone() Pool {
	return &ComposableStablePool{stableBase: p.cloneStable(), totalShares: clone(p.totalShares)}
}

func (p *ComposableStablePool) NormalizedLiquidity(tokenIn, tokenOut *domain.Token) (*uint256.Int, error) {
	return p.stableLiquidity(tokenIn, tokenOut)
}

func (p *ComposableStablePool) LimitAmount(tokenIn, tokenOut *domain.Token, kind domain.SwapKind) (*uint256.Int, error) {
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	switch {
	case out == p.bptIndex:
		if kind == domain.GivenIn {
			return clone(p.tokens[in].balance), nil
		}
		return clone(p.totalShares), nil
	case in == p.bptIndex:
		if kind == domain.GivenIn {
			return fixedpoint.MulDown(p.totalShares, stableShareExitInRatio)
		}
		return fixedpoint.MulDown(p.tokens[out].balance, stableShareExitOutRatio)
	}
	return p.tokenLimit(in, out, kind)
}

func (p *ComposableStablePool) SwapGivenIn(tokenIn, tokenOut *domain.Token, amountIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	if err := requireToken(amountIn, tokenIn); err != nil {
		return nil, err
	}
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	switch p.bptIndex {
	case out:
		return p.AddLiquiditySingleTokenExactIn(tokenIn, amountIn, mutate)
	case in:
		return p.RemoveLiquiditySingleTokenExactIn(tokenOut, amountIn, mutate)
	}
	rawOut, err := p.tokenSwap(in, out, amountIn.Amount, domain.GivenIn, mutate)
	if err != nil {
		return nil, err
	}
	return domain.NewTokenAmount(tokenOut, rawOut), nil
}

func (p *ComposableStablePool) SwapGivenOut(tokenIn, tokenOut *domain.Token, amountOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	if err := requireToken(amountOut, tokenOut); err != nil {
		return nil, err
	}
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	switch p.bptIndex {
	case out:
		return p.AddLiquiditySingleTokenExactOut(tokenIn, amountOut, mutate)
	case in:
		return p.RemoveLiquiditySingleTokenExactOut(tokenOut, amountOut, mutate)
	}
	rawIn, err := p.tokenSwap(in, out, amountOut.Amount, domain.GivenOut, mutate)
	if err != nil {
		return nil, err
	}
	return domain.NewTokenAmount(tokenIn, rawIn), nil
}

// memberIndex resolves a non-share token of the pool.
func (p *ComposableStablePool) memberIndex(t *domain.Token) (int, error) {
	i, err := p.tokenIndex(t)
	if err != nil {
		return 0, err
	}
	if i == p.bptIndex {
		return 0, fmt.Errorf("%w: share token cannot join or exit itself", cmn.ErrInvalidSwap)
	}
	return i, nil
}

// shareState gathers what every join and exit needs.
func (p *ComposableStablePool) shareState(i int, tokenIn, tokenOut *domain.Token, kind domain.SwapKind, amount *uint256.Int) ([]*uint256.Int, *uint256.Int, error) {
	limit, err := p.LimitAmount(tokenIn, tokenOut, kind)
	if err != nil {
		return nil, nil, err
	}
	if err := checkLimit(amount, limit); err != nil {
		return nil, nil, err
	}
	balances, err := p.mathBalances()
	if err != nil {
		return nil, nil, err
	}
	invariant, err := stableInvariant(p.amp, balances)
	if err != nil {
		return nil, nil, err
	}
	return balances, invariant, nil
}

func (p *ComposableStablePool) AddLiquiditySingleTokenExactIn(tokenIn *domain.Token, amountIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	if err := requireToken(amountIn, tokenIn); err != nil {
		return nil, err
	}
	i, err := p.memberIndex(tokenIn)
	if err != nil {
		return nil, err
	}
	share := p.ShareToken()
	balances, invariant, err := p.shareState(i, tokenIn, share, domain.GivenIn, amountIn.Amount)
	if err != nil {
		return nil, err
	}
	scaledIn, err := p.upscale(i, amountIn.Amount)
	if err != nil {
		return nil, err
	}
	amounts := singleAmount(len(balances), p.mathIndex(i), scaledIn)
	sharesOut, err := stableBptOutGivenExactTokensIn(p.amp, balances, amounts, p.totalShares, invariant, p.swapFee)
	if err != nil {
		return nil, err
	}
	if mutate {
		if err := p.applyShares(i, amountIn.Amount, sharesOut, true); err != nil {
			return nil, err
		}
	}
	return domain.NewTokenAmount(share, sharesOut), nil
}

func (p *ComposableStablePool) AddLiquiditySingleTokenExactOut(tokenIn *domain.Token, sharesOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	share := p.ShareToken()
	if err := requireToken(sharesOut, share); err != nil {
		return nil, err
	}
	i, err := p.memberIndex(tokenIn)
	if err != nil {
		return nil, err
	}
	balances, invariant, err := p.shareState(i, tokenIn, share, domain.GivenOut, sharesOut.Amount)
	if err != nil {
		return nil, err
	}
	scaledIn, err := stableTokenInGivenExactBptOut(p.amp, balances, p.mathIndex(i), sharesOut.Amount, p.totalShares, invariant, p.swapFee)
	if err != nil {
		return nil, err
	}
	rawIn, err := p.downscaleUp(i, scaledIn)
	if err != nil {
		return nil, err
	}
	if mutate {
		if err := p.applyShares(i, rawIn, sharesOut.Amount, true); err != nil {
			return nil, err
		}
	}
	return domain.NewTokenAmount(tokenIn, rawIn), nil
}

func (p *ComposableStablePool) RemoveLiquiditySingleTokenExactIn(tokenOut *domain.Token, sharesIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	share := p.ShareToken()
	if err := requireToken(sharesIn, share); err != nil {
		return nil, err
	}
	i, err := p.memberIndex(tokenOut)
	if err != nil {
		return nil, err
	}
	balances, invariant, err := p.shareState(i, share, tokenOut, domain.GivenIn, sharesIn.Amount)
	if err != nil {
		return nil, err
	}
	scaledOut, err := stableTokenOutGivenExactBptIn(p.amp, balances, p.mathIndex(i), sharesIn.Amount, p.totalShares, invariant, p.swapFee)
	if err != nil {
		return nil, err
	}
	rawOut, err := p.downscaleDown(i, scaledOut)
	if err != nil {
		return nil, err
	}
	if mutate {
		if err := p.applyShares(i, rawOut, sharesIn.Amount, false); err != nil {
			return nil, err
		}
	}
	return domain.NewTokenAmount(tokenOut, rawOut), nil
}

func (p *ComposableStablePool) RemoveLiquiditySingleTokenExactOut(tokenOut *domain.Token, amountOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	if err := requireToken(amountOut, tokenOut); err != nil {
		return nil, err
	}
	i, err := p.memberIndex(tokenOut)
	if err != nil {
		return nil, err
	}
	share := p.ShareToken()
	balances, invariant, err := p.shareState(i, share, tokenOut, domain.GivenOut, amountOut.Amount)
	if err != nil {
		return nil, err
	}
	scaledOut, err := p.upscale(i, amountOut.Amount)
	if err != nil {
		return nil, err
	}
	amounts := singleAmount(len(balances), p.mathIndex(i), scaledOut)
	sharesIn, err := stableBptInGivenExactTokensOut(p.amp, balances, amounts, p.totalShares, invariant, p.swapFee)
	if err != nil {
		return nil, err
	}
	if mutate {
		if err := p.applyShares(i, amountOut.Amount, sharesIn, false); err != nil {
			return nil, err
		}
	}
	return domain.NewTokenAmount(share, sharesIn), nil
}

// applyShares commits a join (token in, shares minted) or an exit (shares
// burned, token out).
func (p *ComposableStablePool) applyShares(i int, rawToken, shares *uint256.Int, join bool) error {
	c := &calc{}
	var balance, total *uint256.Int
	if join {
		balance = c.add(p.tokens[i].balance, rawToken)
		total = c.add(p.totalShares, shares)
	} else {
		balance = c.sub(p.tokens[i].balance, rawToken)
		total = c.sub(p.totalShares, shares)
	}
	if c.err != nil {
		return c.err
	}
	p.tokens[i].balance, p.totalShares = balance, total
	return nil
}
