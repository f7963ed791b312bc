// Package pools implements the swap and liquidity math of every supported
// pool family over a point-in-time snapshot. Pools are plain values: pricing
// with mutate=false never changes them, and Clone gives an independent copy
// for simulations that must commit balance changes.
package pools

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

// Pool is the capability set shared by every pool family.
type Pool interface {
	ID() common.Hash
	Address() common.Address
	Type() domain.PoolType
	Tokens() []*domain.Token
	SwapFee() *uint256.Int

	// NormalizedLiquidity is an 18-decimal depth estimate for the direction
	// tokenIn -> tokenOut. Zero means the pool cannot take part in a
	// liquidity-weighted split.
	NormalizedLiquidity(tokenIn, tokenOut *domain.Token) (*uint256.Int, error)

	// LimitAmount is the largest amount of tokenIn (GivenIn) or tokenOut
	// (GivenOut), in raw units, the pool accepts for a swap.
	LimitAmount(tokenIn, tokenOut *domain.Token, kind domain.SwapKind) (*uint256.Int, error)

	SwapGivenIn(tokenIn, tokenOut *domain.Token, amountIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error)
	SwapGivenOut(tokenIn, tokenOut *domain.Token, amountOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error)

	Clone() Pool
}

// LiquidityPool is implemented by pools whose own share token can be
// minted or burned against a single underlying token.
type LiquidityPool interface {
	Pool
	ShareToken() *domain.Token
	AddLiquiditySingleTokenExactIn(tokenIn *domain.Token, amountIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error)
	AddLiquiditySingleTokenExactOut(tokenIn *domain.Token, sharesOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error)
	RemoveLiquiditySingleTokenExactIn(tokenOut *domain.Token, sharesIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error)
	RemoveLiquiditySingleTokenExactOut(tokenOut *domain.Token, amountOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error)
}

type poolToken struct {
	token   *domain.Token
	balance *uint256.Int // raw units
	rate    *uint256.Int // 18 decimals, 1e18 for plain tokens
	weight  *uint256.Int // weighted pools only
}

type basePool struct {
	id       common.Hash
	address  common.Address
	chainID  uint64
	poolType domain.PoolType
	swapFee  *uint256.Int
	tokens   []poolToken

	liquidityCache map[string]*uint256.Int
}

func (b *basePool) ID() common.Hash { return b.id }
func (b *basePool) Address() common.Address { return b.address }
func (b *basePool) Type() domain.PoolType { return b.poolType }
func (b *basePool) SwapFee() *uint256.Int { return new(uint256.Int).Set(b.swapFee) }

func (b *basePool) Tokens() []*domain.Token {
	out := make([]*domain.Token, len(b.tokens))
	for i := range b.tokens {
		out[i] = b.tokens[i].token
	}
	return out
}

func (b *basePool) tokenIndex(t *domain.Token) (int, error) {
	for i := range b.tokens {
		if b.tokens[i].token.IsSame(t) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s not in pool %s", cmn.ErrTokenNotInPool, t, b.id.Hex())
}

func (b *basePool) pairIndexes(tokenIn, tokenOut *domain.Token) (int, int, error) {
	in, err := b.tokenIndex(tokenIn)
	if err != nil {
		return 0, 0, err
	}
	out, err := b.tokenIndex(tokenOut)
	if err != nil {
		return 0, 0, err
	}
	if in == out {
		return 0, 0, fmt.Errorf("%w: same token in and out", cmn.ErrInvalidSwap)
	}
	return in, out, nil
}

// scalingFactor converts raw units of token i to 18 decimals including its
// price rate, as an 18-decimal fixed-point multiplier.
func (b *basePool) scalingFactor(i int) *uint256.Int {
	f := new(uint256.Int).Mul(domain.DecimalScalingFactor(b.tokens[i].token.Decimals), b.tokens[i].rate)
	return f
}

func (b *basePool) upscale(i int, raw *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.MulDown(raw, b.scalingFactor(i))
}

func (b *basePool) downscaleDown(i int, scaled *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.DivDown(scaled, b.scalingFactor(i))
}

func (b *basePool) downscaleUp(i int, scaled *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.DivUp(scaled, b.scalingFactor(i))
}

func (b *basePool) scaledBalance(i int) (*uint256.Int, error) {
	return b.upscale(i, b.tokens[i].balance)
}

func (b *basePool) scaledBalances() ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(b.tokens))
	for i := range b.tokens {
		s, err := b.scaledBalance(i)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// subtractSwapFee removes the fee from an input amount, rounding the fee up.
func (b *basePool) subtractSwapFee(amount *uint256.Int) (*uint256.Int, error) {
	fee, err := fixedpoint.MulUp(amount, b.swapFee)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Sub(amount, fee)
}

// addSwapFee grosses a fee-less input amount up, rounding up.
func (b *basePool) addSwapFee(amount *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.DivUp(amount, fixedpoint.Complement(b.swapFee))
}

// applySwap commits a priced swap to the balances.
func (b *basePool) applySwap(in, out int, amountIn, amountOut *uint256.Int) error {
	newOut, err := fixedpoint.Sub(b.tokens[out].balance, amountOut)
	if err != nil {
		return err
	}
	newIn, err := fixedpoint.Add(b.tokens[in].balance, amountIn)
	if err != nil {
		return err
	}
	b.tokens[in].balance = newIn
	b.tokens[out].balance = newOut
	return nil
}

func (b *basePool) cachedLiquidity(tokenIn, tokenOut *domain.Token) (*uint256.Int, bool) {
	if len(b.liquidityCache) == 0 {
		return nil, false
	}
	v, ok := b.liquidityCache[domain.NormalizedLiquidityKey(tokenIn.Address, tokenOut.Address)]
	if !ok {
		return nil, false
	}
	return new(uint256.Int).Set(v), true
}

func (b *basePool) cloneBase() basePool {
	c := *b
	c.swapFee = new(uint256.Int).Set(b.swapFee)
	c.tokens = make([]poolToken, len(b.tokens))
	for i, t := range b.tokens {
		c.tokens[i] = poolToken{
			token:   t.token,
			balance: new(uint256.Int).Set(t.balance),
			rate:    new(uint256.Int).Set(t.rate),
		}
		if t.weight != nil {
			c.tokens[i].weight = new(uint256.Int).Set(t.weight)
		}
	}
	// the cache is read-only after construction and can be shared
	return c
}

func checkLimit(amount, limit *uint256.Int) error {
	if amount.Gt(limit) {
		return fmt.Errorf("%w: amount %s above limit %s", cmn.ErrSwapLimitExceeded, amount.Dec(), limit.Dec())
	}
	return nil
}

func requireToken(a *domain.TokenAmount, t *domain.Token) error {
	if !a.Token.IsSame(t) {
		return fmt.Errorf("%w: amount is in %s, expected %s", cmn.ErrInvalidSwap, a.Token, t)
	}
	return nil
}

// curveFunc prices one direction over 18-decimal balances. For GivenIn the
// amount is already net of fees and the result is the amount out; for
// GivenOut the result is the fee-less amount in.
type curveFunc func(balances []*uint256.Int, in, out int, amount *uint256.Int, kind domain.SwapKind) (*uint256.Int, error)

type limitFunc func(in, out int, kind domain.SwapKind) (*uint256.Int, error)

// priceSwap runs the shared scale, fee, curve, downscale and commit sequence.
func (b *basePool) priceSwap(tokenIn, tokenOut *domain.Token, amount *domain.TokenAmount, kind domain.SwapKind, mutate bool, limit limitFunc, curve curveFunc) (*domain.TokenAmount, error) {
	given := tokenIn
	if kind == domain.GivenOut {
		given = tokenOut
	}
	if err := requireToken(amount, given); err != nil {
		return nil, err
	}
	in, out, err := b.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	maxAmount, err := limit(in, out, kind)
	if err != nil {
		return nil, err
	}
	if err := checkLimit(amount.Amount, maxAmount); err != nil {
		return nil, err
	}
	balances, err := b.scaledBalances()
	if err != nil {
		return nil, err
	}

	if kind == domain.GivenIn {
		scaledIn, err := b.upscale(in, amount.Amount)
		if err != nil {
			return nil, err
		}
		net, err := b.subtractSwapFee(scaledIn)
		if err != nil {
			return nil, err
		}
		scaledOut, err := curve(balances, in, out, net, kind)
		if err != nil {
			return nil, err
		}
		rawOut, err := b.downscaleDown(out, scaledOut)
		if err != nil {
			return nil, err
		}
		if mutate {
			if err := b.applySwap(in, out, amount.Amount, rawOut); err != nil {
				return nil, err
			}
		}
		return domain.NewTokenAmount(tokenOut, rawOut), nil
	}

	scaledOut, err := b.upscale(out, amount.Amount)
	if err != nil {
		return nil, err
	}
	scaledIn, err := curve(balances, in, out, scaledOut, kind)
	if err != nil {
		return nil, err
	}
	gross, err := b.addSwapFee(scaledIn)
	if err != nil {
		return nil, err
	}
	rawIn, err := b.downscaleUp(in, gross)
	if err != nil {
		return nil, err
	}
	if mutate {
		if err := b.applySwap(in, out, rawIn, amount.Amount); err != nil {
			return nil, err
		}
	}
	return domain.NewTokenAmount(tokenIn, rawIn), nil
}
