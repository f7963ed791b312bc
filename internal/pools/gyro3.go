package pools

import (
	"fmt"

	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

// Gyro3Pool is the three-token variant with a symmetric price range
// [alpha, 1/alpha] for every pair. The token left out of a swap still
// enters the invariant.
type Gyro3Pool struct {
	basePool
	root3Alpha *uint256.Int
}

var _ Pool = (*Gyro3Pool)(nil)

func NewGyro3Pool(rec *domain.PoolRecord) (*Gyro3Pool, error) {
	if len(rec.Tokens) != 3 {
		return nil, fmt.Errorf("%w: gyro3 pool needs 3 tokens, got %d", cmn.ErrInvalidPath, len(rec.Tokens))
	}
	if rec.Gyro == nil {
		return nil, fmt.Errorf("%w: gyro3 pool %s without params", cmn.ErrInvalidPath, rec.ID.Hex())
	}
	base, err := newBasePool(rec)
	if err != nil {
		return nil, err
	}
	root3Alpha, err := parseAmount(rec.Gyro.Root3Alpha, "root3Alpha")
	if err != nil {
		return nil, err
	}
	if root3Alpha.IsZero() || !root3Alpha.Lt(fixedpoint.One) {
		return nil, fmt.Errorf("%w: gyro3 root3Alpha %s", cmn.ErrInvalidPath, root3Alpha.Dec())
	}
	return &Gyro3Pool{basePool: base, root3Alpha: root3Alpha}, nil
}

func (p *Gyro3Pool) Clone() Pool {
	return &Gyro3Pool{basePool: p.cloneBase(), root3Alpha: clone(p.root3Alpha)}
}

func (p *Gyro3Pool) virtualBalances(balances []*uint256.Int, in, out int) (*uint256.Int, *uint256.Int, error) {
	invariant, err := gyroCubicInvariant(balances, p.root3Alpha)
	if err != nil {
		return nil, nil, err
	}
	c := &calc{}
	offset := c.mulDown(invariant, p.root3Alpha)
	virtIn, virtOut := bufferedVirtualBalances(c, balances[in], balances[out], offset, offset)
	return virtIn, virtOut, c.err
}

func (p *Gyro3Pool) curve(balances []*uint256.Int, in, out int, amount *uint256.Int, kind domain.SwapKind) (*uint256.Int, error) {
	virtIn, virtOut, err := p.virtualBalances(balances, in, out)
	if err != nil {
		return nil, err
	}
	if kind == domain.GivenIn {
		return virtualOutGivenIn(balances[out], virtIn, virtOut, amount)
	}
	return virtualInGivenOut(balances[out], virtIn, virtOut, amount)
}

func (p *Gyro3Pool) limit(in, out int, kind domain.SwapKind) (*uint256.Int, error) {
	balances, err := p.scaledBalances()
	if err != nil {
		return nil, err
	}
	virtIn, virtOut, err := p.virtualBalances(balances, in, out)
	if err != nil {
		return nil, err
	}
	scaled, err := virtualLimit(balances[out], virtIn, virtOut, kind)
	if err != nil {
		return nil, err
	}
	if kind == domain.GivenIn {
		return p.downscaleDown(in, scaled)
	}
	return p.downscaleDown(out, scaled)
}

func (p *Gyro3Pool) LimitAmount(tokenIn, tokenOut *domain.Token, kind domain.SwapKind) (*uint256.Int, error) {
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return p.limit(in, out, kind)
}

func (p *Gyro3Pool) NormalizedLiquidity(tokenIn, tokenOut *domain.Token) (*uint256.Int, error) {
	if v, ok := p.cachedLiquidity(tokenIn, tokenOut); ok {
		return v, nil
	}
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	balances, err := p.scaledBalances()
	if err != nil {
		return nil, err
	}
	_, virtOut, err := p.virtualBalances(balances, in, out)
	if err != nil {
		return nil, err
	}
	return virtOut.Rsh(virtOut, 1), nil
}

func (p *Gyro3Pool) SwapGivenIn(tokenIn, tokenOut *domain.Token, amountIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	return p.priceSwap(tokenIn, tokenOut, amountIn, domain.GivenIn, mutate, p.limit, p.curve)
}

func (p *Gyro3Pool) SwapGivenOut(tokenIn, tokenOut *domain.Token, amountOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	return p.priceSwap(tokenIn, tokenOut, amountOut, domain.GivenOut, mutate, p.limit, p.curve)
}
