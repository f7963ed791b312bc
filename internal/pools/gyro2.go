package pools

import (
	"fmt"

	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
)

// Gyro2Pool is a two-token concentrated pool: a constant product over
// balances shifted by virtual offsets derived from the price range
// [alpha, beta].
type Gyro2Pool struct {
	basePool
	sqrtAlpha *uint256.Int
	sqrtBeta  *uint256.Int
}

var _ Pool = (*Gyro2Pool)(nil)

func NewGyro2Pool(rec *domain.PoolRecord) (*Gyro2Pool, error) {
	if len(rec.Tokens) != 2 {
		return nil, fmt.Errorf("%w: gyro2 pool needs 2 tokens, got %d", cmn.ErrInvalidPath, len(rec.Tokens))
	}
	if rec.Gyro == nil {
		return nil, fmt.Errorf("%w: gyro2 pool %s without params", cmn.ErrInvalidPath, rec.ID.Hex())
	}
	base, err := newBasePool(rec)
	if err != nil {
		return nil, err
	}
	sqrtAlpha, err := parseAmount(rec.Gyro.SqrtAlpha, "sqrtAlpha")
	if err != nil {
		return nil, err
	}
	sqrtBeta, err := parseAmount(rec.Gyro.SqrtBeta, "sqrtBeta")
	if err != nil {
		return nil, err
	}
	if sqrtAlpha.IsZero() || !sqrtAlpha.Lt(sqrtBeta) {
		return nil, fmt.Errorf("%w: gyro2 range %s..%s", cmn.ErrInvalidPath, sqrtAlpha.Dec(), sqrtBeta.Dec())
	}
	return &Gyro2Pool{basePool: base, sqrtAlpha: sqrtAlpha, sqrtBeta: sqrtBeta}, nil
}

func (p *Gyro2Pool) Clone() Pool {
	return &Gyro2Pool{basePool: p.cloneBase(), sqrtAlpha: clone(p.sqrtAlpha), sqrtBeta: clone(p.sqrtBeta)}
}

// virtualBalances returns balanceIn and balanceOut plus their buffered
// offsets, L/sqrtBeta for token 0 and L*sqrtAlpha for token 1.
func (p *Gyro2Pool) virtualBalances(balances []*uint256.Int, in, out int) (*uint256.Int, *uint256.Int, error) {
	invariant, err := gyroQuadraticInvariant(balances, p.sqrtAlpha, p.sqrtBeta)
	if err != nil {
		return nil, nil, err
	}
	c := &calc{}
	offsets := [2]*uint256.Int{
		c.divDown(invariant, p.sqrtBeta),
		c.mulDown(invariant, p.sqrtAlpha),
	}
	virtIn, virtOut := bufferedVirtualBalances(c, balances[in], balances[out], offsets[in], offsets[out])
	return virtIn, virtOut, c.err
}

func (p *Gyro2Pool) curve(balances []*uint256.Int, in, out int, amount *uint256.Int, kind domain.SwapKind) (*uint256.Int, error) {
	virtIn, virtOut, err := p.virtualBalances(balances, in, out)
	if err != nil {
		return nil, err
	}
	if kind == domain.GivenIn {
		return virtualOutGivenIn(balances[out], virtIn, virtOut, amount)
	}
	return virtualInGivenOut(balances[out], virtIn, virtOut, amount)
}

func (p *Gyro2Pool) limit(in, out int, kind domain.SwapKind) (*uint256.Int, error) {
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

func (p *Gyro2Pool) LimitAmount(tokenIn, tokenOut *domain.Token, kind domain.SwapKind) (*uint256.Int, error) {
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return p.limit(in, out, kind)
}

// NormalizedLiquidity is half the virtual balance of tokenOut.
func (p *Gyro2Pool) NormalizedLiquidity(tokenIn, tokenOut *domain.Token) (*uint256.Int, error) {
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

func (p *Gyro2Pool) SwapGivenIn(tokenIn, tokenOut *domain.Token, amountIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	return p.priceSwap(tokenIn, tokenOut, amountIn, domain.GivenIn, mutate, p.limit, p.curve)
}

func (p *Gyro2Pool) SwapGivenOut(tokenIn, tokenOut *domain.Token, amountOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	return p.priceSwap(tokenIn, tokenOut, amountOut, domain.GivenOut, mutate, p.limit, p.curve)
}
