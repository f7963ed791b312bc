package pools

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

// fxSafetyFactor shrinks the exact-out limit so micro-fees charged on top of
// the requested output cannot push the input side past its halt.
var fxSafetyFactor = mustBig("990000000000000000000000000000000000")

// FxPool is a two-token foreign-exchange curve. Balances are valued in a
// common numeraire through per-token oracle rates and the curve charges a
// growing fee as the pool drifts from a 50/50 split, halting outright past
// alpha. The vault swap fee is not used: epsilon is the trading fee.
type FxPool struct {
	basePool
	curve    *fxCurve
	rates    []*big.Int
	rateUnit []*big.Int // 10^(decimals + rateDecimals)
}

var _ Pool = (*FxPool)(nil)

func NewFxPool(rec *domain.PoolRecord) (*FxPool, error) {
	if len(rec.Tokens) != 2 {
		return nil, fmt.Errorf("%w: fx pool needs 2 tokens, got %d", cmn.ErrInvalidPath, len(rec.Tokens))
	}
	if rec.Fx == nil {
		return nil, fmt.Errorf("%w: fx pool %s without params", cmn.ErrInvalidPath, rec.ID.Hex())
	}
	base, err := newBasePool(rec)
	if err != nil {
		return nil, err
	}
	curve, err := parseFxCurve(rec.Fx)
	if err != nil {
		return nil, err
	}
	p := &FxPool{
		basePool: base,
		curve:    curve,
		rates:    make([]*big.Int, 2),
		rateUnit: make([]*big.Int, 2),
	}
	for i, t := range rec.Tokens {
		rate, err := parseSigned(t.FxRate, "fxRate")
		if err != nil {
			return nil, err
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("%w: fx rate %s for %s", cmn.ErrInvalidPath, rate, t.Address.Hex())
		}
		p.rates[i] = rate
		p.rateUnit[i] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(t.Decimals)+int64(t.FxRateDecimals)), nil)
	}
	return p, nil
}

// parseFxCurve lifts the 18-decimal parameters to 36 decimals.
func parseFxCurve(f *domain.FxParams) (*fxCurve, error) {
	c := &fxCurve{}
	fields := []signedField{
		{"alpha", f.Alpha, &c.alpha},
		{"beta", f.Beta, &c.beta},
		{"delta", f.Delta, &c.delta},
		{"epsilon", f.Epsilon, &c.epsilon},
		{"lambda", f.Lambda, &c.lambda},
	}
	for _, fd := range fields {
		v, err := parseSigned(fd.raw, fd.name)
		if err != nil {
			return nil, err
		}
		if v.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative fx %s", cmn.ErrInvalidPath, fd.name)
		}
		*fd.dst = v.Mul(v, big1e18)
	}
	if c.alpha.Sign() == 0 || c.alpha.Cmp(fxOne) >= 0 {
		return nil, fmt.Errorf("%w: fx alpha must be in (0, 1)", cmn.ErrInvalidPath)
	}
	if c.beta.Cmp(c.alpha) >= 0 {
		return nil, fmt.Errorf("%w: fx beta must be below alpha", cmn.ErrInvalidPath)
	}
	if c.epsilon.Cmp(fxOne) >= 0 || c.lambda.Cmp(fxOne) > 0 {
		return nil, fmt.Errorf("%w: fx epsilon or lambda out of range", cmn.ErrInvalidPath)
	}
	return c, nil
}

func (p *FxPool) Clone() Pool {
	return &FxPool{basePool: p.cloneBase(), curve: p.curve, rates: p.rates, rateUnit: p.rateUnit}
}

// toNumeraire converts raw units of token i, truncating.
func (p *FxPool) toNumeraire(i int, raw *big.Int) *big.Int {
	z := new(big.Int).Mul(raw, p.rates[i])
	z.Mul(z, fxOne)
	return z.Quo(z, p.rateUnit[i])
}

// fromNumeraire is the truncating inverse of toNumeraire.
func (p *FxPool) fromNumeraire(i int, num *big.Int) *big.Int {
	z := new(big.Int).Mul(num, p.rateUnit[i])
	return z.Quo(z, new(big.Int).Mul(p.rates[i], fxOne))
}

func (p *FxPool) reserves(in, out int) (*big.Int, *big.Int) {
	return p.toNumeraire(in, fixedpoint.ToSigned(p.tokens[in].balance)),
		p.toNumeraire(out, fixedpoint.ToSigned(p.tokens[out].balance))
}

// limit is the room between (1+alpha)/2 of the pool's numeraire value and the
// given side's reserve: tokenIn for exact-in, tokenOut for exact-out.
func (p *FxPool) limit(in, out int, kind domain.SwapKind) (*uint256.Int, error) {
	reserveIn, reserveOut := p.reserves(in, out)
	band := bquo(mul36(badd(fxOne, p.curve.alpha), badd(reserveIn, reserveOut)), big.NewInt(2))
	if kind == domain.GivenIn {
		room := bsub(band, reserveIn)
		if room.Sign() <= 0 {
			return new(uint256.Int), nil
		}
		return fixedpoint.FromSigned(p.fromNumeraire(in, room))
	}
	room := bsub(band, reserveOut)
	if room.Sign() <= 0 {
		return new(uint256.Int), nil
	}
	return fixedpoint.FromSigned(p.fromNumeraire(out, mul36(room, fxSafetyFactor)))
}

func (p *FxPool) LimitAmount(tokenIn, tokenOut *domain.Token, kind domain.SwapKind) (*uint256.Int, error) {
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return p.limit(in, out, kind)
}

// NormalizedLiquidity is half the pool's numeraire value at 18 decimals.
func (p *FxPool) NormalizedLiquidity(tokenIn, tokenOut *domain.Token) (*uint256.Int, error) {
	if v, ok := p.cachedLiquidity(tokenIn, tokenOut); ok {
		return v, nil
	}
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut := p.reserves(in, out)
	half := bquo(badd(reserveIn, reserveOut), big.NewInt(2))
	return fixedpoint.FromSigned(bquo(half, big1e18))
}

func (p *FxPool) swap(tokenIn, tokenOut *domain.Token, amount *domain.TokenAmount, kind domain.SwapKind, mutate bool) (*domain.TokenAmount, error) {
	given := tokenIn
	if kind == domain.GivenOut {
		given = tokenOut
	}
	if err := requireToken(amount, given); err != nil {
		return nil, err
	}
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	maxAmount, err := p.limit(in, out, kind)
	if err != nil {
		return nil, err
	}
	if err := checkLimit(amount.Amount, maxAmount); err != nil {
		return nil, err
	}

	reserveIn, reserveOut := p.reserves(in, out)
	var rawIn, rawOut *uint256.Int
	if kind == domain.GivenIn {
		num := p.toNumeraire(in, fixedpoint.ToSigned(amount.Amount))
		numOut, err := p.curve.outGivenIn(reserveIn, reserveOut, num)
		if err != nil {
			return nil, err
		}
		if rawOut, err = fixedpoint.FromSigned(p.fromNumeraire(out, numOut)); err != nil {
			return nil, err
		}
		rawIn = amount.Amount
	} else {
		num := p.toNumeraire(out, fixedpoint.ToSigned(amount.Amount))
		numIn, err := p.curve.inGivenOut(reserveIn, reserveOut, num)
		if err != nil {
			return nil, err
		}
		if rawIn, err = fixedpoint.FromSigned(p.fromNumeraire(in, numIn)); err != nil {
			return nil, err
		}
		rawOut = amount.Amount
	}

	if mutate {
		if err := p.applySwap(in, out, rawIn, rawOut); err != nil {
			return nil, err
		}
	}
	if kind == domain.GivenIn {
		return domain.NewTokenAmount(tokenOut, rawOut), nil
	}
	return domain.NewTokenAmount(tokenIn, rawIn), nil
}

func (p *FxPool) SwapGivenIn(tokenIn, tokenOut *domain.Token, amountIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	return p.swap(tokenIn, tokenOut, amountIn, domain.GivenIn, mutate)
}

func (p *FxPool) SwapGivenOut(tokenIn, tokenOut *domain.Token, amountOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	return p.swap(tokenIn, tokenOut, amountOut, domain.GivenOut, mutate)
}
