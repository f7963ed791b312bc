package pools

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

// GyroEPool is the elliptic concentrated pool (ECLP). Its curve is a
// rotated and stretched ellipse bounded to the price range [alpha, beta].
type GyroEPool struct {
	basePool
	params  *eclpParams
	derived *eclpDerived
}

var _ Pool = (*GyroEPool)(nil)

func NewGyroEPool(rec *domain.PoolRecord) (*GyroEPool, error) {
	if len(rec.Tokens) != 2 {
		return nil, fmt.Errorf("%w: gyroE pool needs 2 tokens, got %d", cmn.ErrInvalidPath, len(rec.Tokens))
	}
	if rec.ECLP == nil {
		return nil, fmt.Errorf("%w: gyroE pool %s without params", cmn.ErrInvalidPath, rec.ID.Hex())
	}
	base, err := newBasePool(rec)
	if err != nil {
		return nil, err
	}
	params, err := parseECLPParams(rec.ECLP)
	if err != nil {
		return nil, err
	}
	derived, err := parseECLPDerived(rec.ECLP)
	if err != nil {
		return nil, err
	}
	if derived == nil {
		derived = deriveECLP(params)
	}
	return &GyroEPool{basePool: base, params: params, derived: derived}, nil
}

type signedField struct {
	name string
	raw  string
	dst  **big.Int
}

func parseECLPParams(e *domain.ECLPParams) (*eclpParams, error) {
	p := &eclpParams{}
	fields := []signedField{
		{"alpha", e.Alpha, &p.alpha},
		{"beta", e.Beta, &p.beta},
		{"c", e.C, &p.c},
		{"s", e.S, &p.s},
		{"lambda", e.Lambda, &p.lambda},
	}
	for _, f := range fields {
		v, err := parseSigned(f.raw, f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	if p.alpha.Sign() <= 0 || p.alpha.Cmp(p.beta) >= 0 {
		return nil, fmt.Errorf("%w: eclp range %s..%s", cmn.ErrInvalidPath, p.alpha, p.beta)
	}
	if p.lambda.Cmp(big1e18) < 0 {
		return nil, fmt.Errorf("%w: eclp lambda %s below 1", cmn.ErrInvalidPath, p.lambda)
	}
	if p.c.Sign() < 0 || p.s.Sign() < 0 {
		return nil, fmt.Errorf("%w: eclp rotation must be in the first quadrant", cmn.ErrInvalidPath)
	}
	return p, nil
}

// parseECLPDerived returns nil when the record carries no derived values.
func parseECLPDerived(e *domain.ECLPParams) (*eclpDerived, error) {
	raw := []string{e.TauAlphaX, e.TauAlphaY, e.TauBetaX, e.TauBetaY, e.U, e.V, e.W, e.Z, e.DSq}
	for _, s := range raw {
		if s == "" {
			return nil, nil
		}
	}
	vals := make([]*big.Int, len(raw))
	for i, s := range raw {
		v, err := parseSigned(s, "eclp derived")
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return &eclpDerived{
		tauAlpha: vec2{x: vals[0], y: vals[1]},
		tauBeta:  vec2{x: vals[2], y: vals[3]},
		u:        vals[4],
		v:        vals[5],
		w:        vals[6],
		z:        vals[7],
		dSq:      vals[8],
	}, nil
}

// Params and derived values are never mutated, so clones share them.
func (p *GyroEPool) Clone() Pool {
	return &GyroEPool{basePool: p.cloneBase(), params: p.params, derived: p.derived}
}

// invariantVector returns (L + 2err, L): the x component over-estimates and
// the y component under-estimates the invariant.
func (p *GyroEPool) invariantVector(balances [2]*big.Int) (vec2, error) {
	inv, errBound, err := eclpInvariantWithError(balances, p.params, p.derived)
	if err != nil {
		return vec2{}, err
	}
	return vec2{x: badd(inv, bmul(errBound, 2)), y: inv}, nil
}

func signedPair(balances []*uint256.Int) [2]*big.Int {
	return [2]*big.Int{fixedpoint.ToSigned(balances[0]), fixedpoint.ToSigned(balances[1])}
}

func (p *GyroEPool) curve(balances []*uint256.Int, in, out int, amount *uint256.Int, kind domain.SwapKind) (*uint256.Int, error) {
	b := signedPair(balances)
	r, err := p.invariantVector(b)
	if err != nil {
		return nil, err
	}
	var res *big.Int
	if kind == domain.GivenIn {
		res, err = eclpOutGivenIn(b, fixedpoint.ToSigned(amount), in == 0, p.params, p.derived, r)
	} else {
		res, err = eclpInGivenOut(b, fixedpoint.ToSigned(amount), in == 0, p.params, p.derived, r)
	}
	if err != nil {
		return nil, err
	}
	return fixedpoint.FromSigned(res)
}

func (p *GyroEPool) limit(in, out int, kind domain.SwapKind) (*uint256.Int, error) {
	balances, err := p.scaledBalances()
	if err != nil {
		return nil, err
	}
	if kind == domain.GivenOut {
		scaled, err := fixedpoint.MulDown(balances[out], gyroLimitFactor)
		if err != nil {
			return nil, err
		}
		return p.downscaleDown(out, scaled)
	}

	b := signedPair(balances)
	r, err := p.invariantVector(b)
	if err != nil {
		return nil, err
	}
	var bound *big.Int
	if in == 0 {
		bound = eclpMaxBalances0(p.params, p.derived, r)
	} else {
		bound = eclpMaxBalances1(p.params, p.derived, r)
	}
	room := bsub(bound, b[in])
	if room.Sign() <= 0 {
		return new(uint256.Int), nil
	}
	roomU, err := fixedpoint.FromSigned(room)
	if err != nil {
		return nil, err
	}
	scaled, err := fixedpoint.MulDown(roomU, gyroLimitFactor)
	if err != nil {
		return nil, err
	}
	return p.downscaleDown(in, scaled)
}

func (p *GyroEPool) LimitAmount(tokenIn, tokenOut *domain.Token, kind domain.SwapKind) (*uint256.Int, error) {
	in, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return p.limit(in, out, kind)
}

func (p *GyroEPool) NormalizedLiquidity(tokenIn, tokenOut *domain.Token) (*uint256.Int, error) {
	if v, ok := p.cachedLiquidity(tokenIn, tokenOut); ok {
		return v, nil
	}
	_, out, err := p.pairIndexes(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return p.scaledBalance(out)
}

func (p *GyroEPool) SwapGivenIn(tokenIn, tokenOut *domain.Token, amountIn *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	return p.priceSwap(tokenIn, tokenOut, amountIn, domain.GivenIn, mutate, p.limit, p.curve)
}

func (p *GyroEPool) SwapGivenOut(tokenIn, tokenOut *domain.Token, amountOut *domain.TokenAmount, mutate bool) (*domain.TokenAmount, error) {
	return p.priceSwap(tokenIn, tokenOut, amountOut, domain.GivenOut, mutate, p.limit, p.curve)
}
