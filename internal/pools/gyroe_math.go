package pools

import (
	"fmt"
	"math/big"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

var (
	mulDownMag    = fixedpoint.MulDownMag
	mulUpMag      = fixedpoint.MulUpMag
	divDownMag    = fixedpoint.DivDownMag
	divUpMag      = fixedpoint.DivUpMag
	mulXp         = fixedpoint.MulXp
	divXp         = fixedpoint.DivXp
	mulDownXpToNp = fixedpoint.MulDownXpToNp
	mulUpXpToNp   = fixedpoint.MulUpXpToNp
)

var (
	oneXp          = fixedpoint.OneXp
	eclpMaxBalance = mustBig("10000000000000000000000000000000000")    // 1e34
	eclpMaxInv     = mustBig("30000000000000000000000000000000000000") // 3e37
	big1e9         = big.NewInt(1e9)
	big1e36        = mustBig("1000000000000000000000000000000000000")

	errECLPInvariant = fmt.Errorf("%w: eclp invariant out of range", cmn.ErrInvalidSwap)
)

type vec2 struct {
	x, y *big.Int
}

// eclpParams is the ellipse definition in 18 decimals.
type eclpParams struct {
	alpha, beta, c, s, lambda *big.Int
}

// eclpDerived holds the 38-decimal values derived from eclpParams.
type eclpDerived struct {
	tauAlpha, tauBeta vec2
	u, v, w, z, dSq   *big.Int
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big literal " + s)
	}
	return v
}

func badd(xs ...*big.Int) *big.Int {
	z := new(big.Int)
	for _, x := range xs {
		z.Add(z, x)
	}
	return z
}

func bsub(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) }
func bneg(a *big.Int) *big.Int { return new(big.Int).Neg(a) }
func bmul(a *big.Int, k int64) *big.Int { return new(big.Int).Mul(a, big.NewInt(k)) }
func bquo(a, b *big.Int) *big.Int { return new(big.Int).Quo(a, b) }

func eclpVirtualOffset0(p *eclpParams, d *eclpDerived, r vec2) *big.Int {
	var a *big.Int
	termXp := divXp(d.tauBeta.x, d.dSq)
	if termXp.Sign() > 0 {
		a = mulUpXpToNp(mulUpMag(mulUpMag(r.x, p.lambda), p.c), termXp)
	} else {
		a = mulUpXpToNp(mulDownMag(mulDownMag(r.y, p.lambda), p.c), termXp)
	}
	termXp = divXp(d.tauBeta.y, d.dSq)
	if termXp.Sign() > 0 {
		return badd(a, mulUpXpToNp(mulUpMag(r.x, p.s), termXp))
	}
	return badd(a, mulUpXpToNp(mulDownMag(r.y, p.s), termXp))
}

func eclpVirtualOffset1(p *eclpParams, d *eclpDerived, r vec2) *big.Int {
	var b *big.Int
	termXp := divXp(d.tauAlpha.x, d.dSq)
	if termXp.Sign() < 0 {
		b = mulUpXpToNp(mulUpMag(mulUpMag(r.x, p.lambda), p.s), bneg(termXp))
	} else {
		b = mulUpXpToNp(mulDownMag(mulDownMag(bneg(r.y), p.lambda), p.s), termXp)
	}
	termXp = divXp(d.tauAlpha.y, d.dSq)
	if termXp.Sign() > 0 {
		return badd(b, mulUpXpToNp(mulUpMag(r.x, p.c), termXp))
	}
	return badd(b, mulUpXpToNp(mulDownMag(r.y, p.c), termXp))
}

func eclpMaxBalances0(p *eclpParams, d *eclpDerived, r vec2) *big.Int {
	termXp1 := divXp(bsub(d.tauBeta.x, d.tauAlpha.x), d.dSq)
	termXp2 := divXp(bsub(d.tauBeta.y, d.tauAlpha.y), d.dSq)
	xp := mulDownXpToNp(mulDownMag(mulDownMag(r.y, p.lambda), p.c), termXp1)
	if termXp2.Sign() > 0 {
		return badd(xp, mulDownXpToNp(mulDownMag(r.y, p.s), termXp2))
	}
	return badd(xp, mulDownXpToNp(mulUpMag(r.x, p.s), termXp2))
}

func eclpMaxBalances1(p *eclpParams, d *eclpDerived, r vec2) *big.Int {
	termXp1 := divXp(bsub(d.tauBeta.x, d.tauAlpha.x), d.dSq)
	termXp2 := divXp(bsub(d.tauAlpha.y, d.tauBeta.y), d.dSq)
	yp := mulDownXpToNp(mulDownMag(mulDownMag(r.y, p.lambda), p.s), termXp1)
	if termXp2.Sign() > 0 {
		return badd(yp, mulDownXpToNp(mulDownMag(r.y, p.c), termXp2))
	}
	return badd(yp, mulDownXpToNp(mulUpMag(r.x, p.c), termXp2))
}

// eclpInvariantWithError returns the invariant rounded down and an upper
// bound of its error.
func eclpInvariantWithError(balances [2]*big.Int, p *eclpParams, d *eclpDerived) (*big.Int, *big.Int, error) {
	x, y := balances[0], balances[1]
	if badd(x, y).Cmp(eclpMaxBalance) > 0 {
		return nil, nil, errAssetBounds
	}
	atAChi := eclpAtAChi(x, y, p, d)
	root, err := eclpInvariantSqrt(x, y, p, d)

	if root.Sign() > 0 {
		err = divUpMag(badd(err, big.NewInt(1)), bmul(root, 2))
	} else if err.Sign() > 0 {
		err = fixedpoint.SqrtSigned(err)
	} else {
		err = new(big.Int).Set(big1e9)
	}
	err = bmul(badd(bquo(mulUpMag(p.lambda, badd(x, y)), oneXp), err, big.NewInt(1)), 20)

	achiachi := eclpAChiAChiInXp(p, d)
	denominator := bsub(achiachi, oneXp)
	if denominator.Sign() <= 0 {
		return nil, nil, errECLPInvariant
	}
	mulDenominator := divXp(oneXp, denominator)
	invariant := mulDownXpToNp(bsub(badd(atAChi, root), err), mulDenominator)

	err = mulUpXpToNp(err, mulDenominator)
	lambdaSq := bquo(new(big.Int).Mul(p.lambda, p.lambda), big1e36)
	rel := new(big.Int).Mul(mulUpXpToNp(invariant, mulDenominator), lambdaSq)
	err = badd(err, bquo(bmul(rel, 40), oneXp), big.NewInt(1))

	if invariant.Sign() < 0 || badd(invariant, err).Cmp(eclpMaxInv) > 0 {
		return nil, nil, errECLPInvariant
	}
	return invariant, err, nil
}

func eclpAtAChi(x, y *big.Int, p *eclpParams, d *eclpDerived) *big.Int {
	dSq2 := mulXp(d.dSq, d.dSq)
	termXp := divXp(divDownMag(badd(divDownMag(d.w, p.lambda), d.z), p.lambda), dSq2)
	val := mulDownXpToNp(bsub(mulDownMag(x, p.c), mulDownMag(y, p.s)), termXp)

	termNp := badd(mulDownMag(mulDownMag(x, p.lambda), p.s), mulDownMag(mulDownMag(y, p.lambda), p.c))
	val = badd(val, mulDownXpToNp(termNp, divXp(d.u, dSq2)))

	termNp = badd(mulDownMag(x, p.s), mulDownMag(y, p.c))
	return badd(val, mulDownXpToNp(termNp, divXp(d.v, dSq2)))
}

func eclpAChiAChiInXp(p *eclpParams, d *eclpDerived) *big.Int {
	dSq3 := mulXp(mulXp(d.dSq, d.dSq), d.dSq)
	val := mulUpMag(p.lambda, divXp(mulXp(bmul(d.u, 2), d.v), dSq3))

	u1 := badd(d.u, big.NewInt(1))
	val = badd(val, mulUpMag(mulUpMag(divXp(mulXp(u1, u1), dSq3), p.lambda), p.lambda))
	val = badd(val, divXp(mulXp(d.v, d.v), dSq3))

	termXp := badd(divUpMag(d.w, p.lambda), d.z)
	return badd(val, divXp(mulXp(termXp, termXp), dSq3))
}

// eclpInvariantSqrt returns the square root term of the invariant and the
// error of its argument.
func eclpInvariantSqrt(x, y *big.Int, p *eclpParams, d *eclpDerived) (*big.Int, *big.Int) {
	val := badd(
		eclpMinAtxAChiySqPlusAtxSq(x, y, p, d),
		eclp2AtxAtyAChixAChiy(x, y, p, d),
		eclpMinAtyAChixSqPlusAtySq(x, y, p, d),
	)
	err := bquo(badd(mulUpMag(x, x), mulUpMag(y, y)), oneXp)
	return fixedpoint.SqrtSigned(val), err
}

func eclpDSq4(d *eclpDerived) *big.Int {
	return mulXp(mulXp(mulXp(d.dSq, d.dSq), d.dSq), d.dSq)
}

func eclpMinAtxAChiySqPlusAtxSq(x, y *big.Int, p *eclpParams, d *eclpDerived) *big.Int {
	termNp := badd(
		mulUpMag(mulUpMag(mulUpMag(x, x), p.c), p.c),
		mulUpMag(mulUpMag(mulUpMag(y, y), p.s), p.s),
	)
	termNp = bsub(termNp, mulDownMag(mulDownMag(mulDownMag(x, y), bmul(p.c, 2)), p.s))

	termXp := badd(
		mulXp(d.u, d.u),
		divDownMag(mulXp(bmul(d.u, 2), d.v), p.lambda),
		divDownMag(divDownMag(mulXp(d.v, d.v), p.lambda), p.lambda),
	)
	termXp = divXp(termXp, eclpDSq4(d))

	val := mulDownXpToNp(bneg(termNp), termXp)
	tail := divDownMag(divDownMag(bsub(termNp, big.NewInt(9)), p.lambda), p.lambda)
	return badd(val, mulDownXpToNp(tail, divXp(oneXp, d.dSq)))
}

func eclp2AtxAtyAChixAChiy(x, y *big.Int, p *eclpParams, d *eclpDerived) *big.Int {
	termNp := mulDownMag(mulDownMag(bsub(mulDownMag(x, x), mulUpMag(y, y)), bmul(p.c, 2)), p.s)
	xy := mulDownMag(y, bmul(x, 2))
	termNp = badd(termNp, mulDownMag(mulDownMag(xy, p.c), p.c))
	termNp = bsub(termNp, mulDownMag(mulDownMag(xy, p.s), p.s))

	termXp := badd(mulXp(d.z, d.u), divDownMag(divDownMag(mulXp(d.w, d.v), p.lambda), p.lambda))
	termXp = badd(termXp, divDownMag(badd(mulXp(d.w, d.u), mulXp(d.z, d.v)), p.lambda))
	termXp = divXp(termXp, eclpDSq4(d))

	return mulDownXpToNp(termNp, termXp)
}

func eclpMinAtyAChixSqPlusAtySq(x, y *big.Int, p *eclpParams, d *eclpDerived) *big.Int {
	termNp := badd(
		mulUpMag(mulUpMag(mulUpMag(x, x), p.s), p.s),
		mulUpMag(mulUpMag(mulUpMag(y, y), p.c), p.c),
		mulUpMag(mulUpMag(mulUpMag(x, y), bmul(p.s, 2)), p.c),
	)

	termXp := badd(
		mulXp(d.z, d.z),
		divDownMag(divDownMag(mulXp(d.w, d.w), p.lambda), p.lambda),
		divDownMag(mulXp(bmul(d.z, 2), d.w), p.lambda),
	)
	termXp = divXp(termXp, eclpDSq4(d))

	val := mulDownXpToNp(bneg(termNp), termXp)
	return badd(val, mulDownXpToNp(bsub(termNp, big.NewInt(9)), divXp(oneXp, d.dSq)))
}

// eclpSolveQuadraticSwap returns the other coordinate for a given one. The
// parameters are passed pre-swapped by the callers so the same routine
// solves both directions.
func eclpSolveQuadraticSwap(lambda, x, s, c *big.Int, r, ab, tauBeta vec2, dSq *big.Int) *big.Int {
	lamBar := vec2{
		x: bsub(oneXp, divDownMag(divDownMag(oneXp, lambda), lambda)),
		y: bsub(oneXp, divUpMag(divUpMag(oneXp, lambda), lambda)),
	}

	var qb *big.Int
	xp := bsub(x, ab.x)
	if xp.Sign() > 0 {
		qb = mulUpXpToNp(mulDownMag(mulDownMag(bneg(xp), s), c), divXp(lamBar.y, dSq))
	} else {
		qb = mulUpXpToNp(mulUpMag(mulUpMag(bneg(xp), s), c), badd(divXp(lamBar.x, dSq), big.NewInt(1)))
	}

	sTerm := vec2{
		x: bsub(oneXp, divXp(mulDownMag(mulDownMag(lamBar.y, s), s), dSq)),
		y: bsub(oneXp, badd(divXp(mulUpMag(mulUpMag(lamBar.x, s), s), badd(dSq, big.NewInt(1))), big.NewInt(1))),
	}

	qc := bneg(eclpXpXpDivLambdaLambda(x, r, lambda, s, c, tauBeta, dSq))
	qc = badd(qc, mulDownXpToNp(mulDownMag(r.y, r.y), sTerm.y))
	qc = fixedpoint.SqrtSigned(qc)

	var qa *big.Int
	if diff := bsub(qb, qc); diff.Sign() > 0 {
		qa = mulUpXpToNp(diff, badd(divXp(oneXp, sTerm.y), big.NewInt(1)))
	} else {
		qa = mulUpXpToNp(diff, divXp(oneXp, sTerm.x))
	}
	return badd(qa, ab.y)
}

func eclpXpXpDivLambdaLambda(x *big.Int, r vec2, lambda, s, c *big.Int, tauBeta vec2, dSq *big.Int) *big.Int {
	sqVars := vec2{x: mulXp(dSq, dSq), y: mulUpMag(r.x, r.x)}

	var qa, qb *big.Int
	termXp := divXp(mulXp(tauBeta.x, tauBeta.y), sqVars.x)
	if termXp.Sign() > 0 {
		qa = mulUpXpToNp(mulUpMag(mulUpMag(sqVars.y, bmul(s, 2)), c), badd(termXp, big.NewInt(7)))
	} else {
		qa = mulUpXpToNp(mulDownMag(mulDownMag(mulDownMag(r.y, r.y), bmul(s, 2)), c), termXp)
	}

	if tauBeta.x.Sign() < 0 {
		qb = mulUpXpToNp(mulUpMag(mulUpMag(r.x, x), bmul(c, 2)), badd(bneg(divXp(tauBeta.x, dSq)), big.NewInt(3)))
	} else {
		qb = mulUpXpToNp(mulDownMag(mulDownMag(bneg(r.y), x), bmul(c, 2)), divXp(tauBeta.x, dSq))
	}
	qa = badd(qa, qb)

	termXp = badd(divXp(mulXp(tauBeta.y, tauBeta.y), sqVars.x), big.NewInt(7))
	qb = mulUpXpToNp(mulUpMag(mulUpMag(sqVars.y, s), s), termXp)
	qc := mulUpXpToNp(mulDownMag(mulDownMag(bneg(r.y), x), bmul(s, 2)), divXp(tauBeta.y, dSq))
	qb = badd(qb, qc, mulUpMag(x, x))
	if qb.Sign() > 0 {
		qb = divUpMag(qb, lambda)
	} else {
		qb = divDownMag(qb, lambda)
	}

	qa = badd(qa, qb)
	if qa.Sign() > 0 {
		qa = divUpMag(qa, lambda)
	} else {
		qa = divDownMag(qa, lambda)
	}

	termXp = badd(divXp(mulXp(tauBeta.x, tauBeta.x), sqVars.x), big.NewInt(7))
	val := mulUpMag(mulUpMag(sqVars.y, c), c)
	return badd(mulUpXpToNp(val, termXp), qa)
}

func eclpYGivenX(x *big.Int, p *eclpParams, d *eclpDerived, r vec2) *big.Int {
	ab := vec2{x: eclpVirtualOffset0(p, d, r), y: eclpVirtualOffset1(p, d, r)}
	return eclpSolveQuadraticSwap(p.lambda, x, p.s, p.c, r, ab, d.tauBeta, d.dSq)
}

func eclpXGivenY(y *big.Int, p *eclpParams, d *eclpDerived, r vec2) *big.Int {
	ba := vec2{x: eclpVirtualOffset1(p, d, r), y: eclpVirtualOffset0(p, d, r)}
	tau := vec2{x: bneg(d.tauAlpha.x), y: d.tauAlpha.y}
	return eclpSolveQuadraticSwap(p.lambda, y, p.c, p.s, r, ba, tau, d.dSq)
}

func eclpCheckAssetBounds(p *eclpParams, d *eclpDerived, r vec2, newBalance *big.Int, index int) error {
	var bound *big.Int
	if index == 0 {
		bound = eclpMaxBalances0(p, d, r)
	} else {
		bound = eclpMaxBalances1(p, d, r)
	}
	if newBalance.Cmp(eclpMaxBalance) > 0 || newBalance.Cmp(bound) > 0 {
		return errAssetBounds
	}
	return nil
}

// eclpOutGivenIn prices a fee-less amountIn against the invariant vector r.
func eclpOutGivenIn(balances [2]*big.Int, amountIn *big.Int, tokenInIsToken0 bool, p *eclpParams, d *eclpDerived, r vec2) (*big.Int, error) {
	in, out, given := 0, 1, eclpYGivenX
	if !tokenInIsToken0 {
		in, out, given = 1, 0, eclpXGivenY
	}
	newIn := badd(balances[in], amountIn)
	if err := eclpCheckAssetBounds(p, d, r, newIn, in); err != nil {
		return nil, err
	}
	newOut := given(newIn, p, d, r)
	amountOut := bsub(balances[out], newOut)
	if amountOut.Sign() < 0 {
		return nil, errAssetBounds
	}
	return amountOut, nil
}

func eclpInGivenOut(balances [2]*big.Int, amountOut *big.Int, tokenInIsToken0 bool, p *eclpParams, d *eclpDerived, r vec2) (*big.Int, error) {
	in, out, given := 0, 1, eclpXGivenY
	if !tokenInIsToken0 {
		in, out, given = 1, 0, eclpYGivenX
	}
	if amountOut.Cmp(balances[out]) > 0 {
		return nil, errAssetBounds
	}
	newOut := bsub(balances[out], amountOut)
	newIn := given(newOut, p, d, r)
	if err := eclpCheckAssetBounds(p, d, r, newIn, in); err != nil {
		return nil, err
	}
	amountIn := bsub(newIn, balances[in])
	if amountIn.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative eclp input", cmn.ErrInvalidSwap)
	}
	return amountIn, nil
}
