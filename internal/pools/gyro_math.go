package pools

import (
	"fmt"

	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

var (
	errAssetBounds = fmt.Errorf("%w: asset bounds exceeded", cmn.ErrSwapLimitExceeded)

	// gyroLimitFactor keeps advertised limits strictly inside the asset bounds.
	gyroLimitFactor = u(999999e12)

	gyroOffsetUp   = new(uint256.Int).Add(fixedpoint.One, u(2))
	gyroOffsetDown = new(uint256.Int).Sub(fixedpoint.One, u(1))
)

// bufferedVirtualBalances widens the input offset and narrows the output
// offset by a few wei so rounding always favours the pool.
func bufferedVirtualBalances(c *calc, balanceIn, balanceOut, offsetIn, offsetOut *uint256.Int) (*uint256.Int, *uint256.Int) {
	virtIn := c.add(balanceIn, c.mulUp(offsetIn, gyroOffsetUp))
	virtOut := c.add(balanceOut, c.mulDown(offsetOut, gyroOffsetDown))
	return virtIn, virtOut
}

// virtualOutGivenIn is the constant-product step over virtual balances.
func virtualOutGivenIn(balanceOut, virtIn, virtOut, amountIn *uint256.Int) (*uint256.Int, error) {
	c := &calc{}
	out := c.divDown(c.mulDown(virtOut, amountIn), c.add(virtIn, amountIn))
	if c.err != nil {
		return nil, c.err
	}
	if out.Gt(balanceOut) {
		return nil, errAssetBounds
	}
	return out, nil
}

func virtualInGivenOut(balanceOut, virtIn, virtOut, amountOut *uint256.Int) (*uint256.Int, error) {
	if !amountOut.Lt(balanceOut) {
		return nil, errAssetBounds
	}
	c := &calc{}
	in := c.divUp(c.mulUp(virtIn, amountOut), c.sub(virtOut, amountOut))
	return in, c.err
}

// virtualLimit returns the 18-decimal bound for either side. GivenIn solves
// virtOut*in/(virtIn+in) = balanceOut for in.
func virtualLimit(balanceOut, virtIn, virtOut *uint256.Int, kind domain.SwapKind) (*uint256.Int, error) {
	c := &calc{}
	var limit *uint256.Int
	if kind == domain.GivenIn {
		offsetOut := c.sub(virtOut, balanceOut)
		if c.err == nil && offsetOut.IsZero() {
			return nil, errAssetBounds
		}
		limit = c.divDown(c.mulDown(balanceOut, virtIn), offsetOut)
	} else {
		limit = clone(balanceOut)
	}
	limit = c.mulDown(limit, gyroLimitFactor)
	return limit, c.err
}

// gyroQuadraticInvariant solves the 2-CLP invariant from its terms.
func gyroQuadraticInvariant(balances []*uint256.Int, sqrtAlpha, sqrtBeta *uint256.Int) (*uint256.Int, error) {
	c := &calc{}
	a := fixedpoint.Complement(c.divDown(sqrtAlpha, sqrtBeta))
	mb := c.add(c.divDown(balances[1], sqrtBeta), c.mulDown(balances[0], sqrtAlpha))
	mc := c.mulDown(balances[0], balances[1])

	bSquare := c.mulDown(c.mulDown(c.mulDown(balances[0], balances[0]), sqrtAlpha), sqrtAlpha)
	bSq2 := c.divDown(c.mulDown(c.mulDown(mc, fixedpoint.Two), sqrtAlpha), sqrtBeta)
	bSq3 := c.divDown(c.mulDown(balances[1], balances[1]), c.mulUp(sqrtBeta, sqrtBeta))
	bSquare = c.add(c.add(bSquare, bSq2), bSq3)

	denominator := c.mulUp(a, fixedpoint.Two)
	radicand := c.add(bSquare, c.mulDown(c.mulDown(mc, fixedpoint.Four), a))
	if c.err != nil {
		return nil, c.err
	}
	root, err := fixedpoint.Sqrt(radicand)
	if err != nil {
		return nil, err
	}
	invariant := c.divDown(c.add(mb, root), denominator)
	return invariant, c.err
}

// gyroCubicInvariant solves the 3-CLP invariant by Newton iteration from
// above, stopping when the step stalls.
func gyroCubicInvariant(balances []*uint256.Int, root3Alpha *uint256.Int) (*uint256.Int, error) {
	c := &calc{}
	alpha23 := c.mulDown(root3Alpha, root3Alpha)
	alpha := c.mulDown(alpha23, root3Alpha)
	a := c.sub(fixedpoint.One, alpha)
	mb := c.mulDown(c.add(c.add(balances[0], balances[1]), balances[2]), alpha23)
	mc := c.mulDown(c.add(c.add(
		c.mulDown(balances[0], balances[1]),
		c.mulDown(balances[0], balances[2])),
		c.mulDown(balances[1], balances[2])), root3Alpha)
	md := c.mulDown(c.mulDown(balances[0], balances[1]), balances[2])

	// starting point above the local minimum of the cubic
	a3 := c.mul(a, u(3))
	radic := c.add(c.mulUp(mb, mb), c.mulUp(c.mulUp(a, mc), u(3e18)))
	if c.err != nil {
		return nil, c.err
	}
	sqrtRadic, err := fixedpoint.Sqrt(radic)
	if err != nil {
		return nil, err
	}
	lmin := c.add(c.divUp(mb, a3), c.divUp(sqrtRadic, a3))
	factor := u(2e18)
	if !alpha.Lt(u(5e17)) {
		factor = u(15e17)
	}
	root := c.mulUp(lmin, factor)
	if c.err != nil {
		return nil, c.err
	}

	deltaPrev := new(uint256.Int)
	for i := 0; i < stableMaxIterations; i++ {
		delta, positive, err := gyroCubicNewtonDelta(mb, mc, md, root3Alpha, root)
		if err != nil {
			return nil, err
		}
		if delta.CmpUint64(1) <= 0 {
			return root, nil
		}
		if i >= gyroMinIterations && positive {
			return root, nil
		}
		if i >= gyroMinIterations && !delta.Lt(new(uint256.Int).Div(deltaPrev, gyroShrinkFactor)) {
			return root, nil
		}
		deltaPrev = delta
		if positive {
			root = c.add(root, delta)
		} else {
			root = c.sub(root, delta)
		}
		if c.err != nil {
			return nil, c.err
		}
	}
	return nil, fmt.Errorf("%w: cubic invariant did not converge", cmn.ErrInvalidSwap)
}

const gyroMinIterations = 2

var gyroShrinkFactor = u(8)

func gyroCubicNewtonDelta(mb, mc, md, root3Alpha, root *uint256.Int) (*uint256.Int, bool, error) {
	c := &calc{}
	df := c.mulUp(c.mul(root, u(3)), root)
	df = c.sub(df, c.mulDown(c.mulDown(c.mulDown(df, root3Alpha), root3Alpha), root3Alpha))
	df = c.sub(c.sub(df, c.mul(c.mulDown(root, mb), u(2))), mc)

	cube := c.mulDown(c.mulDown(root, root), root)
	cube = c.sub(cube, c.mulDown(c.mulDown(c.mulDown(cube, root3Alpha), root3Alpha), root3Alpha))
	deltaMinus := c.divDown(cube, df)

	deltaPlus := c.divDown(c.add(c.mulDown(c.mulDown(root, root), mb), c.mulDown(root, mc)), df)
	deltaPlus = c.add(deltaPlus, c.divDown(md, df))
	if c.err != nil {
		return nil, false, c.err
	}
	if !deltaPlus.Lt(deltaMinus) {
		return new(uint256.Int).Sub(deltaPlus, deltaMinus), true, nil
	}
	return new(uint256.Int).Sub(deltaMinus, deltaPlus), false, nil
}
