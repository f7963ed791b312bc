package pools

import (
	"fmt"

	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

var (
	weightedMaxInRatio        = u(3e17)
	weightedMaxOutRatio       = u(3e17)
	weightedMaxInvariantRatio = u(3e18)
	weightedMinInvariantRatio = u(7e17)
)

var (
	errWeightedMaxIn        = fmt.Errorf("%w: weighted max in ratio", cmn.ErrSwapLimitExceeded)
	errWeightedMaxOut       = fmt.Errorf("%w: weighted max out ratio", cmn.ErrSwapLimitExceeded)
	errWeightedMaxInvariant = fmt.Errorf("%w: weighted max invariant ratio", cmn.ErrSwapLimitExceeded)
	errWeightedMinInvariant = fmt.Errorf("%w: weighted min invariant ratio", cmn.ErrSwapLimitExceeded)
)

// weightedOutGivenIn works on 18-decimal balances and a fee-less amountIn.
func weightedOutGivenIn(balanceIn, weightIn, balanceOut, weightOut, amountIn *uint256.Int, v fixedpoint.PowVersion) (*uint256.Int, error) {
	c := &calc{}
	if amountIn.Gt(c.mulDown(balanceIn, weightedMaxInRatio)) {
		c.fail(errWeightedMaxIn)
	}
	base := c.divUp(balanceIn, c.add(balanceIn, amountIn))
	exponent := c.divDown(weightIn, weightOut)
	power := c.powUp(base, exponent, v)
	out := c.mulDown(balanceOut, fixedpoint.Complement(power))
	return out, c.err
}

// weightedInGivenOut returns the fee-less amountIn for an exact amountOut.
func weightedInGivenOut(balanceIn, weightIn, balanceOut, weightOut, amountOut *uint256.Int, v fixedpoint.PowVersion) (*uint256.Int, error) {
	c := &calc{}
	if amountOut.Gt(c.mulDown(balanceOut, weightedMaxOutRatio)) {
		c.fail(errWeightedMaxOut)
	}
	base := c.divUp(balanceOut, c.sub(balanceOut, amountOut))
	exponent := c.divUp(weightOut, weightIn)
	power := c.powUp(base, exponent, v)
	ratio := c.sub(power, fixedpoint.One)
	in := c.mulUp(balanceIn, ratio)
	return in, c.err
}

func weightedBptOutGivenExactTokenIn(balance, weight, amountIn, totalShares, swapFee *uint256.Int, v fixedpoint.PowVersion) (*uint256.Int, error) {
	c := &calc{}
	balanceRatioWithFee := c.divDown(c.add(balance, amountIn), balance)
	invariantRatioWithFees := c.add(c.mulDown(balanceRatioWithFee, weight), fixedpoint.Complement(weight))

	amountInWithoutFee := clone(amountIn)
	if balanceRatioWithFee.Gt(invariantRatioWithFees) {
		nonTaxable := new(uint256.Int)
		if invariantRatioWithFees.Gt(fixedpoint.One) {
			nonTaxable = c.mulDown(balance, c.sub(invariantRatioWithFees, fixedpoint.One))
		}
		taxable := c.sub(amountIn, nonTaxable)
		fee := c.mulUp(taxable, swapFee)
		amountInWithoutFee = c.sub(c.add(nonTaxable, taxable), fee)
	}
	if c.err != nil {
		return nil, c.err
	}
	if amountInWithoutFee.IsZero() {
		return new(uint256.Int), nil
	}

	balanceRatio := c.divDown(c.add(balance, amountInWithoutFee), balance)
	invariantRatio := c.powDown(balanceRatio, weight, v)
	if c.err == nil && invariantRatio.Gt(weightedMaxInvariantRatio) {
		c.fail(errWeightedMaxInvariant)
	}
	if c.err != nil {
		return nil, c.err
	}
	if !invariantRatio.Gt(fixedpoint.One) {
		return new(uint256.Int), nil
	}
	out := c.mulDown(totalShares, c.sub(invariantRatio, fixedpoint.One))
	return out, c.err
}

func weightedTokenInGivenExactBptOut(balance, weight, bptOut, totalShares, swapFee *uint256.Int, v fixedpoint.PowVersion) (*uint256.Int, error) {
	c := &calc{}
	invariantRatio := c.divUp(c.add(totalShares, bptOut), totalShares)
	if c.err == nil && invariantRatio.Gt(weightedMaxInvariantRatio) {
		c.fail(errWeightedMaxInvariant)
	}
	balanceRatio := c.powUp(invariantRatio, c.divUp(fixedpoint.One, weight), v)
	amountInWithoutFee := c.mulUp(balance, c.sub(balanceRatio, fixedpoint.One))

	taxable := c.mulUp(amountInWithoutFee, fixedpoint.Complement(weight))
	nonTaxable := c.sub(amountInWithoutFee, taxable)
	taxablePlusFees := c.divUp(taxable, fixedpoint.Complement(swapFee))
	in := c.add(nonTaxable, taxablePlusFees)
	return in, c.err
}

func weightedBptInGivenExactTokenOut(balance, weight, amountOut, totalShares, swapFee *uint256.Int, v fixedpoint.PowVersion) (*uint256.Int, error) {
	c := &calc{}
	balanceRatioWithoutFee := c.divUp(c.sub(balance, amountOut), balance)
	invariantRatioWithoutFees := c.add(c.mulUp(balanceRatioWithoutFee, weight), fixedpoint.Complement(weight))

	amountOutWithFee := clone(amountOut)
	if invariantRatioWithoutFees.Gt(balanceRatioWithoutFee) {
		nonTaxable := c.mulDown(balance, fixedpoint.Complement(invariantRatioWithoutFees))
		taxable := c.sub(amountOut, nonTaxable)
		taxablePlusFees := c.divUp(taxable, fixedpoint.Complement(swapFee))
		amountOutWithFee = c.add(nonTaxable, taxablePlusFees)
	}

	balanceRatio := c.divDown(c.sub(balance, amountOutWithFee), balance)
	invariantRatio := c.powDown(balanceRatio, weight, v)
	if c.err == nil && invariantRatio.Lt(weightedMinInvariantRatio) {
		c.fail(errWeightedMinInvariant)
	}
	in := c.mulUp(totalShares, fixedpoint.Complement(invariantRatio))
	return in, c.err
}

func weightedTokenOutGivenExactBptIn(balance, weight, bptIn, totalShares, swapFee *uint256.Int, v fixedpoint.PowVersion) (*uint256.Int, error) {
	c := &calc{}
	invariantRatio := c.divUp(c.sub(totalShares, bptIn), totalShares)
	if c.err == nil && invariantRatio.Lt(weightedMinInvariantRatio) {
		c.fail(errWeightedMinInvariant)
	}
	balanceRatio := c.powUp(invariantRatio, c.divDown(fixedpoint.One, weight), v)
	amountOutWithoutFee := c.mulDown(balance, fixedpoint.Complement(balanceRatio))

	taxable := c.mulUp(amountOutWithoutFee, fixedpoint.Complement(weight))
	nonTaxable := c.sub(amountOutWithoutFee, taxable)
	taxableMinusFees := c.mulUp(taxable, fixedpoint.Complement(swapFee))
	out := c.add(nonTaxable, taxableMinusFees)
	return out, c.err
}
