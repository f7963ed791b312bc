package pools

import (
	"fmt"

	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

const stableMaxIterations = 255

var ampPrecision = u(1000)

var errStableNoConvergence = fmt.Errorf("%w: stable math did not converge", cmn.ErrInvalidSwap)

// stableInvariant computes D for balances in 18 decimals. amp carries
// ampPrecision.
func stableInvariant(amp *uint256.Int, balances []*uint256.Int) (*uint256.Int, error) {
	c := &calc{}
	n := u(uint64(len(balances)))
	sum := new(uint256.Int)
	for _, b := range balances {
		sum = c.add(sum, b)
	}
	if c.err != nil {
		return nil, c.err
	}
	if sum.IsZero() {
		return sum, nil
	}

	invariant := clone(sum)
	ampTimesTotal := c.mul(amp, n)
	for i := 0; i < stableMaxIterations; i++ {
		dp := clone(invariant)
		for _, b := range balances {
			dp = c.divRawDown(c.mul(dp, invariant), c.mul(b, n))
		}
		prev := invariant

		numerator := c.mul(
			c.add(c.divRawDown(c.mul(ampTimesTotal, sum), ampPrecision), c.mul(dp, n)),
			invariant,
		)
		denominator := c.add(
			c.divRawDown(c.mul(c.sub(ampTimesTotal, ampPrecision), invariant), ampPrecision),
			c.mul(c.add(n, u(1)), dp),
		)
		invariant = c.divRawDown(numerator, denominator)
		if c.err != nil {
			return nil, c.err
		}
		if withinOne(invariant, prev) {
			return invariant, nil
		}
	}
	return nil, errStableNoConvergence
}

// stableBalanceGivenInvariant solves for balances[index] keeping the others
// fixed.
func stableBalanceGivenInvariant(amp *uint256.Int, balances []*uint256.Int, invariant *uint256.Int, index int) (*uint256.Int, error) {
	c := &calc{}
	n := u(uint64(len(balances)))
	ampTimesTotal := c.mul(amp, n)

	sum := clone(balances[0])
	pd := c.mul(balances[0], n)
	for j := 1; j < len(balances); j++ {
		pd = c.divRawDown(c.mul(c.mul(pd, balances[j]), n), invariant)
		sum = c.add(sum, balances[j])
	}
	sum = c.sub(sum, balances[index])

	inv2 := c.mul(invariant, invariant)
	cc := c.mul(c.mul(c.divRawUp(inv2, c.mul(ampTimesTotal, pd)), ampPrecision), balances[index])
	b := c.add(sum, c.mul(c.divRawDown(invariant, ampTimesTotal), ampPrecision))

	balance := c.divRawUp(c.add(inv2, cc), c.add(invariant, b))
	if c.err != nil {
		return nil, c.err
	}
	for i := 0; i < stableMaxIterations; i++ {
		prev := balance
		balance = c.divRawUp(
			c.add(c.mul(balance, balance), cc),
			c.sub(c.add(c.mul(balance, u(2)), b), invariant),
		)
		if c.err != nil {
			return nil, c.err
		}
		if withinOne(balance, prev) {
			return balance, nil
		}
	}
	return nil, errStableNoConvergence
}

func stableOutGivenIn(amp *uint256.Int, balances []*uint256.Int, in, out int, amountIn, invariant *uint256.Int) (*uint256.Int, error) {
	c := &calc{}
	updated := copyBalances(balances)
	updated[in] = c.add(updated[in], amountIn)
	if c.err != nil {
		return nil, c.err
	}
	final, err := stableBalanceGivenInvariant(amp, updated, invariant, out)
	if err != nil {
		return nil, err
	}
	amountOut := c.sub(c.sub(balances[out], final), u(1))
	if c.err != nil {
		return nil, fmt.Errorf("%w: stable out exceeds balance", cmn.ErrSwapLimitExceeded)
	}
	return amountOut, nil
}

func stableInGivenOut(amp *uint256.Int, balances []*uint256.Int, in, out int, amountOut, invariant *uint256.Int) (*uint256.Int, error) {
	c := &calc{}
	updated := copyBalances(balances)
	updated[out] = c.sub(updated[out], amountOut)
	if c.err != nil {
		return nil, fmt.Errorf("%w: stable out exceeds balance", cmn.ErrSwapLimitExceeded)
	}
	final, err := stableBalanceGivenInvariant(amp, updated, invariant, in)
	if err != nil {
		return nil, err
	}
	amountIn := c.add(c.sub(final, balances[in]), u(1))
	return amountIn, c.err
}

func stableBptOutGivenExactTokensIn(amp *uint256.Int, balances, amountsIn []*uint256.Int, totalShares, invariant, swapFee *uint256.Int) (*uint256.Int, error) {
	c := &calc{}
	sum := sumOf(c, balances)

	ratiosWithFee := make([]*uint256.Int, len(balances))
	invariantRatioWithFees := new(uint256.Int)
	for i := range balances {
		weight := c.divDown(balances[i], sum)
		ratiosWithFee[i] = c.divDown(c.add(balances[i], amountsIn[i]), balances[i])
		invariantRatioWithFees = c.add(invariantRatioWithFees, c.mulDown(ratiosWithFee[i], weight))
	}

	newBalances := make([]*uint256.Int, len(balances))
	for i := range balances {
		amountInWithoutFee := amountsIn[i]
		if ratiosWithFee[i].Gt(invariantRatioWithFees) {
			nonTaxable := new(uint256.Int)
			if invariantRatioWithFees.Gt(fixedpoint.One) {
				nonTaxable = c.mulDown(balances[i], c.sub(invariantRatioWithFees, fixedpoint.One))
			}
			taxable := c.sub(amountsIn[i], nonTaxable)
			amountInWithoutFee = c.add(nonTaxable, c.mulDown(taxable, fixedpoint.Complement(swapFee)))
		}
		newBalances[i] = c.add(balances[i], amountInWithoutFee)
	}
	if c.err != nil {
		return nil, c.err
	}

	newInvariant, err := stableInvariant(amp, newBalances)
	if err != nil {
		return nil, err
	}
	invariantRatio := c.divDown(newInvariant, invariant)
	if c.err != nil {
		return nil, c.err
	}
	if !invariantRatio.Gt(fixedpoint.One) {
		return new(uint256.Int), nil
	}
	out := c.mulDown(totalShares, c.sub(invariantRatio, fixedpoint.One))
	return out, c.err
}

func stableTokenInGivenExactBptOut(amp *uint256.Int, balances []*uint256.Int, index int, bptOut, totalShares, invariant, swapFee *uint256.Int) (*uint256.Int, error) {
	c := &calc{}
	newInvariant := c.mulUp(c.divUp(c.add(totalShares, bptOut), totalShares), invariant)
	if c.err != nil {
		return nil, c.err
	}
	newBalance, err := stableBalanceGivenInvariant(amp, balances, newInvariant, index)
	if err != nil {
		return nil, err
	}
	amountInWithoutFee := c.sub(newBalance, balances[index])

	weight := c.divDown(balances[index], sumOf(c, balances))
	taxable := c.mulUp(amountInWithoutFee, fixedpoint.Complement(weight))
	nonTaxable := c.sub(amountInWithoutFee, taxable)
	in := c.add(nonTaxable, c.divUp(taxable, fixedpoint.Complement(swapFee)))
	return in, c.err
}

func stableBptInGivenExactTokensOut(amp *uint256.Int, balances, amountsOut []*uint256.Int, totalShares, invariant, swapFee *uint256.Int) (*uint256.Int, error) {
	c := &calc{}
	sum := sumOf(c, balances)

	ratiosWithoutFee := make([]*uint256.Int, len(balances))
	invariantRatioWithoutFees := new(uint256.Int)
	for i := range balances {
		weight := c.divDown(balances[i], sum)
		ratiosWithoutFee[i] = c.divUp(c.sub(balances[i], amountsOut[i]), balances[i])
		invariantRatioWithoutFees = c.add(invariantRatioWithoutFees, c.mulUp(ratiosWithoutFee[i], weight))
	}

	newBalances := make([]*uint256.Int, len(balances))
	for i := range balances {
		amountOutWithFee := amountsOut[i]
		if invariantRatioWithoutFees.Gt(ratiosWithoutFee[i]) {
			nonTaxable := c.mulDown(balances[i], fixedpoint.Complement(invariantRatioWithoutFees))
			taxable := c.sub(amountsOut[i], nonTaxable)
			amountOutWithFee = c.add(nonTaxable, c.divUp(taxable, fixedpoint.Complement(swapFee)))
		}
		newBalances[i] = c.sub(balances[i], amountOutWithFee)
	}
	if c.err != nil {
		return nil, fmt.Errorf("%w: exit exceeds balance", cmn.ErrSwapLimitExceeded)
	}

	newInvariant, err := stableInvariant(amp, newBalances)
	if err != nil {
		return nil, err
	}
	invariantRatio := c.divDown(newInvariant, invariant)
	in := c.mulUp(totalShares, fixedpoint.Complement(invariantRatio))
	return in, c.err
}

func stableTokenOutGivenExactBptIn(amp *uint256.Int, balances []*uint256.Int, index int, bptIn, totalShares, invariant, swapFee *uint256.Int) (*uint256.Int, error) {
	c := &calc{}
	newInvariant := c.mulUp(c.divUp(c.sub(totalShares, bptIn), totalShares), invariant)
	if c.err != nil {
		return nil, c.err
	}
	newBalance, err := stableBalanceGivenInvariant(amp, balances, newInvariant, index)
	if err != nil {
		return nil, err
	}
	amountOutWithoutFee := c.sub(balances[index], newBalance)

	weight := c.divDown(balances[index], sumOf(c, balances))
	taxable := c.mulUp(amountOutWithoutFee, fixedpoint.Complement(weight))
	nonTaxable := c.sub(amountOutWithoutFee, taxable)
	out := c.add(nonTaxable, c.mulDown(taxable, fixedpoint.Complement(swapFee)))
	return out, c.err
}

func withinOne(a, b *uint256.Int) bool {
	if a.Gt(b) {
		return new(uint256.Int).Sub(a, b).CmpUint64(1) <= 0
	}
	return new(uint256.Int).Sub(b, a).CmpUint64(1) <= 0
}

func copyBalances(balances []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(balances))
	for i, b := range balances {
		out[i] = clone(b)
	}
	return out
}

func sumOf(c *calc, xs []*uint256.Int) *uint256.Int {
	sum := new(uint256.Int)
	for _, x := range xs {
		sum = c.add(sum, x)
	}
	return sum
}

// singleAmount is a zero vector of length n with amount at index.
func singleAmount(n, index int, amount *uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, n)
	for i := range out {
		out[i] = new(uint256.Int)
	}
	out[index] = clone(amount)
	return out
}
