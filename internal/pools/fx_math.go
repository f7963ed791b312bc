package pools

import (
	"fmt"
	"math/big"

	cmn "github.com/balancer/backend-sub000/internal/common"
)

// FX curve math runs on signed 36-decimal numeraire values.

const fxMaxIterations = 32

var (
	fxOne             = mustBig("1000000000000000000000000000000000000") // 1e36
	fxHalf            = mustBig("500000000000000000000000000000000000")
	fxMaxMicroFee     = mustBig("250000000000000000000000000000000000") // 0.25
	fxConvergenceUnit = mustBig("100000000000000000000000")             // 1e-13
	fxMaxDiff         = mustBig("-1000000000000000024000000000000")     // -0.000001000000000000024

	errFxNoConvergence = fmt.Errorf("%w: fx trade did not converge", cmn.ErrInvalidSwap)
	errFxUpperHalt     = fmt.Errorf("%w: fx upper halt", cmn.ErrSwapLimitExceeded)
	errFxLowerHalt     = fmt.Errorf("%w: fx lower halt", cmn.ErrSwapLimitExceeded)
	errFxInvariant     = fmt.Errorf("%w: fx swap invariant violated", cmn.ErrInvalidSwap)
)

type fxCurve struct {
	alpha, beta, delta, epsilon, lambda *big.Int
}

func mul36(a, b *big.Int) *big.Int {
	z := new(big.Int).Mul(a, b)
	return z.Quo(z, fxOne)
}

func div36(a, b *big.Int) *big.Int {
	z := new(big.Int).Mul(a, fxOne)
	return z.Quo(z, b)
}

// microFee is the penalty for one balance sitting outside the beta band
// around its ideal share.
func (c *fxCurve) microFee(balance, ideal *big.Int) *big.Int {
	var margin *big.Int
	if balance.Cmp(ideal) < 0 {
		threshold := mul36(ideal, bsub(fxOne, c.beta))
		if balance.Cmp(threshold) >= 0 {
			return new(big.Int)
		}
		margin = bsub(threshold, balance)
	} else {
		threshold := mul36(ideal, badd(fxOne, c.beta))
		if balance.Cmp(threshold) <= 0 {
			return new(big.Int)
		}
		margin = bsub(balance, threshold)
	}
	fee := mul36(div36(margin, ideal), c.delta)
	if fee.Cmp(fxMaxMicroFee) > 0 {
		fee = new(big.Int).Set(fxMaxMicroFee)
	}
	return mul36(fee, margin)
}

func (c *fxCurve) fee(liquidity *big.Int, balances [2]*big.Int) *big.Int {
	ideal := mul36(liquidity, fxHalf)
	if ideal.Sign() == 0 {
		return new(big.Int)
	}
	return badd(c.microFee(balances[0], ideal), c.microFee(balances[1], ideal))
}

// trade solves for the change of balances[outIndex] given inputAmt on the
// other side. The result carries the sign of the balance change.
func (c *fxCurve) trade(oldLiq, newLiq *big.Int, oldBals, newBals [2]*big.Int, inputAmt *big.Int, outIndex int) (*big.Int, error) {
	omega := c.fee(oldLiq, oldBals)
	output := bneg(inputAmt)
	for i := 0; i < fxMaxIterations; i++ {
		psi := c.fee(newLiq, newBals)
		prev := output
		if omega.Cmp(psi) < 0 {
			output = bneg(bsub(badd(inputAmt, omega), psi))
		} else {
			output = bneg(badd(inputAmt, mul36(c.lambda, bsub(omega, psi))))
		}

		newLiq = badd(oldLiq, inputAmt, output)
		newBals[outIndex] = badd(oldBals[outIndex], output)

		if bquo(output, fxConvergenceUnit).Cmp(bquo(prev, fxConvergenceUnit)) == 0 {
			if err := c.enforceHalts(oldLiq, newLiq, oldBals, newBals); err != nil {
				return nil, err
			}
			if err := enforceFxInvariant(oldLiq, omega, newLiq, psi); err != nil {
				return nil, err
			}
			return output, nil
		}
	}
	return nil, errFxNoConvergence
}

// enforceHalts rejects trades that push a balance past the alpha band, or
// further past it if it already was.
func (c *fxCurve) enforceHalts(oldLiq, newLiq *big.Int, oldBals, newBals [2]*big.Int) error {
	for i := range newBals {
		newIdeal := mul36(newLiq, fxHalf)
		if newBals[i].Cmp(newIdeal) > 0 {
			upper := badd(fxOne, c.alpha)
			newHalt := mul36(newIdeal, upper)
			if newBals[i].Cmp(newHalt) > 0 {
				oldHalt := mul36(mul36(oldLiq, fxHalf), upper)
				if oldBals[i].Cmp(oldHalt) < 0 {
					return errFxUpperHalt
				}
				if bsub(newBals[i], newHalt).Cmp(bsub(oldBals[i], oldHalt)) > 0 {
					return errFxUpperHalt
				}
			}
			continue
		}
		lower := bsub(fxOne, c.alpha)
		newHalt := mul36(newIdeal, lower)
		if newBals[i].Cmp(newHalt) < 0 {
			oldHalt := mul36(mul36(oldLiq, fxHalf), lower)
			if oldBals[i].Cmp(oldHalt) > 0 {
				return errFxLowerHalt
			}
			if bsub(newHalt, newBals[i]).Cmp(bsub(oldHalt, oldBals[i])) > 0 {
				return errFxLowerHalt
			}
		}
	}
	return nil
}

func enforceFxInvariant(oldLiq, omega, newLiq, psi *big.Int) error {
	diff := bsub(bsub(newLiq, psi), bsub(oldLiq, omega))
	if diff.Sign() > 0 || diff.Cmp(fxMaxDiff) >= 0 {
		return nil
	}
	return errFxInvariant
}

// outGivenIn returns the numeraire paid out for amountIn, after epsilon.
func (c *fxCurve) outGivenIn(reserveIn, reserveOut, amountIn *big.Int) (*big.Int, error) {
	oldBals := [2]*big.Int{reserveIn, reserveOut}
	oldLiq := badd(reserveIn, reserveOut)
	newBals := [2]*big.Int{badd(reserveIn, amountIn), new(big.Int).Set(reserveOut)}
	newLiq := badd(oldLiq, amountIn)

	delta, err := c.trade(oldLiq, newLiq, oldBals, newBals, amountIn, 1)
	if err != nil {
		return nil, err
	}
	out := mul36(bneg(delta), bsub(fxOne, c.epsilon))
	if out.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative fx output", cmn.ErrInvalidSwap)
	}
	return out, nil
}

// inGivenOut returns the numeraire owed for amountOut, after epsilon.
func (c *fxCurve) inGivenOut(reserveIn, reserveOut, amountOut *big.Int) (*big.Int, error) {
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, errFxLowerHalt
	}
	oldBals := [2]*big.Int{reserveIn, reserveOut}
	oldLiq := badd(reserveIn, reserveOut)
	newBals := [2]*big.Int{new(big.Int).Set(reserveIn), bsub(reserveOut, amountOut)}
	newLiq := bsub(oldLiq, amountOut)

	delta, err := c.trade(oldLiq, newLiq, oldBals, newBals, bneg(amountOut), 0)
	if err != nil {
		return nil, err
	}
	if delta.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive fx input", cmn.ErrInvalidSwap)
	}
	return mul36(delta, badd(fxOne, c.epsilon)), nil
}
