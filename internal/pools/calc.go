package pools

import (
	"github.com/holiman/uint256"

	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

// calc chains fixed-point operations and keeps the first error, so long
// formulas read top to bottom. Once an error is recorded every further call
// returns zero and the caller checks c.err at the end.
type calc struct {
	err error
}

func (c *calc) step(f func(a, b *uint256.Int) (*uint256.Int, error), a, b *uint256.Int) *uint256.Int {
	if c.err != nil {
		return new(uint256.Int)
	}
	z, err := f(a, b)
	if err != nil {
		c.err = err
		return new(uint256.Int)
	}
	return z
}

func (c *calc) add(a, b *uint256.Int) *uint256.Int     { return c.step(fixedpoint.Add, a, b) }
func (c *calc) sub(a, b *uint256.Int) *uint256.Int     { return c.step(fixedpoint.Sub, a, b) }
func (c *calc) mul(a, b *uint256.Int) *uint256.Int     { return c.step(fixedpoint.Mul, a, b) }
func (c *calc) mulDown(a, b *uint256.Int) *uint256.Int { return c.step(fixedpoint.MulDown, a, b) }
func (c *calc) mulUp(a, b *uint256.Int) *uint256.Int   { return c.step(fixedpoint.MulUp, a, b) }
func (c *calc) divDown(a, b *uint256.Int) *uint256.Int { return c.step(fixedpoint.DivDown, a, b) }
func (c *calc) divUp(a, b *uint256.Int) *uint256.Int   { return c.step(fixedpoint.DivUp, a, b) }
func (c *calc) divRawDown(a, b *uint256.Int) *uint256.Int {
	return c.step(fixedpoint.DivRawDown, a, b)
}
func (c *calc) divRawUp(a, b *uint256.Int) *uint256.Int { return c.step(fixedpoint.DivRawUp, a, b) }

func (c *calc) powDown(x, y *uint256.Int, v fixedpoint.PowVersion) *uint256.Int {
	return c.step(func(a, b *uint256.Int) (*uint256.Int, error) { return fixedpoint.PowDown(a, b, v) }, x, y)
}

func (c *calc) powUp(x, y *uint256.Int, v fixedpoint.PowVersion) *uint256.Int {
	return c.step(func(a, b *uint256.Int) (*uint256.Int, error) { return fixedpoint.PowUp(a, b, v) }, x, y)
}

// fail records err unless an earlier one is already held.
func (c *calc) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func clone(x *uint256.Int) *uint256.Int { return new(uint256.Int).Set(x) }
