package pools

import (
	"math/big"
)

const derivePrec = 512

// deriveECLP computes the 38-decimal derived values of an ellipse from its
// 18-decimal definition. Indexers usually ship these; the computation here
// covers snapshots that omit them.
func deriveECLP(p *eclpParams) *eclpDerived {
	c, s, lambda := toFloat18(p.c), toFloat18(p.s), toFloat18(p.lambda)
	tauAlpha := eclpTau(toFloat18(p.alpha), c, s, lambda)
	tauBeta := eclpTau(toFloat18(p.beta), c, s, lambda)

	sc := fmul(s, c)
	c2, s2 := fmul(c, c), fmul(s, s)

	return &eclpDerived{
		tauAlpha: vec2{x: toInt38(tauAlpha[0]), y: toInt38(tauAlpha[1])},
		tauBeta:  vec2{x: toInt38(tauBeta[0]), y: toInt38(tauBeta[1])},
		u:        toInt38(fmul(sc, fsub(tauBeta[0], tauAlpha[0]))),
		v:        toInt38(fadd(fmul(s2, tauBeta[1]), fmul(c2, tauAlpha[1]))),
		w:        toInt38(fmul(sc, fsub(tauBeta[1], tauAlpha[1]))),
		z:        toInt38(fadd(fmul(c2, tauBeta[0]), fmul(s2, tauAlpha[0]))),
		dSq:      toInt38(fadd(c2, s2)),
	}
}

// eclpTau maps a price onto the unit circle after the ellipse transform.
func eclpTau(price, c, s, lambda *big.Float) [2]*big.Float {
	// zeta = lambda * (c*p - s) / (c + s*p)
	num := fmul(lambda, fsub(fmul(c, price), s))
	den := fadd(c, fmul(s, price))
	zeta := newFloat().Quo(num, den)

	norm := newFloat().Sqrt(fadd(newFloat().SetInt64(1), fmul(zeta, zeta)))
	return [2]*big.Float{
		newFloat().Quo(zeta, norm),
		newFloat().Quo(newFloat().SetInt64(1), norm),
	}
}

func newFloat() *big.Float { return new(big.Float).SetPrec(derivePrec) }

func fadd(a, b *big.Float) *big.Float { return newFloat().Add(a, b) }
func fsub(a, b *big.Float) *big.Float { return newFloat().Sub(a, b) }
func fmul(a, b *big.Float) *big.Float { return newFloat().Mul(a, b) }

func toFloat18(x *big.Int) *big.Float {
	f := newFloat().SetInt(x)
	return f.Quo(f, newFloat().SetInt(big1e18))
}

// toInt38 truncates toward zero.
func toInt38(f *big.Float) *big.Int {
	scaled := fmul(f, newFloat().SetInt(oneXp))
	z, _ := scaled.Int(nil)
	return z
}

var big1e18 = big.NewInt(1e18)
