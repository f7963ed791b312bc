package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
	"github.com/balancer/backend-sub000/internal/pools"
)

// ImpactSeverity buckets a round-trip price impact for display.
type ImpactSeverity string

const (
	SeverityNone     ImpactSeverity = "none"
	SeverityLow      ImpactSeverity = "low"
	SeverityModerate ImpactSeverity = "moderate"
	SeverityHigh     ImpactSeverity = "high"
	SeverityExtreme  ImpactSeverity = "extreme"
)

// impactBands are ordered by their exclusive upper bound in basis points.
var impactBands = []struct {
	below    uint16
	severity ImpactSeverity
	warning  string
}{
	{100, SeverityNone, ""},
	{300, SeverityLow, "quote moves the pool price by over 1%"},
	{500, SeverityModerate, "quote moves the pool price by over 3%, a smaller amount or a later refresh may route better"},
	{1000, SeverityHigh, "quote drains a large share of the routed pools, expect well below the spot rate"},
}

const extremeWarning = "quote moves the pool price by over 10%, the routed pools are too shallow for this amount"

// one basis point as an 18-decimal fraction
var bpsUnit = uint256.NewInt(1e14)

func ImpactSeverityOf(bps uint16) ImpactSeverity {
	for _, b := range impactBands {
		if bps < b.below {
			return b.severity
		}
	}
	return SeverityExtreme
}

// ImpactWarning is empty below 1%.
func ImpactWarning(bps uint16) string {
	for _, b := range impactBands {
		if bps < b.below {
			return b.warning
		}
	}
	return extremeWarning
}

// ImpactBps converts an 18-decimal impact fraction to basis points, rounding
// down and saturating at the uint16 range.
func ImpactBps(impact *uint256.Int) uint16 {
	bps := new(uint256.Int).Div(impact, bpsUnit)
	if !bps.IsUint64() || bps.Uint64() > 65535 {
		return 65535
	}
	return uint16(bps.Uint64())
}

// roundTripImpact reverses every path and feeds the computed side back in:
// the output for GivenIn, the input for GivenOut. Reversed legs run in order
// on one fresh copy of the pools so shared pools see each other, matching the
// way split legs were priced.
//
// impact = |original - roundTrip| / (2 * original)
func roundTripImpact(set *pools.Set, paths []*PathWithAmount, kind domain.SwapKind) (*uint256.Int, error) {
	ids := make([]common.Hash, 0, len(paths))
	for _, p := range paths {
		ids = append(ids, p.Path.Pools...)
	}
	clone, err := set.Subset(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cmn.ErrPriceImpactUnavailable, err)
	}

	original := new(uint256.Int)
	roundTrip := new(uint256.Int)
	for _, p := range paths {
		reversed := p.Path.Reverse()
		var back *PathWithAmount
		if kind == domain.GivenIn {
			original.Add(original, p.AmountIn.Amount)
			back, err = PricePath(clone, reversed, domain.GivenIn, p.AmountOut, true)
			if err == nil {
				roundTrip.Add(roundTrip, back.AmountOut.Amount)
			}
		} else {
			original.Add(original, p.AmountOut.Amount)
			back, err = PricePath(clone, reversed, domain.GivenOut, p.AmountIn, true)
			if err == nil {
				roundTrip.Add(roundTrip, back.AmountIn.Amount)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", cmn.ErrPriceImpactUnavailable, err)
		}
	}
	if original.IsZero() {
		return nil, fmt.Errorf("%w: zero trade size", cmn.ErrPriceImpactUnavailable)
	}

	diff := new(uint256.Int)
	if original.Gt(roundTrip) {
		diff.Sub(original, roundTrip)
	} else {
		diff.Sub(roundTrip, original)
	}
	denominator := new(uint256.Int).Lsh(original, 1)
	impact, err := fixedpoint.DivDown(diff, denominator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cmn.ErrPriceImpactUnavailable, err)
	}
	return impact, nil
}
