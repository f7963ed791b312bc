package router

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
	"github.com/balancer/backend-sub000/internal/pools"
)

// Swap is a set of priced paths turned into vault call parameters.
type Swap struct {
	Kind     domain.SwapKind
	Paths    []*PathWithAmount
	TokenIn  *domain.Token
	TokenOut *domain.Token

	IsBatch bool
	Single  *domain.SingleSwap
	Assets  []common.Address
	Steps   []domain.BatchSwapStep
}

// NewSwap assembles execution steps. One path with one hop becomes a single
// swap; anything else is a batch over the de-duplicated assets. The vault
// settles GivenOut batches from the output side, so their steps are emitted
// last hop first. Only the first step of each path carries an amount; the
// rest chain on the previous step's result.
func NewSwap(paths []*PathWithAmount, kind domain.SwapKind) (*Swap, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no paths to assemble", cmn.ErrInvalidPath)
	}
	tokenIn, tokenOut := paths[0].Path.TokenIn(), paths[0].Path.TokenOut()
	for _, p := range paths[1:] {
		if !p.Path.TokenIn().IsSame(tokenIn) || !p.Path.TokenOut().IsSame(tokenOut) {
			return nil, fmt.Errorf("%w: %s->%s next to %s->%s", cmn.ErrMixedEndpointTokens,
				tokenIn, tokenOut, p.Path.TokenIn(), p.Path.TokenOut())
		}
	}
	for _, p := range paths {
		if p.Kind != kind {
			return nil, fmt.Errorf("%w: path priced %s in a %s swap", cmn.ErrInvalidSwap, p.Kind, kind)
		}
	}

	s := &Swap{Kind: kind, Paths: paths, TokenIn: tokenIn, TokenOut: tokenOut}
	if len(paths) == 1 && paths[0].Path.Hops() == 1 {
		p := paths[0]
		s.Assets = []common.Address{tokenIn.Address, tokenOut.Address}
		s.Single = &domain.SingleSwap{
			PoolId:   p.Path.Pools[0],
			Kind:     uint8(kind),
			AssetIn:  tokenIn.Address,
			AssetOut: tokenOut.Address,
			Amount:   p.Given().Amount.ToBig(),
			UserData: []byte{},
		}
		return s, nil
	}

	s.IsBatch = true
	index := make(map[common.Address]int)
	for _, p := range paths {
		for _, t := range p.Path.Tokens {
			if _, ok := index[t.Address]; ok {
				continue
			}
			index[t.Address] = len(s.Assets)
			s.Assets = append(s.Assets, t.Address)
		}
	}

	for _, p := range paths {
		n := p.Path.Hops()
		for k := 0; k < n; k++ {
			i := k
			if kind == domain.GivenOut {
				i = n - 1 - k
			}
			amount := new(big.Int)
			if k == 0 {
				amount = p.Given().Amount.ToBig()
			}
			s.Steps = append(s.Steps, domain.BatchSwapStep{
				PoolId:        p.Path.Pools[i],
				AssetInIndex:  big.NewInt(int64(index[p.Path.Tokens[i].Address])),
				AssetOutIndex: big.NewInt(int64(index[p.Path.Tokens[i+1].Address])),
				Amount:        amount,
				UserData:      []byte{},
			})
		}
	}
	return s, nil
}

// InputAmount sums what every path consumes.
func (s *Swap) InputAmount() *domain.TokenAmount {
	total := new(uint256.Int)
	for _, p := range s.Paths {
		total.Add(total, p.AmountIn.Amount)
	}
	return domain.NewTokenAmount(s.TokenIn, total)
}

// OutputAmount sums what every path produces.
func (s *Swap) OutputAmount() *domain.TokenAmount {
	total := new(uint256.Int)
	for _, p := range s.Paths {
		total.Add(total, p.AmountOut.Amount)
	}
	return domain.NewTokenAmount(s.TokenOut, total)
}

// PriceImpact estimates impact with a reverse round trip through a fresh copy
// of the pools. Failures wrap ErrPriceImpactUnavailable.
func (s *Swap) PriceImpact(set *pools.Set) (*uint256.Int, error) {
	return roundTripImpact(set, s.Paths, s.Kind)
}

// Limits returns the vault's per-asset limits for the expected amounts,
// worsened by slippage (18-decimal fraction) on the computed side. Positive
// values are sent to the vault, negative ones received.
func (s *Swap) Limits(slippage, expectedIn, expectedOut *uint256.Int) ([]*big.Int, error) {
	if slippage.Gt(fixedpoint.One) {
		return nil, fmt.Errorf("%w: slippage above 100%%", cmn.ErrInvalidSwap)
	}
	limits := make([]*big.Int, len(s.Assets))
	for i := range limits {
		limits[i] = new(big.Int)
	}
	in, out := s.assetIndex(s.TokenIn.Address), s.assetIndex(s.TokenOut.Address)

	if s.Kind == domain.GivenIn {
		minOut, err := fixedpoint.MulDown(expectedOut, fixedpoint.Complement(slippage))
		if err != nil {
			return nil, err
		}
		limits[in] = expectedIn.ToBig()
		limits[out] = new(big.Int).Neg(minOut.ToBig())
		return limits, nil
	}

	maxIn, err := fixedpoint.MulUp(expectedIn, new(uint256.Int).Add(fixedpoint.One, slippage))
	if err != nil {
		return nil, err
	}
	limits[in] = maxIn.ToBig()
	limits[out] = new(big.Int).Neg(expectedOut.ToBig())
	return limits, nil
}

func (s *Swap) assetIndex(a common.Address) int {
	for i, asset := range s.Assets {
		if asset == a {
			return i
		}
	}
	return -1
}

// SlippageFromBps converts basis points to an 18-decimal fraction.
func SlippageFromBps(bps uint16) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(uint64(bps)), bpsUnit)
}

// BuildQuote assembles the response for a selected route. A route whose
// price impact cannot be computed is still returned, flagged as such.
func BuildQuote(route *Route, set *pools.Set, slippageBps uint16) (*domain.RoutedQuote, *Swap, error) {
	swap, err := NewSwap(route.Paths, route.Kind)
	if err != nil {
		return nil, nil, err
	}
	amountIn, amountOut := swap.InputAmount(), swap.OutputAmount()
	limits, err := swap.Limits(SlippageFromBps(slippageBps), amountIn.Amount, amountOut.Amount)
	if err != nil {
		return nil, nil, err
	}

	q := &domain.RoutedQuote{
		Kind:       route.Kind,
		TokenIn:    swap.TokenIn,
		TokenOut:   swap.TokenOut,
		AmountIn:   amountIn.Amount,
		AmountOut:  amountOut.Amount,
		Paths:      make([]domain.PathQuote, len(route.Paths)),
		SplitLabel: route.Label,
		IsBatch:    swap.IsBatch,
		Assets:     swap.Assets,
		Steps:      swap.Steps,
		SingleSwap: swap.Single,
		Limits:     limits,
	}
	for i, p := range route.Paths {
		q.Paths[i] = p.Quote()
	}

	impact, err := swap.PriceImpact(set)
	switch {
	case err == nil:
		q.PriceImpact = impact
		q.PriceImpactAvailable = true
	case errors.Is(err, cmn.ErrPriceImpactUnavailable):
		q.PriceImpact = new(uint256.Int)
	default:
		return nil, nil, err
	}
	return q, swap, nil
}
