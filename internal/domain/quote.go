package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type HopQuote struct {
	PoolID    common.Hash
	PoolType  PoolType
	Operation string
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
}

type PathQuote struct {
	Tokens    []common.Address
	Hops      []HopQuote
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
}

// RoutedQuote is the full answer for one quote request: amounts, the chosen
// paths and everything needed to call the vault.
type RoutedQuote struct {
	Kind     SwapKind
	TokenIn  *Token
	TokenOut *Token

	AmountIn  *uint256.Int
	AmountOut *uint256.Int

	Paths []PathQuote
	// SplitLabel names the split candidate that won, e.g. "100/0" or "liquidity".
	SplitLabel string

	// PriceImpact is an 18-decimal fraction, valid only when PriceImpactAvailable.
	PriceImpact          *uint256.Int
	PriceImpactAvailable bool

	IsBatch    bool
	Assets     []common.Address
	Steps      []BatchSwapStep
	SingleSwap *SingleSwap
	Limits     []*big.Int

	Verified bool
}

// ZeroQuote is returned when no route exists. It is a valid quote, not an error.
func ZeroQuote(kind SwapKind, tokenIn, tokenOut *Token) *RoutedQuote {
	return &RoutedQuote{
		Kind:      kind,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  new(uint256.Int),
		AmountOut: new(uint256.Int),
	}
}

func (q *RoutedQuote) IsZero() bool {
	return len(q.Paths) == 0
}
