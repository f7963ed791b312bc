package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapKind matches the vault's enum ordering.
type SwapKind uint8

const (
	GivenIn SwapKind = iota
	GivenOut
)

func (k SwapKind) String() string {
	if k == GivenOut {
		return "ExactOut"
	}
	return "ExactIn"
}

// ParseSwapKind accepts the API names ExactIn/ExactOut and the vault names.
func ParseSwapKind(s string) (SwapKind, bool) {
	switch s {
	case "ExactIn", "GivenIn", "GIVEN_IN":
		return GivenIn, true
	case "ExactOut", "GivenOut", "GIVEN_OUT":
		return GivenOut, true
	}
	return GivenIn, false
}

// BatchSwapStep mirrors IVault.BatchSwapStep.
type BatchSwapStep struct {
	PoolId        [32]byte `json:"poolId"`
	AssetInIndex  *big.Int `json:"assetInIndex"`
	AssetOutIndex *big.Int `json:"assetOutIndex"`
	Amount        *big.Int `json:"amount"`
	UserData      []byte   `json:"userData"`
}

// SingleSwap mirrors IVault.SingleSwap.
type SingleSwap struct {
	PoolId   [32]byte       `json:"poolId"`
	Kind     uint8          `json:"kind"`
	AssetIn  common.Address `json:"assetIn"`
	AssetOut common.Address `json:"assetOut"`
	Amount   *big.Int       `json:"amount"`
	UserData []byte         `json:"userData"`
}

// FundManagement mirrors IVault.FundManagement.
type FundManagement struct {
	Sender              common.Address
	FromInternalBalance bool
	Recipient           common.Address
	ToInternalBalance   bool
}

// QuoteRequest is what callers ask the aggregator for.
type QuoteRequest struct {
	ChainID     uint64
	TokenIn     common.Address
	TokenOut    common.Address
	Kind        SwapKind
	Amount      *big.Int
	SlippageBps uint16
	Verify      bool
}
