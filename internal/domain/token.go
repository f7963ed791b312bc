package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Token identifies an ERC20 on a specific chain. Addresses are compared as
// bytes, so differently cased hex inputs resolve to the same token.
type Token struct {
	ChainID    uint64
	Address    common.Address
	Decimals   uint8
	Symbol     string
	Name       string
	Underlying common.Address
}

func NewToken(chainID uint64, address common.Address, decimals uint8) *Token {
	return &Token{ChainID: chainID, Address: address, Decimals: decimals, Underlying: address}
}

// ParseToken builds a token from a hex address string.
func ParseToken(chainID uint64, address string, decimals uint8) (*Token, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid token address %q", address)
	}
	if decimals > 18 {
		return nil, fmt.Errorf("token %s has %d decimals, max is 18", address, decimals)
	}
	return NewToken(chainID, common.HexToAddress(address), decimals), nil
}

func (t *Token) WithSymbol(symbol, name string) *Token {
	c := *t
	c.Symbol = symbol
	c.Name = name
	return &c
}

func (t *Token) WithUnderlying(underlying common.Address) *Token {
	c := *t
	c.Underlying = underlying
	return &c
}

// IsSame reports whether both tokens are the same contract on the same chain.
func (t *Token) IsSame(other *Token) bool {
	if t == nil || other == nil {
		return false
	}
	return t.ChainID == other.ChainID && t.Address == other.Address
}

// IsUnderlyingEqual compares the tokens' underlying assets. A wrapped token
// and its underlying compare equal.
func (t *Token) IsUnderlyingEqual(other *Token) bool {
	if t == nil || other == nil {
		return false
	}
	return t.ChainID == other.ChainID && t.underlying() == other.underlying()
}

func (t *Token) underlying() common.Address {
	if t.Underlying == (common.Address{}) {
		return t.Address
	}
	return t.Underlying
}

func (t *Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}
