package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type PoolType uint8

const (
	PoolTypeUnknown PoolType = iota
	PoolTypeWeighted
	PoolTypeStable
	PoolTypeComposableStable
	PoolTypeMetaStable
	PoolTypeGyro2
	PoolTypeGyro3
	PoolTypeGyroE
	PoolTypeFx
)

func (p PoolType) String() string {
	switch p {
	case PoolTypeWeighted:
		return "WEIGHTED"
	case PoolTypeStable:
		return "STABLE"
	case PoolTypeComposableStable:
		return "COMPOSABLE_STABLE"
	case PoolTypeMetaStable:
		return "META_STABLE"
	case PoolTypeGyro2:
		return "GYRO"
	case PoolTypeGyro3:
		return "GYRO3"
	case PoolTypeGyroE:
		return "GYROE"
	case PoolTypeFx:
		return "FX"
	default:
		return "UNKNOWN"
	}
}

// ParsePoolType accepts the names produced by String, case-insensitively.
func ParsePoolType(s string) PoolType {
	switch strings.ToUpper(s) {
	case "WEIGHTED":
		return PoolTypeWeighted
	case "STABLE":
		return PoolTypeStable
	case "COMPOSABLE_STABLE", "PHANTOM_STABLE":
		return PoolTypeComposableStable
	case "META_STABLE":
		return PoolTypeMetaStable
	case "GYRO", "GYRO2":
		return PoolTypeGyro2
	case "GYRO3":
		return PoolTypeGyro3
	case "GYROE":
		return PoolTypeGyroE
	case "FX":
		return PoolTypeFx
	default:
		return PoolTypeUnknown
	}
}

// PoolRecord is the snapshot of one pool as ingested from an indexer. Numeric
// values are base-10 strings: balances in raw token units, fees, weights,
// rates and curve parameters as 18-decimal fixed point unless noted.
type PoolRecord struct {
	ID          common.Hash       `json:"id"`
	Address     common.Address    `json:"address"`
	ChainID     uint64            `json:"chainId"`
	Type        PoolType          `json:"type"`
	Version     int               `json:"version"`
	SwapFee     string            `json:"swapFee"`
	TotalShares string            `json:"totalShares"`
	Tokens      []PoolTokenRecord `json:"tokens"`

	// Amp is the amplification parameter without precision, e.g. "200".
	Amp string `json:"amp,omitempty"`

	Gyro *GyroParams `json:"gyro,omitempty"`
	ECLP *ECLPParams `json:"eclp,omitempty"`
	Fx   *FxParams   `json:"fx,omitempty"`

	// NormalizedLiquidity caches the off-line liquidity figure per direction,
	// keyed by NormalizedLiquidityKey.
	NormalizedLiquidity map[string]string `json:"normalizedLiquidity,omitempty"`
}

type PoolTokenRecord struct {
	Address    common.Address `json:"address"`
	Decimals   uint8          `json:"decimals"`
	Symbol     string         `json:"symbol,omitempty"`
	Underlying common.Address `json:"underlying,omitempty"`
	Balance    string         `json:"balance"`
	Weight     string         `json:"weight,omitempty"`
	PriceRate  string         `json:"priceRate,omitempty"`

	// FX oracle rate and its decimals, e.g. 8 for Chainlink USD feeds.
	FxRate         string `json:"fxRate,omitempty"`
	FxRateDecimals uint8  `json:"fxRateDecimals,omitempty"`
}

type GyroParams struct {
	SqrtAlpha  string `json:"sqrtAlpha,omitempty"`
	SqrtBeta   string `json:"sqrtBeta,omitempty"`
	Root3Alpha string `json:"root3Alpha,omitempty"`
}

// ECLPParams holds the ellipse definition (18 decimals) and, optionally, the
// derived values (38 decimals). Missing derived values are computed.
type ECLPParams struct {
	Alpha  string `json:"alpha"`
	Beta   string `json:"beta"`
	C      string `json:"c"`
	S      string `json:"s"`
	Lambda string `json:"lambda"`

	TauAlphaX string `json:"tauAlphaX,omitempty"`
	TauAlphaY string `json:"tauAlphaY,omitempty"`
	TauBetaX  string `json:"tauBetaX,omitempty"`
	TauBetaY  string `json:"tauBetaY,omitempty"`
	U         string `json:"u,omitempty"`
	V         string `json:"v,omitempty"`
	W         string `json:"w,omitempty"`
	Z         string `json:"z,omitempty"`
	DSq       string `json:"dSq,omitempty"`
}

type FxParams struct {
	Alpha   string `json:"alpha"`
	Beta    string `json:"beta"`
	Delta   string `json:"delta"`
	Epsilon string `json:"epsilon"`
	Lambda  string `json:"lambda"`
}

func NormalizedLiquidityKey(tokenIn, tokenOut common.Address) string {
	return strings.ToLower(tokenIn.Hex() + ":" + tokenOut.Hex())
}

// TokenFromRecord returns the Token described by a pool token record.
func TokenFromRecord(chainID uint64, t PoolTokenRecord) *Token {
	tok := NewToken(chainID, t.Address, t.Decimals)
	tok.Symbol = t.Symbol
	if t.Underlying != (common.Address{}) {
		tok.Underlying = t.Underlying
	}
	return tok
}
