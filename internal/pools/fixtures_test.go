package pools

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/balancer/backend-sub000/internal/domain"
)

const chainID = 1

func addr(n int) common.Address {
	return common.HexToAddress(fmt.Sprintf("0x%040x", n))
}

func poolID(n int) common.Hash {
	return common.BigToHash(uint256.NewInt(uint64(n)).ToBig())
}

func e18(n uint64) string {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18)).Dec()
}

func amount(t *domain.Token, raw string) *domain.TokenAmount {
	return domain.NewTokenAmount(t, uint256.MustFromDecimal(raw))
}

func tokenRec(n int, decimals uint8, balance string) domain.PoolTokenRecord {
	return domain.PoolTokenRecord{Address: addr(n), Decimals: decimals, Balance: balance}
}

func tok(rec *domain.PoolRecord, i int) *domain.Token {
	return domain.TokenFromRecord(rec.ChainID, rec.Tokens[i])
}

func weightedRecord(fee string, balances ...string) *domain.PoolRecord {
	rec := &domain.PoolRecord{
		ID:          poolID(1),
		Address:     addr(1000),
		ChainID:     chainID,
		Type:        domain.PoolTypeWeighted,
		Version:     2,
		SwapFee:     fee,
		TotalShares: e18(156),
	}
	weight := uint256.NewInt(1e18)
	weight.Div(weight, uint256.NewInt(uint64(len(balances))))
	for i, b := range balances {
		tr := tokenRec(i+1, 18, b)
		tr.Weight = weight.Dec()
		rec.Tokens = append(rec.Tokens, tr)
	}
	return rec
}

func stableRecord(amp, fee string, balances ...string) *domain.PoolRecord {
	rec := &domain.PoolRecord{
		ID:      poolID(2),
		Address: addr(2000),
		ChainID: chainID,
		Type:    domain.PoolTypeStable,
		SwapFee: fee,
		Amp:     amp,
	}
	for i, b := range balances {
		rec.Tokens = append(rec.Tokens, tokenRec(i+11, 18, b))
	}
	return rec
}

// composableRecord places the share token first, the way composable pools
// register it.
func composableRecord() *domain.PoolRecord {
	rec := &domain.PoolRecord{
		ID:          poolID(3),
		Address:     addr(3000),
		ChainID:     chainID,
		Type:        domain.PoolTypeComposableStable,
		SwapFee:     "0",
		Amp:         "200",
		TotalShares: e18(200),
	}
	rec.Tokens = []domain.PoolTokenRecord{
		{Address: addr(3000), Decimals: 18, Balance: e18(1_000_000)},
		tokenRec(21, 18, e18(100)),
		tokenRec(22, 6, "100000000"),
	}
	return rec
}

func gyro2Record() *domain.PoolRecord {
	return &domain.PoolRecord{
		ID:      poolID(4),
		Address: addr(4000),
		ChainID: chainID,
		Type:    domain.PoolTypeGyro2,
		SwapFee: "1000000000000000",
		Tokens:  []domain.PoolTokenRecord{tokenRec(31, 18, e18(1000)), tokenRec(32, 18, e18(1000))},
		Gyro: &domain.GyroParams{
			SqrtAlpha: "948683298050513799",
			SqrtBeta:  "1048808848170151546",
		},
	}
}

func gyro3Record() *domain.PoolRecord {
	return &domain.PoolRecord{
		ID:      poolID(5),
		Address: addr(5000),
		ChainID: chainID,
		Type:    domain.PoolTypeGyro3,
		SwapFee: "1000000000000000",
		Tokens: []domain.PoolTokenRecord{
			tokenRec(41, 18, e18(1000)),
			tokenRec(42, 18, e18(1000)),
			tokenRec(43, 18, e18(1000)),
		},
		Gyro: &domain.GyroParams{Root3Alpha: "995000000000000000"},
	}
}

// gyroERecord is a 45 degree ellipse around price 1 without derived values.
func gyroERecord() *domain.PoolRecord {
	return &domain.PoolRecord{
		ID:      poolID(6),
		Address: addr(6000),
		ChainID: chainID,
		Type:    domain.PoolTypeGyroE,
		SwapFee: "1000000000000000",
		Tokens:  []domain.PoolTokenRecord{tokenRec(51, 18, e18(1000)), tokenRec(52, 18, e18(1000))},
		ECLP: &domain.ECLPParams{
			Alpha:  "980000000000000000",
			Beta:   "1020000000000000000",
			C:      "707106781186547524",
			S:      "707106781186547524",
			Lambda: e18(50),
		},
	}
}

// fxRecord pairs two 6-decimal dollar tokens with 8-decimal oracle rates.
func fxRecord() *domain.PoolRecord {
	usdc := tokenRec(61, 6, "1000000000")
	usdc.FxRate, usdc.FxRateDecimals = "100000000", 8
	xsgd := tokenRec(62, 6, "1000000000")
	xsgd.FxRate, xsgd.FxRateDecimals = "100000000", 8
	return &domain.PoolRecord{
		ID:      poolID(7),
		Address: addr(7000),
		ChainID: chainID,
		Type:    domain.PoolTypeFx,
		SwapFee: "0",
		Tokens:  []domain.PoolTokenRecord{usdc, xsgd},
		Fx: &domain.FxParams{
			Alpha:   "800000000000000000",
			Beta:    "480000000000000000",
			Delta:   "175000000000000000",
			Epsilon: "500000000000000",
			Lambda:  "300000000000000000",
		},
	}
}

func mustPool(t *testing.T, rec *domain.PoolRecord) Pool {
	t.Helper()
	p, err := FromRecord(rec)
	require.NoError(t, err)
	return p
}
