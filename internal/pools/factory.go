package pools

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/fixedpoint"
)

var ErrUnsupportedPoolType = fmt.Errorf("%w: unsupported pool type", cmn.ErrInvalidPath)

// FromRecord builds the pool variant described by a snapshot record.
func FromRecord(rec *domain.PoolRecord) (Pool, error) {
	if len(rec.Tokens) < 2 {
		return nil, fmt.Errorf("%w: pool %s has %d tokens", cmn.ErrInvalidPath, rec.ID.Hex(), len(rec.Tokens))
	}
	switch rec.Type {
	case domain.PoolTypeWeighted:
		return NewWeightedPool(rec)
	case domain.PoolTypeStable, domain.PoolTypeMetaStable:
		return NewStablePool(rec)
	case domain.PoolTypeComposableStable:
		return NewComposableStablePool(rec)
	case domain.PoolTypeGyro2:
		return NewGyro2Pool(rec)
	case domain.PoolTypeGyro3:
		return NewGyro3Pool(rec)
	case domain.PoolTypeGyroE:
		return NewGyroEPool(rec)
	case domain.PoolTypeFx:
		return NewFxPool(rec)
	default:
		return nil, fmt.Errorf("%w: %s (pool %s)", ErrUnsupportedPoolType, rec.Type, rec.ID.Hex())
	}
}

// FromRecords builds every supported pool and reports how many records were
// dropped, so ingestion can count them instead of failing the batch.
func FromRecords(recs []*domain.PoolRecord) (*Set, int) {
	set := NewSet()
	dropped := 0
	for _, rec := range recs {
		p, err := FromRecord(rec)
		if err != nil {
			dropped++
			continue
		}
		set.Put(p)
	}
	return set, dropped
}

func newBasePool(rec *domain.PoolRecord) (basePool, error) {
	fee, err := parseAmount(rec.SwapFee, "swapFee")
	if err != nil {
		return basePool{}, err
	}
	if !fee.Lt(fixedpoint.One) {
		return basePool{}, fmt.Errorf("%w: swap fee %s >= 1", cmn.ErrInvalidPath, fee.Dec())
	}
	b := basePool{
		id:       rec.ID,
		address:  rec.Address,
		chainID:  rec.ChainID,
		poolType: rec.Type,
		swapFee:  fee,
		tokens:   make([]poolToken, len(rec.Tokens)),
	}
	for i, t := range rec.Tokens {
		if t.Decimals > 18 {
			return basePool{}, fmt.Errorf("%w: %s has %d decimals", cmn.ErrInvalidPath, t.Address.Hex(), t.Decimals)
		}
		balance, err := parseAmount(t.Balance, "balance")
		if err != nil {
			return basePool{}, err
		}
		rate := clone(fixedpoint.One)
		if t.PriceRate != "" {
			if rate, err = parseAmount(t.PriceRate, "priceRate"); err != nil {
				return basePool{}, err
			}
			if rate.IsZero() {
				return basePool{}, fmt.Errorf("%w: zero price rate for %s", cmn.ErrInvalidPath, t.Address.Hex())
			}
		}
		b.tokens[i] = poolToken{
			token:   domain.TokenFromRecord(rec.ChainID, t),
			balance: balance,
			rate:    rate,
		}
	}
	if len(rec.NormalizedLiquidity) > 0 {
		b.liquidityCache = make(map[string]*uint256.Int, len(rec.NormalizedLiquidity))
		for k, v := range rec.NormalizedLiquidity {
			nl, err := parseAmount(v, "normalizedLiquidity")
			if err != nil {
				return basePool{}, err
			}
			b.liquidityCache[k] = nl
		}
	}
	return b, nil
}

func parseAmount(s, field string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: missing %s", cmn.ErrInvalidPath, field)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad %s %q: %v", cmn.ErrInvalidPath, field, s, err)
	}
	return v, nil
}

func parseSigned(s, field string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: missing %s", cmn.ErrInvalidPath, field)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: bad %s %q", cmn.ErrInvalidPath, field, s)
	}
	return v, nil
}
