package market

import (
	"github.com/holiman/uint256"

	"github.com/balancer/backend-sub000/internal/domain"
)

type WeightedValidator struct{}

func (v *WeightedValidator) SupportsPoolType(poolType domain.PoolType) bool {
	return poolType == domain.PoolTypeWeighted
}

// IsReady requires a positive weight on every token.
func (v *WeightedValidator) IsReady(rec *domain.PoolRecord) bool {
	for _, t := range rec.Tokens {
		if !positive(t.Weight) {
			return false
		}
	}
	return true
}

type StableValidator struct{}

func (v *StableValidator) SupportsPoolType(poolType domain.PoolType) bool {
	switch poolType {
	case domain.PoolTypeStable, domain.PoolTypeComposableStable, domain.PoolTypeMetaStable:
		return true
	}
	return false
}

func (v *StableValidator) IsReady(rec *domain.PoolRecord) bool {
	return positive(rec.Amp)
}

type GyroValidator struct{}

func (v *GyroValidator) SupportsPoolType(poolType domain.PoolType) bool {
	switch poolType {
	case domain.PoolTypeGyro2, domain.PoolTypeGyro3, domain.PoolTypeGyroE:
		return true
	}
	return false
}

func (v *GyroValidator) IsReady(rec *domain.PoolRecord) bool {
	switch rec.Type {
	case domain.PoolTypeGyro2:
		return rec.Gyro != nil && positive(rec.Gyro.SqrtAlpha) && positive(rec.Gyro.SqrtBeta)
	case domain.PoolTypeGyro3:
		return rec.Gyro != nil && positive(rec.Gyro.Root3Alpha)
	default:
		return rec.ECLP != nil && positive(rec.ECLP.Lambda)
	}
}

type FxValidator struct{}

func (v *FxValidator) SupportsPoolType(poolType domain.PoolType) bool {
	return poolType == domain.PoolTypeFx
}

// IsReady requires the curve parameters and an oracle rate per token.
func (v *FxValidator) IsReady(rec *domain.PoolRecord) bool {
	if rec.Fx == nil || len(rec.Tokens) != 2 {
		return false
	}
	for _, t := range rec.Tokens {
		if !positive(t.FxRate) {
			return false
		}
	}
	return true
}

func hasFundedTokens(rec *domain.PoolRecord) bool {
	if len(rec.Tokens) < 2 {
		return false
	}
	for _, t := range rec.Tokens {
		if !positive(t.Balance) {
			return false
		}
	}
	return true
}

func positive(s string) bool {
	v, err := uint256.FromDecimal(s)
	return err == nil && !v.IsZero()
}
