package market

import (
	"github.com/balancer/backend-sub000/internal/domain"
)

// RecordValidator decides whether a record carries enough state to be priced.
type RecordValidator interface {
	SupportsPoolType(poolType domain.PoolType) bool
	IsReady(rec *domain.PoolRecord) bool
}

// Registry dispatches readiness checks by pool type. Types without a
// validator only need funded balances.
type Registry struct {
	validators []RecordValidator
}

func NewRegistry() *Registry {
	return &Registry{
		validators: make([]RecordValidator, 0),
	}
}

func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterValidator(&WeightedValidator{})
	r.RegisterValidator(&StableValidator{})
	r.RegisterValidator(&GyroValidator{})
	r.RegisterValidator(&FxValidator{})
	return r
}

func (r *Registry) RegisterValidator(validator RecordValidator) {
	r.validators = append(r.validators, validator)
}

func (r *Registry) IsRecordReady(rec *domain.PoolRecord) bool {
	if !hasFundedTokens(rec) {
		return false
	}
	for _, validator := range r.validators {
		if validator.SupportsPoolType(rec.Type) {
			return validator.IsReady(rec)
		}
	}
	return true
}
