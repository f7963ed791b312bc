package router

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/balancer/backend-sub000/internal/config"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/pools"
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

func token(n int) *domain.Token {
	return domain.NewToken(chainID, addr(n), 18)
}

func amount(t *domain.Token, raw string) *domain.TokenAmount {
	return domain.NewTokenAmount(t, uint256.MustFromDecimal(raw))
}

// pair builds a fee-less 50/50 weighted pool between tokens a and b. Its
// share token lives at address 1000+id.
func pair(id, a, b int, balA, balB string) *domain.PoolRecord {
	return &domain.PoolRecord{
		ID:          poolID(id),
		Address:     addr(1000 + id),
		ChainID:     chainID,
		Type:        domain.PoolTypeWeighted,
		Version:     2,
		SwapFee:     "0",
		TotalShares: e18(100),
		Tokens: []domain.PoolTokenRecord{
			{Address: addr(a), Decimals: 18, Balance: balA, Weight: "500000000000000000"},
			{Address: addr(b), Decimals: 18, Balance: balB, Weight: "500000000000000000"},
		},
	}
}

func newSet(t testing.TB, recs ...*domain.PoolRecord) *pools.Set {
	t.Helper()
	set := pools.NewSet()
	for _, rec := range recs {
		p, err := pools.FromRecord(rec)
		require.NoError(t, err)
		set.Put(p)
	}
	return set
}

func mustPath(t testing.TB, tokens []int, poolIDs []int) *Path {
	t.Helper()
	toks := make([]*domain.Token, len(tokens))
	for i, n := range tokens {
		toks[i] = token(n)
	}
	ids := make([]common.Hash, len(poolIDs))
	for i, n := range poolIDs {
		ids[i] = poolID(n)
	}
	p, err := NewPath(toks, ids, nil)
	require.NoError(t, err)
	return p
}

func routerConfig() *config.RouterConfig {
	return &config.RouterConfig{
		MaxHops:            3,
		MaxPaths:           8,
		MaxNonCoreHops:     1,
		DefaultSlippageBps: 50,
		CandidateCacheSize: 16,
	}
}

// limitOf fingerprints a pool's balances through its exact-in limit, which
// scales with the tokenIn balance.
func limitOf(t *testing.T, set *pools.Set, id int, tok *domain.Token) string {
	t.Helper()
	p, err := set.Get(poolID(id))
	require.NoError(t, err)
	limit, err := p.LimitAmount(tok, otherToken(p, tok), domain.GivenIn)
	require.NoError(t, err)
	return limit.Dec()
}

func otherToken(p pools.Pool, t *domain.Token) *domain.Token {
	for _, x := range p.Tokens() {
		if !x.IsSame(t) {
			return x
		}
	}
	return nil
}
