package router

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	cmn "github.com/balancer/backend-sub000/internal/common"
)

// A-B, B-C and A-C pools, plus a second A-B pool.
func triangle(t *testing.T) (*Graph, func()) {
	set := newSet(t,
		pair(1, 1, 2, e18(100), e18(100)),
		pair(2, 2, 3, e18(100), e18(100)),
		pair(3, 1, 3, e18(100), e18(100)),
		pair(4, 1, 2, e18(50), e18(50)),
	)
	conf := routerConfig()
	g := NewGraph(conf)
	return g, func() { g.Rebuild(set) }
}

func TestGraphCandidatesShortestFirst(t *testing.T) {
	g, rebuild := triangle(t)
	rebuild()

	paths, err := g.Candidates(token(1), token(3))
	require.NoError(t, err)
	require.Len(t, paths, 3)

	require.Equal(t, []common.Hash{poolID(3)}, paths[0].Pools)
	require.Equal(t, 2, paths[1].Hops())
	require.Equal(t, 2, paths[2].Hops())
	for _, p := range paths {
		require.True(t, p.TokenIn().IsSame(token(1)))
		require.True(t, p.TokenOut().IsSame(token(3)))
	}

	// deterministic across calls and rebuilds
	rebuild()
	again, err := g.Candidates(token(1), token(3))
	require.NoError(t, err)
	for i := range paths {
		require.Equal(t, paths[i].ID(), again[i].ID())
	}
}

func TestGraphBounds(t *testing.T) {
	set := newSet(t,
		pair(1, 1, 2, e18(100), e18(100)),
		pair(2, 2, 3, e18(100), e18(100)),
		pair(3, 1, 3, e18(100), e18(100)),
	)

	conf := routerConfig()
	conf.MaxHops = 1
	g := NewGraph(conf)
	g.Rebuild(set)
	paths, err := g.Candidates(token(1), token(3))
	require.NoError(t, err)
	require.Len(t, paths, 1)

	conf = routerConfig()
	conf.MaxNonCoreHops = 0
	g = NewGraph(conf)
	g.Rebuild(set)
	paths, err = g.Candidates(token(1), token(3))
	require.NoError(t, err)
	require.Len(t, paths, 1)

	conf = routerConfig()
	conf.MaxNonCoreHops = 0
	conf.CoreTokens = []common.Address{addr(2)}
	g = NewGraph(conf)
	g.Rebuild(set)
	paths, err = g.Candidates(token(1), token(3))
	require.NoError(t, err)
	require.Len(t, paths, 2)

	conf = routerConfig()
	conf.MaxPaths = 1
	g = NewGraph(conf)
	g.Rebuild(set)
	paths, err = g.Candidates(token(1), token(3))
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, 1, paths[0].Hops())
}

func TestGraphShareTokenEdges(t *testing.T) {
	// pool 2 trades pool 1's share token against token 3
	set := newSet(t, pair(1, 1, 2, e18(100), e18(100)), pair(2, 1001, 3, e18(50), e18(50)))
	g := NewGraph(routerConfig())
	g.Rebuild(set)

	paths, err := g.Candidates(token(1), token(3))
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, []Operation{OpAddLiquidity, OpSwap}, paths[0].Ops)

	back, err := g.Candidates(token(3), token(2))
	require.NoError(t, err)
	require.Len(t, back, 1)
	require.Equal(t, []Operation{OpSwap, OpRemoveLiquidity}, back[0].Ops)
}

func TestGraphCacheAndUnknownTokens(t *testing.T) {
	g, rebuild := triangle(t)
	rebuild()

	first, err := g.Candidates(token(1), token(2))
	require.NoError(t, err)
	require.Equal(t, 1, g.cache.Len())
	second, err := g.Candidates(token(1), token(2))
	require.NoError(t, err)
	require.Equal(t, first, second)

	rebuild()
	require.Equal(t, 0, g.cache.Len())

	none, err := g.Candidates(token(1), token(99))
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = g.Candidates(token(1), token(1))
	require.ErrorIs(t, err, cmn.ErrInvalidPath)
}

func TestGraphIgnoresEntriesFromOlderGraph(t *testing.T) {
	g, rebuild := triangle(t)
	rebuild()

	stale := g.snapshot.Load()
	old, err := g.Candidates(token(1), token(3))
	require.NoError(t, err)
	require.Len(t, old, 3)

	// only the direct A-C pool survives
	g.Rebuild(newSet(t, pair(3, 1, 3, e18(100), e18(100))))

	// a lookup that started before the rebuild writes its result late
	g.cache.Set(pairKey{addr(1), addr(3)}, cachedPaths{snap: stale, paths: old})

	paths, err := g.Candidates(token(1), token(3))
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, []common.Hash{poolID(3)}, paths[0].Pools)

	cached, ok := g.cache.Get(pairKey{addr(1), addr(3)})
	require.True(t, ok)
	require.Same(t, g.snapshot.Load(), cached.snap)
}

func TestGraphTokenLookup(t *testing.T) {
	g, rebuild := triangle(t)
	_, ok := g.Token(addr(1))
	require.False(t, ok)

	rebuild()
	tok, ok := g.Token(addr(1))
	require.True(t, ok)
	require.True(t, tok.IsSame(token(1)))
	require.Equal(t, uint8(18), tok.Decimals)

	_, ok = g.Token(addr(99))
	require.False(t, ok)
}
