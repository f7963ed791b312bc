package router

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	container "github.com/thehyperflames/dicontainer-go"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/config"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/metrics"
	"github.com/balancer/backend-sub000/internal/pools"
)

const (
	ROUTER_SERVICE = "router.Graph"
)

// maxFrontier caps partial paths kept per BFS level on dense graphs.
const maxFrontier = 4096

// CandidateProvider enumerates paths from tokenIn to tokenOut.
type CandidateProvider interface {
	Candidates(tokenIn, tokenOut *domain.Token) ([]*Path, error)
}

type edge struct {
	to   TokenID
	pool common.Hash
	op   Operation
}

// graphSnapshot is immutable once published.
type graphSnapshot struct {
	registry *TokenRegistry
	adj      [][]edge // by TokenID
	pools    int
}

type pairKey struct {
	in, out common.Address
}

// cachedPaths is only served while snap is still the published graph.
type cachedPaths struct {
	snap  *graphSnapshot
	paths []*Path
}

// Graph is the token graph over the current pool snapshot. Candidates are
// enumerated breadth first, shortest paths first, in a deterministic order.
type Graph struct {
	container.BaseDIInstance

	logger *cmn.ServiceLogger
	conf   *config.RouterConfig
	core   map[common.Address]struct{}

	mu       sync.Mutex // Only for rebuilds
	snapshot atomic.Pointer[graphSnapshot]
	cache    *boundedLRU[pairKey, cachedPaths]
}

// NewGraph builds a graph outside the container.
func NewGraph(conf *config.RouterConfig) *Graph {
	g := &Graph{}
	g.init(conf)
	return g
}

func (g *Graph) ID() string {
	return ROUTER_SERVICE
}

func (g *Graph) Configure(c container.IContainer) error {
	g.init(c.GetConfig(config.ROUTER_CONFIG_KEY).(*config.RouterConfig))
	return nil
}

func (g *Graph) Start() error {
	return nil
}

func (g *Graph) Stop() error {
	return nil
}

func (g *Graph) init(conf *config.RouterConfig) {
	g.logger = cmn.NewServiceLogger(g)
	g.conf = conf
	g.core = make(map[common.Address]struct{}, len(conf.CoreTokens))
	for _, a := range conf.CoreTokens {
		g.core[a] = struct{}{}
	}
	g.cache = newBoundedLRU[pairKey, cachedPaths](conf.CandidateCacheSize)
	g.snapshot.Store(&graphSnapshot{registry: NewTokenRegistry(0)})
}

// Rebuild replaces the graph with one built from set and drops cached
// candidates.
func (g *Graph) Rebuild(set *pools.Set) {
	g.mu.Lock()
	defer g.mu.Unlock()

	all := set.All()
	registry := NewTokenRegistry(len(all) * 2)
	var adj [][]edge
	add := func(from, to *domain.Token, pool common.Hash, op Operation) {
		f, t := registry.GetOrCreate(from), registry.GetOrCreate(to)
		for int(f) >= len(adj) || int(t) >= len(adj) {
			adj = append(adj, nil)
		}
		adj[f] = append(adj[f], edge{to: t, pool: pool, op: op})
	}

	for _, p := range all {
		tokens := p.Tokens()
		for _, a := range tokens {
			for _, b := range tokens {
				if !a.IsSame(b) {
					add(a, b, p.ID(), OpSwap)
				}
			}
		}
		lp, ok := p.(pools.LiquidityPool)
		if !ok || containsToken(tokens, lp.ShareToken()) {
			continue
		}
		share := lp.ShareToken()
		for _, t := range tokens {
			add(t, share, p.ID(), OpAddLiquidity)
			add(share, t, p.ID(), OpRemoveLiquidity)
		}
	}

	for from := range adj {
		edges := adj[from]
		sort.Slice(edges, func(i, j int) bool {
			ai := registry.Token(edges[i].to).Address
			aj := registry.Token(edges[j].to).Address
			if c := bytes.Compare(ai[:], aj[:]); c != 0 {
				return c < 0
			}
			if c := bytes.Compare(edges[i].pool[:], edges[j].pool[:]); c != 0 {
				return c < 0
			}
			return edges[i].op < edges[j].op
		})
	}

	g.snapshot.Store(&graphSnapshot{registry: registry, adj: adj, pools: len(all)})
	g.cache.Clear()
	metrics.GraphRebuilds.Inc()
	g.logger.Info().Int("pools", len(all)).Int("tokens", registry.Size()).Msg("routing graph rebuilt")
}

// Candidates returns at most MaxPaths simple paths of at most MaxHops hops.
// No token or pool repeats within a path, and at most MaxNonCoreHops
// intermediate tokens lie outside the core set.
func (g *Graph) Candidates(tokenIn, tokenOut *domain.Token) ([]*Path, error) {
	if tokenIn.IsSame(tokenOut) {
		return nil, fmt.Errorf("%w: token in equals token out", cmn.ErrInvalidPath)
	}
	snap := g.snapshot.Load()
	key := pairKey{tokenIn.Address, tokenOut.Address}
	if cached, ok := g.cache.Get(key); ok && cached.snap == snap {
		metrics.CandidateCacheHits.Inc()
		return cached.paths, nil
	}
	metrics.CandidateCacheMisses.Inc()

	// An enumeration that finishes after a rebuild stores an entry tagged
	// with the old graph, which the next lookup ignores.
	paths := g.enumerate(snap, tokenIn, tokenOut)
	g.cache.Set(key, cachedPaths{snap: snap, paths: paths})
	return paths, nil
}

// Token returns the graph's token for an address, with its decimals.
func (g *Graph) Token(a common.Address) (*domain.Token, bool) {
	snap := g.snapshot.Load()
	id, ok := snap.registry.GetID(a)
	if !ok {
		return nil, false
	}
	return snap.registry.Token(id), true
}

type partialPath struct {
	tokens  []TokenID
	pools   []common.Hash
	ops     []Operation
	nonCore int
}

func (p *partialPath) hasToken(id TokenID) bool {
	for _, t := range p.tokens {
		if t == id {
			return true
		}
	}
	return false
}

func (p *partialPath) hasPool(id common.Hash) bool {
	for _, h := range p.pools {
		if h == id {
			return true
		}
	}
	return false
}

func (p *partialPath) extend(e edge, nonCore int) partialPath {
	return partialPath{
		tokens:  append(append(make([]TokenID, 0, len(p.tokens)+1), p.tokens...), e.to),
		pools:   append(append(make([]common.Hash, 0, len(p.pools)+1), p.pools...), e.pool),
		ops:     append(append(make([]Operation, 0, len(p.ops)+1), p.ops...), e.op),
		nonCore: nonCore,
	}
}

func (g *Graph) enumerate(snap *graphSnapshot, tokenIn, tokenOut *domain.Token) []*Path {
	in, ok := snap.registry.GetID(tokenIn.Address)
	if !ok {
		return nil
	}
	out, ok := snap.registry.GetID(tokenOut.Address)
	if !ok {
		return nil
	}

	var result []*Path
	frontier := []partialPath{{tokens: []TokenID{in}}}
	for depth := 1; depth <= g.conf.MaxHops && len(frontier) > 0; depth++ {
		var next []partialPath
		for i := range frontier {
			p := &frontier[i]
			last := p.tokens[len(p.tokens)-1]
			if int(last) >= len(snap.adj) {
				continue
			}
			for _, e := range snap.adj[last] {
				if p.hasToken(e.to) || p.hasPool(e.pool) {
					continue
				}
				if e.to == out {
					full := p.extend(e, p.nonCore)
					if path := g.toPath(snap, &full); path != nil {
						result = append(result, path)
					}
					continue
				}
				if depth == g.conf.MaxHops || len(next) >= maxFrontier {
					continue
				}
				nonCore := p.nonCore
				if !g.isCore(snap.registry.Token(e.to).Address) {
					nonCore++
				}
				if nonCore > g.conf.MaxNonCoreHops {
					continue
				}
				next = append(next, p.extend(e, nonCore))
			}
		}
		if len(result) >= g.conf.MaxPaths {
			break
		}
		frontier = next
	}
	if len(result) > g.conf.MaxPaths {
		result = result[:g.conf.MaxPaths]
	}
	return result
}

func (g *Graph) toPath(snap *graphSnapshot, p *partialPath) *Path {
	tokens := make([]*domain.Token, len(p.tokens))
	for i, id := range p.tokens {
		tokens[i] = snap.registry.Token(id)
	}
	path, err := NewPath(tokens, p.pools, p.ops)
	if err != nil {
		g.logger.Warn().Err(err).Msg("graph produced an invalid path")
		return nil
	}
	return path
}

func (g *Graph) isCore(a common.Address) bool {
	_, ok := g.core[a]
	return ok
}

func containsToken(tokens []*domain.Token, t *domain.Token) bool {
	for _, x := range tokens {
		if x.IsSame(t) {
			return true
		}
	}
	return false
}
