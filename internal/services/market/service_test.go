package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

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

func pair(id, a, b int) *domain.PoolRecord {
	return &domain.PoolRecord{
		ID:          poolID(id),
		Address:     addr(1000 + id),
		ChainID:     chainID,
		Type:        domain.PoolTypeWeighted,
		Version:     2,
		SwapFee:     "3000000000000000",
		TotalShares: "100000000000000000000",
		Tokens: []domain.PoolTokenRecord{
			{Address: addr(a), Decimals: 18, Balance: "100000000000000000000", Weight: "500000000000000000"},
			{Address: addr(b), Decimals: 18, Balance: "100000000000000000000", Weight: "500000000000000000"},
		},
	}
}

type memStore struct {
	mu      sync.Mutex
	recs    map[common.Hash]*domain.PoolRecord
	loads   int
	loadErr error
	closed  bool
}

func newMemStore(recs ...*domain.PoolRecord) *memStore {
	s := &memStore{recs: make(map[common.Hash]*domain.PoolRecord)}
	for _, r := range recs {
		s.recs[r.ID] = r
	}
	return s
}

func (s *memStore) LoadAllPools() ([]*domain.PoolRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]*domain.PoolRecord, 0, len(s.recs))
	for _, r := range s.recs {
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) SavePoolBatch(recs []*domain.PoolRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		s.recs[r.ID] = r
	}
	return nil
}

func (s *memStore) Close() error {
	s.closed = true
	return nil
}

type countingGraph struct {
	mu       sync.Mutex
	rebuilds int
	last     *pools.Set
}

func (g *countingGraph) Rebuild(set *pools.Set) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rebuilds++
	g.last = set
}

// gatedStore holds its first load after reading, so a later write lands
// while that load is still in flight.
type gatedStore struct {
	*memStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(inner *memStore) *gatedStore {
	return &gatedStore{memStore: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedStore) LoadAllPools() ([]*domain.PoolRecord, error) {
	recs, err := s.memStore.LoadAllPools()
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return recs, err
}

func aggregatorConfig() *config.AggregatorConfig {
	return &config.AggregatorConfig{ChainID: chainID}
}

func TestReloadBuildsSnapshot(t *testing.T) {
	unfunded := pair(3, 1, 4)
	unfunded.Tokens[1].Balance = "0"
	otherChain := pair(4, 1, 5)
	otherChain.ChainID = 10
	unsupported := pair(5, 1, 6)
	unsupported.Type = domain.PoolTypeUnknown

	store := newMemStore(pair(1, 1, 2), pair(2, 2, 3), unfunded, otherChain, unsupported)
	graph := &countingGraph{}
	svc := NewService(aggregatorConfig(), store, graph)
	require.Zero(t, svc.Snapshot().Len())

	set, err := svc.Reload(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	require.Same(t, set, svc.Snapshot())
	require.Same(t, set, graph.last)

	_, err = set.Get(poolID(1))
	require.NoError(t, err)
	_, err = set.Get(poolID(3))
	require.Error(t, err)
}

func TestReloadKeepsSnapshotOnStoreError(t *testing.T) {
	store := newMemStore(pair(1, 1, 2))
	svc := NewService(aggregatorConfig(), store, &countingGraph{})
	first, err := svc.Reload(context.Background())
	require.NoError(t, err)

	store.loadErr = errors.New("disk gone")
	_, err = svc.Reload(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Same(t, first, svc.Snapshot())
}

func TestReloadHonoursContext(t *testing.T) {
	svc := NewService(aggregatorConfig(), newMemStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// either the rebuild wins the race or the cancelled context does
	set, err := svc.Reload(ctx)
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
	} else {
		require.NotNil(t, set)
	}
}

func TestUpsertPersistsAndPublishes(t *testing.T) {
	store := newMemStore(pair(1, 1, 2))
	graph := &countingGraph{}
	svc := NewService(aggregatorConfig(), store, graph)
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	set, err := svc.Upsert(context.Background(), []*domain.PoolRecord{pair(2, 2, 3)})
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	require.Len(t, store.recs, 2)
	require.Equal(t, 2, graph.rebuilds)
}

func TestUpsertDuringSlowReloadIsNotLost(t *testing.T) {
	store := newGatedStore(newMemStore(pair(1, 1, 2)))
	graph := &countingGraph{}
	svc := NewService(aggregatorConfig(), store, graph)

	slow := make(chan error, 1)
	go func() {
		_, err := svc.Reload(context.Background())
		slow <- err
	}()
	<-store.entered

	upserted := make(chan error, 1)
	go func() {
		_, err := svc.Upsert(context.Background(), []*domain.PoolRecord{pair(2, 2, 3)})
		upserted <- err
	}()

	// let the upsert queue behind the stale rebuild, then finish both
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	require.NoError(t, <-slow)
	require.NoError(t, <-upserted)

	snap := svc.Snapshot()
	require.Equal(t, 2, snap.Len())
	_, err := snap.Get(poolID(2))
	require.NoError(t, err)
	require.Equal(t, uint64(2), svc.Generation())

	graph.mu.Lock()
	defer graph.mu.Unlock()
	require.Same(t, snap, graph.last)
	require.Equal(t, 2, graph.rebuilds)
}

func TestUpsertWithoutStore(t *testing.T) {
	svc := NewService(aggregatorConfig(), nil, nil)

	set, err := svc.Upsert(context.Background(), []*domain.PoolRecord{pair(1, 1, 2)})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	// replacing a record keeps one pool per id
	set, err = svc.Upsert(context.Background(), []*domain.PoolRecord{pair(1, 1, 2)})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
}

func TestConcurrentReloadsShareSnapshots(t *testing.T) {
	store := newMemStore(pair(1, 1, 2), pair(2, 2, 3))
	svc := NewService(aggregatorConfig(), store, &countingGraph{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := svc.Reload(context.Background())
			require.NoError(t, err)
			require.Equal(t, 2, set.Len())
		}()
	}
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.LessOrEqual(t, store.loads, 16)
	require.GreaterOrEqual(t, store.loads, 1)
}

func TestStartStop(t *testing.T) {
	store := newMemStore(pair(1, 1, 2))
	conf := aggregatorConfig()
	conf.SnapshotRefresh = 3600
	svc := NewService(conf, store, &countingGraph{})

	require.NoError(t, svc.Start())
	require.Equal(t, 1, svc.Snapshot().Len())
	require.NoError(t, svc.Stop())
	require.True(t, store.closed)
}

func TestRegistryReadiness(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		name  string
		edit  func(rec *domain.PoolRecord)
		ready bool
	}{
		{"funded weighted", func(*domain.PoolRecord) {}, true},
		{"missing weight", func(rec *domain.PoolRecord) { rec.Tokens[0].Weight = "" }, false},
		{"bad balance", func(rec *domain.PoolRecord) { rec.Tokens[1].Balance = "abc" }, false},
		{"one token", func(rec *domain.PoolRecord) { rec.Tokens = rec.Tokens[:1] }, false},
		{"stable without amp", func(rec *domain.PoolRecord) { rec.Type = domain.PoolTypeStable }, false},
		{"stable with amp", func(rec *domain.PoolRecord) {
			rec.Type = domain.PoolTypeComposableStable
			rec.Amp = "200"
		}, true},
		{"gyro without params", func(rec *domain.PoolRecord) { rec.Type = domain.PoolTypeGyro2 }, false},
		{"gyro3 with root", func(rec *domain.PoolRecord) {
			rec.Type = domain.PoolTypeGyro3
			rec.Gyro = &domain.GyroParams{Root3Alpha: "999000000000000000"}
		}, true},
		{"fx without rates", func(rec *domain.PoolRecord) {
			rec.Type = domain.PoolTypeFx
			rec.Fx = &domain.FxParams{}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := pair(1, 1, 2)
			tt.edit(rec)
			require.Equal(t, tt.ready, r.IsRecordReady(rec))
		})
	}
}

func TestShardedRecordMap(t *testing.T) {
	m := NewShardedRecordMap()
	for i := 1; i <= 40; i++ {
		m.Set(poolID(i), pair(i, 1, 2))
	}
	require.Equal(t, 40, m.Len())
	require.Len(t, m.GetAll(), 40)

	rec, ok := m.Get(poolID(7))
	require.True(t, ok)
	require.Equal(t, poolID(7), rec.ID)

	m.Delete(poolID(7))
	_, ok = m.Get(poolID(7))
	require.False(t, ok)
	require.Equal(t, 39, m.Len())
}
