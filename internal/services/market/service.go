package market

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	container "github.com/thehyperflames/dicontainer-go"
	"golang.org/x/sync/singleflight"

	"github.com/balancer/backend-sub000/internal/adapters/persistence"
	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/config"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/metrics"
	"github.com/balancer/backend-sub000/internal/pools"
	"github.com/balancer/backend-sub000/internal/services/router"
)

const (
	ServiceName = "MarketService"

	reloadKey = "reload"
)

var ErrStoreUnavailable = errors.New("pool store unavailable")

// PoolStore is the durable side of the snapshot.
type PoolStore interface {
	LoadAllPools() ([]*domain.PoolRecord, error)
	SavePoolBatch(recs []*domain.PoolRecord) error
	Close() error
}

// GraphBuilder is rebuilt from every published snapshot.
type GraphBuilder interface {
	Rebuild(set *pools.Set)
}

// Service owns the pool snapshot. Readers get an immutable *pools.Set; a
// reload builds a new set and swaps it in, so in-flight quotes keep pricing
// against the set they started with.
type Service struct {
	container.BaseDIInstance

	logger   *cmn.ServiceLogger
	config   *config.AggregatorConfig
	store    PoolStore
	graph    GraphBuilder
	registry *Registry

	records  *ShardedRecordMap
	snapshot atomic.Pointer[pools.Set]
	group    singleflight.Group

	// buildMu orders whole rebuilds: the rebuild that reads the store last
	// is the one that publishes last.
	buildMu    sync.Mutex
	generation atomic.Uint64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewService wires a snapshot service outside the container. store may be
// nil when persistence is disabled.
func NewService(conf *config.AggregatorConfig, store PoolStore, graph GraphBuilder) *Service {
	svc := &Service{}
	svc.init(conf, store, graph)
	return svc
}

func (svc *Service) ID() string {
	return ServiceName
}

func (svc *Service) Configure(c container.IContainer) error {
	conf := c.GetConfig(config.AGGREGATOR_CONFIG_KEY).(*config.AggregatorConfig)
	graph := c.Instance(router.ROUTER_SERVICE).(*router.Graph)

	var store PoolStore
	if conf.PersistenceEnabled {
		storage, err := persistence.NewStorage(conf.DBPath)
		if err != nil {
			return err
		}
		store = storage
	}
	svc.init(conf, store, graph)
	return nil
}

func (svc *Service) init(conf *config.AggregatorConfig, store PoolStore, graph GraphBuilder) {
	svc.logger = cmn.NewServiceLogger(svc)
	svc.config = conf
	svc.store = store
	svc.graph = graph
	svc.registry = NewDefaultRegistry()
	svc.records = NewShardedRecordMap()
	svc.done = make(chan struct{})
	svc.snapshot.Store(pools.NewSet())
}

func (svc *Service) Start() error {
	if _, err := svc.Reload(context.Background()); err != nil {
		// An empty snapshot still serves zero quotes; the refresh loop retries.
		svc.logger.Error().Err(err).Msg("initial snapshot load failed")
	}

	if svc.config.SnapshotRefresh > 0 {
		svc.wg.Add(1)
		go svc.refreshLoop(time.Duration(svc.config.SnapshotRefresh) * time.Second)
	}

	svc.logger.Info().Int("pools", svc.Snapshot().Len()).Msg("startup complete")
	return nil
}

func (svc *Service) Stop() error {
	close(svc.done)
	svc.wg.Wait()

	if svc.store != nil {
		if err := svc.store.Close(); err != nil {
			svc.logger.Error().Err(err).Msg("failed to close storage")
		}
	}
	return nil
}

// Snapshot returns the current pool set. Callers must not mutate it; pricing
// that moves balances works on a Clone or Subset.
func (svc *Service) Snapshot() *pools.Set {
	return svc.snapshot.Load()
}

// Generation counts published snapshots.
func (svc *Service) Generation() uint64 {
	return svc.generation.Load()
}

// Reload rebuilds the snapshot from the store and the upserted records.
// Concurrent callers share one rebuild.
func (svc *Service) Reload(ctx context.Context) (*pools.Set, error) {
	ch := svc.group.DoChan(reloadKey, func() (any, error) {
		return svc.reload()
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*pools.Set), nil
	}
}

// Upsert persists records, when a store is configured, and publishes a new
// snapshot containing them.
func (svc *Service) Upsert(ctx context.Context, recs []*domain.PoolRecord) (*pools.Set, error) {
	if svc.store != nil {
		if err := svc.store.SavePoolBatch(recs); err != nil {
			return nil, err
		}
	}
	for _, rec := range recs {
		svc.records.Set(rec.ID, rec)
	}
	// A reload already in flight may have read the store before this write.
	svc.group.Forget(reloadKey)
	return svc.Reload(ctx)
}

func (svc *Service) reload() (*pools.Set, error) {
	svc.buildMu.Lock()
	defer svc.buildMu.Unlock()
	start := time.Now()

	if svc.store != nil {
		recs, err := svc.store.LoadAllPools()
		if err != nil {
			metrics.SnapshotRefreshes.WithLabelValues("error").Inc()
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		for _, rec := range recs {
			svc.records.Set(rec.ID, rec)
		}
	}

	all := svc.records.GetAll()
	sort.Slice(all, func(i, j int) bool {
		return bytes.Compare(all[i].ID[:], all[j].ID[:]) < 0
	})

	ready := make([]*domain.PoolRecord, 0, len(all))
	notReady, wrongChain := 0, 0
	for _, rec := range all {
		switch {
		case rec.ChainID != svc.config.ChainID:
			wrongChain++
		case !svc.registry.IsRecordReady(rec):
			notReady++
		default:
			ready = append(ready, rec)
		}
	}

	set, unsupported := pools.FromRecords(ready)
	dropped := notReady + wrongChain + unsupported

	// A reader that sees this snapshot also sees its graph.
	if svc.graph != nil {
		svc.graph.Rebuild(set)
	}
	svc.snapshot.Store(set)
	gen := svc.generation.Add(1)

	metrics.PoolCount.Set(float64(set.Len()))
	metrics.PoolsDropped.Add(float64(dropped))
	metrics.SnapshotRefreshes.WithLabelValues("ok").Inc()
	metrics.SnapshotRefreshDuration.Observe(time.Since(start).Seconds())

	svc.logger.Debug().
		Uint64("generation", gen).
		Int("records", len(all)).
		Int("pools", set.Len()).
		Int("notReady", notReady).
		Int("wrongChain", wrongChain).
		Int("unsupported", unsupported).
		Dur("took", time.Since(start)).
		Msg("snapshot published")
	return set, nil
}

func (svc *Service) refreshLoop(interval time.Duration) {
	defer svc.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-svc.done:
			return
		case <-ticker.C:
			if _, err := svc.Reload(context.Background()); err != nil {
				svc.logger.Warn().Err(err).Msg("snapshot refresh failed, keeping previous snapshot")
			}
		}
	}
}
