package market

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/balancer/backend-sub000/internal/domain"
)

const numShards = 16

// ShardedRecordMap indexes pool records by pool id, sharded to keep upserts
// off the reload path's locks.
type ShardedRecordMap struct {
	shards [numShards]recordShard
}

type recordShard struct {
	mu      sync.RWMutex
	records map[common.Hash]*domain.PoolRecord
}

func NewShardedRecordMap() *ShardedRecordMap {
	m := &ShardedRecordMap{}
	for i := 0; i < numShards; i++ {
		m.shards[i].records = make(map[common.Hash]*domain.PoolRecord)
	}
	return m
}

// Pool ids are keccak outputs or address-prefixed, so the last byte spreads well.
func (m *ShardedRecordMap) getShard(key common.Hash) *recordShard {
	return &m.shards[key[len(key)-1]%numShards]
}

func (m *ShardedRecordMap) Get(key common.Hash) (*domain.PoolRecord, bool) {
	shard := m.getShard(key)
	shard.mu.RLock()
	rec, ok := shard.records[key]
	shard.mu.RUnlock()
	return rec, ok
}

func (m *ShardedRecordMap) Set(key common.Hash, rec *domain.PoolRecord) {
	shard := m.getShard(key)
	shard.mu.Lock()
	shard.records[key] = rec
	shard.mu.Unlock()
}

func (m *ShardedRecordMap) Delete(key common.Hash) {
	shard := m.getShard(key)
	shard.mu.Lock()
	delete(shard.records, key)
	shard.mu.Unlock()
}

// Len returns total count across all shards
func (m *ShardedRecordMap) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		total += len(m.shards[i].records)
		m.shards[i].mu.RUnlock()
	}
	return total
}

// GetAll returns all records in no particular order.
func (m *ShardedRecordMap) GetAll() []*domain.PoolRecord {
	result := make([]*domain.PoolRecord, 0, m.Len())
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for _, rec := range m.shards[i].records {
			result = append(result, rec)
		}
		m.shards[i].mu.RUnlock()
	}
	return result
}
