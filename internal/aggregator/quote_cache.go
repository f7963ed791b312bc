package aggregator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/metrics"
	"github.com/balancer/backend-sub000/internal/pools"
)

const (
	quoteCacheMaxSize = 1024 // Power of 2 for efficient modulo
	quoteCacheShards  = 16
)

// FNV-1a constants for zero-allocation hashing
const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// quoteKey identifies a request. Amount is the decimal string so large
// amounts compare exactly.
type quoteKey struct {
	tokenIn, tokenOut common.Address
	kind              domain.SwapKind
	slippageBps       uint16
	verify            bool
	amount            string
}

type cacheEntry struct {
	hash     uint64
	key      quoteKey
	snapshot *pools.Set
	quote    *domain.RoutedQuote
	expiry   int64  // Unix nano for faster comparison
	used     uint32 // Clock bit for eviction
}

type cacheShard struct {
	mu      sync.RWMutex
	entries []cacheEntry
	size    int
	hand    int // Clock hand for eviction
}

// QuoteCache is a sharded clock cache with TTL. Entries are bound to the
// snapshot they were priced against, so a new snapshot invalidates them
// without a flush.
type QuoteCache struct {
	ttl      time.Duration
	shards   [quoteCacheShards]cacheShard
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewQuoteCache(ttl time.Duration) *QuoteCache {
	qc := &QuoteCache{
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}
	entriesPerShard := quoteCacheMaxSize / quoteCacheShards
	for i := 0; i < quoteCacheShards; i++ {
		qc.shards[i].entries = make([]cacheEntry, entriesPerShard)
	}
	go qc.cleanupLoop()
	return qc
}

func (qc *QuoteCache) Stop() {
	qc.stopOnce.Do(func() { close(qc.stopChan) })
}

func hashKey(k quoteKey) uint64 {
	h := uint64(fnvOffset64)
	mix := func(b byte) {
		h ^= uint64(b)
		h *= fnvPrime64
	}
	for _, b := range k.tokenIn {
		mix(b)
	}
	for _, b := range k.tokenOut {
		mix(b)
	}
	for i := 0; i < len(k.amount); i++ {
		mix(k.amount[i])
	}
	mix(byte(k.kind))
	mix(byte(k.slippageBps))
	mix(byte(k.slippageBps >> 8))
	if k.verify {
		mix(1)
	}
	return h
}

func (qc *QuoteCache) getShard(hash uint64) *cacheShard {
	return &qc.shards[hash%quoteCacheShards]
}

func (qc *QuoteCache) Get(key quoteKey, snapshot *pools.Set) *domain.RoutedQuote {
	hash := hashKey(key)
	now := time.Now().UnixNano()

	shard := qc.getShard(hash)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	for i := 0; i < shard.size; i++ {
		entry := &shard.entries[i]
		if entry.hash == hash && entry.key == key && entry.snapshot == snapshot && now <= entry.expiry {
			atomic.StoreUint32(&entry.used, 1)
			return entry.quote
		}
	}
	return nil
}

func (qc *QuoteCache) Set(key quoteKey, snapshot *pools.Set, quote *domain.RoutedQuote) {
	hash := hashKey(key)
	expiry := time.Now().Add(qc.ttl).UnixNano()

	shard := qc.getShard(hash)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	fill := func(entry *cacheEntry) {
		entry.hash = hash
		entry.key = key
		entry.snapshot = snapshot
		entry.quote = quote
		entry.expiry = expiry
		atomic.StoreUint32(&entry.used, 1)
	}

	for i := 0; i < shard.size; i++ {
		if entry := &shard.entries[i]; entry.hash == hash && entry.key == key {
			fill(entry)
			return
		}
	}

	entriesPerShard := len(shard.entries)
	if shard.size < entriesPerShard {
		fill(&shard.entries[shard.size])
		shard.size++
		return
	}

	// Clock eviction: second chance for recently used entries
	now := time.Now().UnixNano()
	for attempts := 0; attempts < entriesPerShard*2; attempts++ {
		entry := &shard.entries[shard.hand]
		shard.hand = (shard.hand + 1) % entriesPerShard
		if atomic.LoadUint32(&entry.used) == 0 || now > entry.expiry {
			fill(entry)
			return
		}
		atomic.StoreUint32(&entry.used, 0)
	}

	fill(&shard.entries[shard.hand])
	shard.hand = (shard.hand + 1) % entriesPerShard
}

// evictExpired clears the used bit of expired entries and drops their quote
// and snapshot references so old snapshots can be collected.
func (qc *QuoteCache) evictExpired() {
	now := time.Now().UnixNano()
	for i := 0; i < quoteCacheShards; i++ {
		shard := &qc.shards[i]
		shard.mu.Lock()
		for j := 0; j < shard.size; j++ {
			entry := &shard.entries[j]
			if now > entry.expiry {
				atomic.StoreUint32(&entry.used, 0)
				entry.quote = nil
				entry.snapshot = nil
			}
		}
		shard.mu.Unlock()
	}
}

func (qc *QuoteCache) Size() int {
	total := 0
	for i := 0; i < quoteCacheShards; i++ {
		shard := &qc.shards[i]
		shard.mu.RLock()
		total += shard.size
		shard.mu.RUnlock()
	}
	return total
}

func (qc *QuoteCache) cleanupLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-qc.stopChan:
			return
		case <-ticker.C:
			qc.evictExpired()
			metrics.QuoteCacheSize.Set(float64(qc.Size()))
		}
	}
}
