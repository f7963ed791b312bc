package config

import (
	"errors"

	"github.com/andrew-solarstorm/go-packages/common"
)

type AggregatorConfig struct {
	// DBPath is the path to the BoltDB file holding pool records.
	// Default: "./data/sor.db"
	DBPath string

	// PersistenceEnabled controls whether pool records are read from and
	// written to disk. Without it the snapshot only holds upserted records.
	// Default: true
	PersistenceEnabled bool

	// SnapshotRefresh is how often the pool snapshot is rebuilt from storage
	// (in seconds). Zero disables the periodic refresh.
	// Default: 30
	SnapshotRefresh int

	// QuoteCacheTTLMs is how long an identical request is answered from
	// cache while the snapshot is unchanged. Zero disables the cache.
	// Default: 500
	QuoteCacheTTLMs int

	// ChainID is the chain every quote request must target.
	// Default: 1
	ChainID uint64
}

func (c *AggregatorConfig) Key() string {
	return AGGREGATOR_CONFIG_KEY
}

func (c *AggregatorConfig) Load() error {
	c.DBPath = common.GetEnvOrDefault("AGGREGATOR_DB_PATH", "./data/sor.db")
	c.PersistenceEnabled = common.GetEnvOrDefault("AGGREGATOR_PERSISTENCE_ENABLED", "true") == "true"
	c.SnapshotRefresh = common.GetEnvOrDefaultInt("AGGREGATOR_SNAPSHOT_REFRESH", 30)
	c.QuoteCacheTTLMs = common.GetEnvOrDefaultInt("AGGREGATOR_QUOTE_CACHE_TTL_MS", 500)
	c.ChainID = uint64(common.GetEnvOrDefaultInt("AGGREGATOR_CHAIN_ID", 1))
	return c.Validate()
}

func (c *AggregatorConfig) Validate() error {
	if c.SnapshotRefresh < 0 {
		return errors.New("invalid aggregator config: negative snapshot refresh")
	}
	if c.QuoteCacheTTLMs < 0 {
		return errors.New("invalid aggregator config: negative quote cache ttl")
	}
	if c.ChainID == 0 {
		return errors.New("invalid aggregator config: chain id")
	}
	return nil
}
