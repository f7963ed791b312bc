package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/balancer/backend-sub000/internal/domain"
)

const (
	PoolsBucket = "pools"

	DefaultDBPath = "./data/sor.db"
)

// Storage keeps pool records in BoltDB, keyed by pool id, sonic-encoded.
type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[poolStorage] opened database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Storage) SavePool(rec *domain.PoolRecord) error {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal pool: %w", err)
	}
	return s.db.Set(PoolsBucket, poolKey(rec), data)
}

func (s *Storage) SavePoolBatch(recs []*domain.PoolRecord) error {
	if len(recs) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	for _, rec := range recs {
		data, err := sonic.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal pool %s: %w", rec.ID.Hex(), err)
		}

		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(PoolsBucket),
			Key:    poolKey(rec),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return fmt.Errorf("failed to add pool %s to batch: %w", rec.ID.Hex(), err)
		}
	}

	if err := batch.Execute(); err != nil {
		log.Error().Err(err).Int("count", len(recs)).Msg("[poolStorage] FAILED to execute batch")
		return err
	}

	log.Debug().Int("count", len(recs)).Msg("[poolStorage] saved pool batch")
	return nil
}

// LoadAllPools returns every decodable record. Undecodable entries are
// logged and skipped so one bad write cannot block a snapshot.
func (s *Storage) LoadAllPools() ([]*domain.PoolRecord, error) {
	data, err := s.db.List(PoolsBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	recs := make([]*domain.PoolRecord, 0, len(data))
	unmarshalFailed := 0
	for id, value := range data {
		var rec domain.PoolRecord
		if err := sonic.Unmarshal(value, &rec); err != nil {
			log.Error().Str("id", id).Err(err).Msg("[poolStorage] failed to unmarshal pool, skipping")
			unmarshalFailed++
			continue
		}
		recs = append(recs, &rec)
	}

	log.Info().
		Int("loaded", len(recs)).
		Int("unmarshalFailed", unmarshalFailed).
		Msg("[poolStorage] loaded pools")
	return recs, nil
}

func (s *Storage) GetPoolCount() (int, error) {
	data, err := s.db.List(PoolsBucket)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func poolKey(rec *domain.PoolRecord) []byte {
	return []byte(rec.ID.Hex())
}
