package persistence

import (
	"fmt"
	"math/big"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/balancer/backend-sub000/internal/domain"
)

func record(id int, fee string) *domain.PoolRecord {
	return &domain.PoolRecord{
		ID:          common.BigToHash(big.NewInt(int64(id))),
		Address:     common.HexToAddress(fmt.Sprintf("0x%040x", 1000+id)),
		ChainID:     1,
		Type:        domain.PoolTypeStable,
		Version:     3,
		SwapFee:     fee,
		TotalShares: "2000000000000000000000",
		Amp:         "200000",
		Tokens: []domain.PoolTokenRecord{
			{Address: common.HexToAddress("0x01"), Decimals: 6, Balance: "1000000000"},
			{Address: common.HexToAddress("0x02"), Decimals: 18, Balance: "1000000000000000000000"},
		},
	}
}

func TestStorageRoundTrip(t *testing.T) {
	s, err := NewStorage(filepath.Join(t.TempDir(), "nested", "pools.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SavePoolBatch(nil))
	require.NoError(t, s.SavePoolBatch([]*domain.PoolRecord{record(1, "100000000000000"), record(2, "400000000000000")}))
	// overwrite by id
	require.NoError(t, s.SavePool(record(1, "300000000000000")))

	recs, err := s.LoadAllPools()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID.Big().Cmp(recs[j].ID.Big()) < 0 })

	require.Equal(t, record(1, "300000000000000"), recs[0])
	require.Equal(t, record(2, "400000000000000"), recs[1])

	n, err := s.GetPoolCount()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
