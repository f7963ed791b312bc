package domain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	cmn "github.com/balancer/backend-sub000/internal/common"
)

func TestTokenIdentity(t *testing.T) {
	lower, err := ParseToken(1, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", 6)
	require.NoError(t, err)
	mixed, err := ParseToken(1, "0xA0b86991c6218b36c1D19D4a2e9Eb0cE3606eB48", 6)
	require.NoError(t, err)
	require.True(t, lower.IsSame(mixed))

	otherChain := NewToken(137, lower.Address, 6)
	require.False(t, lower.IsSame(otherChain))

	wrapped := NewToken(1, common.HexToAddress("0xd093fa4fb80d09bb30817fdcd442d4d02ed3e5de"), 6).
		WithUnderlying(lower.Address)
	require.False(t, wrapped.IsSame(lower))
	require.True(t, wrapped.IsUnderlyingEqual(lower))

	_, err = ParseToken(1, "not-an-address", 18)
	require.Error(t, err)
	_, err = ParseToken(1, lower.Address.Hex(), 24)
	require.Error(t, err)
}

func TestTokenAmountScaling(t *testing.T) {
	usdc := NewToken(1, common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"), 6)

	amount, err := ParseTokenAmount(usdc, "1500000")
	require.NoError(t, err)
	require.Equal(t, "1500000000000000000", amount.Scale18.Dec())

	back := NewTokenAmountFromScale18(usdc, uint256.MustFromDecimal("1500000999999999999"))
	require.Equal(t, "1500000", back.Amount.Dec())

	sum, err := amount.Add(back)
	require.NoError(t, err)
	require.Equal(t, "3000000", sum.Amount.Dec())

	_, err = amount.Sub(sum)
	require.True(t, errors.Is(err, cmn.ErrInvalidSwap))

	half, err := amount.MulDownFixed(uint256.NewInt(5e17))
	require.NoError(t, err)
	require.Equal(t, "750000", half.Amount.Dec())

	third, err := NewTokenAmountUint64(usdc, 10).DivUpFixed(uint256.NewInt(3e18))
	require.NoError(t, err)
	require.Equal(t, "4", third.Amount.Dec())

	dai := NewToken(1, common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f"), 18)
	_, err = amount.Add(ZeroAmount(dai))
	require.ErrorIs(t, err, ErrTokenMismatch)
}

func TestParseKinds(t *testing.T) {
	kind, ok := ParseSwapKind("ExactOut")
	require.True(t, ok)
	require.Equal(t, GivenOut, kind)

	_, ok = ParseSwapKind("sideways")
	require.False(t, ok)

	require.Equal(t, PoolTypeComposableStable, ParsePoolType("phantom_stable"))
	require.Equal(t, PoolTypeUnknown, ParsePoolType("LIQUIDITY_BOOTSTRAPPING"))
	require.Equal(t, "GYROE", PoolTypeGyroE.String())
}
