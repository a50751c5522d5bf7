package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/tradeshield-api/internal/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

const sellKey = "spot/LIMIT_SELL/ETH/USDC"

func TestTriggerIndexOrdering(t *testing.T) {
	ti := NewTriggerIndex()

	// Insertion order deliberately scrambled; iteration must come back rate
	// ascending.
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 3, dec("1900"))
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 1, dec("1700"))
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 2, dec("1800"))

	assert.Equal(t, []uint64{1, 2, 3}, ti.Range(sellKey))
	assert.Equal(t, 3, ti.Len(sellKey))
}

func TestTriggerIndexFIFOTieBreak(t *testing.T) {
	ti := NewTriggerIndex()

	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 10, dec("1800"))
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 11, dec("1800"))
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 12, dec("1700"))
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 13, dec("1800"))

	// Equal rates keep insertion order behind the lower rate.
	assert.Equal(t, []uint64{12, 10, 11, 13}, ti.Range(sellKey))

	// Removing the middle tie leaves the rest in place.
	require.NoError(t, ti.Remove(sellKey, 11, dec("1800")))
	assert.Equal(t, []uint64{12, 10, 13}, ti.Range(sellKey))
}

func TestTriggerIndexRemove(t *testing.T) {
	ti := NewTriggerIndex()
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 1, dec("1700"))
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 2, dec("1800"))

	require.NoError(t, ti.Remove(sellKey, 1, dec("1700")))
	assert.False(t, ti.Contains(sellKey, 1))
	assert.True(t, ti.Contains(sellKey, 2))

	t.Run("absent id is a consistency failure", func(t *testing.T) {
		err := ti.Remove(sellKey, 99, dec("1800"))
		assert.ErrorIs(t, err, types.ErrIndexNotFound)
	})

	t.Run("unknown group is a consistency failure", func(t *testing.T) {
		err := ti.Remove("spot/STOP_LOSS/ETH/USDC", 2, dec("1800"))
		assert.ErrorIs(t, err, types.ErrIndexNotFound)
	})

	t.Run("empty groups disappear", func(t *testing.T) {
		require.NoError(t, ti.Remove(sellKey, 2, dec("1800")))
		assert.Empty(t, ti.Groups())
		assert.Zero(t, ti.Len(sellKey))
	})
}

func TestTriggerIndexGroupsDeterministic(t *testing.T) {
	ti := NewTriggerIndex()
	ti.Insert("spot/STOP_LOSS/ETH/USDC", "ETH", "USDC", types.KindSpotStopLoss, 1, dec("1700"))
	ti.Insert("spot/LIMIT_BUY/USDC/BTC", "USDC", "BTC", types.KindLimitBuy, 2, dec("20000"))
	ti.Insert("spot/LIMIT_SELL/ETH/USDC", "ETH", "USDC", types.KindLimitSell, 3, dec("1800"))

	var keys []string
	for _, g := range ti.Groups() {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []string{
		"spot/LIMIT_BUY/USDC/BTC",
		"spot/LIMIT_SELL/ETH/USDC",
		"spot/STOP_LOSS/ETH/USDC",
	}, keys)
}

func TestTriggerIndexReinsertKeepsRelativeOrder(t *testing.T) {
	ti := NewTriggerIndex()
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 1, dec("1800"))
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 2, dec("1800"))
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 3, dec("1900"))

	require.NoError(t, ti.Remove(sellKey, 3, dec("1900")))
	ti.Insert(sellKey, "ETH", "USDC", types.KindLimitSell, 3, dec("1900"))

	// Orders 1 and 2 never moved; 3 re-enters after them regardless of the
	// churn.
	assert.Equal(t, []uint64{1, 2, 3}, ti.Range(sellKey))
}
