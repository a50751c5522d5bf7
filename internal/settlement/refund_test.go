package settlement

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

// recordingBank captures every Send call so tests can assert on both the
// transfer contents and the number of transfers
type recordingBank struct {
	sends []bankSend
}

type bankSend struct {
	owner string
	coins []types.Coin
}

func (b *recordingBank) Send(owner string, coins []types.Coin) error {
	b.sends = append(b.sends, bankSend{owner: owner, coins: coins})
	return nil
}

func (b *recordingBank) total(owner, denom string) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range b.sends {
		if s.owner != owner {
			continue
		}
		for _, c := range s.coins {
			if c.Denom == denom {
				sum = sum.Add(c.Amount)
			}
		}
	}
	return sum
}

func TestRefundSetAggregatesPerOwnerAndDenom(t *testing.T) {
	refunds := NewRefundSet()
	refunds.Add("owner-1", types.NewCoin("USDC", dec("10")))
	refunds.Add("owner-1", types.NewCoin("USDC", dec("5")))
	refunds.Add("owner-1", types.NewCoin("ETH", dec("1")))
	refunds.Add("owner-2", types.NewCoin("USDC", dec("3")))

	bank := &recordingBank{}
	require.NoError(t, refunds.Emit(bank))

	// One transfer per owner, denoms sorted inside it.
	require.Len(t, bank.sends, 2)
	assert.Equal(t, "owner-1", bank.sends[0].owner)
	assert.Equal(t, []types.Coin{
		types.NewCoin("ETH", dec("1")),
		types.NewCoin("USDC", dec("15")),
	}, bank.sends[0].coins)
	assert.Equal(t, "owner-2", bank.sends[1].owner)
	assert.Equal(t, []types.Coin{types.NewCoin("USDC", dec("3"))}, bank.sends[1].coins)
}

func TestRefundSetSkipsNonPositiveAmounts(t *testing.T) {
	refunds := NewRefundSet()
	refunds.Add("owner-1", types.NewCoin("USDC", decimal.Zero))
	refunds.Add("owner-1", types.Coin{})

	assert.True(t, refunds.Empty())

	bank := &recordingBank{}
	require.NoError(t, refunds.Emit(bank))
	assert.Empty(t, bank.sends)
}
