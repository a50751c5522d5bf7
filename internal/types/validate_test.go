package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLimitSell() *SpotOrder {
	return &SpotOrder{
		OwnerAddress:     "owner-1",
		OrderType:        SpotLimitSell,
		OrderPrice:       OrderPrice{BaseDenom: "ETH", QuoteDenom: "USDC", Rate: dec("1800")},
		OrderAmount:      NewCoin("ETH", dec("2")),
		OrderTargetDenom: "USDC",
	}
}

func TestSpotOrderValidate(t *testing.T) {
	require.NoError(t, validLimitSell().Validate())

	t.Run("market buy rejects a price", func(t *testing.T) {
		order := &SpotOrder{
			OwnerAddress:     "owner-1",
			OrderType:        SpotMarketBuy,
			OrderPrice:       OrderPrice{BaseDenom: "ETH", QuoteDenom: "USDC", Rate: dec("1800")},
			OrderAmount:      NewCoin("ETH", dec("2")),
			OrderTargetDenom: "USDC",
		}
		var verr *ValidationError
		require.ErrorAs(t, order.Validate(), &verr)
		assert.Equal(t, "order_price", verr.Field)
	})

	t.Run("market buy without price is valid", func(t *testing.T) {
		order := validLimitSell()
		order.OrderType = SpotMarketBuy
		order.OrderPrice = OrderPrice{}
		require.NoError(t, order.Validate())
	})

	t.Run("non-market requires a price", func(t *testing.T) {
		order := validLimitSell()
		order.OrderPrice = OrderPrice{}
		assert.Error(t, order.Validate())
	})

	t.Run("zero rate rejected", func(t *testing.T) {
		order := validLimitSell()
		order.OrderPrice.Rate = decimal.Zero
		assert.Error(t, order.Validate())
	})

	t.Run("price base must match funding denom", func(t *testing.T) {
		order := validLimitSell()
		order.OrderPrice.BaseDenom = "BTC"
		assert.Error(t, order.Validate())
	})

	t.Run("price quote must match target denom", func(t *testing.T) {
		order := validLimitSell()
		order.OrderPrice.QuoteDenom = "ATOM"
		assert.Error(t, order.Validate())
	})

	t.Run("target must differ from funding denom", func(t *testing.T) {
		order := validLimitSell()
		order.OrderTargetDenom = "ETH"
		order.OrderPrice.QuoteDenom = "ETH"
		assert.Error(t, order.Validate())
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		order := validLimitSell()
		order.OrderAmount.Amount = decimal.Zero
		assert.Error(t, order.Validate())
	})

	t.Run("unknown order type rejected", func(t *testing.T) {
		order := validLimitSell()
		order.OrderType = "LIMIT_SHORT"
		assert.Error(t, order.Validate())
	})
}

func validLimitOpen() *PerpetualOrder {
	return &PerpetualOrder{
		OwnerAddress: "owner-1",
		OrderType:    PerpetualLimitOpen,
		Position:     PositionLong,
		TriggerPrice: OrderPrice{BaseDenom: "ATOM", QuoteDenom: "USDC", Rate: dec("9")},
		Collateral:   NewCoin("USDC", dec("500")),
		TradingAsset: "ATOM",
		Leverage:     dec("5"),
	}
}

func TestPerpetualOrderValidate(t *testing.T) {
	require.NoError(t, validLimitOpen().Validate())

	t.Run("open requires a direction", func(t *testing.T) {
		order := validLimitOpen()
		order.Position = PositionUnspecified
		var verr *ValidationError
		require.ErrorAs(t, order.Validate(), &verr)
		assert.Equal(t, "position", verr.Field)
	})

	t.Run("open rejects a position id", func(t *testing.T) {
		order := validLimitOpen()
		id := uint64(7)
		order.PositionID = &id
		assert.Error(t, order.Validate())
	})

	t.Run("close requires a position id", func(t *testing.T) {
		order := validLimitOpen()
		order.OrderType = PerpetualLimitClose
		order.PositionID = nil
		assert.Error(t, order.Validate())
	})

	t.Run("close with position id is valid", func(t *testing.T) {
		order := validLimitOpen()
		order.OrderType = PerpetualLimitClose
		id := uint64(7)
		order.PositionID = &id
		require.NoError(t, order.Validate())
	})

	t.Run("open requires positive collateral", func(t *testing.T) {
		order := validLimitOpen()
		order.Collateral.Amount = decimal.Zero
		assert.Error(t, order.Validate())
	})

	t.Run("open requires positive leverage", func(t *testing.T) {
		order := validLimitOpen()
		order.Leverage = decimal.Zero
		assert.Error(t, order.Validate())
	})

	t.Run("market open rejects a trigger price", func(t *testing.T) {
		order := validLimitOpen()
		order.OrderType = PerpetualMarketOpen
		assert.Error(t, order.Validate())
	})

	t.Run("market open without trigger price is valid", func(t *testing.T) {
		order := validLimitOpen()
		order.OrderType = PerpetualMarketOpen
		order.TriggerPrice = OrderPrice{}
		require.NoError(t, order.Validate())
	})

	t.Run("trigger base must match trading asset", func(t *testing.T) {
		order := validLimitOpen()
		order.TriggerPrice.BaseDenom = "BTC"
		assert.Error(t, order.Validate())
	})

	t.Run("unknown position rejected", func(t *testing.T) {
		order := validLimitOpen()
		order.Position = "SIDEWAYS"
		assert.Error(t, order.Validate())
	})
}
