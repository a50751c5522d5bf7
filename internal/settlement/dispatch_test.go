package settlement

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/tradeshield-api/internal/market"
	"github.com/ksred/tradeshield-api/internal/store"
	"github.com/ksred/tradeshield-api/internal/types"
)

// staticPrices quotes fixed rates keyed base/quote, with no drift
type staticPrices struct {
	rates map[string]decimal.Decimal
}

func (p *staticPrices) GetPrice(baseDenom, quoteDenom string) (decimal.Decimal, error) {
	if rate, ok := p.rates[baseDenom+"/"+quoteDenom]; ok {
		return rate, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s/%s", types.ErrPriceUnavailable, baseDenom, quoteDenom)
}

// scriptedSwap returns a fixed outcome and captures the minOut it was
// handed
type scriptedSwap struct {
	out        types.Coin
	err        error
	lastMinOut decimal.Decimal
}

func (s *scriptedSwap) SwapExactIn(owner string, in types.Coin, targetDenom string, minOut decimal.Decimal) (types.Coin, error) {
	s.lastMinOut = minOut
	if s.err != nil {
		return types.Coin{}, s.err
	}
	return s.out, nil
}

func newDispatcherFixture(t *testing.T, swap market.SwapEngine, prices market.PriceService) (*Dispatcher, *recordingBank, *market.SimulatedPerpetualEngine, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	bank := &recordingBank{}
	perpetual := market.NewSimulatedPerpetualEngine()
	correlator := NewCorrelator(s, bank)
	d := NewDispatcher(s, correlator, swap, perpetual, prices, market.NewStaticTierService(nil))
	return d, bank, perpetual, s
}

func TestDispatchSpotOrderSuccess(t *testing.T) {
	swap := &scriptedSwap{out: types.NewCoin("USDC", dec("3591"))}
	prices := &staticPrices{rates: map[string]decimal.Decimal{"ETH/USDC": dec("1800")}}
	d, bank, _, s := newDispatcherFixture(t, swap, prices)

	order := createLimitSell(t, s, "owner-1")
	require.NoError(t, d.DispatchSpotOrder(order, types.ReplySpotOrderExecution))

	settled, err := s.GetSpotOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, settled.Status)
	assert.True(t, settled.FilledAmount.Equal(dec("3591")))
	assert.Empty(t, bank.sends)

	// minOut = amount * rate * (1 - fee - slippage bound) with no discount.
	want := dec("2").Mul(dec("1800")).Mul(dec("0.9775"))
	assert.True(t, swap.lastMinOut.Equal(want), "minOut %s, want %s", swap.lastMinOut, want)
}

func TestDispatchSpotOrderFailureCancelsAndRefunds(t *testing.T) {
	swap := &scriptedSwap{err: errors.New("insufficient liquidity")}
	prices := &staticPrices{rates: map[string]decimal.Decimal{"ETH/USDC": dec("1800")}}
	d, bank, _, s := newDispatcherFixture(t, swap, prices)

	order := createLimitSell(t, s, "owner-1")
	require.NoError(t, d.DispatchSpotOrder(order, types.ReplySpotOrderExecution))

	settled, err := s.GetSpotOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCanceled, settled.Status)
	assert.True(t, bank.total("owner-1", "ETH").Equal(dec("2")))
}

func TestDispatchSpotOrderUnquotablePairIsUnbounded(t *testing.T) {
	swap := &scriptedSwap{out: types.NewCoin("USDC", dec("1"))}
	d, _, _, s := newDispatcherFixture(t, swap, &staticPrices{})

	order := createLimitSell(t, s, "owner-1")
	require.NoError(t, d.DispatchSpotOrder(order, types.ReplySpotOrderExecution))

	assert.True(t, swap.lastMinOut.IsZero())
}

func TestDispatchPerpetualOpen(t *testing.T) {
	d, bank, perpetual, s := newDispatcherFixture(t, &scriptedSwap{}, &staticPrices{})

	order := createLimitOpen(t, s, "owner-1")
	require.NoError(t, d.DispatchPerpetualOpen(order))

	settled, err := s.GetPerpetualOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, settled.Status)
	require.NotNil(t, settled.PositionID)

	pos, err := perpetual.GetPosition("owner-1", *settled.PositionID)
	require.NoError(t, err)
	assert.Equal(t, "ATOM", pos.TradingAsset)
	assert.True(t, pos.Custody.Equal(dec("2500")))
	assert.Empty(t, bank.sends)
}

func TestDispatchPerpetualCloseMissingPosition(t *testing.T) {
	d, bank, _, s := newDispatcherFixture(t, &scriptedSwap{}, &staticPrices{})

	positionID := uint64(9)
	order := &types.PerpetualOrder{
		OwnerAddress: "owner-1",
		OrderType:    types.PerpetualLimitClose,
		Position:     types.PositionLong,
		TriggerPrice: types.OrderPrice{BaseDenom: "ATOM", QuoteDenom: "USDC", Rate: dec("9")},
		TradingAsset: "ATOM",
		PositionID:   &positionID,
	}
	s.Lock()
	require.NoError(t, s.CreatePerpetualOrder(order))
	s.Unlock()

	require.NoError(t, d.DispatchPerpetualClose(order))

	settled, err := s.GetPerpetualOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCanceled, settled.Status)
	assert.Empty(t, bank.sends)
}

func TestDispatchPerpetualCloseSuccess(t *testing.T) {
	d, _, perpetual, s := newDispatcherFixture(t, &scriptedSwap{}, &staticPrices{})

	positionID, err := perpetual.OpenPosition("owner-1", types.NewCoin("USDC", dec("500")), "ATOM", types.PositionLong, dec("5"), decimal.NullDecimal{})
	require.NoError(t, err)

	order := &types.PerpetualOrder{
		OwnerAddress: "owner-1",
		OrderType:    types.PerpetualLimitClose,
		Position:     types.PositionLong,
		TriggerPrice: types.OrderPrice{BaseDenom: "ATOM", QuoteDenom: "USDC", Rate: dec("9")},
		TradingAsset: "ATOM",
		PositionID:   &positionID,
	}
	s.Lock()
	require.NoError(t, s.CreatePerpetualOrder(order))
	s.Unlock()

	require.NoError(t, d.DispatchPerpetualClose(order))

	settled, err := s.GetPerpetualOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, settled.Status)

	_, err = perpetual.GetPosition("owner-1", positionID)
	assert.ErrorIs(t, err, types.ErrPositionNotFound)
}
