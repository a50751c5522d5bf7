package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/tradeshield-api/internal/database"
	"github.com/ksred/tradeshield-api/internal/store"
	"github.com/ksred/tradeshield-api/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.NewTestDatabase()
	require.NoError(t, err)
	s, err := store.New(db)
	require.NoError(t, err)
	return s
}

func createLimitSell(t *testing.T, s *store.Store, owner string) *types.SpotOrder {
	t.Helper()
	order := &types.SpotOrder{
		OwnerAddress:     owner,
		OrderType:        types.SpotLimitSell,
		OrderPrice:       types.OrderPrice{BaseDenom: "ETH", QuoteDenom: "USDC", Rate: dec("1800")},
		OrderAmount:      types.NewCoin("ETH", dec("2")),
		OrderTargetDenom: "USDC",
	}
	s.Lock()
	err := s.CreateSpotOrder(order)
	s.Unlock()
	require.NoError(t, err)
	return order
}

func createLimitOpen(t *testing.T, s *store.Store, owner string) *types.PerpetualOrder {
	t.Helper()
	order := &types.PerpetualOrder{
		OwnerAddress: owner,
		OrderType:    types.PerpetualLimitOpen,
		Position:     types.PositionLong,
		TriggerPrice: types.OrderPrice{BaseDenom: "ATOM", QuoteDenom: "USDC", Rate: dec("9")},
		Collateral:   types.NewCoin("USDC", dec("500")),
		TradingAsset: "ATOM",
		Leverage:     dec("5"),
	}
	s.Lock()
	err := s.CreatePerpetualOrder(order)
	s.Unlock()
	require.NoError(t, err)
	return order
}

func register(t *testing.T, s *store.Store, c *Correlator, replyType types.ReplyType, orderID uint64) *types.ReplyRecord {
	t.Helper()
	s.Lock()
	record, err := c.Register(replyType, orderID)
	s.Unlock()
	require.NoError(t, err)
	return record
}

func TestResolveSpotSuccess(t *testing.T) {
	s := newTestStore(t)
	bank := &recordingBank{}
	c := NewCorrelator(s, bank)

	order := createLimitSell(t, s, "owner-1")
	record := register(t, s, c, types.ReplySpotOrderExecution, order.OrderID)

	out := types.NewCoin("USDC", dec("3591"))
	require.NoError(t, c.Resolve(record.ReplyID, types.ReplyResult{AmountOut: &out}))

	settled, err := s.GetSpotOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, settled.Status)
	assert.True(t, settled.FilledAmount.Equal(dec("3591")))
	assert.Empty(t, bank.sends)
}

func TestResolveSpotFailureRefundsEscrow(t *testing.T) {
	s := newTestStore(t)
	bank := &recordingBank{}
	c := NewCorrelator(s, bank)

	order := createLimitSell(t, s, "owner-1")
	record := register(t, s, c, types.ReplySpotOrderExecution, order.OrderID)

	require.NoError(t, c.Resolve(record.ReplyID, types.ReplyResult{Error: "insufficient liquidity"}))

	settled, err := s.GetSpotOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCanceled, settled.Status)
	assert.True(t, bank.total("owner-1", "ETH").Equal(dec("2")))
}

func TestResolveIsAtMostOnce(t *testing.T) {
	s := newTestStore(t)
	bank := &recordingBank{}
	c := NewCorrelator(s, bank)

	order := createLimitSell(t, s, "owner-1")
	record := register(t, s, c, types.ReplySpotOrderExecution, order.OrderID)

	require.NoError(t, c.Resolve(record.ReplyID, types.ReplyResult{Error: "swap failed"}))
	require.Len(t, bank.sends, 1)

	// A second resolution of the same reply must change nothing.
	err := c.Resolve(record.ReplyID, types.ReplyResult{Error: "swap failed"})
	assert.ErrorIs(t, err, types.ErrReplyConsumed)
	assert.Len(t, bank.sends, 1)

	settled, getErr := s.GetSpotOrder(order.OrderID)
	require.NoError(t, getErr)
	assert.Equal(t, types.StatusCanceled, settled.Status)
}

func TestResolveUnknownReply(t *testing.T) {
	s := newTestStore(t)
	c := NewCorrelator(s, &recordingBank{})

	err := c.Resolve(404, types.ReplyResult{})
	assert.ErrorIs(t, err, types.ErrReplyNotFound)
}

func TestResolvePerpetualOpenSuccessRecordsPosition(t *testing.T) {
	s := newTestStore(t)
	bank := &recordingBank{}
	c := NewCorrelator(s, bank)

	order := createLimitOpen(t, s, "owner-1")
	record := register(t, s, c, types.ReplyPerpetualOpen, order.OrderID)

	positionID := uint64(11)
	require.NoError(t, c.Resolve(record.ReplyID, types.ReplyResult{PositionID: &positionID}))

	settled, err := s.GetPerpetualOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, settled.Status)
	require.NotNil(t, settled.PositionID)
	assert.Equal(t, positionID, *settled.PositionID)
	assert.Empty(t, bank.sends)
}

func TestResolvePerpetualOpenFailureRefundsCollateral(t *testing.T) {
	s := newTestStore(t)
	bank := &recordingBank{}
	c := NewCorrelator(s, bank)

	order := createLimitOpen(t, s, "owner-1")
	record := register(t, s, c, types.ReplyPerpetualOpen, order.OrderID)

	require.NoError(t, c.Resolve(record.ReplyID, types.ReplyResult{Error: "margin engine rejected"}))

	settled, err := s.GetPerpetualOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCanceled, settled.Status)
	assert.True(t, bank.total("owner-1", "USDC").Equal(dec("500")))
}

func TestResolvePerpetualCloseFailureHasNoRefund(t *testing.T) {
	s := newTestStore(t)
	bank := &recordingBank{}
	c := NewCorrelator(s, bank)

	positionID := uint64(3)
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

	record := register(t, s, c, types.ReplyPerpetualClose, order.OrderID)
	require.NoError(t, c.Resolve(record.ReplyID, types.ReplyResult{Error: types.ErrPositionNotFound.Error()}))

	settled, err := s.GetPerpetualOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCanceled, settled.Status)
	assert.Empty(t, bank.sends)
}

type failingBank struct {
	err error
}

func (b *failingBank) Send(string, []types.Coin) error { return b.err }

func TestResolveRefundFailureRollsBackCancel(t *testing.T) {
	s := newTestStore(t)
	c := NewCorrelator(s, &failingBank{err: assert.AnError})

	order := createLimitSell(t, s, "owner-1")
	record := register(t, s, c, types.ReplySpotOrderExecution, order.OrderID)

	// The cancel write and the refund commit together: when the transfer
	// fails, the order must stay pending and the reply stay unconsumed so
	// a later resolution can retry the refund.
	err := c.Resolve(record.ReplyID, types.ReplyResult{Error: "insufficient liquidity"})
	require.Error(t, err)

	stuck, getErr := s.GetSpotOrder(order.OrderID)
	require.NoError(t, getErr)
	assert.Equal(t, types.StatusPending, stuck.Status)

	fetched, getErr := s.GetReplyRecord(record.ReplyID)
	require.NoError(t, getErr)
	assert.False(t, fetched.Consumed)

	bank := &recordingBank{}
	retry := NewCorrelator(s, bank)
	require.NoError(t, retry.Resolve(record.ReplyID, types.ReplyResult{Error: "insufficient liquidity"}))

	settled, getErr := s.GetSpotOrder(order.OrderID)
	require.NoError(t, getErr)
	assert.Equal(t, types.StatusCanceled, settled.Status)
	assert.True(t, bank.total("owner-1", "ETH").Equal(dec("2")))
}

func TestResolveOpenRefundFailureRollsBackCancel(t *testing.T) {
	s := newTestStore(t)
	c := NewCorrelator(s, &failingBank{err: assert.AnError})

	order := createLimitOpen(t, s, "owner-1")
	record := register(t, s, c, types.ReplyPerpetualOpen, order.OrderID)

	err := c.Resolve(record.ReplyID, types.ReplyResult{Error: "margin engine rejected"})
	require.Error(t, err)

	stuck, getErr := s.GetPerpetualOrder(order.OrderID)
	require.NoError(t, getErr)
	assert.Equal(t, types.StatusPending, stuck.Status)

	fetched, getErr := s.GetReplyRecord(record.ReplyID)
	require.NoError(t, getErr)
	assert.False(t, fetched.Consumed)
}

func TestResolveStaleReplyLeavesSettledOrder(t *testing.T) {
	s := newTestStore(t)
	bank := &recordingBank{}
	c := NewCorrelator(s, bank)

	order := createLimitSell(t, s, "owner-1")
	first := register(t, s, c, types.ReplySpotOrderExecution, order.OrderID)
	second := register(t, s, c, types.ReplySpotOrderExecution, order.OrderID)

	out := types.NewCoin("USDC", dec("3591"))
	require.NoError(t, c.Resolve(first.ReplyID, types.ReplyResult{AmountOut: &out}))

	// A superseded record for an order that already settled consumes
	// without touching it; in particular it must never refund.
	require.NoError(t, c.Resolve(second.ReplyID, types.ReplyResult{Error: "swap failed"}))

	settled, err := s.GetSpotOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, settled.Status)
	assert.Empty(t, bank.sends)

	consumed, err := s.GetReplyRecord(second.ReplyID)
	require.NoError(t, err)
	assert.True(t, consumed.Consumed)
}

func TestReplyResultFailed(t *testing.T) {
	assert.False(t, types.ReplyResult{}.Failed())
	assert.True(t, types.ReplyResult{Error: "boom"}.Failed())
}
