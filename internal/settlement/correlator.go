package settlement

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ksred/tradeshield-api/internal/market"
	"github.com/ksred/tradeshield-api/internal/store"
	"github.com/ksred/tradeshield-api/internal/types"
)

// Correlator links dispatched external calls to the orders awaiting their
// outcome and applies the settlement once the result is known. Each
// correlation record settles at most once; a repeated resolution attempt
// is rejected without touching order state.
type Correlator struct {
	store *store.Store
	bank  market.BankKeeper
}

func NewCorrelator(s *store.Store, bank market.BankKeeper) *Correlator {
	return &Correlator{store: s, bank: bank}
}

// Register allocates the next reply id and persists the correlation. The
// caller must hold the engine lock. Registration happens before the
// external call goes out so a crash between the two leaves an addressable
// record rather than an orphaned call.
func (c *Correlator) Register(replyType types.ReplyType, orderID uint64) (*types.ReplyRecord, error) {
	return c.store.CreateReplyRecord(replyType, orderID)
}

// Resolve looks up the correlation, applies the settlement handler for its
// reply type, and consumes the record. Resolving a consumed or unknown
// reply id fails without side effects.
func (c *Correlator) Resolve(replyID uint64, result types.ReplyResult) error {
	c.store.Lock()
	defer c.store.Unlock()
	return c.resolveLocked(replyID, result)
}

// ResolveLocked applies a resolution while the caller already holds the
// engine lock
func (c *Correlator) ResolveLocked(replyID uint64, result types.ReplyResult) error {
	return c.resolveLocked(replyID, result)
}

func (c *Correlator) resolveLocked(replyID uint64, result types.ReplyResult) error {
	record, err := c.store.GetReplyRecord(replyID)
	if err != nil {
		return err
	}
	if record.Consumed {
		return types.ErrReplyConsumed
	}

	logger := log.With().
		Str("component", "reply_correlator").
		Uint64("reply_id", replyID).
		Uint64("order_id", record.OrderID).
		Str("reply_type", string(record.ReplyType)).
		Logger()

	switch record.ReplyType {
	case types.ReplySpotOrderMarketBuy, types.ReplySpotOrderExecution:
		err = c.settleSpotOrder(record, result)
	case types.ReplyPerpetualOpen:
		err = c.settlePerpetualOpen(record, result)
	case types.ReplyPerpetualClose:
		err = c.settlePerpetualClose(record, result)
	default:
		err = fmt.Errorf("unknown reply type %q", record.ReplyType)
	}
	if err != nil {
		logger.Error().Err(err).Msg("settlement failed")
		return err
	}

	if err := c.store.ConsumeReplyRecord(record); err != nil {
		return err
	}
	logger.Info().Bool("call_failed", result.Failed()).Msg("reply settled")
	return nil
}

// settleSpotOrder finalizes a dispatched spot swap: success marks the
// order executed with its fill amount, failure cancels it and refunds the
// escrowed funding asset. The cancel write and the refund transfer commit
// together; if the refund cannot be sent the cancel rolls back and the
// record stays unconsumed for a retry.
func (c *Correlator) settleSpotOrder(record *types.ReplyRecord, result types.ReplyResult) error {
	order, err := c.store.GetSpotOrder(record.OrderID)
	if err != nil {
		return err
	}
	// A retried dispatch can leave more than one record per order; a reply
	// for an order that already reached a terminal status consumes without
	// touching it.
	if order.Status != types.StatusPending {
		return nil
	}

	if result.Failed() {
		order.Status = types.StatusCanceled
		refunds := NewRefundSet()
		refunds.Add(order.OwnerAddress, order.OrderAmount)
		return c.store.SaveSpotOrderWith(order, func() error {
			return refunds.Emit(c.bank)
		})
	}

	order.Status = types.StatusExecuted
	if result.AmountOut != nil {
		order.FilledAmount = result.AmountOut.Amount
	}
	return c.store.SaveSpotOrder(order)
}

// settlePerpetualOpen finalizes a dispatched position open: success
// records the resulting position id, failure cancels and refunds the
// escrowed collateral. Cancel and refund commit in one transaction.
func (c *Correlator) settlePerpetualOpen(record *types.ReplyRecord, result types.ReplyResult) error {
	order, err := c.store.GetPerpetualOrder(record.OrderID)
	if err != nil {
		return err
	}
	if order.Status != types.StatusPending {
		return nil
	}

	if result.Failed() {
		order.Status = types.StatusCanceled
		refunds := NewRefundSet()
		refunds.Add(order.OwnerAddress, order.Collateral)
		return c.store.SavePerpetualOrderWith(order, func() error {
			return refunds.Emit(c.bank)
		})
	}

	order.Status = types.StatusExecuted
	order.PositionID = result.PositionID
	return c.store.SavePerpetualOrder(order)
}

// settlePerpetualClose finalizes a dispatched position close. Close and
// stop-loss orders hold no escrow, so failure cancels without a refund.
func (c *Correlator) settlePerpetualClose(record *types.ReplyRecord, result types.ReplyResult) error {
	order, err := c.store.GetPerpetualOrder(record.OrderID)
	if err != nil {
		return err
	}
	if order.Status != types.StatusPending {
		return nil
	}

	if result.Failed() {
		order.Status = types.StatusCanceled
		return c.store.SavePerpetualOrder(order)
	}

	order.Status = types.StatusExecuted
	return c.store.SavePerpetualOrder(order)
}
