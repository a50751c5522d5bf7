package trigger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ksred/tradeshield-api/internal/market"
	"github.com/ksred/tradeshield-api/internal/settlement"
	"github.com/ksred/tradeshield-api/internal/store"
	"github.com/ksred/tradeshield-api/internal/types"
)

// Processor runs the per-block trigger evaluation. Each tick walks the
// non-empty trigger groups, resolves one market price per group, applies
// the type-specific predicate to each pending order, and either dispatches
// the execution call or cancels and refunds. A per-family cap bounds how
// many orders one tick evaluates so a deep book cannot starve a block.
type Processor struct {
	store      *store.Store
	dispatcher *settlement.Dispatcher
	prices     market.PriceService
	perpetual  market.PerpetualEngine
	bank       market.BankKeeper

	blockInterval time.Duration
	familyCap     int
}

func NewProcessor(
	s *store.Store,
	dispatcher *settlement.Dispatcher,
	prices market.PriceService,
	perpetual market.PerpetualEngine,
	bank market.BankKeeper,
	blockInterval time.Duration,
	familyCap int,
) *Processor {
	if familyCap < 1 {
		familyCap = 100
	}
	return &Processor{
		store:         s,
		dispatcher:    dispatcher,
		prices:        prices,
		perpetual:     perpetual,
		bank:          bank,
		blockInterval: blockInterval,
		familyCap:     familyCap,
	}
}

// Start runs the block tick loop until the context is canceled
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "trigger_processor").Logger()
	logger.Info().Dur("block_interval", p.blockInterval).Int("family_cap", p.familyCap).Msg("starting trigger processor")

	ticker := time.NewTicker(p.blockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down trigger processor")
			return
		case <-ticker.C:
			summary, err := p.Tick()
			if err != nil {
				logger.Error().Err(err).Msg("block tick failed")
				continue
			}
			if summary.SpotEvaluated+summary.PerpetualEvaluated > 0 {
				logger.Info().
					Int("spot_evaluated", summary.SpotEvaluated).
					Int("spot_executed", summary.SpotExecuted).
					Int("spot_canceled", summary.SpotCanceled).
					Int("perpetual_evaluated", summary.PerpetualEvaluated).
					Int("perpetual_executed", summary.PerpetualExecuted).
					Int("perpetual_canceled", summary.PerpetualCanceled).
					Msg("block tick processed")
			}
		}
	}
}

// Tick evaluates both order families once. An unresolvable price feed
// cancels the affected group and the tick moves on; it never aborts the
// remaining groups.
func (p *Processor) Tick() (*types.TickResponse, error) {
	summary := &types.TickResponse{}
	if err := p.processSpotOrders(summary); err != nil {
		return summary, err
	}
	if err := p.processPerpetualOrders(summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// groupPrice resolves the market price the group's predicate runs
// against. Inverse-quoted kinds ask for the quote denom priced in the
// base denom; everything else is quoted quote-per-base.
func (p *Processor) groupPrice(g *store.Group) (decimal.Decimal, error) {
	if g.Kind.InverseQuoted() {
		return p.prices.GetPrice(g.QuoteDenom, g.BaseDenom)
	}
	return p.prices.GetPrice(g.BaseDenom, g.QuoteDenom)
}

func (p *Processor) processSpotOrders(summary *types.TickResponse) error {
	logger := log.With().Str("component", "trigger_processor").Str("family", "spot").Logger()

	var fired []*types.SpotOrder
	refunds := settlement.NewRefundSet()

	p.store.Lock()
	evaluated := 0
	for _, g := range p.store.SpotGroups() {
		if evaluated >= p.familyCap {
			break
		}
		ids := p.store.SpotGroupOrders(g.Key)

		price, err := p.groupPrice(g)
		if err != nil {
			// The whole group is unservable without a price; cancel it and
			// keep the tick going.
			logger.Warn().Err(err).Str("group", g.Key).Int("orders", len(ids)).Msg("price unavailable, canceling group")
			for _, id := range ids {
				if p.cancelSpotLocked(id, refunds, logger) {
					summary.SpotCanceled++
				}
			}
			continue
		}

		for _, id := range ids {
			if evaluated >= p.familyCap {
				break
			}
			evaluated++

			order, err := p.store.GetSpotOrder(id)
			if err != nil {
				logger.Error().Err(err).Uint64("order_id", id).Msg("indexed order missing from ledger")
				continue
			}
			if !types.Fires(g.Kind, order.OrderPrice.Rate, price) {
				continue
			}
			if err := p.store.RemoveSpotOrderFromIndex(order); err != nil {
				logger.Error().Err(err).Uint64("order_id", id).Msg("trigger index removal failed")
				continue
			}
			fired = append(fired, order)
		}
	}
	p.store.Unlock()
	summary.SpotEvaluated = evaluated

	if !refunds.Empty() {
		if err := refunds.Emit(p.bank); err != nil {
			return err
		}
	}

	for _, order := range fired {
		if err := p.dispatcher.DispatchSpotOrder(order, types.ReplySpotOrderExecution); err != nil {
			logger.Error().Err(err).Uint64("order_id", order.OrderID).Msg("spot dispatch failed")
			p.requeueSpot(order.OrderID, logger)
			continue
		}
		summary.SpotExecuted++
	}
	return nil
}

// requeueSpot returns a fired order to its trigger group when its dispatch
// failed short of a terminal status. A pending order must sit in exactly
// one group or it can neither execute nor be canceled; the next tick
// retries it.
func (p *Processor) requeueSpot(orderID uint64, logger zerolog.Logger) {
	p.store.Lock()
	defer p.store.Unlock()

	order, err := p.store.GetSpotOrder(orderID)
	if err != nil {
		logger.Error().Err(err).Uint64("order_id", orderID).Msg("requeue lookup failed")
		return
	}
	if order.Status != types.StatusPending {
		return
	}
	if err := p.store.RestoreSpotOrderToIndex(order); err != nil {
		logger.Error().Err(err).Uint64("order_id", orderID).Msg("requeue failed")
	}
}

// cancelSpotLocked removes the order from the index, writes the terminal
// status, and queues its escrow refund. Caller holds the engine lock.
func (p *Processor) cancelSpotLocked(orderID uint64, refunds *settlement.RefundSet, logger zerolog.Logger) bool {
	order, err := p.store.GetSpotOrder(orderID)
	if err != nil {
		logger.Error().Err(err).Uint64("order_id", orderID).Msg("indexed order missing from ledger")
		return false
	}
	if err := p.store.RemoveSpotOrderFromIndex(order); err != nil {
		logger.Error().Err(err).Uint64("order_id", orderID).Msg("trigger index removal failed")
		return false
	}
	order.Status = types.StatusCanceled
	if err := p.store.SaveSpotOrder(order); err != nil {
		logger.Error().Err(err).Uint64("order_id", orderID).Msg("cancel write failed")
		return false
	}
	refunds.Add(order.OwnerAddress, order.OrderAmount)
	return true
}

func (p *Processor) processPerpetualOrders(summary *types.TickResponse) error {
	logger := log.With().Str("component", "trigger_processor").Str("family", "perpetual").Logger()

	var fired []*types.PerpetualOrder
	refunds := settlement.NewRefundSet()

	p.store.Lock()
	evaluated := 0
	for _, g := range p.store.PerpetualGroups() {
		if evaluated >= p.familyCap {
			break
		}
		ids := p.store.PerpetualGroupOrders(g.Key)

		price, err := p.groupPrice(g)
		if err != nil {
			logger.Warn().Err(err).Str("group", g.Key).Int("orders", len(ids)).Msg("price unavailable, canceling group")
			for _, id := range ids {
				if p.cancelPerpetualLocked(id, refunds, logger) {
					summary.PerpetualCanceled++
				}
			}
			continue
		}

		for _, id := range ids {
			if evaluated >= p.familyCap {
				break
			}
			evaluated++

			order, err := p.store.GetPerpetualOrder(id)
			if err != nil {
				logger.Error().Err(err).Uint64("order_id", id).Msg("indexed order missing from ledger")
				continue
			}
			if !types.Fires(g.Kind, order.TriggerPrice.Rate, price) {
				continue
			}

			// Close and stop-loss orders reference a position that may be
			// gone by now (liquidated or closed elsewhere); a dead position
			// invalidates the order instead of dispatching.
			if !order.OrderType.IsOpenType() {
				if _, err := p.perpetual.GetPosition(order.OwnerAddress, *order.PositionID); err != nil {
					if p.cancelPerpetualLocked(id, refunds, logger) {
						logger.Info().Uint64("order_id", id).Msg("underlying position gone, order canceled")
						summary.PerpetualCanceled++
					}
					continue
				}
			}

			if err := p.store.RemovePerpetualOrderFromIndex(order); err != nil {
				logger.Error().Err(err).Uint64("order_id", id).Msg("trigger index removal failed")
				continue
			}
			fired = append(fired, order)
		}
	}
	p.store.Unlock()
	summary.PerpetualEvaluated = evaluated

	if !refunds.Empty() {
		if err := refunds.Emit(p.bank); err != nil {
			return err
		}
	}

	for _, order := range fired {
		var err error
		if order.OrderType.IsOpenType() {
			err = p.dispatcher.DispatchPerpetualOpen(order)
		} else {
			err = p.dispatcher.DispatchPerpetualClose(order)
		}
		if err != nil {
			logger.Error().Err(err).Uint64("order_id", order.OrderID).Msg("perpetual dispatch failed")
			p.requeuePerpetual(order.OrderID, logger)
			continue
		}
		summary.PerpetualExecuted++
	}
	return nil
}

// requeuePerpetual returns a fired order to its trigger group when its
// dispatch failed short of a terminal status
func (p *Processor) requeuePerpetual(orderID uint64, logger zerolog.Logger) {
	p.store.Lock()
	defer p.store.Unlock()

	order, err := p.store.GetPerpetualOrder(orderID)
	if err != nil {
		logger.Error().Err(err).Uint64("order_id", orderID).Msg("requeue lookup failed")
		return
	}
	if order.Status != types.StatusPending {
		return
	}
	if err := p.store.RestorePerpetualOrderToIndex(order); err != nil {
		logger.Error().Err(err).Uint64("order_id", orderID).Msg("requeue failed")
	}
}

// cancelPerpetualLocked removes the order from the index and writes the
// terminal status. Only open orders carry escrow, so only they queue a
// refund. Caller holds the engine lock.
func (p *Processor) cancelPerpetualLocked(orderID uint64, refunds *settlement.RefundSet, logger zerolog.Logger) bool {
	order, err := p.store.GetPerpetualOrder(orderID)
	if err != nil {
		logger.Error().Err(err).Uint64("order_id", orderID).Msg("indexed order missing from ledger")
		return false
	}
	if err := p.store.RemovePerpetualOrderFromIndex(order); err != nil {
		logger.Error().Err(err).Uint64("order_id", orderID).Msg("trigger index removal failed")
		return false
	}
	order.Status = types.StatusCanceled
	if err := p.store.SavePerpetualOrder(order); err != nil {
		logger.Error().Err(err).Uint64("order_id", orderID).Msg("cancel write failed")
		return false
	}
	if order.OrderType.IsOpenType() {
		refunds.Add(order.OwnerAddress, order.Collateral)
	}
	return true
}
