package settlement

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ksred/tradeshield-api/internal/market"
	"github.com/ksred/tradeshield-api/internal/store"
	"github.com/ksred/tradeshield-api/internal/types"
)

// Dispatcher sends the external execution call for an order and resolves
// the resulting reply. Market orders dispatch at creation; triggered
// orders dispatch from the block tick. Either way the sequence is the
// same: register the correlation, make the call, resolve with the outcome.
// The order's terminal status is written by the settlement handler, never
// here.
type Dispatcher struct {
	store      *store.Store
	correlator *Correlator
	amm        market.SwapEngine
	perpetual  market.PerpetualEngine
	prices     market.PriceService
	tiers      market.TierService

	swapFeeRate   decimal.Decimal
	slippageBound decimal.Decimal
}

func NewDispatcher(
	s *store.Store,
	correlator *Correlator,
	amm market.SwapEngine,
	perpetual market.PerpetualEngine,
	prices market.PriceService,
	tiers market.TierService,
) *Dispatcher {
	return &Dispatcher{
		store:         s,
		correlator:    correlator,
		amm:           amm,
		perpetual:     perpetual,
		prices:        prices,
		tiers:         tiers,
		swapFeeRate:   decimal.NewFromFloat(0.0025),
		slippageBound: decimal.NewFromFloat(0.02),
	}
}

// DispatchSpotOrder swaps the order's escrowed funding asset into its
// target denom, enforcing a discount-adjusted minimum out
func (d *Dispatcher) DispatchSpotOrder(order *types.SpotOrder, replyType types.ReplyType) error {
	d.store.Lock()
	record, err := d.correlator.Register(replyType, order.OrderID)
	d.store.Unlock()
	if err != nil {
		return err
	}

	minOut := d.minimumOut(order)
	out, swapErr := d.amm.SwapExactIn(order.OwnerAddress, order.OrderAmount, order.OrderTargetDenom, minOut)

	result := types.ReplyResult{}
	if swapErr != nil {
		result.Error = swapErr.Error()
	} else {
		result.AmountOut = &out
	}
	return d.correlator.Resolve(record.ReplyID, result)
}

// minimumOut computes the slippage floor for a triggered swap: the
// oracle-implied output less the tier-discounted swap fee and the
// slippage bound. An unquotable pair leaves the swap unbounded rather
// than blocking it.
func (d *Dispatcher) minimumOut(order *types.SpotOrder) decimal.Decimal {
	rate, err := d.prices.GetPrice(order.OrderAmount.Denom, order.OrderTargetDenom)
	if err != nil {
		log.Warn().
			Str("component", "dispatcher").
			Uint64("order_id", order.OrderID).
			Err(err).
			Msg("no oracle price for minimum-out, dispatching unbounded")
		return decimal.Zero
	}

	discount := d.tiers.Discount(order.OwnerAddress)
	effectiveFee := d.swapFeeRate.Mul(decimal.NewFromInt(1).Sub(discount))
	haircut := decimal.NewFromInt(1).Sub(effectiveFee).Sub(d.slippageBound)
	if haircut.IsNegative() {
		return decimal.Zero
	}
	return order.OrderAmount.Amount.Mul(rate).Mul(haircut)
}

// DispatchPerpetualOpen opens a leveraged position for the order
func (d *Dispatcher) DispatchPerpetualOpen(order *types.PerpetualOrder) error {
	d.store.Lock()
	record, err := d.correlator.Register(types.ReplyPerpetualOpen, order.OrderID)
	d.store.Unlock()
	if err != nil {
		return err
	}

	positionID, openErr := d.perpetual.OpenPosition(
		order.OwnerAddress,
		order.Collateral,
		order.TradingAsset,
		order.Position,
		order.Leverage,
		order.TakeProfitPrice,
	)

	result := types.ReplyResult{}
	if openErr != nil {
		result.Error = openErr.Error()
	} else {
		result.PositionID = &positionID
	}
	return d.correlator.Resolve(record.ReplyID, result)
}

// DispatchPerpetualClose closes the order's underlying position with its
// full custody amount
func (d *Dispatcher) DispatchPerpetualClose(order *types.PerpetualOrder) error {
	d.store.Lock()
	record, err := d.correlator.Register(types.ReplyPerpetualClose, order.OrderID)
	d.store.Unlock()
	if err != nil {
		return err
	}

	result := types.ReplyResult{}
	pos, posErr := d.perpetual.GetPosition(order.OwnerAddress, *order.PositionID)
	if posErr != nil {
		result.Error = posErr.Error()
	} else if closeErr := d.perpetual.ClosePosition(order.OwnerAddress, pos.PositionID, pos.Custody); closeErr != nil {
		result.Error = closeErr.Error()
	}
	return d.correlator.Resolve(record.ReplyID, result)
}
