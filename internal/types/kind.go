package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderKind tags every (order type, position) combination that can sit in
// the trigger index. The trigger predicate is a pure function of the kind,
// the order's rate, and the resolved market price.
type OrderKind int

const (
	KindLimitBuy OrderKind = iota
	KindLimitSell
	KindSpotStopLoss
	KindLimitOpenLong
	KindLimitOpenShort
	KindLimitCloseLong
	KindLimitCloseShort
	KindStopLossLong
	KindStopLossShort
)

func (k OrderKind) String() string {
	switch k {
	case KindLimitBuy:
		return "limit_buy"
	case KindLimitSell:
		return "limit_sell"
	case KindSpotStopLoss:
		return "spot_stop_loss"
	case KindLimitOpenLong:
		return "limit_open_long"
	case KindLimitOpenShort:
		return "limit_open_short"
	case KindLimitCloseLong:
		return "limit_close_long"
	case KindLimitCloseShort:
		return "limit_close_short"
	case KindStopLossLong:
		return "stop_loss_long"
	case KindStopLossShort:
		return "stop_loss_short"
	}
	return "unknown"
}

// Kind maps the spot order onto its trigger kind. Market orders have no
// kind because they never reach the evaluator.
func (o *SpotOrder) Kind() (OrderKind, error) {
	switch o.OrderType {
	case SpotLimitBuy:
		return KindLimitBuy, nil
	case SpotLimitSell:
		return KindLimitSell, nil
	case SpotStopLoss:
		return KindSpotStopLoss, nil
	}
	return 0, fmt.Errorf("no trigger kind for spot order type %s", o.OrderType)
}

// Kind maps the perpetual order onto its trigger kind
func (o *PerpetualOrder) Kind() (OrderKind, error) {
	switch {
	case o.OrderType == PerpetualLimitOpen && o.Position == PositionLong:
		return KindLimitOpenLong, nil
	case o.OrderType == PerpetualLimitOpen && o.Position == PositionShort:
		return KindLimitOpenShort, nil
	case o.OrderType == PerpetualLimitClose && o.Position == PositionLong:
		return KindLimitCloseLong, nil
	case o.OrderType == PerpetualLimitClose && o.Position == PositionShort:
		return KindLimitCloseShort, nil
	case o.OrderType == PerpetualStopLoss && o.Position == PositionLong:
		return KindStopLossLong, nil
	case o.OrderType == PerpetualStopLoss && o.Position == PositionShort:
		return KindStopLossShort, nil
	}
	return 0, fmt.Errorf("no trigger kind for perpetual order type %s position %s", o.OrderType, o.Position)
}

var one = decimal.NewFromInt(1)

// Fires evaluates the trigger predicate for a kind against the market
// price resolved for its group.
//
// Limit buys are quoted inverse: the oracle is asked for the target asset
// priced in the funding asset, and the order fires once a unit of funding
// buys at least 1/rate of the target.
func Fires(kind OrderKind, rate, marketPrice decimal.Decimal) bool {
	// A non-positive market price is a broken feed, not a signal; it never
	// fires anything and must not reach the inverse-quote division.
	if marketPrice.Sign() <= 0 {
		return false
	}
	switch kind {
	case KindLimitBuy:
		return one.Div(marketPrice).LessThanOrEqual(rate)
	case KindLimitSell:
		return marketPrice.GreaterThanOrEqual(rate)
	case KindSpotStopLoss:
		return marketPrice.LessThanOrEqual(rate)
	case KindLimitOpenLong:
		return marketPrice.LessThanOrEqual(rate)
	case KindLimitOpenShort:
		return marketPrice.GreaterThanOrEqual(rate)
	case KindLimitCloseLong:
		return marketPrice.GreaterThanOrEqual(rate)
	case KindLimitCloseShort:
		return marketPrice.LessThanOrEqual(rate)
	case KindStopLossLong:
		return marketPrice.LessThanOrEqual(rate)
	case KindStopLossShort:
		return marketPrice.GreaterThanOrEqual(rate)
	}
	return false
}

// InverseQuoted reports whether the kind's market price is fetched as the
// quote denom priced in the base denom rather than the usual direction.
func (k OrderKind) InverseQuoted() bool {
	return k == KindLimitBuy
}
