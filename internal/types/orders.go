package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Coin is an amount of a single denomination
type Coin struct {
	Denom  string          `json:"denom"`
	Amount decimal.Decimal `json:"amount"`
}

func NewCoin(denom string, amount decimal.Decimal) Coin {
	return Coin{Denom: denom, Amount: amount}
}

// OrderPrice is the trigger threshold of a non-market order.
// Rate is the number of quote units per base unit.
type OrderPrice struct {
	BaseDenom  string          `json:"base_denom"`
	QuoteDenom string          `json:"quote_denom"`
	Rate       decimal.Decimal `json:"rate"`
}

// IsEmpty reports whether no price was supplied
func (p OrderPrice) IsEmpty() bool {
	return p.BaseDenom == "" && p.QuoteDenom == ""
}

// Status is the order lifecycle state. Pending is the only non-terminal
// state: an order moves Pending -> Executed or Pending -> Canceled and
// never back.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusExecuted Status = "EXECUTED"
	StatusCanceled Status = "CANCELED"
)

// Position is the direction of a perpetual order
type Position string

const (
	PositionUnspecified Position = "UNSPECIFIED"
	PositionLong        Position = "LONG"
	PositionShort       Position = "SHORT"
)

// SpotOrderType enumerates the spot order semantics
type SpotOrderType string

const (
	SpotMarketBuy SpotOrderType = "MARKET_BUY"
	SpotLimitBuy  SpotOrderType = "LIMIT_BUY"
	SpotLimitSell SpotOrderType = "LIMIT_SELL"
	SpotStopLoss  SpotOrderType = "STOP_LOSS"
)

// PerpetualOrderType enumerates the perpetual order semantics
type PerpetualOrderType string

const (
	PerpetualMarketOpen  PerpetualOrderType = "MARKET_OPEN"
	PerpetualLimitOpen   PerpetualOrderType = "LIMIT_OPEN"
	PerpetualMarketClose PerpetualOrderType = "MARKET_CLOSE"
	PerpetualLimitClose  PerpetualOrderType = "LIMIT_CLOSE"
	PerpetualStopLoss    PerpetualOrderType = "STOP_LOSS"
)

// SpotOrder is a ledger entry for a spot swap order. OrderAmount is the
// escrowed funding asset; OrderTargetDenom is the asset the swap buys.
type SpotOrder struct {
	gorm.Model       `json:"-"`
	OrderID          uint64          `gorm:"uniqueIndex" json:"order_id"`
	OwnerAddress     string          `gorm:"index" json:"owner_address"`
	OrderType        SpotOrderType   `gorm:"index" json:"order_type"`
	OrderPrice       OrderPrice      `gorm:"embedded;embeddedPrefix:price_" json:"order_price"`
	OrderAmount      Coin            `gorm:"embedded;embeddedPrefix:amount_" json:"order_amount"`
	OrderTargetDenom string          `json:"order_target_denom"`
	Status           Status          `gorm:"index" json:"status"`
	FilledAmount     decimal.Decimal `json:"filled_amount"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PerpetualOrder is a ledger entry for a perpetual (margin) order. Opens
// escrow Collateral; closes and stop-losses reference an existing position
// through PositionID and hold no escrow.
type PerpetualOrder struct {
	gorm.Model      `json:"-"`
	OrderID         uint64             `gorm:"uniqueIndex" json:"order_id"`
	OwnerAddress    string             `gorm:"index" json:"owner_address"`
	OrderType       PerpetualOrderType `gorm:"index" json:"order_type"`
	Position        Position           `json:"position"`
	TriggerPrice    OrderPrice         `gorm:"embedded;embeddedPrefix:trigger_" json:"trigger_price"`
	Collateral      Coin               `gorm:"embedded;embeddedPrefix:collateral_" json:"collateral"`
	TradingAsset    string             `json:"trading_asset"`
	Leverage        decimal.Decimal    `json:"leverage"`
	TakeProfitPrice decimal.NullDecimal `json:"take_profit_price"`
	PositionID      *uint64            `json:"position_id,omitempty"`
	Status          Status             `gorm:"index" json:"status"`
	EstimatedFees   decimal.Decimal    `json:"estimated_fees"`
	EstimatedSize   decimal.Decimal    `json:"estimated_size"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// IsMarketType reports whether the spot order settles synchronously at
// creation and therefore never enters the trigger index
func (t SpotOrderType) IsMarketType() bool {
	return t == SpotMarketBuy
}

// IsMarketType reports whether the perpetual order settles synchronously
func (t PerpetualOrderType) IsMarketType() bool {
	return t == PerpetualMarketOpen || t == PerpetualMarketClose
}

// IsOpenType reports whether the order escrows collateral that must be
// refunded on cancellation
func (t PerpetualOrderType) IsOpenType() bool {
	return t == PerpetualMarketOpen || t == PerpetualLimitOpen
}

// GroupKey derives the trigger-index partition for the order. Every order
// in one group shares the same type and asset pair, so a single rate
// comparison fully orders the group.
func (o *SpotOrder) GroupKey() (string, error) {
	if o.OrderType.IsMarketType() {
		return "", fmt.Errorf("%w: %s", ErrMarketOrderGroupKey, o.OrderType)
	}
	if o.OrderPrice.IsEmpty() {
		return "", ErrTriggerPriceNotFound
	}
	return fmt.Sprintf("spot/%s/%s/%s", o.OrderType, o.OrderPrice.BaseDenom, o.OrderPrice.QuoteDenom), nil
}

// GroupKey derives the trigger-index partition for the order. The position
// direction is part of the key because it flips the trigger predicate.
func (o *PerpetualOrder) GroupKey() (string, error) {
	if o.OrderType.IsMarketType() {
		return "", fmt.Errorf("%w: %s", ErrMarketOrderGroupKey, o.OrderType)
	}
	if o.TriggerPrice.IsEmpty() {
		return "", ErrTriggerPriceNotFound
	}
	return fmt.Sprintf("perpetual/%s/%s/%s/%s", o.Position, o.OrderType, o.TriggerPrice.BaseDenom, o.TriggerPrice.QuoteDenom), nil
}
