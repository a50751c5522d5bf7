package types

import "github.com/shopspring/decimal"

// CreateSpotOrderRequest is the user-facing payload for spot order creation
type CreateSpotOrderRequest struct {
	OrderType        SpotOrderType `json:"order_type" binding:"required"`
	OrderPrice       OrderPrice    `json:"order_price"`
	OrderAmount      Coin          `json:"order_amount" binding:"required"`
	OrderTargetDenom string        `json:"order_target_denom" binding:"required"`
}

// CreatePerpetualOrderRequest is the user-facing payload for perpetual
// order creation
type CreatePerpetualOrderRequest struct {
	OrderType       PerpetualOrderType  `json:"order_type" binding:"required"`
	Position        Position            `json:"position"`
	TriggerPrice    OrderPrice          `json:"trigger_price"`
	Collateral      Coin                `json:"collateral"`
	TradingAsset    string              `json:"trading_asset" binding:"required"`
	Leverage        decimal.Decimal     `json:"leverage"`
	TakeProfitPrice decimal.NullDecimal `json:"take_profit_price"`
	PositionID      *uint64             `json:"position_id,omitempty"`
}

// CancelOrdersRequest cancels pending orders by id, by type, or both.
// At least one selector is required.
type CancelOrdersRequest struct {
	OrderIDs  []uint64 `json:"order_ids"`
	OrderType string   `json:"order_type"`
}

// OrderFilter selects orders for the list endpoints. Zero values mean no
// constraint on that dimension.
type OrderFilter struct {
	Owner  string `form:"owner"`
	Status Status `form:"status"`
	Type   string `form:"type"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

// Normalize applies pagination defaults and bounds
func (f *OrderFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 500 {
		f.Limit = 50
	}
}

// OrderListResponse is the paginated list envelope
type OrderListResponse struct {
	SpotOrders      []SpotOrder      `json:"spot_orders,omitempty"`
	PerpetualOrders []PerpetualOrder `json:"perpetual_orders,omitempty"`
	Page            int              `json:"page"`
	Limit           int              `json:"limit"`
	Total           int64            `json:"total"`
}

// TickResponse summarizes one block tick for the internal trigger endpoint
type TickResponse struct {
	SpotEvaluated      int `json:"spot_evaluated"`
	SpotExecuted       int `json:"spot_executed"`
	SpotCanceled       int `json:"spot_canceled"`
	PerpetualEvaluated int `json:"perpetual_evaluated"`
	PerpetualExecuted  int `json:"perpetual_executed"`
	PerpetualCanceled  int `json:"perpetual_canceled"`
}
