package types

import (
	"time"

	"gorm.io/gorm"
)

// ReplyType identifies which settlement handler applies when a dispatched
// external call completes
type ReplyType string

const (
	ReplySpotOrderMarketBuy ReplyType = "spot_order_market_buy"
	ReplySpotOrderExecution ReplyType = "spot_order_execution"
	ReplyPerpetualOpen      ReplyType = "perpetual_open"
	ReplyPerpetualClose     ReplyType = "perpetual_close"
)

// ReplyRecord correlates a dispatched external call with the order
// awaiting its outcome. It exists between dispatch and callback and is
// consumed exactly once; a consumed record stays addressable but inert.
type ReplyRecord struct {
	gorm.Model `json:"-"`
	ReplyID    uint64    `gorm:"uniqueIndex" json:"reply_id"`
	ReplyType  ReplyType `json:"reply_type"`
	OrderID    uint64    `json:"order_id"`
	Consumed   bool      `json:"consumed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReplyResult carries the outcome of a dispatched external call back into
// the settlement handler. Exactly one of the payload fields is set on
// success depending on the reply type; Error is set when the call failed.
type ReplyResult struct {
	Error      string  `json:"error,omitempty"`
	AmountOut  *Coin   `json:"amount_out,omitempty"`
	PositionID *uint64 `json:"position_id,omitempty"`
}

// Failed reports whether the external call returned an error
func (r ReplyResult) Failed() bool {
	return r.Error != ""
}
