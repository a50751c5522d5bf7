package market

import (
	"github.com/shopspring/decimal"

	"github.com/ksred/tradeshield-api/internal/types"
)

// PriceService quotes asset pairs. A rate is the number of quote units per
// base unit. Unquotable pairs return types.ErrPriceUnavailable.
type PriceService interface {
	GetPrice(baseDenom, quoteDenom string) (decimal.Decimal, error)
}

// SwapEngine executes a spot swap of the escrowed funding asset into the
// target denom. minOut is the slippage floor; the swap fails rather than
// settle below it.
type SwapEngine interface {
	SwapExactIn(owner string, in types.Coin, targetDenom string, minOut decimal.Decimal) (types.Coin, error)
}

// Position is an open leveraged position held by the perpetual engine
type Position struct {
	PositionID   uint64          `json:"position_id"`
	OwnerAddress string          `json:"owner_address"`
	TradingAsset string          `json:"trading_asset"`
	Collateral   types.Coin      `json:"collateral"`
	Direction    types.Position  `json:"direction"`
	Leverage     decimal.Decimal `json:"leverage"`
	Custody      decimal.Decimal `json:"custody"`
}

// PerpetualEngine opens and closes leveraged positions
type PerpetualEngine interface {
	OpenPosition(owner string, collateral types.Coin, tradingAsset string, direction types.Position, leverage decimal.Decimal, takeProfit decimal.NullDecimal) (uint64, error)
	ClosePosition(owner string, positionID uint64, custody decimal.Decimal) error
	// GetPosition returns types.ErrPositionNotFound when the position no
	// longer exists
	GetPosition(owner string, positionID uint64) (*Position, error)
}

// BankKeeper moves escrowed funds back to their owners
type BankKeeper interface {
	Send(owner string, coins []types.Coin) error
}

// TierService looks up the broker discount applied when computing
// minimum-out guarantees for triggered swaps. The discount is a fraction
// of the swap fee in [0, 1].
type TierService interface {
	Discount(owner string) decimal.Decimal
}
