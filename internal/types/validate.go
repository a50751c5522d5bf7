package types

// Validate checks the creation-time invariants of a spot order. Market
// buys need no price; every other type needs a non-zero trigger rate whose
// denoms match the order's funding/target pair exactly.
func (o *SpotOrder) Validate() error {
	switch o.OrderType {
	case SpotMarketBuy, SpotLimitBuy, SpotLimitSell, SpotStopLoss:
	default:
		return NewValidationError("order_type", "unknown spot order type")
	}
	if o.OwnerAddress == "" {
		return NewValidationError("owner_address", "required")
	}
	if o.OrderAmount.Denom == "" || !o.OrderAmount.Amount.IsPositive() {
		return NewValidationError("order_amount", "must be a positive amount of a named denom")
	}
	if o.OrderTargetDenom == "" {
		return NewValidationError("order_target_denom", "required")
	}
	if o.OrderTargetDenom == o.OrderAmount.Denom {
		return NewValidationError("order_target_denom", "must differ from funding denom")
	}

	if o.OrderType == SpotMarketBuy {
		if !o.OrderPrice.IsEmpty() {
			return NewValidationError("order_price", "not allowed for market orders")
		}
		return nil
	}

	if o.OrderPrice.IsEmpty() {
		return NewValidationError("order_price", "required for non-market orders")
	}
	if !o.OrderPrice.Rate.IsPositive() {
		return NewValidationError("order_price.rate", "must be non-zero")
	}
	if o.OrderPrice.BaseDenom != o.OrderAmount.Denom {
		return NewValidationError("order_price.base_denom", "must match funding denom "+o.OrderAmount.Denom)
	}
	if o.OrderPrice.QuoteDenom != o.OrderTargetDenom {
		return NewValidationError("order_price.quote_denom", "must match target denom "+o.OrderTargetDenom)
	}
	return nil
}

// Validate checks the creation-time invariants of a perpetual order.
// PositionID is required for close/stop-loss variants and forbidden for
// opens; an unspecified position direction is illegal for opens.
func (o *PerpetualOrder) Validate() error {
	switch o.OrderType {
	case PerpetualMarketOpen, PerpetualLimitOpen, PerpetualMarketClose, PerpetualLimitClose, PerpetualStopLoss:
	default:
		return NewValidationError("order_type", "unknown perpetual order type")
	}
	if o.OwnerAddress == "" {
		return NewValidationError("owner_address", "required")
	}
	if o.TradingAsset == "" {
		return NewValidationError("trading_asset", "required")
	}
	switch o.Position {
	case PositionLong, PositionShort:
	case PositionUnspecified:
		if o.OrderType.IsOpenType() {
			return NewValidationError("position", "direction required for open orders")
		}
	default:
		return NewValidationError("position", "unknown position direction")
	}

	if o.OrderType.IsOpenType() {
		if o.PositionID != nil {
			return NewValidationError("position_id", "not allowed before an open order executes")
		}
		if o.Collateral.Denom == "" || !o.Collateral.Amount.IsPositive() {
			return NewValidationError("collateral", "must be a positive amount of a named denom")
		}
		if !o.Leverage.IsPositive() {
			return NewValidationError("leverage", "must be positive")
		}
	} else {
		if o.PositionID == nil {
			return NewValidationError("position_id", "required for close and stop-loss orders")
		}
	}

	if o.OrderType.IsMarketType() {
		if !o.TriggerPrice.IsEmpty() {
			return NewValidationError("trigger_price", "not allowed for market orders")
		}
		return nil
	}

	if o.TriggerPrice.IsEmpty() {
		return NewValidationError("trigger_price", "required for non-market orders")
	}
	if !o.TriggerPrice.Rate.IsPositive() {
		return NewValidationError("trigger_price.rate", "must be non-zero")
	}
	if o.TriggerPrice.BaseDenom != o.TradingAsset {
		return NewValidationError("trigger_price.base_denom", "must match trading asset "+o.TradingAsset)
	}
	if o.TriggerPrice.QuoteDenom == "" {
		return NewValidationError("trigger_price.quote_denom", "required")
	}
	return nil
}
