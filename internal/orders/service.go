package orders

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ksred/tradeshield-api/internal/market"
	"github.com/ksred/tradeshield-api/internal/settlement"
	"github.com/ksred/tradeshield-api/internal/store"
	"github.com/ksred/tradeshield-api/internal/types"
)

// Service owns the user-facing order operations: creation, explicit
// cancellation, and queries. Market orders settle inside the creating
// request; everything else lands in the trigger index and waits for the
// block tick.
type Service struct {
	store      *store.Store
	dispatcher *settlement.Dispatcher
	bank       market.BankKeeper
}

func NewService(s *store.Store, dispatcher *settlement.Dispatcher, bank market.BankKeeper) *Service {
	return &Service{store: s, dispatcher: dispatcher, bank: bank}
}

// CreateSpotOrder validates and persists a spot order for the owner. A
// market buy dispatches its swap before returning, so the returned order
// already carries its terminal status.
func (s *Service) CreateSpotOrder(owner string, req types.CreateSpotOrderRequest) (*types.SpotOrder, error) {
	order := &types.SpotOrder{
		OwnerAddress:     owner,
		OrderType:        req.OrderType,
		OrderPrice:       req.OrderPrice,
		OrderAmount:      req.OrderAmount,
		OrderTargetDenom: req.OrderTargetDenom,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	s.store.Lock()
	err := s.store.CreateSpotOrder(order)
	s.store.Unlock()
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("component", "orders").
		Uint64("order_id", order.OrderID).
		Str("owner", owner).
		Str("order_type", string(order.OrderType)).
		Msg("spot order created")

	if order.OrderType.IsMarketType() {
		if err := s.dispatcher.DispatchSpotOrder(order, types.ReplySpotOrderMarketBuy); err != nil {
			return nil, fmt.Errorf("dispatch market order %d: %w", order.OrderID, err)
		}
		return s.store.GetSpotOrder(order.OrderID)
	}
	return order, nil
}

// CreatePerpetualOrder validates and persists a perpetual order. Market
// opens and closes dispatch before returning.
func (s *Service) CreatePerpetualOrder(owner string, req types.CreatePerpetualOrderRequest) (*types.PerpetualOrder, error) {
	order := &types.PerpetualOrder{
		OwnerAddress:    owner,
		OrderType:       req.OrderType,
		Position:        req.Position,
		TriggerPrice:    req.TriggerPrice,
		Collateral:      req.Collateral,
		TradingAsset:    req.TradingAsset,
		Leverage:        req.Leverage,
		TakeProfitPrice: req.TakeProfitPrice,
		PositionID:      req.PositionID,
	}
	if order.Position == "" {
		order.Position = types.PositionUnspecified
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	s.store.Lock()
	err := s.store.CreatePerpetualOrder(order)
	s.store.Unlock()
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("component", "orders").
		Uint64("order_id", order.OrderID).
		Str("owner", owner).
		Str("order_type", string(order.OrderType)).
		Msg("perpetual order created")

	if order.OrderType.IsMarketType() {
		var dispatchErr error
		if order.OrderType.IsOpenType() {
			dispatchErr = s.dispatcher.DispatchPerpetualOpen(order)
		} else {
			dispatchErr = s.dispatcher.DispatchPerpetualClose(order)
		}
		if dispatchErr != nil {
			return nil, fmt.Errorf("dispatch market order %d: %w", order.OrderID, dispatchErr)
		}
		return s.store.GetPerpetualOrder(order.OrderID)
	}
	return order, nil
}

// CancelSpotOrders cancels the owner's pending spot orders selected by id
// and/or type. The whole batch is validated before anything is mutated:
// one bad id aborts the request with no state change. Refunds for the
// batch are aggregated into a single transfer.
func (s *Service) CancelSpotOrders(owner string, req types.CancelOrdersRequest) ([]types.SpotOrder, error) {
	refunds := settlement.NewRefundSet()

	s.store.Lock()
	ids, err := s.resolveSpotSelection(owner, req)
	if err != nil {
		s.store.Unlock()
		return nil, err
	}

	orders := make([]*types.SpotOrder, 0, len(ids))
	for _, id := range ids {
		order, err := s.store.GetSpotOrder(id)
		if err != nil {
			s.store.Unlock()
			return nil, err
		}
		if order.OwnerAddress != owner {
			s.store.Unlock()
			return nil, fmt.Errorf("%w: order %d", types.ErrUnauthorized, id)
		}
		if order.OrderType.IsMarketType() || order.Status != types.StatusPending {
			s.store.Unlock()
			return nil, fmt.Errorf("%w: order %d is %s", types.ErrCancelStatus, id, order.Status)
		}
		orders = append(orders, order)
	}

	// The whole batch commits in one transaction with its refund transfer;
	// a mid-batch write failure or a failed refund leaves every order
	// pending and indexed.
	for _, order := range orders {
		order.Status = types.StatusCanceled
		refunds.Add(order.OwnerAddress, order.OrderAmount)
	}
	err = s.store.SaveSpotOrdersWith(orders, func() error {
		return refunds.Emit(s.bank)
	})
	if err != nil {
		s.store.Unlock()
		return nil, err
	}

	canceled := make([]types.SpotOrder, 0, len(orders))
	for _, order := range orders {
		if err := s.store.RemoveSpotOrderFromIndex(order); err != nil {
			s.store.Unlock()
			return nil, err
		}
		canceled = append(canceled, *order)
	}
	s.store.Unlock()
	return canceled, nil
}

// CancelPerpetualOrders cancels the owner's pending perpetual orders.
// Only open orders escrow collateral, so only they produce refunds.
func (s *Service) CancelPerpetualOrders(owner string, req types.CancelOrdersRequest) ([]types.PerpetualOrder, error) {
	refunds := settlement.NewRefundSet()

	s.store.Lock()
	ids, err := s.resolvePerpetualSelection(owner, req)
	if err != nil {
		s.store.Unlock()
		return nil, err
	}

	orders := make([]*types.PerpetualOrder, 0, len(ids))
	for _, id := range ids {
		order, err := s.store.GetPerpetualOrder(id)
		if err != nil {
			s.store.Unlock()
			return nil, err
		}
		if order.OwnerAddress != owner {
			s.store.Unlock()
			return nil, fmt.Errorf("%w: order %d", types.ErrUnauthorized, id)
		}
		if order.OrderType.IsMarketType() || order.Status != types.StatusPending {
			s.store.Unlock()
			return nil, fmt.Errorf("%w: order %d is %s", types.ErrCancelStatus, id, order.Status)
		}
		orders = append(orders, order)
	}

	for _, order := range orders {
		order.Status = types.StatusCanceled
		if order.OrderType.IsOpenType() {
			refunds.Add(order.OwnerAddress, order.Collateral)
		}
	}
	err = s.store.SavePerpetualOrdersWith(orders, func() error {
		return refunds.Emit(s.bank)
	})
	if err != nil {
		s.store.Unlock()
		return nil, err
	}

	canceled := make([]types.PerpetualOrder, 0, len(orders))
	for _, order := range orders {
		if err := s.store.RemovePerpetualOrderFromIndex(order); err != nil {
			s.store.Unlock()
			return nil, err
		}
		canceled = append(canceled, *order)
	}
	s.store.Unlock()
	return canceled, nil
}

// cancelSelectionPageSize bounds one page of a cancel-by-type lookup; the
// selection pages through until the whole matching set is collected
var cancelSelectionPageSize = 500

// resolveSpotSelection expands a cancel request into explicit order ids.
// Caller holds the engine lock.
func (s *Service) resolveSpotSelection(owner string, req types.CancelOrdersRequest) ([]uint64, error) {
	ids := append([]uint64(nil), req.OrderIDs...)
	if req.OrderType != "" {
		filter := types.OrderFilter{Owner: owner, Status: types.StatusPending, Type: req.OrderType}
		filter.Normalize()
		filter.Limit = cancelSelectionPageSize
		for {
			matched, _, err := s.store.ListSpotOrders(filter)
			if err != nil {
				return nil, err
			}
			for _, o := range matched {
				ids = append(ids, o.OrderID)
			}
			if len(matched) < filter.Limit {
				break
			}
			filter.Page++
		}
	}
	if len(ids) == 0 {
		return nil, types.NewValidationError("order_ids", "no orders selected")
	}
	return dedupe(ids), nil
}

// resolvePerpetualSelection expands a cancel request into explicit order
// ids. Caller holds the engine lock.
func (s *Service) resolvePerpetualSelection(owner string, req types.CancelOrdersRequest) ([]uint64, error) {
	ids := append([]uint64(nil), req.OrderIDs...)
	if req.OrderType != "" {
		filter := types.OrderFilter{Owner: owner, Status: types.StatusPending, Type: req.OrderType}
		filter.Normalize()
		filter.Limit = cancelSelectionPageSize
		for {
			matched, _, err := s.store.ListPerpetualOrders(filter)
			if err != nil {
				return nil, err
			}
			for _, o := range matched {
				ids = append(ids, o.OrderID)
			}
			if len(matched) < filter.Limit {
				break
			}
			filter.Page++
		}
	}
	if len(ids) == 0 {
		return nil, types.NewValidationError("order_ids", "no orders selected")
	}
	return dedupe(ids), nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// GetSpotOrder returns the owner's order by id
func (s *Service) GetSpotOrder(owner string, orderID uint64) (*types.SpotOrder, error) {
	order, err := s.store.GetSpotOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.OwnerAddress != owner {
		return nil, types.ErrUnauthorized
	}
	return order, nil
}

// GetPerpetualOrder returns the owner's order by id
func (s *Service) GetPerpetualOrder(owner string, orderID uint64) (*types.PerpetualOrder, error) {
	order, err := s.store.GetPerpetualOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.OwnerAddress != owner {
		return nil, types.ErrUnauthorized
	}
	return order, nil
}

// ListSpotOrders returns a page of the owner's spot orders
func (s *Service) ListSpotOrders(owner string, filter types.OrderFilter) (*types.OrderListResponse, error) {
	filter.Owner = owner
	filter.Normalize()
	orders, total, err := s.store.ListSpotOrders(filter)
	if err != nil {
		return nil, err
	}
	return &types.OrderListResponse{SpotOrders: orders, Page: filter.Page, Limit: filter.Limit, Total: total}, nil
}

// ListPerpetualOrders returns a page of the owner's perpetual orders
func (s *Service) ListPerpetualOrders(owner string, filter types.OrderFilter) (*types.OrderListResponse, error) {
	filter.Owner = owner
	filter.Normalize()
	orders, total, err := s.store.ListPerpetualOrders(filter)
	if err != nil {
		return nil, err
	}
	return &types.OrderListResponse{PerpetualOrders: orders, Page: filter.Page, Limit: filter.Limit, Total: total}, nil
}
