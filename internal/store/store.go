package store

import (
	"fmt"
	"math"
	"sync"

	"gorm.io/gorm"

	"github.com/ksred/tradeshield-api/internal/types"
)

// Store is the order book store: the canonical order ledger, the pending
// trigger indexes, and the id counters, behind one engine lock.
//
// Mutation is single-writer: the trigger processor's tick, order creation,
// explicit cancellation, and reply settlement all serialize on Lock. Query
// paths only read. Every exported method assumes the caller holds the lock
// for any multi-step transition it is part of.
type Store struct {
	mu sync.Mutex
	db *Database

	spotIndex      *TriggerIndex
	perpetualIndex *TriggerIndex

	nextSpotOrderID      uint64
	nextPerpetualOrderID uint64
	nextReplyID          uint64
}

// New builds a store over the database, restores the id counters, and
// rebuilds the trigger indexes from pending ledger rows (pending orders
// survive restarts; the sorted index does not).
func New(gormDB *gorm.DB) (*Store, error) {
	s := &Store{
		db:             NewDatabase(gormDB),
		spotIndex:      NewTriggerIndex(),
		perpetualIndex: NewTriggerIndex(),
	}
	if err := s.restore(); err != nil {
		return nil, err
	}
	return s, nil
}

// Lock acquires the engine lock. Every compound state transition (evaluate,
// remove from index, write terminal status) runs entirely inside it, which
// is what stands in for the host's transactional block execution.
func (s *Store) Lock() { s.mu.Lock() }

// Unlock releases the engine lock
func (s *Store) Unlock() { s.mu.Unlock() }

func (s *Store) restore() error {
	maxSpot, any, err := s.db.MaxSpotOrderID()
	if err != nil {
		return fmt.Errorf("restore spot order counter: %w", err)
	}
	if any {
		s.nextSpotOrderID = maxSpot + 1
	}

	maxPerp, any, err := s.db.MaxPerpetualOrderID()
	if err != nil {
		return fmt.Errorf("restore perpetual order counter: %w", err)
	}
	if any {
		s.nextPerpetualOrderID = maxPerp + 1
	}

	maxReply, any, err := s.db.MaxReplyID()
	if err != nil {
		return fmt.Errorf("restore reply counter: %w", err)
	}
	if any {
		s.nextReplyID = maxReply + 1
	}

	spot, err := s.db.PendingSpotOrders()
	if err != nil {
		return fmt.Errorf("restore spot trigger index: %w", err)
	}
	for i := range spot {
		if err := s.indexSpotOrder(&spot[i]); err != nil {
			return fmt.Errorf("restore spot trigger index: order %d: %w", spot[i].OrderID, err)
		}
	}

	perp, err := s.db.PendingPerpetualOrders()
	if err != nil {
		return fmt.Errorf("restore perpetual trigger index: %w", err)
	}
	for i := range perp {
		if err := s.indexPerpetualOrder(&perp[i]); err != nil {
			return fmt.Errorf("restore perpetual trigger index: order %d: %w", perp[i].OrderID, err)
		}
	}
	return nil
}

// CreateSpotOrder assigns the next order id, persists the order, and
// indexes it when it is a pending non-market order. Ids are never reused.
func (s *Store) CreateSpotOrder(order *types.SpotOrder) error {
	if s.nextSpotOrderID == math.MaxUint64 {
		return types.ErrOverflow
	}
	order.OrderID = s.nextSpotOrderID
	order.Status = types.StatusPending
	if err := s.db.CreateSpotOrder(order); err != nil {
		return err
	}
	s.nextSpotOrderID++
	if !order.OrderType.IsMarketType() {
		return s.indexSpotOrder(order)
	}
	return nil
}

// CreatePerpetualOrder assigns the next order id, persists the order, and
// indexes it when it is a pending non-market order
func (s *Store) CreatePerpetualOrder(order *types.PerpetualOrder) error {
	if s.nextPerpetualOrderID == math.MaxUint64 {
		return types.ErrOverflow
	}
	order.OrderID = s.nextPerpetualOrderID
	order.Status = types.StatusPending
	if err := s.db.CreatePerpetualOrder(order); err != nil {
		return err
	}
	s.nextPerpetualOrderID++
	if !order.OrderType.IsMarketType() {
		return s.indexPerpetualOrder(order)
	}
	return nil
}

func (s *Store) indexSpotOrder(order *types.SpotOrder) error {
	key, err := order.GroupKey()
	if err != nil {
		return err
	}
	kind, err := order.Kind()
	if err != nil {
		return err
	}
	s.spotIndex.Insert(key, order.OrderPrice.BaseDenom, order.OrderPrice.QuoteDenom, kind, order.OrderID, order.OrderPrice.Rate)
	return nil
}

func (s *Store) indexPerpetualOrder(order *types.PerpetualOrder) error {
	key, err := order.GroupKey()
	if err != nil {
		return err
	}
	kind, err := order.Kind()
	if err != nil {
		return err
	}
	s.perpetualIndex.Insert(key, order.TriggerPrice.BaseDenom, order.TriggerPrice.QuoteDenom, kind, order.OrderID, order.TriggerPrice.Rate)
	return nil
}

// RemoveSpotOrderFromIndex drops the order from its trigger group. This
// must happen before the order's status turns terminal.
func (s *Store) RemoveSpotOrderFromIndex(order *types.SpotOrder) error {
	key, err := order.GroupKey()
	if err != nil {
		return err
	}
	return s.spotIndex.Remove(key, order.OrderID, order.OrderPrice.Rate)
}

// RemovePerpetualOrderFromIndex drops the order from its trigger group
func (s *Store) RemovePerpetualOrderFromIndex(order *types.PerpetualOrder) error {
	key, err := order.GroupKey()
	if err != nil {
		return err
	}
	return s.perpetualIndex.Remove(key, order.OrderID, order.TriggerPrice.Rate)
}

func (s *Store) GetSpotOrder(orderID uint64) (*types.SpotOrder, error) {
	return s.db.GetSpotOrder(orderID)
}

func (s *Store) SaveSpotOrder(order *types.SpotOrder) error {
	return s.db.SaveSpotOrder(order)
}

// SaveSpotOrderWith persists the order and runs fn in one database
// transaction; if fn fails the order write rolls back
func (s *Store) SaveSpotOrderWith(order *types.SpotOrder, fn func() error) error {
	return s.db.SaveSpotOrderWith(order, fn)
}

// SaveSpotOrdersWith persists every order and runs fn in one database
// transaction. A mid-batch failure or an fn error leaves no partial writes.
func (s *Store) SaveSpotOrdersWith(orders []*types.SpotOrder, fn func() error) error {
	return s.db.SaveSpotOrdersWith(orders, fn)
}

// RestoreSpotOrderToIndex puts a still-pending order back into its trigger
// group after a dispatch that never reached a terminal status. A pending
// order outside the index could neither execute nor cancel.
func (s *Store) RestoreSpotOrderToIndex(order *types.SpotOrder) error {
	return s.indexSpotOrder(order)
}

func (s *Store) GetPerpetualOrder(orderID uint64) (*types.PerpetualOrder, error) {
	return s.db.GetPerpetualOrder(orderID)
}

func (s *Store) SavePerpetualOrder(order *types.PerpetualOrder) error {
	return s.db.SavePerpetualOrder(order)
}

// SavePerpetualOrderWith persists the order and runs fn in one database
// transaction; if fn fails the order write rolls back
func (s *Store) SavePerpetualOrderWith(order *types.PerpetualOrder, fn func() error) error {
	return s.db.SavePerpetualOrderWith(order, fn)
}

// SavePerpetualOrdersWith persists every order and runs fn in one database
// transaction
func (s *Store) SavePerpetualOrdersWith(orders []*types.PerpetualOrder, fn func() error) error {
	return s.db.SavePerpetualOrdersWith(orders, fn)
}

// RestorePerpetualOrderToIndex puts a still-pending order back into its
// trigger group after a dispatch that never reached a terminal status
func (s *Store) RestorePerpetualOrderToIndex(order *types.PerpetualOrder) error {
	return s.indexPerpetualOrder(order)
}

func (s *Store) ListSpotOrders(filter types.OrderFilter) ([]types.SpotOrder, int64, error) {
	return s.db.ListSpotOrders(filter)
}

func (s *Store) ListPerpetualOrders(filter types.OrderFilter) ([]types.PerpetualOrder, int64, error) {
	return s.db.ListPerpetualOrders(filter)
}

// SpotGroups returns the spot trigger-index partitions in deterministic
// iteration order
func (s *Store) SpotGroups() []*Group {
	return s.spotIndex.Groups()
}

// PerpetualGroups returns the perpetual trigger-index partitions
func (s *Store) PerpetualGroups() []*Group {
	return s.perpetualIndex.Groups()
}

// SpotGroupOrders returns the pending order ids of a spot group in trigger
// order
func (s *Store) SpotGroupOrders(key string) []uint64 {
	return s.spotIndex.Range(key)
}

// PerpetualGroupOrders returns the pending order ids of a perpetual group
func (s *Store) PerpetualGroupOrders(key string) []uint64 {
	return s.perpetualIndex.Range(key)
}

// SpotIndexContains reports whether the order id sits in the given group
func (s *Store) SpotIndexContains(key string, orderID uint64) bool {
	return s.spotIndex.Contains(key, orderID)
}

// PerpetualIndexContains reports whether the order id sits in the given group
func (s *Store) PerpetualIndexContains(key string, orderID uint64) bool {
	return s.perpetualIndex.Contains(key, orderID)
}

// CreateReplyRecord allocates the next reply correlation id and persists
// the record before the external call is dispatched
func (s *Store) CreateReplyRecord(replyType types.ReplyType, orderID uint64) (*types.ReplyRecord, error) {
	if s.nextReplyID == math.MaxUint64 {
		return nil, types.ErrOverflow
	}
	record := &types.ReplyRecord{
		ReplyID:   s.nextReplyID,
		ReplyType: replyType,
		OrderID:   orderID,
	}
	if err := s.db.CreateReplyRecord(record); err != nil {
		return nil, err
	}
	s.nextReplyID++
	return record, nil
}

func (s *Store) GetReplyRecord(replyID uint64) (*types.ReplyRecord, error) {
	return s.db.GetReplyRecord(replyID)
}

// ConsumeReplyRecord marks the record settled. A consumed record rejects
// further resolution attempts.
func (s *Store) ConsumeReplyRecord(record *types.ReplyRecord) error {
	if record.Consumed {
		return types.ErrReplyConsumed
	}
	record.Consumed = true
	return s.db.SaveReplyRecord(record)
}
