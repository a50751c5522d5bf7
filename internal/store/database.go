package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ksred/tradeshield-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateSpotOrder(order *types.SpotOrder) error {
	return d.db.Create(order).Error
}

func (d *Database) GetSpotOrder(orderID uint64) (*types.SpotOrder, error) {
	var order types.SpotOrder
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) SaveSpotOrder(order *types.SpotOrder) error {
	return d.db.Save(order).Error
}

func (d *Database) MaxSpotOrderID() (uint64, bool, error) {
	return d.maxOrderID(&types.SpotOrder{})
}

// SaveSpotOrdersWith persists every order and runs fn inside the same
// database transaction. An error from fn rolls the writes back, so a state
// transition and its side effect land together or not at all.
func (d *Database) SaveSpotOrdersWith(orders []*types.SpotOrder, fn func() error) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		for _, order := range orders {
			if err := tx.Save(order).Error; err != nil {
				return err
			}
		}
		if fn != nil {
			return fn()
		}
		return nil
	})
}

// SaveSpotOrderWith is SaveSpotOrdersWith for a single order
func (d *Database) SaveSpotOrderWith(order *types.SpotOrder, fn func() error) error {
	return d.SaveSpotOrdersWith([]*types.SpotOrder{order}, fn)
}

func (d *Database) CreatePerpetualOrder(order *types.PerpetualOrder) error {
	return d.db.Create(order).Error
}

func (d *Database) GetPerpetualOrder(orderID uint64) (*types.PerpetualOrder, error) {
	var order types.PerpetualOrder
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) SavePerpetualOrder(order *types.PerpetualOrder) error {
	return d.db.Save(order).Error
}

func (d *Database) MaxPerpetualOrderID() (uint64, bool, error) {
	return d.maxOrderID(&types.PerpetualOrder{})
}

// SavePerpetualOrdersWith persists every order and runs fn inside the same
// database transaction; an error from fn rolls the writes back
func (d *Database) SavePerpetualOrdersWith(orders []*types.PerpetualOrder, fn func() error) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		for _, order := range orders {
			if err := tx.Save(order).Error; err != nil {
				return err
			}
		}
		if fn != nil {
			return fn()
		}
		return nil
	})
}

// SavePerpetualOrderWith is SavePerpetualOrdersWith for a single order
func (d *Database) SavePerpetualOrderWith(order *types.PerpetualOrder, fn func() error) error {
	return d.SavePerpetualOrdersWith([]*types.PerpetualOrder{order}, fn)
}

// maxOrderID returns the highest assigned order id for the model and
// whether any row exists
func (d *Database) maxOrderID(model interface{}) (uint64, bool, error) {
	var count int64
	if err := d.db.Model(model).Count(&count).Error; err != nil {
		return 0, false, err
	}
	if count == 0 {
		return 0, false, nil
	}
	var max uint64
	if err := d.db.Model(model).Select("MAX(order_id)").Scan(&max).Error; err != nil {
		return 0, false, err
	}
	return max, true, nil
}

// ListSpotOrders applies the filter with pagination, oldest first
func (d *Database) ListSpotOrders(filter types.OrderFilter) ([]types.SpotOrder, int64, error) {
	q := d.db.Model(&types.SpotOrder{})
	q = applyOrderFilter(q, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []types.SpotOrder
	err := q.Order("order_id asc").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&orders).Error
	return orders, total, err
}

// ListPerpetualOrders applies the filter with pagination, oldest first
func (d *Database) ListPerpetualOrders(filter types.OrderFilter) ([]types.PerpetualOrder, int64, error) {
	q := d.db.Model(&types.PerpetualOrder{})
	q = applyOrderFilter(q, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []types.PerpetualOrder
	err := q.Order("order_id asc").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&orders).Error
	return orders, total, err
}

func applyOrderFilter(q *gorm.DB, filter types.OrderFilter) *gorm.DB {
	if filter.Owner != "" {
		q = q.Where("owner_address = ?", filter.Owner)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		q = q.Where("order_type = ?", filter.Type)
	}
	return q
}

// PendingSpotOrders returns every pending non-market spot order oldest
// first; used to rebuild the trigger index at startup
func (d *Database) PendingSpotOrders() ([]types.SpotOrder, error) {
	var orders []types.SpotOrder
	err := d.db.Where("status = ? AND order_type <> ?", types.StatusPending, types.SpotMarketBuy).
		Order("order_id asc").
		Find(&orders).Error
	return orders, err
}

// PendingPerpetualOrders returns every pending non-market perpetual order
// oldest first
func (d *Database) PendingPerpetualOrders() ([]types.PerpetualOrder, error) {
	var orders []types.PerpetualOrder
	err := d.db.Where("status = ? AND order_type NOT IN ?", types.StatusPending,
		[]types.PerpetualOrderType{types.PerpetualMarketOpen, types.PerpetualMarketClose}).
		Order("order_id asc").
		Find(&orders).Error
	return orders, err
}

func (d *Database) CreateReplyRecord(record *types.ReplyRecord) error {
	return d.db.Create(record).Error
}

func (d *Database) GetReplyRecord(replyID uint64) (*types.ReplyRecord, error) {
	var record types.ReplyRecord
	if err := d.db.Where("reply_id = ?", replyID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrReplyNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (d *Database) SaveReplyRecord(record *types.ReplyRecord) error {
	return d.db.Save(record).Error
}

func (d *Database) MaxReplyID() (uint64, bool, error) {
	var count int64
	if err := d.db.Model(&types.ReplyRecord{}).Count(&count).Error; err != nil {
		return 0, false, err
	}
	if count == 0 {
		return 0, false, nil
	}
	var max uint64
	if err := d.db.Model(&types.ReplyRecord{}).Select("MAX(reply_id)").Scan(&max).Error; err != nil {
		return 0, false, err
	}
	return max, true, nil
}
