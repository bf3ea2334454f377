package repository

import (
	"context"
	"time"

	"meal-order-backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error)
	// LockForUpdate reads the latest committed order row and holds its row lock until tx ends.
	LockForUpdate(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error)
	UpdatePricing(ctx context.Context, tx *gorm.DB, orderID string, subtotal, discount, total int64) error
	UpdateAggregates(ctx context.Context, tx *gorm.DB, orderID string, amountPaid int64, fullyPaid bool) error
	UpdateNote(ctx context.Context, tx *gorm.DB, orderID, note string) error
	LinkCustomer(ctx context.Context, tx *gorm.DB, orderID, customerID string) error
	TransitionStatus(ctx context.Context, tx *gorm.DB, orderID string, from []model.OrderStatus, to model.OrderStatus) (bool, error)
	CreateItem(ctx context.Context, tx *gorm.DB, item *model.OrderItem) error
	GetItems(ctx context.Context, tx *gorm.DB, orderID string) ([]model.OrderItem, error)
	HasPartnerBundle(ctx context.Context, tx *gorm.DB, orderID string) (bool, error)
	ReplaceRequests(ctx context.Context, tx *gorm.DB, orderID string, requests []model.OrderRequest) error
	GetRequests(ctx context.Context, tx *gorm.DB, orderID string) ([]model.OrderRequest, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return conn(ctx, r.db, tx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db, tx).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) LockForUpdate(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db, tx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) UpdatePricing(ctx context.Context, tx *gorm.DB, orderID string, subtotal, discount, total int64) error {
	return r.update(ctx, tx, orderID, map[string]interface{}{
		"subtotal": subtotal,
		"discount": discount,
		"total":    total,
	})
}

func (r *orderRepoImpl) UpdateAggregates(ctx context.Context, tx *gorm.DB, orderID string, amountPaid int64, fullyPaid bool) error {
	return r.update(ctx, tx, orderID, map[string]interface{}{
		"amount_paid": amountPaid,
		"fully_paid":  fullyPaid,
	})
}

func (r *orderRepoImpl) UpdateNote(ctx context.Context, tx *gorm.DB, orderID, note string) error {
	return r.update(ctx, tx, orderID, map[string]interface{}{"note": note})
}

func (r *orderRepoImpl) LinkCustomer(ctx context.Context, tx *gorm.DB, orderID, customerID string) error {
	return r.update(ctx, tx, orderID, map[string]interface{}{"customer_id": customerID})
}

func (r *orderRepoImpl) update(ctx context.Context, tx *gorm.DB, orderID string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	result := conn(ctx, r.db, tx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(fields)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TransitionStatus moves the order only when it is currently in one of from.
func (r *orderRepoImpl) TransitionStatus(ctx context.Context, tx *gorm.DB, orderID string, from []model.OrderStatus, to model.OrderStatus) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.Order{}).
		Where(`
			id = ?
			AND status IN ?
		`,
			orderID,
			from,
		).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *orderRepoImpl) CreateItem(ctx context.Context, tx *gorm.DB, item *model.OrderItem) error {
	return conn(ctx, r.db, tx).Create(item).Error
}

func (r *orderRepoImpl) GetItems(ctx context.Context, tx *gorm.DB, orderID string) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := conn(ctx, r.db, tx).
		Where("order_id = ?", orderID).
		Order("id").
		Find(&items).Error

	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *orderRepoImpl) HasPartnerBundle(ctx context.Context, tx *gorm.DB, orderID string) (bool, error) {
	var count int64
	err := conn(ctx, r.db, tx).Model(&model.OrderItem{}).
		Where("order_id = ?", orderID).
		Where("kind = ?", model.ItemPartnerBundle).
		Count(&count).Error

	return count > 0, err
}

func (r *orderRepoImpl) ReplaceRequests(ctx context.Context, tx *gorm.DB, orderID string, requests []model.OrderRequest) error {
	db := conn(ctx, r.db, tx)
	if err := db.Where("order_id = ?", orderID).Delete(&model.OrderRequest{}).Error; err != nil {
		return err
	}
	if len(requests) == 0 {
		return nil
	}
	for i := range requests {
		requests[i].OrderID = orderID
	}
	return db.Create(&requests).Error
}

func (r *orderRepoImpl) GetRequests(ctx context.Context, tx *gorm.DB, orderID string) ([]model.OrderRequest, error) {
	var requests []model.OrderRequest
	err := conn(ctx, r.db, tx).
		Where("order_id = ?", orderID).
		Order("id").
		Find(&requests).Error

	return requests, err
}
