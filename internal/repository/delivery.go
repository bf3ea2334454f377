package repository

import (
	"context"
	"errors"

	"meal-order-backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeliveryRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, delivery *model.DeliverySnapshot) error
	// FindByOrderID returns nil when no delivery details were submitted yet.
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.DeliverySnapshot, error)
}

type deliveryRepoImpl struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &deliveryRepoImpl{db: db}
}

func (r *deliveryRepoImpl) Upsert(ctx context.Context, tx *gorm.DB, delivery *model.DeliverySnapshot) error {
	return conn(ctx, r.db, tx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"first_name", "last_name", "email", "phone",
				"address_line1", "address_line2", "suburb", "state", "postcode",
				"instructions", "updated_at",
			}),
		}).
		Create(delivery).Error
}

func (r *deliveryRepoImpl) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.DeliverySnapshot, error) {
	var delivery model.DeliverySnapshot
	err := conn(ctx, r.db, tx).
		Where("order_id = ?", orderID).
		First(&delivery).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &delivery, nil
}
