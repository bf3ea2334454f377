package repository

import (
	"context"
	"errors"

	"meal-order-backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PromotionRepository interface {
	Create(ctx context.Context, promo *model.Promotion) error
	FindByCode(ctx context.Context, tx *gorm.DB, code string) (*model.Promotion, error)
	// GetApplication returns nil when the order has no promotion applied.
	GetApplication(ctx context.Context, tx *gorm.DB, orderID string) (*model.PromotionApplication, error)
	UpsertApplication(ctx context.Context, tx *gorm.DB, app *model.PromotionApplication) error
	DeleteApplication(ctx context.Context, tx *gorm.DB, orderID string) (bool, error)
}

type promotionRepoImpl struct {
	db *gorm.DB
}

func NewPromotionRepository(db *gorm.DB) PromotionRepository {
	return &promotionRepoImpl{
		db: db,
	}
}

func (r *promotionRepoImpl) Create(ctx context.Context, promo *model.Promotion) error {
	return r.db.WithContext(ctx).Create(promo).Error
}

func (r *promotionRepoImpl) FindByCode(ctx context.Context, tx *gorm.DB, code string) (*model.Promotion, error) {
	var promo model.Promotion
	err := conn(ctx, r.db, tx).
		Where("code = ?", code).
		First(&promo).Error

	if err != nil {
		return nil, err
	}

	return &promo, nil
}

func (r *promotionRepoImpl) GetApplication(ctx context.Context, tx *gorm.DB, orderID string) (*model.PromotionApplication, error) {
	var app model.PromotionApplication
	err := conn(ctx, r.db, tx).
		Where("order_id = ?", orderID).
		First(&app).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &app, nil
}

func (r *promotionRepoImpl) UpsertApplication(ctx context.Context, tx *gorm.DB, app *model.PromotionApplication) error {
	return conn(ctx, r.db, tx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "discount_type", "value", "amount", "applied_at"}),
		}).
		Create(app).Error
}

func (r *promotionRepoImpl) DeleteApplication(ctx context.Context, tx *gorm.DB, orderID string) (bool, error) {
	result := conn(ctx, r.db, tx).
		Where("order_id = ?", orderID).
		Delete(&model.PromotionApplication{})

	return result.RowsAffected > 0, result.Error
}
