package repository

import (
	"context"

	"meal-order-backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PackageOptionRepository interface {
	Upsert(ctx context.Context, options []model.PackageOption) error
	FindByID(ctx context.Context, tx *gorm.DB, optionID string) (*model.PackageOption, error)
	FindByCode(ctx context.Context, tx *gorm.DB, code string) (*model.PackageOption, error)
}

type packageOptionRepoImpl struct {
	db *gorm.DB
}

func NewPackageOptionRepository(db *gorm.DB) PackageOptionRepository {
	return &packageOptionRepoImpl{
		db: db,
	}
}

// Upsert loads catalog rows maintained outside this service.
func (r *packageOptionRepoImpl) Upsert(ctx context.Context, options []model.PackageOption) error {
	if len(options) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "name", "duration_days", "portion", "price", "active"}),
		}).
		Create(&options).Error
}

func (r *packageOptionRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, optionID string) (*model.PackageOption, error) {
	var option model.PackageOption
	err := conn(ctx, r.db, tx).
		Where("id = ?", optionID).
		First(&option).Error

	if err != nil {
		return nil, err
	}

	return &option, nil
}

func (r *packageOptionRepoImpl) FindByCode(ctx context.Context, tx *gorm.DB, code string) (*model.PackageOption, error) {
	var option model.PackageOption
	err := conn(ctx, r.db, tx).
		Where("code = ?", code).
		Where("active = ?", true).
		First(&option).Error

	if err != nil {
		return nil, err
	}

	return &option, nil
}
