package repository

import (
	"context"

	"gorm.io/gorm"
)

// conn runs on the caller's transaction when one is open, otherwise on the default handle.
func conn(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
