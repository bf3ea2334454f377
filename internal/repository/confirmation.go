package repository

import (
	"context"
	"errors"
	"time"

	"meal-order-backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConfirmationRepository interface {
	// FindByOrderID returns nil when no row exists. A row with an empty checksum only carries a
	// build error.
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.OrderConfirmation, error)
	// UpsertSnapshot writes payload, checksum and version keyed by order id. Export and email bookkeeping survive.
	UpsertSnapshot(ctx context.Context, tx *gorm.DB, confirmation *model.OrderConfirmation) error
	// ReopenExport moves a SENT confirmation back to PENDING when checksum differs from the exported one.
	ReopenExport(ctx context.Context, tx *gorm.DB, orderID, checksum string) (bool, error)
	RecordEmailAttempt(ctx context.Context, tx *gorm.DB, orderID string, sentAt *time.Time, lastError string) error
	RecordError(ctx context.Context, tx *gorm.DB, orderID, lastError string) error

	Enqueue(ctx context.Context, tx *gorm.DB, orderID string) (bool, error)
	RequeueFailed(ctx context.Context, tx *gorm.DB) (int64, error)
	ListQueued(ctx context.Context, limit int) ([]*model.OrderConfirmation, error)
	MarkExported(ctx context.Context, orderID, externalID string, at time.Time) error
	MarkExportFailed(ctx context.Context, orderID, lastError string) error
}

type confirmationRepoImpl struct {
	db *gorm.DB
}

func NewConfirmationRepository(db *gorm.DB) ConfirmationRepository {
	return &confirmationRepoImpl{db: db}
}

func (r *confirmationRepoImpl) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.OrderConfirmation, error) {
	var confirmation model.OrderConfirmation
	err := conn(ctx, r.db, tx).
		Where("order_id = ?", orderID).
		First(&confirmation).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &confirmation, nil
}

func (r *confirmationRepoImpl) UpsertSnapshot(ctx context.Context, tx *gorm.DB, confirmation *model.OrderConfirmation) error {
	if confirmation.ExportStatus == "" {
		confirmation.ExportStatus = model.ExportPending
	}
	return conn(ctx, r.db, tx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"version", "payload", "checksum", "updated_at"}),
		}).
		Create(confirmation).Error
}

func (r *confirmationRepoImpl) ReopenExport(ctx context.Context, tx *gorm.DB, orderID, checksum string) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.OrderConfirmation{}).
		Where(`
			order_id = ?
			AND export_status = ?
			AND checksum <> ?
		`,
			orderID,
			model.ExportSent,
			checksum,
		).
		Updates(map[string]interface{}{
			"export_status": model.ExportPending,
			"updated_at":    time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *confirmationRepoImpl) RecordEmailAttempt(ctx context.Context, tx *gorm.DB, orderID string, sentAt *time.Time, lastError string) error {
	fields := map[string]interface{}{
		"email_attempts": gorm.Expr("email_attempts + 1"),
		"last_error":     lastError,
		"updated_at":     time.Now(),
	}
	if sentAt != nil {
		fields["email_sent_at"] = *sentAt
	}
	return conn(ctx, r.db, tx).Model(&model.OrderConfirmation{}).
		Where("order_id = ?", orderID).
		Updates(fields).Error
}

// RecordError sets last_error, inserting an empty PENDING row when no snapshot was ever stored.
func (r *confirmationRepoImpl) RecordError(ctx context.Context, tx *gorm.DB, orderID, lastError string) error {
	now := time.Now()
	return conn(ctx, r.db, tx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_error", "updated_at"}),
		}).
		Create(&model.OrderConfirmation{
			OrderID:      orderID,
			Payload:      datatypes.JSON("{}"),
			ExportStatus: model.ExportPending,
			LastError:    lastError,
			CreatedAt:    now,
			UpdatedAt:    now,
		}).Error
}

// Enqueue marks a confirmation for export unless it is already queued.
func (r *confirmationRepoImpl) Enqueue(ctx context.Context, tx *gorm.DB, orderID string) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.OrderConfirmation{}).
		Where(`
			order_id = ?
			AND export_status IN ?
		`,
			orderID,
			[]model.ExportStatus{model.ExportPending, model.ExportFailed, model.ExportSent},
		).
		Updates(map[string]interface{}{
			"export_status": model.ExportQueued,
			"updated_at":    time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *confirmationRepoImpl) RequeueFailed(ctx context.Context, tx *gorm.DB) (int64, error) {
	result := conn(ctx, r.db, tx).Model(&model.OrderConfirmation{}).
		Where("export_status = ?", model.ExportFailed).
		Updates(map[string]interface{}{
			"export_status": model.ExportQueued,
			"updated_at":    time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *confirmationRepoImpl) ListQueued(ctx context.Context, limit int) ([]*model.OrderConfirmation, error) {
	var confirmations []*model.OrderConfirmation
	err := r.db.WithContext(ctx).
		Where("export_status = ?", model.ExportQueued).
		Order("updated_at").
		Limit(limit).
		Find(&confirmations).Error

	return confirmations, err
}

func (r *confirmationRepoImpl) MarkExported(ctx context.Context, orderID, externalID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.OrderConfirmation{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"export_status":   model.ExportSent,
			"export_attempts": gorm.Expr("export_attempts + 1"),
			"external_id":     externalID,
			"exported_at":     at,
			"updated_at":      time.Now(),
		}).Error
}

func (r *confirmationRepoImpl) MarkExportFailed(ctx context.Context, orderID, lastError string) error {
	return r.db.WithContext(ctx).Model(&model.OrderConfirmation{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"export_status":   model.ExportFailed,
			"export_attempts": gorm.Expr("export_attempts + 1"),
			"last_error":      lastError,
			"updated_at":      time.Now(),
		}).Error
}
