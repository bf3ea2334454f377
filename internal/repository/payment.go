package repository

import (
	"context"
	"errors"
	"time"

	"meal-order-backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	// CreateRefund inserts a refund row once per external refund id and reports whether it was new.
	CreateRefund(ctx context.Context, tx *gorm.DB, refund *model.Payment) (bool, error)
	FindByID(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Payment, error)
	FindByExternalRef(ctx context.Context, tx *gorm.DB, sessionID, intentID string) ([]*model.Payment, error)
	LatestPending(ctx context.Context, tx *gorm.DB, orderID string) (*model.Payment, error)
	ListByOrder(ctx context.Context, tx *gorm.DB, orderID string) ([]model.Payment, error)
	// ListByOrderForUpdate is ListByOrder as a locking read, so it sees rows committed after tx began.
	ListByOrderForUpdate(ctx context.Context, tx *gorm.DB, orderID string) ([]model.Payment, error)
	AttachSession(ctx context.Context, tx *gorm.DB, paymentID, sessionID, intentID string) error
	// MarkPaid and MarkFailed only touch rows still PENDING and report whether a row moved.
	MarkPaid(ctx context.Context, tx *gorm.DB, paymentID, method, intentID string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, tx *gorm.DB, paymentID, reason string) (bool, error)
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return conn(ctx, r.db, tx).Create(payment).Error
}

func (r *paymentRepoImpl) CreateRefund(ctx context.Context, tx *gorm.DB, refund *model.Payment) (bool, error) {
	result := conn(ctx, r.db, tx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_refund_id"}},
			DoNothing: true,
		}).
		Create(refund)

	return result.RowsAffected == 1, result.Error
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := conn(ctx, r.db, tx).
		Where("id = ?", paymentID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

// FindByExternalRef matches charges by checkout session id or payment intent id, newest first.
func (r *paymentRepoImpl) FindByExternalRef(ctx context.Context, tx *gorm.DB, sessionID, intentID string) ([]*model.Payment, error) {
	if sessionID == "" && intentID == "" {
		return nil, nil
	}

	q := conn(ctx, r.db, tx).Where("kind = ?", model.KindCharge)
	switch {
	case sessionID != "" && intentID != "":
		q = q.Where("checkout_session_id = ? OR payment_intent_id = ?", sessionID, intentID)
	case sessionID != "":
		q = q.Where("checkout_session_id = ?", sessionID)
	default:
		q = q.Where("payment_intent_id = ?", intentID)
	}

	var payments []*model.Payment
	if err := q.Order("created_at DESC").Order("id").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepoImpl) LatestPending(ctx context.Context, tx *gorm.DB, orderID string) (*model.Payment, error) {
	var payment model.Payment
	err := conn(ctx, r.db, tx).
		Where("order_id = ?", orderID).
		Where("kind = ?", model.KindCharge).
		Where("status = ?", model.PaymentPending).
		Order("created_at DESC").
		First(&payment).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) ListByOrder(ctx context.Context, tx *gorm.DB, orderID string) ([]model.Payment, error) {
	var payments []model.Payment
	err := conn(ctx, r.db, tx).
		Where("order_id = ?", orderID).
		Order("created_at").
		Order("id").
		Find(&payments).Error

	return payments, err
}

func (r *paymentRepoImpl) ListByOrderForUpdate(ctx context.Context, tx *gorm.DB, orderID string) ([]model.Payment, error) {
	var payments []model.Payment
	err := conn(ctx, r.db, tx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("order_id = ?", orderID).
		Order("created_at").
		Order("id").
		Find(&payments).Error

	return payments, err
}

func (r *paymentRepoImpl) AttachSession(ctx context.Context, tx *gorm.DB, paymentID, sessionID, intentID string) error {
	fields := map[string]interface{}{
		"checkout_session_id": sessionID,
		"updated_at":          time.Now(),
	}
	if intentID != "" {
		fields["payment_intent_id"] = intentID
	}
	return conn(ctx, r.db, tx).Model(&model.Payment{}).
		Where("id = ?", paymentID).
		Updates(fields).Error
}

func (r *paymentRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, paymentID, method, intentID string, paidAt time.Time) (bool, error) {
	fields := map[string]interface{}{
		"status":     model.PaymentPaid,
		"method":     method,
		"paid_at":    paidAt,
		"updated_at": time.Now(),
	}
	if intentID != "" {
		fields["payment_intent_id"] = intentID
	}
	return r.transition(ctx, tx, paymentID, fields)
}

func (r *paymentRepoImpl) MarkFailed(ctx context.Context, tx *gorm.DB, paymentID, reason string) (bool, error) {
	return r.transition(ctx, tx, paymentID, map[string]interface{}{
		"status":         model.PaymentFailed,
		"failure_reason": reason,
		"paid_at":        nil,
		"updated_at":     time.Now(),
	})
}

func (r *paymentRepoImpl) transition(ctx context.Context, tx *gorm.DB, paymentID string, fields map[string]interface{}) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.Payment{}).
		Where(`
			id = ?
			AND status = ?
		`,
			paymentID,
			model.PaymentPending,
		).
		Updates(fields)

	return result.RowsAffected == 1, result.Error
}
