package repository

import (
	"context"
	"errors"
	"testing"

	"meal-order-backend/internal/model"
	"meal-order-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLockForUpdateIssuesLockingRead(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, nil, &model.Order{ID: "ord-1", Status: model.OrderCreated,
		PackageOptionID: "opt-4w", PaymentPlan: model.PlanFull, Currency: "AUD", Total: 90000}))

	reads := testutil.RecordLockedReads(t, db)

	_, err := repo.FindByID(ctx, nil, "ord-1")
	require.NoError(t, err)
	assert.Empty(t, reads.Tables())

	err = db.Transaction(func(tx *gorm.DB) error {
		order, err := repo.LockForUpdate(ctx, tx, "ord-1")
		if err != nil {
			return err
		}
		assert.Equal(t, int64(90000), order.Total)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, reads.Tables())

	_, err = repo.LockForUpdate(ctx, nil, "ord-missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestListByOrderForUpdateIssuesLockingRead(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, nil, &model.Payment{ID: "pay-1", OrderID: "ord-1", Kind: model.KindCharge,
		Purpose: model.PurposeFull, Status: model.PaymentPaid, Amount: 90000, Currency: "AUD"}))

	reads := testutil.RecordLockedReads(t, db)

	payments, err := repo.ListByOrderForUpdate(ctx, nil, "ord-1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, []string{"payments"}, reads.Tables())
}
