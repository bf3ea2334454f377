package service

import (
	"context"
	"testing"

	"meal-order-backend/internal/model"
	"meal-order-backend/internal/webhook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPlanPrefersPendingCandidate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "8W", model.PlanPartial)
	deposit := env.openCharge(t, order.ID)
	env.pay(t, "evt_1", deposit)
	balance := env.openCharge(t, order.ID)

	// metadata still names the paid deposit, the session belongs to the open balance
	match, err := successPlan(env.paymentRepo).Resolve(ctx, nil, webhook.Correlation{
		PaymentID: deposit.ID,
		OrderID:   order.ID,
		SessionID: balance.CheckoutSessionID,
	})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, balance.ID, match.Payment.ID)
	assert.Equal(t, "session_id", match.Strategy)
	assert.True(t, match.Pending)
}

func TestMatchPlanIgnoresPaymentOfAnotherOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createOrder(t, "4W", model.PlanFull)
	b := env.createOrder(t, "4W", model.PlanFull)
	pa := env.openCharge(t, a.ID)
	pb := env.openCharge(t, b.ID)

	match, err := successPlan(env.paymentRepo).Resolve(ctx, nil, webhook.Correlation{
		PaymentID: pa.ID,
		OrderID:   b.ID,
		SessionID: pb.CheckoutSessionID,
	})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, pb.ID, match.Payment.ID)
}

func TestMatchPlanReportsSettledPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "4W", model.PlanFull)
	p := env.openCharge(t, order.ID)
	env.pay(t, "evt_1", p)

	match, err := failurePlan(env.paymentRepo).Resolve(ctx, nil, webhook.Correlation{IntentID: p.PaymentIntentID, OrderID: order.ID})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, p.ID, match.Payment.ID)
	assert.False(t, match.Pending)
}

func TestFallbackOnlyInFailurePlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "4W", model.PlanFull)
	p := env.openCharge(t, order.ID)
	ref := webhook.Correlation{OrderID: order.ID, IntentID: "pi_other"}

	match, err := successPlan(env.paymentRepo).Resolve(ctx, nil, ref)
	require.NoError(t, err)
	assert.Nil(t, match)

	match, err = failurePlan(env.paymentRepo).Resolve(ctx, nil, ref)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, p.ID, match.Payment.ID)
	assert.Equal(t, "latest_pending", match.Strategy)
}
